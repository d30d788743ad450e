package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/service"
)

type userView struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

type sessionView struct {
	State           service.State  `json:"state"`
	Prev            *service.State `json:"prev,omitempty"`
	User            *userView      `json:"user,omitempty"`
	IsAuthenticated bool           `json:"isAuthenticated"`
	Error           string         `json:"error,omitempty"`
}

func toSessionView(st service.SessionState) sessionView {
	v := sessionView{
		State:           st.State,
		IsAuthenticated: st.IsAuthenticated,
		Error:           errString(st.Err),
	}
	if st.State == service.StateError {
		prev := st.Prev
		v.Prev = &prev
	}
	if st.User != nil {
		v.User = &userView{Email: st.User.Email, Username: st.User.Username}
	}

	return v
}

type eventView struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Image            string   `json:"image,omitempty"`
	Interests        []string `json:"interests"`
	OrganiserName    string   `json:"organiserName,omitempty"`
	City             string   `json:"city,omitempty"`
	PlaceName        string   `json:"placeName,omitempty"`
	ChatID           string   `json:"chatId,omitempty"`
	ParticipantCount int      `json:"participantCount"`
	StartDate        string   `json:"startDate,omitempty"`
	EndDate          string   `json:"endDate,omitempty"`
}

func toEventView(e models.EventItem) eventView {
	v := eventView{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Image:            e.Image,
		Interests:        tagStrings(e.Interests),
		OrganiserName:    e.OrganiserName,
		City:             e.City,
		PlaceName:        e.PlaceName,
		ChatID:           e.ChatID,
		ParticipantCount: e.ParticipantCount,
		StartDate:        formatTime(e.StartDate),
		EndDate:          formatTime(e.EndDate),
	}

	return v
}

type eventsView struct {
	Items     []eventView `json:"items"`
	PageIndex int         `json:"pageIndex"`
	HasMore   bool        `json:"hasMore"`
	Loading   bool        `json:"loading"`
	Filter    string      `json:"filter"`
	Error     string      `json:"error,omitempty"`
}

func toEventsView(st service.EventsState) eventsView {
	v := eventsView{
		Items:     make([]eventView, 0, len(st.Items)),
		PageIndex: st.PageIndex,
		HasMore:   st.HasMore,
		Loading:   st.Loading,
		Filter:    string(st.Filter),
		Error:     errString(st.Err),
	}
	for _, e := range st.Items {
		v.Items = append(v.Items, toEventView(e))
	}

	return v
}

type messageView struct {
	ID       string `json:"id"`
	SenderID string `json:"senderId,omitempty"`
	Content  string `json:"content"`
	SentAt   string `json:"sentAt,omitempty"`
}

type chatView struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
	LastMessage *messageView `json:"lastMessage,omitempty"`
	UpdatedAt   string       `json:"updatedAt,omitempty"`
	UnreadCount int          `json:"unreadCount"`
}

type chatsView struct {
	Items     []chatView `json:"items"`
	PageIndex int        `json:"pageIndex"`
	HasMore   bool       `json:"hasMore"`
	Loading   bool       `json:"loading"`
	Error     string     `json:"error,omitempty"`
}

func toChatsView(st service.ChatsState) chatsView {
	v := chatsView{
		Items:     make([]chatView, 0, len(st.Items)),
		PageIndex: st.PageIndex,
		HasMore:   st.HasMore,
		Loading:   st.Loading,
		Error:     errString(st.Err),
	}
	for _, c := range st.Items {
		cv := chatView{
			ID:          c.ID,
			Title:       c.Title,
			AvatarURL:   c.AvatarURL,
			UpdatedAt:   formatTime(c.UpdatedAt),
			UnreadCount: c.UnreadCount,
		}
		if m := c.LastMessage; m != nil {
			cv.LastMessage = &messageView{ID: m.ID, SenderID: m.SenderID, Content: m.Content, SentAt: formatTime(m.SentAt)}
		}
		v.Items = append(v.Items, cv)
	}

	return v
}

type profileView struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Age          int               `json:"age"`
	Bio          string            `json:"bio,omitempty"`
	Nationality  string            `json:"nationality"`
	Languages    []string          `json:"languages"`
	Interests    []string          `json:"interests"`
	City         string            `json:"city"`
	Country      string            `json:"country"`
	ProfileImage string            `json:"profileImage,omitempty"`
	SocialMedia  map[string]string `json:"socialMedia,omitempty"`
}

type profileStateView struct {
	Profile *profileView `json:"profile"`
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
}

func toProfileStateView(st service.ProfileState) profileStateView {
	v := profileStateView{Loading: st.Loading, Error: errString(st.Err)}
	if p := st.Profile; p != nil {
		v.Profile = &profileView{
			ID:           p.ID,
			Name:         p.Name,
			Age:          p.Age,
			Bio:          p.Bio,
			Nationality:  p.Nationality,
			Languages:    p.Languages,
			Interests:    tagStrings(p.Interests),
			City:         p.City,
			Country:      p.Country,
			ProfileImage: p.ProfileImage,
			SocialMedia:  p.SocialMedia,
		}
	}

	return v
}

// stringList принимает и строку, и список строк: формы ввода отдают
// национальность в обоих видах. Строка режется по запятым.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*l = strings.Split(one, ",")
		return nil
	}

	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many

	return nil
}

func tagStrings(in []models.InterestTag) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, string(t))
	}
	return out
}

func tags(in []string) []models.InterestTag {
	out := make([]models.InterestTag, 0, len(in))
	for _, s := range in {
		out = append(out, models.InterestTag(s))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
