package repository

import (
	"strings"
	"time"

	"github.com/pribylovaa/campus-sync/internal/models"
)

const (
	defaultUserName    = "Anonymous"
	defaultNationality = "Unknown"
	imagePrefix        = "data:image/jpeg;base64,"
	persistDateLayout  = "2006-01-02"
)

// Сервер отдаёт даты то с зоной, то как LocalDateTime, то как дату.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	persistDateLayout,
}

// parseTime возвращает нулевое время для пустой или неразборчивой строки.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}

// ProcessImage приводит base64-картинку к data URI.
// Пустое значение и литерал "null" означают отсутствие картинки.
func ProcessImage(raw string) string {
	if raw == "" || raw == "null" {
		return ""
	}
	if strings.HasPrefix(raw, "data:") {
		return raw
	}

	return imagePrefix + raw
}

func interestTags(in []string) []models.InterestTag {
	out := make([]models.InterestTag, 0, len(in))
	for _, s := range in {
		out = append(out, models.InterestTag(s))
	}

	return out
}

func interestStrings(in []models.InterestTag) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, string(t))
	}

	return out
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}

	return *p
}

// ToProfile маппит профиль сервера, подставляя значения по умолчанию.
func ToProfile(dto UserProfileResponseDTO) models.Profile {
	p := models.Profile{
		ID:           dto.ID,
		Name:         deref(dto.UserName, defaultUserName),
		Age:          deref(dto.Age, 0),
		Bio:          deref(dto.Bio, ""),
		Nationality:  deref(dto.Nationality, defaultNationality),
		Languages:    dto.Languages,
		Interests:    interestTags(dto.Interests),
		ProfileImage: ProcessImage(deref(dto.ProfilePicture, "")),
		SocialMedia:  make(map[string]string, len(dto.SocialMedia)),
	}

	if p.Languages == nil {
		p.Languages = []string{}
	}
	if dto.UserLocation != nil {
		p.City = dto.UserLocation.City
		p.Country = dto.UserLocation.Country
	}
	for k, v := range dto.SocialMedia {
		p.SocialMedia[k] = v
	}

	return p
}

func toEventItem(dto eventResponseDTO) models.EventItem {
	e := models.EventItem{
		ID:               dto.EventID,
		Title:            dto.Name,
		Description:      dto.EventBio.Description,
		Image:            ProcessImage(dto.EventBio.Image),
		Interests:        interestTags(dto.EventBio.InterestTags),
		OrganiserName:    defaultUserName,
		City:             dto.Location.City,
		PlaceName:        dto.Location.PlaceName,
		ParticipantCount: dto.ParticipantCount,
		StartDate:        parseTime(dto.StartDate),
		EndDate:          parseTime(dto.EndDate),
	}

	if o := dto.Organiser; o != nil {
		switch {
		case o.Name != "":
			e.OrganiserName = o.Name
		case o.Profile != nil && o.Profile.UserName != nil && *o.Profile.UserName != "":
			e.OrganiserName = *o.Profile.UserName
		}
	}
	if dto.Chat != nil {
		e.ChatID = dto.Chat.ID
	}

	return e
}

func toCreateEventRequest(d models.EventDraft) createEventRequest {
	req := createEventRequest{
		Name: d.Name,
		EventBio: eventBioDTO{
			Description:  d.Description,
			Image:        strings.TrimPrefix(d.Image, imagePrefix),
			InterestTags: interestStrings(d.Interests),
		},
		Location: eventLocationDTO{City: d.City, PlaceName: d.PlaceName},
	}

	if !d.StartDate.IsZero() {
		req.StartDate = d.StartDate.Format(persistDateLayout)
	}
	if !d.EndDate.IsZero() {
		req.EndDate = d.EndDate.Format(persistDateLayout)
	}

	return req
}

// ToChatMessage маппит сообщение чата.
func ToChatMessage(dto ChatMessageDTO) models.ChatMessage {
	return models.ChatMessage{
		ID:       dto.ID,
		ChatID:   dto.ChatID,
		SenderID: dto.SenderID,
		Content:  dto.Content,
		SentAt:   parseTime(dto.SentAt),
	}
}

func toUserChat(dto userChatDTO) models.UserChat {
	c := models.UserChat{
		ID:          dto.ID,
		Title:       dto.Title,
		AvatarURL:   dto.AvatarURL,
		UpdatedAt:   parseTime(dto.UpdatedAt),
		UnreadCount: dto.UnreadCount,
	}

	if dto.LastMessage != nil {
		m := ToChatMessage(*dto.LastMessage)
		c.LastMessage = &m
	}

	return c
}
