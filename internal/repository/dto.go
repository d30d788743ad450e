package repository

// DTO повторяют JSON бэкенда один в один; доменные модели строятся в mappers.go.

type emailRequest struct {
	Email string `json:"email"`
}

type activateRequest struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

type authResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Email        string `json:"email"`
}

type userLocationDTO struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// UserProfileResponseDTO — профиль в ответах /user/me и внутри события.
type UserProfileResponseDTO struct {
	ID             string            `json:"id"`
	UserName       *string           `json:"userName"`
	Age            *int              `json:"age"`
	Bio            *string           `json:"bio"`
	Nationality    *string           `json:"nationality"`
	Languages      []string          `json:"languages"`
	Interests      []string          `json:"interests"`
	UserLocation   *userLocationDTO  `json:"userLocation"`
	ProfilePicture *string           `json:"profilePicture"`
	SocialMedia    map[string]string `json:"socialMedia"`
}

// ProfileUpdateRequest — тело PUT /user/me.
type ProfileUpdateRequest struct {
	UserName       string          `json:"userName"`
	Nationality    string          `json:"nationality"`
	Languages      []string        `json:"languages"`
	Age            int             `json:"age"`
	Interests      []string        `json:"interests"`
	Bio            string          `json:"bio,omitempty"`
	UserLocation   userLocationDTO `json:"userLocation"`
	ProfilePicture *string         `json:"profilePicture"`
}

// SetLocation заполняет вложенный userLocation.
func (r *ProfileUpdateRequest) SetLocation(city, country string) {
	r.UserLocation = userLocationDTO{City: city, Country: country}
}

type eventBioDTO struct {
	ID           string   `json:"id,omitempty"`
	Description  string   `json:"description"`
	Image        string   `json:"image"`
	InterestTags []string `json:"interestTags"`
}

type organiserDTO struct {
	ID      string                  `json:"id"`
	Name    string                  `json:"name"`
	Profile *UserProfileResponseDTO `json:"profile"`
}

type eventLocationDTO struct {
	City      string `json:"city"`
	PlaceName string `json:"placeName"`
}

type chatRefDTO struct {
	ID string `json:"id"`
}

type eventResponseDTO struct {
	EventID          string           `json:"eventId"`
	Name             string           `json:"name"`
	EventBio         eventBioDTO      `json:"eventBio"`
	Organiser        *organiserDTO    `json:"organiser"`
	Location         eventLocationDTO `json:"location"`
	Chat             *chatRefDTO      `json:"chat"`
	ParticipantCount int              `json:"participantCount"`
	StartDate        string           `json:"startDate"`
	EndDate          string           `json:"endDate"`
}

type eventListResponse struct {
	Events  []eventResponseDTO `json:"events"`
	HasMore bool               `json:"hasMore"`
}

type createEventRequest struct {
	Name      string           `json:"name"`
	EventBio  eventBioDTO      `json:"eventBio"`
	Location  eventLocationDTO `json:"location"`
	StartDate string           `json:"startDate"`
	EndDate   string           `json:"endDate"`
}

// ChatMessageDTO — сообщение чата; тот же формат приходит по live-каналу.
type ChatMessageDTO struct {
	ID       string `json:"id"`
	ChatID   string `json:"chatId"`
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
	SentAt   string `json:"sentAt"`
}

type userChatDTO struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	AvatarURL   string          `json:"avatarUrl"`
	LastMessage *ChatMessageDTO `json:"lastMessage"`
	UpdatedAt   string          `json:"updatedAt"`
	UnreadCount int             `json:"unreadCount"`
}

type chatListResponse struct {
	Chats   []userChatDTO `json:"chats"`
	HasMore bool          `json:"hasMore"`
}
