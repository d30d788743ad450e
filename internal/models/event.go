package models

import "time"

// FilterTag — режим выдачи ленты событий (discover).
type FilterTag string

const (
	FilterLocation  FilterTag = "location"
	FilterInterests FilterTag = "interests"
	FilterDate      FilterTag = "date"
)

// Valid сообщает, что тег входит в поддерживаемый набор.
func (f FilterTag) Valid() bool {
	switch f {
	case FilterLocation, FilterInterests, FilterDate:
		return true
	default:
		return false
	}
}

// InterestTag — тег интереса (приходит с сервера строкой в верхнем регистре).
type InterestTag string

// EventItem — элемент ленты событий.
type EventItem struct {
	ID               string
	Title            string
	Description      string
	Image            string
	Interests        []InterestTag
	OrganiserName    string
	City             string
	PlaceName        string
	ChatID           string
	ParticipantCount int
	StartDate        time.Time
	EndDate          time.Time
}

// Key — идентификатор для дедупликации в коллекции.
func (e EventItem) Key() string { return e.ID }

// EventDraft — данные для создания события.
type EventDraft struct {
	Name        string
	Description string
	Image       string
	Interests   []InterestTag
	City        string
	PlaceName   string
	StartDate   time.Time
	EndDate     time.Time
}
