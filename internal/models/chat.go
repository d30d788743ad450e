package models

import "time"

// ChatMessage — сообщение чата; приходит и в странице чатов (последнее
// сообщение), и по live-каналу.
//
// SentAt.IsZero() означает, что сервер не прислал время отправки.
type ChatMessage struct {
	ID       string
	ChatID   string
	SenderID string
	Content  string
	SentAt   time.Time
}

// UserChat — элемент списка чатов пользователя.
// Список всегда отсортирован по UpdatedAt: самые свежие сверху.
type UserChat struct {
	ID          string
	Title       string
	AvatarURL   string
	LastMessage *ChatMessage
	UpdatedAt   time.Time
	UnreadCount int
}

// Key — идентификатор для дедупликации в коллекции.
func (c UserChat) Key() string { return c.ID }
