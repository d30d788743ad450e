// repository — удалённые репозитории клиента: эндпоинты бэкенда,
// DTO в формате сервера и маппинг в доменные модели.
//
// Все вызовы идут через Executor, поэтому авторизация, refresh и
// классификация ошибок здесь не дублируются.
package repository

import (
	"context"

	"github.com/pribylovaa/campus-sync/internal/apiclient"
	"github.com/pribylovaa/campus-sync/internal/models"
)

// Executor — аутентифицированный исполнитель запросов (apiclient.Executor).
type Executor interface {
	Execute(ctx context.Context, call apiclient.Call, out any) error
}

// AuthResult — итог подтверждения кода входа.
type AuthResult struct {
	Pair  models.TokenPair
	Email string
}

//go:generate mockgen -destination=../../mocks/repository.go -package=mocks github.com/pribylovaa/campus-sync/internal/repository AuthRepository,ChatRepository,EventRepository,ProfileRepository

// AuthRepository — эндпоинты /auth.
type AuthRepository interface {
	RequestLoginCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, code, email string) (AuthResult, error)
	Register(ctx context.Context, email string) error
	Activate(ctx context.Context, token, email string) error
	Logout(ctx context.Context) error
}

// EventRepository — эндпоинты /events.
type EventRepository interface {
	Discover(ctx context.Context, filter models.FilterTag, page int) (models.Page[models.EventItem], error)
	Mine(ctx context.Context, page int) (models.Page[models.EventItem], error)
	Create(ctx context.Context, draft models.EventDraft) (models.EventItem, error)
}

// ChatRepository — эндпоинты /chats.
type ChatRepository interface {
	UserChats(ctx context.Context, page int) (models.Page[models.UserChat], error)
}

// ProfileRepository — эндпоинты /user/me.
type ProfileRepository interface {
	Me(ctx context.Context) (models.Profile, error)
	UpdateMe(ctx context.Context, req ProfileUpdateRequest) (models.Profile, error)
}
