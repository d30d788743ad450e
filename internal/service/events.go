package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pribylovaa/campus-sync/internal/collection"
	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
	"github.com/pribylovaa/campus-sync/internal/repository"
)

// EventsState — снимок ленты событий.
type EventsState = collection.State[models.EventItem, models.FilterTag]

// EventFetch получает страницу page из репозитория. Вызывающий выбирает,
// какой эндпоинт и фильтр использовать; стор об этом не знает.
type EventFetch func(ctx context.Context, repo repository.EventRepository, page int) (models.Page[models.EventItem], error)

// DiscoverFetch — лента discover под фильтром filter.
func DiscoverFetch(filter models.FilterTag) EventFetch {
	return func(ctx context.Context, repo repository.EventRepository, page int) (models.Page[models.EventItem], error) {
		return repo.Discover(ctx, filter, page)
	}
}

// MyEventsFetch — события текущего пользователя.
func MyEventsFetch() EventFetch {
	return func(ctx context.Context, repo repository.EventRepository, page int) (models.Page[models.EventItem], error) {
		return repo.Mine(ctx, page)
	}
}

// Events — стор ленты событий: append-only в порядке загрузки страниц.
type Events struct {
	repo    repository.EventRepository
	store   *collection.Store[models.EventItem, models.FilterTag]
	expirer Expirer
}

// NewEvents создаёт ленту с начальным фильтром filter. expirer может быть nil.
func NewEvents(repo repository.EventRepository, filter models.FilterTag, expirer Expirer) *Events {
	return &Events{
		repo:    repo,
		store:   collection.New[models.EventItem]("events", filter),
		expirer: expirer,
	}
}

func (e *Events) bind(fetch EventFetch) collection.FetchFunc[models.EventItem] {
	return func(ctx context.Context, page int) (models.Page[models.EventItem], error) {
		return fetch(ctx, e.repo, page)
	}
}

// Snapshot возвращает копию состояния ленты.
func (e *Events) Snapshot() EventsState {
	return e.store.Snapshot()
}

// LoadNextPage догружает следующую страницу через fetch.
func (e *Events) LoadNextPage(ctx context.Context, fetch EventFetch) error {
	const op = "service.events.LoadNextPage"

	if err := e.store.LoadNextPage(ctx, e.bind(fetch)); err != nil {
		checkExpired(ctx, e.expirer, err)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Refresh заменяет ленту первой страницей fetch.
func (e *Events) Refresh(ctx context.Context, fetch EventFetch) error {
	const op = "service.events.Refresh"

	if err := e.store.Refresh(ctx, e.bind(fetch)); err != nil {
		checkExpired(ctx, e.expirer, err)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Reset очищает ленту.
func (e *Events) Reset() {
	e.store.Reset()
}

// SetFilter меняет фильтр ленты; тот же фильтр — no-op.
func (e *Events) SetFilter(filter models.FilterTag) (bool, error) {
	const op = "service.events.SetFilter"

	if !filter.Valid() {
		return false, fmt.Errorf("%s: %w", op, apperrors.Validation("filter", "unknown filter "+string(filter)))
	}

	return e.store.SetFilter(filter), nil
}

// CreateEvent создаёт событие и перезагружает ленту через fetch, чтобы
// новое событие появилось на своём месте в серверном порядке.
func (e *Events) CreateEvent(ctx context.Context, draft models.EventDraft, fetch EventFetch) (models.EventItem, error) {
	const op = "service.events.CreateEvent"

	if strings.TrimSpace(draft.Name) == "" {
		return models.EventItem{}, fmt.Errorf("%s: %w", op, apperrors.Validation("name", "event name is required"))
	}
	if !draft.StartDate.IsZero() && !draft.EndDate.IsZero() && draft.EndDate.Before(draft.StartDate) {
		return models.EventItem{}, fmt.Errorf("%s: %w", op, apperrors.Validation("endDate", "event ends before it starts"))
	}

	item, err := e.repo.Create(ctx, draft)
	if err != nil {
		checkExpired(ctx, e.expirer, err)
		return models.EventItem{}, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("event_created", slog.String("op", op), slog.String("event_id", item.ID))

	if err := e.Refresh(ctx, fetch); err != nil {
		// Событие уже создано; ошибка перезагрузки видна в снимке ленты.
		log.From(ctx).Warn("events_refresh_after_create_failed", slog.String("err", err.Error()))
	}

	return item, nil
}
