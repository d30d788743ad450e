package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pribylovaa/campus-sync/internal/apiclient"
	"github.com/pribylovaa/campus-sync/internal/models"
)

// Events — HTTP-реализация EventRepository.
type Events struct {
	ex       Executor
	pageSize int
}

// NewEvents создаёт репозиторий событий. pageSize <= 0 — размер страницы выбирает сервер.
func NewEvents(ex Executor, pageSize int) *Events {
	return &Events{ex: ex, pageSize: pageSize}
}

// Discover — лента событий под фильтром. Авторизация не обязательна.
func (r *Events) Discover(ctx context.Context, filter models.FilterTag, page int) (models.Page[models.EventItem], error) {
	const op = "repository.events.Discover"

	q := pageQuery(page, r.pageSize)
	if filter != "" {
		q.Set("filter", string(filter))
	}

	p, err := r.list(ctx, "/events", q, false)
	if err != nil {
		return models.Page[models.EventItem]{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// Mine — события текущего пользователя.
func (r *Events) Mine(ctx context.Context, page int) (models.Page[models.EventItem], error) {
	const op = "repository.events.Mine"

	p, err := r.list(ctx, "/events/mine", pageQuery(page, r.pageSize), true)
	if err != nil {
		return models.Page[models.EventItem]{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (r *Events) Create(ctx context.Context, draft models.EventDraft) (models.EventItem, error) {
	const op = "repository.events.Create"

	var out eventResponseDTO
	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodPost,
		Path:   "/events",
		Body:   toCreateEventRequest(draft),
		Auth:   true,
	}, &out); err != nil {
		return models.EventItem{}, fmt.Errorf("%s: %w", op, err)
	}

	return toEventItem(out), nil
}

func (r *Events) list(ctx context.Context, path string, q url.Values, auth bool) (models.Page[models.EventItem], error) {
	var out eventListResponse
	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodGet,
		Path:   path,
		Query:  q,
		Auth:   auth,
	}, &out); err != nil {
		return models.Page[models.EventItem]{}, err
	}

	items := make([]models.EventItem, 0, len(out.Events))
	for _, dto := range out.Events {
		items = append(items, toEventItem(dto))
	}

	return models.Page[models.EventItem]{Items: items, HasMore: out.HasMore}, nil
}

func pageQuery(page, size int) url.Values {
	q := url.Values{"page": {strconv.Itoa(page)}}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}

	return q
}
