package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pribylovaa/campus-sync/internal/apiclient"
	"github.com/pribylovaa/campus-sync/internal/models"
)

// Chats — HTTP-реализация ChatRepository.
type Chats struct {
	ex       Executor
	pageSize int
}

func NewChats(ex Executor, pageSize int) *Chats {
	return &Chats{ex: ex, pageSize: pageSize}
}

// UserChats — страница чатов пользователя, свежие сверху.
func (r *Chats) UserChats(ctx context.Context, page int) (models.Page[models.UserChat], error) {
	const op = "repository.chats.UserChats"

	var out chatListResponse
	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodGet,
		Path:   "/chats",
		Query:  pageQuery(page, r.pageSize),
		Auth:   true,
	}, &out); err != nil {
		return models.Page[models.UserChat]{}, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]models.UserChat, 0, len(out.Chats))
	for _, dto := range out.Chats {
		items = append(items, toUserChat(dto))
	}

	return models.Page[models.UserChat]{Items: items, HasMore: out.HasMore}, nil
}
