package service

import (
	"context"
	"fmt"

	"github.com/pribylovaa/campus-sync/internal/collection"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/reconcile"
	"github.com/pribylovaa/campus-sync/internal/repository"
)

// ChatsState — снимок списка чатов.
type ChatsState = collection.State[models.UserChat, struct{}]

// Chats — стор списка чатов пользователя, свежие сверху.
type Chats struct {
	repo    repository.ChatRepository
	store   *collection.Store[models.UserChat, struct{}]
	expirer Expirer
	live    *reconcile.Reconciler
}

// NewChats создаёт пустой список чатов. expirer может быть nil.
func NewChats(repo repository.ChatRepository, expirer Expirer, opts ...reconcile.Option) *Chats {
	c := &Chats{
		repo:    repo,
		store:   collection.New[models.UserChat]("chats", struct{}{}),
		expirer: expirer,
	}
	c.live = reconcile.New(c, opts...)

	return c
}

func (c *Chats) fetch(ctx context.Context, page int) (models.Page[models.UserChat], error) {
	return c.repo.UserChats(ctx, page)
}

func (c *Chats) Snapshot() ChatsState {
	return c.store.Snapshot()
}

func (c *Chats) LoadNextPage(ctx context.Context) error {
	const op = "service.chats.LoadNextPage"

	if err := c.store.LoadNextPage(ctx, c.fetch); err != nil {
		checkExpired(ctx, c.expirer, err)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Chats) Refresh(ctx context.Context) error {
	const op = "service.chats.Refresh"

	if err := c.store.Refresh(ctx, c.fetch); err != nil {
		checkExpired(ctx, c.expirer, err)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Clear сбрасывает список (logout).
func (c *Chats) Clear() {
	c.store.Reset()
}

// Mutate атомарно меняет элементы списка; используется reconcile.
func (c *Chats) Mutate(fn func(items []models.UserChat) ([]models.UserChat, bool)) bool {
	return c.store.Mutate(fn)
}

// ApplyLiveUpdate вливает сообщение, пришедшее по live-каналу.
func (c *Chats) ApplyLiveUpdate(ctx context.Context, msg models.ChatMessage) (reconcile.Outcome, error) {
	const op = "service.chats.ApplyLiveUpdate"

	outcome, err := c.live.Apply(ctx, msg)
	if err != nil {
		return outcome, fmt.Errorf("%s: %w", op, err)
	}

	return outcome, nil
}

// Wait дожидается фоновых перезагрузок, запущенных live-обновлениями.
func (c *Chats) Wait() {
	c.live.Wait()
}
