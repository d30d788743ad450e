// reconcile вливает live-обновления (новые сообщения чатов) в список чатов.
//
// Правило: чат с новым сообщением поднимается на позицию 0, его прежняя
// версия удаляется; удаление и вставка видны читателям как одно изменение.
// Если чата в списке нет, обновление отбрасывается (частичный элемент не
// создаётся) и в фоне запускается перезагрузка списка.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
)

// Target — список чатов, в который вливаются обновления.
type Target interface {
	Mutate(fn func(items []models.UserChat) ([]models.UserChat, bool)) bool
	Refresh(ctx context.Context) error
}

// Outcome — результат Apply.
type Outcome int

const (
	// Promoted — чат найден, обновлён и поднят наверх.
	Promoted Outcome = iota
	// Missed — чата нет в списке; обновление отброшено, запущена перезагрузка.
	Missed
)

func (o Outcome) String() string {
	if o == Promoted {
		return "promoted"
	}

	return "missed"
}

// Reconciler применяет live-обновления к Target.
type Reconciler struct {
	target Target
	now    func() time.Time

	wg sync.WaitGroup
}

// Option настраивает Reconciler.
type Option func(*Reconciler)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New создаёт Reconciler.
func New(target Target, opts ...Option) *Reconciler {
	r := &Reconciler{target: target, now: time.Now}
	for _, o := range opts {
		o(r)
	}

	return r
}

// Apply вливает сообщение msg в список.
func (r *Reconciler) Apply(ctx context.Context, msg models.ChatMessage) (Outcome, error) {
	const op = "reconcile.Reconciler.Apply"

	if msg.ChatID == "" {
		return Missed, fmt.Errorf("%s: %w", op, apperrors.Validation("chatId", "message has no chat reference"))
	}

	lg := log.From(ctx).With(
		slog.String("op", op),
		slog.String("chat_id", msg.ChatID),
	)

	now := r.now()
	if r.target.Mutate(func(items []models.UserChat) ([]models.UserChat, bool) {
		return Promote(items, msg, now)
	}) {
		lg.Debug("chat_promoted")
		return Promoted, nil
	}

	lg.Info("live_update_for_unknown_chat")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		bctx := context.WithoutCancel(ctx)
		if err := r.target.Refresh(bctx); err != nil {
			log.From(bctx).Warn("background_refresh_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}()

	return Missed, nil
}

// Wait дожидается фоновых перезагрузок (остановка процесса, тесты).
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Promote возвращает новый список, где чат msg.ChatID обновлён и стоит первым.
// ok == false: чата в списке нет, items возвращается как есть.
//
// UpdatedAt берётся из msg.SentAt, а при его отсутствии из now.
func Promote(items []models.UserChat, msg models.ChatMessage, now time.Time) ([]models.UserChat, bool) {
	idx := -1
	for i := range items {
		if items[i].ID == msg.ChatID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return items, false
	}

	updated := items[idx]
	m := msg
	updated.LastMessage = &m
	updated.UpdatedAt = msg.SentAt
	if updated.UpdatedAt.IsZero() {
		updated.UpdatedAt = now
	}

	out := make([]models.UserChat, 0, len(items))
	out = append(out, updated)
	out = append(out, items[:idx]...)
	out = append(out, items[idx+1:]...)

	return out, true
}
