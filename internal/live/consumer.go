// live — приём live-обновлений чатов из Kafka.
//
// Каждое сообщение топика — ChatMessageDTO в JSON, тот же формат, что и
// lastMessage в странице чатов. Сообщение передаётся в Applier
// (service.Chats), после чего offset коммитится.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
	"github.com/pribylovaa/campus-sync/internal/reconcile"
	"github.com/pribylovaa/campus-sync/internal/repository"
)

// Reader — часть kafka.Reader, которой пользуется Consumer.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Applier вливает сообщение в список чатов.
type Applier interface {
	ApplyLiveUpdate(ctx context.Context, msg models.ChatMessage) (reconcile.Outcome, error)
}

// Config — параметры подключения к топику.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer читает топик и применяет сообщения.
type Consumer struct {
	reader  Reader
	applier Applier
	active  func() bool
	timeout time.Duration
	backoff time.Duration
	metrics *prometheus.CounterVec
}

// Option настраивает Consumer.
type Option func(*Consumer)

// WithGate задаёт условие приёма: пока active() == false (нет сессии),
// сообщения коммитятся без применения.
func WithGate(active func() bool) Option {
	return func(c *Consumer) { c.active = active }
}

// WithRegisterer регистрирует счётчик обработанных сообщений.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Consumer) {
		if reg != nil {
			reg.MustRegister(c.metrics)
		}
	}
}

// WithBackoff задаёт паузу после ошибки чтения.
func WithBackoff(d time.Duration) Option {
	return func(c *Consumer) { c.backoff = d }
}

// NewReader создаёт kafka.Reader в составе consumer group.
func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  500 * time.Millisecond,
	})
}

// New создаёт Consumer поверх reader.
func New(reader Reader, applier Applier, opts ...Option) *Consumer {
	c := &Consumer{
		reader:  reader,
		applier: applier,
		active:  func() bool { return true },
		timeout: 10 * time.Second,
		backoff: time.Second,
		metrics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus_sync",
			Subsystem: "live",
			Name:      "messages_total",
			Help:      "Live chat updates by processing result.",
		}, []string{"result"}),
	}
	for _, o := range opts {
		o(c)
	}

	return c
}

// Run читает топик до отмены ctx.
//
// Сообщение коммитится, если оно применено, пропущено или заведомо
// непригодно (битый JSON, нет chatId). Прочие ошибки оставляют offset на месте.
func (c *Consumer) Run(ctx context.Context) error {
	const op = "live.Consumer.Run"

	lg := log.From(ctx).With(slog.String("op", op))
	lg.Info("live_consumer_started")

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				lg.Info("live_consumer_stopped")
				return nil
			}

			lg.Warn("live_fetch_failed", slog.String("err", err.Error()))
			select {
			case <-ctx.Done():
				lg.Info("live_consumer_stopped")
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		result, err := c.Handle(pctx, m)
		cancel()

		c.metrics.WithLabelValues(result).Inc()

		if err != nil {
			lg.Warn("live_message_failed",
				slog.Int64("offset", m.Offset),
				slog.Int("partition", m.Partition),
				slog.String("err", err.Error()),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			lg.Error("live_commit_failed",
				slog.Int64("offset", m.Offset),
				slog.String("err", err.Error()),
			)
		}
	}
}

// Handle обрабатывает одно сообщение и возвращает метку результата.
// err != nil означает, что сообщение нужно прочитать повторно.
func (c *Consumer) Handle(ctx context.Context, m kafka.Message) (string, error) {
	const op = "live.Consumer.Handle"

	lg := log.From(ctx).With(slog.String("op", op), slog.Int64("offset", m.Offset))

	if !c.active() {
		return "skipped", nil
	}

	msg, err := Decode(m.Value)
	if err != nil {
		lg.Warn("live_message_malformed", slog.String("err", err.Error()))
		return "malformed", nil
	}

	outcome, err := c.applier.ApplyLiveUpdate(ctx, msg)
	if err != nil {
		var verr *apperrors.ValidationError
		if errors.As(err, &verr) {
			lg.Warn("live_message_rejected", slog.String("err", err.Error()))
			return "rejected", nil
		}

		return "failed", fmt.Errorf("%s: %w", op, err)
	}

	return outcome.String(), nil
}

// Decode разбирает значение сообщения топика.
func Decode(value []byte) (models.ChatMessage, error) {
	const op = "live.Decode"

	var dto repository.ChatMessageDTO
	if err := json.Unmarshal(value, &dto); err != nil {
		return models.ChatMessage{}, fmt.Errorf("%s: %w", op, &apperrors.MalformedResponseError{Err: err})
	}

	return repository.ToChatMessage(dto), nil
}

// Close закрывает reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
