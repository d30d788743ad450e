package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/reconcile"
)

// fakeReader отдаёт заранее заданные сообщения, затем блокируется до отмены ctx.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs []error
	committed []int64
	drained   chan struct{}
	once      sync.Once
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{msgs: msgs, drained: make(chan struct{})}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		f.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()

	f.once.Do(func() { close(f.drained) })
	<-ctx.Done()

	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]int64(nil), f.committed...)
}

type fakeApplier struct {
	mu   sync.Mutex
	got  []models.ChatMessage
	errs map[string]error
}

func (a *fakeApplier) ApplyLiveUpdate(_ context.Context, msg models.ChatMessage) (reconcile.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.errs[msg.ID]; err != nil {
		return reconcile.Missed, err
	}
	a.got = append(a.got, msg)

	if msg.ChatID == "known" {
		return reconcile.Promoted, nil
	}
	return reconcile.Missed, nil
}

func msg(offset int64, value string) kafka.Message {
	return kafka.Message{Offset: offset, Value: []byte(value)}
}

func runUntilDrained(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain the topic")
	}
	cancel()

	require.NoError(t, <-done)
}

func counter(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range mfs {
		if mf.GetName() != "campus_sync_live_messages_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestDecode(t *testing.T) {
	t.Parallel()

	m, err := Decode([]byte(`{"id":"m1","chatId":"c1","senderId":"u1","content":"hi","sentAt":"2026-10-15T10:00:00Z"}`))
	require.NoError(t, err)
	require.Equal(t, "c1", m.ChatID)
	require.Equal(t, "hi", m.Content)
	require.Equal(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC), m.SentAt.UTC())

	_, err = Decode([]byte(`{"id":`))
	require.ErrorAs(t, err, new(*apperrors.MalformedResponseError))
}

func TestRun_AppliesAndCommits(t *testing.T) {
	t.Parallel()

	r := newFakeReader(
		msg(1, `{"id":"m1","chatId":"known","content":"a"}`),
		msg(2, `not json`),
		msg(3, `{"id":"m3","chatId":"other","content":"b"}`),
	)
	app := &fakeApplier{}
	reg := prometheus.NewRegistry()

	c := New(r, app, WithRegisterer(reg))
	runUntilDrained(t, c, r)

	require.Equal(t, []int64{1, 2, 3}, r.commits())
	require.Len(t, app.got, 2)
	require.Equal(t, float64(1), counter(t, reg, "promoted"))
	require.Equal(t, float64(1), counter(t, reg, "missed"))
	require.Equal(t, float64(1), counter(t, reg, "malformed"))
}

func TestRun_TransientFailureIsNotCommitted(t *testing.T) {
	t.Parallel()

	r := newFakeReader(
		msg(1, `{"id":"bad","chatId":"known"}`),
		msg(2, `{"id":"noid"}`),
		msg(3, `{"id":"ok","chatId":"known"}`),
	)
	app := &fakeApplier{errs: map[string]error{
		"bad":  errors.New("store unavailable"),
		"noid": apperrors.Validation("chatId", "message has no chat reference"),
	}}

	c := New(r, app)
	runUntilDrained(t, c, r)

	// 1 — временная ошибка, 2 — заведомо непригодно.
	require.Equal(t, []int64{2, 3}, r.commits())
}

func TestRun_GateSkipsWithoutSession(t *testing.T) {
	t.Parallel()

	r := newFakeReader(msg(7, `{"id":"m","chatId":"known"}`))
	app := &fakeApplier{}

	c := New(r, app, WithGate(func() bool { return false }))
	runUntilDrained(t, c, r)

	require.Empty(t, app.got)
	require.Equal(t, []int64{7}, r.commits())
}

func TestRun_FetchErrorBacksOff(t *testing.T) {
	t.Parallel()

	r := newFakeReader(msg(1, `{"id":"m","chatId":"known"}`))
	r.fetchErrs = []error{errors.New("broker down")}
	app := &fakeApplier{}

	c := New(r, app, WithBackoff(time.Millisecond))
	runUntilDrained(t, c, r)

	require.Equal(t, []int64{1}, r.commits())
}
