package collection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/campus-sync/internal/models"
)

// pager — управляемый источник страниц.
type pager struct {
	calls    atomic.Int32
	requests []int
	mu       sync.Mutex

	gate    chan struct{}
	started chan struct{}
	once    sync.Once

	pages map[int]models.Page[item]
	fail  map[int]error
}

func (p *pager) fetch(_ context.Context, page int) (models.Page[item], error) {
	p.calls.Add(1)

	p.mu.Lock()
	p.requests = append(p.requests, page)
	p.mu.Unlock()

	if p.started != nil {
		p.once.Do(func() { close(p.started) })
	}
	if p.gate != nil {
		<-p.gate
	}

	if err := p.fail[page]; err != nil {
		return models.Page[item]{}, err
	}

	return p.pages[page], nil
}

func TestStore_ConcurrentLoadsCollapseToOne(t *testing.T) {
	t.Parallel()

	p := &pager{
		gate:    make(chan struct{}),
		started: make(chan struct{}),
		pages:   map[int]models.Page[item]{0: {Items: items("a", "b"), HasMore: true}},
	}
	s := New[item, string]("events", "")

	done := make(chan error, 1)
	go func() { done <- s.LoadNextPage(context.Background(), p.fetch) }()
	<-p.started

	for range 5 {
		require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))
	}
	require.True(t, s.Snapshot().Loading)

	close(p.gate)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	require.EqualValues(t, 1, p.calls.Load())
	require.Equal(t, []string{"a", "b"}, keys(snap.Items))
	require.Equal(t, 1, snap.PageIndex)
	require.False(t, snap.Loading)
}

func TestStore_DeduplicatesOverlappingPages(t *testing.T) {
	t.Parallel()

	p := &pager{pages: map[int]models.Page[item]{
		0: {Items: items("a", "b", "c"), HasMore: true},
		1: {Items: items("c", "d", "a"), HasMore: false},
	}}
	s := New[item, string]("chats", "")

	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))
	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))
	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch), "exhausted store is a no-op")

	snap := s.Snapshot()
	require.Equal(t, []string{"a", "b", "c", "d"}, keys(snap.Items))
	require.False(t, snap.HasMore)
	require.EqualValues(t, 2, p.calls.Load())
}

func TestStore_FailedLoadRetriesSamePage(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := &pager{
		pages: map[int]models.Page[item]{
			0: {Items: items("a"), HasMore: true},
			1: {Items: items("b"), HasMore: true},
			2: {Items: items("c"), HasMore: true},
		},
		fail: map[int]error{2: boom},
	}
	s := New[item, string]("events", "")

	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))
	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))
	require.ErrorIs(t, s.LoadNextPage(context.Background(), p.fetch), boom)

	snap := s.Snapshot()
	require.Equal(t, 2, snap.PageIndex)
	require.ErrorIs(t, snap.Err, boom)
	require.False(t, snap.Loading)

	delete(p.fail, 2)
	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))

	require.Equal(t, []int{0, 1, 2, 2}, p.requests)
	require.Equal(t, []string{"a", "b", "c"}, keys(s.Snapshot().Items))
	require.NoError(t, s.Snapshot().Err)
}

func TestStore_SetFilter(t *testing.T) {
	t.Parallel()

	p := &pager{pages: map[int]models.Page[item]{0: {Items: items("a"), HasMore: true}}}
	s := New[item, models.FilterTag]("discover", models.FilterLocation)

	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))
	before := s.Snapshot()

	require.False(t, s.SetFilter(models.FilterLocation))
	require.Equal(t, before, s.Snapshot())

	require.True(t, s.SetFilter(models.FilterDate))
	after := s.Snapshot()
	require.Empty(t, after.Items)
	require.Zero(t, after.PageIndex)
	require.True(t, after.HasMore)
	require.Equal(t, models.FilterDate, after.Filter)
}

func TestStore_ResetDiscardsInFlightLoad(t *testing.T) {
	t.Parallel()

	p := &pager{
		gate:    make(chan struct{}),
		started: make(chan struct{}),
		pages:   map[int]models.Page[item]{0: {Items: items("stale"), HasMore: false}},
	}
	s := New[item, string]("events", "")

	done := make(chan error, 1)
	go func() { done <- s.LoadNextPage(context.Background(), p.fetch) }()
	<-p.started

	s.Reset()
	close(p.gate)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	require.Empty(t, snap.Items)
	require.Zero(t, snap.PageIndex)
	require.True(t, snap.HasMore)
	require.False(t, snap.Loading)
}

func TestStore_RefreshReplacesAndIgnoredWhileLoading(t *testing.T) {
	t.Parallel()

	p := &pager{pages: map[int]models.Page[item]{
		0: {Items: items("a", "b"), HasMore: true},
		1: {Items: items("c"), HasMore: false},
	}}
	s := New[item, string]("chats", "")

	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))
	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))

	p.pages[0] = models.Page[item]{Items: items("n", "a"), HasMore: true}
	require.NoError(t, s.Refresh(context.Background(), p.fetch))

	snap := s.Snapshot()
	require.Equal(t, []string{"n", "a"}, keys(snap.Items))
	require.Equal(t, 1, snap.PageIndex)
	require.True(t, snap.HasMore)

	blocked := &pager{gate: make(chan struct{}), started: make(chan struct{}), pages: p.pages}
	done := make(chan error, 1)
	go func() { done <- s.LoadNextPage(context.Background(), blocked.fetch) }()
	<-blocked.started

	calls := p.calls.Load()
	require.NoError(t, s.Refresh(context.Background(), p.fetch))
	require.Equal(t, calls, p.calls.Load(), "refresh while loading is ignored")

	close(blocked.gate)
	require.NoError(t, <-done)
}

func TestStore_MutateIsAtomicAndCopies(t *testing.T) {
	t.Parallel()

	p := &pager{pages: map[int]models.Page[item]{0: {Items: items("a", "b", "c"), HasMore: false}}}
	s := New[item, string]("chats", "")
	require.NoError(t, s.LoadNextPage(context.Background(), p.fetch))

	snap := s.Snapshot()
	snap.Items[0].rev = 99
	require.Equal(t, 0, s.Snapshot().Items[0].rev, "snapshot must not alias store state")

	require.False(t, s.Mutate(func(in []item) ([]item, bool) { return in, false }))

	require.True(t, s.Mutate(func(in []item) ([]item, bool) {
		return append([]item{in[2]}, in[:2]...), true
	}))
	require.Equal(t, []string{"c", "a", "b"}, keys(s.Snapshot().Items))
}
