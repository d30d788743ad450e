package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/mocks"
)

// countingExpirer считает вызовы Expire.
type countingExpirer struct {
	n atomic.Int32
}

func (c *countingExpirer) Expire(context.Context) { c.n.Add(1) }

func ev(id string) models.EventItem {
	return models.EventItem{ID: id, Title: "Event " + id}
}

func eventIDs(items []models.EventItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func newEvents(t *testing.T, filter models.FilterTag) (*Events, *mocks.MockEventRepository, *countingExpirer) {
	t.Helper()

	ctrl := gomock.NewController(t)
	repo := mocks.NewMockEventRepository(ctrl)
	ex := &countingExpirer{}

	return NewEvents(repo, filter, ex), repo, ex
}

func TestEvents_DiscoverPages(t *testing.T) {
	t.Parallel()

	e, repo, _ := newEvents(t, models.FilterDate)
	ctx := context.Background()

	gomock.InOrder(
		repo.EXPECT().Discover(gomock.Any(), models.FilterDate, 0).
			Return(models.Page[models.EventItem]{Items: []models.EventItem{ev("1"), ev("2")}, HasMore: true}, nil),
		repo.EXPECT().Discover(gomock.Any(), models.FilterDate, 1).
			Return(models.Page[models.EventItem]{Items: []models.EventItem{ev("2"), ev("3")}}, nil),
	)

	fetch := DiscoverFetch(models.FilterDate)
	require.NoError(t, e.LoadNextPage(ctx, fetch))
	require.NoError(t, e.LoadNextPage(ctx, fetch))

	// Последняя страница получена: запросов больше нет.
	require.NoError(t, e.LoadNextPage(ctx, fetch))

	st := e.Snapshot()
	require.Equal(t, []string{"1", "2", "3"}, eventIDs(st.Items))
	require.False(t, st.HasMore)
	require.False(t, st.Loading)
	require.Equal(t, 2, st.PageIndex)
}

func TestEvents_MyEvents(t *testing.T) {
	t.Parallel()

	e, repo, _ := newEvents(t, models.FilterDate)

	repo.EXPECT().Mine(gomock.Any(), 0).
		Return(models.Page[models.EventItem]{Items: []models.EventItem{ev("m1")}}, nil)

	require.NoError(t, e.LoadNextPage(context.Background(), MyEventsFetch()))
	require.Equal(t, []string{"m1"}, eventIDs(e.Snapshot().Items))
}

func TestEvents_SetFilter(t *testing.T) {
	t.Parallel()

	e, repo, _ := newEvents(t, models.FilterDate)
	ctx := context.Background()

	repo.EXPECT().Discover(gomock.Any(), models.FilterDate, 0).
		Return(models.Page[models.EventItem]{Items: []models.EventItem{ev("1")}, HasMore: true}, nil)
	require.NoError(t, e.LoadNextPage(ctx, DiscoverFetch(models.FilterDate)))

	changed, err := e.SetFilter(models.FilterDate)
	require.NoError(t, err)
	require.False(t, changed)
	require.Len(t, e.Snapshot().Items, 1)

	changed, err = e.SetFilter(models.FilterInterests)
	require.NoError(t, err)
	require.True(t, changed)

	st := e.Snapshot()
	require.Empty(t, st.Items)
	require.Equal(t, models.FilterInterests, st.Filter)
	require.Equal(t, 0, st.PageIndex)
	require.True(t, st.HasMore)

	_, err = e.SetFilter("popular")
	require.ErrorAs(t, err, new(*apperrors.ValidationError))
	require.Equal(t, models.FilterInterests, e.Snapshot().Filter)
}

func TestEvents_LoadFailureKeepsCursor(t *testing.T) {
	t.Parallel()

	e, repo, ex := newEvents(t, models.FilterDate)
	ctx := context.Background()

	gomock.InOrder(
		repo.EXPECT().Discover(gomock.Any(), models.FilterDate, 0).
			Return(models.Page[models.EventItem]{}, &apperrors.NetworkError{Err: fmt.Errorf("timeout")}),
		repo.EXPECT().Discover(gomock.Any(), models.FilterDate, 0).
			Return(models.Page[models.EventItem]{Items: []models.EventItem{ev("1")}}, nil),
	)

	fetch := DiscoverFetch(models.FilterDate)
	require.Error(t, e.LoadNextPage(ctx, fetch))

	st := e.Snapshot()
	require.Error(t, st.Err)
	require.False(t, st.Loading)
	require.Equal(t, 0, st.PageIndex)

	require.NoError(t, e.LoadNextPage(ctx, fetch))
	require.NoError(t, e.Snapshot().Err)
	require.Zero(t, ex.n.Load())
}

func TestEvents_AuthExpiredNotifiesSession(t *testing.T) {
	t.Parallel()

	e, repo, ex := newEvents(t, models.FilterDate)

	repo.EXPECT().Mine(gomock.Any(), 0).
		Return(models.Page[models.EventItem]{}, fmt.Errorf("wrapped: %w", apperrors.ErrAuthExpired))

	err := e.LoadNextPage(context.Background(), MyEventsFetch())
	require.ErrorIs(t, err, apperrors.ErrAuthExpired)
	require.Equal(t, int32(1), ex.n.Load())
}

func TestEvents_CreateEventRefreshes(t *testing.T) {
	t.Parallel()

	e, repo, _ := newEvents(t, models.FilterDate)
	ctx := context.Background()

	start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	draft := models.EventDraft{Name: "Board games", StartDate: start, EndDate: start.Add(24 * time.Hour)}

	gomock.InOrder(
		repo.EXPECT().Create(gomock.Any(), draft).Return(ev("new"), nil),
		repo.EXPECT().Mine(gomock.Any(), 0).
			Return(models.Page[models.EventItem]{Items: []models.EventItem{ev("new"), ev("old")}, HasMore: true}, nil),
	)

	item, err := e.CreateEvent(ctx, draft, MyEventsFetch())
	require.NoError(t, err)
	require.Equal(t, "new", item.ID)

	st := e.Snapshot()
	require.Equal(t, []string{"new", "old"}, eventIDs(st.Items))
	require.Equal(t, 1, st.PageIndex)
}

func TestEvents_CreateEventValidation(t *testing.T) {
	t.Parallel()

	e, _, _ := newEvents(t, models.FilterDate)
	ctx := context.Background()

	_, err := e.CreateEvent(ctx, models.EventDraft{Name: "  "}, MyEventsFetch())
	require.ErrorAs(t, err, new(*apperrors.ValidationError))

	start := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	_, err = e.CreateEvent(ctx, models.EventDraft{
		Name:      "Backwards",
		StartDate: start,
		EndDate:   start.Add(-time.Hour),
	}, MyEventsFetch())
	require.ErrorAs(t, err, new(*apperrors.ValidationError))
}

func TestEvents_Reset(t *testing.T) {
	t.Parallel()

	e, repo, _ := newEvents(t, models.FilterLocation)

	repo.EXPECT().Discover(gomock.Any(), models.FilterLocation, 0).
		Return(models.Page[models.EventItem]{Items: []models.EventItem{ev("1")}}, nil)
	require.NoError(t, e.LoadNextPage(context.Background(), DiscoverFetch(models.FilterLocation)))

	e.Reset()

	st := e.Snapshot()
	require.Empty(t, st.Items)
	require.True(t, st.HasMore)
	require.Equal(t, models.FilterLocation, st.Filter)
}
