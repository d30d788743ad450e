package memory

import (
	"context"
	"testing"

	"github.com/pribylovaa/campus-sync/internal/storage"
	"github.com/stretchr/testify/require"
)

var _ storage.SecureStorage = (*Storage)(nil)

func TestStorage_SetGetRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	_, ok, err := s.GetItem(ctx, "access_token")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.MultiSet(ctx, map[string]string{"access_token": "a", "refresh_token": "r"}))
	v, ok, err := s.GetItem(ctx, "refresh_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "r", v)

	require.NoError(t, s.MultiRemove(ctx, "access_token", "refresh_token", "missing"))
	require.Equal(t, 0, s.Len())
}

func TestStorage_EmptyKeyRejectedAtomically(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	err := s.MultiSet(ctx, map[string]string{"a": "1", "": "2"})
	require.ErrorIs(t, err, storage.ErrEmptyKey)
	require.Equal(t, 0, s.Len())
}

func TestStorage_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, New().SetItem(ctx, "k", "v"), context.Canceled)
}
