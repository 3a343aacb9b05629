package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pilab-dev/helpline/cache"
	"github.com/pilab-dev/helpline/cache/cachetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, cleanup time.Duration) *Store {
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "helpline.db"), cleanup)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	cachetest.RunStoreTests(t, func(t *testing.T) cache.Store {
		return openTestStore(t, 0)
	})
}

func TestStore_ExpiredKeysAreAbsent(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "dedup:a", "1", 20*time.Millisecond))
	require.NoError(t, s.Set(ctx, "dedup:b", "1", time.Hour))
	time.Sleep(50 * time.Millisecond)

	_, found, err := s.Get(ctx, "dedup:a")
	require.NoError(t, err)
	assert.False(t, found)

	ok, err := s.SetNX(ctx, "dedup:a", "2", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_DeleteExpired(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", "1", 20*time.Millisecond))
	require.NoError(t, s.Set(ctx, "long", "1", time.Hour))
	require.NoError(t, s.Set(ctx, "forever", "1", 0))
	time.Sleep(50 * time.Millisecond)

	n, err := s.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, found, err := s.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helpline.db")
	ctx := context.Background()

	s, err := NewStore(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.HSet(ctx, "u1:+15550001", map[string]string{"state": "CLEARED"}))
	_, err = s.Incr(ctx, "voterCounterPullNational")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewStore(path, 0)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.HGetAll(ctx, "u1:+15550001")
	require.NoError(t, err)
	assert.Equal(t, "CLEARED", got["state"])

	n, err := s.Incr(ctx, "voterCounterPullNational")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_CleanupLoopStopsOnClose(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "helpline.db"), 10*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "k", "v", time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	assert.NoError(t, s.Close())
}
