// Package cachetest holds behavior tests every cache.Store backend must pass.
package cachetest

import (
	"context"
	"sync"
	"testing"

	"github.com/pilab-dev/helpline/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests exercises a store returned fresh by newStore for each case.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) cache.Store) {
	t.Run("HashMergeAndRead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.HSet(ctx, "u1:+15550001", map[string]string{"state": "AWAITING_DISCLAIMER", "isDemo": "false"}))
		require.NoError(t, s.HSet(ctx, "u1:+15550001", map[string]string{"state": "AWAITING_REGION", "regionName": ""}))

		got, err := s.HGetAll(ctx, "u1:+15550001")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"state":      "AWAITING_REGION",
			"isDemo":     "false",
			"regionName": "",
		}, got)
	})

	t.Run("HGetAllAbsentIsEmpty", func(t *testing.T) {
		s := newStore(t)
		got, err := s.HGetAll(context.Background(), "missing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("HDelRemovesFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}))
		require.NoError(t, s.HDel(ctx, "h", "a"))
		got, err := s.HGetAll(ctx, "h")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"b": "2"}, got)

		require.NoError(t, s.HDel(ctx, "h", "b"))
		got, err = s.HGetAll(ctx, "h")
		require.NoError(t, err)
		assert.Empty(t, got)

		assert.NoError(t, s.HDel(ctx, "missing", "a"))
	})

	t.Run("GetSet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, found, err := s.Get(ctx, "openPodsPullNorthCarolina")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, s.Set(ctx, "openPodsPullNorthCarolina", `["nc-0","nc-1"]`, 0))
		v, found, err := s.Get(ctx, "openPodsPullNorthCarolina")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, `["nc-0","nc-1"]`, v)
	})

	t.Run("SetNX", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ok, err := s.SetNX(ctx, "dedup:slack:123", "1", 0)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.SetNX(ctx, "dedup:slack:123", "2", 0)
		require.NoError(t, err)
		assert.False(t, ok)

		v, _, err := s.Get(ctx, "dedup:slack:123")
		require.NoError(t, err)
		assert.Equal(t, "1", v)
	})

	t.Run("Incr", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.Incr(ctx, "voterCounterPullNorthCarolina")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = s.Incr(ctx, "voterCounterPullNorthCarolina")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("IncrIsAtomic", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const workers = 20
		var wg sync.WaitGroup
		seen := make(chan int64, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := s.Incr(ctx, "counter")
				assert.NoError(t, err)
				seen <- n
			}()
		}
		wg.Wait()
		close(seen)

		unique := make(map[int64]bool)
		for n := range seen {
			unique[n] = true
		}
		assert.Len(t, unique, workers)
	})

	t.Run("Del", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "a", "1", 0))
		require.NoError(t, s.HSet(ctx, "b", map[string]string{"f": "v"}))
		require.NoError(t, s.Del(ctx, "a", "b", "never-existed"))

		_, found, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, found)
		got, err := s.HGetAll(ctx, "b")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("WrongType", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "plain", "x", 0))
		_, err := s.HGetAll(ctx, "plain")
		assert.ErrorIs(t, err, cache.ErrWrongType)

		require.NoError(t, s.HSet(ctx, "hash", map[string]string{"f": "v"}))
		_, _, err = s.Get(ctx, "hash")
		assert.ErrorIs(t, err, cache.ErrWrongType)
	})
}
