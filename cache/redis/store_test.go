package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pilab-dev/helpline/cache"
	"github.com/pilab-dev/helpline/cache/cachetest"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, prefix string) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, prefix), mr
}

func TestStore(t *testing.T) {
	cachetest.RunStoreTests(t, func(t *testing.T) cache.Store {
		s, _ := newTestStore(t, "")
		return s
	})
}

func TestStore_Prefix(t *testing.T) {
	s, mr := newTestStore(t, "helpline:")
	ctx := context.Background()

	require.NoError(t, s.HSet(ctx, "u1:+15550001", map[string]string{"state": "CLEARED"}))
	assert.True(t, mr.Exists("helpline:u1:+15550001"))
	assert.Equal(t, "CLEARED", mr.HGet("helpline:u1:+15550001", "state"))
}

func TestStore_SetNXExpires(t *testing.T) {
	s, mr := newTestStore(t, "")
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "dedup:slack:123", "1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(59 * time.Minute)
	ok, err = s.SetNX(ctx, "dedup:slack:123", "1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = s.SetNX(ctx, "dedup:slack:123", "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Ping(t *testing.T) {
	s, mr := newTestStore(t, "")
	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}

func TestStore_ConnectionErrorsSurface(t *testing.T) {
	s, mr := newTestStore(t, "")
	mr.Close()

	_, err := s.HGetAll(context.Background(), "k")
	assert.Error(t, err)
	_, err = s.Incr(context.Background(), "k")
	assert.Error(t, err)
}
