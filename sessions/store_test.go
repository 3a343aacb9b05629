package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/pilab-dev/helpline/cache"
	"github.com/pilab-dev/helpline/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *cache.MemoryStore) {
	kv := cache.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })
	return NewStore(kv), kv
}

func TestStore_SaveAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	sess := &domain.Session{
		UserID:              "u1",
		OriginNumber:        "+15550001",
		ContactAddress:      "+19195550100",
		EntryPoint:          domain.EntryPointPush,
		IsDemo:              true,
		State:               domain.StateCleared,
		ConfirmedDisclaimer: true,
		RegionName:          "North Carolina",
		ActivePodID:         "C-NC1",
		ActivePodName:       "demo-nc-1",
		Threads:             map[string]string{"C-LOBBY": "T1", "C-NC1": "T2"},
		Status:              domain.ThreadActive,
		ClaimedBy:           "op-7",
		VolunteerEngaged:    true,
		LastMessageAt:       start.Add(time.Minute),
		SessionStartAt:      start,
	}
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Get(ctx, "u1:+15550001")
	require.NoError(t, err)
	assert.Equal(t, sess, got)
	assert.Equal(t, "T2", got.ActiveThreadID())
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), "nobody:+15550001")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStore_PutMerges(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "u1:+15550001", Fields{
		FieldState:          string(domain.StateAwaitingRegion),
		FieldRegionAttempts: 1,
	}))
	require.NoError(t, s.Put(ctx, "u1:+15550001", Fields{FieldRegionAttempts: 2}))

	got, err := s.Get(ctx, "u1:+15550001")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingRegion, got.State)
	assert.Equal(t, 2, got.RegionSelectionAttempts)
}

func TestStore_PutRejectsUnsupportedTypes(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Put(context.Background(), "k", Fields{"bad": []string{"x"}})
	assert.ErrorIs(t, err, ErrUnsupportedFieldType)
}

func TestStore_LegacyRecord(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()

	// Written before state, userId and the epoch fields existed.
	require.NoError(t, kv.HSet(ctx, "u9:+15550002", map[string]string{
		"confirmedDisclaimer": "true",
		"regionName":          "Ohio",
		"activePodId":         "C-OH",
		"thread:C-OH":         "T77",
	}))

	got, err := s.Get(ctx, "u9:+15550002")
	require.NoError(t, err)
	assert.Equal(t, "u9", got.UserID)
	assert.Equal(t, "+15550002", got.OriginNumber)
	assert.Equal(t, domain.EntryPointPull, got.EntryPoint)
	assert.Equal(t, domain.StateCleared, got.State)
	assert.Equal(t, "T77", got.ActiveThreadID())
	assert.True(t, got.IsStale())
}

func TestStore_FractionalEpoch(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, kv.HSet(ctx, "u1:+1", map[string]string{
		"state":             "CLEARED",
		"sessionStartEpoch": "1700000000.25",
	}))
	got, err := s.Get(ctx, "u1:+1")
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), got.SessionStartAt.Unix())
}

func TestStore_ThreadLookup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	ref := domain.ThreadRef{ContactAddress: "+19195550100", OriginNumber: "+15550001", UserID: "u1"}

	require.NoError(t, s.PutThread(ctx, "C-NC1", "T2", ref))
	got, err := s.LookupThread(ctx, "C-NC1", "T2")
	require.NoError(t, err)
	assert.Equal(t, ref, got)
	assert.Equal(t, "u1:+15550001", got.SessionKey())

	require.NoError(t, s.DeleteThread(ctx, "C-NC1", "T2"))
	_, err = s.LookupThread(ctx, "C-NC1", "T2")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "u1:+1", Fields{FieldState: "CLEARED"}))
	require.NoError(t, s.Delete(ctx, "u1:+1"))
	_, err := s.Get(ctx, "u1:+1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestThreadKey(t *testing.T) {
	assert.Equal(t, "C-NC1:T2", ThreadKey("C-NC1", "T2"))
}
