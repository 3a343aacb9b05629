package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pilab-dev/helpline/cache"
	"github.com/pilab-dev/helpline/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *cache.MemoryStore) {
	kv := cache.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })
	return NewRegistry(kv, NewRegions(nil)), kv
}

func TestBalancer_RoundRobin(t *testing.T) {
	reg, kv := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "openPodsPullNorthCarolina", `["nc-0","nc-1"]`, 0))

	b := NewBalancer(reg)
	assert.Equal(t, "nc-0", b.SelectPod(ctx, "North Carolina", domain.EntryPointPull, false))
	assert.Equal(t, "nc-1", b.SelectPod(ctx, "NC", domain.EntryPointPull, false))
	assert.Equal(t, "nc-0", b.SelectPod(ctx, "north carolina", domain.EntryPointPull, false))

	counter, _, err := kv.Get(ctx, "voterCounterPullNorthCarolina")
	require.NoError(t, err)
	assert.Equal(t, "3", counter)
}

func TestBalancer_TwoAssignmentsAdvanceCounterToTwo(t *testing.T) {
	reg, kv := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "openPodsPullNorthCarolina", `["nc-0","nc-1"]`, 0))

	b := NewBalancer(reg)
	first := b.SelectPod(ctx, "North Carolina", domain.EntryPointPull, false)
	second := b.SelectPod(ctx, "North Carolina", domain.EntryPointPull, false)
	assert.Equal(t, []string{"nc-0", "nc-1"}, []string{first, second})

	counter, _, err := kv.Get(ctx, "voterCounterPullNorthCarolina")
	require.NoError(t, err)
	assert.Equal(t, "2", counter)
}

func TestBalancer_FallsBackToOverflow(t *testing.T) {
	reg, kv := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "openPodsPullNational", `["national-a","national-b"]`, 0))

	b := NewBalancer(reg)
	assert.Equal(t, "national-a", b.SelectPod(ctx, "Wyoming", domain.EntryPointPull, false))
	assert.Equal(t, "national-b", b.SelectPod(ctx, "Wyoming", domain.EntryPointPull, false))

	n, _, err := kv.Get(ctx, "voterCounterPullNational")
	require.NoError(t, err)
	assert.Equal(t, "2", n, "the counter of the list actually used advances")
	_, found, err := kv.Get(ctx, "voterCounterPullWyoming")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBalancer_SyntheticOverflowPod(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	b := NewBalancer(reg)

	assert.Equal(t, "national-0", b.SelectPod(ctx, "Wyoming", domain.EntryPointPull, false))
	assert.Equal(t, "demo-national-0", b.SelectPod(ctx, "Wyoming", domain.EntryPointPull, true))
	assert.Equal(t, "national-0", b.SelectPod(ctx, OverflowRegion, domain.EntryPointPush, false))
}

func TestBalancer_EmptyRegion(t *testing.T) {
	reg, _ := newTestRegistry(t)
	assert.Equal(t, "", NewBalancer(reg).SelectPod(context.Background(), "", domain.EntryPointPull, false))
}

func TestBalancer_KeysSeparateEntryPointAndDemo(t *testing.T) {
	reg, kv := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "openPodsPushNorthCarolina", `["nc-push"]`, 0))
	require.NoError(t, kv.Set(ctx, "openPodsPullDemoNorthCarolina", `["demo-nc"]`, 0))

	b := NewBalancer(reg)
	assert.Equal(t, "nc-push", b.SelectPod(ctx, "NC", domain.EntryPointPush, false))
	assert.Equal(t, "demo-nc", b.SelectPod(ctx, "NC", domain.EntryPointPull, true))
}

func TestBalancer_RegionGroups(t *testing.T) {
	kv := cache.NewMemoryStore()
	defer kv.Close()
	ctx := context.Background()
	reg := NewRegistry(kv, NewRegions(map[string]string{"North Dakota": "Dakotas", "South Dakota": "Dakotas"}))
	require.NoError(t, kv.Set(ctx, "openPodsPullDakotas", `["dak-0"]`, 0))

	b := NewBalancer(reg)
	assert.Equal(t, "dak-0", b.SelectPod(ctx, "SD", domain.EntryPointPull, false))
	assert.Equal(t, "dak-0", b.SelectPod(ctx, "North Dakota", domain.EntryPointPull, false))
}

// failingStore fails every operation it is told to.
type failingStore struct {
	mock.Mock
	cache.Store
}

func (f *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := f.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (f *failingStore) Incr(ctx context.Context, key string) (int64, error) {
	args := f.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func TestBalancer_StoreFailuresDegrade(t *testing.T) {
	kv := new(failingStore)
	kv.On("Get", mock.Anything, "openPodsPullNorthCarolina").Return("", false, errors.New("connection refused"))
	kv.On("Get", mock.Anything, "openPodsPullNational").Return(`["national-a","national-b"]`, true, nil)
	kv.On("Incr", mock.Anything, "voterCounterPullNational").Return(int64(0), errors.New("connection refused"))

	b := NewBalancer(NewRegistry(kv, NewRegions(nil)))
	assert.Equal(t, "national-a", b.SelectPod(context.Background(), "NC", domain.EntryPointPull, false))
	kv.AssertExpectations(t)
}

func TestBalancer_ConcurrentAssignmentsSpread(t *testing.T) {
	reg, kv := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "openPodsPullOhio", `["oh-0","oh-1","oh-2"]`, 0))
	b := NewBalancer(reg)

	counts := make(map[string]int)
	results := make(chan string, 30)
	for i := 0; i < 30; i++ {
		go func() { results <- b.SelectPod(ctx, "Ohio", domain.EntryPointPull, false) }()
	}
	timeout := time.After(5 * time.Second)
	for i := 0; i < 30; i++ {
		select {
		case pod := <-results:
			counts[pod]++
		case <-timeout:
			t.Fatal("timed out waiting for assignments")
		}
	}
	assert.Equal(t, map[string]int{"oh-0": 10, "oh-1": 10, "oh-2": 10}, counts)
}
