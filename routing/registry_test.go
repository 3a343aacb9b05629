package routing

import (
	"context"
	"testing"

	"github.com/pilab-dev/helpline/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPodListKey(t *testing.T) {
	assert.Equal(t, "openPodsPullNorthCarolina", PodListKey(domain.EntryPointPull, false, "North Carolina"))
	assert.Equal(t, "openPodsPushDemoNational", PodListKey(domain.EntryPointPush, true, "National"))
	assert.Equal(t, "voterCounterPullDemoNewYork", CounterKey(domain.EntryPointPull, true, "New York"))
}

func TestRegistry_SetPodState(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	both := []domain.EntryPoint{domain.EntryPointPull, domain.EntryPointPush}

	require.NoError(t, reg.SetPodState(ctx, "NC", "nc-0", both))
	require.NoError(t, reg.SetPodState(ctx, "NC", "nc-1", []domain.EntryPoint{domain.EntryPointPull}))
	// Reopening must not duplicate.
	require.NoError(t, reg.SetPodState(ctx, "NC", "nc-0", both))

	pull, err := reg.OpenPods(ctx, "North Carolina", domain.EntryPointPull, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"nc-1", "nc-0"}, pull)

	push, err := reg.OpenPods(ctx, "North Carolina", domain.EntryPointPush, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"nc-0"}, push)
}

func TestRegistry_SetPodStateNarrowsAndCloses(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.SetPodState(ctx, "OH", "oh-0", []domain.EntryPoint{domain.EntryPointPull, domain.EntryPointPush}))
	require.NoError(t, reg.SetPodState(ctx, "OH", "oh-0", []domain.EntryPoint{domain.EntryPointPush}))

	pull, err := reg.OpenPods(ctx, "Ohio", domain.EntryPointPull, false)
	require.NoError(t, err)
	assert.Empty(t, pull)
	push, err := reg.OpenPods(ctx, "Ohio", domain.EntryPointPush, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"oh-0"}, push)

	require.NoError(t, reg.SetPodState(ctx, "OH", "oh-0", nil))
	pods, err := reg.Pods(ctx, "Ohio", false)
	require.NoError(t, err)
	assert.Empty(t, pods)
}

func TestRegistry_DemoPodsUseDemoLists(t *testing.T) {
	reg, kv := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.SetPodState(ctx, "NC", "demo-nc-0", []domain.EntryPoint{domain.EntryPointPull}))

	raw, found, err := kv.Get(ctx, "openPodsPullDemoNorthCarolina")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `["demo-nc-0"]`, raw)

	live, err := reg.OpenPods(ctx, "NC", domain.EntryPointPull, false)
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestRegistry_Pods(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.SetPodState(ctx, "NC", "nc-0", []domain.EntryPoint{domain.EntryPointPull, domain.EntryPointPush}))
	require.NoError(t, reg.SetPodState(ctx, "NC", "nc-1", []domain.EntryPoint{domain.EntryPointPush}))

	pods, err := reg.Pods(ctx, "North Carolina", false)
	require.NoError(t, err)
	assert.Equal(t, []domain.Pod{
		{Name: "nc-0", RegionCode: "NC", EntryPoints: []domain.EntryPoint{domain.EntryPointPush, domain.EntryPointPull}},
		{Name: "nc-1", RegionCode: "NC", EntryPoints: []domain.EntryPoint{domain.EntryPointPush}},
	}, pods)
}

func TestRegistry_RequiresPodName(t *testing.T) {
	reg, _ := newTestRegistry(t)
	assert.Error(t, reg.SetPodState(context.Background(), "NC", "", nil))
}
