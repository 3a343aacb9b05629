package routing

import (
	"context"
	"strconv"

	"github.com/pilab-dev/helpline/domain"
	"github.com/pilab-dev/helpline/internal/metrics"
	"github.com/rs/zerolog/log"
)

// SyntheticOverflowPod is used when not even the overflow region has open
// pods, e.g. "national-0" or "demo-national-0".
func SyntheticOverflowPod(demo bool) string {
	return domain.DemoName("national-0", demo)
}

// Balancer assigns sessions to pods round-robin. It keeps no state of its
// own: the counter lives in the store and is advanced with an atomic
// increment. Two concurrent calls can still observe lists and counters that
// are a step apart; the resulting skew corrects itself over later calls.
type Balancer struct {
	registry *Registry
}

// NewBalancer creates a balancer over the registry.
func NewBalancer(registry *Registry) *Balancer {
	return &Balancer{registry: registry}
}

// SelectPod returns the next pod for a region, or "" when regionOrAlias is
// empty. Store failures fall back to the overflow lists and to index 0
// rather than failing the assignment. The counter advances exactly once per
// call, whether or not the pod later resolves to a live handle.
func (b *Balancer) SelectPod(ctx context.Context, regionOrAlias string, ep domain.EntryPoint, demo bool) string {
	if regionOrAlias == "" {
		return ""
	}
	logger := log.Ctx(ctx)
	group := b.registry.regions.Group(regionOrAlias)

	counterGroup := group
	pods, err := b.registry.list(ctx, PodListKey(ep, demo, group))
	if err != nil {
		logger.Warn().Err(err).Str("region", group).Msg("pod list unavailable, using overflow")
	}
	if len(pods) == 0 && group != OverflowRegion {
		overflow, err := b.registry.list(ctx, PodListKey(ep, demo, OverflowRegion))
		if err != nil {
			logger.Warn().Err(err).Msg("overflow pod list unavailable")
		}
		if len(overflow) > 0 {
			pods = overflow
			counterGroup = OverflowRegion
		}
	}
	if len(pods) == 0 {
		pods = []string{SyntheticOverflowPod(demo)}
	}

	n, err := b.registry.kv.Incr(ctx, CounterKey(ep, demo, counterGroup))
	if err != nil {
		logger.Warn().Err(err).Str("region", counterGroup).Msg("round-robin counter unavailable, using first pod")
		n = 1
	}
	selected := pods[int((n-1)%int64(len(pods)))]

	metrics.PodAssignmentsTotal.WithLabelValues(counterGroup, string(ep), strconv.FormatBool(demo)).Inc()
	logger.Debug().
		Str("region", group).
		Str("entry_point", string(ep)).
		Bool("demo", demo).
		Int64("counter", n).
		Str("pod", selected).
		Msg("pod selected")
	return selected
}
