// Package routing keeps the per-region lists of open pods and picks the pod
// a new or rerouted session goes to.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/pilab-dev/helpline/cache"
	"github.com/pilab-dev/helpline/domain"
	"github.com/rs/zerolog/log"
)

// PodListKey is "openPods{EntryPoint}{Demo?}{RegionNoSpaces}".
func PodListKey(ep domain.EntryPoint, demo bool, group string) string {
	return "openPods" + keySuffix(ep, demo, group)
}

// CounterKey is "voterCounter{EntryPoint}{Demo?}{RegionNoSpaces}".
func CounterKey(ep domain.EntryPoint, demo bool, group string) string {
	return "voterCounter" + keySuffix(ep, demo, group)
}

func keySuffix(ep domain.EntryPoint, demo bool, group string) string {
	var b strings.Builder
	b.WriteString(ep.Title())
	if demo {
		b.WriteString("Demo")
	}
	b.WriteString(strings.ReplaceAll(group, " ", ""))
	return b.String()
}

// Registry stores the ordered lists of open pods.
type Registry struct {
	kv      cache.Store
	regions *Regions
}

// NewRegistry creates a registry over kv.
func NewRegistry(kv cache.Store, regions *Regions) *Registry {
	return &Registry{kv: kv, regions: regions}
}

// Regions returns the region table the registry resolves names with.
func (r *Registry) Regions() *Regions {
	return r.regions
}

// OpenPods returns the pod names accepting sessions for a region group.
// A missing list is returned as empty.
func (r *Registry) OpenPods(ctx context.Context, regionOrAlias string, ep domain.EntryPoint, demo bool) ([]string, error) {
	return r.list(ctx, PodListKey(ep, demo, r.regions.Group(regionOrAlias)))
}

func (r *Registry) list(ctx context.Context, key string) ([]string, error) {
	raw, found, err := r.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read pod list %s: %w", key, err)
	}
	if !found || raw == "" {
		return nil, nil
	}
	var pods []string
	if err := json.Unmarshal([]byte(raw), &pods); err != nil {
		return nil, fmt.Errorf("failed to decode pod list %s: %w", key, err)
	}
	return pods, nil
}

func (r *Registry) writeList(ctx context.Context, key string, pods []string) error {
	if pods == nil {
		pods = []string{}
	}
	raw, err := json.Marshal(pods)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, key, string(raw), 0); err != nil {
		return fmt.Errorf("failed to write pod list %s: %w", key, err)
	}
	return nil
}

// SetPodState opens a pod for exactly the given entry points, closing it for
// the others. An empty entryPoints closes the pod. The pod is first removed
// from every entry-point list and then re-inserted; the two steps are not
// atomic, and a crash in between leaves the pod in fewer lists until the
// next call.
func (r *Registry) SetPodState(ctx context.Context, regionCode, podName string, entryPoints []domain.EntryPoint) error {
	if podName == "" {
		return fmt.Errorf("pod name is required")
	}
	group := r.regions.Group(regionCode)
	demo := domain.IsDemoPod(podName)

	for _, ep := range domain.EntryPoints {
		key := PodListKey(ep, demo, group)
		pods, err := r.list(ctx, key)
		if err != nil {
			return err
		}
		kept := pods[:0]
		for _, p := range pods {
			if p != podName {
				kept = append(kept, p)
			}
		}
		if err := r.writeList(ctx, key, kept); err != nil {
			return err
		}
	}

	for _, ep := range entryPoints {
		key := PodListKey(ep, demo, group)
		pods, err := r.list(ctx, key)
		if err != nil {
			return err
		}
		if slices.Contains(pods, podName) {
			continue
		}
		if err := r.writeList(ctx, key, append(pods, podName)); err != nil {
			return err
		}
	}

	log.Ctx(ctx).Info().
		Str("region", group).
		Str("pod", podName).
		Interface("entry_points", entryPoints).
		Msg("pod state updated")
	return nil
}

// Pods lists the pods of a region group with the entry points they accept.
func (r *Registry) Pods(ctx context.Context, regionOrAlias string, demo bool) ([]domain.Pod, error) {
	group := r.regions.Group(regionOrAlias)
	byName := make(map[string]*domain.Pod)
	var order []string
	for _, ep := range domain.EntryPoints {
		pods, err := r.list(ctx, PodListKey(ep, demo, group))
		if err != nil {
			return nil, err
		}
		for _, name := range pods {
			p, ok := byName[name]
			if !ok {
				p = &domain.Pod{Name: name, RegionCode: r.regions.Code(group), Demo: demo}
				byName[name] = p
				order = append(order, name)
			}
			p.EntryPoints = append(p.EntryPoints, ep)
		}
	}
	out := make([]domain.Pod, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}
