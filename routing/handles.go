package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pilab-dev/helpline/domain"
	"github.com/rs/zerolog/log"
)

// PodDirectory is the part of the chat gateway that knows pod handles.
type PodDirectory interface {
	ListAllPods(ctx context.Context) (map[string]string, error)
	ResolvePodHandleByName(ctx context.Context, name string) (string, error)
}

// HandleCache maps pod names to chat handles.
type HandleCache struct {
	dir   PodDirectory
	cache *ttlcache.Cache[string, string]
	// refresh serializes full directory refreshes.
	refresh sync.Mutex
}

// NewHandleCache creates a cache whose entries live for ttl.
func NewHandleCache(dir PodDirectory, ttl time.Duration) *HandleCache {
	return &HandleCache{
		dir: dir,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

func (h *HandleCache) cached(name string) string {
	item := h.cache.Get(name)
	if item == nil || item.IsExpired() {
		return ""
	}
	return item.Value()
}

// Resolve returns the handle of a pod. On a miss it refreshes the whole
// name→handle map from the directory, then asks the directory for the single
// name. It returns domain.ErrPodNotFound when the pod is unknown.
func (h *HandleCache) Resolve(ctx context.Context, name string) (string, error) {
	if handle := h.cached(name); handle != "" {
		return handle, nil
	}

	if err := h.Refresh(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("pod directory refresh failed")
	}
	if handle := h.cached(name); handle != "" {
		return handle, nil
	}

	handle, err := h.dir.ResolvePodHandleByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrPodNotFound, name, err)
	}
	if handle == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrPodNotFound, name)
	}
	h.cache.Set(name, handle, ttlcache.DefaultTTL)
	return handle, nil
}

// Refresh reloads every pod handle from the directory.
func (h *HandleCache) Refresh(ctx context.Context) error {
	h.refresh.Lock()
	defer h.refresh.Unlock()

	pods, err := h.dir.ListAllPods(ctx)
	if err != nil {
		return err
	}
	for name, handle := range pods {
		h.cache.Set(name, handle, ttlcache.DefaultTTL)
	}
	log.Ctx(ctx).Debug().Int("pods", len(pods)).Msg("pod handle cache refreshed")
	return nil
}

// Len reports how many handles are cached.
func (h *HandleCache) Len() int {
	return h.cache.Len()
}
