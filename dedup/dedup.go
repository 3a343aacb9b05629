// Package dedup guards side effects against retried deliveries.
package dedup

import (
	"context"
	"time"

	"github.com/pilab-dev/helpline/cache"
	"github.com/pilab-dev/helpline/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	// KeyPrefix namespaces deduplication keys in the shared keyspace.
	KeyPrefix = "dedup:"
	// DefaultTTL is how long a claimed key suppresses duplicates.
	DefaultTTL = time.Hour
)

// Deduplicator records first use of caller-supplied keys.
type Deduplicator struct {
	kv  cache.Store
	ttl time.Duration
}

// New creates a deduplicator. A non-positive ttl uses DefaultTTL.
func New(kv cache.Store, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Deduplicator{kv: kv, ttl: ttl}
}

// Claim reports whether this call is the first use of key within the TTL
// window. Store failures fail open: a duplicate send is preferred over a
// dropped message.
func (d *Deduplicator) Claim(ctx context.Context, key string) bool {
	ok, err := d.kv.SetNX(ctx, KeyPrefix+key, "1", d.ttl)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("dedup check failed, allowing event")
		return true
	}
	if !ok {
		metrics.DuplicateEventsTotal.Inc()
		log.Ctx(ctx).Debug().Str("key", key).Msg("duplicate event suppressed")
	}
	return ok
}

// Release forgets a claimed key so a redelivery of the event is processed
// again. Failures are logged; the key then expires with its TTL.
func (d *Deduplicator) Release(ctx context.Context, key string) {
	if err := d.kv.Del(ctx, KeyPrefix+key); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to release dedup key")
	}
}
