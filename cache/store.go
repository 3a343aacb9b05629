package cache

import (
	"context"
	"errors"
	"time"
)

// ErrWrongType is returned when a key holds a value of another kind,
// for example HGetAll on a plain string key.
var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

// Store is the key/value substrate shared by the session store, the pod
// registry and the deduplicator. Absent keys are never an error.
type Store interface {
	// HGetAll returns every field of a hash; an empty map when absent.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HSet merges fields into a hash, creating it if needed.
	HSet(ctx context.Context, key string, fields map[string]string) error
	HDel(ctx context.Context, key string, fields ...string) error

	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores a plain value. A zero ttl never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Incr atomically increments an integer key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	Del(ctx context.Context, keys ...string) error
}
