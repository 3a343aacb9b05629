package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type memoryEntry struct {
	value  string
	fields map[string]string
	isHash bool
}

// MemoryStore implements Store in process memory using ttlcache.
// Compound operations are serialized by a mutex so SetNX and Incr are atomic.
type MemoryStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *memoryEntry]
}

// NewMemoryStore creates a new in-memory store with automatic expiry of
// TTL-bound keys.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *memoryEntry](),
	)

	go cache.Start()

	return &MemoryStore{cache: cache}
}

// lookup returns the live entry for key. Callers hold s.mu.
func (s *MemoryStore) lookup(key string) *memoryEntry {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil
	}
	return item.Value()
}

// HGetAll implements Store.HGetAll.
func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	entry := s.lookup(key)
	if entry == nil {
		return out, nil
	}
	if !entry.isHash {
		return nil, ErrWrongType
	}
	for k, v := range entry.fields {
		out[k] = v
	}
	return out, nil
}

// HSet implements Store.HSet.
func (s *MemoryStore) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.lookup(key)
	if entry == nil {
		entry = &memoryEntry{isHash: true, fields: make(map[string]string, len(fields))}
		s.cache.Set(key, entry, ttlcache.NoTTL)
	} else if !entry.isHash {
		return ErrWrongType
	}
	for k, v := range fields {
		entry.fields[k] = v
	}
	return nil
}

// HDel implements Store.HDel.
func (s *MemoryStore) HDel(_ context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.lookup(key)
	if entry == nil {
		return nil
	}
	if !entry.isHash {
		return ErrWrongType
	}
	for _, f := range fields {
		delete(entry.fields, f)
	}
	if len(entry.fields) == 0 {
		s.cache.Delete(key)
	}
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.lookup(key)
	if entry == nil {
		return "", false, nil
	}
	if entry.isHash {
		return "", false, ErrWrongType
	}
	return entry.value, true, nil
}

// Set implements Store.Set.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(key, &memoryEntry{value: value}, ttlFor(ttl))
	return nil
}

// SetNX implements Store.SetNX.
func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) != nil {
		return false, nil
	}
	s.cache.Set(key, &memoryEntry{value: value}, ttlFor(ttl))
	return true, nil
}

// Incr implements Store.Incr.
func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	ttl := ttlcache.NoTTL
	if item := s.cache.Get(key); item != nil && !item.IsExpired() {
		entry := item.Value()
		if entry.isHash {
			return 0, ErrWrongType
		}
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, ErrWrongType
		}
		n = parsed
		if !item.ExpiresAt().IsZero() {
			ttl = time.Until(item.ExpiresAt())
		}
	}
	n++
	s.cache.Set(key, &memoryEntry{value: strconv.FormatInt(n, 10)}, ttl)
	return n, nil
}

// Del implements Store.Del.
func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.cache.Delete(k)
	}
	return nil
}

// Len counts the keys held, expired ones included until cleanup runs.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.cache.Stop()

	return nil
}

func ttlFor(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.NoTTL
	}
	return ttl
}
