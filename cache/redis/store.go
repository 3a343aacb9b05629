package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pilab-dev/helpline/cache"
	"github.com/redis/go-redis/v9"
)

// Store implements cache.Store on Redis. Key names are used verbatim so
// records stay readable by other services sharing the keyspace; prefix is
// prepended when set.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewStore creates a new [Store] instance.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the Redis key for a store key.
func (r *Store) redisKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + key
}

// HGetAll implements cache.Store.HGetAll.
func (r *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := r.client.HGetAll(ctx, r.redisKey(key)).Result()
	if err != nil {
		return nil, wrap("hgetall", key, err)
	}
	return res, nil
}

// HSet implements cache.Store.HSet.
func (r *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	if err := r.client.HSet(ctx, r.redisKey(key), values...).Err(); err != nil {
		return wrap("hset", key, err)
	}
	return nil
}

// HDel implements cache.Store.HDel.
func (r *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, r.redisKey(key), fields...).Err(); err != nil {
		return wrap("hdel", key, err)
	}
	return nil
}

// Get implements cache.Store.Get.
func (r *Store) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("get", key, err)
	}
	return res, true, nil
}

// Set implements cache.Store.Set.
func (r *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.redisKey(key), value, ttl).Err(); err != nil {
		return wrap("set", key, err)
	}
	return nil
}

// SetNX implements cache.Store.SetNX.
func (r *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.redisKey(key), value, ttl).Result()
	if err != nil {
		return false, wrap("setnx", key, err)
	}
	return ok, nil
}

// Incr implements cache.Store.Incr.
func (r *Store) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, r.redisKey(key)).Result()
	if err != nil {
		return 0, wrap("incr", key, err)
	}
	return n, nil
}

// Del implements cache.Store.Del.
func (r *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = r.redisKey(k)
	}
	if err := r.client.Del(ctx, redisKeys...).Err(); err != nil {
		return wrap("del", keys[0], err)
	}
	return nil
}

// Ping checks connectivity, used by health checks.
func (r *Store) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func wrap(op, key string, err error) error {
	if isWrongType(err) {
		return fmt.Errorf("redis %s %s: %w", op, key, cache.ErrWrongType)
	}
	return fmt.Errorf("redis %s %s: %w", op, key, err)
}

func isWrongType(err error) bool {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return strings.HasPrefix(rerr.Error(), "WRONGTYPE")
	}
	return false
}

var _ cache.Store = (*Store)(nil)
