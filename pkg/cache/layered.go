package cache

import (
	"context"
	"encoding/json"
	"time"
)

// LayeredCache reads through an in-process L1 to Redis. Locks always go
// to Redis so they hold across processes.
type LayeredCache struct {
	mem   *MemoryCache
	redis *RedisCache
	l1TTL time.Duration
}

// NewLayeredCache creates a layered cache; l1TTL caps how long a value is
// served from memory.
func NewLayeredCache(redisCache *RedisCache, l1Size int, l1TTL time.Duration) *LayeredCache {
	return &LayeredCache{
		mem:   NewMemoryCache(WithMemoryMaxSize(l1Size)),
		redis: redisCache,
		l1TTL: l1TTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.redis.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, value, lc.memTTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}

	var raw json.RawMessage
	if err := lc.redis.Get(ctx, key, &raw); err != nil {
		return err
	}
	lc.mem.put(key, raw, lc.l1TTL)
	return json.Unmarshal(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.redis.Delete(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.redis.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.redis.Unlock(ctx, key)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	return lc.redis.Close()
}

func (lc *LayeredCache) memTTL(exp time.Duration) time.Duration {
	if exp > 0 && exp < lc.l1TTL {
		return exp
	}
	return lc.l1TTL
}
