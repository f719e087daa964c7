// Package cache implements a Redis-backed cache-aside helper. The cache is an
// optimization only: every failure path falls through to the fetch function.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

type Cache struct {
	client *redis.Client
}

// New wraps client. A nil client yields a pass-through cache.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Available reports whether a Redis connection is configured.
func (c *Cache) Available() bool {
	return c != nil && c.client != nil
}

// GetOrSet returns the cached value for key, or calls fetch, stores its result
// for ttl and returns it. Fetch errors are returned and nothing is stored.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if !c.Available() {
		return fetch(ctx)
	}

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var value T
		if jsonErr := json.Unmarshal([]byte(raw), &value); jsonErr == nil {
			return value, nil
		} else {
			log.Printf("[CACHE] Discarding corrupt entry %s: %v", key, jsonErr)
		}
	case errors.Is(err, redis.Nil):
	default:
		log.Printf("[CACHE] Get %s failed, bypassing cache: %v", key, err)
		return fetch(ctx)
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[CACHE] Cannot encode %s: %v", key, err)
		return value, nil
	}

	if err := c.client.Set(ctx, key, string(data), ttl).Err(); err != nil {
		log.Printf("[CACHE] Set %s failed: %v", key, err)
	}
	return value, nil
}

// Invalidate removes keys. Failures are logged and ignored.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Available() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[CACHE] Invalidate %v failed: %v", keys, err)
	}
}
