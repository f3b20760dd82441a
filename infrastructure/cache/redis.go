// Package cache provides the Redis-backed cache used when a Redis
// endpoint is configured; local development falls back to the in-process
// cache in the di package.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"atlas-graph/application/ports"
)

// Values are JSON-encoded. Get returns a decoded interface{}, so callers
// that cached a struct read back a map; the query handlers only cache
// map-shaped summaries, which round-trip cleanly.
const defaultTTL = 5 * time.Minute

// RedisCache implements ports.Cache on go-redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

var _ ports.Cache = (*RedisCache)(nil)

// NewRedisCache creates a new RedisCache
func NewRedisCache(client *redis.Client, prefix string, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, logger: logger}
}

func (c *RedisCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get retrieves a value. Backend errors are treated as misses; the cache
// never takes down a read path.
func (c *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Warn("Cache entry undecodable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return value, true
}

// Set stores a value with the given TTL in seconds; zero uses the
// default.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	expiry := defaultTTL
	if ttl > 0 {
		expiry = time.Duration(ttl) * time.Second
	}
	return c.client.Set(ctx, c.key(key), raw, expiry).Err()
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// Clear removes every key under the cache prefix, scanning in batches so
// a large keyspace never blocks the server.
func (c *RedisCache) Clear(ctx context.Context) error {
	pattern := c.key("*")
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
