package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, "atlas", zap.NewNop()), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "stats", map[string]interface{}{"totalNodes": float64(12)}, 60))

	value, ok := c.Get(ctx, "stats")
	require.True(t, ok)
	stats, ok := value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(12), stats["totalNodes"])
}

func TestRedisCacheMissOnUnknownKey(t *testing.T) {
	c, _ := newTestCache(t)

	_, ok := c.Get(context.Background(), "absent")
	assert.False(t, ok)
}

func TestRedisCacheExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "stats", "cached", 30))
	mr.FastForward(31 * time.Second)

	_, ok := c.Get(ctx, "stats")
	assert.False(t, ok)
}

func TestRedisCacheDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "stats", "cached", 0))
	require.NoError(t, c.Delete(ctx, "stats"))

	_, ok := c.Get(ctx, "stats")
	assert.False(t, ok)
}

func TestRedisCacheClearRemovesOnlyPrefixedKeys(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "stats", "cached", 0))
	require.NoError(t, c.Set(ctx, "metrics", "cached", 0))
	mr.Set("other:key", "kept")

	require.NoError(t, c.Clear(ctx))

	_, ok := c.Get(ctx, "stats")
	assert.False(t, ok)
	assert.True(t, mr.Exists("other:key"))
}
