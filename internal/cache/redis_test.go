package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/fashionjiok/internal/cache"
)

func setupRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestLikeCount_MissSetInvalidate(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedis(t)

	_, ok, err := c.GetLikeCount(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetLikeCount(ctx, 7, 0))
	n, ok, err := c.GetLikeCount(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok, "a cached zero is a hit")
	assert.Zero(t, n)
	assert.Equal(t, cache.LikeCountTTL, mr.TTL(cache.KeyForLikeCount(7)))

	require.NoError(t, c.InvalidateLikeCount(ctx, 7))
	assert.False(t, mr.Exists(cache.KeyForLikeCount(7)))
}

func TestLikeCount_GarbageIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedis(t)

	require.NoError(t, mr.Set(cache.KeyForLikeCount(1), "not-a-number"))
	_, ok, err := c.GetLikeCount(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCode_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedis(t)

	require.NoError(t, c.SetCode(ctx, "010-1111-2222", "hash", time.Minute))
	hash, ok, err := c.GetCode(ctx, "010-1111-2222")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hash", hash)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.GetCode(ctx, "010-1111-2222")
	require.NoError(t, err)
	assert.False(t, ok, "expired")

	require.NoError(t, c.SetCode(ctx, "010-1111-2222", "hash2", time.Minute))
	require.NoError(t, c.DeleteCode(ctx, "010-1111-2222"))
	_, ok, _ = c.GetCode(ctx, "010-1111-2222")
	assert.False(t, ok)
}

func TestAllow_WindowResets(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedis(t)

	for i := 0; i < 3; i++ {
		ok, err := c.Allow(ctx, "send-code", "010", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := c.Allow(ctx, "send-code", "010", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = c.Allow(ctx, "send-code", "010", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisDown(t *testing.T) {
	c, mr := setupRedis(t)
	mr.Close()

	_, _, err := c.GetLikeCount(context.Background(), 1)
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}
