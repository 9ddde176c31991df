package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/fashionjiok/internal/config"
)

// LikeCountTTL bounds how long a cached liked-you counter may be served.
const LikeCountTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

// NewFromClient wraps an existing client (tests point it at miniredis).
func NewFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForLikeCount generates Redis key for a user's liked-you counter
func KeyForLikeCount(userID uint64) string {
	return fmt.Sprintf("likes:count:%d", userID)
}

func keyForCode(phone string) string {
	return "verify:code:" + phone
}

// GetLikeCount returns the cached counter. ok is false on a cache miss.
func (c *RedisCache) GetLikeCount(ctx context.Context, userID uint64) (count int64, ok bool, err error) {
	key := KeyForLikeCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	count, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		// garbage in the slot: treat as a miss so the caller recomputes
		return 0, false, nil
	}
	return count, true, nil
}

func (c *RedisCache) SetLikeCount(ctx context.Context, userID uint64, count int64) error {
	return c.Client.Set(ctx, KeyForLikeCount(userID), count, LikeCountTTL).Err()
}

// InvalidateLikeCount drops the counter; the next read recomputes it from the DB.
func (c *RedisCache) InvalidateLikeCount(ctx context.Context, userID uint64) error {
	return c.Client.Del(ctx, KeyForLikeCount(userID)).Err()
}

// SetCode stores the hashed verification code for phone, replacing any previous one.
func (c *RedisCache) SetCode(ctx context.Context, phone, hash string, ttl time.Duration) error {
	return c.Client.Set(ctx, keyForCode(phone), hash, ttl).Err()
}

// GetCode returns the stored hash; ok is false when none is pending or it expired.
func (c *RedisCache) GetCode(ctx context.Context, phone string) (hash string, ok bool, err error) {
	hash, err = c.Client.Get(ctx, keyForCode(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

func (c *RedisCache) DeleteCode(ctx context.Context, phone string) error {
	return c.Client.Del(ctx, keyForCode(phone)).Err()
}

// Allow counts one hit against resource/id and reports whether it is within
// limit hits per window. The window starts at the first hit.
func (c *RedisCache) Allow(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := c.Client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(limit), nil
}
