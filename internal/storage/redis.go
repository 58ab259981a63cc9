package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	lockKeyPrefix      = "lock:"
)

var (
	_ Locker      = (*RedisLocker)(nil)
	_ RateLimiter = (*RedisRateLimiter)(nil)
)

// RedisLocker makes AcquireOnce hold across every replica sharing the
// Redis instance.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (r *RedisLocker) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+key, strconv.FormatInt(time.Now().Unix(), 10), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// RedisRateLimiter is a fixed-window counter shared across replicas.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	bucket := time.Now().UnixNano() / int64(r.window)
	k := rateLimitKeyPrefix + key + ":" + strconv.FormatInt(bucket, 10)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, r.window+time.Second)
		return nil
	})
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if incr.Val() > int64(r.limit) {
		return RateLimitResult{Allowed: false, RetryAfter: r.window}, nil
	}
	return RateLimitResult{Allowed: true}, nil
}
