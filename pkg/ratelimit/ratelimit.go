// Package ratelimit enforces per-credential request budgets over a fixed
// one-minute window backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const window = time.Minute

// Limiter answers whether one more request fits under a key's budget.
type Limiter interface {
	Allow(ctx context.Context, key string, limitPerMin int) (bool, error)
}

// RedisLimiter counts requests per key in the current minute bucket. Counts
// live only in Redis, so every API replica shares the same budget.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow increments the key's bucket and compares against the limit. A limit
// of zero or less means unlimited.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limitPerMin int) (bool, error) {
	if limitPerMin <= 0 {
		return true, nil
	}

	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(window.Seconds()))

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, bucket)
	// Two windows so a bucket created at the edge of a minute still expires.
	pipe.Expire(ctx, bucket, 2*window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return count.Val() <= int64(limitPerMin), nil
}

// NoopLimiter allows everything. Used when no Redis address is configured.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string, int) (bool, error) {
	return true, nil
}
