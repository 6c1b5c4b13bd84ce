package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the attempt ceiling with a keyed counter and TTL in
// Redis, so the quota holds across processes. It uses a fixed window: the
// counter expires window seconds after the first attempt in the window.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int
	window time.Duration
}

// NewRedisLimiter allows max attempts per key within the window.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisLimiter{client: client, prefix: "share_pw_attempts", max: max, window: window}
}

// Attempt increments the counter and checks it against the ceiling. The
// increment happens before the check, which matches the contract: a rejected
// attempt still counted, and the window frees up only as the TTL lapses.
func (l *RedisLimiter) Attempt(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("increment attempt counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("set attempt counter ttl: %w", err)
		}
	}

	if count > int64(l.max) {
		ttl, err := l.client.TTL(ctx, redisKey).Result()
		if err != nil || ttl <= 0 {
			ttl = l.window
		}
		return false, ttl, nil
	}

	return true, 0, nil
}
