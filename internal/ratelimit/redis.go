package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hackid/pkg/rediskey"
)

// RedisLimiter implements a fixed 60-second window shared across instances.
// The fixed window admits at most limitRPM requests per window, which keeps
// any trailing 60-second interval within one window of the budget.
type RedisLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limitRPM int) (Decision, error) {
	if limitRPM <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	windowStart := now.Truncate(window)
	reset := windowStart.Add(window)
	bucket := rediskey.BuildRateLimitKey(key, windowStart.Unix())

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.ExpireNX(ctx, bucket, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("ratelimit incr: %w", err)
	}

	count := int(incr.Val())
	if count > limitRPM {
		return Decision{Allowed: false, Limit: limitRPM, Remaining: 0, Reset: reset}, nil
	}
	return Decision{Allowed: true, Limit: limitRPM, Remaining: limitRPM - count, Reset: reset}, nil
}
