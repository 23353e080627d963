package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTileRateLimiter implements the fixed-window counter on a shared
// redis, so any number of interchangeable instances see one count per key.
// INCR plus EXPIRE-NX in one pipeline keeps the increment atomic.
type RedisTileRateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func NewRedisTileRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisTileRateLimiter {
	if prefix == "" {
		prefix = "tile_rl"
	}
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisTileRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisTileRateLimiter) Allow(ctx context.Context, key string) (RateLimitDecision, error) {
	dataKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, dataKey)
	pipe.ExpireNX(ctx, dataKey, l.window)
	ttl := pipe.TTL(ctx, dataKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return RateLimitDecision{}, err
	}

	count := incr.Val()
	retryAfter := ttl.Val()
	if retryAfter < 0 {
		retryAfter = l.window
	}
	if count > int64(l.limit) {
		return RateLimitDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: retryAfter,
		}, nil
	}
	return RateLimitDecision{
		Allowed:   true,
		Remaining: l.limit - int(count),
	}, nil
}
