package service

import (
	"context"
	"sync"
	"time"
)

type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// TileRateLimiter counts tile requests per (identity, document) key in a
// fixed window. The backing store must increment atomically: tile bursts for
// one session arrive concurrently from many server instances.
type TileRateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitDecision, error)
}

type localWindowState struct {
	count   int
	resetAt time.Time
}

// LocalTileRateLimiter is the in-process fallback for tests and single-node
// deployments. Multi-instance deployments use the redis limiter.
type LocalTileRateLimiter struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	store map[string]*localWindowState
}

func NewLocalTileRateLimiter(limit int, window time.Duration) *LocalTileRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LocalTileRateLimiter{
		limit:  limit,
		window: window,
		store:  make(map[string]*localWindowState),
	}
}

func (l *LocalTileRateLimiter) Allow(_ context.Context, key string) (RateLimitDecision, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.store[key]
	if !ok || now.After(state.resetAt) {
		state = &localWindowState{resetAt: now.Add(l.window)}
		l.store[key] = state
	}
	if state.count >= l.limit {
		return RateLimitDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: state.resetAt.Sub(now),
		}, nil
	}
	state.count++
	return RateLimitDecision{
		Allowed:   true,
		Remaining: l.limit - state.count,
	}, nil
}
