package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/docshield/view-session-service/internal/http/response"
	"github.com/docshield/view-session-service/internal/observability"
)

// RateLimiter is the coarse per-IP gate in front of the whole API. The
// precise per-session tile budget lives in the tile service; this one only
// keeps a single client from hammering the surface.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	store   map[string]*windowState
	cleanup time.Time
}

type windowState struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		store:   make(map[string]*windowState),
		cleanup: time.Now().Add(window),
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIPKey(r)
			allowed, remaining, resetAt := rl.allow(key)
			writeRateLimitHeaders(w.Header(), rl.limit, remaining, resetAt)
			if !allowed {
				observability.RecordRateLimitDecision(r.Context(), "api", "deny")
				w.Header().Set("Retry-After", retryAfterHeader(time.Until(resetAt)))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), "api", "allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) (allowed bool, remaining int, resetAt time.Time) {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.cleanup) {
		for k, v := range rl.store {
			if now.After(v.resetAt) {
				delete(rl.store, k)
			}
		}
		rl.cleanup = now.Add(rl.window)
	}

	state, ok := rl.store[key]
	if !ok || now.After(state.resetAt) {
		state = &windowState{resetAt: now.Add(rl.window)}
		rl.store[key] = state
	}
	if state.count >= rl.limit {
		return false, 0, state.resetAt
	}
	state.count++
	return true, rl.limit - state.count, state.resetAt
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}

func writeRateLimitHeaders(h http.Header, limit, remaining int, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	if remaining < 0 {
		remaining = 0
	}
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	if resetAt.IsZero() {
		resetAt = time.Now().Add(time.Second)
	}
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
}
