package service

import (
	"context"
	"testing"
	"time"
)

func TestRedisLimiterWindow(t *testing.T) {
	_, client := newRedisClientForTest(t)
	limiter := NewRedisTileRateLimiter(client, "tile_rl", 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		decision, err := limiter.Allow(ctx, "share:3:10")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	decision, err := limiter.Allow(ctx, "share:3:10")
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if decision.Allowed {
		t.Fatal("sixth request should be denied")
	}
	if decision.RetryAfter <= 0 {
		t.Fatalf("denied decision must carry a retry hint, got %v", decision.RetryAfter)
	}
}

func TestRedisLimiterWindowExpiry(t *testing.T) {
	server, client := newRedisClientForTest(t)
	limiter := NewRedisTileRateLimiter(client, "tile_rl", 1, time.Minute)
	ctx := context.Background()

	if d, _ := limiter.Allow(ctx, "k"); !d.Allowed {
		t.Fatal("first request should be allowed")
	}
	if d, _ := limiter.Allow(ctx, "k"); d.Allowed {
		t.Fatal("second request should be denied")
	}

	server.FastForward(2 * time.Minute)

	if d, _ := limiter.Allow(ctx, "k"); !d.Allowed {
		t.Fatal("request after the window expired should be allowed")
	}
}

func TestRedisLimiterKeysAreIndependent(t *testing.T) {
	_, client := newRedisClientForTest(t)
	limiter := NewRedisTileRateLimiter(client, "tile_rl", 1, time.Minute)
	ctx := context.Background()

	if d, _ := limiter.Allow(ctx, "user:1:10"); !d.Allowed {
		t.Fatal("first key should be allowed")
	}
	if d, _ := limiter.Allow(ctx, "user:1:11"); !d.Allowed {
		t.Fatal("different document must count separately")
	}
}

func TestRedisLimiterBackendDown(t *testing.T) {
	server, client := newRedisClientForTest(t)
	limiter := NewRedisTileRateLimiter(client, "tile_rl", 5, time.Minute)

	server.Close()

	if _, err := limiter.Allow(context.Background(), "k"); err == nil {
		t.Fatal("an unreachable backend must surface an error")
	}
}
