package redisrate

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLuaLimiter(t *testing.T) (*RedisLuaLimiter, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisLuaLimiter(rdb, nil, map[string]BucketConfig{
		"ocr": {Capacity: 2, RefillRate: 1},
	})
	return limiter, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestAllow_NilLimiter_FailsOpen(t *testing.T) {
	var limiter *RedisLuaLimiter
	allowed, retryAfter, err := limiter.Allow(context.Background(), "any", 1)
	if err != nil || !allowed || retryAfter != 0 {
		t.Fatalf("expected fail-open for nil limiter, got allowed=%v retryAfter=%v err=%v", allowed, retryAfter, err)
	}
}

func TestAllow_UnconfiguredKey_IsUnlimited(t *testing.T) {
	limiter, cleanup := newTestRedisLuaLimiter(t)
	defer cleanup()

	allowed, _, err := limiter.Allow(context.Background(), "unconfigured", 1)
	if err != nil || !allowed {
		t.Fatalf("expected unconfigured key to be allowed, got allowed=%v err=%v", allowed, err)
	}
}

func TestAllow_ExhaustsBucketThenRejects(t *testing.T) {
	limiter, cleanup := newTestRedisLuaLimiter(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "ocr", 1)
		if err != nil || !allowed {
			t.Fatalf("expected token %d to be allowed, got allowed=%v err=%v", i, allowed, err)
		}
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "ocr", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected bucket to be exhausted")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retryAfter, got %v", retryAfter)
	}
}

func TestGate_FallsBackToInProcessLimiterOnRedisError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisLuaLimiter(rdb, nil, map[string]BucketConfig{"ocr": {Capacity: 1, RefillRate: 1}})
	mr.Close() // simulate Redis outage: every script call now errors

	gate := NewGate(limiter, "ocr", 100, 5) // generous in-process fallback so Wait returns promptly
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("expected fallback limiter to allow, got %v", err)
	}
}
