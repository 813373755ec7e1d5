package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func setupMiniRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestRedisLimiter(t *testing.T, client *redis.Client, name string, maxCalls int, clock *fakeClock) *RedisLimiter {
	t.Helper()
	l, err := NewRedisLimiter(client, name, maxCalls, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisLimiter() error = %v", err)
	}
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l
}

func TestNewRedisLimiter_Validation(t *testing.T) {
	client := setupMiniRedis(t)

	if _, err := NewRedisLimiter(nil, "x", 1, time.Second, zerolog.Nop()); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := NewRedisLimiter(client, "x", 0, time.Second, zerolog.Nop()); err == nil {
		t.Error("expected error for zero max calls")
	}
	if _, err := NewRedisLimiter(client, "x", 1, time.Microsecond, zerolog.Nop()); err == nil {
		t.Error("expected error for sub-millisecond period")
	}
}

func TestRedisLimiter_DelaysWhenSaturated(t *testing.T) {
	client := setupMiniRedis(t)
	clock := newFakeClock()
	start := clock.Now()
	l := newTestRedisLimiter(t, client, "delays", 3, clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
	}

	if elapsed := clock.Now().Sub(start); elapsed != time.Second {
		t.Errorf("elapsed = %v, want 1s", elapsed)
	}
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	client := setupMiniRedis(t)
	clock := newFakeClock()
	ctx := context.Background()

	a := newTestRedisLimiter(t, client, "shared", 2, clock)
	b := newTestRedisLimiter(t, client, "shared", 2, clock)

	_ = a.Acquire(ctx)
	_ = b.Acquire(ctx)

	s, err := a.State(ctx)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if s.InWindow != 2 || !s.Saturated() {
		t.Errorf("State() = %+v, want 2 calls in a saturated window", s)
	}
	if got := s.TimeUntilAvailable(); got != time.Second {
		t.Errorf("TimeUntilAvailable() = %v, want 1s", got)
	}
}

func TestRedisLimiter_Reset(t *testing.T) {
	client := setupMiniRedis(t)
	clock := newFakeClock()
	ctx := context.Background()
	l := newTestRedisLimiter(t, client, "reset", 2, clock)

	_ = l.Acquire(ctx)
	if err := l.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	s, err := l.State(ctx)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if s.InWindow != 0 {
		t.Errorf("InWindow after Reset() = %d, want 0", s.InWindow)
	}
}

func TestRedisLimiter_RedisUnavailable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l, err := NewRedisLimiter(client, "down", 1, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisLimiter() error = %v", err)
	}
	mr.Close()

	if err := l.Acquire(context.Background()); err == nil {
		t.Error("Acquire() succeeded against a stopped server")
	}
}
