package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

// fakeClock advances only when the limiter sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func newTestLimiter(t *testing.T, maxCalls int, period time.Duration, clock *fakeClock) *Limiter {
	t.Helper()
	l, err := NewLimiter(maxCalls, period, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l
}

func TestNewLimiter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		period  time.Duration
		wantErr bool
	}{
		{"defaults", 30, time.Second, false},
		{"zero calls", 0, time.Second, true},
		{"negative calls", -1, time.Second, true},
		{"zero period", 5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLimiter(tt.max, tt.period, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLimiter() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLimiter_NeverExceedsWindow(t *testing.T) {
	clock := newFakeClock()
	period := time.Second
	l := newTestLimiter(t, 3, period, clock)

	var starts []time.Time
	for i := 0; i < 10; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
		starts = append(starts, clock.Now())
	}

	for i, end := range starts {
		inWindow := 0
		for _, s := range starts {
			if s.After(end.Add(-period)) && !s.After(end) {
				inWindow++
			}
		}
		if inWindow > 3 {
			t.Errorf("call %d: %d calls in trailing window, want <= 3", i, inWindow)
		}
	}
}

func TestLimiter_DelaysInsteadOfRejecting(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	l := newTestLimiter(t, 3, time.Second, clock)

	for i := 0; i < 7; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
	}

	// Calls 4-6 wait one period, call 7 waits two.
	if elapsed := clock.Now().Sub(start); elapsed != 2*time.Second {
		t.Errorf("elapsed = %v, want 2s", elapsed)
	}
}

func TestLimiter_StateAndReset(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, 2, time.Second, clock)

	if s := l.State(); s.Available() != 2 || s.Saturated() {
		t.Errorf("fresh State() = %+v, want 2 available", s)
	}

	_ = l.Acquire(context.Background())
	_ = l.Acquire(context.Background())

	s := l.State()
	if !s.Saturated() {
		t.Errorf("State().Saturated() = false after max calls")
	}
	if got := s.TimeUntilAvailable(); got != time.Second {
		t.Errorf("TimeUntilAvailable() = %v, want 1s", got)
	}

	l.Reset()
	if s := l.State(); s.InWindow != 0 {
		t.Errorf("InWindow after Reset() = %d, want 0", s.InWindow)
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, 2, time.Second, clock)

	_ = l.Acquire(context.Background())
	_ = clock.Sleep(context.Background(), 600*time.Millisecond)
	_ = l.Acquire(context.Background())
	_ = clock.Sleep(context.Background(), 500*time.Millisecond)

	// The first call left the window, the second has not.
	if s := l.State(); s.InWindow != 1 {
		t.Errorf("InWindow = %d, want 1", s.InWindow)
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l, err := NewLimiter(1, time.Minute, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = l.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
	if s := l.State(); s.InWindow != 1 {
		t.Errorf("cancelled Acquire() recorded a call: InWindow = %d", s.InWindow)
	}
}

func TestLimiter_ConcurrentCallers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l, err := NewLimiter(5, 100*time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, 15)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Acquire(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Acquire() error = %v", err)
		}
	}

	// 15 calls at 5 per 100ms need at least two full periods.
	if elapsed := time.Since(start); elapsed < 190*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 200ms", elapsed)
	}
}
