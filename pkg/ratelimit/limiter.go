package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/planetary-society/usaspending-orm/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "ratelimit_waits_total",
		Help:      "Total number of acquisitions that had to wait for a free slot",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Name:      "ratelimit_wait_seconds",
		Help:      "Time spent waiting for a rate limit slot",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// Acquirer blocks until the caller may issue one outbound call.
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Limiter is an in-process rolling window limiter. It is safe for concurrent use.
type Limiter struct {
	max    int
	period time.Duration
	logger zerolog.Logger

	mu    sync.Mutex
	calls []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewLimiter creates a limiter allowing maxCalls per period.
func NewLimiter(maxCalls int, period time.Duration, logger zerolog.Logger) (*Limiter, error) {
	if maxCalls <= 0 {
		return nil, fmt.Errorf("max calls must be positive (got %d)", maxCalls)
	}
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive (got %s)", period)
	}
	return &Limiter{
		max:    maxCalls,
		period: period,
		logger: logger,
		calls:  make([]time.Time, 0, maxCalls),
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

// Acquire blocks until fewer than max calls started within the trailing period,
// then records the call. It only returns an error when ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var waited time.Duration
	for {
		now := l.now()
		l.evict(now)

		if len(l.calls) < l.max {
			l.calls = append(l.calls, now)
			if waited > 0 {
				rateLimitWaitsTotal.Inc()
				rateLimitWaitSeconds.Observe(waited.Seconds())
			}
			return nil
		}

		wait := l.calls[0].Add(l.period).Sub(now)
		if wait <= 0 {
			continue
		}

		l.logger.Debug().
			Int("in_window", len(l.calls)).
			Dur("wait", wait).
			Msg("Rate limit reached, waiting for slot")

		// Other goroutines may inspect or take slots while we sleep; the loop re-checks.
		l.mu.Unlock()
		err := l.sleep(ctx, wait)
		l.mu.Lock()
		if err != nil {
			return fmt.Errorf("wait for rate limit slot: %w", err)
		}
		waited += wait
	}
}

// State returns a snapshot of the window.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	s := State{
		Max:      l.max,
		Period:   l.period,
		InWindow: len(l.calls),
		TakenAt:  now,
	}
	if len(l.calls) >= l.max {
		s.NextAvailable = l.calls[0].Add(l.period)
	}
	return s
}

// Reset clears all recorded calls.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = l.calls[:0]
}

// evict drops calls that left the trailing window. Caller holds mu.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.period)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
