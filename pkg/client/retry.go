package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/planetary-society/usaspending-orm/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "retries_total",
		Help:      "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Name:      "retry_backoff_seconds",
		Help:      "Backoff duration for retries by error class",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "retry_exhausted_total",
		Help:      "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// BackoffFactor multiplies the delay after every retry.
	BackoffFactor float64

	// MaxDelay caps computed delays. Zero disables the cap.
	MaxDelay time.Duration

	// Jitter is the largest random fraction added to each delay (0.25 adds up to 25%).
	Jitter float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BaseDelay:     1 * time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      60 * time.Second,
		Jitter:        0.25,
	}
}

// Attempt performs one try of an operation. attempt starts at 0.
type Attempt func(ctx context.Context, attempt int) (*Response, error)

// RetryPolicy re-invokes transient failures with exponential backoff.
type RetryPolicy struct {
	config RetryConfig
	logger zerolog.Logger

	sleep  func(context.Context, time.Duration) error
	random func() float64
}

// NewRetryPolicy creates a policy from cfg.
func NewRetryPolicy(cfg RetryConfig, logger zerolog.Logger) *RetryPolicy {
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &RetryPolicy{
		config: cfg,
		logger: logger,
		sleep:  sleepContext,
		random: rand.Float64,
	}
}

// Config returns the policy configuration.
func (p *RetryPolicy) Config() RetryConfig {
	return p.config
}

// Execute runs fn until it succeeds, fails with a non-retryable error, or
// MaxRetries retries were spent. Exhaustion returns an *APIError wrapping both
// ErrRetryExhausted and the last failure.
func (p *RetryPolicy) Execute(ctx context.Context, fn Attempt) (*Response, error) {
	var prev time.Duration

	for attempt := 0; ; attempt++ {
		resp, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 0 {
				p.logger.Info().
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return resp, nil
		}

		// Cancellation is the caller's decision, not a transient failure.
		if ctx.Err() != nil {
			return nil, err
		}

		errorClass := classOf(err)
		if !shouldRetry(errorClass) {
			return nil, err
		}

		if attempt >= p.config.MaxRetries {
			retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
			p.logger.Warn().
				Err(err).
				Str("error_class", string(errorClass)).
				Int("attempts", attempt+1).
				Msg("Retry attempts exhausted")
			return nil, exhausted(err, errorClass, attempt+1)
		}

		delay := p.Delay(attempt, prev, retryAfter(err))
		prev = delay

		retriesTotal.WithLabelValues(string(errorClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(delay.Seconds())
		p.logger.Warn().
			Err(err).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := p.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry backoff interrupted: %w", err)
		}
	}
}

// Delay returns the wait before retry number attempt (0-based). The result is
// base*factor^attempt plus jitter, capped at MaxDelay, raised to retryAfter if
// the server asked for longer, and never below prev.
func (p *RetryPolicy) Delay(attempt int, prev, retryAfter time.Duration) time.Duration {
	d := float64(p.config.BaseDelay) * math.Pow(p.config.BackoffFactor, float64(attempt))
	if p.config.Jitter > 0 {
		d += d * p.config.Jitter * p.random()
	}

	delay := time.Duration(d)
	if d > float64(math.MaxInt64) {
		delay = time.Duration(math.MaxInt64)
	}
	if p.config.MaxDelay > 0 && delay > p.config.MaxDelay {
		delay = p.config.MaxDelay
	}
	if retryAfter > delay {
		delay = retryAfter
	}
	if delay < prev {
		delay = prev
	}
	return delay
}

func retryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// exhausted wraps the final failure so callers can match either the sentinel
// or the status of the last attempt.
func exhausted(last error, errorClass ErrorClass, attempts int) error {
	out := &APIError{
		ErrorClass: errorClass,
		Message:    fmt.Sprintf("giving up after %d attempts", attempts),
		Err:        fmt.Errorf("%w: %w", ErrRetryExhausted, last),
	}
	var apiErr *APIError
	if errors.As(last, &apiErr) {
		out.StatusCode = apiErr.StatusCode
		out.Detail = apiErr.Detail
	}
	return out
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
