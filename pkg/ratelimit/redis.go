package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// slidingWindowScript trims the window, records the call if there is room and returns 0,
// otherwise returns the milliseconds until the oldest call leaves the window.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local period = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - period)
local count = redis.call('ZCARD', key)
if count < max then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, period)
	return 0
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = tonumber(oldest[2]) + period - now
if wait < 1 then
	wait = 1
end
return wait
`)

// RedisLimiter is a rolling window limiter whose window lives in a Redis sorted set,
// so every process using the same key shares one call budget.
type RedisLimiter struct {
	redis  *redis.Client
	key    string
	max    int
	period time.Duration
	logger zerolog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRedisLimiter creates a shared limiter stored under RedisKeyPrefix+name.
func NewRedisLimiter(redisClient *redis.Client, name string, maxCalls int, period time.Duration, logger zerolog.Logger) (*RedisLimiter, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if maxCalls <= 0 {
		return nil, fmt.Errorf("max calls must be positive (got %d)", maxCalls)
	}
	if period < time.Millisecond {
		return nil, fmt.Errorf("period must be at least 1ms (got %s)", period)
	}
	return &RedisLimiter{
		redis:  redisClient,
		key:    RedisKeyPrefix + name,
		max:    maxCalls,
		period: period,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

// Acquire blocks until the shared window has room, then records the call.
func (l *RedisLimiter) Acquire(ctx context.Context) error {
	member := uuid.NewString()
	var waited time.Duration

	for {
		waitMs, err := slidingWindowScript.Run(ctx, l.redis, []string{l.key},
			l.now().UnixMilli(), l.period.Milliseconds(), l.max, member).Int64()
		if err != nil {
			return fmt.Errorf("evaluate shared rate limit window: %w", err)
		}
		if waitMs == 0 {
			if waited > 0 {
				rateLimitWaitsTotal.Inc()
				rateLimitWaitSeconds.Observe(waited.Seconds())
			}
			return nil
		}

		wait := time.Duration(waitMs) * time.Millisecond
		l.logger.Debug().
			Str("key", l.key).
			Dur("wait", wait).
			Msg("Shared rate limit reached, waiting for slot")

		if err := l.sleep(ctx, wait); err != nil {
			return fmt.Errorf("wait for shared rate limit slot: %w", err)
		}
		waited += wait
	}
}

// State returns a snapshot of the shared window.
func (l *RedisLimiter) State(ctx context.Context) (State, error) {
	now := l.now()
	cutoff := now.Add(-l.period).UnixMilli()

	pipe := l.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, l.key, "-inf", fmt.Sprintf("%d", cutoff))
	countCmd := pipe.ZCard(ctx, l.key)
	oldestCmd := pipe.ZRangeWithScores(ctx, l.key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return State{}, fmt.Errorf("read shared rate limit window: %w", err)
	}

	s := State{
		Max:      l.max,
		Period:   l.period,
		InWindow: int(countCmd.Val()),
		TakenAt:  now,
	}
	if s.InWindow >= l.max {
		if oldest := oldestCmd.Val(); len(oldest) > 0 {
			s.NextAvailable = time.UnixMilli(int64(oldest[0].Score)).Add(l.period)
		}
	}
	return s, nil
}

// Reset clears the shared window.
func (l *RedisLimiter) Reset(ctx context.Context) error {
	if err := l.redis.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("reset shared rate limit window: %w", err)
	}
	return nil
}
