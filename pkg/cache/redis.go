package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces cache keys.
const RedisKeyPrefix = "usaspending:cache:"

// RedisStore keeps entries in Redis so several processes share one cache.
// Keys carry a native expiry of ttl in addition to the manager's lazy TTL check.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore wraps an existing client. The caller keeps ownership of the client.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required for the redis cache backend")
	}
	return &RedisStore{redis: redisClient, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, fp Fingerprint) (*Entry, error) {
	data, err := s.redis.Get(ctx, RedisKeyPrefix+fp.String()).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

func (s *RedisStore) Save(ctx context.Context, fp Fingerprint, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.redis.Set(ctx, RedisKeyPrefix+fp.String(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, fp Fingerprint) error {
	if err := s.redis.Del(ctx, RedisKeyPrefix+fp.String()).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisStore) Close() error { return nil }

func (s *RedisStore) Backend() string { return BackendRedis }
