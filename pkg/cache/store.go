package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Backend names accepted by OpenStore.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	// BackendEphemeral and BackendDurable are aliases for memory and file.
	BackendEphemeral = "ephemeral"
	BackendDurable   = "durable"
)

// Store persists entries by fingerprint. Implementations must be safe for
// concurrent use and return ErrCacheMiss for unknown fingerprints.
type Store interface {
	Load(ctx context.Context, fp Fingerprint) (*Entry, error)
	Save(ctx context.Context, fp Fingerprint, entry *Entry) error
	Delete(ctx context.Context, fp Fingerprint) error
	Close() error
	Backend() string
}

// StoreOptions selects and configures a backend.
type StoreOptions struct {
	// Backend is one of the Backend* names (case-insensitive)
	Backend string

	// Location is the directory for file, badger and sqlite backends
	Location string

	// Redis is the client used by the redis backend
	Redis *redis.Client

	// TTL sets native key expiry for the redis backend (0 disables it)
	TTL time.Duration

	Logger zerolog.Logger
}

// NormalizeBackend resolves aliases and validates a backend name.
func NormalizeBackend(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case BackendMemory, BackendEphemeral:
		return BackendMemory, nil
	case BackendFile, BackendDurable, "":
		return BackendFile, nil
	case BackendBadger:
		return BackendBadger, nil
	case BackendSQLite:
		return BackendSQLite, nil
	case BackendRedis:
		return BackendRedis, nil
	default:
		return "", fmt.Errorf("unknown cache backend %q", name)
	}
}

// OpenStore creates the store named by opts.Backend.
func OpenStore(opts StoreOptions) (Store, error) {
	backend, err := NormalizeBackend(opts.Backend)
	if err != nil {
		return nil, err
	}

	needsDir := backend == BackendFile || backend == BackendBadger || backend == BackendSQLite
	if needsDir {
		if opts.Location == "" {
			return nil, fmt.Errorf("cache location is required for the %s backend", backend)
		}
		if err := os.MkdirAll(opts.Location, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	opts.Logger.Debug().
		Str("backend", backend).
		Str("location", opts.Location).
		Msg("Opening cache store")

	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(opts.Location)
	case BackendBadger:
		return OpenBadgerStore(filepath.Join(opts.Location, "badger"))
	case BackendSQLite:
		return OpenSQLiteStore(filepath.Join(opts.Location, "cache.db"))
	case BackendRedis:
		return NewRedisStore(opts.Redis, opts.TTL)
	}
	return nil, fmt.Errorf("unknown cache backend %q", backend)
}
