package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Manager applies the TTL policy on top of a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewManager creates a cache manager. A non-positive ttl falls back to DefaultTTL.
func NewManager(store Store, ttl time.Duration, logger zerolog.Logger) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("backend", store.Backend()).Logger(),
		now:    time.Now,
	}
}

// TTL returns the freshness window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Backend returns the name of the underlying store.
func (m *Manager) Backend() string {
	return m.store.Backend()
}

// Get returns a fresh entry for fp.
// Returns ErrCacheMiss if the fingerprint is unknown, expired or corrupted; the
// latter two are deleted before returning.
func (m *Manager) Get(ctx context.Context, fp Fingerprint) (*Entry, error) {
	backend := m.store.Backend()

	entry, err := m.store.Load(ctx, fp)
	switch {
	case errors.Is(err, ErrCacheMiss):
		CacheMisses.WithLabelValues(backend).Inc()
		return nil, ErrCacheMiss
	case errors.Is(err, ErrInvalidEntry):
		m.logger.Warn().Err(err).Str("fingerprint", fp.Short()).Msg("Dropping corrupted cache entry")
		m.evict(ctx, fp)
		CacheMisses.WithLabelValues(backend).Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues(backend, "get").Inc()
		return nil, fmt.Errorf("load cache entry: %w", err)
	}

	if entry.Expired(m.ttl, m.now()) {
		m.logger.Debug().
			Str("fingerprint", fp.Short()).
			Dur("age", entry.Age(m.now())).
			Msg("Cache entry expired")
		m.evict(ctx, fp)
		CacheExpired.WithLabelValues(backend).Inc()
		CacheMisses.WithLabelValues(backend).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(backend).Inc()
	return entry, nil
}

// Put stores body as a fresh entry for fp.
func (m *Manager) Put(ctx context.Context, fp Fingerprint, statusCode int, body []byte) error {
	entry := &Entry{
		Body:       append([]byte(nil), body...),
		StatusCode: statusCode,
		StoredAt:   m.now(),
	}
	if err := m.store.Save(ctx, fp, entry); err != nil {
		CacheErrors.WithLabelValues(m.store.Backend(), "put").Inc()
		return fmt.Errorf("save cache entry: %w", err)
	}

	m.logger.Debug().
		Str("fingerprint", fp.Short()).
		Int("bytes", len(body)).
		Msg("Cached response")
	return nil
}

// Delete removes the entry for fp.
func (m *Manager) Delete(ctx context.Context, fp Fingerprint) error {
	if err := m.store.Delete(ctx, fp); err != nil {
		CacheErrors.WithLabelValues(m.store.Backend(), "delete").Inc()
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

func (m *Manager) evict(ctx context.Context, fp Fingerprint) {
	if err := m.Delete(ctx, fp); err != nil {
		m.logger.Warn().Err(err).Str("fingerprint", fp.Short()).Msg("Failed to evict cache entry")
	}
}
