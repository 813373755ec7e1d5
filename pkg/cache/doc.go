// Package cache stores successful USAspending GET responses keyed by request fingerprint.
//
// The Manager applies a time-to-live policy on top of a pluggable Store:
//
//   - Entries expire when now - StoredAt > TTL
//   - Expired entries are deleted by the read that observes them (lazy eviction)
//   - Only GET requests are cached; POST searches never read or write the cache
//   - Prometheus metrics for hits, misses, expiries and backend errors
//
// # Backends
//
//   - memory: process-local map, lost when the process exits ("ephemeral")
//   - file:   one JSON document per fingerprint, written atomically ("durable")
//   - badger: embedded key/value store
//   - sqlite: single table in a WAL-mode SQLite database
//   - redis:  shared between processes, with native key expiry
//
// # Basic Usage
//
//	store, err := cache.OpenStore(cache.StoreOptions{
//		Backend:  cache.BackendFile,
//		Location: ".usaspending_cache",
//	})
//	if err != nil {
//		return err
//	}
//	manager := cache.NewManager(store, time.Hour, logger)
//	defer manager.Close()
//
//	fp := cache.RequestKey{Method: "GET", Endpoint: "/awards/CONT_AWD_123/"}.Fingerprint()
//	entry, err := manager.Get(ctx, fp)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch, then manager.Put(ctx, fp, status, body)
//	}
//
// # Metrics
//
//   - usaspending_cache_hits_total{backend}
//   - usaspending_cache_misses_total{backend}
//   - usaspending_cache_expired_total{backend}
//   - usaspending_cache_errors_total{backend, operation}
package cache
