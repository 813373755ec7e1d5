package cache

import (
	"github.com/planetary-society/usaspending-orm/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh entries served by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks lookups that found nothing
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"backend"},
	)

	// CacheExpired tracks entries evicted on read because their TTL passed
	CacheExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Name:      "cache_expired_total",
			Help:      "Total number of expired cache entries evicted on read",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks backend failures
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Name:      "cache_errors_total",
			Help:      "Total number of cache backend errors",
		},
		[]string{"backend", "operation"}, // "get", "put", "delete"
	)
)
