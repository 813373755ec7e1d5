// Package metrics documents the Prometheus metrics exported by the USAspending client.
// Collectors live in the packages that update them (client, cache, ratelimit,
// pagination, session) so that no package depends on a central registry at init time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer all collectors are added to via promauto.
var Registry = prometheus.DefaultRegisterer

// Namespace prefixes every metric name.
const Namespace = "usaspending"

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - usaspending_requests_total{endpoint, status} (Counter)
//   - usaspending_request_duration_seconds{endpoint} (Histogram)
//   - usaspending_errors_total{class} (Counter): client, server, rate_limit, network, payload
//
// Retry Metrics (pkg/client):
//   - usaspending_retries_total{error_class} (Counter)
//   - usaspending_retry_backoff_seconds{error_class} (Histogram)
//   - usaspending_retry_exhausted_total{error_class} (Counter)
//
// Cache Metrics (pkg/cache):
//   - usaspending_cache_hits_total{backend} (Counter)
//   - usaspending_cache_misses_total{backend} (Counter)
//   - usaspending_cache_expired_total{backend} (Counter)
//   - usaspending_cache_errors_total{backend, operation} (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - usaspending_ratelimit_waits_total (Counter)
//   - usaspending_ratelimit_wait_seconds (Histogram)
//
// Pagination Metrics (pkg/pagination):
//   - usaspending_pages_fetched_total{endpoint} (Counter)
//   - usaspending_pagination_stops_total{reason} (Counter): exhausted, limit_reached, max_pages, short_page, consumer
//
// Session Metrics (pkg/session):
//   - usaspending_lazy_fetches_total{resource, outcome} (Counter)
//
// Example Prometheus Queries:
//
//	# Cache hit rate
//	sum(rate(usaspending_cache_hits_total[5m])) /
//	(sum(rate(usaspending_cache_hits_total[5m])) + sum(rate(usaspending_cache_misses_total[5m])))
//
//	# Time spent throttled
//	rate(usaspending_ratelimit_wait_seconds_sum[5m])
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(usaspending_request_duration_seconds_bucket[5m]))
