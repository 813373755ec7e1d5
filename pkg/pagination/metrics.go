package pagination

import (
	"github.com/planetary-society/usaspending-orm/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "pages_fetched_total",
		Help:      "Total pages fetched by endpoint",
	}, []string{"endpoint"})

	paginationStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "pagination_stops_total",
		Help:      "Completed pagination runs by stop reason",
	}, []string{"reason"})
)
