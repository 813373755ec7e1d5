package session

import (
	"github.com/planetary-society/usaspending-orm/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lazyFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: metrics.Namespace,
	Name:      "lazy_fetches_total",
	Help:      "Total lazy detail fetches by resource and outcome",
}, []string{"resource", "outcome"}) // "ok", "error", "detached"
