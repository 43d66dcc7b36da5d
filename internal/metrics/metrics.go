// Package metrics exposes the Prometheus counters and histogram named in
// the request pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the counters and histogram mutated during request
// processing. All fields are safe for concurrent use.
type Metrics struct {
	RequestsTotal       prometheus.Counter
	CacheHitsTotal      prometheus.Counter
	LargeResponsesTotal prometheus.Counter
	UpstreamErrorsTotal prometheus.Counter
	ResponseSizeBytes   prometheus.Histogram
}

// New registers and returns a fresh Metrics bundle against reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests), or
// prometheus.DefaultRegisterer for production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of requests accepted by the proxy.",
		}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of requests served from the on-disk cache.",
		}),
		LargeResponsesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "large_responses_total",
			Help: "Total number of upstream responses that exceeded the cache size cap.",
		}),
		UpstreamErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Total number of requests that failed against the upstream database.",
		}),
		ResponseSizeBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "response_size_bytes",
			Help:    "Size in bytes of upstream response bodies, cached or not.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 12),
		}),
	}
}

// Handler returns the /metrics exposition handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
