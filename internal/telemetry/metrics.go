// Package telemetry provides observability primitives for the catalog backend.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the catalog backend.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ActiveRequests     prometheus.Gauge
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheInvalidations prometheus.Counter
	SyncRuns           *prometheus.CounterVec
	SyncDuration       prometheus.Histogram
	ProductsUpserted   *prometheus.CounterVec
	SyncRecordFailures prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogd",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "catalogd",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "catalogd",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalogd",
			Name:      "cache_hits_total",
			Help:      "Total pagination cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalogd",
			Name:      "cache_misses_total",
			Help:      "Total pagination cache misses.",
		}),

		CacheInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalogd",
			Name:      "cache_invalidations_total",
			Help:      "Total pagination cache invalidations.",
		}),

		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogd",
			Name:      "sync_runs_total",
			Help:      "Total sync passes by outcome.",
		}, []string{"outcome"}),

		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:                       "catalogd",
			Name:                            "sync_duration_seconds",
			Help:                            "Duration of one full sync pass in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}),

		ProductsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogd",
			Name:      "products_upserted_total",
			Help:      "Total products written during sync.",
		}, []string{"op"}),

		SyncRecordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalogd",
			Name:      "sync_record_failures_total",
			Help:      "Total external records that failed to map or persist.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.CacheHits,
		m.CacheMisses,
		m.CacheInvalidations,
		m.SyncRuns,
		m.SyncDuration,
		m.ProductsUpserted,
		m.SyncRecordFailures,
	)

	return m
}
