package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Application Metrics
	LinkCreationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_creations_total",
			Help: "Total number of link creation attempts by result",
		},
		[]string{"status"},
	)

	ShortCodeCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "short_code_collisions_total",
			Help: "Generated short codes rejected because they were already taken",
		},
	)

	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_resolutions_total",
			Help: "Short code resolutions by outcome",
		},
		[]string{"outcome"},
	)

	ClickIngestFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "click_ingest_failures_total",
			Help: "Clicks that could not be recorded during a redirect",
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_cache_lookups_total",
			Help: "Link cache lookups by result",
		},
		[]string{"result"},
	)

	SweptLinksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expired_links_swept_total",
			Help: "Expired links deleted by the sweeper",
		},
	)
)

// RecordHTTPMetrics records metrics for an HTTP request
func RecordHTTPMetrics(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
