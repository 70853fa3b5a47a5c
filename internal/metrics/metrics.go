// Package metrics exposes Prometheus collectors for the traversal service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	catalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "musiclinks_catalog_requests_total",
			Help: "Total number of catalog API calls, labeled by operation.",
		},
		[]string{"operation"},
	)

	catalogErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "musiclinks_catalog_errors_total",
			Help: "Total number of catalog API failures, labeled by operation and error class.",
		},
		[]string{"operation", "class"},
	)

	catalogRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "musiclinks_catalog_retries_total",
			Help: "Total number of catalog API retries, labeled by operation.",
		},
		[]string{"operation"},
	)

	rateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "musiclinks_rate_limit_delay_seconds",
			Help:    "Delay imposed by the outbound rate limiter.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	artistsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "musiclinks_artists_processed_total",
			Help: "Artists taken off the frontier, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	queueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "musiclinks_queue_size",
			Help: "Current number of pending artists in the frontier.",
		},
	)

	queueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "musiclinks_queue_dropped_total",
			Help: "Frontier candidates dropped because a capacity limit was reached.",
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "musiclinks_runs_total",
			Help: "Completed traversal runs, labeled by termination reason.",
		},
		[]string{"reason"},
	)
)

// Artist processing outcomes.
const (
	OutcomeDiscovered = "discovered"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
)

// IncCatalogRequest records one outbound catalog call.
func IncCatalogRequest(operation string) {
	catalogRequestsTotal.WithLabelValues(operation).Inc()
}

// IncCatalogError records one classified catalog failure.
func IncCatalogError(operation, class string) {
	catalogErrorsTotal.WithLabelValues(operation, class).Inc()
}

// IncCatalogRetry records one retried catalog attempt.
func IncCatalogRetry(operation string) {
	catalogRetriesTotal.WithLabelValues(operation).Inc()
}

// ObserveRateLimitDelay records the wait imposed before an outbound call.
func ObserveRateLimitDelay(d time.Duration) {
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// IncArtistProcessed records one artist leaving the frontier.
func IncArtistProcessed(outcome string) {
	artistsProcessedTotal.WithLabelValues(outcome).Inc()
}

// SetQueueSize publishes the current frontier length.
func SetQueueSize(n int) {
	queueSize.Set(float64(n))
}

// AddQueueDropped records candidates rejected by a capacity limit.
func AddQueueDropped(n int) {
	if n > 0 {
		queueDroppedTotal.Add(float64(n))
	}
}

// IncRunTerminated records a finished run by termination reason.
func IncRunTerminated(reason string) {
	runsTotal.WithLabelValues(reason).Inc()
}

// Handler returns the HTTP handler serving the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
