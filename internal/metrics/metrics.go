// Package metrics exposes Prometheus collectors for the sync pipeline.
//
// Metrics Categories:
//   - Queue: jobs enqueued, processed, and their durations
//   - Profiles: per-profile processing outcomes inside fan-out
//   - Provider: request counts, latency and circuit breaker state
//   - Webhooks: received provider events and the action taken
//   - HTTP: api-service request counts and latency by route
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsEnqueuedTotal counts jobs accepted by the queue by kind.
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_sync_jobs_enqueued_total",
			Help: "Total number of sync jobs enqueued",
		},
		[]string{"kind"},
	)

	// JobsProcessedTotal counts jobs leaving the running state by kind and resulting status.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_sync_jobs_processed_total",
			Help: "Total number of sync jobs processed by resulting status",
		},
		[]string{"kind", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creator_sync_job_duration_seconds",
			Help:    "Duration of sync job execution in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	ProfilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_sync_profiles_processed_total",
			Help: "Total number of creator profiles processed during fan-out",
		},
		[]string{"outcome"},
	)

	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_sync_provider_requests_total",
			Help: "Total number of provider API requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creator_sync_provider_request_duration_seconds",
			Help:    "Duration of provider API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// CircuitBreakerState is 0 for closed, 1 for half-open and 2 for open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "creator_sync_circuit_breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_sync_webhook_events_total",
			Help: "Total number of provider webhook events by type and action",
		},
		[]string{"event_type", "action"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_sync_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creator_sync_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// RecordJobProcessed records a job leaving the running state.
func RecordJobProcessed(kind, status string, d time.Duration) {
	JobsProcessedTotal.WithLabelValues(kind, status).Inc()
	JobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordProviderRequest records one provider call.
func RecordProviderRequest(operation string, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	ProviderRequestsTotal.WithLabelValues(operation, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordProfiles adds fan-out outcomes.
func RecordProfiles(succeeded, failed int) {
	ProfilesProcessedTotal.WithLabelValues("success").Add(float64(succeeded))
	ProfilesProcessedTotal.WithLabelValues("failure").Add(float64(failed))
}
