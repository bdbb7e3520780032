// Package observability provides Prometheus metrics, health checks, and
// logging helpers shared across the integration layer.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the checkpoint service.
// Metrics are automatically registered via promauto.
//
// Key metrics for monitoring:
//   - webhooks_rejected_total: signature failures (spike = misconfigured secret or attack)
//   - transition_anomalies_total: events referencing unknown subscriptions
//   - handler_failures_total: bus handlers failing per event type
//   - retry_exhausted_total: provider calls that failed terminally
type Metrics struct {
	WebhooksReceived  prometheus.Counter
	WebhooksRejected  prometheus.Counter
	WebhooksDuplicate prometheus.Counter
	WebhooksUnknown   prometheus.Counter

	TransitionsApplied  *prometheus.CounterVec
	TransitionAnomalies *prometheus.CounterVec

	EventsPublished *prometheus.CounterVec
	HandlerFailures *prometheus.CounterVec

	RetryAttempts  *prometheus.CounterVec
	RetryExhausted *prometheus.CounterVec
	BreakerState   *prometheus.GaugeVec

	ScheduleOps *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
// The namespace prefixes all metric names (e.g., "checkpoint_webhooks_received_total").
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		WebhooksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Total number of inbound provider webhooks received",
		}),
		WebhooksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_rejected_total",
			Help:      "Total number of webhooks rejected for missing or invalid signatures",
		}),
		WebhooksDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_duplicate_total",
			Help:      "Total number of webhook deliveries already seen (provider redelivery)",
		}),
		WebhooksUnknown: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_unknown_total",
			Help:      "Total number of webhooks with unrecognized event types (acknowledged, not processed)",
		}),
		TransitionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_applied_total",
			Help:      "Total number of subscription state transitions applied, by provider event type",
		}, []string{"provider_event_type"}),
		TransitionAnomalies: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_anomalies_total",
			Help:      "Total number of transition events dropped as data-integrity anomalies",
		}, []string{"reason"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of domain events published on the bus, by type",
		}, []string{"event_type"}),
		HandlerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Total number of bus handler failures, by event type",
		}, []string{"event_type"}),
		RetryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts for outbound provider calls, by operation",
		}, []string{"operation"}),
		RetryExhausted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_exhausted_total",
			Help:      "Total number of provider calls that failed after exhausting retries, by operation",
		}, []string{"operation"}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		}, []string{"provider"}),
		ScheduleOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_operations_total",
			Help:      "Total number of scheduling adapter operations, by operation and outcome",
		}, []string{"operation", "outcome"}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method and path",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}
