// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akinmueble_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RequestTransitions counts request status changes by target status.
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akinmueble_request_transitions_total",
		Help: "Total number of request status transitions",
	}, []string{"from", "to"})

	// CascadeRejections counts requests rejected because a competing one was accepted.
	CascadeRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akinmueble_request_cascade_rejections_total",
		Help: "Total number of requests rejected by the accept cascade",
	})

	// NotificationsSent counts notification dispatch outcomes by channel.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akinmueble_notifications_total",
		Help: "Notification dispatch attempts by channel and outcome",
	}, []string{"channel", "outcome"})

	// UpstreamLatency records external collaborator call latency.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "akinmueble_upstream_latency_seconds",
		Help:    "Latency of calls to external services",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "operation"})

	// ScheduledJobRuns counts cron job executions by job and outcome.
	ScheduledJobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akinmueble_scheduled_job_runs_total",
		Help: "Scheduled job executions",
	}, []string{"job", "outcome"})
)

// TrackUpstream returns a function that records call latency when called (e.g. defer).
func TrackUpstream(service, operation string) func() {
	start := time.Now()
	return func() {
		UpstreamLatency.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
	}
}

// Outcome renders an error as a metric label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
