// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// DispatchDuration tracks conversation dispatch duration.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialog_dispatch_duration_seconds",
			Help:    "Conversation dispatch duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"tenant_id", "trigger"},
	)

	// DispatchesTotal tracks dispatches by observable outcome.
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_dispatches_total",
			Help: "Total conversation dispatches",
		},
		[]string{"tenant_id", "result"},
	)

	// HandoffsTotal tracks handoffs to human queues/agents by reason.
	HandoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_handoffs_total",
			Help: "Total conversation handoffs",
		},
		[]string{"tenant_id", "reason"},
	)

	// TimeoutsFiredTotal tracks conversation timer expirations.
	TimeoutsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_timeouts_fired_total",
			Help: "Total conversation timeout firings",
		},
		[]string{"tenant_id"},
	)

	// StaleTimersTotal tracks timer firings discarded by version fencing.
	StaleTimersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dialog_stale_timers_total",
			Help: "Timer firings that lost the race and became no-ops",
		},
	)

	// LeaseConflictsTotal tracks lease acquisitions that had to wait.
	LeaseConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dialog_lease_conflicts_total",
			Help: "Lease acquisitions contended by a concurrent dispatch",
		},
	)

	// ConversationsActive tracks non-terminal conversations with armed timers.
	ConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dialog_conversations_active",
			Help: "Conversations currently awaiting input",
		},
	)

	// AdapterRetriesTotal tracks channel adapter send retries.
	AdapterRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_send_retries_total",
			Help: "Channel adapter send retries",
		},
		[]string{"channel_id"},
	)

	// AdapterFailuresTotal tracks sends that exhausted retries.
	AdapterFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_send_failures_total",
			Help: "Channel adapter sends that exhausted retries",
		},
		[]string{"channel_id"},
	)

	// AssistantRequestsTotal tracks completion calls by provider.
	AssistantRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_requests_total",
			Help: "Assistant completion requests",
		},
		[]string{"provider", "status"},
	)

	// AssistantDuration tracks completion call duration.
	AssistantDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_request_duration_seconds",
			Help:    "Assistant completion request duration",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"provider"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordDispatch records metrics for one conversation dispatch.
func RecordDispatch(tenantID, trigger, result string, duration float64) {
	DispatchDuration.WithLabelValues(tenantID, trigger).Observe(duration)
	DispatchesTotal.WithLabelValues(tenantID, result).Inc()
}

// RecordAssistant records metrics for one assistant completion call.
func RecordAssistant(provider, status string, duration float64) {
	AssistantRequestsTotal.WithLabelValues(provider, status).Inc()
	AssistantDuration.WithLabelValues(provider).Observe(duration)
}
