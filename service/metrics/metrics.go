package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics. A nil
// *Metrics is safe everywhere: the record methods no-op on nil.
type Metrics struct {
	// Solana RPC metrics
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec

	// Workflow metrics
	workflowsTotal   *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec

	// Confirmation metrics
	confirmationPolls    *prometheus.HistogramVec
	confirmationOutcomes *prometheus.CounterVec

	// Event publishing metrics
	eventsPublished *prometheus.CounterVec

	// Database metrics
	dbOperationsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		workflowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflows_total",
				Help: "Total number of workflow executions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workflow_duration_seconds",
				Help:    "End-to-end duration of workflow executions in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
		confirmationPolls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_polls_per_transaction",
				Help:    "Number of status polls issued before a transaction reached a terminal state",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
			[]string{"level"},
		),
		confirmationOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confirmation_outcomes_total",
				Help: "Terminal confirmation outcomes by result",
			},
			[]string{"result"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_events_published_total",
				Help: "Workflow lifecycle events published to NATS by status",
			},
			[]string{"status"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Database operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method and status code",
			},
			[]string{"handler", "method", "code"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its duration.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	if m == nil {
		return
	}
	m.rpcCallsTotal.WithLabelValues(method, status).Inc()
	m.rpcCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordWorkflow records a completed workflow execution.
func (m *Metrics) RecordWorkflow(kind, outcome string, duration float64) {
	if m == nil {
		return
	}
	m.workflowsTotal.WithLabelValues(kind, outcome).Inc()
	m.workflowDuration.WithLabelValues(kind).Observe(duration)
}

// RecordConfirmation records the poll count and terminal result of a confirmation.
func (m *Metrics) RecordConfirmation(level, result string, polls int) {
	if m == nil {
		return
	}
	m.confirmationPolls.WithLabelValues(level).Observe(float64(polls))
	m.confirmationOutcomes.WithLabelValues(result).Inc()
}

// RecordEventPublished records a workflow event publish attempt.
func (m *Metrics) RecordEventPublished(status string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(status).Inc()
}

// RecordDBOperation records a database operation.
func (m *Metrics) RecordDBOperation(operation, status string) {
	if m == nil {
		return
	}
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status code.
func (m *Metrics) RecordHTTPRequest(handler, method string, code int, duration float64) {
	if m == nil {
		return
	}
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, statusCodeLabel(code)).Inc()
}

func statusCodeLabel(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
