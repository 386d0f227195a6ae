package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the composer.
// Metrics are organized by subsystem: executions, gates, steps, store, LLM and HTTP.
// All collectors are registered via promauto with the default registry.
//
// Every Record method is safe to call on a nil *Metrics, which lets tests and
// the CLI run without a registry.
type Metrics struct {
	// ExecutionsStarted counts executions created by Start.
	ExecutionsStarted prometheus.Counter

	// ExecutionsFinished counts executions reaching a terminal status, labeled by status.
	ExecutionsFinished *prometheus.CounterVec

	// ExecutionDuration observes start-to-terminal duration in seconds, labeled by status.
	ExecutionDuration *prometheus.HistogramVec

	// Suspensions counts suspensions, labeled by gate.
	Suspensions *prometheus.CounterVec

	// Decisions counts gate decisions, labeled by gate and outcome (approved, rejected).
	Decisions *prometheus.CounterVec

	// SuspendedDuration observes how long executions waited at a gate, labeled by gate.
	SuspendedDuration *prometheus.HistogramVec

	// ResumeRejected counts Resume calls refused as caller misuse, labeled by reason.
	ResumeRejected *prometheus.CounterVec

	// StepsTotal counts step executions, labeled by step and outcome.
	StepsTotal *prometheus.CounterVec

	// StepDuration observes step duration in seconds, labeled by step.
	StepDuration *prometheus.HistogramVec

	// StoreErrors counts store failures, labeled by operation.
	StoreErrors *prometheus.CounterVec

	// BookkeepingFailures counts audit/status writes that failed after a result was computed.
	BookkeepingFailures *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec

	// HTTPRequests counts HTTP requests, labeled by route, method and status code.
	HTTPRequests *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP request duration in seconds, labeled by route and method.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ExecutionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_started_total",
			Help:      "Total number of executions started",
		}),
		ExecutionsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_finished_total",
			Help:      "Total number of executions reaching a terminal status",
		}, []string{"status"}),
		ExecutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Duration from start to terminal status, including time spent suspended",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 21600, 86400, 604800},
		}, []string{"status"}),

		Suspensions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspensions_total",
			Help:      "Total number of executions suspended at a gate",
		}, []string{"gate"}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Total number of gate decisions applied",
		}, []string{"gate", "outcome"}),
		SuspendedDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "suspended_duration_seconds",
			Help:      "Time executions spent waiting for a gate decision",
			Buckets:   []float64{10, 60, 300, 1800, 3600, 21600, 86400, 604800},
		}, []string{"gate"}),
		ResumeRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resume_rejected_total",
			Help:      "Total number of Resume calls refused as caller misuse",
		}, []string{"reason"}),

		StepsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of step executions",
		}, []string{"step", "outcome"}),
		StepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of step executions",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"step"}),

		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of execution store failures",
		}, []string{"op"}),
		BookkeepingFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookkeeping_failures_total",
			Help:      "Total number of audit or status writes that failed after a result was computed",
		}, []string{"op"}),

		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API requests",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM API requests",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API requests",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens consumed by LLM requests",
		}, []string{"operation", "model", "token_type"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// RecordExecutionStarted records that an execution was created.
func (m *Metrics) RecordExecutionStarted() {
	if m == nil {
		return
	}
	m.ExecutionsStarted.Inc()
}

// RecordExecutionFinished records a terminal status and the total execution duration.
func (m *Metrics) RecordExecutionFinished(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ExecutionsFinished.WithLabelValues(status).Inc()
	m.ExecutionDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordSuspended records a suspension at gate.
func (m *Metrics) RecordSuspended(gate string) {
	if m == nil {
		return
	}
	m.Suspensions.WithLabelValues(gate).Inc()
}

// RecordDecision records a gate decision and how long the gate was pending.
func (m *Metrics) RecordDecision(gate string, approved bool, waitedSeconds float64) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	m.Decisions.WithLabelValues(gate, outcome).Inc()
	m.SuspendedDuration.WithLabelValues(gate).Observe(waitedSeconds)
}

// RecordResumeRejected records a Resume call refused as caller misuse.
func (m *Metrics) RecordResumeRejected(reason string) {
	if m == nil {
		return
	}
	m.ResumeRejected.WithLabelValues(reason).Inc()
}

// RecordStep records a step outcome ("completed" or "failed") and its duration.
func (m *Metrics) RecordStep(step, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StepsTotal.WithLabelValues(step, outcome).Inc()
	m.StepDuration.WithLabelValues(step).Observe(durationSeconds)
}

// RecordStoreError records a store failure.
func (m *Metrics) RecordStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

// RecordBookkeepingFailure records a failed audit or status write.
func (m *Metrics) RecordBookkeepingFailure(op string) {
	if m == nil {
		return
	}
	m.BookkeepingFailures.WithLabelValues(op).Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	if m == nil {
		return
	}
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method, code string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(durationSeconds)
}
