package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_composer_new")

	assert.NotNil(t, m.ExecutionsStarted)
	assert.NotNil(t, m.ExecutionsFinished)
	assert.NotNil(t, m.Suspensions)
	assert.NotNil(t, m.Decisions)
	assert.NotNil(t, m.StepsTotal)
	assert.NotNil(t, m.StepDuration)
	assert.NotNil(t, m.StoreErrors)
	assert.NotNil(t, m.LLMRequestsTotal)
	assert.NotNil(t, m.HTTPRequests)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordExecutionStarted()
		m.RecordExecutionFinished("completed", 1)
		m.RecordSuspended("concept-review")
		m.RecordDecision("concept-review", true, 1)
		m.RecordResumeRejected("gate_mismatch")
		m.RecordStep("extract-metadata", "completed", 0.1)
		m.RecordStoreError("update")
		m.RecordBookkeepingFailure("mark_failed")
		m.RecordLLMRequest("summarize", "gpt", 1, 1, 1)
		m.RecordLLMRequestFailed("summarize", "gpt", "rate_limit")
		m.RecordHTTPRequest("/x", "GET", "200", 0.01)
	})
}

func TestRecordExecutionLifecycle(t *testing.T) {
	m := NewMetrics("test_composer_lifecycle")

	m.RecordExecutionStarted()
	m.RecordExecutionFinished("rejected", 42)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExecutionsStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExecutionsFinished.WithLabelValues("rejected")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ExecutionsFinished.WithLabelValues("completed")))
}

func TestRecordDecision(t *testing.T) {
	m := NewMetrics("test_composer_decision")

	m.RecordSuspended("concept-review")
	m.RecordDecision("concept-review", true, 30)
	m.RecordDecision("artifact-review", false, 60)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Suspensions.WithLabelValues("concept-review")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Decisions.WithLabelValues("concept-review", "approved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Decisions.WithLabelValues("artifact-review", "rejected")))
}

func TestRecordStep(t *testing.T) {
	m := NewMetrics("test_composer_step")

	m.RecordStep("generate-draft", "completed", 2.5)
	m.RecordStep("generate-draft", "failed", 0.5)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.StepsTotal.WithLabelValues("generate-draft", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StepsTotal.WithLabelValues("generate-draft", "failed")))

	count, err := getHistogramSampleCount(m.StepDuration.WithLabelValues("generate-draft").(prometheus.Histogram))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestRecordLLMRequest(t *testing.T) {
	m := NewMetrics("test_composer_llm_request")

	m.RecordLLMRequest("summarize_concepts", "gpt-4", 2.5, 100, 50)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("summarize_concepts", "gpt-4")))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("summarize_concepts", "gpt-4", "input")))
	assert.Equal(t, float64(50), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("summarize_concepts", "gpt-4", "output")))
}

func TestNoopTracing(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), tp.Tracer(), "step")
	SetSpanError(span, errors.New("boom"))
	span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
