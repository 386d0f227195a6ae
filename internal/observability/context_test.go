package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextHelpers(t *testing.T) {
	t.Run("empty context yields empty values", func(t *testing.T) {
		ctx := context.Background()

		assert.Empty(t, RequestIDFromContext(ctx))
		assert.Empty(t, CorrelationIDFromContext(ctx))
		assert.Empty(t, ExecutionIDFromContext(ctx))
		traceID, spanID := TraceSpanFromContext(ctx)
		assert.Empty(t, traceID)
		assert.Empty(t, spanID)
	})

	t.Run("values round trip", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-1")
		ctx = WithCorrelationID(ctx, "corr-1")
		ctx = WithExecutionID(ctx, "exec-1")
		ctx = WithTraceSpan(ctx, "trace-1", "span-1")

		fields := LogFieldsFromContext(ctx)
		assert.Equal(t, LogFields{
			RequestID:     "req-1",
			CorrelationID: "corr-1",
			ExecutionID:   "exec-1",
			TraceID:       "trace-1",
			SpanID:        "span-1",
		}, fields)
	})

	t.Run("foreign key types are ignored", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), "request_id", "plain-string-key") //nolint:staticcheck
		assert.Empty(t, RequestIDFromContext(ctx))
	})
}
