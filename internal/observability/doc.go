// Package observability provides logging, metrics, and tracing support for
// the blog composer.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithExecutionContext(logger, exec.ID)
//
// # Metrics
//
//	metrics := observability.NewMetrics("composer")
//	metrics.RecordSuspended(domain.GateConceptReview)
//
// A nil *Metrics is valid and records nothing.
//
// # Tracing
//
//	tp, err := observability.NewTracerProvider(ctx, observability.TracingConfig{Enabled: true, Endpoint: url})
//	defer tp.Shutdown(ctx)
//	ctx, span := observability.StartSpan(ctx, tp.Tracer(), "step")
//
// # Standard Fields
//
//   - execution_id: execution identifier
//   - step_id: stage identifier (extract-metadata, generate-draft, ...)
//   - gate_id: gate identifier (concept-review, artifact-review)
//   - request_id / correlation_id: HTTP request identifiers
//   - trace_id / span_id: distributed trace identifiers
package observability
