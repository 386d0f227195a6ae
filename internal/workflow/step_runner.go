package workflow

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/repository"
)

// StepFunc computes one stage from the results accumulated so far.
// It returns only the keys it produces.
type StepFunc func(ctx context.Context, current domain.StageResults) (domain.StageResults, error)

// Step outcomes used in metrics.
const (
	stepOutcomeCompleted = "completed"
	stepOutcomeFailed    = "failed"
)

// StepRunner wraps a stage with audit bookkeeping and the failure transition.
type StepRunner struct {
	store   repository.ExecutionRepository
	audit   *AuditLog
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewStepRunner creates a StepRunner. metrics may be nil.
func NewStepRunner(
	store repository.ExecutionRepository,
	audit *AuditLog,
	clk clock.Clock,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	tracer trace.Tracer,
) *StepRunner {
	if clk == nil {
		clk = clock.New()
	}
	if tracer == nil {
		tracer = observability.NoopTracer()
	}
	return &StepRunner{
		store:   store,
		audit:   audit,
		clock:   clk,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

// RunStep executes fn for stepID against exec and persists the outcome.
//
// On success the result is merged into the stored context and exec is
// refreshed in place. When fn fails the execution is marked failed and a
// *domain.StepError is returned; the caller must stop the stage sequence.
// A store failure while recording the failure is logged and does not replace
// the step error.
// Any other error is a store error from the started or completed write; the
// execution is still running and the caller decides how to end it.
func (r *StepRunner) RunStep(ctx context.Context, exec *domain.Execution, stepID string, fn StepFunc) (domain.StageResults, error) {
	logger := observability.WithStepContext(r.logger, exec.ID, stepID)

	ctx, span := observability.StartSpan(ctx, r.tracer, "workflow.step",
		attribute.String("execution.id", exec.ID),
		attribute.String("step.id", stepID),
	)
	defer span.End()

	started, err := r.audit.Append(ctx, exec.ID, r.audit.Entry(domain.AuditStepStarted, stepID, nil))
	if err != nil {
		observability.SetSpanError(span, err)
		return domain.StageResults{}, err
	}
	*exec = *started
	logger.Debug().Msg("step started")

	begin := r.clock.Now()
	result, fnErr := fn(ctx, exec.Context)
	elapsed := r.clock.Since(begin)

	if fnErr != nil {
		return domain.StageResults{}, r.fail(ctx, exec, stepID, fnErr, elapsed, span, logger)
	}

	summary := result.Summary()
	summary["duration_ms"] = elapsed.Milliseconds()

	updated, err := r.store.Update(ctx, exec.ID, domain.ExecutionPatch{
		Context: result,
		Precondition: func(cur *domain.Execution) error {
			if cur.Status != domain.StatusRunning {
				return domain.NewInvalidStateError(cur.ID, cur.Status, "complete step "+stepID)
			}
			return nil
		},
	}.WithAudit(r.audit.Entry(domain.AuditStepCompleted, stepID, summary)))
	if err != nil {
		observability.SetSpanError(span, err)
		r.metrics.RecordStoreError("step_completed")
		logger.Error().Err(err).Msg("failed to persist step result")
		return domain.StageResults{}, err
	}
	*exec = *updated

	r.metrics.RecordStep(stepID, stepOutcomeCompleted, elapsed.Seconds())
	logger.Info().
		Dur("duration", elapsed).
		Strs("context_keys", exec.Context.Keys()).
		Msg("step completed")

	return result, nil
}

// fail records the step failure and the execution's transition to failed.
func (r *StepRunner) fail(
	ctx context.Context,
	exec *domain.Execution,
	stepID string,
	cause error,
	elapsed time.Duration,
	span trace.Span,
	logger zerolog.Logger,
) error {
	stepErr := domain.NewStepError(stepID, cause)
	observability.SetSpanError(span, stepErr)
	r.metrics.RecordStep(stepID, stepOutcomeFailed, elapsed.Seconds())
	logger.Error().Err(cause).Dur("duration", elapsed).Msg("step failed")

	now := r.clock.Now()
	patch := domain.ExecutionPatch{CompletedAt: &now}.
		WithStatus(domain.StatusFailed).
		WithAudit(domain.NewAuditLogEntry(now, domain.AuditStepFailed, stepID, map[string]any{
			"error":       cause.Error(),
			"duration_ms": elapsed.Milliseconds(),
		}))

	updated, err := r.store.Update(ctx, exec.ID, patch)
	if err != nil {
		r.metrics.RecordBookkeepingFailure("mark_failed")
		logger.Error().Err(err).Msg("failed to record step failure")
		exec.Status = domain.StatusFailed
		return stepErr
	}
	*exec = *updated
	return stepErr
}
