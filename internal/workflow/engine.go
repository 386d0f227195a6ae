package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/repository"
)

// MetadataExtractor fetches a source page and extracts its metadata.
type MetadataExtractor interface {
	Extract(ctx context.Context, url string) (*domain.Metadata, error)
}

// ConceptSummarizer condenses metadata into key concepts.
type ConceptSummarizer interface {
	Summarize(ctx context.Context, md *domain.Metadata) (*domain.Concepts, error)
}

// OutlineGenerator produces a post outline from concepts.
type OutlineGenerator interface {
	GenerateOutline(ctx context.Context, c *domain.Concepts) (*domain.Outline, error)
}

// DraftGenerator writes a draft from an outline.
type DraftGenerator interface {
	GenerateDraft(ctx context.Context, o *domain.Outline) (*domain.Draft, error)
}

// Formatter renders a draft into the publishable artifact.
type Formatter interface {
	Render(d *domain.Draft) (*domain.RenderedArtifact, error)
}

// Notifier receives lifecycle events. Errors are logged by the engine and
// never change the outcome of Start or Resume.
type Notifier interface {
	Notify(ctx context.Context, event domain.LifecycleEvent) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.LifecycleEvent) error { return nil }

// Collaborators bundles the stage implementations the engine drives.
type Collaborators struct {
	Extractor  MetadataExtractor
	Summarizer ConceptSummarizer
	Outliner   OutlineGenerator
	Drafter    DraftGenerator
	Formatter  Formatter
}

func (c Collaborators) validate() error {
	switch {
	case c.Extractor == nil:
		return errors.New("metadata extractor is required")
	case c.Summarizer == nil:
		return errors.New("concept summarizer is required")
	case c.Outliner == nil:
		return errors.New("outline generator is required")
	case c.Drafter == nil:
		return errors.New("draft generator is required")
	case c.Formatter == nil:
		return errors.New("formatter is required")
	}
	return nil
}

// ExecutionResult is what Start and Resume report to their caller.
// It is returned even when the call fails.
type ExecutionResult struct {
	ExecutionID string                   `json:"execution_id,omitempty"`
	Status      domain.Status            `json:"status,omitempty"`
	GateID      string                   `json:"gate_id,omitempty"`
	Payload     map[string]any           `json:"payload,omitempty"`
	Rendered    *domain.RenderedArtifact `json:"rendered,omitempty"`
	Context     domain.StageResults      `json:"context"`
	Error       string                   `json:"error,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the engine clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer used for engine and step spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithNotifier sets the lifecycle event notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// Engine drives executions through the composition pipeline:
//
//	extract-metadata, summarize-concepts   -> gate concept-review
//	generate-outline, generate-draft,
//	render-artifact                        -> gate artifact-review
//	                                       -> completed
//
// Start and Resume are synchronous. Each call advances one execution to its
// next gate or to a terminal status and persists every transition before
// returning; nothing is held in memory across a suspension.
type Engine struct {
	store       repository.ExecutionRepository
	collab      Collaborators
	blocks      []block
	audit       *AuditLog
	steps       *StepRunner
	suspensions *SuspensionManager
	notifier    Notifier
	validate    *validator.Validate
	clock       clock.Clock
	logger      zerolog.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
}

// NewEngine creates an engine over store and collab.
func NewEngine(store repository.ExecutionRepository, collab Collaborators, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("execution store is required")
	}
	if err := collab.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:    store,
		collab:   collab,
		notifier: nopNotifier{},
		validate: validator.New(),
		clock:    clock.New(),
		logger:   zerolog.Nop(),
		tracer:   observability.NoopTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "workflow").Logger()

	e.audit = NewAuditLog(store, e.clock)
	e.steps = NewStepRunner(store, e.audit, e.clock, e.logger, e.metrics, e.tracer)
	e.suspensions = NewSuspensionManager(store, e.audit, e.clock, e.logger)
	e.blocks = e.definition()
	return e, nil
}

// Start creates an execution and runs it to the first gate.
func (e *Engine) Start(ctx context.Context, input domain.ExecutionInput) (*ExecutionResult, error) {
	ctx, span := observability.StartSpan(ctx, e.tracer, "workflow.Start",
		attribute.String("source.url", input.SourceURL))
	defer span.End()

	if err := e.validate.Struct(input); err != nil {
		verr := domain.NewValidationError("input", err.Error())
		observability.SetSpanError(span, verr)
		return &ExecutionResult{Error: verr.Error()}, verr
	}

	exec, err := e.store.Create(ctx, input)
	if err != nil {
		e.metrics.RecordStoreError("create")
		e.logger.Error().Err(err).Str("source_url", input.SourceURL).Msg("failed to create execution")
		observability.SetSpanError(span, err)
		return &ExecutionResult{Error: err.Error()}, err
	}
	span.SetAttributes(attribute.String("execution.id", exec.ID))

	e.metrics.RecordExecutionStarted()
	logger := observability.WithExecutionContext(e.logger, exec.ID)
	logger.Info().
		Str("source_url", input.SourceURL).
		Str("operator_id", input.OperatorID).
		Msg("execution started")

	ctx = observability.WithExecutionID(ctx, exec.ID)
	ctx = domain.ContextWithModel(ctx, input.Model)
	res, err := e.advance(ctx, exec, 0)
	if err != nil {
		observability.SetSpanError(span, err)
	}
	return res, err
}

// Resume applies decision to the execution's pending gate and, on approval,
// runs it to the next gate or to completion.
func (e *Engine) Resume(ctx context.Context, executionID string, decision domain.Decision) (*ExecutionResult, error) {
	ctx, span := observability.StartSpan(ctx, e.tracer, "workflow.Resume",
		attribute.String("execution.id", executionID),
		attribute.String("gate.id", decision.GateID),
		attribute.Bool("decision.approved", decision.Approved),
	)
	defer span.End()

	res, err := e.resume(ctx, executionID, decision)
	if err != nil {
		observability.SetSpanError(span, err)
	}
	return res, err
}

func (e *Engine) resume(ctx context.Context, executionID string, decision domain.Decision) (*ExecutionResult, error) {
	res := &ExecutionResult{ExecutionID: executionID}
	logger := observability.WithGateContext(e.logger, executionID, decision.GateID)

	if err := e.validate.Struct(decision); err != nil {
		verr := domain.NewValidationError("decision", err.Error())
		e.metrics.RecordResumeRejected("invalid_decision")
		return withError(res, verr), verr
	}

	exec, pending, err := e.suspensions.pending(ctx, executionID)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			e.metrics.RecordStoreError("get")
		}
		return withError(res, err), err
	}
	fillFromExecution(res, exec)

	if pending == nil {
		err := domain.NewNotSuspendedError(exec.ID, exec.Status)
		e.metrics.RecordResumeRejected("not_suspended")
		logger.Warn().Str("status", string(exec.Status)).Msg("resume refused: execution is not suspended")
		return withError(res, err), err
	}
	if pending.GateID != decision.GateID {
		err := domain.NewGateMismatchError(exec.ID, pending.GateID, decision.GateID)
		e.metrics.RecordResumeRejected("gate_mismatch")
		logger.Warn().Str("pending_gate", pending.GateID).Msg("resume refused: gate mismatch")
		return withError(res, err), err
	}

	next := e.blockAfter(pending.GateID)
	if next < 0 {
		err := domain.NewGateMismatchError(exec.ID, pending.GateID, decision.GateID)
		return withError(res, err), err
	}

	cleared, err := e.suspensions.Clear(ctx, executionID, ResumeData{
		GateID:   pending.GateID,
		Decision: &decision,
		Data:     map[string]any{"approved": decision.Approved},
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotSuspended):
			e.metrics.RecordResumeRejected("not_suspended")
			logger.Warn().Msg("resume refused: lost race for pending gate")
		case errors.Is(err, domain.ErrStoreUnavailable):
			e.metrics.RecordStoreError("clear")
		}
		return withError(res, err), err
	}
	e.metrics.RecordDecision(pending.GateID, decision.Approved, e.clock.Since(pending.SuspendedAt).Seconds())
	logger.Info().
		Bool("approved", decision.Approved).
		Str("decided_by", decision.DecidedBy).
		Msg("gate decision applied")

	if !decision.Approved {
		return e.reject(ctx, cleared, decision), nil
	}

	ctx = observability.WithExecutionID(ctx, cleared.ID)
	ctx = domain.ContextWithModel(ctx, cleared.Input.Model)
	return e.advance(ctx, cleared, next)
}

// advance runs blocks[idx] and then suspends at its gate or completes.
// Every error return leaves the execution failed, or logged as stuck when
// even that write is refused.
func (e *Engine) advance(ctx context.Context, exec *domain.Execution, idx int) (*ExecutionResult, error) {
	b := e.blocks[idx]
	res := &ExecutionResult{ExecutionID: exec.ID}

	for _, s := range b.steps {
		if _, err := e.steps.RunStep(ctx, exec, s.id, s.bind(exec.Input)); err != nil {
			var stepErr *domain.StepError
			if errors.As(err, &stepErr) {
				fillFromExecution(res, exec)
				e.finished(ctx, exec, domain.EventTypeExecutionFailed, err.Error())
				return withError(res, err), err
			}
			return e.abort(ctx, exec, "step "+s.id, err), err
		}
	}

	if b.gate == nil {
		return e.complete(ctx, exec), nil
	}

	payload, err := b.gate.payload(exec.Context)
	if err != nil {
		return e.failWorkflow(ctx, exec, fmt.Errorf("build %s payload: %w", b.gate.id, err))
	}

	suspended, err := e.suspensions.Suspend(ctx, exec.ID, b.gate.reason, b.gate.id, payload)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			e.metrics.RecordStoreError("suspend")
		}
		return e.abort(ctx, exec, "suspend at "+b.gate.id, err), err
	}
	e.metrics.RecordSuspended(b.gate.id)
	e.notify(ctx, domain.NewLifecycleEvent(domain.EventTypeExecutionSuspended, suspended, e.clock.Now()))

	fillFromExecution(res, suspended)
	return res, nil
}

// complete marks the execution completed. A failed write is logged; the
// completion is still reported.
func (e *Engine) complete(ctx context.Context, exec *domain.Execution) *ExecutionResult {
	now := e.clock.Now()
	data := map[string]any{}
	if r := exec.Context.Rendered; r != nil {
		data["format"] = r.Format
		data["bytes"] = r.Bytes
	}

	patch := domain.ExecutionPatch{CompletedAt: &now}.
		WithStatus(domain.StatusCompleted).
		WithAudit(domain.NewAuditLogEntry(now, domain.AuditWorkflowCompleted, "", data))

	updated, err := e.store.Update(ctx, exec.ID, patch)
	if err != nil {
		e.metrics.RecordBookkeepingFailure("mark_completed")
		logger := observability.WithExecutionContext(e.logger, exec.ID)
		logger.Error().Err(err).Msg("failed to record completion")
		exec.Status = domain.StatusCompleted
		exec.Metrics.CompletedAt = &now
		updated = exec
	}

	res := &ExecutionResult{ExecutionID: exec.ID}
	fillFromExecution(res, updated)
	e.finished(ctx, updated, domain.EventTypeExecutionCompleted, "")
	return res
}

// reject terminates the execution after a negative decision.
func (e *Engine) reject(ctx context.Context, exec *domain.Execution, decision domain.Decision) *ExecutionResult {
	now := e.clock.Now()
	patch := domain.ExecutionPatch{CompletedAt: &now}.
		WithStatus(domain.StatusRejected).
		WithAudit(domain.NewAuditLogEntry(now, domain.AuditWorkflowRejected, "", map[string]any{
			"gate_id":    decision.GateID,
			"comments":   decision.Comments,
			"decided_by": decision.DecidedBy,
		}))

	updated, err := e.store.Update(ctx, exec.ID, patch)
	if err != nil {
		e.metrics.RecordBookkeepingFailure("mark_rejected")
		logger := observability.WithExecutionContext(e.logger, exec.ID)
		logger.Error().Err(err).Msg("failed to record rejection")
		exec.Status = domain.StatusRejected
		exec.Metrics.CompletedAt = &now
		updated = exec
	}

	res := &ExecutionResult{ExecutionID: exec.ID}
	fillFromExecution(res, updated)
	e.finished(ctx, updated, domain.EventTypeExecutionRejected, decision.Comments)
	return res
}

// failWorkflow marks the execution failed for a reason outside any step and
// returns the failure as a pipeline error.
func (e *Engine) failWorkflow(ctx context.Context, exec *domain.Execution, cause error) (*ExecutionResult, error) {
	werr := domain.NewWorkflowError(cause)

	updated, err := e.markFailed(ctx, exec, werr)
	if err != nil {
		e.metrics.RecordBookkeepingFailure("mark_failed")
		logger := observability.WithExecutionContext(e.logger, exec.ID)
		logger.Error().Err(err).Msg("failed to record workflow failure")
		exec.Status = domain.StatusFailed
		updated = exec
	}

	res := &ExecutionResult{ExecutionID: exec.ID}
	fillFromExecution(res, updated)
	e.finished(ctx, updated, domain.EventTypeExecutionFailed, werr.Error())
	return withError(res, werr), werr
}

// abort handles a store error that interrupted the pipeline after exec was
// running. It tries once to mark the execution failed so that it does not
// stay running with nothing left to drive it. The result reflects whatever
// status is actually stored.
func (e *Engine) abort(ctx context.Context, exec *domain.Execution, during string, cause error) *ExecutionResult {
	logger := observability.WithExecutionContext(e.logger, exec.ID)
	res := &ExecutionResult{ExecutionID: exec.ID}

	updated, err := e.markFailed(ctx, exec, fmt.Errorf("%s: %w", during, cause))
	if err != nil {
		e.metrics.RecordBookkeepingFailure("mark_failed")
		logger.Error().Err(err).
			AnErr("cause", cause).
			Str("during", during).
			Str("status", string(exec.Status)).
			Msg("failed to mark interrupted execution failed")
		fillFromExecution(res, exec)
		return withError(res, cause)
	}

	logger.Warn().Err(cause).Str("during", during).Msg("execution failed after store error")
	fillFromExecution(res, updated)
	e.finished(ctx, updated, domain.EventTypeExecutionFailed, cause.Error())
	return withError(res, cause)
}

// markFailed persists the failed status together with a workflow-failed entry.
func (e *Engine) markFailed(ctx context.Context, exec *domain.Execution, cause error) (*domain.Execution, error) {
	now := e.clock.Now()
	patch := domain.ExecutionPatch{CompletedAt: &now}.
		WithStatus(domain.StatusFailed).
		WithAudit(domain.NewAuditLogEntry(now, domain.AuditWorkflowFailed, "", map[string]any{
			"error": cause.Error(),
		}))
	return e.store.Update(ctx, exec.ID, patch)
}

// finished records a terminal transition in logs, metrics and the notifier.
func (e *Engine) finished(ctx context.Context, exec *domain.Execution, eventType, detail string) {
	elapsed := e.clock.Since(exec.Metrics.StartedAt)
	e.metrics.RecordExecutionFinished(string(exec.Status), elapsed.Seconds())

	logger := observability.WithExecutionContext(e.logger, exec.ID)
	ev := logger.Info().
		Str("status", string(exec.Status)).
		Dur("elapsed", elapsed)
	if detail != "" {
		ev = ev.Str("detail", detail)
	}
	ev.Msg("execution finished")

	event := domain.NewLifecycleEvent(eventType, exec, e.clock.Now())
	if exec.Status == domain.StatusFailed {
		event.Error = detail
	}
	e.notify(ctx, event)
}

func (e *Engine) notify(ctx context.Context, event domain.LifecycleEvent) {
	if err := e.notifier.Notify(ctx, event); err != nil {
		logger := observability.WithExecutionContext(e.logger, event.ExecutionID)
		logger.Warn().Err(err).
			Str("event_type", event.EventType).
			Msg("failed to publish lifecycle event")
	}
}

// Get returns the stored execution.
func (e *Engine) Get(ctx context.Context, executionID string) (*domain.Execution, error) {
	return e.store.Get(ctx, executionID)
}

// LoadPending returns the execution's pending gate, or nil when it is not suspended.
func (e *Engine) LoadPending(ctx context.Context, executionID string) (*domain.SuspensionRecord, error) {
	return e.suspensions.LoadPending(ctx, executionID)
}

// Ping reports whether the execution store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// fillFromExecution copies the caller-visible state of exec into res.
func fillFromExecution(res *ExecutionResult, exec *domain.Execution) {
	res.ExecutionID = exec.ID
	res.Status = exec.Status
	res.Context = exec.Context
	res.Rendered = exec.Context.Rendered
	if exec.Suspension != nil {
		res.GateID = exec.Suspension.GateID
		res.Payload = exec.Suspension.Payload
	}
}

func withError(res *ExecutionResult, err error) *ExecutionResult {
	res.Error = err.Error()
	return res
}
