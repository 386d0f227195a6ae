package workflow

import (
	"context"
	"maps"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/repository"
)

// ResumeData describes how a suspension is being cleared.
type ResumeData struct {
	// GateID, when set, must name the pending gate.
	GateID string
	// Decision, when set, is recorded as an approval-decision entry.
	Decision *domain.Decision
	// Data is copied into the workflow-resumed entry.
	Data map[string]any
}

// SuspensionManager persists and clears the pending-gate record of an execution.
//
// Clear is a compare-and-swap: the write only succeeds if the stored record is
// still the suspension that was observed, so of two racing callers exactly one
// resumes the execution and the other receives a NotSuspendedError.
type SuspensionManager struct {
	store  repository.ExecutionRepository
	audit  *AuditLog
	clock  clock.Clock
	logger zerolog.Logger
}

// NewSuspensionManager creates a SuspensionManager.
func NewSuspensionManager(store repository.ExecutionRepository, audit *AuditLog, clk clock.Clock, logger zerolog.Logger) *SuspensionManager {
	if clk == nil {
		clk = clock.New()
	}
	return &SuspensionManager{store: store, audit: audit, clock: clk, logger: logger}
}

// Suspend parks a running execution at gateID with payload for the approver.
func (m *SuspensionManager) Suspend(ctx context.Context, executionID, reason, gateID string, payload map[string]any) (*domain.Execution, error) {
	record := &domain.SuspensionRecord{
		SuspendedAt: m.clock.Now().UTC(),
		Reason:      reason,
		GateID:      gateID,
		Payload:     payload,
	}

	patch := domain.ExecutionPatch{
		Suspension: record,
		Precondition: func(cur *domain.Execution) error {
			if cur.Status != domain.StatusRunning {
				return domain.NewInvalidStateError(cur.ID, cur.Status, "suspend")
			}
			return nil
		},
	}.WithStatus(domain.StatusSuspended).WithAudit(
		m.audit.Entry(domain.AuditWorkflowSuspended, "", map[string]any{
			"gate_id": gateID,
			"reason":  reason,
		}),
	)

	exec, err := m.store.Update(ctx, executionID, patch)
	if err != nil {
		return nil, err
	}

	logger := observability.WithGateContext(m.logger, executionID, gateID)
	logger.Info().
		Str("reason", reason).
		Msg("execution suspended")
	return exec, nil
}

// LoadPending returns the pending suspension, or nil when the execution is not suspended.
// It never writes.
func (m *SuspensionManager) LoadPending(ctx context.Context, executionID string) (*domain.SuspensionRecord, error) {
	_, pending, err := m.pending(ctx, executionID)
	return pending, err
}

// pending loads the execution together with its pending record.
func (m *SuspensionManager) pending(ctx context.Context, executionID string) (*domain.Execution, *domain.SuspensionRecord, error) {
	exec, err := m.store.Get(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}
	if exec.Status != domain.StatusSuspended || exec.Suspension == nil {
		return exec, nil, nil
	}
	record := *exec.Suspension
	return exec, &record, nil
}

// Clear resumes a suspended execution: it records how long the gate was
// pending, appends workflow-resumed, and sets the status back to running.
func (m *SuspensionManager) Clear(ctx context.Context, executionID string, resume ResumeData) (*domain.Execution, error) {
	exec, observed, err := m.pending(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if observed == nil {
		return nil, domain.NewNotSuspendedError(exec.ID, exec.Status)
	}
	if resume.GateID != "" && resume.GateID != observed.GateID {
		return nil, domain.NewGateMismatchError(exec.ID, observed.GateID, resume.GateID)
	}

	now := m.clock.Now()
	waited := now.Sub(observed.SuspendedAt)
	if waited < 0 {
		waited = 0
	}

	data := make(map[string]any, len(resume.Data)+3)
	maps.Copy(data, resume.Data)
	data["gate_id"] = observed.GateID
	data["suspended_ms"] = waited.Milliseconds()
	data["suspended_for"] = waited.Round(time.Millisecond).String()

	var entries []domain.AuditLogEntry
	if d := resume.Decision; d != nil {
		entries = append(entries, m.audit.Entry(domain.AuditApprovalDecision, "", map[string]any{
			"gate_id":    d.GateID,
			"approved":   d.Approved,
			"comments":   d.Comments,
			"decided_by": d.DecidedBy,
		}))
	}
	entries = append(entries, m.audit.Entry(domain.AuditWorkflowResumed, "", data))

	patch := domain.ExecutionPatch{
		ClearSuspension: true,
		Precondition: func(cur *domain.Execution) error {
			if cur.Status != domain.StatusSuspended || cur.Suspension == nil {
				return domain.NewNotSuspendedError(cur.ID, cur.Status)
			}
			if cur.Suspension.GateID != observed.GateID || !cur.Suspension.SuspendedAt.Equal(observed.SuspendedAt) {
				// Resumed and suspended again by someone else in between.
				return domain.NewNotSuspendedError(cur.ID, cur.Status)
			}
			return nil
		},
	}.WithStatus(domain.StatusRunning).WithAudit(entries...)

	updated, err := m.store.Update(ctx, executionID, patch)
	if err != nil {
		return nil, err
	}

	logger := observability.WithGateContext(m.logger, executionID, observed.GateID)
	logger.Info().
		Dur("suspended_for", waited).
		Msg("execution resumed")
	return updated, nil
}
