package domain

import (
	"time"
)

// ExecutionPatch is a partial update of an execution.
//
// Context is merged key-wise and AuditLog is appended. Status and Suspension
// replace the stored values when set. Precondition, when non-nil, is evaluated
// against the stored record inside the store's atomic section; a non-nil
// result aborts the update and is returned unchanged.
type ExecutionPatch struct {
	Context         StageResults
	AuditLog        []AuditLogEntry
	Status          *Status
	Suspension      *SuspensionRecord
	ClearSuspension bool
	CompletedAt     *time.Time
	Precondition    func(current *Execution) error
}

// WithStatus sets the status the patch will write.
func (p ExecutionPatch) WithStatus(s Status) ExecutionPatch {
	p.Status = &s
	return p
}

// WithAudit appends entries to the patch's audit log.
func (p ExecutionPatch) WithAudit(entries ...AuditLogEntry) ExecutionPatch {
	p.AuditLog = append(append([]AuditLogEntry(nil), p.AuditLog...), entries...)
	return p
}

// Apply merges p into e in place, stamping UpdatedAt with now.
//
// Terminal executions reject every patch with an InvalidStateError. The
// suspension/status pairing is checked after the merge so a patch cannot
// leave a suspended execution without a record or vice versa.
func (e *Execution) Apply(p ExecutionPatch, now time.Time) error {
	if p.Precondition != nil {
		if err := p.Precondition(e); err != nil {
			return err
		}
	}
	if e.Status.IsTerminal() {
		return NewInvalidStateError(e.ID, e.Status, "update")
	}

	if err := e.Context.Merge(p.Context); err != nil {
		return err
	}
	e.Metrics.AuditLog = append(e.Metrics.AuditLog, p.AuditLog...)

	if p.Status != nil {
		if !p.Status.IsValid() {
			return NewValidationError("status", "unknown status "+string(*p.Status))
		}
		e.Status = *p.Status
	}
	switch {
	case p.ClearSuspension:
		e.Suspension = nil
	case p.Suspension != nil:
		rec := *p.Suspension
		e.Suspension = &rec
	}
	if p.CompletedAt != nil {
		at := p.CompletedAt.UTC()
		e.Metrics.CompletedAt = &at
	}

	if (e.Suspension != nil) != (e.Status == StatusSuspended) {
		return NewValidationError("suspension", "suspension record must be present exactly when suspended")
	}

	e.UpdatedAt = now.UTC()
	return nil
}

// NewExecution builds the initial record for a freshly started execution.
func NewExecution(id string, input ExecutionInput, now time.Time) *Execution {
	now = now.UTC()
	return &Execution{
		ID:     id,
		Input:  input,
		Status: StatusRunning,
		Metrics: Metrics{
			StartedAt: now,
			AuditLog: []AuditLogEntry{
				NewAuditLogEntry(now, AuditWorkflowCreated, "", map[string]any{
					"source_url": input.SourceURL,
				}),
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
