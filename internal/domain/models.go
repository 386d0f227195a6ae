// Package domain provides domain models and business logic for the blog composer.
package domain

import (
	"time"
)

// Status represents the lifecycle states of an execution.
// These values must match the executions.status check constraint.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusRunning, StatusSuspended, StatusCompleted, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// Gate identifiers, encountered in this order.
const (
	GateConceptReview  = "concept-review"
	GateArtifactReview = "artifact-review"
)

// Step identifiers.
const (
	StepExtractMetadata   = "extract-metadata"
	StepSummarizeConcepts = "summarize-concepts"
	StepGenerateOutline   = "generate-outline"
	StepGenerateDraft     = "generate-draft"
	StepRenderArtifact    = "render-artifact"
)

// ExecutionInput holds the immutable parameters an execution was started with.
type ExecutionInput struct {
	SourceURL  string `json:"source_url" validate:"required,url,max=2048"`
	OperatorID string `json:"operator_id,omitempty" validate:"omitempty,max=255"`
	Model      string `json:"model,omitempty" validate:"omitempty,max=128"`
}

// SuspensionRecord describes the gate an execution is waiting on.
type SuspensionRecord struct {
	SuspendedAt time.Time      `json:"suspended_at"`
	Reason      string         `json:"reason"`
	GateID      string         `json:"gate_id"`
	// Payload is the JSON object form of a ConceptReviewPayload or
	// ArtifactReviewPayload. Numbers are float64 on every path; use
	// DecodePayload for typed access.
	Payload map[string]any `json:"payload,omitempty"`
}

// Metrics holds timing information and the audit log.
type Metrics struct {
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	AuditLog    []AuditLogEntry `json:"audit_log"`
}

// Execution is one run of the composition workflow.
type Execution struct {
	ID         string            `json:"id"`
	Input      ExecutionInput    `json:"input"`
	Status     Status            `json:"status"`
	Context    StageResults      `json:"context"`
	Suspension *SuspensionRecord `json:"suspension,omitempty"`
	Metrics    Metrics           `json:"metrics"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// IsActive returns true if the execution can still make progress.
func (e *Execution) IsActive() bool {
	return !e.Status.IsTerminal()
}

// Duration returns the wall-clock time between start and completion.
// Returns 0 if the execution has not completed.
func (e *Execution) Duration() time.Duration {
	if e.Metrics.CompletedAt == nil {
		return 0
	}
	return e.Metrics.CompletedAt.Sub(e.Metrics.StartedAt)
}

// LastAuditEntry returns the most recent audit entry, or nil for an empty log.
func (e *Execution) LastAuditEntry() *AuditLogEntry {
	if len(e.Metrics.AuditLog) == 0 {
		return nil
	}
	return &e.Metrics.AuditLog[len(e.Metrics.AuditLog)-1]
}

// Validate checks the structural invariants of a stored execution.
func (e *Execution) Validate() error {
	if e.ID == "" {
		return NewValidationError("id", "execution ID is required")
	}
	if !e.Status.IsValid() {
		return NewValidationError("status", "unknown status "+string(e.Status))
	}
	if (e.Suspension != nil) != (e.Status == StatusSuspended) {
		return NewValidationError("suspension", "suspension record must be present exactly when suspended")
	}
	return nil
}

// Decision is an external approve/reject verdict for a pending gate.
type Decision struct {
	GateID    string `json:"gate_id" validate:"required,max=64"`
	Approved  bool   `json:"approved"`
	Comments  string `json:"comments,omitempty" validate:"max=4000"`
	DecidedBy string `json:"decided_by,omitempty" validate:"max=255"`
}
