package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent names one kind of audit log entry.
type AuditEvent string

// Audit events. The set is closed.
const (
	AuditWorkflowCreated   AuditEvent = "workflow-created"
	AuditStepStarted       AuditEvent = "step-started"
	AuditStepCompleted     AuditEvent = "step-completed"
	AuditStepFailed        AuditEvent = "step-failed"
	AuditWorkflowSuspended AuditEvent = "workflow-suspended"
	AuditWorkflowResumed   AuditEvent = "workflow-resumed"
	AuditApprovalDecision  AuditEvent = "approval-decision"
	AuditWorkflowCompleted AuditEvent = "workflow-completed"
	AuditWorkflowRejected  AuditEvent = "workflow-rejected"
	AuditWorkflowFailed    AuditEvent = "workflow-failed"
)

// IsValid reports whether e belongs to the closed audit event set.
func (e AuditEvent) IsValid() bool {
	switch e {
	case AuditWorkflowCreated, AuditStepStarted, AuditStepCompleted, AuditStepFailed,
		AuditWorkflowSuspended, AuditWorkflowResumed, AuditApprovalDecision,
		AuditWorkflowCompleted, AuditWorkflowRejected, AuditWorkflowFailed:
		return true
	default:
		return false
	}
}

// AuditLogEntry is one immutable record in an execution's audit log.
type AuditLogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     AuditEvent     `json:"event"`
	StepID    string         `json:"step_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewAuditLogEntry creates an entry stamped with the given time in UTC.
func NewAuditLogEntry(at time.Time, event AuditEvent, stepID string, data map[string]any) AuditLogEntry {
	return AuditLogEntry{
		Timestamp: at.UTC(),
		Event:     event,
		StepID:    stepID,
		Data:      data,
	}
}

// Lifecycle event types published to the event bus.
const (
	EventTypeExecutionSuspended = "execution.suspended"
	EventTypeExecutionCompleted = "execution.completed"
	EventTypeExecutionRejected  = "execution.rejected"
	EventTypeExecutionFailed    = "execution.failed"
)

// LifecycleEvent notifies external parties about an execution transition.
type LifecycleEvent struct {
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	ExecutionID string         `json:"execution_id"`
	Status      Status         `json:"status"`
	GateID      string         `json:"gate_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Error       string         `json:"error,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// NewLifecycleEvent creates a lifecycle event with a fresh event ID.
func NewLifecycleEvent(eventType string, exec *Execution, at time.Time) LifecycleEvent {
	ev := LifecycleEvent{
		EventID:     uuid.New().String(),
		EventType:   eventType,
		ExecutionID: exec.ID,
		Status:      exec.Status,
		OccurredAt:  at.UTC(),
	}
	if exec.Suspension != nil {
		ev.GateID = exec.Suspension.GateID
		ev.Payload = exec.Suspension.Payload
	}
	return ev
}

// DecisionMessage is the wire form of a decision delivered over the event bus.
type DecisionMessage struct {
	ExecutionID string `json:"execution_id" validate:"required,uuid"`
	Decision
}
