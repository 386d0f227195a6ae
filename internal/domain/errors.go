package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested execution was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an execution with the same ID already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotSuspended indicates a resume or clear against an execution that is not suspended.
	ErrNotSuspended = errors.New("execution is not suspended")

	// ErrGateMismatch indicates a decision addressed to a gate other than the pending one.
	ErrGateMismatch = errors.New("gate mismatch")

	// ErrInvalidState indicates an attempted transition out of a terminal status.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrStepFailed indicates that a stage collaborator returned an error.
	ErrStepFailed = errors.New("step failed")

	// ErrWorkflowFailed indicates that the workflow failed between steps,
	// for example while building a gate payload.
	ErrWorkflowFailed = errors.New("workflow failed")

	// ErrStoreUnavailable indicates that the execution store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ErrorKind classifies errors so callers can branch without matching messages.
type ErrorKind string

const (
	// KindClient covers caller misuse: unknown executions, wrong gates, invalid input.
	KindClient ErrorKind = "client"
	// KindPipeline covers failures raised by stage collaborators.
	KindPipeline ErrorKind = "pipeline"
	// KindInfrastructure covers persistence and other infrastructure outages.
	KindInfrastructure ErrorKind = "infrastructure"
	// KindUnknown is returned for errors outside the taxonomy.
	KindUnknown ErrorKind = "unknown"
)

// KindOf returns the kind of err by inspecting its wrapped sentinels.
// A nil error has an empty kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreUnavailable):
		return KindInfrastructure
	case errors.Is(err, ErrStepFailed), errors.Is(err, ErrWorkflowFailed):
		return KindPipeline
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotSuspended),
		errors.Is(err, ErrGateMismatch),
		errors.Is(err, ErrInvalidState):
		return KindClient
	default:
		return KindUnknown
	}
}

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// NotSuspendedError is returned when a resume targets an execution without a pending gate.
type NotSuspendedError struct {
	ID     string
	Status Status
}

// Error implements the error interface.
func (e *NotSuspendedError) Error() string {
	return fmt.Sprintf("execution %s is not suspended (status %s)", e.ID, e.Status)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotSuspendedError) Unwrap() error {
	return ErrNotSuspended
}

// GateMismatchError is returned when a decision names a gate other than the pending one.
type GateMismatchError struct {
	ID       string
	Expected string
	Got      string
}

// Error implements the error interface.
func (e *GateMismatchError) Error() string {
	return fmt.Sprintf("execution %s is suspended at gate %q, decision was for %q", e.ID, e.Expected, e.Got)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *GateMismatchError) Unwrap() error {
	return ErrGateMismatch
}

// InvalidStateError is returned when an operation is not legal in the execution's current status.
type InvalidStateError struct {
	ID     string
	Status Status
	Op     string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s execution %s in status %s", e.Op, e.ID, e.Status)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// StepError wraps the error raised by a stage collaborator.
type StepError struct {
	StepID string
	Cause  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.StepID, e.Cause)
}

// Unwrap returns both the sentinel and the collaborator's error.
func (e *StepError) Unwrap() []error {
	return []error{ErrStepFailed, e.Cause}
}

// WorkflowError wraps a failure raised by the engine itself rather than by a stage.
type WorkflowError struct {
	Cause error
}

// Error implements the error interface.
func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow failed: %v", e.Cause)
}

// Unwrap returns both the sentinel and the underlying error.
func (e *WorkflowError) Unwrap() []error {
	return []error{ErrWorkflowFailed, e.Cause}
}

// StoreUnavailableError wraps a persistence failure.
type StoreUnavailableError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Cause)
}

// Unwrap returns both the sentinel and the backend error.
func (e *StoreUnavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Cause}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewNotSuspendedError creates a new NotSuspendedError.
func NewNotSuspendedError(id string, status Status) *NotSuspendedError {
	return &NotSuspendedError{ID: id, Status: status}
}

// NewGateMismatchError creates a new GateMismatchError.
func NewGateMismatchError(id, expected, got string) *GateMismatchError {
	return &GateMismatchError{ID: id, Expected: expected, Got: got}
}

// NewInvalidStateError creates a new InvalidStateError.
func NewInvalidStateError(id string, status Status, op string) *InvalidStateError {
	return &InvalidStateError{ID: id, Status: status, Op: op}
}

// NewStepError creates a new StepError.
func NewStepError(stepID string, cause error) *StepError {
	return &StepError{StepID: stepID, Cause: cause}
}

// NewWorkflowError creates a new WorkflowError.
func NewWorkflowError(cause error) *WorkflowError {
	return &WorkflowError{Cause: cause}
}

// NewStoreUnavailableError creates a new StoreUnavailableError.
func NewStoreUnavailableError(op string, cause error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Cause: cause}
}
