// Package workflow implements the suspend/resume orchestration core of the
// blog composer.
//
// # Components
//
//   - AuditLog: appends timestamped lifecycle entries to an execution.
//   - StepRunner: runs one stage, merges its result into the execution
//     context, and marks the execution failed when the stage errors.
//   - SuspensionManager: parks an execution at a gate and clears the gate
//     with a compare-and-swap so a decision is applied at most once.
//   - Engine: composes the above into Start and Resume over the fixed
//     pipeline definition.
//
// # Error Handling
//
// Start and Resume always return an *ExecutionResult. The accompanying error
// is classified with domain.KindOf:
//
//   - client: validation failures, unknown executions, NotSuspended, GateMismatch
//   - pipeline: a stage collaborator failed and the execution is now failed
//   - infrastructure: the execution store could not be reached
//
// A failure to persist a terminal transition after its outcome is known is
// logged and counted; the outcome is still returned.
package workflow
