package workflow

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/repository"
)

// AuditLog appends timestamped entries to an execution's audit log.
// Entries are only ever appended; the store merges them onto the stored list.
type AuditLog struct {
	store repository.ExecutionRepository
	clock clock.Clock
}

// NewAuditLog creates an AuditLog writing through store.
func NewAuditLog(store repository.ExecutionRepository, clk clock.Clock) *AuditLog {
	if clk == nil {
		clk = clock.New()
	}
	return &AuditLog{store: store, clock: clk}
}

// Entry builds an entry stamped with the current time.
func (a *AuditLog) Entry(event domain.AuditEvent, stepID string, data map[string]any) domain.AuditLogEntry {
	return domain.NewAuditLogEntry(a.clock.Now(), event, stepID, data)
}

// Append persists entries for the execution and returns the updated record.
func (a *AuditLog) Append(ctx context.Context, executionID string, entries ...domain.AuditLogEntry) (*domain.Execution, error) {
	return a.store.Update(ctx, executionID, domain.ExecutionPatch{}.WithAudit(entries...))
}

// Entries returns the stored audit log of an execution.
func (a *AuditLog) Entries(ctx context.Context, executionID string) ([]domain.AuditLogEntry, error) {
	exec, err := a.store.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return exec.Metrics.AuditLog, nil
}
