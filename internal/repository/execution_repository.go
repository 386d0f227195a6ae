package repository

import (
	"context"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// ExecutionRepository persists execution records keyed by execution ID.
type ExecutionRepository interface {
	// Create allocates a new execution in status running with an empty context
	// and an audit log holding a single workflow-created entry.
	// Returns domain.ErrStoreUnavailable if the backend cannot be reached.
	Create(ctx context.Context, input domain.ExecutionInput) (*domain.Execution, error)

	// Get retrieves an execution by ID.
	// Returns domain.ErrNotFound if no matching execution exists.
	Get(ctx context.Context, id string) (*domain.Execution, error)

	// Update atomically applies patch to the stored execution and returns the
	// updated record. Context keys are merged, audit entries appended, status and
	// suspension replaced when set.
	//
	// Concurrent update behavior:
	//   - The patch precondition runs against the record being overwritten; if it
	//     fails nothing is written and its error is returned.
	//   - Two updates on the same ID never interleave; the second observes the
	//     first one's result.
	//
	// Returns domain.ErrNotFound if no matching execution exists.
	Update(ctx context.Context, id string, patch domain.ExecutionPatch) (*domain.Execution, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources owned by the repository.
	Close() error
}
