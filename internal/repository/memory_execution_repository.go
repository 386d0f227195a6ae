package repository

import (
	"context"
	"sync"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// Compile-time interface verification.
var _ ExecutionRepository = (*MemoryExecutionRepository)(nil)

// MemoryExecutionRepository keeps executions in a map guarded by a mutex.
// Records are deep-copied on the way in and out so callers never share state
// with the store.
type MemoryExecutionRepository struct {
	mu         sync.Mutex
	executions map[string]*domain.Execution
	opts       options
}

// NewMemoryExecutionRepository creates an empty in-memory repository.
func NewMemoryExecutionRepository(opts ...Option) *MemoryExecutionRepository {
	return &MemoryExecutionRepository{
		executions: make(map[string]*domain.Execution),
		opts:       buildOptions(opts),
	}
}

// Create inserts a new execution.
func (r *MemoryExecutionRepository) Create(_ context.Context, input domain.ExecutionInput) (*domain.Execution, error) {
	exec := domain.NewExecution(r.opts.newID(), input, r.opts.clock.Now())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executions[exec.ID]; exists {
		return nil, domain.NewAlreadyExistsError(entityExecution, exec.ID)
	}

	stored, err := cloneExecution(exec)
	if err != nil {
		return nil, err
	}
	r.executions[exec.ID] = stored
	return exec, nil
}

// Get retrieves an execution by ID.
func (r *MemoryExecutionRepository) Get(_ context.Context, id string) (*domain.Execution, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.executions[id]
	if !ok {
		return nil, domain.NewNotFoundError(entityExecution, id)
	}
	return cloneExecution(stored)
}

// Update applies patch under the repository lock.
func (r *MemoryExecutionRepository) Update(_ context.Context, id string, patch domain.ExecutionPatch) (*domain.Execution, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.executions[id]
	if !ok {
		return nil, domain.NewNotFoundError(entityExecution, id)
	}

	working, err := cloneExecution(stored)
	if err != nil {
		return nil, err
	}
	if err := working.Apply(patch, r.opts.clock.Now()); err != nil {
		return nil, err
	}

	r.executions[id] = working
	return cloneExecution(working)
}

// Ping always succeeds.
func (r *MemoryExecutionRepository) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (r *MemoryExecutionRepository) Close() error {
	return nil
}

// Len returns the number of stored executions.
func (r *MemoryExecutionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.executions)
}
