// Package repository provides the execution store: the persistence contract
// consumed by the workflow engine and its implementations.
//
// # Implementations
//
//   - MemoryExecutionRepository: process-local, used by tests and single-shot CLI runs
//   - PgExecutionRepository: PostgreSQL, row lock (SELECT ... FOR UPDATE) per update
//   - BadgerExecutionRepository: embedded Badger, optimistic transactions retried on conflict
//   - RedisExecutionRepository: Redis, WATCH/MULTI optimistic transactions
//
// The driver is chosen by configuration through Open.
//
// # Update semantics
//
// Every implementation runs the same read-modify-write: load the stored record,
// apply the patch with domain.Execution.Apply (precondition, key-wise context
// merge, audit append, status and suspension replacement), then persist. The
// read and the write happen in one atomic section, so a patch's precondition
// observes the state it overwrites.
//
// # Error Handling
//
//   - domain.ErrNotFound: the execution does not exist (including malformed IDs)
//   - domain.ErrStoreUnavailable: the backend failed or could not be reached
//   - anything returned by the patch precondition, unchanged
//   - domain.ErrInvalidState: the stored execution is terminal
//
// # Thread Safety
//
// All implementations are safe for concurrent use by multiple goroutines.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/database"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows repositories to work with both direct pool connections and transactions.
type DBTX = database.DBTX

// entityExecution is the entity name used in NotFound errors.
const entityExecution = "execution"

// Option configures a repository.
type Option func(*options)

type options struct {
	clock clock.Clock
	newID func() string
}

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator sets the function used to allocate execution IDs.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		clock: clock.New(),
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// conflictBackOff is the retry policy for optimistic updates that lost a race.
// Conflicts resolve as soon as the competing writer commits, so intervals start short.
func conflictBackOff(ctx context.Context, maxElapsed time.Duration, o options) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 2,
		MaxInterval:         time.Millisecond * 200,
		Multiplier:          2,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      maxElapsed,
		Stop:                backoff.Stop,
		Clock:               o.clock,
	}
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// normalizeID validates id and returns its canonical form.
// Malformed IDs cannot exist in any store, so they are reported as not found.
func normalizeID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", domain.NewNotFoundError(entityExecution, id)
	}
	return parsed.String(), nil
}

// encodeExecution serializes an execution for key/value backends.
func encodeExecution(e *domain.Execution) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode execution %s: %w", e.ID, err)
	}
	return data, nil
}

// decodeExecution deserializes an execution stored by encodeExecution.
func decodeExecution(data []byte) (*domain.Execution, error) {
	var e domain.Execution
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode execution: %w", err)
	}
	return &e, nil
}

// cloneExecution returns a deep copy of e.
func cloneExecution(e *domain.Execution) (*domain.Execution, error) {
	data, err := encodeExecution(e)
	if err != nil {
		return nil, err
	}
	return decodeExecution(data)
}
