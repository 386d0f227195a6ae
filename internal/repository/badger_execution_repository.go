package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

const badgerKeyPrefix = "execution/"

// Compile-time interface verification.
var _ ExecutionRepository = (*BadgerExecutionRepository)(nil)

// BadgerConfig configures a BadgerExecutionRepository.
type BadgerConfig struct {
	Dir        string
	InMemory   bool
	SyncWrites bool
	// ConflictRetryMaxElapsed bounds the retries of a conflicting update.
	ConflictRetryMaxElapsed time.Duration
}

// BadgerExecutionRepository stores executions as JSON values in an embedded Badger database.
// Updates run in read-write transactions; Badger detects write conflicts at commit
// and the update is retried with exponential backoff.
type BadgerExecutionRepository struct {
	db         *badger.DB
	maxElapsed time.Duration
	opts       options
}

// OpenBadgerExecutionRepository opens (or creates) the database described by cfg.
func OpenBadgerExecutionRepository(cfg BadgerConfig, opts ...Option) (*BadgerExecutionRepository, error) {
	var bopts badger.Options
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(cfg.Dir).WithSyncWrites(cfg.SyncWrites)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("open", err)
	}
	return NewBadgerExecutionRepository(db, cfg.ConflictRetryMaxElapsed, opts...), nil
}

// NewBadgerExecutionRepository wraps an open Badger database. The repository takes
// ownership and closes db on Close.
func NewBadgerExecutionRepository(db *badger.DB, maxElapsed time.Duration, opts ...Option) *BadgerExecutionRepository {
	if maxElapsed <= 0 {
		maxElapsed = 5 * time.Second
	}
	return &BadgerExecutionRepository{db: db, maxElapsed: maxElapsed, opts: buildOptions(opts)}
}

func badgerKey(id string) []byte {
	return []byte(badgerKeyPrefix + id)
}

// Create inserts a new execution.
func (r *BadgerExecutionRepository) Create(_ context.Context, input domain.ExecutionInput) (*domain.Execution, error) {
	exec := domain.NewExecution(r.opts.newID(), input, r.opts.clock.Now())
	data, err := encodeExecution(exec)
	if err != nil {
		return nil, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(exec.ID))
		switch {
		case err == nil:
			return domain.NewAlreadyExistsError(entityExecution, exec.ID)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(badgerKey(exec.ID), data)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		return nil, domain.NewStoreUnavailableError("create", err)
	}
	return exec, nil
}

// Get retrieves an execution by ID.
func (r *BadgerExecutionRepository) Get(_ context.Context, id string) (*domain.Execution, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	var exec *domain.Execution
	err = r.db.View(func(txn *badger.Txn) error {
		var err error
		exec, err = r.read(txn, id)
		return err
	})
	if err != nil {
		return nil, r.classify("get", err)
	}
	return exec, nil
}

// Update applies patch in a read-write transaction, retrying on conflicts.
func (r *BadgerExecutionRepository) Update(ctx context.Context, id string, patch domain.ExecutionPatch) (*domain.Execution, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	// applyErr holds a rejection from the patch itself, returned unchanged.
	var applyErr error
	attempt := func() (*domain.Execution, error) {
		var updated *domain.Execution
		err := r.db.Update(func(txn *badger.Txn) error {
			exec, err := r.read(txn, id)
			if err != nil {
				return err
			}
			if err := exec.Apply(patch, r.opts.clock.Now()); err != nil {
				applyErr = err
				return err
			}
			data, err := encodeExecution(exec)
			if err != nil {
				return err
			}
			updated = exec
			return txn.Set(badgerKey(id), data)
		})
		if errors.Is(err, badger.ErrConflict) {
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return updated, nil
	}

	exec, err := backoff.RetryWithData(attempt, conflictBackOff(ctx, r.maxElapsed, r.opts))
	if applyErr != nil {
		return nil, applyErr
	}
	if err != nil {
		return nil, r.classify("update", err)
	}
	return exec, nil
}

func (r *BadgerExecutionRepository) read(txn *badger.Txn, id string) (*domain.Execution, error) {
	item, err := txn.Get(badgerKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.NewNotFoundError(entityExecution, id)
		}
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeExecution(data)
}

// classify passes domain errors through and wraps everything else as StoreUnavailable.
func (r *BadgerExecutionRepository) classify(op string, err error) error {
	if domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	return domain.NewStoreUnavailableError(op, err)
}

// Ping reports whether the database is still open.
func (r *BadgerExecutionRepository) Ping(context.Context) error {
	if r.db.IsClosed() {
		return domain.NewStoreUnavailableError("ping", fmt.Errorf("badger database is closed"))
	}
	return nil
}

// Close closes the underlying database.
func (r *BadgerExecutionRepository) Close() error {
	return r.db.Close()
}
