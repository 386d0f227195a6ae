package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// DefaultRedisKeyPrefix is prepended to execution IDs when no prefix is configured.
const DefaultRedisKeyPrefix = "composer:execution:"

// Compile-time interface verification.
var _ ExecutionRepository = (*RedisExecutionRepository)(nil)

// RedisExecutionRepository stores each execution as one JSON string value.
//
// Update uses optimistic locking: the key is WATCHed, the record read and
// patched, and the write queued in a MULTI/EXEC pipeline. If another client
// touches the key in between, EXEC aborts with redis.TxFailedErr and the
// update is retried.
type RedisExecutionRepository struct {
	rdb        redis.UniversalClient
	prefix     string
	maxElapsed time.Duration
	opts       options
}

// NewRedisExecutionRepository creates a repository on rdb. The repository closes rdb on Close.
func NewRedisExecutionRepository(rdb redis.UniversalClient, prefix string, maxElapsed time.Duration, opts ...Option) *RedisExecutionRepository {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	if maxElapsed <= 0 {
		maxElapsed = 5 * time.Second
	}
	return &RedisExecutionRepository{
		rdb:        rdb,
		prefix:     prefix,
		maxElapsed: maxElapsed,
		opts:       buildOptions(opts),
	}
}

func (r *RedisExecutionRepository) key(id string) string {
	return r.prefix + id
}

// Create inserts a new execution. SETNX guards against ID reuse.
func (r *RedisExecutionRepository) Create(ctx context.Context, input domain.ExecutionInput) (*domain.Execution, error) {
	exec := domain.NewExecution(r.opts.newID(), input, r.opts.clock.Now())
	data, err := encodeExecution(exec)
	if err != nil {
		return nil, err
	}

	ok, err := r.rdb.SetNX(ctx, r.key(exec.ID), data, 0).Result()
	if err != nil {
		return nil, domain.NewStoreUnavailableError("create", err)
	}
	if !ok {
		return nil, domain.NewAlreadyExistsError(entityExecution, exec.ID)
	}
	return exec, nil
}

// Get retrieves an execution by ID.
func (r *RedisExecutionRepository) Get(ctx context.Context, id string) (*domain.Execution, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	return r.read(ctx, r.rdb, id)
}

// Update applies patch under WATCH, retrying when another writer wins the race.
func (r *RedisExecutionRepository) Update(ctx context.Context, id string, patch domain.ExecutionPatch) (*domain.Execution, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	key := r.key(id)

	// applyErr holds a rejection from the patch itself, returned unchanged.
	var applyErr error
	attempt := func() (*domain.Execution, error) {
		var updated *domain.Execution
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			exec, err := r.read(ctx, tx, id)
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

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			if err != nil {
				return err
			}
			updated = exec
			return nil
		}, key)

		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}

	exec, err := backoff.RetryWithData(attempt, conflictBackOff(ctx, r.maxElapsed, r.opts))
	if applyErr != nil {
		return nil, applyErr
	}
	if err != nil {
		if domain.KindOf(err) != domain.KindUnknown {
			return nil, err
		}
		return nil, domain.NewStoreUnavailableError("update", err)
	}
	return exec, nil
}

// redisGetter is satisfied by both the client and a watching *redis.Tx.
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// read loads and decodes id through c.
func (r *RedisExecutionRepository) read(ctx context.Context, c redisGetter, id string) (*domain.Execution, error) {
	data, err := c.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NewNotFoundError(entityExecution, id)
		}
		return nil, domain.NewStoreUnavailableError("get", err)
	}
	exec, err := decodeExecution(data)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("get", err)
	}
	return exec, nil
}

// Ping checks that Redis answers.
func (r *RedisExecutionRepository) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return domain.NewStoreUnavailableError("ping", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisExecutionRepository) Close() error {
	return r.rdb.Close()
}
