package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// txBeginner is an interface for types that can begin a transaction (e.g., *pgxpool.Pool, *database.DB).
// Used by Update to wrap SELECT FOR UPDATE + UPDATE in a transaction
// when the underlying DBTX is a pool rather than an existing transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// pinger is implemented by pools and *database.DB.
type pinger interface {
	Ping(ctx context.Context) error
}

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation = "23505" // unique_violation
)

const executionColumns = `id::text, status, input, context, suspension, metrics, created_at, updated_at`

// Compile-time interface verification.
var _ ExecutionRepository = (*PgExecutionRepository)(nil)

// PgExecutionRepository is a PostgreSQL implementation of ExecutionRepository.
// Each execution is one row; input, context, suspension and metrics are JSONB columns.
type PgExecutionRepository struct {
	db      DBTX
	opts    options
	onClose func()
}

// NewPgExecutionRepository creates a new PostgreSQL execution repository.
func NewPgExecutionRepository(db DBTX, opts ...Option) *PgExecutionRepository {
	return &PgExecutionRepository{db: db, opts: buildOptions(opts)}
}

// Create inserts a new execution.
func (r *PgExecutionRepository) Create(ctx context.Context, input domain.ExecutionInput) (*domain.Execution, error) {
	exec := domain.NewExecution(r.opts.newID(), input, r.opts.clock.Now())

	cols, err := marshalColumns(exec)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO executions (
			id, status, input, context, suspension, metrics, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err = r.db.Exec(ctx, query,
		exec.ID, exec.Status, cols.input, cols.context, cols.suspension, cols.metrics,
		exec.CreatedAt, exec.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, domain.NewAlreadyExistsError(entityExecution, exec.ID)
		}
		return nil, domain.NewStoreUnavailableError("create", err)
	}

	return exec, nil
}

// Get retrieves an execution by ID.
func (r *PgExecutionRepository) Get(ctx context.Context, id string) (*domain.Execution, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	exec, err := scanExecution(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(entityExecution, id)
		}
		return nil, domain.NewStoreUnavailableError("get", err)
	}

	return exec, nil
}

// Update applies patch using SELECT FOR UPDATE.
//
// If the underlying DBTX supports Begin (a pool or *database.DB), the SELECT FOR UPDATE and
// the UPDATE run in their own transaction. If the DBTX is already a transaction the
// statements join it and the caller commits.
func (r *PgExecutionRepository) Update(ctx context.Context, id string, patch domain.ExecutionPatch) (*domain.Execution, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	beginner, ok := r.db.(txBeginner)
	if !ok {
		return r.updateInTx(ctx, r.db, id, patch)
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("update", fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	exec, err := r.updateInTx(ctx, tx, id, patch)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewStoreUnavailableError("update", fmt.Errorf("commit: %w", err))
	}
	return exec, nil
}

// updateInTx performs the SELECT FOR UPDATE + UPDATE within db, which must be a transaction
// for the row lock to hold until the write.
func (r *PgExecutionRepository) updateInTx(ctx context.Context, db DBTX, id string, patch domain.ExecutionPatch) (*domain.Execution, error) {
	selectQuery := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1 FOR UPDATE`

	rows, err := db.Query(ctx, selectQuery, id)
	if err != nil {
		return nil, domain.NewStoreUnavailableError("update", fmt.Errorf("select for update: %w", err))
	}

	exec, err := scanExecutionRows(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(entityExecution, id)
		}
		return nil, domain.NewStoreUnavailableError("update", fmt.Errorf("scan: %w", err))
	}

	if err := exec.Apply(patch, r.opts.clock.Now()); err != nil {
		return nil, err
	}

	cols, err := marshalColumns(exec)
	if err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE executions SET
			status = $1,
			context = $2,
			suspension = $3,
			metrics = $4,
			updated_at = $5
		WHERE id = $6`

	if _, err := db.Exec(ctx, updateQuery,
		exec.Status, cols.context, cols.suspension, cols.metrics, exec.UpdatedAt, id,
	); err != nil {
		return nil, domain.NewStoreUnavailableError("update", err)
	}

	return exec, nil
}

// Ping checks database connectivity.
func (r *PgExecutionRepository) Ping(ctx context.Context) error {
	if p, ok := r.db.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return domain.NewStoreUnavailableError("ping", err)
		}
		return nil
	}
	var one int
	if err := r.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return domain.NewStoreUnavailableError("ping", err)
	}
	return nil
}

// Close releases the connection pool if the repository owns it.
func (r *PgExecutionRepository) Close() error {
	if r.onClose != nil {
		r.onClose()
	}
	return nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// executionJSONColumns holds the JSONB column values of an execution.
type executionJSONColumns struct {
	input      []byte
	context    []byte
	suspension []byte
	metrics    []byte
}

func marshalColumns(e *domain.Execution) (executionJSONColumns, error) {
	var cols executionJSONColumns
	var err error

	if cols.input, err = json.Marshal(e.Input); err != nil {
		return cols, fmt.Errorf("failed to marshal input: %w", err)
	}
	if cols.context, err = json.Marshal(e.Context); err != nil {
		return cols, fmt.Errorf("failed to marshal context: %w", err)
	}
	if e.Suspension != nil {
		if cols.suspension, err = json.Marshal(e.Suspension); err != nil {
			return cols, fmt.Errorf("failed to marshal suspension: %w", err)
		}
	}
	if cols.metrics, err = json.Marshal(e.Metrics); err != nil {
		return cols, fmt.Errorf("failed to marshal metrics: %w", err)
	}
	return cols, nil
}

// executionScanDest holds the destination pointers for scanning an execution row.
type executionScanDest struct {
	exec           domain.Execution
	inputJSON      []byte
	contextJSON    []byte
	suspensionJSON []byte
	metricsJSON    []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *executionScanDest) destinations() []any {
	return []any{
		&d.exec.ID, &d.exec.Status,
		&d.inputJSON, &d.contextJSON, &d.suspensionJSON, &d.metricsJSON,
		&d.exec.CreatedAt, &d.exec.UpdatedAt,
	}
}

// finalize unmarshals the JSONB columns.
func (d *executionScanDest) finalize() (*domain.Execution, error) {
	if err := json.Unmarshal(d.inputJSON, &d.exec.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	if len(d.contextJSON) > 0 {
		if err := json.Unmarshal(d.contextJSON, &d.exec.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}
	if len(d.suspensionJSON) > 0 {
		var rec domain.SuspensionRecord
		if err := json.Unmarshal(d.suspensionJSON, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal suspension: %w", err)
		}
		d.exec.Suspension = &rec
	}
	if err := json.Unmarshal(d.metricsJSON, &d.exec.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	d.exec.CreatedAt = d.exec.CreatedAt.UTC()
	d.exec.UpdatedAt = d.exec.UpdatedAt.UTC()
	return &d.exec, nil
}

// scanExecution scans a single row into an Execution.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var dest executionScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanExecutionRows scans a single row from pgx.Rows into an Execution.
// This is used with SELECT FOR UPDATE which returns Rows instead of Row.
func scanExecutionRows(rows pgx.Rows) (*domain.Execution, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	var dest executionScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
