//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// startPostgres runs a throwaway PostgreSQL container and returns a pool connected to it.
func startPostgres(t *testing.T) *DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("composer_test"),
		postgres.WithUsername("composer"),
		postgres.WithPassword("composer"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	db := NewFromPool(pool, zerolog.Nop())
	t.Cleanup(db.Close)
	return db
}

func TestMigrator_Lifecycle(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	migrator, err := NewMigrator(db, getMigrationsPath(t), zerolog.Nop())
	require.NoError(t, err)
	defer migrator.Close()

	version, _, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version, "empty schema")

	require.NoError(t, migrator.Up())
	// Second Up is a no-op.
	require.NoError(t, migrator.Up())

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	var table *string
	require.NoError(t, db.QueryRow(ctx, "SELECT to_regclass($1)::text", MigrationsTable).Scan(&table))
	require.NotNil(t, table)
	assert.Equal(t, MigrationsTable, *table)

	t.Run("suspension must match status", func(t *testing.T) {
		_, err := db.Exec(ctx, `
			INSERT INTO executions (id, status, input, context, suspension, metrics, created_at, updated_at)
			VALUES (gen_random_uuid(), 'running', '{}', '{}', '{"gate_id":"concept-review"}', '{}', now(), now())`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "executions_suspension_matches_status")
	})

	t.Run("transactions through Begin", func(t *testing.T) {
		tx, err := db.Begin(ctx)
		require.NoError(t, err)
		var n int
		require.NoError(t, tx.QueryRow(ctx, "SELECT count(*) FROM executions").Scan(&n))
		assert.Equal(t, 0, n)
		require.NoError(t, tx.Rollback(ctx))
	})

	require.NoError(t, migrator.Steps(-1))
	require.NoError(t, migrator.Steps(-1), "stepping below the first version is a no-op")
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Down())

	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, migrator.DropAll())
}
