//go:build integration

package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/database"
)

func migrationsPath(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

func TestPgExecutionRepository_Contract(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

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
	db := database.NewFromPool(pool, zerolog.Nop())
	t.Cleanup(db.Close)

	migrator, err := database.NewMigrator(db, migrationsPath(t), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	runExecutionRepositoryContract(t, func(t *testing.T, opts ...Option) ExecutionRepository {
		return NewPgExecutionRepository(db, opts...)
	})
}

func TestRedisExecutionRepository_Contract(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	var n int
	runExecutionRepositoryContract(t, func(t *testing.T, opts ...Option) ExecutionRepository {
		n++
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{endpoint}})
		repo := NewRedisExecutionRepository(rdb, fmt.Sprintf("test:%d:", n), 5*time.Second, opts...)
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}
