package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// MigrationsTable holds the applied version of the executions schema. It is
// namespaced so the store can share a database with other services.
const MigrationsTable = "composer_schema_migrations"

// Migrator applies the executions schema from a directory of golang-migrate files.
//
// Every action logs the schema version it leaves behind. Actions that have
// nothing to do (Up at the latest version, Steps past either end) succeed.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB
	logger  zerolog.Logger
}

// NewMigrator opens the migration source at dir against db.
func NewMigrator(db *DB, dir string, logger zerolog.Logger) (*Migrator, error) {
	switch {
	case db == nil:
		return nil, errors.New("database is required")
	case db.pool == nil:
		return nil, errors.New("database pool not initialized")
	case dir == "":
		return nil, errors.New("migrations path is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migrations path: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open executions schema driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open executions schema source %s: %w", dir, err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger: logger.With().
			Str("component", "migrator").
			Str("migrations_table", MigrationsTable).
			Logger(),
	}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	return m.run("up", m.migrate.Up)
}

// Down reverts every applied migration, dropping the executions table.
func (m *Migrator) Down() error {
	return m.run("down", m.migrate.Down)
}

// Steps applies n migrations forward, or -n backward when n is negative.
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("steps %+d", n), func() error { return m.migrate.Steps(n) })
}

// Force records version as applied and clean without running anything.
// It is the way out of a dirty schema after a failed migration.
func (m *Migrator) Force(version int) error {
	return m.run(fmt.Sprintf("force %d", version), func() error { return m.migrate.Force(version) })
}

// DropAll drops every object in the database, including the migrations table.
// Only integration tests call it.
func (m *Migrator) DropAll() error {
	m.logger.Warn().Msg("dropping all database objects")
	return m.migrate.Drop()
}

// Version reports the applied executions schema version. An empty schema
// reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the migration source and the database/sql wrapper.
// The underlying pool stays open.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr, m.sqlDB.Close())
}

func (m *Migrator) run(action string, fn func() error) error {
	from, _, _ := m.Version()

	err := fn()
	if isNoChange(err) {
		err = nil
	}

	to, dirty, verr := m.Version()
	ev := m.logger.Info()
	if err != nil || dirty {
		ev = m.logger.Error().Err(err)
	}
	ev.Str("action", action).
		Uint("from_version", from).
		Uint("schema_version", to).
		Bool("dirty", dirty).
		AnErr("version_error", verr).
		Msg("executions schema migration")

	if err != nil {
		return fmt.Errorf("migrate executions schema (%s): %w", action, err)
	}
	return nil
}

// isNoChange reports whether err only says there was nothing to migrate.
// golang-migrate reports stepping past the last file as os.ErrNotExist.
func isNoChange(err error) bool {
	return errors.Is(err, migrate.ErrNoChange) || errors.Is(err, os.ErrNotExist)
}
