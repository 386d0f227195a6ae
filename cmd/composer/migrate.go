package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	cli "github.com/urfave/cli/v3"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/database"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the PostgreSQL execution store schema",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Override the migrations directory path"},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Run all pending migrations",
				Action: migrateAction(func(m *database.Migrator, logger zerolog.Logger) error {
					logger.Info().Msg("running all pending migrations")
					return m.Up()
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back all migrations",
				Action: migrateAction(func(m *database.Migrator, logger zerolog.Logger) error {
					logger.Warn().Msg("rolling back all migrations")
					return m.Down()
				}),
			},
			{
				Name:      "steps",
				Usage:     "Run N migration steps (positive=up, negative=down)",
				ArgsUsage: "N",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "n", Usage: "Number of steps", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					n := cmd.Int("n")
					if n == 0 {
						return errors.New("steps must not be zero")
					}
					return migrateAction(func(m *database.Migrator, logger zerolog.Logger) error {
						logger.Info().Int("steps", n).Msg("running migration steps")
						return m.Steps(n)
					})(ctx, cmd)
				},
			},
			{
				Name:   "version",
				Usage:  "Print the current migration version",
				Action: migrateAction(func(*database.Migrator, zerolog.Logger) error { return nil }),
			},
			{
				Name:  "force",
				Usage: "Force set migration version (use to recover from failed migrations)",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "version", Usage: "Version to force", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					v := cmd.Int("version")
					if v < 0 {
						return errors.New("version must not be negative")
					}
					return migrateAction(func(m *database.Migrator, logger zerolog.Logger) error {
						logger.Warn().Int("version", v).Msg("forcing migration version")
						return m.Force(v)
					})(ctx, cmd)
				},
			},
		},
	}
}

// migrateAction connects to the database, runs fn and prints the resulting
// schema version.
func migrateAction(fn func(*database.Migrator, zerolog.Logger) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg).With().Str("component", "migrate").Logger()

		migrationDir := cfg.Database.MigrationPath
		if p := cmd.String("path"); p != "" {
			migrationDir = p
		}

		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		db, err := database.New(connectCtx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		migrator, err := database.NewMigrator(db, migrationDir, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := fn(migrator, logger); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}

		v, dirty, err := migrator.Version()
		if err != nil {
			logger.Warn().Err(err).Msg("could not determine migration version")
			return nil
		}
		_, err = fmt.Fprintf(cmd.Root().Writer, "version %d (dirty=%t)\n", v, dirty)
		return err
	}
}
