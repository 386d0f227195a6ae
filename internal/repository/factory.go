package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/config"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/database"
)

// Open constructs the execution repository selected by cfg.Store.Driver.
// The returned repository owns its connections; callers release them with Close.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (ExecutionRepository, error) {
	logger = logger.With().Str("component", "repository").Str("driver", cfg.Store.Driver).Logger()

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn().Msg("using in-memory execution store; executions are lost on restart")
		return NewMemoryExecutionRepository(opts...), nil

	case config.StoreDriverPostgres:
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres execution store: %w", err)
		}
		if cfg.Database.MigrationAutoRun {
			if err := migrate(db, cfg.Database.MigrationPath, logger); err != nil {
				db.Close()
				return nil, err
			}
		}
		repo := NewPgExecutionRepository(db, opts...)
		repo.onClose = db.Close
		return repo, nil

	case config.StoreDriverBadger:
		repo, err := OpenBadgerExecutionRepository(BadgerConfig{
			Dir:                     cfg.Badger.Dir,
			InMemory:                cfg.Badger.InMemory,
			SyncWrites:              cfg.Badger.SyncWrites,
			ConflictRetryMaxElapsed: cfg.Badger.ConflictRetryMaxElapsed,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("open badger execution store: %w", err)
		}
		logger.Info().Str("dir", cfg.Badger.Dir).Bool("in_memory", cfg.Badger.InMemory).Msg("badger execution store opened")
		return repo, nil

	case config.StoreDriverRedis:
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:       []string{cfg.Redis.Addr},
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		repo := NewRedisExecutionRepository(rdb, cfg.Redis.KeyPrefix, cfg.Redis.ConflictRetryMaxElapsed, opts...)
		if err := repo.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("open redis execution store: %w", err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis execution store connected")
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func migrate(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close migrator")
		}
	}()
	return migrator.Up()
}
