// Package main provides the decision worker: it consumes reviewer decisions
// from Kafka and resumes the matching executions.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/app"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/config"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/decisions"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Kafka.Enabled {
		return errors.New("the decision worker requires kafka.enabled")
	}

	logger := app.NewLogger(cfg).With().Str("component", "worker").Logger()
	logger.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.DecisionsTopic).
		Str("group_id", cfg.Kafka.GroupID).
		Msg("ai-blog-composer decision worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	a, err := app.New(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("failed to release resources")
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:        cfg.Server.MetricsAddress(),
			Handler:     mux,
			ReadTimeout: cfg.Server.ReadTimeout,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	listener := decisions.NewListener(decisions.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.DecisionsTopic,
		GroupID: cfg.Kafka.GroupID,
	}, a.Engine, logger)
	defer func() {
		if err := listener.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close decision listener")
		}
	}()

	err = listener.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("decision listener: %w", err)
	}
	logger.Info().Msg("decision worker stopped")
	return nil
}
