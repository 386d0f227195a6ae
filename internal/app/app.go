// Package app assembles the workflow engine and its collaborators from
// configuration. The server, worker and CLI binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/config"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/events"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/extractor"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/llm"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/render"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/repository"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/workflow"
)

// App holds a wired engine and the resources it owns.
type App struct {
	Engine  *workflow.Engine
	Store   repository.ExecutionRepository
	Metrics *observability.Metrics
	Tracing *observability.TracerProvider

	publisher *events.Publisher
	logger    zerolog.Logger
}

// NewLogger builds the service logger from the logging section.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
}

// New opens the execution store and builds the engine. metrics may be nil,
// in which case nothing is registered with Prometheus.
func New(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*App, error) {
	a := &App{Metrics: metrics, logger: logger}

	tp, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}
	a.Tracing = tp

	completer, err := llm.NewCompleter(llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	composer := llm.NewComposer(completer, llm.ComposerConfig{
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryDelay:   cfg.LLM.RetryDelay,
		RateLimitRPS: cfg.LLM.RateLimitRPS,
		Burst:        cfg.LLM.RateLimitBurst,
		MaxTokens:    cfg.LLM.MaxTokens,
	}, metrics, logger)

	ext := extractor.New(extractor.Config{
		HTTP: extractor.HTTPClientConfig{
			Timeout:      cfg.Extractor.Timeout,
			RateLimit:    cfg.Extractor.RateLimit,
			MaxRetries:   cfg.Extractor.MaxRetries,
			UserAgent:    cfg.Extractor.UserAgent,
			MaxBodyBytes: cfg.Extractor.MaxBodyBytes,
		},
		CacheTTL:      cfg.Extractor.CacheTTL,
		CacheCapacity: cfg.Extractor.CacheCapacity,
	}, logger)

	formatter, err := render.NewHTMLFormatter(nil)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("create formatter: %w", err)
	}

	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	a.Store = store

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithMetrics(metrics),
		workflow.WithTracer(tp.Tracer()),
	}
	if cfg.Kafka.Enabled {
		a.publisher = events.NewPublisher(events.PublisherConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.EventsTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			ServiceName:  cfg.Tracing.ServiceName,
		}, logger)
		opts = append(opts, workflow.WithNotifier(a.publisher))
	}

	engine, err := workflow.NewEngine(store, workflow.Collaborators{
		Extractor:  ext,
		Summarizer: composer,
		Outliner:   composer,
		Drafter:    composer,
		Formatter:  formatter,
	}, opts...)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("create engine: %w", err)
	}
	a.Engine = engine
	return a, nil
}

// Close releases the store, the event publisher and the tracer provider.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event publisher: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close execution store: %w", err))
		}
	}
	if a.Tracing != nil {
		if err := a.Tracing.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
