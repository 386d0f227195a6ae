package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherConfig holds configuration for the lifecycle event publisher.
type PublisherConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic receives the lifecycle events.
	Topic string
	// BatchSize is the maximum number of messages per write batch.
	BatchSize int
	// BatchTimeout is how long the writer waits to fill a batch.
	BatchTimeout time.Duration
	// WriteTimeout bounds a single publish.
	WriteTimeout time.Duration
	// ServiceName is set as the source header.
	ServiceName string
}

// Publisher writes lifecycle events to Kafka.
type Publisher struct {
	writer       messageWriter
	emitter      *Emitter
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// NewPublisher creates a Publisher backed by a kafka-go Writer.
func NewPublisher(cfg PublisherConfig, logger zerolog.Logger) *Publisher {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              batchSize,
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(writer, cfg, logger)
}

func newPublisher(writer messageWriter, cfg PublisherConfig, logger zerolog.Logger) *Publisher {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		writer:       writer,
		emitter:      NewEmitter(EmitterConfig{ServiceName: cfg.ServiceName}),
		writeTimeout: timeout,
		logger:       logger.With().Str("component", "event_publisher").Str("topic", cfg.Topic).Logger(),
	}
}

// Notify publishes event. It is safe for concurrent use.
func (p *Publisher) Notify(ctx context.Context, event domain.LifecycleEvent) error {
	msg, err := p.emitter.Emit(ctx, event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("publish %s for execution %s: %w", event.EventType, event.ExecutionID, err)
	}

	p.logger.Debug().
		Str("execution_id", event.ExecutionID).
		Str("event_type", event.EventType).
		Str("event_id", event.EventID).
		Msg("lifecycle event published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	p.logger.Info().Msg("closing event publisher")
	return p.writer.Close()
}
