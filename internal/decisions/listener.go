// Package decisions consumes approval decisions from Kafka and resumes the
// matching executions.
package decisions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/workflow"
)

// Resumer is the engine operation the listener drives.
type Resumer interface {
	Resume(ctx context.Context, executionID string, decision domain.Decision) (*workflow.ExecutionResult, error)
}

// messageReader is the subset of *kafka.Reader the listener uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Outcome describes how a message was handled.
type Outcome string

const (
	OutcomeResumed  Outcome = "resumed"
	OutcomeFailed   Outcome = "pipeline_failed"
	OutcomeRejected Outcome = "rejected"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeError    Outcome = "infrastructure_error"
)

// Config holds configuration for the decision listener.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic carrying decisions.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
	// HandleTimeout bounds one Resume call.
	HandleTimeout time.Duration
}

// Listener consumes decision messages and resumes executions.
type Listener struct {
	reader        messageReader
	resumer       Resumer
	validate      *validator.Validate
	handleTimeout time.Duration
	logger        zerolog.Logger
}

// NewListener creates a new decision listener.
func NewListener(cfg Config, resumer Resumer, logger zerolog.Logger) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newListener(reader, resumer, cfg.HandleTimeout, logger)
}

func newListener(reader messageReader, resumer Resumer, handleTimeout time.Duration, logger zerolog.Logger) *Listener {
	if handleTimeout <= 0 {
		handleTimeout = 5 * time.Minute
	}
	return &Listener{
		reader:        reader,
		resumer:       resumer,
		validate:      validator.New(),
		handleTimeout: handleTimeout,
		logger:        logger.With().Str("component", "decision_listener").Logger(),
	}
}

// Run starts the listener loop. Blocks until context is cancelled.
//
// Every message is committed after handling. Client errors cannot succeed on
// redelivery and infrastructure errors are not retried in-process, so neither
// holds back the partition.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting decision listener")

	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("decision listener stopped via context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received decision")

		l.handleMessage(ctx, msg)

		if err := l.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("failed to commit decision offset")
		}
	}
}

// handleMessage decodes one message and resumes its execution.
func (l *Listener) handleMessage(ctx context.Context, msg kafka.Message) Outcome {
	var dm domain.DecisionMessage
	if err := json.Unmarshal(msg.Value, &dm); err != nil {
		l.logger.Error().Err(err).
			Str("raw_value", string(msg.Value)).
			Msg("failed to unmarshal decision")
		return OutcomeInvalid
	}
	if dm.ExecutionID == "" && len(msg.Key) > 0 {
		dm.ExecutionID = string(msg.Key)
	}
	if err := l.validate.Struct(dm); err != nil {
		l.logger.Error().Err(err).
			Str("execution_id", dm.ExecutionID).
			Msg("invalid decision message")
		return OutcomeInvalid
	}

	logger := observability.WithGateContext(l.logger, dm.ExecutionID, dm.GateID)

	handleCtx, cancel := context.WithTimeout(ctx, l.handleTimeout)
	defer cancel()
	handleCtx = observability.WithCorrelationID(handleCtx, correlationID(msg))

	res, err := l.resumer.Resume(handleCtx, dm.ExecutionID, dm.Decision)
	switch domain.KindOf(err) {
	case "":
		logger.Info().
			Bool("approved", dm.Approved).
			Str("status", string(res.Status)).
			Msg("decision applied")
		return OutcomeResumed
	case domain.KindPipeline:
		logger.Warn().Err(err).Msg("decision applied but a step failed")
		return OutcomeFailed
	case domain.KindClient:
		logger.Warn().Err(err).Msg("decision rejected")
		return OutcomeRejected
	default:
		logger.Error().Err(err).Msg("failed to apply decision")
		return OutcomeError
	}
}

func correlationID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "correlation-id" {
			return string(h.Value)
		}
	}
	return fmt.Sprintf("kafka-%d-%d", msg.Partition, msg.Offset)
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing decision listener")
	return l.reader.Close()
}
