package events

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
)

// Header names set on every message.
const (
	HeaderEventType     = "event-type"
	HeaderSource        = "source"
	HeaderCorrelationID = "correlation-id"
	HeaderTraceID       = "trace-id"
)

const defaultServiceName = "ai-blog-composer"

// EmitterConfig configures the Emitter with service context.
type EmitterConfig struct {
	// ServiceName identifies the source service.
	ServiceName string
}

// Emitter creates Kafka messages from lifecycle events.
type Emitter struct {
	config EmitterConfig
}

// NewEmitter creates a new Emitter with the given service configuration.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.ServiceName == "" {
		config.ServiceName = defaultServiceName
	}
	return &Emitter{config: config}
}

// Emit builds the message for event. Correlation and trace IDs are read from ctx.
func (e *Emitter) Emit(ctx context.Context, event domain.LifecycleEvent) (kafka.Message, error) {
	if event.ExecutionID == "" {
		return kafka.Message{}, fmt.Errorf("execution_id is required")
	}
	if event.EventType == "" {
		return kafka.Message{}, fmt.Errorf("event_type is required")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(event.EventType)},
		{Key: HeaderSource, Value: []byte(e.config.ServiceName)},
	}
	if id := observability.CorrelationIDFromContext(ctx); id != "" {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(id)})
	}
	if traceID, _ := observability.TraceSpanFromContext(ctx); traceID != "" {
		headers = append(headers, kafka.Header{Key: HeaderTraceID, Value: []byte(traceID)})
	}

	return kafka.Message{
		Key:     []byte(event.ExecutionID),
		Value:   value,
		Headers: headers,
		Time:    event.OccurredAt,
	}, nil
}
