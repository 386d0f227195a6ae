// Package events publishes execution lifecycle events to Kafka.
//
// # Components
//
//   - Emitter: turns a domain.LifecycleEvent into a Kafka message
//   - Publisher: a workflow notifier that writes emitted messages with a kafka-go Writer
//
// # Event Types
//
//   - execution.suspended: an execution is waiting at a gate; the payload is what the approver reviews
//   - execution.completed: the artifact was rendered
//   - execution.rejected: an approver rejected a gate
//   - execution.failed: a step failed
//
// Messages are keyed by execution ID so every event of one execution lands on
// the same partition in order. Headers carry the event type, the source
// service and, when present, the correlation and trace IDs of the request
// that caused the transition.
//
// # Usage
//
//	publisher := events.NewPublisher(events.PublisherConfig{
//	    Brokers: cfg.Kafka.Brokers,
//	    Topic:   cfg.Kafka.EventsTopic,
//	}, logger)
//	defer publisher.Close()
//
//	engine, err := workflow.NewEngine(store, collab, workflow.WithNotifier(publisher))
package events
