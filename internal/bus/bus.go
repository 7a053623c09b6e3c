// Package bus provides event bus implementations for publishing evaluation
// run lifecycle events to external consumers.
package bus

import (
	"context"
	"time"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations. Evaluation runs
// publish fire-and-forget notifications; a publish failure never fails the
// run step that emitted it.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// Type is the event type, matching the topic it is published on.
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created.
	Timestamp int64 `json:"timestamp"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType, source string, payload any) Event {
	return Event{
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// Topics for evaluation run lifecycle events.
const (
	TopicPoolCompleted    = "eval.pool.completed"
	TopicLabelProgress    = "eval.label.progress"
	TopicLabelCompleted   = "eval.label.completed"
	TopicMetricsCompleted = "eval.metrics.completed"
)

// Nop is a bus that drops everything; used when eventing is disabled.
type Nop struct{}

// Publish discards the event.
func (Nop) Publish(ctx context.Context, topic string, event Event) error { return nil }

// Subscribe discards the subscription.
func (Nop) Subscribe(ctx context.Context, topic string, handler Handler) error { return nil }

// Close is a no-op.
func (Nop) Close() error { return nil }
