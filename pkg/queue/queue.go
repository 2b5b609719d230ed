package queue

import (
	"context"
	"errors"
)

// EventBus defines the interface for topic-based event delivery.
// Delivery to in-process subscribers is at-least-once: a subscriber
// that returns an error does not stop delivery to the others.
type EventBus interface {
	// Publish publishes an event payload to the specified topic
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for the specified topic.
	// Multiple subscribers per topic each receive every event.
	Subscribe(topic string, handler EventHandler) error

	// Close closes the bus and stops all subscriber loops
	Close() error

	// Health checks the health of the bus
	Health() error
}

// EventHandler handles a delivered event
type EventHandler func(ctx context.Context, topic string, payload []byte) error

// Common errors
var (
	ErrBusClosed      = errors.New("event bus is closed")
	ErrPublishTimeout = errors.New("publish timeout")
)
