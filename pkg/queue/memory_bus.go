package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryBus in-memory fan-out event bus
type MemoryBus struct {
	subscribers map[string][]*subscriber
	config      *MemoryBusConfig
	mu          sync.RWMutex
	closed      bool
	done        chan struct{}
}

type subscriber struct {
	topic   string
	events  chan []byte
	handler EventHandler
}

// MemoryBusConfig memory bus configuration
type MemoryBusConfig struct {
	BufferSize     int           `json:"buffer_size"`
	PublishTimeout time.Duration `json:"publish_timeout"`
}

// NewMemoryBus creates a new in-memory event bus
func NewMemoryBus(config *MemoryBusConfig) *MemoryBus {
	if config == nil {
		config = &MemoryBusConfig{
			BufferSize:     1024,
			PublishTimeout: 5 * time.Second,
		}
	}

	return &MemoryBus{
		subscribers: make(map[string][]*subscriber),
		config:      config,
		done:        make(chan struct{}),
	}
}

// Publish fans the payload out to every subscriber of the topic.
// Events published to a topic with no subscribers are dropped.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := b.subscribers[topic]
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.events <- payload:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.config.PublishTimeout):
			return ErrPublishTimeout
		}
	}

	return nil
}

// Subscribe registers a handler and starts its delivery loop.
func (b *MemoryBus) Subscribe(topic string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	sub := &subscriber{
		topic:   topic,
		events:  make(chan []byte, b.config.BufferSize),
		handler: handler,
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)

	go b.deliver(sub)

	return nil
}

func (b *MemoryBus) deliver(sub *subscriber) {
	for {
		select {
		case payload, ok := <-sub.events:
			if !ok {
				return
			}
			// Handler errors do not stop delivery; the subscriber
			// owns its own retry and logging policy.
			_ = sub.handler(context.Background(), sub.topic, payload)
		case <-b.done:
			return
		}
	}
}

// Close closes the bus and stops all delivery loops
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	close(b.done)
	b.subscribers = make(map[string][]*subscriber)

	return nil
}

// Health checks the health of the bus
func (b *MemoryBus) Health() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	return nil
}
