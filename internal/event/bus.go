package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/paklog/orchestration/internal/workflow"
)

// subscribeAll is the pseudo event type matching every event.
const subscribeAll = "*"

// Subscriber handles one delivered event.
type Subscriber interface {
	Handle(ctx context.Context, e workflow.DomainEvent) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, e workflow.DomainEvent) error

// Handle implements Subscriber.
func (f SubscriberFunc) Handle(ctx context.Context, e workflow.DomainEvent) error {
	return f(ctx, e)
}

// Config holds configuration for the event bus.
type Config struct {
	AsyncBufferSize int
	WorkerPoolSize  int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		AsyncBufferSize: 1000,
		WorkerPoolSize:  10,
	}
}

// Bus fans events out to subscribers keyed by event type. Synchronous
// publication preserves order; PublishAsync trades ordering for
// throughput. Subscriber errors and panics are isolated: one bad handler
// never blocks the rest.
type Bus struct {
	subscribers map[string][]Subscriber
	mu          sync.RWMutex
	logger      *slog.Logger
	asyncBuffer chan asyncEvent
	wg          sync.WaitGroup
	closed      bool
	closeMu     sync.RWMutex
}

type asyncEvent struct {
	ctx   context.Context
	event workflow.DomainEvent
}

// NewBus creates a bus with the default configuration.
func NewBus(logger *slog.Logger) *Bus {
	return NewBusWithConfig(logger, DefaultConfig())
}

// NewBusWithConfig creates a bus with the given configuration.
func NewBusWithConfig(logger *slog.Logger, cfg Config) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		subscribers: make(map[string][]Subscriber),
		logger:      logger.With("component", "event_bus"),
		asyncBuffer: make(chan asyncEvent, cfg.AsyncBufferSize),
	}
	for i := 0; i < cfg.WorkerPoolSize; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for ae := range b.asyncBuffer {
		_ = b.Publish(ae.ctx, ae.event)
	}
}

// Subscribe registers a subscriber for one event type.
func (b *Bus) Subscribe(eventType string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	b.logger.Debug("subscriber added", "event_type", eventType)
}

// SubscribeAll registers a subscriber for every event type.
func (b *Bus) SubscribeAll(sub Subscriber) {
	b.Subscribe(subscribeAll, sub)
}

// Publish delivers an event synchronously to all matching subscribers.
// Individual subscriber errors are logged, not propagated.
func (b *Bus) Publish(ctx context.Context, e workflow.DomainEvent) error {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers[e.EventType()])+len(b.subscribers[subscribeAll]))
	subs = append(subs, b.subscribers[e.EventType()]...)
	subs = append(subs, b.subscribers[subscribeAll]...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Debug("no subscribers for event", "event_type", e.EventType(), "event_id", e.EventID())
		return nil
	}

	for _, sub := range subs {
		if err := b.deliver(ctx, sub, e); err != nil {
			b.logger.Error("subscriber error",
				"event_type", e.EventType(),
				"event_id", e.EventID(),
				"error", err,
			)
		}
	}
	return nil
}

// PublishAll delivers the events in order.
func (b *Bus) PublishAll(ctx context.Context, events []workflow.DomainEvent) error {
	for _, e := range events {
		if err := b.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// deliver calls a subscriber with panic recovery.
func (b *Bus) deliver(ctx context.Context, sub Subscriber, e workflow.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked",
				"event_type", e.EventType(),
				"event_id", e.EventID(),
				"panic", r,
			)
		}
	}()
	return sub.Handle(ctx, e)
}

// PublishAsync queues an event for background delivery. When the buffer is
// full the event is dropped with a warning; callers needing guaranteed
// delivery use Publish.
func (b *Bus) PublishAsync(ctx context.Context, e workflow.DomainEvent) {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()

	if b.closed {
		b.logger.Warn("publish to closed bus", "event_type", e.EventType(), "event_id", e.EventID())
		return
	}
	select {
	case b.asyncBuffer <- asyncEvent{ctx: ctx, event: e}:
	default:
		b.logger.Warn("async buffer full, dropping event", "event_type", e.EventType(), "event_id", e.EventID())
	}
}

// SubscriberCount returns the number of subscribers for an event type.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// Close drains the async buffer and stops the workers.
func (b *Bus) Close() {
	b.closeMu.Lock()
	b.closed = true
	b.closeMu.Unlock()

	close(b.asyncBuffer)
	b.wg.Wait()
}
