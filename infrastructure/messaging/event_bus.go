// Package messaging carries domain events out of the process: an
// in-process bus fans events out to subscribers and forwards them to an
// external publisher when one is configured.
package messaging

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/events"
)

// EventBus routes domain events to in-process subscribers and then to the
// external publisher. Subscriber failures are logged and do not stop
// delivery to the remaining subscribers; external publish failures are
// returned to the caller, which treats them as best effort because the
// outbox re-delivers from the audit log.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]ports.EventHandler
	external    ports.EventPublisher
	logger      *zap.Logger
}

var _ ports.EventBus = (*EventBus)(nil)

// NewEventBus creates an event bus. The external publisher may be nil;
// events then stay in-process.
func NewEventBus(external ports.EventPublisher, logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]ports.EventHandler),
		external:    external,
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type.
func (b *EventBus) Subscribe(eventType string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	return nil
}

// Unsubscribe removes a previously registered handler.
func (b *EventBus) Unsubscribe(eventType string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.subscribers[eventType]
	for i, h := range handlers {
		if h == handler {
			b.subscribers[eventType] = append(handlers[:i], handlers[i+1:]...)
			return nil
		}
	}
	return nil
}

// Publish delivers one event to subscribers and the external publisher.
func (b *EventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.RLock()
	handlers := append([]ports.EventHandler(nil), b.subscribers[event.GetEventType()]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if !handler.CanHandle(event.GetEventType()) {
			continue
		}
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Warn("Event subscriber failed",
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateId", event.GetAggregateID()),
				zap.Error(err),
			)
		}
	}

	if b.external == nil {
		return nil
	}
	return b.external.Publish(ctx, event)
}

// PublishBatch delivers several events in order.
func (b *EventBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := b.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
