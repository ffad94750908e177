// Package messaging provides the in-process event bus the sync core
// publishes on. UI bindings and supporting services subscribe per event
// type; the core never knows who is listening.
package messaging

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

// InProcessBus dispatches domain events to registered handlers.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	logger   *zap.Logger
}

// NewInProcessBus creates an empty bus.
func NewInProcessBus(logger *zap.Logger) *InProcessBus {
	return &InProcessBus{
		handlers: make(map[string][]ports.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event type. Registering the same
// handler twice for one type is a conflict.
func (b *InProcessBus) Subscribe(eventType string, handler ports.EventHandler) error {
	if eventType == "" {
		return pkgerrors.NewValidation("event type is required")
	}
	if handler == nil {
		return pkgerrors.NewValidation("handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.handlers[eventType] {
		if existing == handler {
			return pkgerrors.NewConflict("handler already subscribed to " + eventType)
		}
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Unsubscribe removes a previously registered handler.
func (b *InProcessBus) Unsubscribe(eventType string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	registered := b.handlers[eventType]
	for i, existing := range registered {
		if existing == handler {
			b.handlers[eventType] = append(registered[:i:i], registered[i+1:]...)
			return nil
		}
	}
	return pkgerrors.NewNotFound("handler not subscribed to " + eventType)
}

// Publish delivers an event to every handler subscribed to its type,
// synchronously and in subscription order. A failing handler is logged and
// skipped; one bad subscriber must not starve the rest or the publisher.
func (b *InProcessBus) Publish(ctx context.Context, event events.DomainEvent) error {
	if event == nil {
		return pkgerrors.NewValidation("event is required")
	}

	eventType := event.GetEventType()
	b.mu.RLock()
	registered := append([]ports.EventHandler(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	for _, handler := range registered {
		if !handler.CanHandle(eventType) {
			continue
		}
		b.dispatch(ctx, eventType, event, handler)
	}
	return nil
}

// PublishBatch delivers events one at a time, in order.
func (b *InProcessBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := b.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (b *InProcessBus) dispatch(ctx context.Context, eventType string, event events.DomainEvent, handler ports.EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", eventType),
				zap.Any("panic", r),
			)
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		b.logger.Error("event handler failed",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
