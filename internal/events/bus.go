// Package events dispatches tracker events to registered handlers.
//
// Delivery is best-effort by contract: a failing handler is logged and
// skipped, and Dispatch never propagates handler errors back to the
// operation that emitted the event. A status change must not fail
// because an email could not be sent.
package events

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Handler consumes events from the bus.
type Handler interface {
	// ID returns a stable identifier for logging.
	ID() string
	// Handles returns the event types this handler consumes.
	Handles() []EventType
	// Handle processes one event. Errors are logged, never propagated.
	Handle(ctx context.Context, event *Event) error
}

// Bus dispatches events to registered handlers. Handlers run
// sequentially in registration order on the dispatching goroutine.
type Bus struct {
	handlers []Handler
	mu       sync.RWMutex
}

// New creates a new event bus with no handlers.
func New() *Bus {
	return &Bus{}
}

// Register adds a handler to the bus.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Dispatch sends an event to all handlers that handle its type. Handler
// errors are logged but do not stop the chain and are never returned;
// the only dispatch errors are a nil event or a cancelled context.
func (b *Bus) Dispatch(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("events: nil event")
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	matching := b.matchingHandlers(event.Type)
	b.mu.RUnlock()

	for _, h := range matching {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("events: context cancelled: %w", err)
		}
		if err := h.Handle(ctx, event); err != nil {
			log.Printf("events: handler %q error for %s: %v", h.ID(), event.Type, err)
		}
	}
	return nil
}

// Handlers returns all registered handlers (for introspection).
func (b *Bus) Handlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers))
	copy(out, b.handlers)
	return out
}

// matchingHandlers returns handlers that handle the given event type.
// Must be called with at least a read lock held.
func (b *Bus) matchingHandlers(eventType EventType) []Handler {
	var matched []Handler
	for _, h := range b.handlers {
		for _, t := range h.Handles() {
			if t == eventType {
				matched = append(matched, h)
				break
			}
		}
	}
	return matched
}
