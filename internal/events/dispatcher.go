package events

import (
	"context"
	"sync"
)

// UpdateHandler handles a published ticket update.
type UpdateHandler func(context.Context, TicketUpdate) error

// Dispatcher fans updates out to in-process subscribers.
type Dispatcher interface {
	Broadcaster
	Subscribe(updateType UpdateType, handler UpdateHandler)
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[UpdateType][]UpdateHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[UpdateType][]UpdateHandler),
	}
}

// Publish synchronously invokes handlers for the given update. Handler
// errors never propagate; the committed mutation is already authoritative.
func (d *inMemoryDispatcher) Publish(ctx context.Context, update TicketUpdate) error {
	d.mu.RLock()
	handlers := append([]UpdateHandler{}, d.listeners[update.UpdateType]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		_ = handler(ctx, update)
	}
	return nil
}

// Subscribe registers a handler for the given update type.
func (d *inMemoryDispatcher) Subscribe(updateType UpdateType, handler UpdateHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[updateType] = append(d.listeners[updateType], handler)
}
