// Package lifecycle routes host lifecycle notifications to registered
// handlers. The host environment (shell window, signal handling) owns when
// events fire; handlers must tolerate firing zero or more times, from any
// goroutine.
package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// Event identifies a host lifecycle notification.
type Event string

const (
	// EventWindowClosed fires when the user closes the session window.
	EventWindowClosed Event = "window-closed"
	// EventAppExit fires when the application is about to terminate.
	EventAppExit Event = "app-exit"
)

// Handler reacts to a host lifecycle event.
type Handler func(ctx context.Context) error

// Registry associates lifecycle events with their handlers. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
}

// NewRegistry returns an empty lifecycle registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Event][]Handler)}
}

// Register appends a handler for the given event. Nil handlers are ignored.
func (r *Registry) Register(event Event, handler Handler) {
	if handler == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], handler)
}

// Dispatch invokes every handler registered for the event, in registration
// order, and joins their errors. Dispatching an event with no handlers is a
// no-op. Dispatch is safe to call concurrently from multiple goroutines.
func (r *Registry) Dispatch(ctx context.Context, event Event) error {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[event]...)
	r.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
