package world

import (
	"context"
	"sync"
)

// Handler receives world events on the loop
type Handler interface {
	Handle(ev Event)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ev Event)

// Handle calls f(ev)
func (f HandlerFunc) Handle(ev Event) { f(ev) }

// Bus delivers world events to subscribed handlers in subscription order.
type Bus struct {
	loop     *Loop
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates a bus dispatching on loop
func NewBus(loop *Loop) *Bus {
	return &Bus{loop: loop}
}

// Subscribe adds a handler
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Dispatch runs every handler for ev. It must be called on the loop.
func (b *Bus) Dispatch(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h.Handle(ev)
	}
}

// Post dispatches ev on the loop from any goroutine and waits for the handlers.
// It reports whether a handler cancelled the event.
func (b *Bus) Post(ctx context.Context, ev Event) (cancelled bool, err error) {
	if err := b.loop.Do(ctx, func() { b.Dispatch(ev) }); err != nil {
		return false, err
	}
	if c, ok := ev.(interface{ Cancelled() bool }); ok {
		return c.Cancelled(), nil
	}
	return false, nil
}
