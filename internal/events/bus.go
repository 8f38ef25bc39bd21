// Package events implements the change event bus: a process-wide broadcast
// channel carrying row-mutation signals from storage triggers to whatever
// wants to react to them (the recomputation engine, caches, forwarders).
//
// The bus is an explicit value with its own subscriber registry and
// lifecycle rather than an ambient global, so tests can inject one.
package events

import (
	"log"
	"sync"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// Handler consumes one change signal. Handlers run on their own goroutine;
// a handler's failure or panic never reaches other subscribers and never
// rolls back the originating mutation, which committed before the signal
// was raised.
type Handler func(sig types.ChangeSignal)

// Bus is a broadcast channel for change signals. Delivery is asynchronous
// and at-least-once per subscriber; ordering across subscribers is not
// guaranteed. The zero Bus is not usable; call NewBus.
type Bus struct {
	mu       sync.RWMutex
	closed   bool
	nextID   int
	handlers map[int]Handler

	// inFlight tracks dispatched handler invocations so Flush can wait
	// for cascade quiescence: a handler that publishes follow-up signals
	// registers them before it finishes.
	inFlight sync.WaitGroup
}

// NewBus creates an open bus with no subscribers.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Unsubscribing is idempotent. Subscribing to a closed bus returns a no-op
// unsubscribe and the handler never fires.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish broadcasts a signal to every current subscriber. Fire-and-forget:
// each handler runs on its own goroutine and Publish does not wait for any
// of them. Publishing on a closed bus drops the signal.
func (b *Bus) Publish(sig types.ChangeSignal) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.inFlight.Add(1)
		go func(h Handler) {
			defer b.inFlight.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("events: subscriber panic on %s %s: %v", sig.Type, sig.Table, r)
				}
			}()
			h(sig)
		}(h)
	}
}

// Flush blocks until every dispatched handler, including handlers of
// signals published by other handlers, has returned.
func (b *Bus) Flush() {
	b.inFlight.Wait()
}

// Close drains in-flight handlers and drops the subscriber registry.
// Signals published after Close are discarded. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.handlers = make(map[int]Handler)
	b.mu.Unlock()

	b.inFlight.Wait()
}
