// Package adapter defines the capability contract every wallet adapter
// satisfies. The session manager only ever talks to an adapter through this
// contract; provider-specific behavior stays inside the implementation.
package adapter

import (
	"context"
	"slices"
	"sync"
)

// EventName identifies an adapter lifecycle event.
type EventName string

// Lifecycle events emitted by adapters.
const (
	EventConnect    EventName = "connect"
	EventDisconnect EventName = "disconnect"
)

// String returns the event name.
func (e EventName) String() string {
	return string(e)
}

// IsValid returns true for the events adapters are allowed to emit.
func (e EventName) IsValid() bool {
	switch e {
	case EventConnect, EventDisconnect:
		return true
	default:
		return false
	}
}

// Handler is invoked when an adapter emits an event.
type Handler func()

// Unsubscribe revokes a subscription created by On. Calling it more than once
// is harmless.
type Unsubscribe func()

// Adapter mediates one connection to a provider's endpoint.
type Adapter interface {
	// Connect performs the connect handshake. A successful handshake is
	// announced through the connect event, not the return value alone.
	Connect(ctx context.Context) error

	// Disconnect closes the connection and emits the disconnect event.
	Disconnect(ctx context.Context) error

	// Connected reports whether the handshake completed and no disconnect
	// happened since.
	Connected() bool

	// Identity returns the connected account identifier, or "" when
	// disconnected.
	Identity() string

	// On subscribes to a lifecycle event.
	On(event EventName, handler Handler) Unsubscribe
}

// Constructor builds a new adapter bound to a provider URL and network endpoint.
type Constructor func(providerURL, endpoint string) (Adapter, error)

// Emitter is a typed event source with revocable subscriptions. Adapter
// implementations embed it to satisfy On.
type Emitter struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[EventName]map[uint64]Handler
}

// On registers handler for event and returns its unsubscribe func.
func (e *Emitter) On(event EventName, handler Handler) Unsubscribe {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[EventName]map[uint64]Handler)
	}
	if e.handlers[event] == nil {
		e.handlers[event] = make(map[uint64]Handler)
	}

	e.nextID++
	id := e.nextID
	e.handlers[event][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.handlers[event], id)
		})
	}
}

// Emit invokes every handler subscribed to event. Handlers run outside the
// emitter lock so they may unsubscribe themselves.
func (e *Emitter) Emit(event EventName) {
	e.mu.Lock()
	ids := make([]uint64, 0, len(e.handlers[event]))
	for id := range e.handlers[event] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, e.handlers[event][id])
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Subscribers returns the number of live subscriptions for event.
func (e *Emitter) Subscribers(event EventName) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[event])
}
