// Package hostready models the host "fully loaded" signal as a two-state
// gate. Some providers only register their capability after the host
// finishes loading, so adapter construction waits on this gate.
package hostready

import (
	"slices"
	"sync"
	"time"
)

// Gate is closed until MarkReady is called and stays open afterwards.
// Listeners registered while closed fire exactly once when it opens.
type Gate struct {
	mu        sync.Mutex
	ready     bool
	nextID    uint64
	listeners map[uint64]func()
	order     []uint64
}

// New returns a closed gate.
func New() *Gate {
	return &Gate{listeners: make(map[uint64]func())}
}

// NewReady returns a gate that is already open.
func NewReady() *Gate {
	g := New()
	g.ready = true
	return g
}

// Ready reports whether the host has finished loading.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// Once registers fn to run when the gate opens and returns a func that
// removes the listener. If the gate is already open, fn is not registered
// and ok is false; the caller should proceed synchronously.
func (g *Gate) Once(fn func()) (cancel func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ready {
		return func() {}, false
	}

	g.nextID++
	id := g.nextID
	g.listeners[id] = fn
	g.order = append(g.order, id)

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
		if i := slices.Index(g.order, id); i >= 0 {
			g.order = slices.Delete(g.order, i, i+1)
		}
	}, true
}

// MarkReady opens the gate and fires every pending listener once, in
// registration order. Later calls are no-ops.
func (g *Gate) MarkReady() {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		return
	}
	g.ready = true

	fire := make([]func(), 0, len(g.listeners))
	for _, id := range g.order {
		if fn, ok := g.listeners[id]; ok {
			fire = append(fire, fn)
		}
	}
	g.listeners = make(map[uint64]func())
	g.order = nil
	g.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// MarkReadyAfter opens the gate after d elapses. It returns a func that
// cancels the pending open.
func (g *Gate) MarkReadyAfter(d time.Duration) (stop func()) {
	if d <= 0 {
		g.MarkReady()
		return func() {}
	}
	t := time.AfterFunc(d, g.MarkReady)
	return func() { t.Stop() }
}

// Pending returns the number of registered listeners.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listeners)
}
