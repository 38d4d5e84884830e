package state

import (
	"slices"
	"sync"
)

// Mutator changes state in place during Update.
type Mutator func(*State)

// Listener receives a snapshot after every Update.
type Listener func(State)

// Sink is the read/update capability the session manager depends on.
type Sink interface {
	Read() State
	Update(fn Mutator)
}

// Store is a mutex-guarded State with subscriptions.
type Store struct {
	mu    sync.RWMutex
	state State

	// deliverMu serializes Update so listeners see snapshots in order.
	deliverMu sync.Mutex

	subMu     sync.Mutex
	nextSubID uint64
	listeners map[uint64]Listener
}

// Compile-time interface check
var _ Sink = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{listeners: make(map[uint64]Listener)}
}

// Read returns a copy of the current state.
func (s *Store) Read() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Update applies fn atomically and then notifies listeners with the
// resulting snapshot. Listeners must not call Update.
func (s *Store) Update(fn Mutator) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	s.state.Version++
	snap := s.state.clone()
	s.mu.Unlock()

	for _, l := range s.snapshotListeners() {
		l(snap)
	}
}

// Subscribe registers l and returns a func that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.listeners[id] = l
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.listeners, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) snapshotListeners() []Listener {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}
