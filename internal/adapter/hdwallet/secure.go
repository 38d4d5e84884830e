package hdwallet

import (
	"runtime"
	"sync"
)

// secret holds decrypted key material in locked memory and zeroes it on
// Destroy.
type secret struct {
	mu     sync.Mutex
	data   []byte
	locked bool
}

// newSecret copies data into locked memory. The caller still owns data and
// should wipe it.
func newSecret(data []byte) *secret {
	s := &secret{data: make([]byte, len(data))}
	copy(s.data, data)
	s.locked = mlock(s.data)
	runtime.SetFinalizer(s, (*secret).Destroy)
	return s
}

// Bytes returns the held bytes, or nil after Destroy.
func (s *secret) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Destroy zeroes and unlocks the memory. Safe to call more than once.
func (s *secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return
	}
	wipe(s.data)
	if s.locked {
		munlock(s.data)
		s.locked = false
	}
	s.data = nil
	runtime.SetFinalizer(s, nil)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
