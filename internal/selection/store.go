// Package selection persists the user's last chosen wallet provider so the
// choice survives restarts.
package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mrz1836/walletlink/internal/fileutil"
)

// Key is the storage key holding the selected provider URL.
const Key = "walletProvider"

// selectionFilePermissions is the permission mode for the selection file.
const selectionFilePermissions = 0o600

// ErrCorruptSelection indicates the selection file is not valid JSON.
var ErrCorruptSelection = errors.New("selection file is corrupted")

// Store is a durable slot for the selected provider URL.
type Store interface {
	// Get returns the stored URL, or the default URL when nothing is stored.
	Get() string

	// Set stores url synchronously. Writing the current value again is a no-op.
	Set(url string) error
}

// MemoryStore keeps the selection in memory. It is used in tests and when no
// selection file is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	value      string
	defaultURL string
	writes     int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(defaultURL string) *MemoryStore {
	return &MemoryStore{defaultURL: defaultURL}
}

// Get returns the stored URL or the default.
func (s *MemoryStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.value == "" {
		return s.defaultURL
	}
	return s.value
}

// Set stores url.
func (s *MemoryStore) Set(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == url {
		return nil
	}
	s.value = url
	s.writes++
	return nil
}

// Writes returns how many effective writes happened.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// document is the on-disk layout of the selection file.
type document struct {
	WalletProvider string    `json:"walletProvider"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero"`
}

// FileStore persists the selection as a small JSON document.
type FileStore struct {
	mu         sync.RWMutex
	path       string
	defaultURL string
	value      string
}

// Compile-time interface checks
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)

// OpenFileStore loads the selection file at path. A missing file yields an
// empty store; a corrupt file is moved aside and also yields an empty store
// together with ErrCorruptSelection.
func OpenFileStore(path, defaultURL string) (*FileStore, error) {
	s := &FileStore{path: path, defaultURL: defaultURL}
	err := s.Reload()
	return s, err
}

// Path returns the selection file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the stored URL or the default.
func (s *FileStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.value == "" {
		return s.defaultURL
	}
	return s.value
}

// Set writes url to disk if it differs from the stored value.
func (s *FileStore) Set(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.value == url {
		return nil
	}

	data, err := json.MarshalIndent(document{WalletProvider: url, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling selection: %w", err)
	}
	if err := fileutil.WriteAtomic(s.path, data, selectionFilePermissions); err != nil {
		return fmt.Errorf("writing selection file: %w", err)
	}

	s.value = url
	return nil
}

// Reload re-reads the selection file, replacing the in-memory value.
func (s *FileStore) Reload() error {
	value, err := readSelection(s.path)

	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	return err
}

// readSelection reads the stored URL from path.
func readSelection(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from validated config
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading selection file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", path, time.Now().UTC().UnixNano())
		if renameErr := os.Rename(path, corruptPath); renameErr != nil {
			return "", fmt.Errorf("%w: %w (also failed to move file: %w)", ErrCorruptSelection, err, renameErr)
		}
		return "", fmt.Errorf("%w: %w (moved to %s)", ErrCorruptSelection, err, corruptPath)
	}

	return doc.WalletProvider, nil
}
