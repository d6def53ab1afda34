package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/facebookgo/atomicfile"

	"solana-marketplace/internal/domain"
)

// SessionStore persists the wallet session under a well-known durable key, so
// any protected view on the same device can read it.
type SessionStore interface {
	// Load reads the stored session. Returns ErrNoSession when absent.
	Load() (*domain.WalletSession, error)

	// Save writes the session, replacing any previous one.
	Save(s *domain.WalletSession) error

	// Clear removes the stored session. Clearing an absent session is not an
	// error.
	Clear() error
}

// FileSessionStore stores the session as a JSON file, written atomically so a
// crash mid-write cannot corrupt it.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

// NewFileSessionStore creates a store at the given path, creating parent
// directories as needed.
func NewFileSessionStore(path string) (*FileSessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileSessionStore{path: path}, nil
}

// Compile-time interface check.
var _ SessionStore = (*FileSessionStore)(nil)

// Load reads the stored session.
func (s *FileSessionStore) Load() (*domain.WalletSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var session domain.WalletSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if session.Address == "" {
		return nil, ErrNoSession
	}
	return &session, nil
}

// Save writes the session atomically.
func (s *FileSessionStore) Save(session *domain.WalletSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	f, err := atomicfile.New(s.path, 0o600)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("commit session file: %w", err)
	}
	return nil
}

// Clear removes the stored session file.
func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// MemorySessionStore is an in-memory SessionStore for tests.
type MemorySessionStore struct {
	mu      sync.Mutex
	session *domain.WalletSession
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// Compile-time interface check.
var _ SessionStore = (*MemorySessionStore)(nil)

// Load reads the stored session.
func (s *MemorySessionStore) Load() (*domain.WalletSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNoSession
	}
	copy := *s.session
	return &copy, nil
}

// Save writes the session.
func (s *MemorySessionStore) Save(session *domain.WalletSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *session
	s.session = &copy
	return nil
}

// Clear removes the stored session.
func (s *MemorySessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
