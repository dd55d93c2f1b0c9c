package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SessionStore persists the active session id between runs.
type SessionStore interface {
	Load() (string, error)
	Save(sessionID string) error
	Clear() error
}

type FileSessionStore struct {
	path string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// DefaultSessionPath is a file under the user's config directory.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error locating config dir: %w", err)
	}
	return filepath.Join(dir, "support-chat", "session"), nil
}

func (s *FileSessionStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("error reading session file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileSessionStore) Save(sessionID string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("error creating session dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(sessionID), 0600); err != nil {
		return fmt.Errorf("error writing session file: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing session file: %w", err)
	}
	return nil
}

type MemorySessionStore struct {
	mu        sync.Mutex
	sessionID string
}

func (s *MemorySessionStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, nil
}

func (s *MemorySessionStore) Save(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	return nil
}

func (s *MemorySessionStore) Clear() error {
	return s.Save("")
}
