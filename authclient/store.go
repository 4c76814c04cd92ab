package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store persists the current session for one user-agent.
// Load returns nil, nil when there is no session.
type Store interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	copied := *m.session
	return &copied, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return m.Clear(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.session = &copied
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// fileRecord is the on-disk layout of a FileStore session
type fileRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// FileStore keeps the session in a JSON file readable only by the owner
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(ctx context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session file: %w", err)
	}
	if rec.AccessToken == "" && rec.RefreshToken == "" {
		return nil, nil
	}

	s := &Session{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
		User:         rec.User,
	}
	if rec.ExpiresAt > 0 {
		s.ExpiresAt = time.Unix(rec.ExpiresAt, 0)
	}
	return s, nil
}

func (f *FileStore) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return f.Clear(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := fileRecord{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		User:         s.User,
	}
	if !s.ExpiresAt.IsZero() {
		rec.ExpiresAt = s.ExpiresAt.Unix()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
