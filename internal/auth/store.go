package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CredentialStore persists the session token between runs.
type CredentialStore interface {
	// Load returns nil, nil when nothing is stored.
	Load() (*Token, error)
	Save(tok *Token) error
	Clear() error
}

// FileStore keeps the token in a YAML file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the stored token.
func (s *FileStore) Load() (*Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var tok Token
	if err := yaml.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if tok.RefreshToken == "" && tok.IDToken == "" {
		return nil, nil
	}
	return &tok, nil
}

// Save writes the token, creating the parent directory if needed.
func (s *FileStore) Save(tok *Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := yaml.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
