package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

// DefaultDir is used when New receives an empty path.
var DefaultDir = filepath.Join(".intake", "sessions")

// Store implements ports.ConversationStore using the local filesystem.
// Each conversation is one JSON file named after its session id.
type Store struct {
	BasePath string

	// mu guards the exists-then-write sequence of Create.
	mu sync.Mutex
}

// New creates a new Store with the given base path.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("sessionID cannot be empty")
	}
	if strings.ContainsAny(sessionID, `/\`) || strings.Contains(sessionID, "..") {
		return "", fmt.Errorf("invalid sessionID %q", sessionID)
	}
	return filepath.Join(s.BasePath, sessionID+".json"), nil
}

// Create persists a new conversation, failing if the file already exists.
func (s *Store) Create(ctx context.Context, conv *domain.Conversation) error {
	dest, err := s.path(conv.SessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(dest); err == nil {
		return domain.ErrSessionExists
	}
	return s.write(dest, conv)
}

// Put persists the conversation atomically, replacing any previous version.
func (s *Store) Put(ctx context.Context, conv *domain.Conversation) error {
	dest, err := s.path(conv.SessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(dest, conv)
}

// write goes through a synced temp file in the same directory and renames it over dest.
func (s *Store) write(dest string, conv *domain.Conversation) error {
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+conv.SessionID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing session file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file to session file: %w", err)
	}
	return nil
}

// Get retrieves the conversation from its JSON file.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	p, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}
	return read(p)
}

func read(p string) (*domain.Conversation, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var conv domain.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation %s: %w", filepath.Base(p), err)
	}
	return &conv, nil
}

// Delete removes the session file.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	p, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// all loads every conversation in the directory, skipping leftover temp files.
func (s *Store) all() ([]*domain.Conversation, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var out []*domain.Conversation
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		conv, err := read(filepath.Join(s.BasePath, name))
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue // removed concurrently
		}
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

// List returns conversations most recently updated first.
func (s *Store) List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error) {
	convs, err := s.all()
	if err != nil {
		return nil, err
	}
	return ports.ApplyListOptions(convs, opts), nil
}

// Count returns the number of conversations with the given status ("" for all).
func (s *Store) Count(ctx context.Context, status domain.Status) (int, error) {
	convs, err := s.List(ctx, ports.ListOptions{Status: status})
	if err != nil {
		return 0, err
	}
	return len(convs), nil
}

// Prune deletes conversations last updated before the cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	convs, err := s.all()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, c := range convs {
		if !c.UpdatedAt.Before(before) {
			continue
		}
		if err := s.Delete(ctx, c.SessionID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
