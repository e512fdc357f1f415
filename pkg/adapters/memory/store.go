package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

// Store implements ports.ConversationStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Conversation
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Conversation),
	}
}

// Create persists a new conversation.
func (s *Store) Create(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[conv.SessionID]; exists {
		return domain.ErrSessionExists
	}
	// Copy on write so callers can't mutate stored state by pointer
	s.data[conv.SessionID] = conv.Clone()
	return nil
}

// Get retrieves a copy of the conversation.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return conv.Clone(), nil
}

// Put stores a copy of the conversation.
func (s *Store) Put(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[conv.SessionID] = conv.Clone()
	return nil
}

// Delete removes the conversation.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns copies of the stored conversations.
func (s *Store) List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Conversation, 0, len(s.data))
	for _, c := range s.data {
		all = append(all, c)
	}
	out := ports.ApplyListOptions(all, opts)
	for i, c := range out {
		out[i] = c.Clone()
	}
	return out, nil
}

// Count returns the number of conversations with the given status.
func (s *Store) Count(ctx context.Context, status domain.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status == "" {
		return len(s.data), nil
	}
	n := 0
	for _, c := range s.data {
		if c.Status == status {
			n++
		}
	}
	return n, nil
}

// Prune removes conversations idle since before the cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.data {
		if c.UpdatedAt.Before(before) {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}
