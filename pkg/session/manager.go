package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry is the FIFO queue of one session.
// refs counts the holder plus the waiters so idle entries can be dropped.
type lockEntry struct {
	held    bool
	waiters []chan struct{}
	refs    int
}

// Manager orchestrates conversation access, serializing work per session.
type Manager struct {
	store ports.ConversationStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store ports.ConversationStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lock waits for the session's turn. Waiters are served in arrival order.
// A waiter whose context ends leaves the queue without disturbing the others.
func (m *Manager) lock(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	entry, ok := m.locks[sessionID]
	if !ok {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	if !entry.held {
		entry.held = true
		m.mu.Unlock()
		return nil
	}
	ticket := make(chan struct{})
	entry.waiters = append(entry.waiters, ticket)
	m.mu.Unlock()

	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
	}

	m.mu.Lock()
	for i, w := range entry.waiters {
		if w == ticket {
			entry.waiters = append(entry.waiters[:i], entry.waiters[i+1:]...)
			entry.refs--
			if entry.refs <= 0 {
				delete(m.locks, sessionID)
			}
			m.mu.Unlock()
			return ctx.Err()
		}
	}
	m.mu.Unlock()

	// The lock was handed over while the context ended; pass it on.
	m.unlock(sessionID)
	return ctx.Err()
}

// unlock hands the session to the next waiter, or marks it free.
func (m *Manager) unlock(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[sessionID]
	if !ok {
		return
	}
	entry.refs--
	if len(entry.waiters) > 0 {
		next := entry.waiters[0]
		entry.waiters = entry.waiters[1:]
		close(next)
	} else {
		entry.held = false
	}
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock runs fn with exclusive access to the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	if err := m.lock(ctx, sessionID); err != nil {
		return fmt.Errorf("waiting for session %s: %w", sessionID, err)
	}
	defer m.unlock(sessionID)

	if m.locker != nil {
		release, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Create persists a new conversation. It fails with domain.ErrSessionExists if the ID is taken.
func (m *Manager) Create(ctx context.Context, conv *domain.Conversation) error {
	return m.WithLock(ctx, conv.SessionID, func(ctx context.Context) error {
		return m.store.Create(ctx, conv)
	})
}

// Get reads a conversation without taking the session lock.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	return m.store.Get(ctx, sessionID)
}

// Update runs a read-modify-write cycle under the session lock.
// fn works on a copy; the copy is persisted only if fn succeeds.
func (m *Manager) Update(ctx context.Context, sessionID string, fn func(context.Context, *domain.Conversation) error) (*domain.Conversation, error) {
	var updated *domain.Conversation
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		current, err := m.store.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		work := current.Clone()
		if err := fn(ctx, work); err != nil {
			return err
		}
		if err := m.store.Put(ctx, work); err != nil {
			return fmt.Errorf("failed to save session %s: %w", sessionID, err)
		}
		updated = work
		return nil
	})
	return updated, err
}

// Delete removes the conversation from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error) {
	return m.store.List(ctx, opts)
}

// Count delegates to the store.
func (m *Manager) Count(ctx context.Context, status domain.Status) (int, error) {
	return m.store.Count(ctx, status)
}

// Prune deletes conversations idle since before the cutoff.
func (m *Manager) Prune(ctx context.Context, before time.Time) (int, error) {
	return m.store.Prune(ctx, before)
}

// Store returns the underlying store.
func (m *Manager) Store() ports.ConversationStore {
	return m.store
}
