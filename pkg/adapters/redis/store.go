package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "intake:"

var statuses = []domain.Status{
	domain.StatusActive,
	domain.StatusCompleted,
	domain.StatusEscalated,
	domain.StatusFailed,
}

// Store implements ports.ConversationStore using Redis.
//
// Conversations are stored as JSON under <prefix>conv:<id>. A sorted set scored by
// UpdatedAt indexes them for listing and pruning, and one set per status backs Count.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for conversations. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store connected to address.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(sessionID string) string {
	return s.prefix + "conv:" + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

func (s *Store) statusKey(status domain.Status) string {
	return s.prefix + "status:" + string(status)
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Create persists a new conversation, failing if the ID is taken.
func (s *Store) Create(ctx context.Context, conv *domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(conv.SessionID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create in redis: %w", err)
	}
	if !ok {
		return domain.ErrSessionExists
	}
	return s.index(ctx, conv)
}

// Put stores the conversation, replacing any previous version.
func (s *Store) Put(ctx context.Context, conv *domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(conv.SessionID), data, s.ttl)
	s.queueIndex(ctx, pipe, conv)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *Store) index(ctx context.Context, conv *domain.Conversation) error {
	pipe := s.client.TxPipeline()
	s.queueIndex(ctx, pipe, conv)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index conversation: %w", err)
	}
	return nil
}

func (s *Store) queueIndex(ctx context.Context, pipe backend.Pipeliner, conv *domain.Conversation) {
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score(conv.UpdatedAt), Member: conv.SessionID})
	for _, st := range statuses {
		if st == conv.Status {
			pipe.SAdd(ctx, s.statusKey(st), conv.SessionID)
		} else {
			pipe.SRem(ctx, s.statusKey(st), conv.SessionID)
		}
	}
}

func (s *Store) queueUnindex(ctx context.Context, pipe backend.Pipeliner, ids ...string) {
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe.ZRem(ctx, s.indexKey(), members...)
	for _, st := range statuses {
		pipe.SRem(ctx, s.statusKey(st), members...)
	}
}

// Get retrieves a conversation.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decode(val)
}

func decode(val string) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := json.Unmarshal([]byte(val), &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// Delete removes the conversation and its index entries.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(sessionID))
	s.queueUnindex(ctx, pipe, sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns conversations most recently updated first.
// Index entries whose key has expired are removed on the way.
func (s *Store) List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Conversation{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	out := []*domain.Conversation{}
	var expired []string
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		conv, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if opts.Status != "" && conv.Status != opts.Status {
			continue
		}
		out = append(out, conv)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}

	if len(expired) > 0 {
		pipe := s.client.Pipeline()
		s.queueUnindex(ctx, pipe, expired...)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
		}
	}
	return out, nil
}

// Count returns the number of conversations with the given status ("" for all).
func (s *Store) Count(ctx context.Context, status domain.Status) (int, error) {
	var n int64
	var err error
	if status == "" {
		n, err = s.client.ZCard(ctx, s.indexKey()).Result()
	} else {
		n, err = s.client.SCard(ctx, s.statusKey(status)).Result()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}

// Prune deletes conversations last updated before the cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	max := "(" + strconv.FormatFloat(score(before), 'f', -1, 64)
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &backend.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to find stale sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.key(id))
	}
	s.queueUnindex(ctx, pipe, ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return len(ids), nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
