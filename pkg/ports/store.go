package ports

import (
	"context"
	"sort"
	"time"

	"github.com/aretw0/intake/pkg/domain"
)

// ListOptions filters and bounds a listing. Zero values mean no filter and no limit.
type ListOptions struct {
	Status domain.Status
	Limit  int
}

// ConversationStore defines the interface for persisting conversation records.
// Implementations must provide per-key atomicity for Put and Get.
type ConversationStore interface {
	// Create persists a new conversation.
	// Returns domain.ErrSessionExists if the session id is already taken.
	Create(ctx context.Context, conv *domain.Conversation) error

	// Get retrieves a conversation by session id.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Get(ctx context.Context, sessionID string) (*domain.Conversation, error)

	// Put stores the conversation, replacing any previous version.
	Put(ctx context.Context, conv *domain.Conversation) error

	// Delete removes the conversation. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns conversations ordered by UpdatedAt, most recent first.
	List(ctx context.Context, opts ListOptions) ([]*domain.Conversation, error)

	// Count returns the number of conversations with the given status ("" for all).
	Count(ctx context.Context, status domain.Status) (int, error)

	// Prune deletes conversations last updated before the cutoff and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// ApplyListOptions filters convs by status, sorts them most recently updated first
// and truncates to the limit. Ties are broken by session id for a stable order.
func ApplyListOptions(convs []*domain.Conversation, opts ListOptions) []*domain.Conversation {
	out := make([]*domain.Conversation, 0, len(convs))
	for _, c := range convs {
		if opts.Status == "" || c.Status == opts.Status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}
