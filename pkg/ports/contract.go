package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConversationStoreContract runs a suite of tests to verify that a ConversationStore
// implementation adheres to the defined interface contract.
// The store must be empty when the suite starts.
func RunConversationStoreContract(t *testing.T, store ConversationStore) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sessionID := "contract-" + time.Now().Format("20060102150405.000")

	newConv := func(id string, updated time.Time) *domain.Conversation {
		c := domain.NewConversation(id, base)
		c.AddMessage(domain.RoleAgent, "Hello!", base)
		c.UpdatedAt = updated
		return c
	}

	t.Run("Create and Get", func(t *testing.T) {
		conv := newConv(sessionID, base)
		conv.Attempt("name", base)
		conv.Commit("name", "John Doe", 1, base)
		conv.Metadata[domain.KeyOffTopicCount] = 2

		require.NoError(t, store.Create(ctx, conv), "Create should not return error")

		loaded, err := store.Get(ctx, sessionID)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, sessionID, loaded.SessionID)
		assert.Equal(t, domain.StatusActive, loaded.Status)
		require.Len(t, loaded.Messages, 1)
		assert.Equal(t, "Hello!", loaded.Messages[0].Content)
		require.Contains(t, loaded.Fields, "name")
		assert.Equal(t, "John Doe", loaded.Fields["name"].Value)
		assert.True(t, loaded.Fields["name"].Validated)
		assert.Equal(t, 2, loaded.Counter(domain.KeyOffTopicCount))
		assert.True(t, base.Equal(loaded.CreatedAt))
	})

	t.Run("Create Existing", func(t *testing.T) {
		err := store.Create(ctx, newConv(sessionID, base))
		assert.ErrorIs(t, err, domain.ErrSessionExists)
	})

	t.Run("Put Replaces", func(t *testing.T) {
		conv, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		conv.AddMessage(domain.RoleUser, "john@example.com", base.Add(time.Minute))
		conv.Complete(base.Add(time.Minute))
		require.NoError(t, store.Put(ctx, conv))

		loaded, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		assert.Len(t, loaded.Messages, 2)
		assert.Equal(t, domain.StatusCompleted, loaded.Status)
		require.NotNil(t, loaded.EndedAt)
	})

	t.Run("Returned Copies Are Isolated", func(t *testing.T) {
		loaded, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		loaded.Messages = append(loaded.Messages, domain.Message{Content: "local only"})

		again, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		assert.Len(t, again.Messages, 2)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Get(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Get after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "deleting twice is not an error")
	})

	t.Run("List Count Prune", func(t *testing.T) {
		old := newConv(sessionID+"-old", base)
		mid := newConv(sessionID+"-mid", base.Add(time.Hour))
		mid.Escalate("human", "policy_0_keyword", "keyword", base.Add(time.Hour))
		mid.UpdatedAt = base.Add(time.Hour)
		recent := newConv(sessionID+"-recent", base.Add(2*time.Hour))

		for _, c := range []*domain.Conversation{old, mid, recent} {
			require.NoError(t, store.Create(ctx, c))
		}
		defer func() {
			for _, c := range []*domain.Conversation{old, mid, recent} {
				_ = store.Delete(ctx, c.SessionID)
			}
		}()

		all, err := store.List(ctx, ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, recent.SessionID, all[0].SessionID, "most recent first")
		assert.Equal(t, old.SessionID, all[2].SessionID)

		limited, err := store.List(ctx, ListOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, recent.SessionID, limited[0].SessionID)

		escalated, err := store.List(ctx, ListOptions{Status: domain.StatusEscalated})
		require.NoError(t, err)
		require.Len(t, escalated, 1)
		assert.Equal(t, mid.SessionID, escalated[0].SessionID)

		n, err := store.Count(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = store.Count(ctx, domain.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		removed, err := store.Prune(ctx, base.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = store.Get(ctx, old.SessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
