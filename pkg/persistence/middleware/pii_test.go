package middleware_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/persistence/middleware"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	view := middleware.NewPIIMiddleware([]string{"email", "phone"})(underlying)
	ctx := context.Background()

	now := time.Now()
	conv := domain.NewConversation("pii", now)
	conv.AddMessage(domain.RoleUser, "Jane Doe", now)
	conv.AddMessage(domain.RoleUser, "jane@old.com", now)
	conv.AddMessage(domain.RoleUser, "actually it's jane@new.com", now)
	for field, values := range map[string][]string{
		"name":  {"Jane Doe"},
		"email": {"jane@old.com", "jane@new.com"},
	} {
		conv.Attempt(field, now)
		for _, v := range values {
			conv.Commit(field, v, 1, now)
		}
	}
	require.NoError(t, view.Create(ctx, conv))

	raw, err := underlying.Get(ctx, "pii")
	require.NoError(t, err)
	assert.Equal(t, "jane@new.com", raw.Fields["email"].Value, "writes pass through unmasked")

	masked, err := view.Get(ctx, "pii")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", masked.Fields["name"].Value)
	assert.Equal(t, middleware.Mask, masked.Fields["email"].Value)
	assert.Equal(t, []string{middleware.Mask}, masked.Fields["email"].History)
	assert.Equal(t, "Jane Doe", masked.Messages[0].Content)
	assert.Equal(t, middleware.Mask, masked.Messages[1].Content)
	assert.Equal(t, "actually it's ***", masked.Messages[2].Content)

	list, err := view.List(ctx, ports.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, middleware.Mask, list[0].Fields["email"].Value)

	again, err := underlying.Get(ctx, "pii")
	require.NoError(t, err)
	assert.Equal(t, "jane@new.com", again.Fields["email"].Value, "redaction never reaches the backend")
}

func TestChain_OrdersOutermostFirst(t *testing.T) {
	key := make([]byte, 32)
	store := middleware.Chain(memory.NewStore(),
		middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)
	ctx := context.Background()

	now := time.Now()
	conv := domain.NewConversation("c", now)
	conv.Attempt("phone", now)
	conv.Commit("phone", "+1 555 0100", 1, now)
	require.NoError(t, store.Create(ctx, conv))

	loaded, err := store.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Fields["phone"].Value, "decrypted by the inner layer, masked by the outer one")
}
