package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/intake/internal/adapters/file"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.ConversationStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunConversationStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "not-created"))

	list, err := store.List(context.Background(), ports.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileStore_IgnoresTempAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.NewConversation("real", time.Now())))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-real-123.json"), []byte("{broken"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	list, err := store.List(ctx, ports.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "real", list[0].SessionID)
}

func TestFileStore_AtomicOverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	conv := domain.NewConversation("s1", time.Now())
	require.NoError(t, store.Create(ctx, conv))
	for i := 0; i < 3; i++ {
		conv.AddMessage(domain.RoleUser, "hi", time.Now())
		require.NoError(t, store.Put(ctx, conv))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1.json", entries[0].Name())

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 3)
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		_, err := store.Get(ctx, id)
		assert.Error(t, err, id)
		assert.NotErrorIs(t, err, domain.ErrSessionNotFound, id)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	_, err := file.New(dir).Get(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}
