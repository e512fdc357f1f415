package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/intake/pkg/adapters/memory"
	redisadapter "github.com/aretw0/intake/pkg/adapters/redis"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore adds latency to provoke lost updates if locking is missing.
type slowStore struct {
	*memory.Store
}

func (s slowStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Get(ctx, id)
}

func (s slowStore) Put(ctx context.Context, conv *domain.Conversation) error {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Put(ctx, conv)
}

func incrementConcurrently(t *testing.T, mgr *session.Manager, id string, n int) {
	t.Helper()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(context.Background(), id, func(_ context.Context, c *domain.Conversation) error {
				c.Incr("turns", time.Now())
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestManager_UpdateSerializes(t *testing.T) {
	mgr := session.NewManager(slowStore{memory.NewStore()})
	ctx := context.Background()
	require.NoError(t, mgr.Create(ctx, domain.NewConversation("race", time.Now())))

	incrementConcurrently(t, mgr, "race", 20)

	conv, err := mgr.Get(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, 20, conv.Counter("turns"))
}

func TestManager_UpdateDiscardsOnError(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, mgr.Create(ctx, domain.NewConversation("s", time.Now())))

	boom := errors.New("boom")
	_, err := mgr.Update(ctx, "s", func(_ context.Context, c *domain.Conversation) error {
		c.AddMessage(domain.RoleUser, "lost", time.Now())
		return boom
	})
	assert.ErrorIs(t, err, boom)

	conv, err := mgr.Get(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestManager_CreateAndMissing(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, mgr.Create(ctx, domain.NewConversation("dup", time.Now())))
	assert.ErrorIs(t, mgr.Create(ctx, domain.NewConversation("dup", time.Now())), domain.ErrSessionExists)

	_, err := mgr.Update(ctx, "ghost", func(context.Context, *domain.Conversation) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	n, err := mgr.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestManager_DistributedLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := redisadapter.NewLocker(client, redisadapter.WithLockPrefix("test:lock:"))
	// Two managers model two replicas sharing one store.
	store := slowStore{memory.NewStore()}
	a := session.NewManager(store, session.WithLocker(locker))
	b := session.NewManager(store, session.WithLocker(locker))

	ctx := context.Background()
	require.NoError(t, a.Create(ctx, domain.NewConversation("shared", time.Now())))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); incrementConcurrently(t, a, "shared", 5) }()
	go func() { defer wg.Done(); incrementConcurrently(t, b, "shared", 5) }()
	wg.Wait()

	conv, err := a.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 10, conv.Counter("turns"))
	assert.False(t, mr.Exists("test:lock:shared"), "locks are released")
}
