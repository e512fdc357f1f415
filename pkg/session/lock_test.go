package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waiters(m *Manager, id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.locks[id]; ok {
		return len(e.waiters)
	}
	return 0
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		sid := fmt.Sprintf("session-%d", i)
		require.NoError(t, mgr.WithLock(ctx, sid, func(context.Context) error { return nil }))
		require.NoError(t, mgr.Delete(ctx, sid))
	}

	assert.Empty(t, mgr.locks, "idle sessions must not keep lock entries")
}

func TestManager_FIFO(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	id := "fifo"

	require.NoError(t, mgr.lock(ctx, id))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = mgr.WithLock(ctx, id, func(context.Context) error {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				return nil
			})
		}(i)
		// Enqueue one at a time so arrival order is known.
		require.Eventually(t, func() bool { return waiters(mgr, id) == i+1 }, time.Second, time.Millisecond)
	}

	mgr.unlock(id)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Empty(t, mgr.locks)
}

func TestManager_CanceledWaiterLeavesQueue(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	id := "cancel"
	require.NoError(t, mgr.lock(context.Background(), id))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- mgr.WithLock(ctx, id, func(context.Context) error { return nil })
	}()
	require.Eventually(t, func() bool { return waiters(mgr, id) == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = mgr.WithLock(context.Background(), id, func(context.Context) error { return nil })
		close(done)
	}()
	require.Eventually(t, func() bool { return waiters(mgr, id) == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 1, waiters(mgr, id))

	mgr.unlock(id)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("remaining waiter never acquired the lock")
	}
	assert.Empty(t, mgr.locks)
}
