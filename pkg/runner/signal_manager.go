package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalManager turns SIGINT/SIGTERM and an optional interrupt channel into a
// context the input phase can wait on.
type SignalManager struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSignalManager starts listening immediately. The context also ends with parent.
func NewSignalManager(parent context.Context, interrupt <-chan struct{}) *SignalManager {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(ctx)
	sm := &SignalManager{
		ctx: ctx,
		cancel: func() {
			cancel()
			stop()
		},
	}
	if interrupt != nil {
		go func() {
			select {
			case <-interrupt:
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	return sm
}

// Context is cancelled once a signal or interrupt arrives.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Stop releases the signal handler.
func (sm *SignalManager) Stop() {
	sm.cancel()
}

// CheckRace waits briefly for a cancellation that may follow an input error.
// Some terminals deliver EOF slightly before the interrupt signal.
func (sm *SignalManager) CheckRace() {
	if sm.ctx.Err() != nil {
		return
	}
	select {
	case <-sm.ctx.Done():
	case <-time.After(100 * time.Millisecond):
	}
}
