package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/intake"
	httpadapter "github.com/aretw0/intake/pkg/adapters/http"
	"github.com/aretw0/intake/pkg/config"
	"github.com/aretw0/intake/pkg/observability"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight requests get after a stop signal.
const shutdownTimeout = 5 * time.Second

// RunServe serves the REST, websocket, SSE and metrics endpoints until ctx is done.
func RunServe(ctx context.Context, s Settings) error {
	logger := s.Logger()

	backend, err := OpenBackend(s.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	collector := observability.NewCollector(nil)
	hooks := collector.Hooks().Merge(observability.LogHooks(logger))

	agent, registry, err := NewAgent(s, backend, logger, hooks)
	if err != nil {
		return err
	}

	handler, err := httpadapter.NewHandler(agent,
		httpadapter.WithRegistry(registry),
		httpadapter.WithMetrics(collector.Handler()),
		httpadapter.WithRateLimit(s.RateLimit.PerSecond, s.RateLimit.Burst),
		httpadapter.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting intake server", "address", srv.Addr, "config", agent.Config().Name, "store", s.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		logger.Info("Intake server stopped gracefully")
		return nil
	})
	if s.Prune.Interval > 0 {
		g.Go(func() error {
			PruneLoop(gctx, agent, s.Prune, logger)
			return nil
		})
	}
	if s.Watch {
		if path, ok := ConfigPath(registry); ok {
			g.Go(func() error {
				return WatchConfig(gctx, path, s.WatchInterval, logger, func() error {
					return reloadActive(agent, registry, path)
				})
			})
		}
	}
	return g.Wait()
}

// Pruner removes conversations idle for longer than maxAge.
type Pruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
}

var _ Pruner = (*intake.Agent)(nil)

// PruneLoop prunes on every interval tick until ctx is done.
func PruneLoop(ctx context.Context, p Pruner, s PruneSettings, logger *slog.Logger) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Prune(ctx, s.MaxAge)
			if err != nil {
				logger.Warn("Prune failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("Pruned stale conversations", "count", n, "max_age", s.MaxAge)
			}
		}
	}
}

// reloadActive re-reads the active configuration file and swaps it in.
// Running conversations keep the configuration they started with.
func reloadActive(agent *intake.Agent, registry *config.Registry, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := agent.Switch(cfg); err != nil {
		return err
	}
	registry.Reload()
	registry.Set(cfg)
	return nil
}
