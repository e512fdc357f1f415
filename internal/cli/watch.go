package cli

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"time"
)

// WatchConfig polls path and calls reload whenever its content changes.
// A failed reload is logged and the previous configuration stays active.
func WatchConfig(ctx context.Context, path string, interval time.Duration, logger *slog.Logger, reload func() error) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	last, _ := digest(path)
	logger.Info("Watching configuration", "path", path, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sum, err := digest(path)
			if err != nil {
				logger.Warn("Configuration unreadable", "path", path, "err", err)
				continue
			}
			if sum == last {
				continue
			}
			last = sum
			if err := reload(); err != nil {
				logger.Error("Configuration reload failed", "path", path, "err", err)
				continue
			}
			logger.Info("Configuration reloaded", "path", path)
		}
	}
}

func digest(path string) ([sha256.Size]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}
