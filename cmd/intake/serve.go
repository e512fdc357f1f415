package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/intake/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the REST API, live websocket chat, server-sent turn events and Prometheus
metrics. The request contract is published at /openapi.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cli.RunServe(ctx, s)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload the active configuration when its file changes")
	serveCmd.Flags().Duration("prune-interval", 0, "Remove stale conversations at this interval (0 disables)")
	serveCmd.Flags().Duration("max-age", 0, "Idle time after which a conversation is stale (default 24h)")
	serveCmd.Flags().Float64("rate", 0, "Messages per second allowed per session (default 2)")

	_ = settings.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	_ = settings.BindPFlag("watch", serveCmd.Flags().Lookup("watch"))
	_ = settings.BindPFlag("prune.interval", serveCmd.Flags().Lookup("prune-interval"))
	_ = settings.BindPFlag("prune.max_age", serveCmd.Flags().Lookup("max-age"))
	_ = settings.BindPFlag("rate_limit.per_second", serveCmd.Flags().Lookup("rate"))
}
