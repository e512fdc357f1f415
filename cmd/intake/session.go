package main

import (
	"fmt"
	"time"

	"github.com/aretw0/intake/internal/cli"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored conversations",
	Long: `List, inspect, remove and prune the conversations of the configured store.
Values of personal fields (email, phone, address...) are masked unless --raw is given.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List conversations, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer backend.Close()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		return cli.ListSessions(cmd.Context(), inspectionStore(cmd, backend), ports.ListOptions{
			Status: domain.Status(status),
			Limit:  limit,
		}, cmd.OutOrStdout())
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the stored record of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer backend.Close()
		return cli.InspectSession(cmd.Context(), inspectionStore(cmd, backend), args[0], cmd.OutOrStdout())
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more conversations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer backend.Close()

		failed := 0
		for _, sessionID := range args {
			if err := backend.Store.Delete(cmd.Context(), sessionID); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", sessionID, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", sessionID)
		}
		if failed > 0 {
			return fmt.Errorf("%d sessions could not be removed", failed)
		}
		return nil
	},
}

var sessionPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove conversations idle for longer than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer backend.Close()

		age, _ := cmd.Flags().GetDuration("older-than")
		n, err := backend.Store.Prune(cmd.Context(), time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d sessions.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd, sessionPruneCmd)

	sessionLsCmd.Flags().String("status", "", "Only list conversations with this status")
	sessionLsCmd.Flags().Int("limit", 50, "Maximum number of conversations to list (0 for all)")
	sessionPruneCmd.Flags().Duration("older-than", 24*time.Hour, "Idle time after which a conversation is removed")
	for _, c := range []*cobra.Command{sessionLsCmd, sessionInspectCmd} {
		c.Flags().Bool("raw", false, "Show personal data unmasked")
	}
}

func openBackend(cmd *cobra.Command) (*cli.Backend, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return cli.OpenBackend(s.Store)
}

func inspectionStore(cmd *cobra.Command, backend *cli.Backend) ports.ConversationStore {
	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		return backend.Store
	}
	return backend.Inspection()
}
