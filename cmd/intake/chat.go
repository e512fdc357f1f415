package main

import (
	"github.com/aretw0/intake/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run a conversation in the terminal",
	Long: `Starts a conversation with the active configuration. With --session the conversation
is stored under that id and resumed on the next run (use a file, redis or sql store).
Type /help for the chat commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		jsonMode, _ := cmd.Flags().GetBool("json")
		debug, _ := cmd.Flags().GetBool("debug")

		return cli.RunChat(cmd.Context(), s, cli.ChatOptions{
			SessionID: sessionID,
			JSON:      jsonMode,
			Debug:     debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "Session id to create or resume")
	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().Bool("debug", false, "Log engine activity to stderr")
}
