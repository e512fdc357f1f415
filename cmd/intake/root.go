package main

import (
	"fmt"
	"os"

	"github.com/aretw0/intake/internal/cli"
	"github.com/spf13/cobra"
)

var settings = cli.NewViper()

var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "Intake collects structured data through conversation",
	Long: `Intake runs a conversational agent that collects a configured set of fields,
validates them, accepts corrections and hands off to a human when a policy says so.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("settings", "", "Settings file (default ./intake.yaml when present)")
	flags.StringP("config", "c", "basic", "Agent configuration: a name in --config-dir or a YAML path")
	flags.String("config-dir", "configs", "Directory of named agent configurations")
	flags.String("store", "memory", "Conversation store: memory, file, redis or sql")
	flags.String("store-path", ".intake/sessions", "Directory of the file store")
	flags.String("dsn", "intake.db", "SQLite database of the sql store")
	flags.String("redis-addr", "localhost:6379", "Address of the redis store")
	flags.String("log-level", "info", "Log level: debug, info, warn, error or off")

	_ = settings.BindPFlag("config", flags.Lookup("config"))
	_ = settings.BindPFlag("config_dir", flags.Lookup("config-dir"))
	_ = settings.BindPFlag("store.backend", flags.Lookup("store"))
	_ = settings.BindPFlag("store.path", flags.Lookup("store-path"))
	_ = settings.BindPFlag("store.dsn", flags.Lookup("dsn"))
	_ = settings.BindPFlag("store.redis_addr", flags.Lookup("redis-addr"))
	_ = settings.BindPFlag("log_level", flags.Lookup("log-level"))
}

// loadSettings reads the settings file named by --settings and decodes everything.
func loadSettings(cmd *cobra.Command) (cli.Settings, error) {
	file, _ := cmd.Flags().GetString("settings")
	return cli.ReadSettings(settings, file)
}
