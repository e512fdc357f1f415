package main

import (
	"fmt"

	"github.com/aretw0/intake/internal/cli"
	"github.com/aretw0/intake/pkg/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect agent configurations",
}

var configLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the configurations of --config-dir",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		entries, err := config.NewRegistry(s.ConfigDir).List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No configurations in %s.\n", s.ConfigDir)
			return nil
		}
		for _, e := range entries {
			marker := " "
			if e.Name == s.Config {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\n", marker, e.Name, e.Path)
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a configuration with its defaults filled in",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			s.Config = args[0]
		}
		cfg, _, err := cli.LoadAgentConfig(s)
		if err != nil {
			return err
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configLsCmd)
	configCmd.AddCommand(configShowCmd)
}
