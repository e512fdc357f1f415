package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/intake/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check agent configurations",
	Long: `Loads each configuration and reports every problem found. Without arguments every
configuration in --config-dir is checked. Patterns that do not compile are reported as
warnings: such fields still validate, with reduced confidence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		paths := args
		if len(paths) == 0 {
			entries, err := config.NewRegistry(s.ConfigDir).List()
			if err != nil {
				return err
			}
			for _, e := range entries {
				paths = append(paths, e.Path)
			}
		}
		if len(paths) == 0 {
			return fmt.Errorf("no configurations found in %s", s.ConfigDir)
		}
		return validatePaths(cmd.OutOrStdout(), paths)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validatePaths(w io.Writer, paths []string) error {
	failed := 0
	for _, path := range paths {
		cfg, err := config.Load(path)
		if err != nil {
			failed++
			fmt.Fprintf(w, "✗ %s\n", path)
			var ce *config.Error
			if errors.As(err, &ce) {
				for _, p := range ce.Problems {
					fmt.Fprintf(w, "    - %v\n", p)
				}
			} else {
				fmt.Fprintf(w, "    - %v\n", err)
			}
			continue
		}
		fmt.Fprintf(w, "✓ %s (%d fields, %d policies)\n", path, len(cfg.Fields), len(cfg.Policies))
		for _, warning := range cfg.Warnings() {
			fmt.Fprintf(w, "    ! %s\n", warning)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d configurations are invalid", failed, len(paths))
	}
	return nil
}
