package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/intake/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the turn state machine as a Mermaid diagram",
	Long: `Outputs a Mermaid diagram (graph TD) of the nodes every turn goes through.
Pass the "path" of a turn response to --path to highlight the route it took.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetStringSlice("path")
		var nodes []string
		for _, n := range path {
			if n = strings.TrimSpace(n); n != "" {
				nodes = append(nodes, n)
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(graph.OverlayFromPath(nodes)))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringSlice("path", nil, "Comma-separated nodes visited by a turn")
}
