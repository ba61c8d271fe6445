package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcnem/agentgraph/internal/presentation/mermaid"
	"github.com/arcnem/agentgraph/pkg/graph"
)

var renderCmd = &cobra.Command{
	Use:   "render <workflow.yaml>",
	Short: "Render a workflow draft as a Mermaid flowchart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		draft, cats, err := loadDraftAndCatalogs(cmd, args[0])
		if err != nil {
			return err
		}
		g, err := graph.Normalize(draft.Graph, cats)
		if err != nil {
			return fmt.Errorf("invalid: %w", err)
		}
		fmt.Print(mermaid.Render(g))
		return nil
	},
}

func init() {
	renderCmd.Flags().String("catalog", "", "Path to a catalog YAML file with models and tools")
	rootCmd.AddCommand(renderCmd)
}
