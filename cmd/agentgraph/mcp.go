package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcnem/agentgraph"
	mcpadapter "github.com/arcnem/agentgraph/internal/adapters/mcp"
	"github.com/arcnem/agentgraph/internal/adapters/postgres"
	"github.com/arcnem/agentgraph/internal/config"
	"github.com/arcnem/agentgraph/pkg/graph"
	"github.com/arcnem/agentgraph/pkg/ports"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Mcp serves graph validation and rendering tools to MCP clients over
stdin/stdout. Catalogs come from Postgres when postgres.dsn is configured,
or from a --catalog YAML file for offline use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		catalogs, err := mcpCatalogSource(cmd)
		if err != nil {
			return err
		}
		return mcpadapter.NewServer(catalogs, agentgraph.Version).ServeStdio()
	},
}

func init() {
	mcpCmd.Flags().String("catalog", "", "Path to a catalog YAML file with models and tools")
	rootCmd.AddCommand(mcpCmd)
}

func mcpCatalogSource(cmd *cobra.Command) (ports.CatalogSource, error) {
	if catalogPath, _ := cmd.Flags().GetString("catalog"); catalogPath != "" {
		cats, err := loadCatalogFile(catalogPath)
		if err != nil {
			return nil, err
		}
		return staticCatalogs{cats}, nil
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("either --catalog or postgres.dsn is required")
	}
	pool, err := postgres.Connect(cmd.Context(), cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return postgres.NewCatalogSource(pool), nil
}

// staticCatalogs serves a fixed catalog snapshot loaded from a file.
type staticCatalogs struct {
	cats graph.Catalogs
}

func (s staticCatalogs) Models(ctx context.Context) ([]graph.Model, error) { return s.cats.Models, nil }

func (s staticCatalogs) Tools(ctx context.Context) ([]graph.Tool, error) { return s.cats.Tools, nil }
