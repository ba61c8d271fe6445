package ports

import (
	"context"

	"github.com/arcnem/agentgraph/pkg/graph"
)

// CatalogSource supplies the read-only model and tool registries the
// validator and editor check graphs against.
type CatalogSource interface {
	Models(ctx context.Context) ([]graph.Model, error)
	Tools(ctx context.Context) ([]graph.Tool, error)
}

// LoadCatalogs snapshots both registries into a graph.Catalogs value.
func LoadCatalogs(ctx context.Context, src CatalogSource) (graph.Catalogs, error) {
	models, err := src.Models(ctx)
	if err != nil {
		return graph.Catalogs{}, err
	}
	tools, err := src.Tools(ctx)
	if err != nil {
		return graph.Catalogs{}, err
	}
	return graph.NewCatalogs(models, tools), nil
}
