package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcnem/agentgraph/pkg/graph"
	"github.com/arcnem/agentgraph/pkg/ports"
)

// CatalogSource reads the model and tool registries from the database.
type CatalogSource struct {
	db *pgxpool.Pool
}

// NewCatalogSource creates a CatalogSource on a pool.
func NewCatalogSource(db *pgxpool.Pool) *CatalogSource {
	return &CatalogSource{db: db}
}

var _ ports.CatalogSource = (*CatalogSource)(nil)

// Models lists the model registry.
func (c *CatalogSource) Models(ctx context.Context) ([]graph.Model, error) {
	rows, err := c.db.Query(ctx, `SELECT id, provider, name FROM models ORDER BY provider, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []graph.Model
	for rows.Next() {
		var m graph.Model
		if err := rows.Scan(&m.ID, &m.Provider, &m.Name); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// Tools lists the tool registry.
func (c *CatalogSource) Tools(ctx context.Context) ([]graph.Tool, error) {
	rows, err := c.db.Query(ctx,
		`SELECT id, name, description, input_fields, output_fields FROM tools ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []graph.Tool
	for rows.Next() {
		var t graph.Tool
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.InputFields, &t.OutputFields); err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}
