// Package postgres implements ports.GraphStore on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcnem/agentgraph/pkg/ports"
)

// Store is a PostgreSQL implementation of the graph store.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Store on an existing pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Connect opens a pool for the given DSN and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ports.GraphTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetGraph loads the full persisted shape of one graph.
func (s *Store) GetGraph(ctx context.Context, orgID, graphID string) (ports.StoredGraph, error) {
	var sg ports.StoredGraph
	err := s.db.QueryRow(ctx,
		`SELECT id, org_id, name, COALESCE(description, ''), entry_node
		   FROM agent_graphs WHERE id = $1 AND org_id = $2`,
		graphID, orgID,
	).Scan(&sg.Meta.ID, &sg.Meta.OrgID, &sg.Meta.Name, &sg.Meta.Description, &sg.Meta.EntryNode)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.StoredGraph{}, ports.ErrGraphNotFound
	}
	if err != nil {
		return ports.StoredGraph{}, err
	}
	if err := s.loadShape(ctx, &sg); err != nil {
		return ports.StoredGraph{}, err
	}
	return sg, nil
}

// ListGraphs loads every graph in the organization, sorted by name.
func (s *Store) ListGraphs(ctx context.Context, orgID string) ([]ports.StoredGraph, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, org_id, name, COALESCE(description, ''), entry_node
		   FROM agent_graphs WHERE org_id = $1 ORDER BY name, id`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.StoredGraph
	for rows.Next() {
		var sg ports.StoredGraph
		if err := rows.Scan(&sg.Meta.ID, &sg.Meta.OrgID, &sg.Meta.Name, &sg.Meta.Description, &sg.Meta.EntryNode); err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadShape(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadShape(ctx context.Context, sg *ports.StoredGraph) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, graph_id, node_key, node_type, COALESCE(input_key, ''),
		        COALESCE(output_key, ''), COALESCE(model_id::text, ''), config
		   FROM agent_graph_nodes WHERE graph_id = $1 ORDER BY node_key`,
		sg.Meta.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var row ports.NodeRow
		if err := rows.Scan(&row.ID, &row.GraphID, &row.Key, &row.Type, &row.InputKey, &row.OutputKey, &row.ModelID, &row.Config); err != nil {
			return err
		}
		sg.Nodes = append(sg.Nodes, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	toolRows, err := s.db.Query(ctx,
		`SELECT nt.node_id, nt.tool_id
		   FROM agent_graph_node_tools nt
		   JOIN agent_graph_nodes n ON n.id = nt.node_id
		  WHERE n.graph_id = $1 ORDER BY nt.node_id, nt.tool_id`,
		sg.Meta.ID,
	)
	if err != nil {
		return err
	}
	defer toolRows.Close()
	for toolRows.Next() {
		var row ports.NodeToolRow
		if err := toolRows.Scan(&row.NodeID, &row.ToolID); err != nil {
			return err
		}
		sg.Tools = append(sg.Tools, row)
	}
	if err := toolRows.Err(); err != nil {
		return err
	}

	edgeRows, err := s.db.Query(ctx,
		`SELECT graph_id, from_node, to_node
		   FROM agent_graph_edges WHERE graph_id = $1 ORDER BY from_node, to_node`,
		sg.Meta.ID,
	)
	if err != nil {
		return err
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var row ports.EdgeRow
		if err := edgeRows.Scan(&row.GraphID, &row.From, &row.To); err != nil {
			return err
		}
		sg.Edges = append(sg.Edges, row)
	}
	return edgeRows.Err()
}

// pgTx implements ports.GraphTx on one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

var _ ports.GraphTx = (*pgTx)(nil)

func (t *pgTx) GetGraphMeta(ctx context.Context, orgID, graphID string) (ports.GraphMeta, error) {
	var meta ports.GraphMeta
	err := t.tx.QueryRow(ctx,
		`SELECT id, org_id, name, COALESCE(description, ''), entry_node
		   FROM agent_graphs WHERE id = $1 AND org_id = $2`,
		graphID, orgID,
	).Scan(&meta.ID, &meta.OrgID, &meta.Name, &meta.Description, &meta.EntryNode)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.GraphMeta{}, ports.ErrGraphNotFound
	}
	return meta, err
}

func (t *pgTx) InsertGraphMeta(ctx context.Context, meta ports.GraphMeta) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx,
		`INSERT INTO agent_graphs (org_id, name, description, entry_node)
		 VALUES ($1, $2, NULLIF($3, ''), $4) RETURNING id`,
		meta.OrgID, meta.Name, meta.Description, meta.EntryNode,
	).Scan(&id)
	return id, err
}

func (t *pgTx) UpdateGraphMeta(ctx context.Context, meta ports.GraphMeta) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE agent_graphs
		    SET name = $2, description = NULLIF($3, ''), entry_node = $4, updated_at = now()
		  WHERE id = $1`,
		meta.ID, meta.Name, meta.Description, meta.EntryNode,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrGraphNotFound
	}
	return nil
}

func (t *pgTx) ListNodeRefs(ctx context.Context, graphID string) ([]ports.NodeRef, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, node_key FROM agent_graph_nodes WHERE graph_id = $1 ORDER BY node_key`,
		graphID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []ports.NodeRef
	for rows.Next() {
		var ref ports.NodeRef
		if err := rows.Scan(&ref.ID, &ref.Key); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (t *pgTx) InsertNodes(ctx context.Context, nodeRows []ports.NodeRow) ([]ports.NodeRef, error) {
	refs := make([]ports.NodeRef, 0, len(nodeRows))
	for _, row := range nodeRows {
		var id string
		err := t.tx.QueryRow(ctx,
			`INSERT INTO agent_graph_nodes
			        (graph_id, node_key, node_type, input_key, output_key, model_id, config)
			 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, '')::uuid, $7)
			 RETURNING id`,
			row.GraphID, row.Key, row.Type, row.InputKey, row.OutputKey, row.ModelID, row.Config,
		).Scan(&id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ports.NodeRef{ID: id, Key: row.Key})
	}
	return refs, nil
}

func (t *pgTx) UpdateNode(ctx context.Context, row ports.NodeRow) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE agent_graph_nodes
		    SET node_key = $3, node_type = $4, input_key = NULLIF($5, ''),
		        output_key = NULLIF($6, ''), model_id = NULLIF($7, '')::uuid, config = $8
		  WHERE id = $1 AND graph_id = $2`,
		row.ID, row.GraphID, row.Key, row.Type, row.InputKey, row.OutputKey, row.ModelID, row.Config,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrGraphNotFound
	}
	return nil
}

func (t *pgTx) DeleteNodes(ctx context.Context, ids []string) error {
	// Tool association rows cascade via their foreign key.
	_, err := t.tx.Exec(ctx, `DELETE FROM agent_graph_nodes WHERE id = ANY($1)`, ids)
	return err
}

func (t *pgTx) DeleteNodeTools(ctx context.Context, nodeIDs []string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM agent_graph_node_tools WHERE node_id = ANY($1)`, nodeIDs)
	return err
}

func (t *pgTx) InsertNodeTools(ctx context.Context, toolRows []ports.NodeToolRow) error {
	for _, row := range toolRows {
		if _, err := t.tx.Exec(ctx,
			`INSERT INTO agent_graph_node_tools (node_id, tool_id) VALUES ($1, $2)`,
			row.NodeID, row.ToolID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) DeleteEdges(ctx context.Context, graphID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM agent_graph_edges WHERE graph_id = $1`, graphID)
	return err
}

func (t *pgTx) InsertEdges(ctx context.Context, edgeRows []ports.EdgeRow) error {
	for _, row := range edgeRows {
		if _, err := t.tx.Exec(ctx,
			`INSERT INTO agent_graph_edges (graph_id, from_node, to_node) VALUES ($1, $2, $3)`,
			row.GraphID, row.From, row.To,
		); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) MissingModels(ctx context.Context, ids []string) ([]string, error) {
	return t.missing(ctx, `SELECT x.id FROM unnest($1::uuid[]) AS x(id)
		WHERE NOT EXISTS (SELECT 1 FROM models m WHERE m.id = x.id)`, ids)
}

func (t *pgTx) MissingTools(ctx context.Context, ids []string) ([]string, error) {
	return t.missing(ctx, `SELECT x.id FROM unnest($1::uuid[]) AS x(id)
		WHERE NOT EXISTS (SELECT 1 FROM tools t WHERE t.id = x.id)`, ids)
}

func (t *pgTx) missing(ctx context.Context, query string, ids []string) ([]string, error) {
	rows, err := t.tx.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		missing = append(missing, id)
	}
	return missing, rows.Err()
}

func (t *pgTx) GetDevice(ctx context.Context, orgID, deviceID string) (ports.DeviceRow, error) {
	var row ports.DeviceRow
	err := t.tx.QueryRow(ctx,
		`SELECT id, org_id, name, COALESCE(agent_graph_id::text, '')
		   FROM devices WHERE id = $1 AND org_id = $2`,
		deviceID, orgID,
	).Scan(&row.ID, &row.OrgID, &row.Name, &row.GraphID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.DeviceRow{}, ports.ErrDeviceNotFound
	}
	return row, err
}

func (t *pgTx) AssignDeviceGraph(ctx context.Context, deviceID, graphID string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE devices SET agent_graph_id = $2, updated_at = now() WHERE id = $1`,
		deviceID, graphID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrDeviceNotFound
	}
	return nil
}
