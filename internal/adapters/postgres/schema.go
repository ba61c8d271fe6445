package postgres

import "context"

// Schema is the graph service's DDL, applied idempotently at startup by the
// serve command. Node rows cascade from their graph, tool associations from
// their node.
const Schema = `
CREATE TABLE IF NOT EXISTS models (
	id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	provider   text NOT NULL,
	name       text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tools (
	id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	name          text NOT NULL,
	description   text NOT NULL DEFAULT '',
	input_fields  jsonb NOT NULL DEFAULT '[]',
	output_fields jsonb NOT NULL DEFAULT '[]',
	created_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agent_graphs (
	id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	org_id      text NOT NULL,
	name        text NOT NULL,
	description text,
	entry_node  text NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS agent_graphs_org_idx ON agent_graphs (org_id);

CREATE TABLE IF NOT EXISTS agent_graph_nodes (
	id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	graph_id   uuid NOT NULL REFERENCES agent_graphs (id) ON DELETE CASCADE,
	node_key   text NOT NULL,
	node_type  text NOT NULL CHECK (node_type IN ('worker', 'supervisor', 'tool')),
	input_key  text,
	output_key text,
	model_id   uuid REFERENCES models (id),
	config     jsonb NOT NULL DEFAULT '{}',
	UNIQUE (graph_id, node_key)
);

CREATE TABLE IF NOT EXISTS agent_graph_node_tools (
	node_id uuid NOT NULL REFERENCES agent_graph_nodes (id) ON DELETE CASCADE,
	tool_id uuid NOT NULL REFERENCES tools (id),
	PRIMARY KEY (node_id, tool_id)
);

CREATE TABLE IF NOT EXISTS agent_graph_edges (
	graph_id  uuid NOT NULL REFERENCES agent_graphs (id) ON DELETE CASCADE,
	from_node text NOT NULL CHECK (from_node <> 'END'),
	to_node   text NOT NULL CHECK (from_node <> to_node),
	PRIMARY KEY (graph_id, from_node, to_node)
);

CREATE TABLE IF NOT EXISTS devices (
	id             text PRIMARY KEY,
	org_id         text NOT NULL,
	name           text NOT NULL,
	agent_graph_id uuid REFERENCES agent_graphs (id) ON DELETE SET NULL,
	created_at     timestamptz NOT NULL DEFAULT now(),
	updated_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS devices_org_idx ON devices (org_id);
`

// EnsureSchema applies the DDL.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}
