/*
Package transact implements the write side of the workflow graph service.

Every mutation follows the same shape: validate the untrusted draft against a
fresh catalog snapshot, then apply the resulting normalized graph to the store
inside one transaction. Validation failures surface as *graph.ValidationError
so callers can map them to a client fault; everything else is an internal
fault.
*/
package transact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arcnem/agentgraph/internal/logging"
	"github.com/arcnem/agentgraph/pkg/graph"
	"github.com/arcnem/agentgraph/pkg/ports"
)

// Draft is an untrusted graph submission, metadata included.
type Draft struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Graph       graph.Input `json:"graph"`
}

// Transactor applies validated graph mutations atomically.
type Transactor struct {
	store      ports.GraphStore
	catalogs   ports.CatalogSource
	dispatcher ports.Dispatcher
	logger     *slog.Logger
}

// New wires a Transactor. A nil dispatcher discards events; a nil logger
// discards logs.
func New(store ports.GraphStore, catalogs ports.CatalogSource, dispatcher ports.Dispatcher, logger *slog.Logger) *Transactor {
	if dispatcher == nil {
		dispatcher = ports.NopDispatcher{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transactor{store: store, catalogs: catalogs, dispatcher: dispatcher, logger: logger}
}

// CreateGraph validates the draft and persists it as a new graph, returning
// the generated id.
func (t *Transactor) CreateGraph(ctx context.Context, orgID string, draft Draft) (string, error) {
	fields, g, err := t.normalize(ctx, draft)
	if err != nil {
		return "", err
	}

	var graphID string
	err = t.store.WithTx(ctx, func(tx ports.GraphTx) error {
		if err := assertReferences(ctx, tx, g); err != nil {
			return err
		}

		graphID, err = tx.InsertGraphMeta(ctx, ports.GraphMeta{
			OrgID:       orgID,
			Name:        fields.Name,
			Description: fields.Description,
			EntryNode:   fields.EntryNode,
		})
		if err != nil {
			return err
		}

		refs, err := tx.InsertNodes(ctx, nodeRows(graphID, g.Nodes))
		if err != nil {
			return err
		}
		if err := tx.InsertNodeTools(ctx, toolRows(g.Nodes, refsByKey(refs))); err != nil {
			return err
		}
		return tx.InsertEdges(ctx, edgeRows(graphID, g.Edges))
	})
	if err != nil {
		return "", err
	}

	t.logger.Info("graph created", "org_id", orgID, "graph_id", graphID, "nodes", len(g.Nodes))
	t.dispatch(ctx, ports.Event{Type: ports.EventGraphCreated, OrgID: orgID, GraphID: graphID})
	return graphID, nil
}

// ReplaceGraph validates the draft and swaps the stored graph for it in one
// transaction. Node rows whose ids survive in the draft are updated in place
// so tool associations and external references stay stable; removed rows are
// deleted and id-less draft nodes become inserts. Edges and tool associations
// are replaced wholesale. Concurrent replaces are last-write-wins.
func (t *Transactor) ReplaceGraph(ctx context.Context, orgID, graphID string, draft Draft) error {
	fields, g, err := t.normalize(ctx, draft)
	if err != nil {
		return err
	}

	err = t.store.WithTx(ctx, func(tx ports.GraphTx) error {
		meta, err := tx.GetGraphMeta(ctx, orgID, graphID)
		if err != nil {
			return err
		}
		if err := assertReferences(ctx, tx, g); err != nil {
			return err
		}

		existing, err := tx.ListNodeRefs(ctx, graphID)
		if err != nil {
			return err
		}
		existingIDs := make(map[string]bool, len(existing))
		for _, ref := range existing {
			existingIDs[ref.ID] = true
		}

		keptIDs := make(map[string]bool, len(g.Nodes))
		var inserts []graph.Node
		for _, node := range g.Nodes {
			if node.ID == "" {
				inserts = append(inserts, node)
				continue
			}
			if !existingIDs[node.ID] {
				return &graph.ValidationError{Entity: node.Key, Msg: "One of the nodes does not belong to this workflow."}
			}
			keptIDs[node.ID] = true
		}

		var removed []string
		for _, ref := range existing {
			if !keptIDs[ref.ID] {
				removed = append(removed, ref.ID)
			}
		}
		if len(removed) > 0 {
			if err := tx.DeleteNodes(ctx, removed); err != nil {
				return err
			}
		}

		for _, node := range g.Nodes {
			if node.ID == "" {
				continue
			}
			if err := tx.UpdateNode(ctx, nodeRow(graphID, node)); err != nil {
				return err
			}
		}
		if len(inserts) > 0 {
			if _, err := tx.InsertNodes(ctx, nodeRows(graphID, inserts)); err != nil {
				return err
			}
		}

		// Re-list after the delete/update/insert churn so tool associations
		// bind to the rows that actually exist now.
		refs, err := tx.ListNodeRefs(ctx, graphID)
		if err != nil {
			return err
		}
		nodeIDs := make([]string, 0, len(refs))
		for _, ref := range refs {
			nodeIDs = append(nodeIDs, ref.ID)
		}
		if err := tx.DeleteNodeTools(ctx, nodeIDs); err != nil {
			return err
		}
		if err := tx.InsertNodeTools(ctx, toolRows(g.Nodes, refsByKey(refs))); err != nil {
			return err
		}

		if err := tx.DeleteEdges(ctx, graphID); err != nil {
			return err
		}
		if err := tx.InsertEdges(ctx, edgeRows(graphID, g.Edges)); err != nil {
			return err
		}

		meta.Name = fields.Name
		meta.Description = fields.Description
		meta.EntryNode = fields.EntryNode
		return tx.UpdateGraphMeta(ctx, meta)
	})
	if err != nil {
		return err
	}

	t.logger.Info("graph replaced", "org_id", orgID, "graph_id", graphID, "nodes", len(g.Nodes))
	t.dispatch(ctx, ports.Event{Type: ports.EventGraphReplaced, OrgID: orgID, GraphID: graphID})
	return nil
}

// AssignDeviceGraph points a device at a graph. Both must belong to the
// organization.
func (t *Transactor) AssignDeviceGraph(ctx context.Context, orgID, deviceID, graphID string) error {
	err := t.store.WithTx(ctx, func(tx ports.GraphTx) error {
		if _, err := tx.GetDevice(ctx, orgID, deviceID); err != nil {
			return err
		}
		if _, err := tx.GetGraphMeta(ctx, orgID, graphID); err != nil {
			return err
		}
		return tx.AssignDeviceGraph(ctx, deviceID, graphID)
	})
	if err != nil {
		return err
	}

	t.logger.Info("device graph assigned", "org_id", orgID, "device_id", deviceID, "graph_id", graphID)
	t.dispatch(ctx, ports.Event{Type: ports.EventDeviceAssigned, OrgID: orgID, GraphID: graphID, DeviceID: deviceID})
	return nil
}

// normalize snapshots the catalogs and validates the draft against them.
// Every mutation takes a fresh snapshot; a catalog entry removed since the
// client last looked fails validation here rather than deep in the store.
func (t *Transactor) normalize(ctx context.Context, draft Draft) (graph.Fields, *graph.Graph, error) {
	fields, err := graph.NormalizeFields(draft.Name, draft.Description, draft.Graph.EntryNode)
	if err != nil {
		return graph.Fields{}, nil, err
	}
	cats, err := ports.LoadCatalogs(ctx, t.catalogs)
	if err != nil {
		return graph.Fields{}, nil, fmt.Errorf("loading catalogs: %w", err)
	}
	g, err := graph.Normalize(draft.Graph, cats)
	if err != nil {
		return graph.Fields{}, nil, err
	}
	return fields, g, nil
}

func (t *Transactor) dispatch(ctx context.Context, evt ports.Event) {
	if err := t.dispatcher.Dispatch(ctx, evt); err != nil {
		t.logger.Warn("event dispatch failed", "type", evt.Type, "error", err)
	}
}

// assertReferences re-checks model and tool references against live rows
// inside the transaction. The catalog snapshot used for validation may lag
// behind a concurrent catalog delete; the row check is the authority.
func assertReferences(ctx context.Context, tx ports.GraphTx, g *graph.Graph) error {
	var modelIDs, toolIDs []string
	seenModels := make(map[string]bool)
	seenTools := make(map[string]bool)
	for _, node := range g.Nodes {
		if node.ModelID != "" && !seenModels[node.ModelID] {
			seenModels[node.ModelID] = true
			modelIDs = append(modelIDs, node.ModelID)
		}
		for _, toolID := range node.ToolIDs {
			if !seenTools[toolID] {
				seenTools[toolID] = true
				toolIDs = append(toolIDs, toolID)
			}
		}
	}

	if len(modelIDs) > 0 {
		missing, err := tx.MissingModels(ctx, modelIDs)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return &graph.ValidationError{Msg: "Missing model references: " + strings.Join(missing, ", ")}
		}
	}
	if len(toolIDs) > 0 {
		missing, err := tx.MissingTools(ctx, toolIDs)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return &graph.ValidationError{Msg: "Missing tool references: " + strings.Join(missing, ", ")}
		}
	}
	return nil
}

func nodeRow(graphID string, node graph.Node) ports.NodeRow {
	return ports.NodeRow{
		ID:        node.ID,
		GraphID:   graphID,
		Key:       node.Key,
		Type:      node.Type,
		InputKey:  node.InputKey,
		OutputKey: node.OutputKey,
		ModelID:   node.ModelID,
		Config:    graph.StoredConfig(node.Config, node.Pos),
	}
}

func nodeRows(graphID string, nodes []graph.Node) []ports.NodeRow {
	rows := make([]ports.NodeRow, 0, len(nodes))
	for _, node := range nodes {
		row := nodeRow(graphID, node)
		row.ID = ""
		rows = append(rows, row)
	}
	return rows
}

func refsByKey(refs []ports.NodeRef) map[string]string {
	byKey := make(map[string]string, len(refs))
	for _, ref := range refs {
		byKey[ref.Key] = ref.ID
	}
	return byKey
}

func toolRows(nodes []graph.Node, idByKey map[string]string) []ports.NodeToolRow {
	var rows []ports.NodeToolRow
	for _, node := range nodes {
		for _, toolID := range node.ToolIDs {
			rows = append(rows, ports.NodeToolRow{NodeID: idByKey[node.Key], ToolID: toolID})
		}
	}
	return rows
}

func edgeRows(graphID string, edges []graph.Edge) []ports.EdgeRow {
	rows := make([]ports.EdgeRow, 0, len(edges))
	for _, edge := range edges {
		rows = append(rows, ports.EdgeRow{GraphID: graphID, From: edge.From, To: edge.To})
	}
	return rows
}

// DraftInput rebuilds the candidate form of a stored graph, the shape the
// editor opens with. Node positions come from the reserved config sub-key,
// falling back to a grid slot when a row predates position tracking.
func DraftInput(sg ports.StoredGraph) graph.Input {
	toolsByNode := make(map[string][]string)
	for _, row := range sg.Tools {
		toolsByNode[row.NodeID] = append(toolsByNode[row.NodeID], row.ToolID)
	}

	in := graph.Input{EntryNode: sg.Meta.EntryNode}
	for i, row := range sg.Nodes {
		pos := graph.ParsePosition(row.Config, i)
		in.Nodes = append(in.Nodes, graph.NodeInput{
			ID:        row.ID,
			Key:       row.Key,
			Type:      row.Type,
			X:         float64(pos.X),
			Y:         float64(pos.Y),
			InputKey:  row.InputKey,
			OutputKey: row.OutputKey,
			ModelID:   row.ModelID,
			ToolIDs:   toolsByNode[row.ID],
			Config:    row.Config,
		})
	}
	for _, row := range sg.Edges {
		in.Edges = append(in.Edges, graph.Edge{From: row.From, To: row.To})
	}
	return in
}
