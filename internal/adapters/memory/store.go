// Package memory provides an in-memory ports.GraphStore used by tests and
// the offline CLI. Transactions are copy-on-write: a failed WithTx leaves
// the store untouched.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/arcnem/agentgraph/pkg/ports"
	"github.com/google/uuid"
)

type state struct {
	graphs    map[string]ports.GraphMeta
	nodes     map[string]ports.NodeRow
	nodeTools []ports.NodeToolRow
	edges     []ports.EdgeRow
	models    map[string]bool
	tools     map[string]bool
	devices   map[string]ports.DeviceRow
}

func newState() *state {
	return &state{
		graphs:  make(map[string]ports.GraphMeta),
		nodes:   make(map[string]ports.NodeRow),
		models:  make(map[string]bool),
		tools:   make(map[string]bool),
		devices: make(map[string]ports.DeviceRow),
	}
}

func (s *state) clone() *state {
	next := newState()
	for k, v := range s.graphs {
		next.graphs[k] = v
	}
	for k, v := range s.nodes {
		v.Config = cloneConfig(v.Config)
		next.nodes[k] = v
	}
	next.nodeTools = append([]ports.NodeToolRow(nil), s.nodeTools...)
	next.edges = append([]ports.EdgeRow(nil), s.edges...)
	for k := range s.models {
		next.models[k] = true
	}
	for k := range s.tools {
		next.tools[k] = true
	}
	for k, v := range s.devices {
		next.devices[k] = v
	}
	return next
}

func cloneConfig(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out
}

// Store implements ports.GraphStore in memory.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New creates an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// SeedModel registers a model row so reference checks pass.
func (s *Store) SeedModel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.models[id] = true
}

// SeedTool registers a tool row so reference checks pass.
func (s *Store) SeedTool(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.tools[id] = true
}

// SeedDevice registers a device row.
func (s *Store) SeedDevice(row ports.DeviceRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.devices[row.ID] = row
}

// WithTx runs fn against a snapshot and commits it only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(ports.GraphTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// GetGraph loads the persisted shape of one graph.
func (s *Store) GetGraph(ctx context.Context, orgID, graphID string) (ports.StoredGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.state.graphs[graphID]
	if !ok || meta.OrgID != orgID {
		return ports.StoredGraph{}, ports.ErrGraphNotFound
	}
	return s.state.storedGraph(meta), nil
}

// ListGraphs loads every graph in the organization, sorted by name.
func (s *Store) ListGraphs(ctx context.Context, orgID string) ([]ports.StoredGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ports.StoredGraph
	for _, meta := range s.state.graphs {
		if meta.OrgID == orgID {
			out = append(out, s.state.storedGraph(meta))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Meta.Name < out[j].Meta.Name })
	return out, nil
}

func (st *state) storedGraph(meta ports.GraphMeta) ports.StoredGraph {
	sg := ports.StoredGraph{Meta: meta}
	nodeIDs := make(map[string]bool)
	for _, row := range st.nodes {
		if row.GraphID == meta.ID {
			row.Config = cloneConfig(row.Config)
			sg.Nodes = append(sg.Nodes, row)
			nodeIDs[row.ID] = true
		}
	}
	sort.Slice(sg.Nodes, func(i, j int) bool { return sg.Nodes[i].Key < sg.Nodes[j].Key })
	for _, row := range st.nodeTools {
		if nodeIDs[row.NodeID] {
			sg.Tools = append(sg.Tools, row)
		}
	}
	for _, row := range st.edges {
		if row.GraphID == meta.ID {
			sg.Edges = append(sg.Edges, row)
		}
	}
	return sg
}

// memTx mutates a private snapshot of the store state.
type memTx struct {
	state *state
}

var _ ports.GraphTx = (*memTx)(nil)

func (tx *memTx) GetGraphMeta(ctx context.Context, orgID, graphID string) (ports.GraphMeta, error) {
	meta, ok := tx.state.graphs[graphID]
	if !ok || meta.OrgID != orgID {
		return ports.GraphMeta{}, ports.ErrGraphNotFound
	}
	return meta, nil
}

func (tx *memTx) InsertGraphMeta(ctx context.Context, meta ports.GraphMeta) (string, error) {
	meta.ID = uuid.NewString()
	tx.state.graphs[meta.ID] = meta
	return meta.ID, nil
}

func (tx *memTx) UpdateGraphMeta(ctx context.Context, meta ports.GraphMeta) error {
	if _, ok := tx.state.graphs[meta.ID]; !ok {
		return ports.ErrGraphNotFound
	}
	tx.state.graphs[meta.ID] = meta
	return nil
}

func (tx *memTx) ListNodeRefs(ctx context.Context, graphID string) ([]ports.NodeRef, error) {
	var refs []ports.NodeRef
	for _, row := range tx.state.nodes {
		if row.GraphID == graphID {
			refs = append(refs, ports.NodeRef{ID: row.ID, Key: row.Key})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

func (tx *memTx) InsertNodes(ctx context.Context, rows []ports.NodeRow) ([]ports.NodeRef, error) {
	refs := make([]ports.NodeRef, 0, len(rows))
	for _, row := range rows {
		row.ID = uuid.NewString()
		row.Config = cloneConfig(row.Config)
		tx.state.nodes[row.ID] = row
		refs = append(refs, ports.NodeRef{ID: row.ID, Key: row.Key})
	}
	return refs, nil
}

func (tx *memTx) UpdateNode(ctx context.Context, row ports.NodeRow) error {
	existing, ok := tx.state.nodes[row.ID]
	if !ok || existing.GraphID != row.GraphID {
		return ports.ErrGraphNotFound
	}
	row.Config = cloneConfig(row.Config)
	tx.state.nodes[row.ID] = row
	return nil
}

func (tx *memTx) DeleteNodes(ctx context.Context, ids []string) error {
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
		delete(tx.state.nodes, id)
	}
	// Referential cascade: tool associations of deleted nodes go with them.
	kept := tx.state.nodeTools[:0]
	for _, row := range tx.state.nodeTools {
		if !doomed[row.NodeID] {
			kept = append(kept, row)
		}
	}
	tx.state.nodeTools = kept
	return nil
}

func (tx *memTx) DeleteNodeTools(ctx context.Context, nodeIDs []string) error {
	doomed := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		doomed[id] = true
	}
	kept := tx.state.nodeTools[:0]
	for _, row := range tx.state.nodeTools {
		if !doomed[row.NodeID] {
			kept = append(kept, row)
		}
	}
	tx.state.nodeTools = kept
	return nil
}

func (tx *memTx) InsertNodeTools(ctx context.Context, rows []ports.NodeToolRow) error {
	tx.state.nodeTools = append(tx.state.nodeTools, rows...)
	return nil
}

func (tx *memTx) DeleteEdges(ctx context.Context, graphID string) error {
	kept := tx.state.edges[:0]
	for _, row := range tx.state.edges {
		if row.GraphID != graphID {
			kept = append(kept, row)
		}
	}
	tx.state.edges = kept
	return nil
}

func (tx *memTx) InsertEdges(ctx context.Context, rows []ports.EdgeRow) error {
	tx.state.edges = append(tx.state.edges, rows...)
	return nil
}

func (tx *memTx) MissingModels(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if !tx.state.models[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (tx *memTx) MissingTools(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if !tx.state.tools[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (tx *memTx) GetDevice(ctx context.Context, orgID, deviceID string) (ports.DeviceRow, error) {
	row, ok := tx.state.devices[deviceID]
	if !ok || row.OrgID != orgID {
		return ports.DeviceRow{}, ports.ErrDeviceNotFound
	}
	return row, nil
}

func (tx *memTx) AssignDeviceGraph(ctx context.Context, deviceID, graphID string) error {
	row, ok := tx.state.devices[deviceID]
	if !ok {
		return ports.ErrDeviceNotFound
	}
	row.GraphID = graphID
	tx.state.devices[deviceID] = row
	return nil
}
