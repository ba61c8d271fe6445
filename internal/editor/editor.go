/*
Package editor holds the interactive canvas state for building a workflow
graph: the node/edge draft, the selection, the viewport, and the pointer
gesture in progress.

The editor is single-threaded by design. All state lives in one Editor value
mutated by discrete input events, and every mutation leaves the draft in a
shape the validator can judge, so callers may re-render the validation
message after any call. Catalogs are injected at construction and can be
swapped with UpdateCatalogs when the backing registries change.

The editor never touches persistence. Save produces a candidate draft and
hands it to the supplied commit function.
*/
package editor

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/arcnem/agentgraph/internal/transact"
	"github.com/arcnem/agentgraph/pkg/graph"
)

// Canvas node footprint, used by edge hit-testing in the UI layer.
const (
	NodeWidth  = 210
	NodeHeight = 100
)

// ErrSaveInFlight is returned by Save while a previous save has not finished.
var ErrSaveInFlight = errors.New("save already in flight")

// Node is a draft node on the canvas. LocalID identifies it within the
// editor session; ID is the persisted row identity, empty for new nodes.
type Node struct {
	LocalID   string
	ID        string
	Key       string
	Type      string
	X         float64
	Y         float64
	InputKey  string
	OutputKey string
	ModelID   string
	ToolIDs   []string
	Config    map[string]any

	// Derived presentation fields, refreshed on every hydration.
	ToolNames  []string
	ModelLabel string
}

// Editor is the canvas state machine.
type Editor struct {
	graphID     string // empty while creating a new graph
	name        string
	description string
	entryNode   string
	nodes       []Node
	edges       []graph.Edge

	cats       graph.Catalogs
	selectedID string
	localError string
	saving     bool

	viewport Viewport
	gesture  gesture
}

// New opens the editor on a fresh default draft: a single worker named
// "start" wired to nothing, waiting for the user to shape it.
func New(cats graph.Catalogs) *Editor {
	e := &Editor{
		cats:      cats,
		entryNode: "start",
		viewport:  homeViewport(),
	}
	start := Node{
		LocalID:   uuid.NewString(),
		Key:       "start",
		Type:      graph.NodeTypeWorker,
		X:         260,
		Y:         200,
		InputKey:  "temp_url",
		OutputKey: "result",
		Config:    map[string]any{"system_message": "", "max_iterations": 3},
	}
	e.nodes = []Node{e.hydrateNode(start)}
	e.selectedID = start.LocalID
	return e
}

// Open loads an existing graph draft into the editor. Nodes keep their
// persisted identities so a later save updates rows instead of recreating
// them.
func Open(cats graph.Catalogs, graphID string, draft transact.Draft) *Editor {
	e := &Editor{
		graphID:     graphID,
		cats:        cats,
		name:        draft.Name,
		description: draft.Description,
		entryNode:   draft.Graph.EntryNode,
		viewport:    homeViewport(),
	}
	for _, in := range draft.Graph.Nodes {
		localID := in.ID
		if localID == "" {
			localID = uuid.NewString()
		}
		cfg, _ := in.Config.(map[string]any)
		e.nodes = append(e.nodes, e.hydrateNode(Node{
			LocalID:   localID,
			ID:        in.ID,
			Key:       in.Key,
			Type:      in.Type,
			X:         in.X,
			Y:         in.Y,
			InputKey:  in.InputKey,
			OutputKey: in.OutputKey,
			ModelID:   in.ModelID,
			ToolIDs:   append([]string(nil), in.ToolIDs...),
			Config:    cfg,
		}))
	}
	e.edges = append(e.edges, draft.Graph.Edges...)
	if len(e.nodes) > 0 {
		e.selectedID = e.nodes[0].LocalID
	}
	return e
}

// UpdateCatalogs swaps the catalog snapshots and re-hydrates every node so
// stale references and derived labels are corrected immediately.
func (e *Editor) UpdateCatalogs(cats graph.Catalogs) {
	e.cats = cats
	for i := range e.nodes {
		e.nodes[i] = e.hydrateNode(e.nodes[i])
	}
}

// Accessors for the rendering layer.

func (e *Editor) Name() string        { return e.name }
func (e *Editor) Description() string { return e.description }
func (e *Editor) EntryNode() string   { return e.entryNode }
func (e *Editor) Nodes() []Node       { return e.nodes }
func (e *Editor) Edges() []graph.Edge { return e.edges }
func (e *Editor) LocalError() string  { return e.localError }
func (e *Editor) Saving() bool        { return e.saving }
func (e *Editor) SelectedID() string  { return e.selectedID }

func (e *Editor) SetName(name string)        { e.name = name }
func (e *Editor) SetDescription(desc string) { e.description = desc }
func (e *Editor) SetEntryNode(key string)    { e.entryNode = key }

// Select marks a node as the inspector target.
func (e *Editor) Select(localID string) {
	if e.node(localID) != nil {
		e.selectedID = localID
	}
}

// SelectedNode returns the inspector target, or nil.
func (e *Editor) SelectedNode() *Node {
	return e.node(e.selectedID)
}

func (e *Editor) node(localID string) *Node {
	for i := range e.nodes {
		if e.nodes[i].LocalID == localID {
			return &e.nodes[i]
		}
	}
	return nil
}

func (e *Editor) nodeKeys() []string {
	keys := make([]string, 0, len(e.nodes))
	for _, node := range e.nodes {
		keys = append(keys, node.Key)
	}
	return keys
}

// ValidationMessage re-runs the canvas validator over the current draft.
// Empty means the draft is currently valid.
func (e *Editor) ValidationMessage() string {
	return validateCanvas(e.nodes, e.entryNode, e.edges, e.cats)
}

// Draft assembles the candidate the transactor expects from the current
// canvas state.
func (e *Editor) Draft() transact.Draft {
	in := graph.Input{EntryNode: strings.TrimSpace(e.entryNode)}
	for _, node := range e.nodes {
		cfg := make(map[string]any, len(node.Config))
		for k, v := range node.Config {
			cfg[k] = v
		}
		in.Nodes = append(in.Nodes, graph.NodeInput{
			ID:        node.ID,
			Key:       strings.TrimSpace(node.Key),
			Type:      node.Type,
			X:         node.X,
			Y:         node.Y,
			InputKey:  strings.TrimSpace(node.InputKey),
			OutputKey: strings.TrimSpace(node.OutputKey),
			ModelID:   node.ModelID,
			ToolIDs:   append([]string(nil), node.ToolIDs...),
			Config:    cfg,
		})
	}
	in.Edges = append(in.Edges, e.edges...)
	return transact.Draft{
		Name:        strings.TrimSpace(e.name),
		Description: strings.TrimSpace(e.description),
		Graph:       in,
	}
}

// Save validates the draft locally and hands it to commit. Re-entrant saves
// are rejected while one is in flight; local failures land in LocalError.
func (e *Editor) Save(ctx context.Context, commit func(ctx context.Context, graphID string, draft transact.Draft) error) error {
	if e.saving {
		return ErrSaveInFlight
	}
	e.localError = ""
	if len(strings.TrimSpace(e.name)) < 2 {
		e.localError = "Workflow name must be at least 2 characters."
		return errors.New(e.localError)
	}
	if msg := e.ValidationMessage(); msg != "" {
		e.localError = msg
		return errors.New(msg)
	}

	e.saving = true
	defer func() { e.saving = false }()

	if err := commit(ctx, e.graphID, e.Draft()); err != nil {
		e.localError = err.Error()
		return err
	}
	return nil
}

// Per-type config views used during hydration. Decoding failures fall back
// to type defaults rather than surfacing an error; the validator is the
// authority, hydration just makes the draft editable.
type workerConfigView struct {
	SystemMessage string `mapstructure:"system_message"`
	MaxIterations int    `mapstructure:"max_iterations"`
}

type supervisorConfigView struct {
	Members []string `mapstructure:"members"`
}

// hydrateNode repairs a draft node into an editable shape: unknown catalog
// references are dropped, type-specific config fields get defaults, and the
// derived presentation fields are recomputed.
func (e *Editor) hydrateNode(node Node) Node {
	if node.Config == nil {
		node.Config = map[string]any{}
	}
	node.ToolIDs = dedupeStrings(node.ToolIDs)

	switch node.Type {
	case graph.NodeTypeWorker, graph.NodeTypeSupervisor:
		if node.ModelID == "" && len(e.cats.Models) > 0 {
			node.ModelID = e.cats.Models[0].ID
		}
	}

	switch node.Type {
	case graph.NodeTypeWorker:
		var view workerConfigView
		if err := mapstructure.Decode(node.Config, &view); err != nil {
			view = workerConfigView{}
		}
		if view.MaxIterations < 1 {
			view.MaxIterations = 3
		}
		node.Config["system_message"] = view.SystemMessage
		node.Config["max_iterations"] = view.MaxIterations

	case graph.NodeTypeSupervisor:
		node.ToolIDs = nil
		var view supervisorConfigView
		if err := mapstructure.Decode(node.Config, &view); err != nil {
			view = supervisorConfigView{}
		}
		node.Config["members"] = dedupeStrings(view.Members)

	case graph.NodeTypeTool:
		node.ModelID = ""
		var selected string
		for _, toolID := range node.ToolIDs {
			if e.cats.HasTool(toolID) {
				selected = toolID
				break
			}
		}
		if selected == "" && len(e.cats.Tools) > 0 {
			selected = e.cats.Tools[0].ID
		}
		if selected != "" {
			node.ToolIDs = []string{selected}
		} else {
			node.ToolIDs = nil
		}
		node.Config["input_mapping"] = asRecord(node.Config["input_mapping"])
		node.Config["output_mapping"] = asRecord(node.Config["output_mapping"])
	}

	node.ToolNames = node.ToolNames[:0]
	for _, toolID := range node.ToolIDs {
		if tool, ok := e.cats.Tool(toolID); ok {
			node.ToolNames = append(node.ToolNames, tool.Name)
		}
	}
	node.ModelLabel = ""
	if node.ModelID != "" {
		if model, ok := e.cats.Model(node.ModelID); ok {
			node.ModelLabel = model.Label()
		}
	}
	return node
}

func asRecord(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
