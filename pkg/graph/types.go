package graph

// NodeType constants define the behavior of a node at run time.
const (
	// NodeTypeWorker is a model-driven node that reads and writes state-bag
	// fields and may use its assigned tools.
	NodeTypeWorker = "worker"
	// NodeTypeSupervisor is a model-driven routing node whose eligible
	// targets are the worker keys listed in its config members.
	NodeTypeSupervisor = "supervisor"
	// NodeTypeTool is a deterministic node bound to exactly one catalog tool.
	NodeTypeTool = "tool"
)

// EndNode is the reserved terminal edge target. It is not a real node.
const EndNode = "END"

// Position is a node's canvas placement. It is editor-only data, persisted
// inside the config under the reserved uiPosition sub-key and ignored by the
// execution runtime.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Fields holds the normalized graph metadata.
type Fields struct {
	Name        string
	Description string // empty means absent
	EntryNode   string
}

// Node is a normalized workflow node.
type Node struct {
	// ID is the persisted row identity. Empty means the node is new.
	ID        string
	Key       string
	Type      string
	Pos       Position
	InputKey  string // state-bag field to read, empty means absent
	OutputKey string // state-bag field to write, empty means absent
	ModelID   string // required for worker/supervisor, forbidden for tool
	ToolIDs   []string
	Config    NodeConfig
}

// Edge is a directed control-flow link. To may be EndNode.
type Edge struct {
	From string `json:"fromNode" yaml:"from"`
	To   string `json:"toNode" yaml:"to"`
}

// Graph is a normalized workflow graph, safe to persist.
type Graph struct {
	EntryNode string
	Nodes     []Node
	Edges     []Edge
}

// NodeInput is an untrusted candidate node as submitted by a client.
type NodeInput struct {
	ID        string   `json:"id,omitempty" yaml:"id,omitempty"`
	Key       string   `json:"nodeKey" yaml:"key"`
	Type      string   `json:"nodeType" yaml:"type"`
	X         float64  `json:"x" yaml:"x"`
	Y         float64  `json:"y" yaml:"y"`
	InputKey  string   `json:"inputKey,omitempty" yaml:"inputKey,omitempty"`
	OutputKey string   `json:"outputKey,omitempty" yaml:"outputKey,omitempty"`
	ModelID   string   `json:"modelId,omitempty" yaml:"modelId,omitempty"`
	ToolIDs   []string `json:"toolIds,omitempty" yaml:"toolIds,omitempty"`
	// Config is the free-form per-type bag. It may arrive as a map or as a
	// serialized JSON blob.
	Config any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Input is an untrusted candidate graph.
type Input struct {
	EntryNode string      `json:"entryNode" yaml:"entryNode"`
	Nodes     []NodeInput `json:"nodes" yaml:"nodes"`
	Edges     []Edge      `json:"edges" yaml:"edges"`
}

// Input converts a normalized graph back into candidate form. Normalizing
// the result against the same catalogs yields an identical graph.
func (g *Graph) Input() Input {
	in := Input{EntryNode: g.EntryNode, Edges: append([]Edge(nil), g.Edges...)}
	for _, n := range g.Nodes {
		in.Nodes = append(in.Nodes, NodeInput{
			ID:        n.ID,
			Key:       n.Key,
			Type:      n.Type,
			X:         float64(n.Pos.X),
			Y:         float64(n.Pos.Y),
			InputKey:  n.InputKey,
			OutputKey: n.OutputKey,
			ModelID:   n.ModelID,
			ToolIDs:   append([]string(nil), n.ToolIDs...),
			Config:    n.Config.Map(),
		})
	}
	return in
}

// Node returns the node with the given key, or nil.
func (g *Graph) Node(key string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Key == key {
			return &g.Nodes[i]
		}
	}
	return nil
}
