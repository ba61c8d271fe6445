package ports

import "context"

// GraphMeta is a workflow graph's metadata row.
type GraphMeta struct {
	ID          string
	OrgID       string
	Name        string
	Description string // empty means absent
	EntryNode   string
}

// NodeRow is a persisted workflow node. Config is the stored shape: the
// semantic per-type config plus the reserved uiPosition sub-key.
type NodeRow struct {
	ID        string
	GraphID   string
	Key       string
	Type      string
	InputKey  string
	OutputKey string
	ModelID   string
	Config    map[string]any
}

// NodeRef pairs a node's generated identity with its key.
type NodeRef struct {
	ID  string
	Key string
}

// NodeToolRow associates a node with a catalog tool.
type NodeToolRow struct {
	NodeID string
	ToolID string
}

// EdgeRow is a persisted directed edge. To may be the END sentinel.
type EdgeRow struct {
	GraphID string
	From    string
	To      string
}

// DeviceRow is the slice of a device record the graph service touches.
type DeviceRow struct {
	ID      string
	OrgID   string
	Name    string
	GraphID string
}

// StoredGraph is the persisted shape handed to the execution runtime and to
// the editor for its initial draft.
type StoredGraph struct {
	Meta  GraphMeta
	Nodes []NodeRow
	Tools []NodeToolRow
	Edges []EdgeRow
}

// GraphTx is the set of row operations available inside one atomic
// transaction. Deleting a node row cascades its tool associations and any
// edges naming it; that referential rule lives in the store, not here.
type GraphTx interface {
	// GetGraphMeta resolves a graph within an organization.
	// Returns ErrGraphNotFound when the id does not resolve there.
	GetGraphMeta(ctx context.Context, orgID, graphID string) (GraphMeta, error)
	InsertGraphMeta(ctx context.Context, meta GraphMeta) (string, error)
	UpdateGraphMeta(ctx context.Context, meta GraphMeta) error

	// ListNodeRefs returns the identities of the graph's current node rows.
	ListNodeRefs(ctx context.Context, graphID string) ([]NodeRef, error)
	// InsertNodes bulk-inserts rows and returns the generated identities.
	InsertNodes(ctx context.Context, rows []NodeRow) ([]NodeRef, error)
	UpdateNode(ctx context.Context, row NodeRow) error
	DeleteNodes(ctx context.Context, ids []string) error

	DeleteNodeTools(ctx context.Context, nodeIDs []string) error
	InsertNodeTools(ctx context.Context, rows []NodeToolRow) error

	DeleteEdges(ctx context.Context, graphID string) error
	InsertEdges(ctx context.Context, rows []EdgeRow) error

	// MissingModels and MissingTools report which of the given catalog ids do
	// not exist as rows. Used to re-check references inside the transaction.
	MissingModels(ctx context.Context, ids []string) ([]string, error)
	MissingTools(ctx context.Context, ids []string) ([]string, error)

	// GetDevice resolves a device within an organization.
	// Returns ErrDeviceNotFound when the id does not resolve there.
	GetDevice(ctx context.Context, orgID, deviceID string) (DeviceRow, error)
	AssignDeviceGraph(ctx context.Context, deviceID, graphID string) error
}

// GraphStore is the persistence collaborator. WithTx runs fn inside one
// atomic transaction: every row operation commits together or none do.
type GraphStore interface {
	WithTx(ctx context.Context, fn func(GraphTx) error) error

	// GetGraph loads the full persisted shape of one graph.
	GetGraph(ctx context.Context, orgID, graphID string) (StoredGraph, error)
	// ListGraphs loads the full persisted shape of every graph in the
	// organization.
	ListGraphs(ctx context.Context, orgID string) ([]StoredGraph, error)
}
