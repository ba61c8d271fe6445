package editor

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/arcnem/agentgraph/pkg/graph"
)

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	keyReject       = regexp.MustCompile(`[^a-z0-9._:-]`)
	trimUnderscores = regexp.MustCompile(`^_+|_+$`)
)

// buildUniqueNodeKey derives a canvas-unique key from a requested candidate:
// lowercased, whitespace collapsed to underscores, illegal characters
// replaced, then suffixed with _2, _3, ... until free.
func buildUniqueNodeKey(candidate string, existing []string) string {
	normalized := whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(candidate)), "_")
	base := trimUnderscores.ReplaceAllString(keyReject.ReplaceAllString(normalized, "_"), "")
	if base == "" {
		base = "node"
	}
	taken := make(map[string]bool, len(existing))
	for _, key := range existing {
		taken[key] = true
	}
	if !taken[base] {
		return base
	}
	for index := 2; ; index++ {
		key := base + "_" + strconv.Itoa(index)
		if !taken[key] {
			return key
		}
	}
}

// AddNode appends a new node of the given type, keyed uniquely after the
// type, placed relative to the current camera, and selects it. The first
// node added to an entry-less draft becomes the entry node.
func (e *Editor) AddNode(nodeType string) *Node {
	nodeType = strings.ToLower(strings.TrimSpace(nodeType))
	key := buildUniqueNodeKey(nodeType, e.nodeKeys())
	node := e.hydrateNode(Node{
		LocalID: uuid.NewString(),
		Key:     key,
		Type:    nodeType,
		X:       math.Round((180 - e.viewport.OffsetX) / e.viewport.Scale),
		Y:       math.Round((140 - e.viewport.OffsetY) / e.viewport.Scale),
		Config:  map[string]any{},
	})
	e.nodes = append(e.nodes, node)
	e.selectedID = node.LocalID
	if e.entryNode == "" {
		e.entryNode = key
	}
	return e.node(node.LocalID)
}

// RemoveNode deletes a node and every edge touching it. When the entry node
// goes, an arbitrary survivor takes over, or the entry empties out.
func (e *Editor) RemoveNode(localID string) {
	target := e.node(localID)
	if target == nil {
		return
	}
	key := target.Key

	kept := e.nodes[:0]
	for _, node := range e.nodes {
		if node.LocalID != localID {
			kept = append(kept, node)
		}
	}
	e.nodes = kept

	edges := e.edges[:0]
	for _, edge := range e.edges {
		if edge.From != key && edge.To != key {
			edges = append(edges, edge)
		}
	}
	e.edges = edges

	if e.entryNode == key {
		e.entryNode = ""
		if len(e.nodes) > 0 {
			e.entryNode = e.nodes[0].Key
		}
	}
	if e.selectedID == localID {
		e.selectedID = ""
	}
}

// NodeChanges is a partial update to the selected node. Nil fields are left
// untouched.
type NodeChanges struct {
	Key       *string
	Type      *string
	InputKey  *string
	OutputKey *string
	ModelID   *string
	ToolIDs   *[]string
	Config    map[string]any
}

// UpdateSelectedNode applies changes to the selected node and cascades the
// side effects across the draft: a key change renames the node in every edge
// endpoint, every supervisor member list, and the entry node; demoting a
// worker purges it from member lists, since only workers may be members.
func (e *Editor) UpdateSelectedNode(changes NodeChanges) {
	selected := e.SelectedNode()
	if selected == nil {
		return
	}
	previousKey := selected.Key
	previousType := selected.Type

	next := *selected
	if changes.Key != nil {
		next.Key = *changes.Key
	}
	if changes.Type != nil {
		next.Type = strings.ToLower(strings.TrimSpace(*changes.Type))
	}
	if changes.InputKey != nil {
		next.InputKey = *changes.InputKey
	}
	if changes.OutputKey != nil {
		next.OutputKey = *changes.OutputKey
	}
	if changes.ModelID != nil {
		next.ModelID = *changes.ModelID
	}
	if changes.ToolIDs != nil {
		next.ToolIDs = append([]string(nil), (*changes.ToolIDs)...)
	}
	if changes.Config != nil {
		cfg := make(map[string]any, len(changes.Config))
		for k, v := range changes.Config {
			cfg[k] = v
		}
		next.Config = cfg
	}
	*selected = e.hydrateNode(next)

	renamed := changes.Key != nil && *changes.Key != previousKey
	demotedWorker := previousType == graph.NodeTypeWorker && next.Type != graph.NodeTypeWorker

	for i := range e.nodes {
		node := &e.nodes[i]
		if node.LocalID == selected.LocalID || node.Type != graph.NodeTypeSupervisor {
			continue
		}
		members := dedupeStrings(asStringSlice(node.Config["members"]))
		changed := false
		if renamed {
			for j, member := range members {
				if member == previousKey {
					members[j] = *changes.Key
					changed = true
				}
			}
		}
		if demotedWorker {
			blocked := map[string]bool{previousKey: true}
			if changes.Key != nil {
				blocked[*changes.Key] = true
			}
			kept := members[:0]
			for _, member := range members {
				if blocked[member] {
					changed = true
					continue
				}
				kept = append(kept, member)
			}
			members = kept
		}
		if changed {
			node.Config["members"] = append([]string(nil), members...)
		}
	}

	if renamed {
		for i := range e.edges {
			if e.edges[i].From == previousKey {
				e.edges[i].From = *changes.Key
			}
			if e.edges[i].To == previousKey {
				e.edges[i].To = *changes.Key
			}
		}
		if e.entryNode == previousKey {
			e.entryNode = *changes.Key
		}
	}
}

// ToggleWorkerTool flips a tool capability on a worker node.
func (e *Editor) ToggleWorkerTool(localID, toolID string) {
	node := e.node(localID)
	if node == nil || node.Type != graph.NodeTypeWorker {
		return
	}
	for i, existing := range node.ToolIDs {
		if existing == toolID {
			node.ToolIDs = append(node.ToolIDs[:i], node.ToolIDs[i+1:]...)
			*node = e.hydrateNode(*node)
			return
		}
	}
	node.ToolIDs = append(node.ToolIDs, toolID)
	*node = e.hydrateNode(*node)
}

// ToggleSupervisorMember flips a worker key in a supervisor's member list.
func (e *Editor) ToggleSupervisorMember(localID, memberKey string) {
	node := e.node(localID)
	if node == nil || node.Type != graph.NodeTypeSupervisor {
		return
	}
	members := dedupeStrings(asStringSlice(node.Config["members"]))
	for i, existing := range members {
		if existing == memberKey {
			node.Config["members"] = append(append([]string(nil), members[:i]...), members[i+1:]...)
			return
		}
	}
	node.Config["members"] = append(members, memberKey)
}

// AddEdgeToEnd wires a node to the terminal sentinel. Idempotent.
func (e *Editor) AddEdgeToEnd(fromKey string) {
	if fromKey == "" || e.hasEdge(fromKey, graph.EndNode) {
		return
	}
	e.edges = append(e.edges, edge(fromKey, graph.EndNode))
}

// RemoveEdge drops the edge with the given endpoints.
func (e *Editor) RemoveEdge(fromKey, toKey string) {
	kept := e.edges[:0]
	for _, edge := range e.edges {
		if edge.From != fromKey || edge.To != toKey {
			kept = append(kept, edge)
		}
	}
	e.edges = kept
}

func (e *Editor) hasEdge(from, to string) bool {
	for _, edge := range e.edges {
		if edge.From == from && edge.To == to {
			return true
		}
	}
	return false
}

func edge(from, to string) graph.Edge {
	return graph.Edge{From: from, To: to}
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []any:
		var out []string
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
