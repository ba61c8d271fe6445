package graph

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	nodeKeyPattern  = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)
	stateKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)
)

// NormalizeFields validates and normalizes graph metadata. An empty or
// whitespace description is normalized to absent.
func NormalizeFields(name, description, entryNode string) (Fields, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return Fields{}, violation("", "Workflow name must be at least 2 characters.")
	}
	if len(name) > 120 {
		return Fields{}, violation("", "Workflow name must be 120 characters or fewer.")
	}

	entryNode = strings.TrimSpace(entryNode)
	if len(entryNode) < 2 {
		return Fields{}, violation("", "Entry node must be at least 2 characters.")
	}
	if len(entryNode) > 100 {
		return Fields{}, violation("", "Entry node must be 100 characters or fewer.")
	}
	if !nodeKeyPattern.MatchString(entryNode) {
		return Fields{}, violation("", "Entry node can include letters, numbers, dots, colons, dashes, and underscores only.")
	}

	description = strings.TrimSpace(description)
	if len(description) > 800 {
		return Fields{}, violation("", "Description must be 800 characters or fewer.")
	}

	return Fields{Name: name, Description: description, EntryNode: entryNode}, nil
}

// Normalize validates an untrusted candidate graph against the catalog
// snapshots and returns its normalized form, or the first violated rule.
//
// Rules run in a fixed order and stop at the first violation; later rules
// assume earlier ones hold. Supervisor routing via config members is
// deliberately invisible to the final reachability walk: only edges are
// traversed, so a graph must reach END through edges regardless of how its
// supervisors fan out.
func Normalize(in Input, cats Catalogs) (*Graph, error) {
	if len(in.Nodes) == 0 {
		return nil, violation("", "Add at least one node to the workflow canvas.")
	}

	entryNode := strings.TrimSpace(in.EntryNode)

	nodes := make([]Node, 0, len(in.Nodes))
	seenKeys := make(map[string]bool, len(in.Nodes))
	for _, raw := range in.Nodes {
		node, err := normalizeNode(raw, cats)
		if err != nil {
			return nil, err
		}
		if seenKeys[node.Key] {
			return nil, violation(node.Key, fmt.Sprintf("Duplicate node key detected: %q.", node.Key))
		}
		seenKeys[node.Key] = true
		nodes = append(nodes, node)
	}

	// Defensive re-check; normalizeNode trims keys, so two inputs may have
	// collapsed onto one key only through the loop above.
	if err := checkKeyUniqueness(nodes); err != nil {
		return nil, err
	}

	if !seenKeys[entryNode] {
		return nil, violation("", "Entry node must match one of the node keys on the canvas.")
	}

	nodeTypeByKey := make(map[string]string, len(nodes))
	for _, node := range nodes {
		nodeTypeByKey[node.Key] = node.Type
	}
	for _, node := range nodes {
		if node.Type != NodeTypeSupervisor {
			continue
		}
		cfg := node.Config.(SupervisorConfig)
		for _, member := range cfg.Members {
			memberType, exists := nodeTypeByKey[member]
			if !exists {
				return nil, violation(node.Key, fmt.Sprintf("Supervisor node %q references unknown member %q.", node.Key, member))
			}
			if memberType != NodeTypeWorker {
				return nil, violation(node.Key, fmt.Sprintf("Supervisor node %q member %q must be a worker node.", node.Key, member))
			}
		}
	}

	edges := make([]Edge, 0, len(in.Edges))
	seenEdges := make(map[string]bool, len(in.Edges))
	for _, raw := range in.Edges {
		edge := Edge{From: strings.TrimSpace(raw.From), To: strings.TrimSpace(raw.To)}
		label := edge.From + " -> " + edge.To

		if !seenKeys[edge.From] {
			return nil, violation(label, fmt.Sprintf("Edge %q references a source node that does not exist.", label))
		}
		if edge.To != EndNode && !seenKeys[edge.To] {
			return nil, violation(label, fmt.Sprintf("Edge %q references a node that does not exist.", label))
		}
		if edge.From == edge.To {
			return nil, violation(label, fmt.Sprintf("Edge %q cannot point to itself.", edge.From))
		}
		if seenEdges[label] {
			return nil, violation(label, fmt.Sprintf("Duplicate edge detected: %s.", edge.From+"->"+edge.To))
		}
		seenEdges[label] = true
		edges = append(edges, edge)
	}

	endEdge := false
	for _, edge := range edges {
		if edge.To == EndNode {
			endEdge = true
			break
		}
	}
	if !endEdge {
		return nil, violation("", "Add at least one edge that points to END.")
	}

	if !reachesEnd(entryNode, edges) {
		return nil, violation("", "Entry node must have a path to END.")
	}

	return &Graph{EntryNode: entryNode, Nodes: nodes, Edges: edges}, nil
}

func normalizeNode(raw NodeInput, cats Catalogs) (Node, error) {
	key := strings.TrimSpace(raw.Key)
	if len(key) < 2 {
		return Node{}, violation(key, "Each node key must be at least 2 characters.")
	}
	if len(key) > 120 {
		return Node{}, violation(key, "Node keys must be 120 characters or fewer.")
	}
	if !nodeKeyPattern.MatchString(key) {
		return Node{}, violation(key, fmt.Sprintf("Node key %q has invalid characters. Use letters, numbers, dots, colons, dashes, and underscores only.", key))
	}

	nodeType := strings.ToLower(strings.TrimSpace(raw.Type))
	switch nodeType {
	case NodeTypeWorker, NodeTypeSupervisor, NodeTypeTool:
	default:
		return Node{}, violation(key, fmt.Sprintf("Node %q has unsupported type %q. Use worker, supervisor, or tool.", key, raw.Type))
	}

	pos := Position{X: clampCoord(raw.X), Y: clampCoord(raw.Y)}

	inputKey, err := normalizeStateKey(raw.InputKey, fmt.Sprintf("Input key for node %q", key), key)
	if err != nil {
		return Node{}, err
	}
	outputKey, err := normalizeStateKey(raw.OutputKey, fmt.Sprintf("Output key for node %q", key), key)
	if err != nil {
		return Node{}, err
	}

	modelID := strings.TrimSpace(raw.ModelID)
	if modelID != "" {
		if _, err := uuid.Parse(modelID); err != nil {
			return Node{}, violation(key, fmt.Sprintf("Model id for node %q is invalid.", key))
		}
		if !cats.HasModel(modelID) {
			return Node{}, violation(key, fmt.Sprintf("Node %q references an unknown model.", key))
		}
	}

	toolIDs := make([]string, 0, len(raw.ToolIDs))
	seenTools := make(map[string]bool, len(raw.ToolIDs))
	for _, toolID := range raw.ToolIDs {
		toolID = strings.TrimSpace(toolID)
		if toolID == "" || seenTools[toolID] {
			continue
		}
		seenTools[toolID] = true
		toolIDs = append(toolIDs, toolID)
	}
	for _, toolID := range toolIDs {
		if _, err := uuid.Parse(toolID); err != nil {
			return Node{}, violation(key, fmt.Sprintf("Tool id %q on node %q is invalid.", toolID, key))
		}
		if !cats.HasTool(toolID) {
			return Node{}, violation(key, fmt.Sprintf("Node %q references an unknown tool.", key))
		}
	}

	bag := normalizeConfigBag(raw.Config)

	node := Node{
		ID:        strings.TrimSpace(raw.ID),
		Key:       key,
		Type:      nodeType,
		Pos:       pos,
		InputKey:  inputKey,
		OutputKey: outputKey,
		ModelID:   modelID,
		ToolIDs:   toolIDs,
	}

	switch nodeType {
	case NodeTypeWorker:
		if modelID == "" {
			return Node{}, violation(key, fmt.Sprintf("Worker node %q requires a model.", key))
		}
		cfg, err := parseWorkerConfig(bag, key)
		if err != nil {
			return Node{}, err
		}
		node.Config = cfg

	case NodeTypeSupervisor:
		if modelID == "" {
			return Node{}, violation(key, fmt.Sprintf("Supervisor node %q requires a model.", key))
		}
		if len(toolIDs) > 0 {
			return Node{}, violation(key, fmt.Sprintf("Supervisor node %q cannot have attached tools.", key))
		}
		cfg, err := parseSupervisorConfig(bag, key)
		if err != nil {
			return Node{}, err
		}
		node.Config = cfg

	case NodeTypeTool:
		if len(toolIDs) != 1 {
			return Node{}, violation(key, fmt.Sprintf("Tool node %q must have exactly one attached tool.", key))
		}
		if modelID != "" {
			return Node{}, violation(key, fmt.Sprintf("Tool node %q cannot set a model.", key))
		}
		cfg, err := parseToolConfig(bag, key)
		if err != nil {
			return Node{}, err
		}
		node.Config = cfg
	}

	return node, nil
}

func normalizeStateKey(value, label, nodeKey string) (string, error) {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return "", nil
	}
	if len(normalized) > 120 {
		return "", violation(nodeKey, label+" must be 120 characters or fewer.")
	}
	if !stateKeyPattern.MatchString(normalized) {
		return "", violation(nodeKey, label+" can include letters, numbers, dots, colons, dashes, and underscores only.")
	}
	return normalized, nil
}

func clampCoord(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 80
	}
	rounded := int(math.Round(v))
	if rounded < 0 {
		return 0
	}
	return rounded
}

func checkKeyUniqueness(nodes []Node) error {
	seen := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if seen[node.Key] {
			return violation(node.Key, fmt.Sprintf("Duplicate node key detected: %q.", node.Key))
		}
		seen[node.Key] = true
	}
	return nil
}

// reachesEnd walks the edge adjacency breadth-first from entry until END is
// found or the frontier drains.
func reachesEnd(entry string, edges []Edge) bool {
	adjacency := make(map[string][]string, len(edges))
	for _, edge := range edges {
		adjacency[edge.From] = append(adjacency[edge.From], edge.To)
	}

	visited := make(map[string]bool)
	queue := []string{entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, next := range adjacency[current] {
			if next == EndNode {
				return true
			}
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}
	return false
}
