package editor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/arcnem/agentgraph/pkg/graph"
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// validateCanvas is the editor-side graph check, run after every state
// change for live feedback. It mirrors the authoritative normalizer's rules
// in shorter wording and additionally checks catalog membership so the user
// hears about a stale model or tool pick before saving. Returns the first
// failing rule's message, or empty when the draft is valid.
func validateCanvas(nodes []Node, entryNode string, edges []graph.Edge, cats graph.Catalogs) string {
	if len(nodes) == 0 {
		return "Add at least one node to the canvas."
	}

	seenKeys := make(map[string]bool, len(nodes))
	typeByKey := make(map[string]string, len(nodes))

	for _, node := range nodes {
		key := strings.TrimSpace(node.Key)
		if len(key) < 2 {
			return "Every node key must be at least 2 characters."
		}
		if !keyPattern.MatchString(key) {
			return "Node keys can only use letters, numbers, dots, colons, dashes, and underscores."
		}
		if seenKeys[key] {
			return fmt.Sprintf("Duplicate node key: %s.", key)
		}
		seenKeys[key] = true
		typeByKey[key] = node.Type

		switch node.Type {
		case graph.NodeTypeWorker, graph.NodeTypeSupervisor, graph.NodeTypeTool:
		default:
			return fmt.Sprintf("Node %s must be worker, supervisor, or tool.", key)
		}

		for _, stateKey := range []string{node.InputKey, node.OutputKey} {
			if stateKey == "" {
				continue
			}
			if !keyPattern.MatchString(strings.TrimSpace(stateKey)) {
				return fmt.Sprintf("Node %s has an invalid state key.", key)
			}
		}

		if node.Type == graph.NodeTypeWorker || node.Type == graph.NodeTypeSupervisor {
			if node.ModelID == "" {
				return fmt.Sprintf("Node %s requires a model.", key)
			}
			if !cats.HasModel(node.ModelID) {
				return fmt.Sprintf("Node %s references an unknown model.", key)
			}
		}

		switch node.Type {
		case graph.NodeTypeWorker:
			if msg := validateWorkerNode(node, key, cats); msg != "" {
				return msg
			}
		case graph.NodeTypeSupervisor:
			if msg := validateSupervisorNode(node, key); msg != "" {
				return msg
			}
		case graph.NodeTypeTool:
			if msg := validateToolNode(node, key, cats); msg != "" {
				return msg
			}
		}
	}

	if !seenKeys[strings.TrimSpace(entryNode)] {
		return "Entry node must match one node key in the canvas."
	}

	for _, node := range nodes {
		if node.Type != graph.NodeTypeSupervisor {
			continue
		}
		for _, member := range asStringSlice(node.Config["members"]) {
			if !seenKeys[member] {
				return fmt.Sprintf("Supervisor %s references unknown member %s.", node.Key, member)
			}
			if typeByKey[member] != graph.NodeTypeWorker {
				return fmt.Sprintf("Supervisor %s member %s must be a worker.", node.Key, member)
			}
		}
	}

	seenEdges := make(map[string]bool, len(edges))
	endEdge := false
	for _, edge := range edges {
		if !seenKeys[edge.From] {
			return fmt.Sprintf("Edge %s -> %s references a missing source node.", edge.From, edge.To)
		}
		if edge.To != graph.EndNode && !seenKeys[edge.To] {
			return fmt.Sprintf("Edge %s -> %s references a missing node.", edge.From, edge.To)
		}
		if edge.From == edge.To {
			return fmt.Sprintf("Edge %s cannot point to itself.", edge.From)
		}
		label := edge.From + "->" + edge.To
		if seenEdges[label] {
			return fmt.Sprintf("Duplicate edge: %s.", label)
		}
		seenEdges[label] = true
		if edge.To == graph.EndNode {
			endEdge = true
		}
	}
	if !endEdge {
		return "Add at least one edge to END so the workflow can finish."
	}

	if !reachesEnd(strings.TrimSpace(entryNode), edges) {
		return "Entry node must have a path to END."
	}
	return ""
}

func validateWorkerNode(node Node, key string, cats graph.Catalogs) string {
	seen := make(map[string]bool, len(node.ToolIDs))
	for _, toolID := range node.ToolIDs {
		if seen[toolID] {
			return fmt.Sprintf("Worker %s has duplicate tool assignments.", key)
		}
		seen[toolID] = true
		if !cats.HasTool(toolID) {
			return fmt.Sprintf("Worker %s references an unknown tool.", key)
		}
	}
	if raw, ok := node.Config["max_iterations"]; ok && raw != nil {
		if n, isInt := asInt(raw); !isInt || n < 1 || n > 100 {
			return fmt.Sprintf("Worker %s max_iterations must be between 1 and 100.", key)
		}
	}
	return ""
}

func validateSupervisorNode(node Node, key string) string {
	if len(node.ToolIDs) > 0 {
		return fmt.Sprintf("Supervisor %s cannot have tools assigned.", key)
	}
	members := asStringSlice(node.Config["members"])
	if len(members) == 0 {
		return fmt.Sprintf("Supervisor %s needs at least one member.", key)
	}
	seen := make(map[string]bool, len(members))
	for _, member := range members {
		if seen[member] {
			return fmt.Sprintf("Supervisor %s has duplicate members in config.members.", key)
		}
		seen[member] = true
	}
	return ""
}

func validateToolNode(node Node, key string, cats graph.Catalogs) string {
	if node.ModelID != "" {
		return fmt.Sprintf("Tool node %s cannot set a model.", key)
	}
	if len(node.ToolIDs) != 1 {
		return fmt.Sprintf("Tool node %s needs exactly one tool.", key)
	}
	if !cats.HasTool(node.ToolIDs[0]) {
		return fmt.Sprintf("Tool node %s references an unknown tool.", key)
	}
	for _, mappingName := range []string{"input_mapping", "output_mapping"} {
		raw, ok := node.Config[mappingName]
		if !ok || raw == nil {
			continue
		}
		mapping, isRecord := raw.(map[string]any)
		if !isRecord {
			return fmt.Sprintf("Tool node %s %s must be an object.", key, mappingName)
		}
		for _, value := range mapping {
			s, isString := value.(string)
			if !isString || strings.TrimSpace(s) == "" {
				return fmt.Sprintf("Tool node %s has an invalid %s value.", key, mappingName)
			}
			trimmed := strings.TrimSpace(s)
			if mappingName == "input_mapping" && strings.HasPrefix(trimmed, graph.ConstPrefix) {
				continue
			}
			if !keyPattern.MatchString(trimmed) {
				return fmt.Sprintf("Tool node %s has an invalid %s key reference.", key, mappingName)
			}
		}
	}
	return ""
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// reachesEnd walks the edges breadth-first from entry looking for the
// terminal sentinel.
func reachesEnd(entry string, edges []graph.Edge) bool {
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
			if next == graph.EndNode {
				return true
			}
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}
	return false
}
