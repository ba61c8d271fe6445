// Package mermaid renders a workflow graph as Mermaid flowchart syntax for
// docs, terminals, and the dashboard preview.
package mermaid

import (
	"fmt"
	"strings"

	"github.com/arcnem/agentgraph/pkg/graph"
)

// Render produces a Mermaid flowchart from a normalized graph.
// Node shapes carry the semantics:
//   - worker: rectangle
//   - supervisor: hexagon
//   - tool: subroutine
//   - END: circle
//
// Control-flow edges are solid arrows; supervisor member routing, which is
// config-driven rather than edge-driven, is drawn dotted.
func Render(g *graph.Graph) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes {
		safeID := sanitizeID(node.Key)

		opener, closer := "[", "]"
		switch node.Type {
		case graph.NodeTypeSupervisor:
			opener, closer = "{{", "}}"
		case graph.NodeTypeTool:
			opener, closer = "[[", "]]"
		}

		label := node.Key
		if node.Key == g.EntryNode {
			label = "▶ " + label
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
	}
	sb.WriteString("    __end((\"END\"))\n")

	for _, edge := range g.Edges {
		to := "__end"
		if edge.To != graph.EndNode {
			to = sanitizeID(edge.To)
		}
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeID(edge.From), to))
	}

	for _, node := range g.Nodes {
		if node.Type != graph.NodeTypeSupervisor {
			continue
		}
		cfg, ok := node.Config.(graph.SupervisorConfig)
		if !ok {
			continue
		}
		for _, member := range cfg.Members {
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", sanitizeID(node.Key), sanitizeID(member)))
		}
	}

	return sb.String()
}

// sanitizeID makes a node key safe as a Mermaid identifier. Keys may carry
// dots, colons, and dashes, which Mermaid treats specially.
func sanitizeID(key string) string {
	var sb strings.Builder
	sb.WriteString("n_")
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
