// Package agentgraph is the high-level entry point for embedding the
// workflow graph validator in other programs. The full service surface
// lives under internal/; this facade covers the pure, storage-free parts.
package agentgraph

import (
	"github.com/arcnem/agentgraph/pkg/graph"
)

// Version is the library version, overridable at build time.
var Version = "0.1.0"

// ValidateDraft normalizes workflow metadata and a candidate graph against
// catalog snapshots. It returns the first violated rule as a
// *graph.ValidationError.
func ValidateDraft(name, description string, in graph.Input, cats graph.Catalogs) (graph.Fields, *graph.Graph, error) {
	fields, err := graph.NormalizeFields(name, description, in.EntryNode)
	if err != nil {
		return graph.Fields{}, nil, err
	}
	g, err := graph.Normalize(in, cats)
	if err != nil {
		return graph.Fields{}, nil, err
	}
	return fields, g, nil
}
