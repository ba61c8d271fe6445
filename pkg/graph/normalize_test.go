package graph

import (
	"reflect"
	"strings"
	"testing"
)

const (
	testModelID = "0191f3a0-1111-7aaa-8bbb-0123456789ab"
	testToolID  = "0191f3a0-2222-7aaa-8bbb-0123456789ab"
	otherToolID = "0191f3a0-3333-7aaa-8bbb-0123456789ab"
)

func testCatalogs() Catalogs {
	return NewCatalogs(
		[]Model{{ID: testModelID, Provider: "openai", Name: "gpt-4o-mini"}},
		[]Tool{
			{ID: testToolID, Name: "fetch_page", InputFields: []string{"url"}, OutputFields: []string{"body"}},
			{ID: otherToolID, Name: "summarize"},
		},
	)
}

func workerNode(key string) NodeInput {
	return NodeInput{Key: key, Type: "worker", ModelID: testModelID, X: 100, Y: 100}
}

func TestNormalize_MinimalWorkerGraph(t *testing.T) {
	g, err := Normalize(Input{
		EntryNode: "start",
		Nodes:     []NodeInput{workerNode("start")},
		Edges:     []Edge{{From: "start", To: EndNode}},
	}, testCatalogs())
	if err != nil {
		t.Fatalf("Normalize() error = %v, want nil", err)
	}

	if len(g.Nodes) != 1 || g.Nodes[0].Key != "start" {
		t.Fatalf("unexpected nodes: %+v", g.Nodes)
	}
	cfg, ok := g.Nodes[0].Config.(WorkerConfig)
	if !ok {
		t.Fatalf("expected WorkerConfig, got %T", g.Nodes[0].Config)
	}
	if cfg.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want default 3", cfg.MaxIterations)
	}
}

func TestNormalize_Violations(t *testing.T) {
	cats := testCatalogs()

	tests := []struct {
		name    string
		input   Input
		wantMsg string
	}{
		{
			name:    "empty node set",
			input:   Input{EntryNode: "start"},
			wantMsg: "Add at least one node",
		},
		{
			name: "no edge to END",
			input: Input{
				EntryNode: "start",
				Nodes:     []NodeInput{workerNode("start")},
			},
			wantMsg: "at least one edge that points to END",
		},
		{
			name: "duplicate supervisor members",
			input: Input{
				EntryNode: "boss",
				Nodes: []NodeInput{
					workerNode("worker_a"),
					{Key: "boss", Type: "supervisor", ModelID: testModelID,
						Config: map[string]any{"members": []any{"worker_a", "worker_a"}}},
				},
				Edges: []Edge{{From: "worker_a", To: EndNode}, {From: "boss", To: "worker_a"}},
			},
			wantMsg: `duplicate member "worker_a"`,
		},
		{
			name: "tool node with two tools",
			input: Input{
				EntryNode: "start",
				Nodes: []NodeInput{
					workerNode("start"),
					{Key: "lookup", Type: "tool", ToolIDs: []string{testToolID, otherToolID}},
				},
				Edges: []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "exactly one attached tool",
		},
		{
			name: "self loop",
			input: Input{
				EntryNode: "start",
				Nodes:     []NodeInput{workerNode("start")},
				Edges:     []Edge{{From: "start", To: "start"}},
			},
			wantMsg: "cannot point to itself",
		},
		{
			name: "duplicate edge",
			input: Input{
				EntryNode: "start",
				Nodes:     []NodeInput{workerNode("start")},
				Edges:     []Edge{{From: "start", To: EndNode}, {From: "start", To: EndNode}},
			},
			wantMsg: "Duplicate edge detected",
		},
		{
			name: "edge from unknown node",
			input: Input{
				EntryNode: "start",
				Nodes:     []NodeInput{workerNode("start")},
				Edges:     []Edge{{From: "ghost", To: EndNode}},
			},
			wantMsg: "source node that does not exist",
		},
		{
			name: "entry not a node",
			input: Input{
				EntryNode: "missing",
				Nodes:     []NodeInput{workerNode("start")},
				Edges:     []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "Entry node must match",
		},
		{
			name: "no path from entry to END",
			input: Input{
				EntryNode: "island",
				Nodes:     []NodeInput{workerNode("island"), workerNode("mainland")},
				Edges:     []Edge{{From: "mainland", To: EndNode}},
			},
			wantMsg: "path to END",
		},
		{
			name: "duplicate node keys",
			input: Input{
				EntryNode: "start",
				Nodes:     []NodeInput{workerNode("start"), workerNode(" start ")},
				Edges:     []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "Duplicate node key",
		},
		{
			name: "worker without model",
			input: Input{
				EntryNode: "start",
				Nodes:     []NodeInput{{Key: "start", Type: "worker"}},
				Edges:     []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "requires a model",
		},
		{
			name: "unknown model reference",
			input: Input{
				EntryNode: "start",
				Nodes: []NodeInput{{Key: "start", Type: "worker",
					ModelID: "0191f3a0-ffff-7aaa-8bbb-0123456789ab"}},
				Edges: []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "unknown model",
		},
		{
			name: "unknown tool reference",
			input: Input{
				EntryNode: "start",
				Nodes: []NodeInput{
					workerNode("start"),
					{Key: "lookup", Type: "tool",
						ToolIDs: []string{"0191f3a0-eeee-7aaa-8bbb-0123456789ab"}},
				},
				Edges: []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "unknown tool",
		},
		{
			name: "supervisor with tools",
			input: Input{
				EntryNode: "start",
				Nodes: []NodeInput{
					workerNode("start"),
					{Key: "boss", Type: "supervisor", ModelID: testModelID,
						ToolIDs: []string{testToolID},
						Config:  map[string]any{"members": []any{"start"}}},
				},
				Edges: []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "cannot have attached tools",
		},
		{
			name: "supervisor member is not a worker",
			input: Input{
				EntryNode: "start",
				Nodes: []NodeInput{
					workerNode("start"),
					{Key: "lookup", Type: "tool", ToolIDs: []string{testToolID}},
					{Key: "boss", Type: "supervisor", ModelID: testModelID,
						Config: map[string]any{"members": []any{"lookup"}}},
				},
				Edges: []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "must be a worker node",
		},
		{
			name: "supervisor member unknown",
			input: Input{
				EntryNode: "start",
				Nodes: []NodeInput{
					workerNode("start"),
					{Key: "boss", Type: "supervisor", ModelID: testModelID,
						Config: map[string]any{"members": []any{"nobody"}}},
				},
				Edges: []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "unknown member",
		},
		{
			name: "tool node with a model",
			input: Input{
				EntryNode: "start",
				Nodes: []NodeInput{
					workerNode("start"),
					{Key: "lookup", Type: "tool", ModelID: testModelID, ToolIDs: []string{testToolID}},
				},
				Edges: []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "cannot set a model",
		},
		{
			name: "bad max_iterations",
			input: Input{
				EntryNode: "start",
				Nodes: []NodeInput{{Key: "start", Type: "worker", ModelID: testModelID,
					Config: map[string]any{"max_iterations": 250}}},
				Edges: []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "max_iterations must be an integer between 1 and 100",
		},
		{
			name: "bad node type",
			input: Input{
				EntryNode: "start",
				Nodes:     []NodeInput{{Key: "start", Type: "router", ModelID: testModelID}},
				Edges:     []Edge{{From: "start", To: EndNode}},
			},
			wantMsg: "unsupported type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.input, cats)
			if err == nil {
				t.Fatalf("Normalize() = nil error, want %q", tt.wantMsg)
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Errorf("error type = %T, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestNormalize_SupervisorRoutingNotEdgeModeled(t *testing.T) {
	// A supervisor's members do not count as edges. The graph still needs an
	// edge path from entry to END alongside the member routing.
	cats := testCatalogs()
	input := Input{
		EntryNode: "boss",
		Nodes: []NodeInput{
			workerNode("worker_a"),
			{Key: "boss", Type: "supervisor", ModelID: testModelID,
				Config: map[string]any{"members": []any{"worker_a"}}},
		},
		Edges: []Edge{{From: "worker_a", To: EndNode}},
	}

	if _, err := Normalize(input, cats); err == nil {
		t.Fatal("expected reachability failure when only supervisor routing leads onward")
	}

	input.Edges = append(input.Edges, Edge{From: "boss", To: "worker_a"})
	if _, err := Normalize(input, cats); err != nil {
		t.Fatalf("Normalize() with explicit edge = %v, want nil", err)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	cats := testCatalogs()
	first, err := Normalize(Input{
		EntryNode: "start",
		Nodes: []NodeInput{
			{Key: "start", Type: "worker", ModelID: testModelID, X: 12.6, Y: -4,
				InputKey: " doc_url ", ToolIDs: []string{testToolID, testToolID, ""},
				Config: map[string]any{"system_message": "go", "max_iterations": float64(5)}},
			{Key: "lookup", Type: "tool", ToolIDs: []string{otherToolID},
				Config: map[string]any{"input_mapping": map[string]any{"query": "_const:hello"}}},
		},
		Edges: []Edge{{From: "start", To: "lookup"}, {From: "lookup", To: EndNode}},
	}, cats)
	if err != nil {
		t.Fatalf("first Normalize() error = %v", err)
	}

	second, err := Normalize(first.Input(), cats)
	if err != nil {
		t.Fatalf("second Normalize() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-normalization changed the graph:\nfirst:  %+v\nsecond: %+v", first, second)
	}

	// Spot-check normalization effects from the first pass.
	start := first.Node("start")
	if start.InputKey != "doc_url" {
		t.Errorf("InputKey = %q, want trimmed", start.InputKey)
	}
	if len(start.ToolIDs) != 1 {
		t.Errorf("ToolIDs = %v, want de-duplicated single entry", start.ToolIDs)
	}
	if start.Pos != (Position{X: 13, Y: 0}) {
		t.Errorf("Pos = %+v, want rounded and clamped", start.Pos)
	}
}

func TestNormalize_ConfigBlobs(t *testing.T) {
	cats := testCatalogs()

	g, err := Normalize(Input{
		EntryNode: "start",
		Nodes: []NodeInput{{Key: "start", Type: "worker", ModelID: testModelID,
			Config: `{"system_message":"hi","max_iterations":7,"uiPosition":{"x":999,"y":999}}`}},
		Edges: []Edge{{From: "start", To: EndNode}},
	}, cats)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	cfg := g.Nodes[0].Config.(WorkerConfig)
	if cfg.SystemMessage != "hi" || cfg.MaxIterations != 7 {
		t.Errorf("blob config not applied: %+v", cfg)
	}
	if _, hasPos := cfg.Map()[PositionKey]; hasPos {
		t.Error("semantic config must not carry the position sub-key")
	}

	// Unparseable blob degrades to an empty config with defaults.
	g, err = Normalize(Input{
		EntryNode: "start",
		Nodes: []NodeInput{{Key: "start", Type: "worker", ModelID: testModelID,
			Config: `{not json`}},
		Edges: []Edge{{From: "start", To: EndNode}},
	}, cats)
	if err != nil {
		t.Fatalf("Normalize() with broken blob error = %v", err)
	}
	if g.Nodes[0].Config.(WorkerConfig).MaxIterations != 3 {
		t.Error("broken blob should fall back to default config")
	}
}

func TestNormalizeFields(t *testing.T) {
	tests := []struct {
		name        string
		fieldsName  string
		description string
		entryNode   string
		wantErr     string
	}{
		{"valid", "Document pipeline", "  ", "start", ""},
		{"short name", "x", "", "start", "at least 2 characters"},
		{"long name", strings.Repeat("n", 121), "", "start", "120 characters or fewer"},
		{"short entry", "pipeline", "", "s", "Entry node must be at least 2"},
		{"bad entry charset", "pipeline", "", "st art", "letters, numbers, dots"},
		{"long description", "pipeline", strings.Repeat("d", 801), "start", "800 characters or fewer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := NormalizeFields(tt.fieldsName, tt.description, tt.entryNode)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NormalizeFields() error = %v, want nil", err)
				}
				if fields.Description != "" {
					t.Errorf("blank description should normalize to empty, got %q", fields.Description)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
