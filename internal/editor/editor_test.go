package editor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arcnem/agentgraph/internal/editor"
	"github.com/arcnem/agentgraph/internal/transact"
	"github.com/arcnem/agentgraph/pkg/graph"
)

const (
	modelID   = "0191f3a0-1111-7aaa-8bbb-0123456789ab"
	toolID    = "0191f3a0-2222-7aaa-8bbb-0123456789ab"
	altToolID = "0191f3a0-3333-7aaa-8bbb-0123456789ab"
)

func testCatalogs() graph.Catalogs {
	return graph.NewCatalogs(
		[]graph.Model{{ID: modelID, Provider: "openai", Name: "gpt-4o-mini"}},
		[]graph.Tool{
			{ID: toolID, Name: "frame_lookup"},
			{ID: altToolID, Name: "plate_reader"},
		},
	)
}

func TestNew_DefaultDraft(t *testing.T) {
	e := editor.New(testCatalogs())

	nodes := e.Nodes()
	if len(nodes) != 1 {
		t.Fatalf("expected one seed node, got %d", len(nodes))
	}
	start := nodes[0]
	if start.Key != "start" || start.Type != graph.NodeTypeWorker {
		t.Fatalf("unexpected seed node %q/%q", start.Key, start.Type)
	}
	if start.X != 260 || start.Y != 200 {
		t.Errorf("seed position = (%v, %v), want (260, 200)", start.X, start.Y)
	}
	if start.InputKey != "temp_url" || start.OutputKey != "result" {
		t.Errorf("seed state keys = %q/%q", start.InputKey, start.OutputKey)
	}
	if start.ModelID != modelID {
		t.Errorf("hydration should default the model to the first catalog entry, got %q", start.ModelID)
	}
	if start.ModelLabel != "openai / gpt-4o-mini" {
		t.Errorf("ModelLabel = %q", start.ModelLabel)
	}
	if start.Config["max_iterations"] != 3 {
		t.Errorf("max_iterations = %v, want 3", start.Config["max_iterations"])
	}
	if e.EntryNode() != "start" {
		t.Errorf("entry node = %q", e.EntryNode())
	}
	if e.SelectedID() != start.LocalID {
		t.Errorf("seed node should be selected")
	}
	if vp := e.Viewport(); vp.Scale != 1 || vp.OffsetX != 40 || vp.OffsetY != 40 {
		t.Errorf("viewport = %+v", vp)
	}
}

func TestOpen_KeepsIdentitiesAndHydrates(t *testing.T) {
	e := editor.Open(testCatalogs(), "graph-1", transact.Draft{
		Name:        "triage",
		Description: "desc",
		Graph: graph.Input{
			EntryNode: "start",
			Nodes: []graph.NodeInput{
				{
					ID: "row-1", Key: "start", Type: "worker", X: 100, Y: 120,
					ModelID: modelID,
					Config:  map[string]any{"max_iterations": "broken"},
				},
				{
					ID: "row-2", Key: "lookup", Type: "tool",
					ToolIDs: []string{"gone-tool"},
				},
			},
			Edges: []graph.Edge{{From: "start", To: "lookup"}, {From: "lookup", To: "END"}},
		},
	})

	nodes := e.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].ID != "row-1" || nodes[0].LocalID != "row-1" {
		t.Errorf("persisted identity must seed the local id, got %q/%q", nodes[0].ID, nodes[0].LocalID)
	}
	if nodes[0].Config["max_iterations"] != 3 {
		t.Errorf("broken max_iterations should hydrate to 3, got %v", nodes[0].Config["max_iterations"])
	}
	if len(nodes[1].ToolIDs) != 1 || nodes[1].ToolIDs[0] != toolID {
		t.Errorf("unknown tool reference should hydrate to the first catalog tool, got %v", nodes[1].ToolIDs)
	}
	if msg := e.ValidationMessage(); msg != "" {
		t.Errorf("opened draft should validate, got %q", msg)
	}
}

func TestAddNode_DerivesUniqueKeys(t *testing.T) {
	e := editor.New(testCatalogs())

	first := e.AddNode("Worker")
	if first.Key != "worker" {
		t.Errorf("first key = %q, want worker", first.Key)
	}
	second := e.AddNode("worker")
	if second.Key != "worker_2" {
		t.Errorf("second key = %q, want worker_2", second.Key)
	}
	if e.SelectedID() != second.LocalID {
		t.Errorf("new node should be selected")
	}

	sup := e.AddNode("supervisor")
	if sup.Config["members"] == nil {
		t.Errorf("supervisor should hydrate an empty members list")
	}
	tool := e.AddNode("tool")
	if len(tool.ToolIDs) != 1 || tool.ToolIDs[0] != toolID {
		t.Errorf("tool node should hydrate the first catalog tool, got %v", tool.ToolIDs)
	}
}

func TestRemoveNode_CascadesEdgesAndEntry(t *testing.T) {
	e := editor.New(testCatalogs())
	added := e.AddNode("worker")
	e.AddEdgeToEnd("start")
	e.PointerUp() // no-op, stays idle

	// start -> worker plus the END edge.
	e.StartEdgeDrag("start", editor.Point{X: 0, Y: 0})
	e.HoverEdgeTarget("worker")
	e.PointerUp()

	startID := e.Nodes()[0].LocalID
	e.RemoveNode(startID)

	if len(e.Nodes()) != 1 {
		t.Fatalf("expected 1 node after removal, got %d", len(e.Nodes()))
	}
	for _, edge := range e.Edges() {
		if edge.From == "start" || edge.To == "start" {
			t.Errorf("edge %v survived node removal", edge)
		}
	}
	if e.EntryNode() != added.Key {
		t.Errorf("entry should fall back to the survivor, got %q", e.EntryNode())
	}
	if e.SelectedID() != "" && e.SelectedID() == startID {
		t.Errorf("removed node is still selected")
	}
}

func TestRenameCascadesAcrossDraft(t *testing.T) {
	e := editor.New(testCatalogs())
	worker := e.Nodes()[0]
	sup := e.AddNode("supervisor")
	e.ToggleSupervisorMember(sup.LocalID, "start")
	e.StartEdgeDrag("start", editor.Point{})
	e.HoverEdgeTarget(sup.Key)
	e.PointerUp()
	e.AddEdgeToEnd("start")

	e.Select(worker.LocalID)
	newKey := "intake"
	e.UpdateSelectedNode(editor.NodeChanges{Key: &newKey})

	if e.EntryNode() != "intake" {
		t.Errorf("entry node not renamed, got %q", e.EntryNode())
	}
	for _, edge := range e.Edges() {
		if edge.From == "start" || edge.To == "start" {
			t.Errorf("edge %v still references the old key", edge)
		}
	}
	supNode := findByKey(t, e, sup.Key)
	members := supNode.Config["members"].([]string)
	if len(members) != 1 || members[0] != "intake" {
		t.Errorf("supervisor members not renamed, got %v", members)
	}
	if msg := e.ValidationMessage(); msg != "" {
		t.Errorf("draft should stay valid through rename, got %q", msg)
	}
}

func TestDemotingWorkerPurgesMemberLists(t *testing.T) {
	e := editor.New(testCatalogs())
	sup := e.AddNode("supervisor")
	e.ToggleSupervisorMember(sup.LocalID, "start")

	e.Select(e.Nodes()[0].LocalID)
	toolType := "tool"
	e.UpdateSelectedNode(editor.NodeChanges{Type: &toolType})

	supNode := findByKey(t, e, sup.Key)
	if members := supNode.Config["members"].([]string); len(members) != 0 {
		t.Errorf("demoted worker should leave member lists, got %v", members)
	}
}

func TestToggles(t *testing.T) {
	e := editor.New(testCatalogs())
	workerID := e.Nodes()[0].LocalID

	e.ToggleWorkerTool(workerID, toolID)
	e.ToggleWorkerTool(workerID, altToolID)
	e.ToggleWorkerTool(workerID, toolID)
	worker := e.Nodes()[0]
	if len(worker.ToolIDs) != 1 || worker.ToolIDs[0] != altToolID {
		t.Errorf("tool toggle sequence left %v", worker.ToolIDs)
	}

	sup := e.AddNode("supervisor")
	e.ToggleSupervisorMember(sup.LocalID, "start")
	e.ToggleSupervisorMember(sup.LocalID, "start")
	supNode := findByKey(t, e, sup.Key)
	if members := supNode.Config["members"].([]string); len(members) != 0 {
		t.Errorf("double toggle should clear membership, got %v", members)
	}
}

func TestAddEdgeToEnd_Idempotent(t *testing.T) {
	e := editor.New(testCatalogs())
	e.AddEdgeToEnd("start")
	e.AddEdgeToEnd("start")
	if len(e.Edges()) != 1 {
		t.Fatalf("expected one END edge, got %d", len(e.Edges()))
	}
	e.RemoveEdge("start", graph.EndNode)
	if len(e.Edges()) != 0 {
		t.Fatalf("edge not removed")
	}
}

func TestValidationMessage_LiveFeedback(t *testing.T) {
	e := editor.New(testCatalogs())
	if msg := e.ValidationMessage(); msg != "Add at least one edge to END so the workflow can finish." {
		t.Fatalf("fresh draft message = %q", msg)
	}
	e.AddEdgeToEnd("start")
	if msg := e.ValidationMessage(); msg != "" {
		t.Fatalf("draft should be valid after wiring END, got %q", msg)
	}
}

func TestUpdateCatalogs_Rehydrates(t *testing.T) {
	e := editor.New(testCatalogs())
	tool := e.AddNode("tool")
	if tool.ToolIDs[0] != toolID {
		t.Fatalf("setup: tool node bound to %v", tool.ToolIDs)
	}

	e.UpdateCatalogs(graph.NewCatalogs(
		[]graph.Model{{ID: modelID, Provider: "openai", Name: "gpt-4o-mini"}},
		[]graph.Tool{{ID: altToolID, Name: "plate_reader"}},
	))

	rehydrated := findByKey(t, e, tool.Key)
	if len(rehydrated.ToolIDs) != 1 || rehydrated.ToolIDs[0] != altToolID {
		t.Errorf("catalog swap should rebind the tool node, got %v", rehydrated.ToolIDs)
	}
}

func TestSave(t *testing.T) {
	e := editor.New(testCatalogs())
	e.SetName("triage flow")
	e.AddEdgeToEnd("start")

	var got transact.Draft
	err := e.Save(context.Background(), func(_ context.Context, graphID string, draft transact.Draft) error {
		if graphID != "" {
			t.Errorf("new draft should carry no graph id, got %q", graphID)
		}
		if !e.Saving() {
			t.Errorf("in-flight flag should be set during commit")
		}
		if err := e.Save(context.Background(), nil); !errors.Is(err, editor.ErrSaveInFlight) {
			t.Errorf("re-entrant save should be rejected, got %v", err)
		}
		got = draft
		return nil
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if got.Name != "triage flow" || got.Graph.EntryNode != "start" {
		t.Errorf("draft = %+v", got)
	}
	if e.Saving() {
		t.Errorf("in-flight flag should clear after commit")
	}
}

func TestSave_LocalFailures(t *testing.T) {
	e := editor.New(testCatalogs())

	if err := e.Save(context.Background(), nil); err == nil {
		t.Fatal("short name should fail")
	}
	if e.LocalError() != "Workflow name must be at least 2 characters." {
		t.Errorf("LocalError = %q", e.LocalError())
	}

	e.SetName("triage flow")
	if err := e.Save(context.Background(), nil); err == nil {
		t.Fatal("invalid draft should fail")
	}
	if e.LocalError() != "Add at least one edge to END so the workflow can finish." {
		t.Errorf("LocalError = %q", e.LocalError())
	}

	e.AddEdgeToEnd("start")
	serverErr := errors.New("Missing model references: abc")
	err := e.Save(context.Background(), func(context.Context, string, transact.Draft) error {
		return serverErr
	})
	if !errors.Is(err, serverErr) {
		t.Fatalf("commit error should surface, got %v", err)
	}
	if e.LocalError() != serverErr.Error() {
		t.Errorf("LocalError = %q", e.LocalError())
	}
}

func findByKey(t *testing.T, e *editor.Editor, key string) editor.Node {
	t.Helper()
	for _, node := range e.Nodes() {
		if node.Key == key {
			return node
		}
	}
	t.Fatalf("node %q not found", key)
	return editor.Node{}
}
