package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreSeeder prepares fixture rows for RunGraphStoreContract. Store
// implementations expose it from their test harness.
type StoreSeeder interface {
	SeedModel(id string)
	SeedTool(id string)
	SeedDevice(row DeviceRow)
}

// RunGraphStoreContract verifies that a GraphStore implementation adheres to
// the interface contract, atomicity included.
func RunGraphStoreContract(t *testing.T, store GraphStore, seed StoreSeeder) {
	ctx := context.Background()

	const (
		orgID   = "org-contract"
		modelID = "0191f3a0-aaaa-7aaa-8bbb-0123456789ab"
		toolID  = "0191f3a0-bbbb-7aaa-8bbb-0123456789ab"
	)
	seed.SeedModel(modelID)
	seed.SeedTool(toolID)

	insertFixture := func(t *testing.T, name string) (graphID string, refs []NodeRef) {
		err := store.WithTx(ctx, func(tx GraphTx) error {
			var err error
			graphID, err = tx.InsertGraphMeta(ctx, GraphMeta{
				OrgID:     orgID,
				Name:      name,
				EntryNode: "start",
			})
			if err != nil {
				return err
			}
			refs, err = tx.InsertNodes(ctx, []NodeRow{
				{GraphID: graphID, Key: "start", Type: "worker", ModelID: modelID, Config: map[string]any{}},
				{GraphID: graphID, Key: "lookup", Type: "tool", Config: map[string]any{}},
			})
			if err != nil {
				return err
			}
			byKey := map[string]string{}
			for _, ref := range refs {
				byKey[ref.Key] = ref.ID
			}
			if err := tx.InsertNodeTools(ctx, []NodeToolRow{{NodeID: byKey["lookup"], ToolID: toolID}}); err != nil {
				return err
			}
			return tx.InsertEdges(ctx, []EdgeRow{
				{GraphID: graphID, From: "start", To: "lookup"},
				{GraphID: graphID, From: "lookup", To: "END"},
			})
		})
		require.NoError(t, err, "fixture transaction should commit")
		require.Len(t, refs, 2)
		return graphID, refs
	}

	t.Run("Commit and Load", func(t *testing.T) {
		graphID, refs := insertFixture(t, "contract-commit")

		sg, err := store.GetGraph(ctx, orgID, graphID)
		require.NoError(t, err)
		assert.Equal(t, "contract-commit", sg.Meta.Name)
		assert.Len(t, sg.Nodes, 2)
		assert.Len(t, sg.Tools, 1)
		assert.Len(t, sg.Edges, 2)
		for _, ref := range refs {
			assert.NotEmpty(t, ref.ID, "insert must generate identities")
		}
	})

	t.Run("Rollback Leaves No Trace", func(t *testing.T) {
		boom := errors.New("boom")
		var graphID string
		err := store.WithTx(ctx, func(tx GraphTx) error {
			var err error
			graphID, err = tx.InsertGraphMeta(ctx, GraphMeta{OrgID: orgID, Name: "doomed", EntryNode: "start"})
			if err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = store.GetGraph(ctx, orgID, graphID)
		assert.ErrorIs(t, err, ErrGraphNotFound, "rolled-back graph must not be visible")
	})

	t.Run("Org Scoping", func(t *testing.T) {
		graphID, _ := insertFixture(t, "contract-scope")
		_, err := store.GetGraph(ctx, "other-org", graphID)
		assert.ErrorIs(t, err, ErrGraphNotFound)

		err = store.WithTx(ctx, func(tx GraphTx) error {
			_, err := tx.GetGraphMeta(ctx, "other-org", graphID)
			return err
		})
		assert.ErrorIs(t, err, ErrGraphNotFound)
	})

	t.Run("Node Delete Cascades Tool Rows", func(t *testing.T) {
		graphID, refs := insertFixture(t, "contract-cascade")
		var lookupID string
		for _, ref := range refs {
			if ref.Key == "lookup" {
				lookupID = ref.ID
			}
		}

		err := store.WithTx(ctx, func(tx GraphTx) error {
			return tx.DeleteNodes(ctx, []string{lookupID})
		})
		require.NoError(t, err)

		sg, err := store.GetGraph(ctx, orgID, graphID)
		require.NoError(t, err)
		assert.Len(t, sg.Nodes, 1)
		assert.Empty(t, sg.Tools, "tool associations must follow their node")
	})

	t.Run("Missing References", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx GraphTx) error {
			missing, err := tx.MissingModels(ctx, []string{modelID, "0191f3a0-dead-7aaa-8bbb-0123456789ab"})
			require.NoError(t, err)
			assert.Equal(t, []string{"0191f3a0-dead-7aaa-8bbb-0123456789ab"}, missing)

			missing, err = tx.MissingTools(ctx, []string{toolID})
			require.NoError(t, err)
			assert.Empty(t, missing)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Device Assignment", func(t *testing.T) {
		graphID, _ := insertFixture(t, "contract-device")
		seed.SeedDevice(DeviceRow{ID: "dev-1", OrgID: orgID, Name: "edge-cam"})

		err := store.WithTx(ctx, func(tx GraphTx) error {
			if _, err := tx.GetDevice(ctx, orgID, "dev-1"); err != nil {
				return err
			}
			return tx.AssignDeviceGraph(ctx, "dev-1", graphID)
		})
		require.NoError(t, err)

		err = store.WithTx(ctx, func(tx GraphTx) error {
			row, err := tx.GetDevice(ctx, orgID, "dev-1")
			if err != nil {
				return err
			}
			assert.Equal(t, graphID, row.GraphID)

			_, err = tx.GetDevice(ctx, "other-org", "dev-1")
			assert.ErrorIs(t, err, ErrDeviceNotFound)
			return nil
		})
		require.NoError(t, err)
	})
}
