package hierarchy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds the full default tree", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, Bootstrap(ctx, store))

		nodes, err := store.All(ctx)
		require.NoError(t, err)
		require.Len(t, nodes, len(defaultHierarchy))

		root, err := store.GetNode(ctx, "GLOBAL")
		require.NoError(t, err)
		require.Equal(t, LevelGlobal, root.Level)
		require.Nil(t, root.ParentID)
		require.True(t, root.Balance.IsZero())
	})

	t.Run("rerunning leaves existing balances untouched", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, Bootstrap(ctx, store))

		require.NoError(t, store.ApplyDeltas(ctx, []Delta{
			{NodeID: "KR-JEJU-JEJU", Amount: decimal.NewFromInt(75)},
			{NodeID: "KR-JEJU-SEOGWIPO", Amount: decimal.NewFromInt(-75)},
		}))

		require.NoError(t, Bootstrap(ctx, store))

		node, err := store.GetNode(ctx, "KR-JEJU-JEJU")
		require.NoError(t, err)
		require.True(t, node.Balance.Equal(decimal.NewFromInt(75)))
	})

	t.Run("districts list under their cities", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, Bootstrap(ctx, store))

		districts, err := store.NodesByLevel(ctx, LevelDistrict)
		require.NoError(t, err)
		require.Len(t, districts, 12)
		for _, d := range districts {
			require.NotNil(t, d.ParentID)
			parent, err := store.GetNode(ctx, *d.ParentID)
			require.NoError(t, err)
			require.Equal(t, LevelCity, parent.Level)
		}
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	newTree := func(t *testing.T) *InMemoryStore {
		store := NewInMemoryStore()
		require.NoError(t, Bootstrap(ctx, store))
		return store
	}

	t.Run("accepts the default tree", func(t *testing.T) {
		require.NoError(t, Validate(ctx, newTree(t)))
	})

	t.Run("rejects a second root", func(t *testing.T) {
		store := newTree(t)
		require.NoError(t, store.InsertNode(ctx, Node{
			ID: "GLOBAL-2", Level: LevelGlobal, Name: "Second Root", Currency: DefaultCurrency,
		}))
		err := Validate(ctx, store)
		require.Error(t, err)
		require.Contains(t, err.Error(), "roots")
	})

	t.Run("rejects a missing parent", func(t *testing.T) {
		store := newTree(t)
		ghost := "NOWHERE"
		require.NoError(t, store.InsertNode(ctx, Node{
			ID: "ORPHAN", Level: LevelDistrict, Name: "Orphan", ParentID: &ghost, Currency: DefaultCurrency,
		}))
		err := Validate(ctx, store)
		require.Error(t, err)
		require.Contains(t, err.Error(), "missing parent")
	})

	t.Run("rejects a parent at the wrong level", func(t *testing.T) {
		store := newTree(t)
		parent := "KR" // country, two levels above district
		require.NoError(t, store.InsertNode(ctx, Node{
			ID: "SKIPPED", Level: LevelDistrict, Name: "Skipped", ParentID: &parent, Currency: DefaultCurrency,
		}))
		err := Validate(ctx, store)
		require.Error(t, err)
		require.Contains(t, err.Error(), "level")
	})
}

func TestApplyDeltas(t *testing.T) {
	ctx := context.Background()

	t.Run("applies a balanced batch", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, Bootstrap(ctx, store))

		require.NoError(t, store.ApplyDeltas(ctx, []Delta{
			{NodeID: "KR-JEJU-JEJU-YEON", Amount: decimal.NewFromInt(-50)},
			{NodeID: "KR-JEJU-JEJU-NOHYUNG", Amount: decimal.NewFromInt(50)},
		}))

		from, err := store.GetNode(ctx, "KR-JEJU-JEJU-YEON")
		require.NoError(t, err)
		require.True(t, from.Balance.Equal(decimal.NewFromInt(-50)))
	})

	t.Run("unknown node leaves the whole batch unapplied", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, Bootstrap(ctx, store))

		err := store.ApplyDeltas(ctx, []Delta{
			{NodeID: "KR-JEJU-JEJU-YEON", Amount: decimal.NewFromInt(-50)},
			{NodeID: "MISSING", Amount: decimal.NewFromInt(50)},
		})
		require.Error(t, err)

		from, getErr := store.GetNode(ctx, "KR-JEJU-JEJU-YEON")
		require.NoError(t, getErr)
		require.True(t, from.Balance.IsZero(), "partial application must not happen")
	})
}
