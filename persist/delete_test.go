package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ogm "github.com/syssam/velox-ogm"
)

func TestDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ByID", func(t *testing.T) {
		eng, drv := newEngine(t)
		team := newTeam()
		_, err := eng.Save(ctx, team)
		require.NoError(t, err)
		require.NoError(t, eng.DeleteByID(ctx, Team{}, *team.ID))
		assert.Empty(t, drv.Nodes("Team"))
		assert.Empty(t, drv.Relationships("HAS_PLAYER"), "relationships are detached")
		assert.Len(t, drv.Nodes("Player"), 2)
	})

	t.Run("Entity", func(t *testing.T) {
		eng, drv := newEngine(t)
		c := &Coach{Name: "zed"}
		_, err := eng.Save(ctx, c)
		require.NoError(t, err)
		require.NoError(t, eng.Delete(ctx, c))
		assert.Empty(t, drv.Nodes("Coach"))
		err = eng.Delete(ctx, &Team{})
		assert.True(t, ogm.IsNotFound(err))
	})

	t.Run("Version", func(t *testing.T) {
		eng, drv := newEngine(t)
		d := &Doc{Key: "k"}
		_, err := eng.Save(ctx, d)
		require.NoError(t, err)
		err = eng.DeleteByIDWithVersion(ctx, &Doc{}, "k", 7)
		assert.True(t, ogm.IsOptimisticLock(err))
		assert.Len(t, drv.Nodes("Doc"), 1)
		require.NoError(t, eng.Delete(ctx, d))
		assert.Empty(t, drv.Nodes("Doc"))
	})

	t.Run("AllByID", func(t *testing.T) {
		eng, drv := newEngine(t)
		_, err := eng.SaveAll(ctx, []any{&Coach{Name: "a"}, &Coach{Name: "b"}, &Coach{Name: "c"}})
		require.NoError(t, err)
		require.NoError(t, eng.DeleteAllByID(ctx, Coach{}, []any{"a", "c"}))
		nodes := drv.Nodes("Coach")
		require.Len(t, nodes, 1)
		assert.Equal(t, "b", nodes[0].Properties["name"])
	})

	t.Run("AllAndCount", func(t *testing.T) {
		eng, _ := newEngine(t)
		_, err := eng.Save(ctx, newTeam())
		require.NoError(t, err)
		n, err := eng.Count(ctx, Player{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		require.NoError(t, eng.DeleteAll(ctx, Player{}))
		n, err = eng.Count(ctx, Player{})
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = eng.Count(ctx, Team{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("UnknownType", func(t *testing.T) {
		eng, _ := newEngine(t)
		assert.Error(t, eng.DeleteAll(ctx, struct{ Name string }{}))
	})
}
