package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox-ogm/dialect"
)

func run(t *testing.T, ex dialect.ExecQuerier, stmt dialect.Statement) *dialect.Result {
	t.Helper()
	res, err := ex.Run(context.Background(), stmt)
	require.NoError(t, err)
	return res
}

func TestSaveNodeCreatesAndUpdates(t *testing.T) {
	t.Parallel()
	drv := New()
	res := run(t, drv, dialect.SaveNode{
		Node:       dialect.NodeRef{Label: "Person"},
		Labels:     []string{"Person"},
		Properties: map[string]any{"name": "Ada"},
	})
	rec, ok := res.Single()
	require.True(t, ok)
	id := rec["id"]
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 1, res.Counters.NodesCreated)

	run(t, drv, dialect.SaveNode{
		Node:       dialect.NodeRef{Label: "Person", ID: id},
		Labels:     []string{"Person"},
		Properties: map[string]any{"name": "Grace"},
	})
	nodes := drv.Nodes("Person")
	require.Len(t, nodes, 1)
	assert.Equal(t, "Grace", nodes[0].Properties["name"])

	// A store id that does not exist never creates.
	res = run(t, drv, dialect.SaveNode{Node: dialect.NodeRef{Label: "Person", ID: int64(42)}, Labels: []string{"Person"}})
	assert.Empty(t, res.Records)
	assert.Len(t, drv.Nodes(""), 1)
}

func TestSaveNodeMergesAssignedID(t *testing.T) {
	t.Parallel()
	drv := New()
	ref := dialect.NodeRef{Label: "Movie", IDProperty: "title", ID: "Alien"}
	first := run(t, drv, dialect.SaveNode{Node: ref, Labels: []string{"Movie"}, Properties: map[string]any{"released": 1979}})
	second := run(t, drv, dialect.SaveNode{Node: ref, Labels: []string{"Movie"}, Properties: map[string]any{"released": 1980}})
	assert.Equal(t, first.Records[0]["id"], second.Records[0]["id"])
	nodes := drv.Nodes("Movie")
	require.Len(t, nodes, 1)
	assert.Equal(t, "Alien", nodes[0].Properties["title"])
	assert.Equal(t, 1980, nodes[0].Properties["released"])
}

func TestSaveNodeVersion(t *testing.T) {
	t.Parallel()
	drv := New()
	ref := dialect.NodeRef{Label: "Doc", IDProperty: "key", ID: "a"}
	res := run(t, drv, dialect.SaveNode{Node: ref, Labels: []string{"Doc"}, VersionProperty: "version", Version: 0})
	require.Len(t, res.Records, 1)
	assert.Equal(t, int64(1), res.Records[0]["version"])

	// Stale version.
	res = run(t, drv, dialect.SaveNode{Node: ref, Labels: []string{"Doc"}, VersionProperty: "version", Version: 0})
	assert.Empty(t, res.Records)

	res = run(t, drv, dialect.SaveNode{Node: ref, Labels: []string{"Doc"}, VersionProperty: "version", Version: 1})
	require.Len(t, res.Records, 1)
	assert.Equal(t, int64(2), res.Records[0]["version"])
	assert.Equal(t, int64(2), drv.Nodes("Doc")[0].Properties["version"])
}

func TestSaveNodeLabels(t *testing.T) {
	t.Parallel()
	drv := New()
	res := run(t, drv, dialect.SaveNode{
		Node:      dialect.NodeRef{Label: "Thing"},
		Labels:    []string{"Thing"},
		AddLabels: []string{"A", "B"},
	})
	id := res.Records[0]["id"]
	run(t, drv, dialect.SaveNode{
		Node:         dialect.NodeRef{Label: "Thing", ID: id},
		Labels:       []string{"Thing"},
		RemoveLabels: []string{"A", "B", "Thing"},
		AddLabels:    []string{"C"},
	})
	assert.Equal(t, []string{"Thing", "C"}, drv.Nodes("")[0].Labels)

	res = run(t, drv, dialect.ReadLabels{Node: dialect.NodeRef{ID: id}, Exclude: []string{"Thing"}})
	assert.Equal(t, []string{"C"}, res.Records[0].Strings("labels"))
}

func TestSaveNodes(t *testing.T) {
	t.Parallel()
	drv := New()
	res := run(t, drv, dialect.SaveNodes{
		Labels:     []string{"Tag"},
		IDProperty: "name",
		Rows: []dialect.NodeRow{
			{ID: "go", Properties: map[string]any{"weight": 1}},
			{ID: "graph", Properties: map[string]any{"weight": 2}},
		},
	})
	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Records[1]["index"])
	assert.Equal(t, 2, res.Counters.NodesCreated)
	res = run(t, drv, dialect.SaveNodes{
		Labels:     []string{"Tag"},
		IDProperty: "name",
		Rows:       []dialect.NodeRow{{ID: "go", Properties: map[string]any{"weight": 3}}},
	})
	assert.Zero(t, res.Counters.NodesCreated)
	assert.Len(t, drv.Nodes("Tag"), 2)
}

func seed(t *testing.T, drv *Driver) (a, b, c any) {
	t.Helper()
	for i, name := range []string{"a", "b", "c"} {
		res := run(t, drv, dialect.SaveNode{Node: dialect.NodeRef{Label: "N"}, Labels: []string{"N"}, Properties: map[string]any{"name": name}})
		switch i {
		case 0:
			a = res.Records[0]["id"]
		case 1:
			b = res.Records[0]["id"]
		default:
			c = res.Records[0]["id"]
		}
	}
	return a, b, c
}

func TestRelationships(t *testing.T) {
	t.Parallel()
	drv := New()
	a, b, c := seed(t, drv)

	res := run(t, drv, dialect.CreateRelationships{
		Type: "KNOWS",
		Rows: []dialect.RelationshipRow{{Source: a, Target: b}, {Source: a, Target: c}},
	})
	require.Len(t, res.Records, 2)
	assert.Equal(t, 2, res.Counters.RelationshipsCreated)
	keep := res.Records[0]["id"]

	res = run(t, drv, dialect.CreateRelationships{
		Type:     "LIKES",
		Incoming: true,
		Rows:     []dialect.RelationshipRow{{Source: a, Target: c}},
	})
	likes := drv.Relationships("LIKES")
	require.Len(t, likes, 1)
	assert.Equal(t, c, likes[0].Start)
	assert.Equal(t, a, likes[0].End)

	res = run(t, drv, dialect.LookupRelationship{Source: a, Target: c, Type: "LIKES", Incoming: true})
	assert.Len(t, res.Records, 1)
	res = run(t, drv, dialect.LookupRelationship{Source: a, Target: c, Type: "LIKES"})
	assert.Empty(t, res.Records)

	res = run(t, drv, dialect.Expand{Sources: []any{a}, Types: []string{"KNOWS"}, TargetLabel: "N"})
	assert.Len(t, res.Records, 2)
	assert.Equal(t, a, res.Records[0]["source"])

	res = run(t, drv, dialect.DeleteRelationships{Source: a, Type: "KNOWS", TargetLabel: "N", KeepIDs: []any{keep}})
	assert.Equal(t, 1, res.Counters.RelationshipsDeleted)
	assert.Len(t, drv.Relationships("KNOWS"), 1)

	// Empty type removes every type towards the target label.
	res = run(t, drv, dialect.DeleteRelationships{Source: a, Incoming: true, TargetLabel: "N"})
	assert.Equal(t, 1, res.Counters.RelationshipsDeleted)
	assert.Len(t, drv.Relationships(""), 1)
}

func TestRelationshipsWithPropertiesUpdateInPlace(t *testing.T) {
	t.Parallel()
	drv := New()
	a, b, _ := seed(t, drv)
	res := run(t, drv, dialect.CreateRelationshipsWithProperties{
		Type: "ACTED_IN",
		Rows: []dialect.RelationshipRow{{Source: a, Target: b, Properties: map[string]any{"role": "Neo"}}},
	})
	id := res.Records[0]["id"]
	run(t, drv, dialect.CreateRelationshipsWithProperties{
		Type: "ACTED_IN",
		Rows: []dialect.RelationshipRow{{Source: a, Target: b, ID: id, Properties: map[string]any{"role": "Thomas"}}},
	})
	rels := drv.Relationships("ACTED_IN")
	require.Len(t, rels, 1)
	assert.Equal(t, "Thomas", rels[0].Properties["role"])
}

func TestMatchFetchAndDelete(t *testing.T) {
	t.Parallel()
	drv := New(WithElementIDs())
	a, b, _ := seed(t, drv)
	assert.IsType(t, "", a)
	run(t, drv, dialect.CreateRelationships{Type: "KNOWS", Rows: []dialect.RelationshipRow{{Source: a, Target: b}}})

	res := run(t, drv, dialect.MatchRoots{Label: "N", Conditions: map[string]any{"name": "b"}})
	require.Len(t, res.Records, 1)
	assert.Equal(t, b, res.Records[0]["id"])
	res = run(t, drv, dialect.MatchRoots{Label: "N", IDs: []any{a}})
	assert.Len(t, res.Records, 1)

	rel := drv.Relationships("")[0]
	res = run(t, drv, dialect.FetchGraph{NodeIDs: []any{a, b}, RelationshipIDs: []any{rel.ID}})
	require.Len(t, res.Records, 3)
	assert.Equal(t, "relationship", res.Records[2]["kind"])
	assert.Equal(t, a, res.Records[2]["start"])

	res = run(t, drv, dialect.Count{Label: "N"})
	n, _ := res.Records[0].Int64("count")
	assert.Equal(t, int64(3), n)

	res = run(t, drv, dialect.DeleteNodes{Label: "N", IDs: []any{a}})
	assert.Equal(t, 1, res.Counters.NodesDeleted)
	assert.Equal(t, 1, res.Counters.RelationshipsDeleted)

	res = run(t, drv, dialect.DeleteAll{Label: "N"})
	assert.Equal(t, 2, res.Counters.NodesDeleted)
	assert.Empty(t, drv.Nodes(""))
}

func TestDeleteNodeVersion(t *testing.T) {
	t.Parallel()
	drv := New()
	ref := dialect.NodeRef{Label: "Doc", IDProperty: "key", ID: "a"}
	run(t, drv, dialect.SaveNode{Node: ref, Labels: []string{"Doc"}, VersionProperty: "version"})
	res := run(t, drv, dialect.DeleteNode{Node: ref, VersionProperty: "version", Version: 5})
	assert.Zero(t, res.Counters.NodesDeleted)
	res = run(t, drv, dialect.DeleteNode{Node: ref, VersionProperty: "version", Version: 1})
	assert.Equal(t, 1, res.Counters.NodesDeleted)
}

func TestTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	drv := New()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	run(t, tx, dialect.SaveNode{Node: dialect.NodeRef{Label: "N"}, Labels: []string{"N"}})
	assert.Empty(t, drv.Nodes(""), "uncommitted writes are invisible")
	require.NoError(t, tx.Rollback())
	assert.Empty(t, drv.Nodes(""))
	_, err = tx.Run(ctx, dialect.Count{Label: "N"})
	require.Error(t, err)

	tx, err = drv.Tx(ctx)
	require.NoError(t, err)
	run(t, tx, dialect.SaveNode{Node: dialect.NodeRef{Label: "N"}, Labels: []string{"N"}})
	require.NoError(t, tx.Commit())
	assert.Len(t, drv.Nodes("N"), 1)
	require.Error(t, tx.Commit())
}

func TestHistoryAndFault(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	drv := New(WithFault(func(s dialect.Statement) error {
		if s.Op() == dialect.OpCount {
			return boom
		}
		return nil
	}))
	run(t, drv, dialect.SaveNode{Node: dialect.NodeRef{Label: "N"}, Labels: []string{"N"}})
	_, err := drv.Run(context.Background(), dialect.Count{Label: "N"})
	require.ErrorIs(t, err, boom)
	assert.Len(t, drv.Statements(), 2)
	assert.Equal(t, 1, drv.CountOps(dialect.OpSaveNode))
	drv.ResetStatements()
	assert.Empty(t, drv.Statements())
	assert.Len(t, drv.Nodes(""), 1)
	drv.Reset()
	assert.Empty(t, drv.Nodes(""))
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Run(ctx, dialect.Count{})
	require.ErrorIs(t, err, context.Canceled)
}
