package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox-ogm/dialect"
)

func TestRender(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		stmt   dialect.Statement
		text   string
		params map[string]any
	}{
		{
			name: "create",
			stmt: dialect.SaveNode{
				Node:       dialect.NodeRef{Label: "Team"},
				Labels:     []string{"Team", "Club"},
				Properties: map[string]any{"name": "A"},
			},
			text:   "CREATE (n:`Team`:`Club`) SET n += $props RETURN id(n) AS id",
			params: map[string]any{"props": map[string]any{"name": "A"}},
		},
		{
			name: "update by store id",
			stmt: dialect.SaveNode{
				Node:   dialect.NodeRef{Label: "Team", ID: int64(7)},
				Labels: []string{"Team"},
			},
			text:   "MATCH (n) WHERE id(n) = $id SET n += $props SET n:`Team` RETURN id(n) AS id",
			params: map[string]any{"id": int64(7), "props": map[string]any{}},
		},
		{
			name: "merge versioned with label delta",
			stmt: dialect.SaveNode{
				Node:            dialect.NodeRef{Label: "Doc", IDProperty: "key", ID: "a"},
				Labels:          []string{"Doc"},
				VersionProperty: "version",
				Version:         3,
				RemoveLabels:    []string{"Old"},
				AddLabels:       []string{"New"},
			},
			text: "MERGE (n:`Doc` {`key`: $id}) WITH n WHERE coalesce(n.`version`, 0) = $version" +
				" SET n += $props, n.`key` = $id, n.`version` = $version + 1 SET n:`Doc`" +
				" REMOVE n:`Old` SET n:`New` RETURN id(n) AS id, n.`version` AS version",
			params: map[string]any{"id": "a", "version": int64(3), "props": map[string]any{}},
		},
		{
			name: "read labels",
			stmt: dialect.ReadLabels{Node: dialect.NodeRef{ID: int64(1)}, Exclude: []string{"Team"}},
			text: "MATCH (n) WHERE id(n) = $id RETURN [l IN labels(n) WHERE NOT l IN $exclude] AS labels",
			params: map[string]any{"id": int64(1), "exclude": []string{"Team"}},
		},
		{
			name:   "delete relationships of any type",
			stmt:   dialect.DeleteRelationships{Source: int64(1), Incoming: true, TargetLabel: "Player"},
			text:   "MATCH (s)<-[r]-(t:`Player`) WHERE id(s) = $source AND NOT id(r) IN $keep DELETE r",
			params: map[string]any{"source": int64(1), "keep": []any{}},
		},
		{
			name: "match roots",
			stmt: dialect.MatchRoots{Label: "Team", Conditions: map[string]any{"name": "A", "city": "B"}},
			text: "MATCH (n:`Team`) WHERE n.`city` = $c0 AND n.`name` = $c1 RETURN id(n) AS id",
			params: map[string]any{"c0": "B", "c1": "A"},
		},
		{
			name:   "expand",
			stmt:   dialect.Expand{Sources: []any{int64(1)}, Types: []string{"A", "B"}, TargetLabel: "P"},
			text:   "MATCH (s)-[r:`A`|`B`]->(t:`P`) WHERE id(s) IN $sources RETURN id(s) AS source, id(r) AS relationshipId, id(t) AS relatedNodeId",
			params: map[string]any{"sources": []any{int64(1)}},
		},
		{
			name:   "count",
			stmt:   dialect.Count{Label: "Team"},
			text:   "MATCH (n:`Team`) RETURN count(n) AS count",
			params: nil,
		},
		{
			name:   "delete nodes by property",
			stmt:   dialect.DeleteNodes{Label: "Doc", IDProperty: "key", IDs: []any{"a"}},
			text:   "MATCH (n:`Doc`) WHERE n.`key` IN $ids DETACH DELETE n",
			params: map[string]any{"ids": []any{"a"}},
		},
		{
			name: "delete versioned node",
			stmt: dialect.DeleteNode{Node: dialect.NodeRef{ID: int64(2)}, VersionProperty: "version", Version: 1},
			text: "MATCH (n) WHERE id(n) = $id WITH n WHERE coalesce(n.`version`, 0) = $version DETACH DELETE n",
			params: map[string]any{"id": int64(2), "version": int64(1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Renderer{}.Render(tt.stmt)
			require.NoError(t, err)
			assert.Equal(t, tt.text, q.Text)
			assert.Equal(t, tt.params, q.Params)
		})
	}
}

func TestRenderElementIDs(t *testing.T) {
	t.Parallel()
	q, err := Renderer{ElementIDs: true}.Render(dialect.LoadNode{Node: dialect.NodeRef{ID: "4:abc:1"}})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n) WHERE elementId(n) = $id RETURN elementId(n) AS id", q.Text)
}

func TestRenderRelationships(t *testing.T) {
	t.Parallel()
	q, err := Renderer{}.Render(dialect.CreateRelationships{
		Type: "HAS_PLAYER",
		Rows: []dialect.RelationshipRow{{Source: int64(1), Target: int64(2)}},
	})
	require.NoError(t, err)
	assert.Contains(t, q.Text, "CREATE (s)-[r:`HAS_PLAYER`]->(t)")
	rows := q.Params["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].(map[string]any)["target"])

	q, err = Renderer{}.Render(dialect.CreateRelationships{
		Incoming: true,
		Rows:     []dialect.RelationshipRow{{Source: int64(1), Target: int64(2), Type: "LIKES"}},
	})
	require.NoError(t, err)
	assert.Contains(t, q.Text, "CREATE (s)<-[r:$(row.type)]-(t)")

	q, err = Renderer{}.Render(dialect.CreateRelationshipsWithProperties{
		Type: "ACTED_IN",
		Rows: []dialect.RelationshipRow{{Source: int64(1), Target: int64(2), ID: int64(9), Properties: map[string]any{"role": "Neo"}}},
	})
	require.NoError(t, err)
	assert.Contains(t, q.Text, "SET existing = row.properties")
	assert.Contains(t, q.Text, "CREATE (s)-[r:`ACTED_IN`]->(t) SET r = row.properties")

	q, err = Renderer{}.Render(dialect.FetchGraph{NodeIDs: []any{int64(1)}})
	require.NoError(t, err)
	assert.Contains(t, q.Text, "UNION ALL")
	assert.Equal(t, []any{}, q.Params["relationshipIds"])
}

func TestQuote(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "`a``b`", Quote("a`b"))
}

type bogus struct{}

func (bogus) Op() dialect.Op { return 0 }

func TestRenderUnsupported(t *testing.T) {
	t.Parallel()
	_, err := Renderer{}.Render(bogus{})
	require.Error(t, err)
}
