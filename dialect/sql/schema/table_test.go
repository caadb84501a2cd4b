package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox-ogm/dialect"
)

func TestCreateStatements(t *testing.T) {
	nodes, rels := GraphTables("")
	stmts, err := nodes.CreateStatements(dialect.SQLite)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE TABLE IF NOT EXISTS ogm_nodes (id INTEGER PRIMARY KEY AUTOINCREMENT, element_id TEXT NOT NULL UNIQUE, labels TEXT NOT NULL, props BLOB)",
	}, stmts)

	stmts, err = rels.CreateStatements(dialect.Postgres)
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS ogm_relationships (id BIGSERIAL PRIMARY KEY, element_id VARCHAR(255) NOT NULL UNIQUE, "+
		"type VARCHAR(255) NOT NULL, start_id BIGINT NOT NULL, end_id BIGINT NOT NULL, props BYTEA)", stmts[0])
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS ogm_relationships_start ON ogm_relationships (start_id)", stmts[1])

	stmts, err = rels.CreateStatements(dialect.MySQL)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "id BIGINT AUTO_INCREMENT PRIMARY KEY")
	assert.Contains(t, stmts[0], ", INDEX ogm_relationships_end (end_id))")
}

func TestGraphTablesPrefix(t *testing.T) {
	nodes, rels := GraphTables("app_")
	assert.Equal(t, "app_ogm_nodes", nodes.Name)
	assert.Equal(t, "app_ogm_relationships", rels.Name)
	assert.False(t, ValidateSchema([]*Table{nodes, rels}).HasErrors())
}

func TestValidateTable(t *testing.T) {
	tbl := &Table{
		Name:    "bad name",
		Columns: []*Column{{Name: "a"}, {Name: "a"}},
		Indexes: []*Index{{Name: "i", Columns: []string{"b"}}, {Name: "i"}},
	}
	r := ValidateTable(tbl)
	assert.True(t, r.HasErrors())
	assert.True(t, r.HasWarnings())
	assert.Len(t, r.Errors, 4)
	require.Error(t, r.Err())
	assert.Contains(t, r.String(), "duplicate column name")

	_, err := tbl.CreateStatements(dialect.SQLite)
	require.Error(t, err)

	nodes, _ := GraphTables("")
	r = ValidateSchema([]*Table{nodes, nodes})
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "ogm_nodes: duplicate table name", r.Errors[0].Error())
	assert.Equal(t, "No issues found", ValidateTable(nodes).String())
}
