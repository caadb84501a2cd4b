// Package schema describes the tables backing the SQL graph store and
// renders their DDL for each supported dialect.
package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/velox-ogm/dialect"
)

// ColumnType is a portable column type.
type ColumnType int

// Column types used by the graph tables.
const (
	TypeSerial ColumnType = iota + 1 // auto incremented primary key
	TypeInt
	TypeKey  // short indexed string
	TypeText // unbounded string
	TypeBlob
)

// Column is a table column.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Unique   bool
}

// Index is a secondary index.
type Index struct {
	Name    string
	Columns []string
}

// Table is a table definition.
type Table struct {
	Name       string
	Columns    []*Column
	PrimaryKey *Column
	Indexes    []*Index
}

// Names of the graph tables before any prefix is applied.
const (
	NodesTable         = "ogm_nodes"
	RelationshipsTable = "ogm_relationships"
)

// GraphTables returns the node and relationship tables, their names
// prefixed with prefix.
func GraphTables(prefix string) (nodes, rels *Table) {
	nid := &Column{Name: "id", Type: TypeSerial}
	nodes = &Table{
		Name: prefix + NodesTable,
		Columns: []*Column{
			nid,
			{Name: "element_id", Type: TypeKey, Unique: true},
			{Name: "labels", Type: TypeText},
			{Name: "props", Type: TypeBlob, Nullable: true},
		},
		PrimaryKey: nid,
	}
	rid := &Column{Name: "id", Type: TypeSerial}
	rels = &Table{
		Name: prefix + RelationshipsTable,
		Columns: []*Column{
			rid,
			{Name: "element_id", Type: TypeKey, Unique: true},
			{Name: "type", Type: TypeKey},
			{Name: "start_id", Type: TypeInt},
			{Name: "end_id", Type: TypeInt},
			{Name: "props", Type: TypeBlob, Nullable: true},
		},
		PrimaryKey: rid,
		Indexes: []*Index{
			{Name: prefix + RelationshipsTable + "_start", Columns: []string{"start_id"}},
			{Name: prefix + RelationshipsTable + "_end", Columns: []string{"end_id"}},
		},
	}
	return nodes, rels
}

func columnType(d string, t ColumnType) string {
	switch d {
	case dialect.Postgres:
		switch t {
		case TypeSerial:
			return "BIGSERIAL"
		case TypeInt:
			return "BIGINT"
		case TypeKey:
			return "VARCHAR(255)"
		case TypeText:
			return "TEXT"
		case TypeBlob:
			return "BYTEA"
		}
	case dialect.MySQL:
		switch t {
		case TypeSerial:
			return "BIGINT AUTO_INCREMENT"
		case TypeInt:
			return "BIGINT"
		case TypeKey:
			return "VARCHAR(255)"
		case TypeText:
			return "TEXT"
		case TypeBlob:
			return "LONGBLOB"
		}
	default:
		switch t {
		case TypeSerial, TypeInt:
			return "INTEGER"
		case TypeKey, TypeText:
			return "TEXT"
		case TypeBlob:
			return "BLOB"
		}
	}
	return ""
}

// CreateStatements returns the statements creating t in dialect d if it
// does not exist yet.
func (t *Table) CreateStatements(d string) ([]string, error) {
	if r := ValidateTable(t); r.HasErrors() {
		return nil, r.Err()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", t.Name)
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name + " " + columnType(d, c.Type))
		if c == t.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
			if d == dialect.SQLite && c.Type == TypeSerial {
				b.WriteString(" AUTOINCREMENT")
			}
			continue
		}
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.Unique {
			b.WriteString(" UNIQUE")
		}
	}
	// MySQL has no CREATE INDEX IF NOT EXISTS; indexes are declared inline.
	if d == dialect.MySQL {
		for _, idx := range t.Indexes {
			fmt.Fprintf(&b, ", INDEX %s (%s)", idx.Name, strings.Join(idx.Columns, ", "))
		}
	}
	b.WriteString(")")
	stmts := []string{b.String()}
	if d != dialect.MySQL {
		for _, idx := range t.Indexes {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				idx.Name, t.Name, strings.Join(idx.Columns, ", ")))
		}
	}
	return stmts, nil
}
