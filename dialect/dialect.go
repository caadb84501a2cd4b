package dialect

import (
	"context"
	"fmt"
	"reflect"
)

// Dialect names for supported stores.
const (
	Neo4j    = "neo4j"
	Memory   = "memory"
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier runs one statement against the store. Every call is a single
// round trip.
type ExecQuerier interface {
	Run(ctx context.Context, stmt Statement) (*Result, error)
}

// Driver is the interface that wraps all necessary operations for store clients.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Commit and Rollback methods.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Record is one row returned by a statement.
type Record map[string]any

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// Int64 returns the value under key converted to int64.
func (r Record) Int64(key string) (int64, bool) {
	return ToInt64(r[key])
}

// Int returns the value under key converted to int.
func (r Record) Int(key string) (int, bool) {
	n, ok := ToInt64(r[key])
	return int(n), ok
}

// Strings returns the value under key as a string slice.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Properties returns the value under key as a property map.
func (r Record) Properties(key string) map[string]any {
	if m, ok := r[key].(map[string]any); ok {
		return m
	}
	return nil
}

// Counters summarize the changes applied by a statement.
type Counters struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	LabelsAdded          int
	LabelsRemoved        int
}

// Add accumulates o into c.
func (c *Counters) Add(o Counters) {
	c.NodesCreated += o.NodesCreated
	c.NodesDeleted += o.NodesDeleted
	c.RelationshipsCreated += o.RelationshipsCreated
	c.RelationshipsDeleted += o.RelationshipsDeleted
	c.PropertiesSet += o.PropertiesSet
	c.LabelsAdded += o.LabelsAdded
	c.LabelsRemoved += o.LabelsRemoved
}

// String returns the summary logged after writes.
func (c Counters) String() string {
	return fmt.Sprintf("created %d and deleted %d nodes, created %d and deleted %d relationships and set %d properties",
		c.NodesCreated, c.NodesDeleted, c.RelationshipsCreated, c.RelationshipsDeleted, c.PropertiesSet)
}

// Result is returned by ExecQuerier.Run.
type Result struct {
	Records  []Record
	Counters Counters
}

// Single returns the first record, if any.
func (r *Result) Single() (Record, bool) {
	if r == nil || len(r.Records) == 0 {
		return nil, false
	}
	return r.Records[0], true
}

// ToInt64 converts the numeric kinds returned by the supported stores.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// ValuesEqual compares property values as stores do, treating all
// numeric kinds alike.
func ValuesEqual(a, b any) bool {
	_, fa := a.(float64)
	_, fb := b.(float64)
	if !fa && !fb {
		if x, ok := ToInt64(a); ok {
			y, ok := ToInt64(b)
			return ok && x == y
		}
	}
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if n, ok := ToInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

// NormalizeID makes identifiers returned by stores usable as map keys:
// integers become int64, named string types become string.
func NormalizeID(v any) any {
	switch v.(type) {
	case nil, string, int64, float32, float64:
		return v
	}
	if n, ok := ToInt64(v); ok {
		return n
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}
