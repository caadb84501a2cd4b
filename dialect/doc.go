// Package dialect defines the store boundary of the graph mapper.
//
// The engines never build query text. They describe each round trip as a
// typed Statement (SaveNode, CreateRelationships, Expand, ...) and hand it
// to an ExecQuerier. Drivers either render the statement into a query
// language (dialect/neo4j renders Cypher through package cypher) or
// interpret it against their own storage (dialect/memory,
// dialect/sql/sqlgraph).
//
// # Supported Dialects
//
//	dialect.Neo4j    = "neo4j"
//	dialect.Memory   = "memory"
//	dialect.SQLite   = "sqlite"
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//
// # Driver Interface
//
//	type Driver interface {
//	    Run(ctx context.Context, stmt Statement) (*Result, error)
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// Identifiers returned in records ("id", "relationshipId", ...) are opaque
// to the engines: int64 for stores exposing numeric identifiers, string for
// stores exposing element identifiers.
//
// # Decorators
//
// StatsDriver counts statements and exports them as prometheus metrics,
// DebugDriver logs every statement with zap, and TraceDriver opens one
// OpenTelemetry span per round trip. All three wrap any Driver:
//
//	drv := dialect.NewTraceDriver(dialect.NewStatsDriver(memory.New()))
package dialect
