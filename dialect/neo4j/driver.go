// Package neo4j implements dialect.Driver on top of the official Neo4j Go
// driver. Statements are rendered with package cypher and run in one
// session per round trip, or in an explicit transaction.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/dialect/cypher"
)

// Option configures a Driver.
type Option func(*Driver)

// WithDatabase selects the target database; empty uses the server default.
func WithDatabase(name string) Option {
	return func(d *Driver) { d.database = name }
}

// WithElementIDs switches store identifiers to element ids (strings).
func WithElementIDs() Option {
	return func(d *Driver) { d.renderer.ElementIDs = true }
}

// WithLogger sets the logger used to trace rendered queries.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver is a dialect.Driver for Neo4j 5.
type Driver struct {
	drv      neo4j.DriverWithContext
	database string
	renderer cypher.Renderer
	log      *zap.Logger
}

// NewDriver wraps an existing Neo4j driver.
func NewDriver(drv neo4j.DriverWithContext, opts ...Option) *Driver {
	d := &Driver{drv: drv, log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open connects to uri with basic auth and verifies connectivity.
func Open(ctx context.Context, uri, user, password string, opts ...Option) (*Driver, error) {
	drv, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("dialect/neo4j: open %s: %w", uri, err)
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		_ = drv.Close(ctx)
		return nil, fmt.Errorf("dialect/neo4j: verify connectivity: %w", err)
	}
	return NewDriver(drv, opts...), nil
}

func (d *Driver) session(ctx context.Context, write bool) neo4j.SessionWithContext {
	mode := neo4j.AccessModeRead
	if write {
		mode = neo4j.AccessModeWrite
	}
	return d.drv.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: d.database})
}

// Run implements dialect.ExecQuerier.
func (d *Driver) Run(ctx context.Context, stmt dialect.Statement) (*dialect.Result, error) {
	q, err := d.renderer.Render(stmt)
	if err != nil {
		return nil, err
	}
	session := d.session(ctx, stmt.Op().IsWrite())
	defer session.Close(ctx)
	d.log.Debug("running cypher", zap.Stringer("op", stmt.Op()), zap.String("query", q.Text))
	result, err := session.Run(ctx, q.Text, q.Params)
	if err != nil {
		return nil, fmt.Errorf("dialect/neo4j: %s: %w", stmt.Op(), err)
	}
	return collect(ctx, result)
}

// Tx starts an explicit transaction on a write session.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	session := d.session(ctx, true)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, fmt.Errorf("dialect/neo4j: begin transaction: %w", err)
	}
	return &Tx{session: session, tx: tx, renderer: d.renderer, log: d.log}, nil
}

// Close closes the underlying driver.
func (d *Driver) Close() error {
	return d.drv.Close(context.Background())
}

// Dialect implements dialect.Driver.
func (*Driver) Dialect() string { return dialect.Neo4j }

// Tx is an explicit Neo4j transaction.
type Tx struct {
	session  neo4j.SessionWithContext
	tx       neo4j.ExplicitTransaction
	renderer cypher.Renderer
	log      *zap.Logger
}

// Run implements dialect.ExecQuerier.
func (tx *Tx) Run(ctx context.Context, stmt dialect.Statement) (*dialect.Result, error) {
	q, err := tx.renderer.Render(stmt)
	if err != nil {
		return nil, err
	}
	tx.log.Debug("running cypher", zap.Stringer("op", stmt.Op()), zap.String("query", q.Text))
	result, err := tx.tx.Run(ctx, q.Text, q.Params)
	if err != nil {
		return nil, fmt.Errorf("dialect/neo4j: %s: %w", stmt.Op(), err)
	}
	return collect(ctx, result)
}

// Commit commits the transaction and closes its session.
func (tx *Tx) Commit() error {
	ctx := context.Background()
	defer tx.session.Close(ctx)
	return tx.tx.Commit(ctx)
}

// Rollback rolls the transaction back and closes its session.
func (tx *Tx) Rollback() error {
	ctx := context.Background()
	defer tx.session.Close(ctx)
	return tx.tx.Rollback(ctx)
}

// cursor is the part of neo4j.ResultWithContext read by collect.
type cursor interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
	Consume(ctx context.Context) (neo4j.ResultSummary, error)
}

// collect drains c into a Result.
func collect(ctx context.Context, c cursor) (*dialect.Result, error) {
	res := &dialect.Result{}
	for c.Next(ctx) {
		rec := c.Record()
		r := make(dialect.Record, len(rec.Keys))
		for i, k := range rec.Keys {
			r[k] = rec.Values[i]
		}
		res.Records = append(res.Records, r)
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	summary, err := c.Consume(ctx)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		res.Counters = counters(summary.Counters())
	}
	return res, nil
}

func counters(c neo4j.Counters) dialect.Counters {
	if c == nil {
		return dialect.Counters{}
	}
	return dialect.Counters{
		NodesCreated:         c.NodesCreated(),
		NodesDeleted:         c.NodesDeleted(),
		RelationshipsCreated: c.RelationshipsCreated(),
		RelationshipsDeleted: c.RelationshipsDeleted(),
		PropertiesSet:        c.PropertiesSet(),
		LabelsAdded:          c.LabelsAdded(),
		LabelsRemoved:        c.LabelsRemoved(),
	}
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
	_ cursor         = (neo4j.ResultWithContext)(nil)
)
