// Package sqlgraph stores a property graph in two SQL tables and
// implements dialect.Driver by interpreting statements against them.
// Node and relationship properties are encoded with msgpack.
package sqlgraph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/dialect/sql"
	"github.com/syssam/velox-ogm/dialect/sql/schema"
)

// Option configures a Driver.
type Option func(*Driver) error

// WithTablePrefix prefixes the graph table names.
func WithTablePrefix(prefix string) Option {
	return func(d *Driver) error {
		if prefix != "" && !sql.IsValidIdentifier(prefix) {
			return fmt.Errorf("sqlgraph: invalid table prefix %q", prefix)
		}
		d.prefix = prefix
		return nil
	}
}

// WithElementIDs exposes string element ids instead of integer ids.
func WithElementIDs() Option {
	return func(d *Driver) error {
		d.elementIDs = true
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) error {
		d.log = l
		return nil
	}
}

// Driver is a dialect.Driver over a SQL database.
type Driver struct {
	drv        *sql.Driver
	prefix     string
	elementIDs bool
	log        *zap.Logger
}

// NewDriver wraps drv.
func NewDriver(drv *sql.Driver, opts ...Option) (*Driver, error) {
	d := &Driver{drv: drv, log: zap.NewNop()}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Open opens a database with the given database/sql driver name and
// creates the graph tables if needed.
func Open(ctx context.Context, driverName, source string, opts ...Option) (*Driver, error) {
	drv, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	d, err := NewDriver(drv, opts...)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	if err := d.CreateTables(ctx); err != nil {
		_ = drv.Close()
		return nil, err
	}
	return d, nil
}

func (d *Driver) store(c conn) *store {
	nodes, rels := schema.GraphTables(d.prefix)
	return &store{c: c, nodes: nodes.Name, rels: rels.Name, elementIDs: d.elementIDs}
}

// CreateTables creates the graph tables and indexes if they do not exist.
func (d *Driver) CreateTables(ctx context.Context) error {
	nodes, rels := schema.GraphTables(d.prefix)
	for _, t := range []*schema.Table{nodes, rels} {
		stmts, err := t.CreateStatements(d.drv.Dialect())
		if err != nil {
			return err
		}
		for _, q := range stmts {
			if _, err := d.drv.Exec(ctx, q); err != nil {
				return fmt.Errorf("sqlgraph: create table %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

// Run implements dialect.ExecQuerier. Statements run outside a
// transaction are applied in their own transaction.
func (d *Driver) Run(ctx context.Context, stmt dialect.Statement) (*dialect.Result, error) {
	if !stmt.Op().IsWrite() {
		return d.run(ctx, d.store(d.drv), stmt)
	}
	tx, err := d.drv.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	res, err := d.run(ctx, d.store(tx), stmt)
	if err != nil {
		return nil, rollback(tx, err)
	}
	return res, tx.Commit()
}

func (d *Driver) run(ctx context.Context, s *store, stmt dialect.Statement) (*dialect.Result, error) {
	res, err := s.exec(ctx, stmt)
	if err != nil {
		return nil, err
	}
	d.log.Debug("statement applied", zap.Stringer("op", stmt.Op()), zap.Stringer("counters", res.Counters))
	return res, nil
}

// Tx starts a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.drv.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{drv: d, tx: tx, s: d.store(tx)}, nil
}

// Close closes the database.
func (d *Driver) Close() error { return d.drv.Close() }

// Dialect returns the SQL dialect name.
func (d *Driver) Dialect() string { return d.drv.Dialect() }

// Tx is a SQL graph transaction.
type Tx struct {
	drv *Driver
	tx  *sql.Tx
	s   *store
}

// Run implements dialect.ExecQuerier.
func (tx *Tx) Run(ctx context.Context, stmt dialect.Statement) (*dialect.Result, error) {
	return tx.drv.run(ctx, tx.s, stmt)
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.tx.Commit() }

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error { return tx.tx.Rollback() }

// rollback calls tx.Rollback and joins its failure to err.
func rollback(tx *sql.Tx, err error) error {
	return ogm.NewRollbackError(err, tx.Rollback())
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)
