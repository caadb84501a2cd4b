// Package client ties the save and load engines to one store connection.
//
//	c, err := client.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	team, err := c.Save(ctx, &Team{Name: "Ajax"})
//
// Every operation of Client is also available on Tx, which runs the same
// engines against a store transaction.
package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/callback"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/graph"
	"github.com/syssam/velox-ogm/hydrate"
	"github.com/syssam/velox-ogm/persist"
	"github.com/syssam/velox-ogm/scheduler"
	"github.com/syssam/velox-ogm/schema"
)

// options holds the configuration of the client.
type options struct {
	driver    dialect.Driver
	registry  *schema.Registry
	runner    scheduler.Runner
	callbacks *callback.Callbacks
	log       *zap.Logger
	debug     bool
}

// Option function to configure the client.
type Option func(*options)

// Driver sets the driver for the client.
func Driver(drv dialect.Driver) Option {
	return func(o *options) { o.driver = drv }
}

// Registry sets the entity registry. Defaults to schema.Default.
func Registry(r *schema.Registry) Option {
	return func(o *options) { o.registry = r }
}

// Runner sets the scheduling model of both engines.
func Runner(r scheduler.Runner) Option {
	return func(o *options) { o.runner = r }
}

// Callbacks sets the lifecycle callbacks run by both engines.
func Callbacks(cb *callback.Callbacks) Option {
	return func(o *options) { o.callbacks = cb }
}

// Log sets the logger.
func Log(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// Debug enables logging of every statement.
func Debug() Option {
	return func(o *options) { o.debug = true }
}

// Client is the entry point to a graph store.
type Client struct {
	ops
	options
	stats *dialect.StatsDriver
	level *zap.AtomicLevel
}

// NewClient creates a new client configured with the given options. A
// driver is required.
func NewClient(opts ...Option) (*Client, error) {
	o := options{
		registry:  schema.Default,
		runner:    scheduler.Blocking{},
		callbacks: &callback.Callbacks{},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver == nil {
		return nil, fmt.Errorf("client: missing driver")
	}
	if o.debug {
		o.driver = dialect.NewDebugDriver(o.driver, o.log)
	}
	c := &Client{options: o}
	c.ops = ops{
		save: persist.New(o.driver,
			persist.WithRegistry(o.registry),
			persist.WithRunner(o.runner),
			persist.WithCallbacks(o.callbacks),
			persist.WithLogger(o.log.Named("persist")),
		),
		load: hydrate.New(o.driver,
			hydrate.WithRegistry(o.registry),
			hydrate.WithRunner(o.runner),
			hydrate.WithCallbacks(o.callbacks),
			hydrate.WithLogger(o.log.Named("hydrate")),
		),
	}
	return c, nil
}

// Dialect returns the dialect of the store.
func (c *Client) Dialect() string { return c.driver.Dialect() }

// Callbacks returns the callbacks run by the client, to register more.
func (c *Client) Callbacks() *callback.Callbacks { return c.callbacks }

// Stats returns the statement statistics, or false when the client was
// opened without them.
func (c *Client) Stats() (dialect.StatsSnapshot, bool) {
	if c.stats == nil {
		return dialect.StatsSnapshot{}, false
	}
	return c.stats.QueryStats().Stats(), true
}

// Close closes the store connection.
func (c *Client) Close() error {
	return c.driver.Close()
}

// Tx returns a new transactional client.
func (c *Client) Tx(ctx context.Context) (*Tx, error) {
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: starting a transaction: %w", err)
	}
	return &Tx{
		ops: ops{save: c.save.On(tx), load: c.load.On(tx)},
		tx:  tx,
	}, nil
}

// WithTx runs fn within a transaction. If fn returns an error or panics
// the transaction is rolled back, otherwise it is committed.
func WithTx(ctx context.Context, c *Client, fn func(tx *Tx) error) error {
	tx, err := c.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		return ogm.NewRollbackError(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Tx is a transactional client. It must be finished with Commit or
// Rollback.
type Tx struct {
	ops
	tx dialect.Tx
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.tx.Commit() }

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error { return tx.tx.Rollback() }

// ops are the operations shared by Client and Tx.
type ops struct {
	save *persist.Engine
	load *hydrate.Engine
}

// Save writes entity and everything reachable from it, and returns the
// persisted instance.
func (o ops) Save(ctx context.Context, entity any, opts ...persist.SaveOption) (any, error) {
	return o.save.Save(ctx, entity, opts...)
}

// SaveAll writes entities and returns the persisted instances in order.
func (o ops) SaveAll(ctx context.Context, entities []any, opts ...persist.SaveOption) ([]any, error) {
	return o.save.SaveAll(ctx, entities, opts...)
}

// Delete removes the node of entity with its relationships.
func (o ops) Delete(ctx context.Context, entity any) error {
	return o.save.Delete(ctx, entity)
}

// DeleteByID removes the node of type typ with identifier id.
func (o ops) DeleteByID(ctx context.Context, typ, id any) error {
	return o.save.DeleteByID(ctx, typ, id)
}

// DeleteByIDWithVersion removes the node of type typ with identifier id if
// its stored version is version.
func (o ops) DeleteByIDWithVersion(ctx context.Context, typ, id any, version int64) error {
	return o.save.DeleteByIDWithVersion(ctx, typ, id, version)
}

// DeleteAllByID removes the nodes of type typ with the given identifiers.
func (o ops) DeleteAllByID(ctx context.Context, typ any, ids []any) error {
	return o.save.DeleteAllByID(ctx, typ, ids)
}

// DeleteAll removes every node of type typ.
func (o ops) DeleteAll(ctx context.Context, typ any) error {
	return o.save.DeleteAll(ctx, typ)
}

// Count returns the number of nodes of type typ.
func (o ops) Count(ctx context.Context, typ any) (int64, error) {
	return o.save.Count(ctx, typ)
}

// FindByID loads the entity of type typ with identifier id.
func (o ops) FindByID(ctx context.Context, typ, id any, f graph.Filter) (any, error) {
	return o.load.FindByID(ctx, typ, id, f)
}

// FindAll loads the entities of type typ selected by m.
func (o ops) FindAll(ctx context.Context, typ any, m hydrate.Match, f graph.Filter) ([]any, error) {
	return o.load.Find(ctx, typ, m, f)
}

// LoadGraph returns the identifiers of the graph rooted at the entities of
// type typ selected by m without fetching it.
func (o ops) LoadGraph(ctx context.Context, typ any, m hydrate.Match, f graph.Filter) (*hydrate.Inputs, error) {
	ent, err := o.save.Registry().Entity(typ)
	if err != nil {
		return nil, err
	}
	return o.load.LoadGraph(ctx, ent, m, f)
}

// Finder is implemented by Client and Tx.
type Finder interface {
	FindByID(ctx context.Context, typ, id any, f graph.Filter) (any, error)
	FindAll(ctx context.Context, typ any, m hydrate.Match, f graph.Filter) ([]any, error)
}

// Get is the typed form of FindByID.
func Get[T any](ctx context.Context, c Finder, id any, f graph.Filter) (*T, error) {
	v, err := c.FindByID(ctx, (*T)(nil), id, f)
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// All is the typed form of FindAll.
func All[T any](ctx context.Context, c Finder, m hydrate.Match, f graph.Filter) ([]*T, error) {
	vs, err := c.FindAll(ctx, (*T)(nil), m, f)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(vs))
	for i, v := range vs {
		out[i] = v.(*T)
	}
	return out, nil
}
