// Package memory provides an embedded, in-process property graph driver.
// It interprets statements directly and records them, which makes it the
// default store for tests and the demo command.
package memory

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/syssam/velox-ogm/dialect"
)

// Option configures a Driver.
type Option func(*Driver)

// WithElementIDs makes the driver expose string element identifiers
// instead of integer identifiers.
func WithElementIDs() Option {
	return func(d *Driver) { d.elementIDs = true }
}

// WithLogger sets the logger used for statement tracing.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithFault installs a hook called before every statement. A non-nil
// error fails the statement without applying it.
func WithFault(fn func(dialect.Statement) error) Option {
	return func(d *Driver) { d.fault = fn }
}

// Driver is an in-memory dialect.Driver. It is safe for concurrent use;
// statements are applied one at a time.
type Driver struct {
	mu         sync.Mutex
	g          *graph
	elementIDs bool
	log        *zap.Logger
	history    []dialect.Statement
	fault      func(dialect.Statement) error
}

// New returns an empty in-memory store.
func New(opts ...Option) *Driver {
	d := &Driver{log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	d.g = newGraph(d.elementIDs)
	return d
}

// Run implements dialect.ExecQuerier.
func (d *Driver) Run(ctx context.Context, stmt dialect.Statement) (*dialect.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runLocked(d.g, stmt)
}

func (d *Driver) runLocked(g *graph, stmt dialect.Statement) (*dialect.Result, error) {
	d.history = append(d.history, stmt)
	if d.fault != nil {
		if err := d.fault(stmt); err != nil {
			return nil, err
		}
	}
	res, err := g.exec(stmt)
	if err != nil {
		return nil, err
	}
	d.log.Debug("statement applied",
		zap.Stringer("op", stmt.Op()),
		zap.Int("records", len(res.Records)),
		zap.Stringer("counters", res.Counters),
	)
	return res, nil
}

// Tx starts a transaction working on a snapshot of the graph. Commit
// replaces the stored graph with the snapshot.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return &Tx{drv: d, g: d.g.clone()}, nil
}

// Close implements dialect.Driver.
func (*Driver) Close() error { return nil }

// Dialect implements dialect.Driver.
func (*Driver) Dialect() string { return dialect.Memory }

// Statements returns the statements run so far, in order.
func (d *Driver) Statements() []dialect.Statement {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.history)
}

// CountOps returns how many statements of kind op were run.
func (d *Driver) CountOps(op dialect.Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.history {
		if s.Op() == op {
			n++
		}
	}
	return n
}

// ResetStatements clears the statement history and keeps the graph.
func (d *Driver) ResetStatements() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
}

// Reset clears the graph and the statement history.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
	d.g = newGraph(d.elementIDs)
}

// NodeView is a read-only copy of a stored node.
type NodeView struct {
	ID         any
	Labels     []string
	Properties map[string]any
}

// RelationshipView is a read-only copy of a stored relationship.
type RelationshipView struct {
	ID         any
	Type       string
	Start, End any
	Properties map[string]any
}

// Nodes returns the stored nodes carrying label, or all nodes when label
// is empty, in creation order.
func (d *Driver) Nodes(label string) []NodeView {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []NodeView
	for _, id := range d.g.sortedNodes() {
		n := d.g.nodes[id]
		if !n.hasLabel(label) {
			continue
		}
		out = append(out, NodeView{
			ID:         d.g.nodeID(n),
			Labels:     slices.Clone(n.labels),
			Properties: cloneProps(n.props),
		})
	}
	return out
}

// Relationships returns the stored relationships of type typ, or all of
// them when typ is empty, in creation order.
func (d *Driver) Relationships(typ string) []RelationshipView {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []RelationshipView
	for _, id := range d.g.sortedRels() {
		r := d.g.rels[id]
		if typ != "" && r.typ != typ {
			continue
		}
		out = append(out, RelationshipView{
			ID:         d.g.relID(r),
			Type:       r.typ,
			Start:      d.g.nodeID(d.g.nodes[r.start]),
			End:        d.g.nodeID(d.g.nodes[r.end]),
			Properties: cloneProps(r.props),
		})
	}
	return out
}

func cloneProps(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Tx is a memory transaction.
type Tx struct {
	drv  *Driver
	g    *graph
	done bool
}

// Run implements dialect.ExecQuerier.
func (tx *Tx) Run(ctx context.Context, stmt dialect.Statement) (*dialect.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx.drv.mu.Lock()
	defer tx.drv.mu.Unlock()
	if tx.done {
		return nil, errTxDone
	}
	return tx.drv.runLocked(tx.g, stmt)
}

// Commit publishes the transaction graph. The last commit wins.
func (tx *Tx) Commit() error {
	tx.drv.mu.Lock()
	defer tx.drv.mu.Unlock()
	if tx.done {
		return errTxDone
	}
	tx.done = true
	tx.drv.g = tx.g
	return nil
}

// Rollback discards the transaction graph.
func (tx *Tx) Rollback() error {
	tx.drv.mu.Lock()
	defer tx.drv.mu.Unlock()
	if tx.done {
		return errTxDone
	}
	tx.done = true
	tx.g = nil
	return nil
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)
