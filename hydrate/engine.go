// Package hydrate loads entity graphs from a property graph store.
//
// Loading happens in three steps. LoadGraph walks the store breadth first
// over identifier sets only, starting at the matched roots, and stops when
// a level discovers no node it has not seen; cycles therefore terminate
// without any object level bookkeeping. Fetch reads exactly the collected
// nodes and relationships with one statement, and Assemble maps them into
// connected instances, one instance per node.
package hydrate

import (
	"context"

	"go.uber.org/zap"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/callback"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/graph"
	"github.com/syssam/velox-ogm/scheduler"
	"github.com/syssam/velox-ogm/schema"
)

// Engine loads entities. It is safe for concurrent use.
type Engine struct {
	ex        dialect.ExecQuerier
	registry  *schema.Registry
	runner    scheduler.Runner
	callbacks *callback.Callbacks
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the entity registry. Defaults to schema.Default.
func WithRegistry(r *schema.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithRunner sets the scheduling model. Defaults to scheduler.Blocking.
func WithRunner(r scheduler.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithCallbacks sets the lifecycle callbacks run on loaded instances.
func WithCallbacks(c *callback.Callbacks) Option {
	return func(e *Engine) { e.callbacks = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an engine reading from ex.
func New(ex dialect.ExecQuerier, opts ...Option) *Engine {
	e := &Engine{
		ex:       ex,
		registry: schema.Default,
		runner:   scheduler.Blocking{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// On returns a copy of the engine reading from ex, typically a transaction.
func (e *Engine) On(ex dialect.ExecQuerier) *Engine {
	c := *e
	c.ex = ex
	return &c
}

// Match selects root nodes. Conditions compare node properties for
// equality; IDs, if non-nil, restricts the roots to these store ids.
type Match struct {
	Conditions map[string]any
	IDs        []any
}

// Find loads the entities of type typ selected by m together with the
// associations accepted by f, and returns them as pointers in root order.
// Shapes that may contain a cycle are loaded with LoadGraph, others with
// LoadTree.
func (e *Engine) Find(ctx context.Context, typ any, m Match, f graph.Filter) ([]any, error) {
	ent, err := e.registry.Entity(typ)
	if err != nil {
		return nil, err
	}
	var in *Inputs
	if graph.HasPossibleCycle(ent, f) {
		in, err = e.LoadGraph(ctx, ent, m, f)
	} else {
		in, err = e.LoadTree(ctx, ent, m, f)
	}
	if err != nil {
		return nil, err
	}
	if in.Empty() {
		return nil, nil
	}
	g, err := e.Fetch(ctx, in)
	if err != nil {
		return nil, err
	}
	return e.Assemble(ctx, in, g)
}

// FindByID loads the entity of type typ with the logical identifier id,
// the store id for store identified types.
func (e *Engine) FindByID(ctx context.Context, typ, id any, f graph.Filter) (any, error) {
	ent, err := e.registry.Entity(typ)
	if err != nil {
		return nil, err
	}
	m := Match{IDs: []any{dialect.NormalizeID(id)}}
	if !ent.UsesInternalID() {
		m = Match{Conditions: map[string]any{ent.IDProperty(): dialect.NormalizeID(id)}}
	}
	out, err := e.Find(ctx, typ, m, f)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ogm.NewNotFoundErrorWithID(ent.Label, id)
	}
	return out[0], nil
}
