// Package persist writes entity graphs to a property graph store.
//
// One Save call walks the associations of the root entity, writes every
// reachable entity instance at most once and every (source, association)
// pair of relationships at most once, whatever the number of paths that
// reach them. The per-call StateMachine cuts cycles.
//
//	eng := persist.New(drv, persist.WithRunner(scheduler.NewAsync(8)))
//	team, err := eng.Save(ctx, &Team{Name: "Blue", Players: players})
package persist

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/callback"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/graph"
	"github.com/syssam/velox-ogm/scheduler"
	"github.com/syssam/velox-ogm/schema"
)

// Engine saves and deletes entities. It holds no per-call state and is
// safe for concurrent use.
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

// WithCallbacks sets the lifecycle callbacks.
func WithCallbacks(c *callback.Callbacks) Option {
	return func(e *Engine) { e.callbacks = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an engine running its statements on ex.
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

// On returns a copy of the engine running its statements on ex, typically
// a transaction.
func (e *Engine) On(ex dialect.ExecQuerier) *Engine {
	c := *e
	c.ex = ex
	return &c
}

// Registry returns the entity registry.
func (e *Engine) Registry() *schema.Registry { return e.registry }

// SaveOption configures one save call.
type SaveOption func(*call)

// Include limits the associations followed by the call to the paths
// accepted by f. Paths are dotted association names relative to the root.
func Include(f graph.Filter) SaveOption {
	return func(c *call) { c.filter = graph.OrAll(f) }
}

// call is the state of one Save or SaveAll invocation.
type call struct {
	*Engine
	sm     *StateMachine
	filter graph.Filter
	flight singleflight.Group

	mu      sync.Mutex
	created map[any]bool // instances whose node was created by this call
	loaded  map[any]bool // instances only looked up, never written
}

func (e *Engine) newCall(opts []SaveOption) *call {
	c := &call{
		Engine:  e,
		sm:      NewStateMachine(),
		filter:  graph.All(),
		created: make(map[any]bool),
		loaded:  make(map[any]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *call) run(ctx context.Context, stmt dialect.Statement) (*dialect.Result, error) {
	return c.runner.Run(ctx, c.ex, stmt)
}

func (c *call) markCreated(ptr any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created[ptr] = true
}

func (c *call) wasCreated(ptr any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created[ptr]
}

func (c *call) markLoaded(ptr any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded[ptr] = true
}

func (c *call) wasLoaded(ptr any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded[ptr]
}

// instance is an entity pointer paired with its descriptor.
type instance struct {
	e     *schema.Entity
	ptr   any           // *T
	v     reflect.Value // addressable T
	id    any           // store id, set once written
	isNew bool          // no identifier before the call, or one changed by a callback
}

func (c *call) instance(v any) (*instance, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("ogm: entity must be a non-nil struct pointer, got %T", v)
	}
	e, err := c.registry.Entity(rv.Type())
	if err != nil {
		return nil, err
	}
	return &instance{e: e, ptr: v, v: rv.Elem()}, nil
}

// Save writes entity and everything reachable from it and returns the
// persisted instance, which is entity itself unless a before-bind callback
// replaced it.
func (e *Engine) Save(ctx context.Context, entity any, opts ...SaveOption) (any, error) {
	c := e.newCall(opts)
	inst, err := c.saveImpl(ctx, entity)
	if err != nil {
		return nil, err
	}
	return inst.ptr, nil
}

// saveImpl writes the root node and processes its relationships.
func (c *call) saveImpl(ctx context.Context, entity any) (*instance, error) {
	inst, err := c.saveNode(ctx, entity)
	if err != nil {
		return nil, err
	}
	if err := c.processRelations(ctx, inst, ""); err != nil {
		return nil, err
	}
	return inst, nil
}

// SaveAll writes entities and returns the persisted instances in order.
// Roots of one concrete type that is neither store identified, versioned
// nor dynamically labeled are written with a single statement; otherwise
// every root is saved on its own.
func (e *Engine) SaveAll(ctx context.Context, entities []any, opts ...SaveOption) ([]any, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	c := e.newCall(opts)
	if ent, ok := c.batchable(entities); ok {
		return c.saveBatch(ctx, ent, entities)
	}
	e.log.Debug("saving entities using single statements", zap.Int("count", len(entities)))
	out := make([]any, len(entities))
	err := c.runner.Fork(ctx, len(entities), func(ctx context.Context, i int) error {
		inst, err := c.saveImpl(ctx, entities[i])
		if err != nil {
			return err
		}
		out[i] = inst.ptr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *call) batchable(entities []any) (*schema.Entity, bool) {
	t := reflect.TypeOf(entities[0])
	if t == nil || t.Kind() != reflect.Pointer {
		return nil, false
	}
	for _, v := range entities {
		if isNil(v) || reflect.TypeOf(v) != t {
			return nil, false
		}
	}
	e, err := c.registry.Entity(t)
	if err != nil || e.UsesInternalID() || e.HasVersion() || e.DynamicLabels != nil {
		return nil, false
	}
	return e, true
}

// saveBatch writes the distinct roots of entities with one statement.
// A pointer listed more than once, or replaced by the instance of another
// root, is written once and returned at each of its positions.
func (c *call) saveBatch(ctx context.Context, e *schema.Entity, entities []any) ([]any, error) {
	var (
		insts []*instance
		rows  []dialect.NodeRow
		slot  = make([]int, len(entities))
		seen  = make(map[any]int, len(entities))
	)
	for i, v := range entities {
		if j, ok := seen[v]; ok {
			slot[i] = j
			continue
		}
		inst, err := c.prepare(ctx, v)
		if err != nil {
			return nil, err
		}
		j, ok := seen[inst.ptr]
		if !ok {
			j = len(insts)
			insts = append(insts, inst)
			rows = append(rows, dialect.NodeRow{ID: idValue(inst), Properties: nodeProperties(inst)})
			seen[inst.ptr] = j
		}
		seen[v], slot[i] = j, j
	}
	res, err := c.run(ctx, dialect.SaveNodes{Labels: e.Labels, IDProperty: e.IDProperty(), Rows: rows})
	if err != nil {
		return nil, ogm.NewMutationError(e.Name, "save", err)
	}
	for _, rec := range res.Records {
		i, ok := rec.Int("index")
		if !ok || i < 0 || i >= len(insts) {
			continue
		}
		insts[i].id = dialect.NormalizeID(rec["id"])
	}
	for _, inst := range insts {
		if inst.id == nil {
			return nil, ogm.NewIdentifierResolutionError(e.Name, idValue(inst))
		}
	}
	out := make([]any, len(entities))
	for i, v := range entities {
		inst := insts[slot[i]]
		c.markProcessed(v, inst)
		out[i] = inst.ptr
	}
	c.log.Debug("saved roots", zap.String("entity", e.Name), zap.Stringer("counters", res.Counters))
	for _, inst := range insts {
		if err := c.processRelations(ctx, inst, ""); err != nil {
			return nil, err
		}
	}
	return out, nil
}
