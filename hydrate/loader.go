package hydrate

import (
	"context"

	"go.uber.org/zap"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/graph"
	"github.com/syssam/velox-ogm/schema"
)

// Inputs are the identifier sets selecting one loaded graph.
type Inputs struct {
	// Entity is the root entity type.
	Entity *schema.Entity
	// RootIDs are the matched roots in store order.
	RootIDs []any
	// RelationshipIDs are the traversed relationships in discovery order.
	RelationshipIDs []any
	// RelatedNodeIDs are the nodes reached through RelationshipIDs, roots
	// included when a relationship leads back to them.
	RelatedNodeIDs []any
	// Filter is the inclusion filter of the load.
	Filter graph.Filter

	// Related maps a relationship id to the node ids it was found to
	// connect to.
	Related map[any]map[any]bool
	// Levels is the number of expansion levels run.
	Levels int
}

// Empty reports whether no root matched.
func (in *Inputs) Empty() bool { return len(in.RootIDs) == 0 }

// NodeIDs returns the roots followed by the related nodes, each once.
func (in *Inputs) NodeIDs() []any {
	seen := make(map[any]bool, len(in.RootIDs)+len(in.RelatedNodeIDs))
	out := make([]any, 0, len(in.RootIDs)+len(in.RelatedNodeIDs))
	for _, ids := range [][]any{in.RootIDs, in.RelatedNodeIDs} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// add records that relationship rid connects to node nid.
func (in *Inputs) add(rid, nid any, known map[any]bool) {
	nodes, ok := in.Related[rid]
	if !ok {
		nodes = make(map[any]bool)
		in.Related[rid] = nodes
		in.RelationshipIDs = append(in.RelationshipIDs, rid)
	}
	nodes[nid] = true
	if !known[nid] {
		known[nid] = true
		in.RelatedNodeIDs = append(in.RelatedNodeIDs, nid)
	}
}

// frontier is a group of nodes of one entity type reached at one path.
type frontier struct {
	e    *schema.Entity
	path string
	ids  []any
	seen map[any]bool
}

func (f *frontier) push(id any) {
	if !f.seen[id] {
		f.seen[id] = true
		f.ids = append(f.ids, id)
	}
}

type frontierKey struct {
	e    *schema.Entity
	path string
}

// level collects the frontiers of the next expansion level in discovery
// order.
type level struct {
	groups []*frontier
	index  map[frontierKey]*frontier
}

func (l *level) group(e *schema.Entity, path string) *frontier {
	if l.index == nil {
		l.index = make(map[frontierKey]*frontier)
	}
	k := frontierKey{e, path}
	if f, ok := l.index[k]; ok {
		return f
	}
	f := &frontier{e: e, path: path, seen: make(map[any]bool)}
	l.index[k] = f
	l.groups = append(l.groups, f)
	return f
}

// expansion is one Expand statement of a level.
type expansion struct {
	a    *schema.Association
	path string
	stmt dialect.Expand
}

// LoadGraph collects the identifiers of the graph rooted at the nodes of e
// selected by m, following the associations accepted by f breadth first.
// A node is expanded the first time it is reached only, so traversal ends
// on cyclic data after at most as many levels as there are distinct nodes
// on the longest simple path.
func (e *Engine) LoadGraph(ctx context.Context, ent *schema.Entity, m Match, f graph.Filter) (*Inputs, error) {
	return e.load(ctx, ent, m, f, true)
}

// LoadTree is like LoadGraph but expands a node once per path it is
// reached on, so each association path sees all of its nodes. It must
// only be used when graph.HasPossibleCycle reports false for ent and f.
func (e *Engine) LoadTree(ctx context.Context, ent *schema.Entity, m Match, f graph.Filter) (*Inputs, error) {
	return e.load(ctx, ent, m, f, false)
}

func (e *Engine) load(ctx context.Context, ent *schema.Entity, m Match, f graph.Filter, dedupe bool) (*Inputs, error) {
	f = graph.OrAll(f)
	in := &Inputs{Entity: ent, Filter: f, Related: make(map[any]map[any]bool)}
	var ids []any
	if m.IDs != nil {
		ids = make([]any, len(m.IDs))
		for i, id := range m.IDs {
			ids[i] = dialect.NormalizeID(id)
		}
	}
	res, err := e.runner.Run(ctx, e.ex, dialect.MatchRoots{Label: ent.Label, Conditions: m.Conditions, IDs: ids})
	if err != nil {
		return nil, ogm.NewQueryError(ent.Name, "match", err)
	}
	for _, rec := range res.Records {
		in.RootIDs = append(in.RootIDs, dialect.NormalizeID(rec["id"]))
	}
	if in.Empty() {
		e.log.Debug("no roots matched", zap.String("entity", ent.Name))
		return in, nil
	}
	visited := make(map[any]bool, len(in.RootIDs))
	for _, id := range in.RootIDs {
		visited[id] = true
	}
	known := make(map[any]bool)
	cur := &level{}
	root := cur.group(ent, "")
	for _, id := range in.RootIDs {
		root.push(id)
	}
	for len(cur.groups) > 0 {
		exps := expansions(cur, f)
		if len(exps) == 0 {
			break
		}
		results := make([]*dialect.Result, len(exps))
		err := e.runner.Fork(ctx, len(exps), func(ctx context.Context, i int) error {
			res, err := e.runner.Run(ctx, e.ex, exps[i].stmt)
			if err != nil {
				return ogm.NewQueryError(exps[i].a.Owner.Name, "expand", err)
			}
			results[i] = res
			return nil
		})
		if err != nil {
			return nil, err
		}
		in.Levels++
		next := &level{}
		for i, x := range exps {
			for _, rec := range results[i].Records {
				rid := dialect.NormalizeID(rec["relationshipId"])
				nid := dialect.NormalizeID(rec["relatedNodeId"])
				in.add(rid, nid, known)
				if dedupe {
					if visited[nid] {
						continue
					}
					visited[nid] = true
				}
				next.group(x.a.Target, x.path).push(nid)
			}
		}
		cur = next
	}
	e.log.Debug("loaded graph identifiers",
		zap.String("entity", ent.Name),
		zap.Int("roots", len(in.RootIDs)),
		zap.Int("relationships", len(in.RelationshipIDs)),
		zap.Int("related", len(in.RelatedNodeIDs)),
		zap.Int("levels", in.Levels),
	)
	return in, nil
}

// expansions returns one Expand statement per frontier group and
// association permitted by f.
func expansions(l *level, f graph.Filter) []expansion {
	var out []expansion
	for _, g := range l.groups {
		for _, a := range g.e.Associations() {
			p := graph.Join(g.path, a.Name)
			if !f.Include(p) {
				continue
			}
			stmt := dialect.Expand{
				Sources:     g.ids,
				Incoming:    a.Direction == schema.Incoming,
				TargetLabel: a.Target.Label,
			}
			if !a.Dynamic() {
				stmt.Types = []string{a.Type}
			}
			out = append(out, expansion{a: a, path: p, stmt: stmt})
		}
	}
	return out
}
