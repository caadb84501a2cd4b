package hydrate

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/codec"
	"github.com/syssam/velox-ogm/contrib/dataloader"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/graph"
	"github.com/syssam/velox-ogm/schema"
)

// Node is a fetched node.
type Node struct {
	ID         any
	Labels     []string
	Properties map[string]any
}

// Relationship is a fetched relationship.
type Relationship struct {
	ID         any
	Type       string
	Start, End any
	Properties map[string]any
}

// Graph holds the rows selected by Inputs.
type Graph struct {
	Nodes         []*Node
	Relationships []*Relationship
}

// Fetch reads the nodes and relationships selected by in with a single
// statement. Rows are returned in the order of in.
func (e *Engine) Fetch(ctx context.Context, in *Inputs) (*Graph, error) {
	ids := in.NodeIDs()
	res, err := e.runner.Run(ctx, e.ex, dialect.FetchGraph{NodeIDs: ids, RelationshipIDs: in.RelationshipIDs})
	if err != nil {
		return nil, ogm.NewQueryError(in.Entity.Name, "fetch", err)
	}
	var (
		nodes []*Node
		rels  []*Relationship
	)
	for _, rec := range res.Records {
		switch rec["kind"] {
		case "node":
			nodes = append(nodes, &Node{
				ID:         dialect.NormalizeID(rec["id"]),
				Labels:     rec.Strings("labels"),
				Properties: rec.Properties("properties"),
			})
		case "relationship":
			typ, _ := rec["type"].(string)
			rels = append(rels, &Relationship{
				ID:         dialect.NormalizeID(rec["id"]),
				Type:       typ,
				Start:      dialect.NormalizeID(rec["start"]),
				End:        dialect.NormalizeID(rec["end"]),
				Properties: rec.Properties("properties"),
			})
		}
	}
	return &Graph{
		Nodes:         dataloader.OrderByKeysNoError(ids, nodes, func(n *Node) any { return n.ID }),
		Relationships: dataloader.OrderByKeysNoError(in.RelationshipIDs, rels, func(r *Relationship) any { return r.ID }),
	}, nil
}

// object is the instance built for one node.
type object struct {
	e   *schema.Entity
	ptr reflect.Value // *T
}

// Assemble maps g into connected instances and returns the roots of in in
// order. Every node becomes exactly one instance, shared by all the
// associations leading to it, and after-load callbacks run once per
// instance before it is linked.
func (e *Engine) Assemble(ctx context.Context, in *Inputs, g *Graph) ([]any, error) {
	f := graph.OrAll(in.Filter)
	types := graph.Reachable(in.Entity, f)
	objs := make(map[any]*object, len(g.Nodes))
	for _, n := range g.Nodes {
		ent := entityFor(types, n.Labels)
		if ent == nil {
			e.log.Debug("skipping node of unknown type", zap.Any("id", n.ID), zap.Strings("labels", n.Labels))
			continue
		}
		ptr, err := build(ent, n)
		if err != nil {
			return nil, err
		}
		v, err := e.callbacks.RunAfterLoad(ctx, ptr.Interface())
		if err != nil {
			return nil, ogm.NewQueryError(ent.Name, "after load", err)
		}
		objs[n.ID] = &object{e: ent, ptr: reflect.ValueOf(v)}
	}
	byStart := dataloader.GroupByKey(g.Relationships, func(r *Relationship) any { return r.Start })
	byEnd := dataloader.GroupByKey(g.Relationships, func(r *Relationship) any { return r.End })

	type item struct {
		id   any
		path string
	}
	var (
		queue   []item
		roots   []any
		visited = make(map[any]bool)
	)
	for _, id := range in.RootIDs {
		o, ok := objs[id]
		if !ok || o.e != in.Entity {
			continue
		}
		roots = append(roots, o.ptr.Interface())
		if !visited[id] {
			visited[id] = true
			queue = append(queue, item{id, ""})
		}
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		src := objs[it.id]
		for _, a := range src.e.Associations() {
			p := graph.Join(it.path, a.Name)
			if !f.Include(p) {
				continue
			}
			rels, incoming := byStart[it.id], false
			if a.Direction == schema.Incoming {
				rels, incoming = byEnd[it.id], true
			}
			for _, r := range rels {
				if !a.Dynamic() && r.Type != a.Type {
					continue
				}
				other := r.End
				if incoming {
					other = r.Start
				}
				dst, ok := objs[other]
				if !ok || dst.e != a.Target {
					continue
				}
				if err := attach(a, src.ptr.Elem(), dst.ptr, r); err != nil {
					return nil, err
				}
				if !visited[other] {
					visited[other] = true
					queue = append(queue, item{other, p})
				}
			}
		}
	}
	e.log.Debug("assembled graph",
		zap.String("entity", in.Entity.Name),
		zap.Int("roots", len(roots)),
		zap.Int("instances", len(objs)),
	)
	return roots, nil
}

// entityFor returns the entity type of a node: the one whose label comes
// first on the node, which is the primary label for written nodes.
func entityFor(types []*schema.Entity, labels []string) *schema.Entity {
	for _, l := range labels {
		for _, t := range types {
			if t.Label == l {
				return t
			}
		}
	}
	return nil
}

// build returns a new instance of ent holding the properties of n.
func build(ent *schema.Entity, n *Node) (reflect.Value, error) {
	ptr := reflect.New(ent.Type)
	v := ptr.Elem()
	if err := codec.SetProperties(ent.Properties, v, n.Properties); err != nil {
		return reflect.Value{}, fmt.Errorf("ogm: %s: %w", ent.Name, err)
	}
	id := n.ID
	if !ent.UsesInternalID() {
		id = n.Properties[ent.IDProperty()]
	}
	if err := codec.SetID(ent, ent.ID, v, id); err != nil {
		return reflect.Value{}, err
	}
	if ent.HasVersion() {
		ver, _ := dialect.ToInt64(n.Properties[ent.Version.Name])
		if err := codec.SetVersion(ent.Version.Value(v), ver); err != nil {
			return reflect.Value{}, ogm.NewUnsupportedIdentifierKindError(ent.Name, ent.Version.Field, ent.Version.Type)
		}
	}
	if ent.DynamicLabels != nil {
		var dyn []string
		for _, l := range n.Labels {
			if !slices.Contains(ent.Labels, l) {
				dyn = append(dyn, l)
			}
		}
		ent.DynamicLabels.Value(v).Set(reflect.ValueOf(dyn))
	}
	return ptr, nil
}

// attach links target into association a of the struct owner through the
// relationship r.
func attach(a *schema.Association, owner, target reflect.Value, r *Relationship) error {
	elem := target
	if a.HasProperties() {
		w := reflect.New(a.Properties.Type)
		if err := codec.SetProperties(a.Properties.Properties, w.Elem(), r.Properties); err != nil {
			return fmt.Errorf("ogm: %s: %w", a, err)
		}
		if err := codec.SetRelationshipID(a.Properties, w.Elem(), r.ID); err != nil {
			return err
		}
		a.Properties.Target.Value(w.Elem()).Set(target)
		elem = w
	}
	f := a.Value(owner)
	switch a.Cardinality {
	case schema.OneToOne:
		f.Set(elem)
	case schema.OneToMany:
		f.Set(reflect.Append(f, elem))
	case schema.DynamicOneToOne, schema.DynamicOneToMany:
		if f.IsNil() {
			f.Set(reflect.MakeMap(f.Type()))
		}
		k := reflect.ValueOf(r.Type).Convert(f.Type().Key())
		if a.Cardinality == schema.DynamicOneToOne {
			f.SetMapIndex(k, elem)
			return nil
		}
		cur := f.MapIndex(k)
		if !cur.IsValid() {
			cur = reflect.Zero(f.Type().Elem())
		}
		f.SetMapIndex(k, reflect.Append(cur, elem))
	}
	return nil
}
