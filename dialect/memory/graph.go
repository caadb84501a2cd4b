package memory

import (
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/syssam/velox-ogm/dialect"
)

type node struct {
	id     int64
	eid    string
	labels []string
	props  map[string]any
}

func (n *node) hasLabel(l string) bool {
	return l == "" || slices.Contains(n.labels, l)
}

type rel struct {
	id         int64
	eid        string
	typ        string
	start, end int64
	props      map[string]any
}

// graph is the stored property graph. It is not safe for concurrent use.
type graph struct {
	nodes      map[int64]*node
	rels       map[int64]*rel
	nodeByEID  map[string]int64
	relByEID   map[string]int64
	nextNode   int64
	nextRel    int64
	elementIDs bool
}

func newGraph(elementIDs bool) *graph {
	return &graph{
		nodes:      make(map[int64]*node),
		rels:       make(map[int64]*rel),
		nodeByEID:  make(map[string]int64),
		relByEID:   make(map[string]int64),
		elementIDs: elementIDs,
	}
}

func (g *graph) clone() *graph {
	c := newGraph(g.elementIDs)
	c.nextNode, c.nextRel = g.nextNode, g.nextRel
	for id, n := range g.nodes {
		c.nodes[id] = &node{id: n.id, eid: n.eid, labels: slices.Clone(n.labels), props: maps.Clone(n.props)}
	}
	for id, r := range g.rels {
		cr := *r
		cr.props = maps.Clone(r.props)
		c.rels[id] = &cr
	}
	maps.Copy(c.nodeByEID, g.nodeByEID)
	maps.Copy(c.relByEID, g.relByEID)
	return c
}

// nodeID returns the identifier exposed to callers.
func (g *graph) nodeID(n *node) any {
	if g.elementIDs {
		return n.eid
	}
	return n.id
}

func (g *graph) relID(r *rel) any {
	if g.elementIDs {
		return r.eid
	}
	return r.id
}

func (g *graph) node(id any) *node {
	if g.elementIDs {
		s, _ := id.(string)
		if n, ok := g.nodeByEID[s]; ok {
			return g.nodes[n]
		}
		return nil
	}
	n, ok := dialect.ToInt64(id)
	if !ok {
		return nil
	}
	return g.nodes[n]
}

func (g *graph) rel(id any) *rel {
	if g.elementIDs {
		s, _ := id.(string)
		if r, ok := g.relByEID[s]; ok {
			return g.rels[r]
		}
		return nil
	}
	r, ok := dialect.ToInt64(id)
	if !ok {
		return nil
	}
	return g.rels[r]
}

// resolve finds the node addressed by ref.
func (g *graph) resolve(ref dialect.NodeRef) *node {
	if ref.ByStoreID() {
		if ref.ID == nil {
			return nil
		}
		return g.node(ref.ID)
	}
	for _, id := range g.sortedNodes() {
		n := g.nodes[id]
		if n.hasLabel(ref.Label) && equal(n.props[ref.IDProperty], ref.ID) {
			return n
		}
	}
	return nil
}

func (g *graph) createNode(labels []string) *node {
	g.nextNode++
	n := &node{id: g.nextNode, eid: uuid.NewString(), props: make(map[string]any)}
	for _, l := range labels {
		n.addLabel(l)
	}
	g.nodes[n.id] = n
	g.nodeByEID[n.eid] = n.id
	return n
}

func (n *node) addLabel(l string) bool {
	if l == "" || slices.Contains(n.labels, l) {
		return false
	}
	n.labels = append(n.labels, l)
	return true
}

func (n *node) removeLabel(l string) bool {
	i := slices.Index(n.labels, l)
	if i < 0 {
		return false
	}
	n.labels = slices.Delete(n.labels, i, i+1)
	return true
}

func (g *graph) createRel(typ string, start, end int64, props map[string]any) *rel {
	g.nextRel++
	r := &rel{id: g.nextRel, eid: uuid.NewString(), typ: typ, start: start, end: end, props: maps.Clone(props)}
	if r.props == nil {
		r.props = make(map[string]any)
	}
	g.rels[r.id] = r
	g.relByEID[r.eid] = r.id
	return r
}

func (g *graph) deleteRel(r *rel) {
	delete(g.rels, r.id)
	delete(g.relByEID, r.eid)
}

// detachDelete removes n and its relationships.
func (g *graph) detachDelete(n *node) dialect.Counters {
	var c dialect.Counters
	for _, id := range g.sortedRels() {
		if r := g.rels[id]; r.start == n.id || r.end == n.id {
			g.deleteRel(r)
			c.RelationshipsDeleted++
		}
	}
	delete(g.nodes, n.id)
	delete(g.nodeByEID, n.eid)
	c.NodesDeleted++
	return c
}

func (g *graph) sortedNodes() []int64 {
	return slices.Sorted(maps.Keys(g.nodes))
}

func (g *graph) sortedRels() []int64 {
	return slices.Sorted(maps.Keys(g.rels))
}

var equal = dialect.ValuesEqual
