package memory

import (
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/velox-ogm/dialect"
)

// exec applies one statement to g.
func (g *graph) exec(stmt dialect.Statement) (*dialect.Result, error) {
	switch s := stmt.(type) {
	case dialect.SaveNode:
		return g.saveNode(s), nil
	case dialect.SaveNodes:
		return g.saveNodes(s), nil
	case dialect.ReadLabels:
		n := g.resolve(s.Node)
		if n == nil {
			return &dialect.Result{}, nil
		}
		labels := []string{}
		for _, l := range n.labels {
			if !slices.Contains(s.Exclude, l) {
				labels = append(labels, l)
			}
		}
		return &dialect.Result{Records: []dialect.Record{{"labels": labels}}}, nil
	case dialect.LoadNode:
		n := g.resolve(s.Node)
		if n == nil {
			return &dialect.Result{}, nil
		}
		return &dialect.Result{Records: []dialect.Record{{"id": g.nodeID(n)}}}, nil
	case dialect.DeleteRelationships:
		return g.deleteRelationships(s), nil
	case dialect.CreateRelationships:
		return g.createRelationships(s.Type, s.Incoming, s.Rows, false)
	case dialect.CreateRelationshipsWithProperties:
		return g.createRelationships(s.Type, s.Incoming, s.Rows, true)
	case dialect.LookupRelationship:
		return g.lookupRelationship(s), nil
	case dialect.MatchRoots:
		return g.matchRoots(s), nil
	case dialect.Expand:
		return g.expand(s), nil
	case dialect.FetchGraph:
		return g.fetchGraph(s), nil
	case dialect.DeleteNode:
		n := g.resolve(s.Node)
		if n == nil {
			return &dialect.Result{}, nil
		}
		if s.VersionProperty != "" && !equal(storedVersion(n, s.VersionProperty), s.Version) {
			return &dialect.Result{}, nil
		}
		return &dialect.Result{Counters: g.detachDelete(n)}, nil
	case dialect.DeleteNodes:
		var c dialect.Counters
		for _, id := range s.IDs {
			if n := g.resolve(dialect.NodeRef{Label: s.Label, IDProperty: s.IDProperty, ID: id}); n != nil && n.hasLabel(s.Label) {
				c.Add(g.detachDelete(n))
			}
		}
		return &dialect.Result{Counters: c}, nil
	case dialect.DeleteAll:
		var c dialect.Counters
		for _, id := range g.sortedNodes() {
			if n := g.nodes[id]; n != nil && n.hasLabel(s.Label) {
				c.Add(g.detachDelete(n))
			}
		}
		return &dialect.Result{Counters: c}, nil
	case dialect.Count:
		var n int64
		for _, nd := range g.nodes {
			if nd.hasLabel(s.Label) {
				n++
			}
		}
		return &dialect.Result{Records: []dialect.Record{{"count": n}}}, nil
	}
	return nil, fmt.Errorf("dialect/memory: unsupported statement %T", stmt)
}

func (g *graph) saveNode(s dialect.SaveNode) *dialect.Result {
	n := g.resolve(s.Node)
	if n == nil && s.Node.ByStoreID() && s.Node.ID != nil {
		return &dialect.Result{}
	}
	if s.VersionProperty != "" {
		if !equal(storedVersion(n, s.VersionProperty), s.Version) {
			return &dialect.Result{}
		}
	}
	var c dialect.Counters
	if n == nil {
		n = g.createNode(s.Labels)
		c.NodesCreated++
		c.LabelsAdded += len(n.labels)
	} else {
		for _, l := range s.Labels {
			if n.addLabel(l) {
				c.LabelsAdded++
			}
		}
	}
	for _, l := range s.RemoveLabels {
		if !slices.Contains(s.Labels, l) && n.removeLabel(l) {
			c.LabelsRemoved++
		}
	}
	for _, l := range s.AddLabels {
		if n.addLabel(l) {
			c.LabelsAdded++
		}
	}
	for k, v := range s.Properties {
		n.props[k] = v
		c.PropertiesSet++
	}
	if !s.Node.ByStoreID() {
		n.props[s.Node.IDProperty] = s.Node.ID
	}
	rec := dialect.Record{"id": g.nodeID(n)}
	if s.VersionProperty != "" {
		n.props[s.VersionProperty] = s.Version + 1
		rec["version"] = s.Version + 1
	}
	return &dialect.Result{Records: []dialect.Record{rec}, Counters: c}
}

// storedVersion returns the version of n, 0 when missing.
func storedVersion(n *node, prop string) any {
	if n == nil || n.props[prop] == nil {
		return int64(0)
	}
	return n.props[prop]
}

func (g *graph) saveNodes(s dialect.SaveNodes) *dialect.Result {
	res := &dialect.Result{}
	label := ""
	if len(s.Labels) > 0 {
		label = s.Labels[0]
	}
	for i, row := range s.Rows {
		n := g.resolve(dialect.NodeRef{Label: label, IDProperty: s.IDProperty, ID: row.ID})
		if n == nil {
			n = g.createNode(s.Labels)
			res.Counters.NodesCreated++
		}
		for k, v := range row.Properties {
			n.props[k] = v
			res.Counters.PropertiesSet++
		}
		n.props[s.IDProperty] = row.ID
		res.Records = append(res.Records, dialect.Record{"index": i, "id": g.nodeID(n)})
	}
	return res
}

// endpoints returns the (start, end) pair for source and other given the
// statement direction.
func endpoints(source, other int64, incoming bool) (int64, int64) {
	if incoming {
		return other, source
	}
	return source, other
}

func (g *graph) deleteRelationships(s dialect.DeleteRelationships) *dialect.Result {
	res := &dialect.Result{}
	src := g.node(s.Source)
	if src == nil {
		return res
	}
	for _, id := range g.sortedRels() {
		r := g.rels[id]
		other := r.end
		if s.Incoming {
			if r.end != src.id {
				continue
			}
			other = r.start
		} else if r.start != src.id {
			continue
		}
		if s.Type != "" && r.typ != s.Type {
			continue
		}
		if n := g.nodes[other]; n == nil || !n.hasLabel(s.TargetLabel) {
			continue
		}
		if slices.ContainsFunc(s.KeepIDs, func(k any) bool { return equal(k, g.relID(r)) }) {
			continue
		}
		g.deleteRel(r)
		res.Counters.RelationshipsDeleted++
	}
	return res
}

func (g *graph) createRelationships(typ string, incoming bool, rows []dialect.RelationshipRow, withProps bool) (*dialect.Result, error) {
	res := &dialect.Result{}
	for i, row := range rows {
		src, tgt := g.node(row.Source), g.node(row.Target)
		if src == nil || tgt == nil {
			return nil, fmt.Errorf("dialect/memory: relationship endpoint not found (%v, %v)", row.Source, row.Target)
		}
		t := typ
		if t == "" {
			t = row.Type
		}
		if withProps && row.ID != nil {
			if r := g.rel(row.ID); r != nil {
				r.props = maps.Clone(row.Properties)
				if r.props == nil {
					r.props = make(map[string]any)
				}
				res.Counters.PropertiesSet += len(row.Properties)
				res.Records = append(res.Records, dialect.Record{"index": i, "id": g.relID(r)})
				continue
			}
		}
		start, end := endpoints(src.id, tgt.id, incoming)
		r := g.createRel(t, start, end, row.Properties)
		res.Counters.RelationshipsCreated++
		res.Counters.PropertiesSet += len(row.Properties)
		res.Records = append(res.Records, dialect.Record{"index": i, "id": g.relID(r)})
	}
	return res, nil
}

func (g *graph) lookupRelationship(s dialect.LookupRelationship) *dialect.Result {
	src, tgt := g.node(s.Source), g.node(s.Target)
	if src == nil || tgt == nil {
		return &dialect.Result{}
	}
	start, end := endpoints(src.id, tgt.id, s.Incoming)
	for _, id := range g.sortedRels() {
		if r := g.rels[id]; r.start == start && r.end == end && (s.Type == "" || r.typ == s.Type) {
			return &dialect.Result{Records: []dialect.Record{{"id": g.relID(r)}}}
		}
	}
	return &dialect.Result{}
}

func (g *graph) matchRoots(s dialect.MatchRoots) *dialect.Result {
	res := &dialect.Result{}
	for _, id := range g.sortedNodes() {
		n := g.nodes[id]
		if !n.hasLabel(s.Label) {
			continue
		}
		if s.IDs != nil && !slices.ContainsFunc(s.IDs, func(k any) bool { return equal(k, g.nodeID(n)) }) {
			continue
		}
		match := true
		for k, v := range s.Conditions {
			if !equal(n.props[k], v) {
				match = false
				break
			}
		}
		if match {
			res.Records = append(res.Records, dialect.Record{"id": g.nodeID(n)})
		}
	}
	return res
}

func (g *graph) expand(s dialect.Expand) *dialect.Result {
	res := &dialect.Result{}
	for _, sid := range s.Sources {
		src := g.node(sid)
		if src == nil {
			continue
		}
		for _, id := range g.sortedRels() {
			r := g.rels[id]
			other := r.end
			if s.Incoming {
				if r.end != src.id {
					continue
				}
				other = r.start
			} else if r.start != src.id {
				continue
			}
			if len(s.Types) > 0 && !slices.Contains(s.Types, r.typ) {
				continue
			}
			n := g.nodes[other]
			if n == nil || !n.hasLabel(s.TargetLabel) {
				continue
			}
			res.Records = append(res.Records, dialect.Record{
				"source":         g.nodeID(src),
				"relationshipId": g.relID(r),
				"relatedNodeId":  g.nodeID(n),
			})
		}
	}
	return res
}

func (g *graph) fetchGraph(s dialect.FetchGraph) *dialect.Result {
	res := &dialect.Result{}
	for _, id := range s.NodeIDs {
		if n := g.node(id); n != nil {
			res.Records = append(res.Records, dialect.Record{
				"kind":       "node",
				"id":         g.nodeID(n),
				"labels":     slices.Clone(n.labels),
				"properties": maps.Clone(n.props),
			})
		}
	}
	for _, id := range s.RelationshipIDs {
		if r := g.rel(id); r != nil {
			res.Records = append(res.Records, dialect.Record{
				"kind":       "relationship",
				"id":         g.relID(r),
				"type":       r.typ,
				"start":      g.nodeID(g.nodes[r.start]),
				"end":        g.nodeID(g.nodes[r.end]),
				"properties": maps.Clone(r.props),
			})
		}
	}
	return res
}
