package sqlgraph

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/velox-ogm/dialect"
)

// exec interprets stmt against the graph tables.
func (s *store) exec(ctx context.Context, stmt dialect.Statement) (*dialect.Result, error) {
	switch st := stmt.(type) {
	case dialect.SaveNode:
		return s.saveNode(ctx, st)
	case dialect.SaveNodes:
		return s.saveNodes(ctx, st)
	case dialect.ReadLabels:
		n, err := s.resolve(ctx, st.Node)
		if err != nil || n == nil {
			return &dialect.Result{}, err
		}
		labels := []string{}
		for _, l := range n.labels {
			if !slices.Contains(st.Exclude, l) {
				labels = append(labels, l)
			}
		}
		return &dialect.Result{Records: []dialect.Record{{"labels": labels}}}, nil
	case dialect.LoadNode:
		n, err := s.resolve(ctx, st.Node)
		if err != nil || n == nil {
			return &dialect.Result{}, err
		}
		return &dialect.Result{Records: []dialect.Record{{"id": s.nodeID(n)}}}, nil
	case dialect.DeleteRelationships:
		return s.deleteRelationships(ctx, st)
	case dialect.CreateRelationships:
		return s.createRelationships(ctx, st.Type, st.Incoming, st.Rows, false)
	case dialect.CreateRelationshipsWithProperties:
		return s.createRelationships(ctx, st.Type, st.Incoming, st.Rows, true)
	case dialect.LookupRelationship:
		return s.lookupRelationship(ctx, st)
	case dialect.MatchRoots:
		return s.matchRoots(ctx, st)
	case dialect.Expand:
		return s.expand(ctx, st)
	case dialect.FetchGraph:
		return s.fetchGraph(ctx, st)
	case dialect.DeleteNode:
		n, err := s.resolve(ctx, st.Node)
		if err != nil || n == nil {
			return &dialect.Result{}, err
		}
		if st.VersionProperty != "" && !dialect.ValuesEqual(storedVersion(n, st.VersionProperty), st.Version) {
			return &dialect.Result{}, nil
		}
		c, err := s.detachDelete(ctx, n)
		return &dialect.Result{Counters: c}, err
	case dialect.DeleteNodes:
		res := &dialect.Result{}
		for _, id := range st.IDs {
			n, err := s.resolve(ctx, dialect.NodeRef{Label: st.Label, IDProperty: st.IDProperty, ID: id})
			if err != nil {
				return nil, err
			}
			if n == nil || !n.hasLabel(st.Label) {
				continue
			}
			c, err := s.detachDelete(ctx, n)
			if err != nil {
				return nil, err
			}
			res.Counters.Add(c)
		}
		return res, nil
	case dialect.DeleteAll:
		ns, err := s.labeled(ctx, st.Label)
		if err != nil {
			return nil, err
		}
		res := &dialect.Result{}
		for _, n := range ns {
			c, err := s.detachDelete(ctx, n)
			if err != nil {
				return nil, err
			}
			res.Counters.Add(c)
		}
		return res, nil
	case dialect.Count:
		ns, err := s.labeled(ctx, st.Label)
		if err != nil {
			return nil, err
		}
		return &dialect.Result{Records: []dialect.Record{{"count": int64(len(ns))}}}, nil
	}
	return nil, fmt.Errorf("sqlgraph: unsupported statement %T", stmt)
}

func (s *store) saveNode(ctx context.Context, st dialect.SaveNode) (*dialect.Result, error) {
	n, err := s.resolve(ctx, st.Node)
	if err != nil {
		return nil, err
	}
	if n == nil && st.Node.ByStoreID() && st.Node.ID != nil {
		return &dialect.Result{}, nil
	}
	if st.VersionProperty != "" {
		if !dialect.ValuesEqual(storedVersion(n, st.VersionProperty), st.Version) {
			return &dialect.Result{}, nil
		}
	}
	var c dialect.Counters
	if n == nil {
		if n, err = s.createNode(ctx, st.Labels); err != nil {
			return nil, err
		}
		c.NodesCreated++
		c.LabelsAdded += len(n.labels)
	} else {
		for _, l := range st.Labels {
			if n.addLabel(l) {
				c.LabelsAdded++
			}
		}
	}
	for _, l := range st.RemoveLabels {
		if !slices.Contains(st.Labels, l) && n.removeLabel(l) {
			c.LabelsRemoved++
		}
	}
	for _, l := range st.AddLabels {
		if n.addLabel(l) {
			c.LabelsAdded++
		}
	}
	maps.Copy(n.props, st.Properties)
	c.PropertiesSet += len(st.Properties)
	if !st.Node.ByStoreID() {
		n.props[st.Node.IDProperty] = st.Node.ID
	}
	rec := dialect.Record{"id": s.nodeID(n)}
	if st.VersionProperty != "" {
		n.props[st.VersionProperty] = st.Version + 1
		rec["version"] = st.Version + 1
	}
	if err := s.updateNode(ctx, n); err != nil {
		return nil, err
	}
	return &dialect.Result{Records: []dialect.Record{rec}, Counters: c}, nil
}

// storedVersion returns the version of n, 0 when missing.
func storedVersion(n *node, prop string) any {
	if n == nil || n.props[prop] == nil {
		return int64(0)
	}
	return n.props[prop]
}

func (s *store) saveNodes(ctx context.Context, st dialect.SaveNodes) (*dialect.Result, error) {
	res := &dialect.Result{}
	label := ""
	if len(st.Labels) > 0 {
		label = st.Labels[0]
	}
	for i, row := range st.Rows {
		n, err := s.resolve(ctx, dialect.NodeRef{Label: label, IDProperty: st.IDProperty, ID: row.ID})
		if err != nil {
			return nil, err
		}
		if n == nil {
			if n, err = s.createNode(ctx, st.Labels); err != nil {
				return nil, err
			}
			res.Counters.NodesCreated++
		}
		maps.Copy(n.props, row.Properties)
		res.Counters.PropertiesSet += len(row.Properties)
		n.props[st.IDProperty] = row.ID
		if err := s.updateNode(ctx, n); err != nil {
			return nil, err
		}
		res.Records = append(res.Records, dialect.Record{"index": i, "id": s.nodeID(n)})
	}
	return res, nil
}

func (s *store) deleteRelationships(ctx context.Context, st dialect.DeleteRelationships) (*dialect.Result, error) {
	res := &dialect.Result{}
	src, err := s.node(ctx, st.Source)
	if err != nil || src == nil {
		return res, err
	}
	rs, others, err := s.adjacent(ctx, src, st.Incoming)
	if err != nil {
		return nil, err
	}
	for _, r := range rs {
		if st.Type != "" && r.typ != st.Type {
			continue
		}
		if o := others[otherEnd(r, st.Incoming)]; o == nil || !o.hasLabel(st.TargetLabel) {
			continue
		}
		if slices.ContainsFunc(st.KeepIDs, func(k any) bool { return dialect.ValuesEqual(k, s.relID(r)) }) {
			continue
		}
		if err := s.deleteRel(ctx, r.id); err != nil {
			return nil, err
		}
		res.Counters.RelationshipsDeleted++
	}
	return res, nil
}

func (s *store) createRelationships(ctx context.Context, typ string, incoming bool, rows []dialect.RelationshipRow, withProps bool) (*dialect.Result, error) {
	res := &dialect.Result{}
	for i, row := range rows {
		src, err := s.node(ctx, row.Source)
		if err != nil {
			return nil, err
		}
		tgt, err := s.node(ctx, row.Target)
		if err != nil {
			return nil, err
		}
		if src == nil || tgt == nil {
			return nil, fmt.Errorf("sqlgraph: relationship endpoint not found (%v, %v)", row.Source, row.Target)
		}
		if withProps && row.ID != nil {
			r, err := s.rel(ctx, row.ID)
			if err != nil {
				return nil, err
			}
			if r != nil {
				r.props = row.Properties
				if err := s.updateRel(ctx, r); err != nil {
					return nil, err
				}
				res.Counters.PropertiesSet += len(row.Properties)
				res.Records = append(res.Records, dialect.Record{"index": i, "id": s.relID(r)})
				continue
			}
		}
		t := typ
		if t == "" {
			t = row.Type
		}
		start, end := src.id, tgt.id
		if incoming {
			start, end = end, start
		}
		r, err := s.createRel(ctx, t, start, end, row.Properties)
		if err != nil {
			return nil, err
		}
		res.Counters.RelationshipsCreated++
		res.Counters.PropertiesSet += len(row.Properties)
		res.Records = append(res.Records, dialect.Record{"index": i, "id": s.relID(r)})
	}
	return res, nil
}

func (s *store) lookupRelationship(ctx context.Context, st dialect.LookupRelationship) (*dialect.Result, error) {
	src, err := s.node(ctx, st.Source)
	if err != nil {
		return nil, err
	}
	tgt, err := s.node(ctx, st.Target)
	if err != nil {
		return nil, err
	}
	if src == nil || tgt == nil {
		return &dialect.Result{}, nil
	}
	start, end := src.id, tgt.id
	if st.Incoming {
		start, end = end, start
	}
	rs, err := s.queryRels(ctx, "start_id = ? AND end_id = ?", start, end)
	if err != nil {
		return nil, err
	}
	for _, r := range rs {
		if st.Type == "" || r.typ == st.Type {
			return &dialect.Result{Records: []dialect.Record{{"id": s.relID(r)}}}, nil
		}
	}
	return &dialect.Result{}, nil
}

func (s *store) matchRoots(ctx context.Context, st dialect.MatchRoots) (*dialect.Result, error) {
	ns, err := s.labeled(ctx, st.Label)
	if err != nil {
		return nil, err
	}
	res := &dialect.Result{}
	for _, n := range ns {
		if st.IDs != nil && !slices.ContainsFunc(st.IDs, func(k any) bool { return dialect.ValuesEqual(k, s.nodeID(n)) }) {
			continue
		}
		match := true
		for k, v := range st.Conditions {
			if !dialect.ValuesEqual(n.props[k], v) {
				match = false
				break
			}
		}
		if match {
			res.Records = append(res.Records, dialect.Record{"id": s.nodeID(n)})
		}
	}
	return res, nil
}

func (s *store) expand(ctx context.Context, st dialect.Expand) (*dialect.Result, error) {
	res := &dialect.Result{}
	for _, sid := range st.Sources {
		src, err := s.node(ctx, sid)
		if err != nil {
			return nil, err
		}
		if src == nil {
			continue
		}
		rs, others, err := s.adjacent(ctx, src, st.Incoming)
		if err != nil {
			return nil, err
		}
		for _, r := range rs {
			if len(st.Types) > 0 && !slices.Contains(st.Types, r.typ) {
				continue
			}
			o := others[otherEnd(r, st.Incoming)]
			if o == nil || !o.hasLabel(st.TargetLabel) {
				continue
			}
			res.Records = append(res.Records, dialect.Record{
				"source":         s.nodeID(src),
				"relationshipId": s.relID(r),
				"relatedNodeId":  s.nodeID(o),
			})
		}
	}
	return res, nil
}

func (s *store) fetchGraph(ctx context.Context, st dialect.FetchGraph) (*dialect.Result, error) {
	res := &dialect.Result{}
	for _, id := range st.NodeIDs {
		n, err := s.node(ctx, id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			res.Records = append(res.Records, dialect.Record{
				"kind":       "node",
				"id":         s.nodeID(n),
				"labels":     n.labels,
				"properties": n.props,
			})
		}
	}
	for _, id := range st.RelationshipIDs {
		r, err := s.rel(ctx, id)
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue
		}
		start, err := s.nodeByInternalID(ctx, r.start)
		if err != nil {
			return nil, err
		}
		end, err := s.nodeByInternalID(ctx, r.end)
		if err != nil {
			return nil, err
		}
		if start == nil || end == nil {
			continue
		}
		res.Records = append(res.Records, dialect.Record{
			"kind":       "relationship",
			"id":         s.relID(r),
			"type":       r.typ,
			"start":      s.nodeID(start),
			"end":        s.nodeID(end),
			"properties": r.props,
		})
	}
	return res, nil
}
