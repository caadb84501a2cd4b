package persist

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/codec"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/graph"
	"github.com/syssam/velox-ogm/schema"
)

// processRelations handles every association of src in declaration order.
// path is the dotted path of src relative to the root.
func (c *call) processRelations(ctx context.Context, src *instance, path string) error {
	for _, a := range src.e.Associations() {
		p := graph.Join(path, a.Name)
		if a.ReadOnly || !c.filter.Include(p) {
			continue
		}
		if err := c.processAssociation(ctx, src, a, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *call) processAssociation(ctx context.Context, src *instance, a *schema.Association, path string) error {
	related := Walk(a, src.v)
	state := c.sm.StateOf(src.id, a, instances(related))
	if state == ProcessedAllRelationships || state == ProcessedBoth {
		return nil
	}
	if !c.sm.MarkRelationshipProcessed(src.id, a) {
		return nil
	}
	if !c.wasCreated(src.ptr) {
		if err := c.deleteStale(ctx, src, a, related); err != nil {
			return err
		}
	}
	if len(related) == 0 {
		return nil
	}
	targets := make([]*instance, len(related))
	recurse := make([]bool, len(related))
	err := c.runner.Fork(ctx, len(related), func(ctx context.Context, i int) error {
		var err error
		targets[i], recurse[i], err = c.resolveTarget(ctx, a, related[i])
		return err
	})
	if err != nil {
		return err
	}
	if state != ProcessedAllValues {
		for i, t := range targets {
			if !recurse[i] {
				continue
			}
			if err := c.processRelations(ctx, t, path); err != nil {
				return err
			}
		}
	}
	return c.writeRelationships(ctx, src, a, related, targets)
}

// deleteStale removes the stored relationships of a from src, except the
// ones whose identifier is known to the entity or that were written by
// this call. Relationships other branches claimed at src are written first,
// and new claims at src wait until the delete ran.
func (c *call) deleteStale(ctx context.Context, src *instance, a *schema.Association, related []Related) error {
	incoming := a.Direction == schema.Incoming
	var keep []any
	if a.HasProperties() && a.Properties.ID != nil {
		for _, r := range related {
			if id := codec.Read(a.Properties.ID.Value(r.Properties)); id != nil {
				keep = append(keep, id)
			}
		}
	}
	written, end, err := c.sm.beginStale(ctx, src.id, a.Type, incoming)
	if err != nil {
		return err
	}
	defer end()
	res, err := c.run(ctx, dialect.DeleteRelationships{
		Source:      src.id,
		Type:        a.Type,
		Incoming:    incoming,
		TargetLabel: a.Target.Label,
		KeepIDs:     append(keep, written...),
	})
	if err != nil {
		return ogm.NewMutationError(a.Owner.Name, "unrelate", err)
	}
	c.log.Debug("removed stale relationships",
		zap.Stringer("association", a),
		zap.Int("deleted", res.Counters.RelationshipsDeleted),
	)
	return nil
}

// backfill is a relationship written from the other side of a
// bidirectional association whose identifier must be copied into the
// relationship properties of this side.
type backfill struct {
	target *instance
	typ    string
	props  reflect.Value
	note   *edgeNote
}

// writeRelationships creates the relationships of a from src to targets
// that no other branch of the call wrote, in one statement.
func (c *call) writeRelationships(ctx context.Context, src *instance, a *schema.Association, related []Related, targets []*instance) error {
	incoming := a.Direction == schema.Incoming
	claims := make([]edgeClaim, len(related))
	types := make([]string, len(related))
	for i, r := range related {
		t := targets[i]
		types[i] = a.Type
		if a.Dynamic() {
			types[i] = r.Type
		}
		key := edgeKey{start: src.id, end: t.id, typ: types[i]}
		if incoming {
			key.start, key.end = t.id, src.id
		}
		claims[i] = edgeClaim{key: key, owner: a}
		if a.HasProperties() {
			claims[i].props = r.Properties.Addr().Interface()
			claims[i].values = codec.Properties(a.Properties.Properties, r.Properties)
		}
	}
	claimed, owned, err := c.sm.claimEdges(ctx, claims)
	if err != nil {
		return err
	}
	var (
		rows    []dialect.RelationshipRow
		notes   []*edgeNote
		props   []reflect.Value
		pending []backfill
	)
	finish := func() {
		// Notes without a reported id, or all of them if the statement failed.
		for _, n := range notes {
			n.finish(nil)
		}
	}
	defer finish()
	for i, r := range related {
		t := targets[i]
		if !owned[i] {
			if needsID(a, r) {
				pending = append(pending, backfill{target: t, typ: types[i], props: r.Properties, note: claimed[i]})
			}
			continue
		}
		row := dialect.RelationshipRow{Source: src.id, Target: t.id}
		if a.Dynamic() {
			row.Type = types[i]
		}
		if a.HasProperties() {
			row.Properties = claims[i].values
			if a.Properties.ID != nil {
				row.ID = codec.Read(a.Properties.ID.Value(r.Properties))
			}
		}
		rows = append(rows, row)
		notes = append(notes, claimed[i])
		props = append(props, r.Properties)
	}
	if len(rows) > 0 {
		if err := c.createRelationships(ctx, a, incoming, rows, notes, props); err != nil {
			return err
		}
	}
	// Owned notes must not stay open while waiting on other branches.
	finish()
	for _, b := range pending {
		if err := c.resolveBackfill(ctx, src, a, incoming, b); err != nil {
			return err
		}
	}
	return nil
}

func (c *call) createRelationships(ctx context.Context, a *schema.Association, incoming bool, rows []dialect.RelationshipRow, notes []*edgeNote, props []reflect.Value) error {
	var stmt dialect.Statement = dialect.CreateRelationships{Type: a.Type, Incoming: incoming, Rows: rows}
	if a.HasProperties() {
		stmt = dialect.CreateRelationshipsWithProperties{Type: a.Type, Incoming: incoming, Rows: rows}
	}
	res, err := c.run(ctx, stmt)
	if err != nil {
		return ogm.NewMutationError(a.Owner.Name, "relate", err)
	}
	for _, rec := range res.Records {
		i, ok := rec.Int("index")
		if !ok || i < 0 || i >= len(notes) {
			continue
		}
		id := dialect.NormalizeID(rec["id"])
		notes[i].finish(id)
		if a.HasProperties() {
			if err := codec.SetRelationshipID(a.Properties, props[i], id); err != nil {
				return err
			}
		}
	}
	c.log.Debug("created relationships",
		zap.Stringer("association", a),
		zap.Stringer("counters", res.Counters),
	)
	return nil
}

// resolveBackfill copies the identifier of a relationship written by the
// other side of a into the relationship properties of this side, looking
// it up when the other side could not report it.
func (c *call) resolveBackfill(ctx context.Context, src *instance, a *schema.Association, incoming bool, b backfill) error {
	id, err := b.note.wait(ctx)
	if err != nil {
		return err
	}
	if id == nil {
		res, err := c.run(ctx, dialect.LookupRelationship{
			Source:   src.id,
			Target:   b.target.id,
			Type:     b.typ,
			Incoming: incoming,
		})
		if err != nil {
			return ogm.NewQueryError(a.Owner.Name, "lookup", err)
		}
		rec, ok := res.Single()
		if !ok {
			return nil
		}
		id = dialect.NormalizeID(rec["id"])
	}
	return codec.SetRelationshipID(a.Properties, b.props, id)
}

// needsID reports whether r carries relationship properties with an
// identifier field that is still empty.
func needsID(a *schema.Association, r Related) bool {
	return a.HasProperties() && a.Properties.ID != nil && codec.Read(a.Properties.ID.Value(r.Properties)) == nil
}
