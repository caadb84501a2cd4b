package persist

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/codec"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/schema"
)

// prepare runs the before-bind callbacks on v and assigns a generated
// identifier if the entity needs one.
func (c *call) prepare(ctx context.Context, v any) (*instance, error) {
	orig, err := c.instance(v)
	if err != nil {
		return nil, err
	}
	before := idValue(orig)
	bound, err := c.callbacks.RunBeforeBind(ctx, v)
	if err != nil {
		return nil, ogm.NewMutationError(orig.e.Name, "before bind", err)
	}
	inst := orig
	if bound != v {
		if inst, err = c.instance(bound); err != nil {
			return nil, err
		}
	}
	e := inst.e
	after := idValue(inst)
	inst.isNew = before == nil || !dialect.ValuesEqual(before, after)
	switch {
	case after != nil:
	case e.IDKind == schema.IDGenerated:
		if err := codec.SetID(e, e.ID, inst.v, codec.NewID()); err != nil {
			return nil, err
		}
		inst.isNew = true
	case e.IDKind == schema.IDAssigned:
		return nil, fmt.Errorf("ogm: %s: assigned identifier %s is not set: %w", e.Name, e.ID.Field, ogm.ErrIdentifierResolution)
	}
	return inst, nil
}

// saveNode writes the node of v unless the call already did, and returns
// the persisted instance. Concurrent saves of one instance share a single
// write.
func (c *call) saveNode(ctx context.Context, v any) (*instance, error) {
	return c.once(v, func() (*instance, error) {
		return c.writeNode(ctx, v)
	})
}

// once returns the processed instance of v or runs write, collapsing
// concurrent callers for the same pointer.
func (c *call) once(v any, write func() (*instance, error)) (*instance, error) {
	if rv := reflect.ValueOf(v); rv.Kind() != reflect.Pointer || rv.IsNil() {
		// Not usable as an identity key.
		_, err := c.instance(v)
		return nil, err
	}
	if inst, ok, err := c.processed(v); ok || err != nil {
		return inst, err
	}
	r, err, _ := c.flight.Do(fmt.Sprintf("%T:%p", v, v), func() (any, error) {
		if inst, ok, err := c.processed(v); ok || err != nil {
			return inst, err
		}
		return write()
	})
	if err != nil {
		return nil, err
	}
	return r.(*instance), nil
}

// processed returns the persisted instance of v if the call wrote it.
func (c *call) processed(v any) (*instance, bool, error) {
	id, ok := c.sm.ProcessedAs(v)
	if !ok {
		return nil, false, nil
	}
	inst, err := c.instance(c.sm.Replacement(v))
	if err != nil {
		return nil, false, err
	}
	inst.id = id
	return inst, true, nil
}

func (c *call) writeNode(ctx context.Context, v any) (*instance, error) {
	inst, err := c.prepare(ctx, v)
	if err != nil {
		return nil, err
	}
	e := inst.e
	stmt := dialect.SaveNode{
		Node:       nodeRef(inst),
		Labels:     e.Labels,
		Properties: nodeProperties(inst),
	}
	if stmt.AddLabels, stmt.RemoveLabels, err = c.dynamicLabels(ctx, inst); err != nil {
		return nil, err
	}
	if e.HasVersion() {
		stmt.VersionProperty = e.Version.Name
		stmt.Version = codec.Version(e.Version.Value(inst.v))
	}
	res, err := c.run(ctx, stmt)
	if err != nil {
		return nil, ogm.NewMutationError(e.Name, "save", err)
	}
	rec, ok := res.Single()
	if !ok {
		if e.HasVersion() {
			return nil, ogm.NewOptimisticLockError(e.Label, idValue(inst), stmt.Version)
		}
		return nil, ogm.NewIdentifierResolutionError(e.Label, idValue(inst))
	}
	inst.id = dialect.NormalizeID(rec["id"])
	if inst.id == nil {
		return nil, ogm.NewIdentifierResolutionError(e.Label, idValue(inst))
	}
	if e.UsesInternalID() {
		if err := codec.SetID(e, e.ID, inst.v, inst.id); err != nil {
			return nil, err
		}
	}
	if e.HasVersion() {
		next, ok := rec.Int64("version")
		if !ok {
			next = stmt.Version + 1
		}
		if err := codec.SetVersion(e.Version.Value(inst.v), next); err != nil {
			return nil, ogm.NewUnsupportedIdentifierKindError(e.Name, e.Version.Field, e.Version.Type)
		}
	}
	if res.Counters.NodesCreated > 0 {
		inst.isNew = true
	}
	c.markProcessed(v, inst)
	c.log.Debug("saved node",
		zap.String("entity", e.Name),
		zap.Any("id", inst.id),
		zap.Stringer("counters", res.Counters),
	)
	return inst, nil
}

// dynamicLabels returns the labels to add and remove for inst. The stored
// labels are read first unless the node is about to be created.
func (c *call) dynamicLabels(ctx context.Context, inst *instance) (add, remove []string, err error) {
	e := inst.e
	if e.DynamicLabels == nil {
		return nil, nil, nil
	}
	cur, _ := e.DynamicLabels.Value(inst.v).Interface().([]string)
	ref := nodeRef(inst)
	if ref.ByStoreID() && ref.ID == nil {
		return dynamicOnly(e, cur), nil, nil
	}
	res, err := c.run(ctx, dialect.ReadLabels{Node: ref, Exclude: e.Labels})
	if err != nil {
		return nil, nil, ogm.NewMutationError(e.Name, "read labels", err)
	}
	var old []string
	if rec, ok := res.Single(); ok {
		old = rec.Strings("labels")
	}
	if len(dynamicOnly(e, old)) == 0 {
		return dynamicOnly(e, cur), nil, nil
	}
	d := Reconcile(e, old, cur)
	return d.Add, d.Remove, nil
}

// markProcessed records inst, persisted on behalf of orig, in the state
// machine.
func (c *call) markProcessed(orig any, inst *instance) {
	if inst.isNew {
		c.markCreated(inst.ptr)
	}
	c.sm.MarkEntityProcessed(inst.ptr, inst.id)
	if orig != inst.ptr {
		c.sm.MarkProcessedAs(orig, inst.ptr)
	}
}

// resolveTarget returns the persisted instance of the related value r and
// whether the call went through its own associations. Targets of
// non-cascading associations that already exist are only looked up.
func (c *call) resolveTarget(ctx context.Context, a *schema.Association, r Related) (*instance, bool, error) {
	v := r.Instance()
	inst, err := c.once(v, func() (*instance, error) {
		if !a.Cascade {
			if inst, ok, err := c.lookupNode(ctx, v); ok || err != nil {
				return inst, err
			}
		}
		return c.writeNode(ctx, v)
	})
	if err != nil {
		return nil, false, err
	}
	return inst, !c.wasLoaded(inst.ptr), nil
}

// lookupNode resolves the store id of an existing entity without writing
// it. It reports false when v has no identifier or no node.
func (c *call) lookupNode(ctx context.Context, v any) (*instance, bool, error) {
	inst, err := c.instance(v)
	if err != nil {
		return nil, false, err
	}
	if idValue(inst) == nil {
		return nil, false, nil
	}
	res, err := c.run(ctx, dialect.LoadNode{Node: nodeRef(inst)})
	if err != nil {
		return nil, false, ogm.NewQueryError(inst.e.Name, "load", err)
	}
	rec, ok := res.Single()
	if !ok {
		return nil, false, nil
	}
	inst.id = dialect.NormalizeID(rec["id"])
	c.markLoaded(inst.ptr)
	c.sm.MarkEntityProcessed(inst.ptr, inst.id)
	return inst, true, nil
}

// nodeRef addresses the node of inst. Store identified entities without
// an identifier produce a reference that creates the node.
func nodeRef(inst *instance) dialect.NodeRef {
	e := inst.e
	return dialect.NodeRef{Label: e.Label, IDProperty: e.IDProperty(), ID: idValue(inst)}
}

// idValue returns the logical identifier held by inst.
func idValue(inst *instance) any {
	return codec.Read(inst.e.ID.Value(inst.v))
}

func nodeProperties(inst *instance) map[string]any {
	return codec.Properties(inst.e.Properties, inst.v)
}
