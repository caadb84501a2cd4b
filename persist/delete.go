package persist

import (
	"context"

	"go.uber.org/zap"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/codec"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/schema"
)

// ref addresses the node of entity type e with the logical identifier id.
func ref(e *schema.Entity, id any) dialect.NodeRef {
	return dialect.NodeRef{Label: e.Label, IDProperty: e.IDProperty(), ID: dialect.NormalizeID(id)}
}

// DeleteByID detaches and deletes the node of type typ (a struct, a
// pointer to one or a reflect.Type) identified by id.
func (e *Engine) DeleteByID(ctx context.Context, typ, id any) error {
	ent, err := e.registry.Entity(typ)
	if err != nil {
		return err
	}
	res, err := e.runner.Run(ctx, e.ex, dialect.DeleteNode{Node: ref(ent, id)})
	if err != nil {
		return ogm.NewMutationError(ent.Name, "delete", err)
	}
	e.log.Debug("deleted entity", zap.String("entity", ent.Name), zap.Any("id", id),
		zap.Int("nodes", res.Counters.NodesDeleted), zap.Int("relationships", res.Counters.RelationshipsDeleted))
	return nil
}

// DeleteByIDWithVersion is like DeleteByID but fails with an
// OptimisticLockError unless the stored node carries version.
func (e *Engine) DeleteByIDWithVersion(ctx context.Context, typ, id any, version int64) error {
	ent, err := e.registry.Entity(typ)
	if err != nil {
		return err
	}
	if !ent.HasVersion() {
		return e.DeleteByID(ctx, typ, id)
	}
	res, err := e.runner.Run(ctx, e.ex, dialect.DeleteNode{
		Node:            ref(ent, id),
		VersionProperty: ent.Version.Name,
		Version:         version,
	})
	if err != nil {
		return ogm.NewMutationError(ent.Name, "delete", err)
	}
	if res.Counters.NodesDeleted == 0 {
		return ogm.NewOptimisticLockError(ent.Label, id, version)
	}
	return nil
}

// Delete deletes the node of entity, checking its version if the type is
// versioned.
func (e *Engine) Delete(ctx context.Context, entity any) error {
	c := e.newCall(nil)
	inst, err := c.instance(entity)
	if err != nil {
		return err
	}
	id := idValue(inst)
	if id == nil {
		return ogm.NewNotFoundError(inst.e.Label)
	}
	if inst.e.HasVersion() {
		return e.DeleteByIDWithVersion(ctx, entity, id, codec.Version(inst.e.Version.Value(inst.v)))
	}
	return e.DeleteByID(ctx, entity, id)
}

// DeleteAllByID deletes the nodes of type typ identified by ids in one
// statement.
func (e *Engine) DeleteAllByID(ctx context.Context, typ any, ids []any) error {
	ent, err := e.registry.Entity(typ)
	if err != nil {
		return err
	}
	norm := make([]any, len(ids))
	for i, id := range ids {
		norm[i] = dialect.NormalizeID(id)
	}
	res, err := e.runner.Run(ctx, e.ex, dialect.DeleteNodes{Label: ent.Label, IDProperty: ent.IDProperty(), IDs: norm})
	if err != nil {
		return ogm.NewMutationError(ent.Name, "delete", err)
	}
	e.log.Debug("deleted entities", zap.String("entity", ent.Name), zap.Stringer("counters", res.Counters))
	return nil
}

// DeleteAll deletes every node carrying the primary label of typ.
func (e *Engine) DeleteAll(ctx context.Context, typ any) error {
	ent, err := e.registry.Entity(typ)
	if err != nil {
		return err
	}
	res, err := e.runner.Run(ctx, e.ex, dialect.DeleteAll{Label: ent.Label})
	if err != nil {
		return ogm.NewMutationError(ent.Name, "delete", err)
	}
	e.log.Debug("deleted all entities", zap.String("label", ent.Label), zap.Stringer("counters", res.Counters))
	return nil
}

// Count returns the number of nodes carrying the primary label of typ.
func (e *Engine) Count(ctx context.Context, typ any) (int64, error) {
	ent, err := e.registry.Entity(typ)
	if err != nil {
		return 0, err
	}
	res, err := e.runner.Run(ctx, e.ex, dialect.Count{Label: ent.Label})
	if err != nil {
		return 0, ogm.NewQueryError(ent.Name, "count", err)
	}
	rec, ok := res.Single()
	if !ok {
		return 0, nil
	}
	n, _ := rec.Int64("count")
	return n, nil
}
