// Package callback provides lifecycle callbacks invoked by the save and
// load engines, and deals with their evaluation at runtime.
package callback

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// Chain decision sentinel errors.
//
// Callbacks return them to steer the evaluation of a chain. Use errors.Is()
// to check for these values:
//
//	if errors.Is(err, callback.Stop) { ... }
//	if errors.Is(err, callback.Skip) { ... }
var (
	// Stop may be returned by callbacks to indicate that the chain
	// evaluation should terminate. The entity returned alongside it is
	// used as the result of the chain.
	Stop = errors.New("ogm/callback: stop chain")

	// Skip may be returned by callbacks to indicate that the callback
	// abstains. The entity returned alongside it is ignored and the
	// evaluation continues with the next callback.
	Skip = errors.New("ogm/callback: skip callback")
)

// Stopf returns a formatted wrapped Stop decision.
func Stopf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Stop)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

type (
	// BeforeBind is called once per entity instance right before its
	// properties are bound to a write. The returned instance replaces the
	// original for all further processing of that entity.
	BeforeBind interface {
		BeforeBind(ctx context.Context, entity any) (any, error)
	}

	// AfterLoad is called once per entity instance right after it was
	// reconstructed from the store. The returned instance replaces the
	// loaded one.
	AfterLoad interface {
		AfterLoad(ctx context.Context, entity any) (any, error)
	}
)

// BeforeBindFunc type is an adapter which allows the use of ordinary
// functions as BeforeBind callbacks.
type BeforeBindFunc func(context.Context, any) (any, error)

// BeforeBind returns f(ctx, entity).
func (f BeforeBindFunc) BeforeBind(ctx context.Context, entity any) (any, error) {
	return f(ctx, entity)
}

// AfterLoadFunc type is an adapter which allows the use of ordinary
// functions as AfterLoad callbacks.
type AfterLoadFunc func(context.Context, any) (any, error)

// AfterLoad returns f(ctx, entity).
func (f AfterLoadFunc) AfterLoad(ctx context.Context, entity any) (any, error) {
	return f(ctx, entity)
}

// BeforeBindOf returns a callback evaluated only for entities of type *T.
// Entities of other types are skipped.
func BeforeBindOf[T any](fn func(context.Context, *T) (*T, error)) BeforeBind {
	return BeforeBindFunc(func(ctx context.Context, entity any) (any, error) {
		v, ok := entity.(*T)
		if !ok {
			return entity, Skip
		}
		return fn(ctx, v)
	})
}

// AfterLoadOf returns a callback evaluated only for entities of type *T.
func AfterLoadOf[T any](fn func(context.Context, *T) (*T, error)) AfterLoad {
	return AfterLoadFunc(func(ctx context.Context, entity any) (any, error) {
		v, ok := entity.(*T)
		if !ok {
			return entity, Skip
		}
		return fn(ctx, v)
	})
}

// Callbacks groups the before-bind and after-load chains.
type Callbacks struct {
	BeforeBind []BeforeBind
	AfterLoad  []AfterLoad
}

// OnBeforeBind appends callbacks to the before-bind chain.
func (c *Callbacks) OnBeforeBind(cbs ...BeforeBind) *Callbacks {
	c.BeforeBind = append(c.BeforeBind, cbs...)
	return c
}

// OnAfterLoad appends callbacks to the after-load chain.
func (c *Callbacks) OnAfterLoad(cbs ...AfterLoad) *Callbacks {
	c.AfterLoad = append(c.AfterLoad, cbs...)
	return c
}

// RunBeforeBind evaluates the before-bind chain. A nil receiver returns
// entity unchanged.
func (c *Callbacks) RunBeforeBind(ctx context.Context, entity any) (any, error) {
	if c == nil {
		return entity, nil
	}
	return eval(ctx, c.BeforeBind, entity, func(cb BeforeBind, v any) (any, error) {
		return cb.BeforeBind(ctx, v)
	})
}

// RunAfterLoad evaluates the after-load chain. A nil receiver returns
// entity unchanged.
func (c *Callbacks) RunAfterLoad(ctx context.Context, entity any) (any, error) {
	if c == nil {
		return entity, nil
	}
	return eval(ctx, c.AfterLoad, entity, func(cb AfterLoad, v any) (any, error) {
		return cb.AfterLoad(ctx, v)
	})
}

func eval[C any](ctx context.Context, chain []C, entity any, call func(C, any) (any, error)) (any, error) {
	if Disabled(ctx) {
		return entity, nil
	}
	for _, cb := range chain {
		next, err := call(cb, entity)
		switch {
		case err == nil:
			if next, err = replacement(entity, next); err != nil {
				return nil, err
			}
			entity = next
		case errors.Is(err, Skip):
		case errors.Is(err, Stop):
			return replacement(entity, next)
		default:
			return nil, err
		}
	}
	return entity, nil
}

// replacement checks that a callback returned an instance of the same
// type as the one it was given. A nil result keeps the original.
func replacement(orig, next any) (any, error) {
	if next == nil || reflect.ValueOf(next).IsZero() && reflect.TypeOf(next).Kind() == reflect.Pointer {
		return orig, nil
	}
	if reflect.TypeOf(next) != reflect.TypeOf(orig) {
		return nil, fmt.Errorf("ogm/callback: callback returned %T for %T", next, orig)
	}
	return next, nil
}

type disabledCtxKey struct{}

// Disable returns a context under which no callback is evaluated.
func Disable(parent context.Context) context.Context {
	return context.WithValue(parent, disabledCtxKey{}, true)
}

// Disabled reports whether callbacks are disabled in ctx.
func Disabled(ctx context.Context) bool {
	v, _ := ctx.Value(disabledCtxKey{}).(bool)
	return v
}
