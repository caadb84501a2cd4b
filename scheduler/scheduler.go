// Package scheduler supplies the two execution models the save and load
// engines run under. Both engines are written once against Runner; Blocking
// performs every round trip inline, Async performs each round trip as a task
// the caller waits on and runs independent branches concurrently.
package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/velox-ogm/dialect"
)

// Runner schedules store round trips and independent branches of work.
type Runner interface {
	// Run performs one round trip and returns its result.
	Run(ctx context.Context, ex dialect.ExecQuerier, stmt dialect.Statement) (*dialect.Result, error)
	// Fork runs fn for every index in [0, n) and returns the first error.
	// No branch is started after a failure.
	Fork(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

// Blocking runs everything on the calling goroutine, in order.
type Blocking struct{}

// Run implements Runner.
func (Blocking) Run(ctx context.Context, ex dialect.ExecQuerier, stmt dialect.Statement) (*dialect.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ex.Run(ctx, stmt)
}

// Fork implements Runner.
func (Blocking) Fork(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// Async runs each round trip on its own goroutine and forks branches
// concurrently, at most Limit at a time when Limit > 0.
type Async struct {
	Limit int
}

// NewAsync returns an Async runner with the given branch limit.
func NewAsync(limit int) *Async {
	return &Async{Limit: limit}
}

type outcome struct {
	res *dialect.Result
	err error
}

// Run implements Runner. The call returns as soon as ctx is done; the
// result of an abandoned round trip is discarded.
func (a *Async) Run(ctx context.Context, ex dialect.ExecQuerier, stmt dialect.Statement) (*dialect.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := ex.Run(ctx, stmt)
		done <- outcome{res, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.res, o.err
	}
}

// Fork implements Runner.
func (a *Async) Fork(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 1 {
		return fn(ctx, 0)
	}
	g, gctx := errgroup.WithContext(ctx)
	if a.Limit > 0 {
		g.SetLimit(a.Limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

var (
	_ Runner = Blocking{}
	_ Runner = (*Async)(nil)
)
