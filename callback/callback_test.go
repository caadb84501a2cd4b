package callback_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox-ogm/callback"
)

type user struct{ Name string }

type group struct{ Name string }

func TestDecisionErrors(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, callback.Stopf("done with %s", "user"), callback.Stop)
	assert.ErrorIs(t, callback.Skipf("not mine"), callback.Skip)
	assert.NotErrorIs(t, callback.Stop, callback.Skip)
}

func TestRunBeforeBind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("NilCallbacks", func(t *testing.T) {
		u := &user{Name: "a"}
		got, err := (*callback.Callbacks)(nil).RunBeforeBind(ctx, u)
		require.NoError(t, err)
		assert.Same(t, u, got)
	})

	t.Run("Replacement", func(t *testing.T) {
		repl := &user{Name: "b"}
		var seen []string
		c := new(callback.Callbacks).OnBeforeBind(
			callback.BeforeBindOf(func(_ context.Context, u *user) (*user, error) {
				seen = append(seen, "first:"+u.Name)
				return repl, nil
			}),
			callback.BeforeBindFunc(func(_ context.Context, v any) (any, error) {
				seen = append(seen, "second:"+v.(*user).Name)
				return v, nil
			}),
		)
		got, err := c.RunBeforeBind(ctx, &user{Name: "a"})
		require.NoError(t, err)
		assert.Same(t, repl, got)
		assert.Equal(t, []string{"first:a", "second:b"}, seen)
	})

	t.Run("OtherTypeSkipped", func(t *testing.T) {
		c := new(callback.Callbacks).OnBeforeBind(
			callback.BeforeBindOf(func(context.Context, *user) (*user, error) {
				t.Fatal("unexpected call")
				return nil, nil
			}),
		)
		g := &group{Name: "g"}
		got, err := c.RunBeforeBind(ctx, g)
		require.NoError(t, err)
		assert.Same(t, g, got)
	})

	t.Run("Stop", func(t *testing.T) {
		repl := &user{Name: "stopped"}
		c := new(callback.Callbacks).OnBeforeBind(
			callback.BeforeBindFunc(func(context.Context, any) (any, error) { return repl, callback.Stop }),
			callback.BeforeBindFunc(func(context.Context, any) (any, error) {
				t.Fatal("chain continued after stop")
				return nil, nil
			}),
		)
		got, err := c.RunBeforeBind(ctx, &user{})
		require.NoError(t, err)
		assert.Same(t, repl, got)
	})

	t.Run("Error", func(t *testing.T) {
		boom := errors.New("boom")
		c := new(callback.Callbacks).OnBeforeBind(
			callback.BeforeBindFunc(func(context.Context, any) (any, error) { return nil, boom }),
		)
		_, err := c.RunBeforeBind(ctx, &user{})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("WrongType", func(t *testing.T) {
		c := new(callback.Callbacks).OnBeforeBind(
			callback.BeforeBindFunc(func(context.Context, any) (any, error) { return &group{}, nil }),
		)
		_, err := c.RunBeforeBind(ctx, &user{})
		assert.Error(t, err)
	})

	t.Run("NilResultKeepsOriginal", func(t *testing.T) {
		c := new(callback.Callbacks).OnBeforeBind(
			callback.BeforeBindOf(func(context.Context, *user) (*user, error) { return nil, nil }),
		)
		u := &user{}
		got, err := c.RunBeforeBind(ctx, u)
		require.NoError(t, err)
		assert.Same(t, u, got)
	})

	t.Run("Disabled", func(t *testing.T) {
		c := new(callback.Callbacks).OnBeforeBind(
			callback.BeforeBindFunc(func(context.Context, any) (any, error) { return nil, errors.New("called") }),
		)
		u := &user{}
		got, err := c.RunBeforeBind(callback.Disable(ctx), u)
		require.NoError(t, err)
		assert.Same(t, u, got)
	})
}

func TestRunAfterLoad(t *testing.T) {
	t.Parallel()
	var n int
	c := new(callback.Callbacks).OnAfterLoad(
		callback.AfterLoadOf(func(_ context.Context, u *user) (*user, error) {
			n++
			u.Name += "!"
			return u, nil
		}),
	)
	u := &user{Name: "a"}
	got, err := c.RunAfterLoad(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "a!", got.(*user).Name)
	assert.Equal(t, 1, n)
}
