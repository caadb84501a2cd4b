package codec_test

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/codec"
	"github.com/syssam/velox-ogm/schema"
)

type Account struct {
	ID      *int64   `ogm:",id,internal"`
	Name    string   `ogm:"name"`
	Balance float64  `ogm:"balance"`
	Age     *int     `ogm:"age"`
	Tags    []string `ogm:"tags"`
	Scores  []int32  `ogm:"scores"`
	Active  bool     `ogm:"active"`
	Version uint16   `ogm:",version"`
}

type Ticket struct {
	Key string `ogm:"key,id,uuid"`
}

func TestRead(t *testing.T) {
	t.Parallel()
	id := int64(7)
	assert.Equal(t, int64(7), codec.Read(reflect.ValueOf(&id)))
	assert.Nil(t, codec.Read(reflect.ValueOf((*int64)(nil))))
	assert.Nil(t, codec.Read(reflect.ValueOf("")))
	assert.Nil(t, codec.Read(reflect.ValueOf(0)))
	assert.Equal(t, "k", codec.Read(reflect.ValueOf("k")))
	assert.Equal(t, int64(3), codec.Read(reflect.ValueOf(uint8(3))))
}

func TestNewID(t *testing.T) {
	t.Parallel()
	a, b := codec.NewID(), codec.NewID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestSetID(t *testing.T) {
	t.Parallel()
	r := schema.NewRegistry()
	e := r.MustEntity(Account{})
	var acc Account
	v := reflect.ValueOf(&acc).Elem()
	require.NoError(t, codec.SetID(e, e.ID, v, int64(42)))
	require.NotNil(t, acc.ID)
	assert.Equal(t, int64(42), *acc.ID)

	err := codec.SetID(e, e.ID, v, "4:abc:1")
	assert.True(t, ogm.IsUnsupportedIdentifierKind(err))

	require.NoError(t, codec.SetID(e, e.ID, v, nil))
	assert.Nil(t, acc.ID)

	te := r.MustEntity(Ticket{})
	var tk Ticket
	tv := reflect.ValueOf(&tk).Elem()
	require.NoError(t, codec.SetID(te, te.ID, tv, int64(9)))
	assert.Equal(t, "9", tk.Key)
}

func TestVersion(t *testing.T) {
	t.Parallel()
	var acc Account
	f := reflect.ValueOf(&acc).Elem().FieldByName("Version")
	assert.Zero(t, codec.Version(f))
	require.NoError(t, codec.SetVersion(f, 3))
	assert.Equal(t, int64(3), codec.Version(f))
	assert.Error(t, codec.SetVersion(f, -1))

	var p *int64
	assert.Zero(t, codec.Version(reflect.ValueOf(p)))
}

func TestProperties(t *testing.T) {
	t.Parallel()
	e := schema.NewRegistry().MustEntity(Account{})
	age := 30
	in := Account{Name: "a", Balance: 1.5, Age: &age, Tags: []string{"x"}, Active: true}
	m := codec.Properties(e.Properties, reflect.ValueOf(in))
	assert.Equal(t, map[string]any{
		"name": "a", "balance": 1.5, "age": 30, "tags": []string{"x"}, "scores": []int32(nil), "active": true,
	}, m)

	var out Account
	err := codec.SetProperties(e.Properties, reflect.ValueOf(&out).Elem(), map[string]any{
		"name":    "b",
		"balance": int64(2),
		"age":     int64(31),
		"tags":    []any{"y", "z"},
		"scores":  []any{int64(1), float64(2)},
		"unknown": "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "b", out.Name)
	assert.Equal(t, 2.0, out.Balance)
	require.NotNil(t, out.Age)
	assert.Equal(t, 31, *out.Age)
	assert.Equal(t, []string{"y", "z"}, out.Tags)
	assert.Equal(t, []int32{1, 2}, out.Scores)

	require.NoError(t, codec.SetProperties(e.Properties, reflect.ValueOf(&out).Elem(), map[string]any{"age": nil}))
	assert.Nil(t, out.Age)
}

func TestAssignRejectsOtherFamilies(t *testing.T) {
	t.Parallel()
	var s string
	assert.Error(t, codec.Assign(reflect.ValueOf(&s).Elem(), int64(65)))
	var b bool
	assert.Error(t, codec.Assign(reflect.ValueOf(&b).Elem(), "true"))
	var n int
	assert.Error(t, codec.Assign(reflect.ValueOf(&n).Elem(), []any{1}))
}
