package persist

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/velox-ogm/schema"
)

func TestReconcile(t *testing.T) {
	t.Parallel()
	e := schema.NewRegistry().MustEntity(Tagged{})
	tests := []struct {
		name     string
		old, cur []string
		want     LabelDelta
	}{
		{name: "NoStoredLabels", old: nil, cur: []string{"A"}},
		{name: "Unchanged", old: []string{"A"}, cur: []string{"A"}},
		{name: "UnchangedOtherOrder", old: []string{"A", "B"}, cur: []string{"B", "A"}},
		{name: "Replaced", old: []string{"A"}, cur: []string{"B"}, want: LabelDelta{Remove: []string{"A"}, Add: []string{"B"}}},
		{name: "KeptLabelNotRemoved", old: []string{"A", "B"}, cur: []string{"A", "C"}, want: LabelDelta{Remove: []string{"B"}, Add: []string{"C"}}},
		{name: "AllRemoved", old: []string{"A"}, cur: nil, want: LabelDelta{Remove: []string{"A"}}},
		{name: "StaticIgnored", old: []string{"Tagged", "A"}, cur: []string{"Tagged", "B", "B"}, want: LabelDelta{Remove: []string{"A"}, Add: []string{"B"}}},
		{name: "OnlyStatic", old: []string{"Tagged"}, cur: []string{"A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Reconcile(e, tt.old, tt.cur)
			assert.Equal(t, tt.want, d)
			assert.Equal(t, len(tt.want.Remove)+len(tt.want.Add) == 0, d.Empty())
		})
	}
}

func TestWalk(t *testing.T) {
	t.Parallel()
	reg := schema.NewRegistry()

	t.Run("OneToMany", func(t *testing.T) {
		a, b := &Player{Name: "a"}, &Player{Name: "b"}
		team := &Team{Players: []*Player{a, nil, b}}
		rs := Walk(reg.MustEntity(team).Association("Players"), reflect.ValueOf(team).Elem())
		assert.Equal(t, []any{a, b}, instances(rs))
		assert.Equal(t, "HAS_PLAYER", rs[0].Type)
	})

	t.Run("OneToOne", func(t *testing.T) {
		p := &Player{}
		assert.Empty(t, Walk(reg.MustEntity(p).Association("Team"), reflect.ValueOf(p).Elem()))
		p.Team = &Team{}
		assert.Len(t, Walk(reg.MustEntity(p).Association("Team"), reflect.ValueOf(p).Elem()), 1)
	})

	t.Run("Properties", func(t *testing.T) {
		x := &Actor{Name: "x"}
		m := &Movie{Actors: []*Role{{Name: "Neo", Actor: x}, {Name: "nobody"}}}
		rs := Walk(reg.MustEntity(m).Association("Actors"), reflect.ValueOf(m).Elem())
		if assert.Len(t, rs, 1) {
			assert.Same(t, x, rs[0].Instance())
			assert.Equal(t, "Neo", rs[0].Properties.FieldByName("Name").String())
			assert.True(t, rs[0].Properties.CanSet())
		}
	})

	t.Run("DynamicSortedByKey", func(t *testing.T) {
		a, b, c := &Ticket{Title: "a"}, &Ticket{Title: "b"}, &Ticket{Title: "c"}
		tk := &Ticket{Links: map[string][]*Ticket{"RELATES": {c}, "BLOCKS": {a, b}}}
		rs := Walk(reg.MustEntity(tk).Association("Links"), reflect.ValueOf(tk).Elem())
		assert.Equal(t, []any{a, b, c}, instances(rs))
		assert.Equal(t, []string{"BLOCKS", "BLOCKS", "RELATES"}, []string{rs[0].Type, rs[1].Type, rs[2].Type})
	})
}
