package persist

import (
	"reflect"
	"slices"

	"github.com/syssam/velox-ogm/schema"
)

// Related is one value held by an association, unwrapped to the plain
// target entity.
type Related struct {
	// Target is the pointer to the related entity.
	Target reflect.Value
	// Type is the relationship type; the map key for dynamic associations.
	Type string
	// Properties is the addressable relationship properties struct, if
	// the association carries properties.
	Properties reflect.Value
}

// Instance returns the target pointer as an interface value.
func (r Related) Instance() any {
	return r.Target.Interface()
}

// Walk returns the values currently held by the association a of owner,
// an addressable struct value. Nil pointers are skipped; dynamic
// associations are visited in key order.
func Walk(a *schema.Association, owner reflect.Value) []Related {
	f := a.Value(owner)
	var out []Related
	add := func(typ string, v reflect.Value) {
		if v.IsNil() {
			return
		}
		r := Related{Target: v, Type: typ}
		if a.HasProperties() {
			r.Properties = v.Elem()
			r.Target = a.Properties.Target.Value(r.Properties)
			if r.Target.IsNil() {
				return
			}
		}
		out = append(out, r)
	}
	switch a.Cardinality {
	case schema.OneToOne:
		add(a.Type, f)
	case schema.OneToMany:
		for i := 0; i < f.Len(); i++ {
			add(a.Type, f.Index(i))
		}
	case schema.DynamicOneToOne, schema.DynamicOneToMany:
		for _, k := range sortedKeys(f) {
			v := f.MapIndex(k)
			if a.Cardinality == schema.DynamicOneToOne {
				add(k.String(), v)
				continue
			}
			for i := 0; i < v.Len(); i++ {
				add(k.String(), v.Index(i))
			}
		}
	}
	return out
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		}
		return 0
	})
	return keys
}

// instances returns the target pointers of rs.
func instances(rs []Related) []any {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = r.Instance()
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
