// Package codec converts between struct fields and the identifier, version
// and property values exchanged with a store.
package codec

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/google/uuid"

	ogm "github.com/syssam/velox-ogm"
	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/schema"
)

// NewID returns a generated identifier.
func NewID() string {
	return uuid.NewString()
}

// Read returns the logical value of an identifier field: nil for zero
// values and nil pointers, int64 for integers and string for strings.
func Read(f reflect.Value) any {
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return nil
		}
		f = f.Elem()
		return normalize(f)
	}
	if f.IsZero() {
		return nil
	}
	return normalize(f)
}

func normalize(f reflect.Value) any {
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return f.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(f.Uint())
	case reflect.String:
		return f.String()
	}
	return f.Interface()
}

// SetID writes id into the identifier property p of the struct v.
func SetID(e *schema.Entity, p *schema.Property, v reflect.Value, id any) error {
	if err := assignScalar(p.Value(v), id); err != nil {
		return ogm.NewUnsupportedIdentifierKindError(e.Name, p.Field, p.Type)
	}
	return nil
}

// SetRelationshipID writes id into the identifier of relationship properties v.
func SetRelationshipID(rp *schema.RelationshipProperties, v reflect.Value, id any) error {
	if rp.ID == nil {
		return nil
	}
	if err := assignScalar(rp.ID.Value(v), id); err != nil {
		return ogm.NewUnsupportedIdentifierKindError(rp.Type.Name(), rp.ID.Field, rp.ID.Type)
	}
	return nil
}

// Version returns the value of a version field.
func Version(f reflect.Value) int64 {
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return 0
		}
		f = f.Elem()
	}
	n, _ := dialect.ToInt64(normalize(f))
	return n
}

// SetVersion writes n into a version field.
func SetVersion(f reflect.Value, n int64) error {
	return assignScalar(f, n)
}

// assignScalar sets an integer or string field, allocating pointers.
func assignScalar(f reflect.Value, v any) error {
	if v == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	if f.Kind() == reflect.Pointer {
		nv := reflect.New(f.Type().Elem())
		if err := assignScalar(nv.Elem(), v); err != nil {
			return err
		}
		f.Set(nv)
		return nil
	}
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := dialect.ToInt64(v)
		if !ok {
			return fmt.Errorf("ogm/codec: cannot assign %T to %s", v, f.Type())
		}
		f.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := dialect.ToInt64(v)
		if !ok || n < 0 {
			return fmt.Errorf("ogm/codec: cannot assign %T to %s", v, f.Type())
		}
		f.SetUint(uint64(n))
	case reflect.String:
		switch v := v.(type) {
		case string:
			f.SetString(v)
		case int64:
			f.SetString(strconv.FormatInt(v, 10))
		default:
			return fmt.Errorf("ogm/codec: cannot assign %T to %s", v, f.Type())
		}
	default:
		return fmt.Errorf("ogm/codec: cannot assign %T to %s", v, f.Type())
	}
	return nil
}

// Properties returns the store properties of the struct v.
func Properties(props []*schema.Property, v reflect.Value) map[string]any {
	m := make(map[string]any, len(props))
	for _, p := range props {
		f := p.Value(v)
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				m[p.Name] = nil
				continue
			}
			f = f.Elem()
		}
		m[p.Name] = f.Interface()
	}
	return m
}

// SetProperties writes store properties into the struct v. Keys without a
// matching property are ignored.
func SetProperties(props []*schema.Property, v reflect.Value, m map[string]any) error {
	for _, p := range props {
		val, ok := m[p.Name]
		if !ok {
			continue
		}
		if err := Assign(p.Value(v), val); err != nil {
			return fmt.Errorf("ogm/codec: property %q: %w", p.Name, err)
		}
	}
	return nil
}

// Assign sets f from a value decoded by a store. Numeric kinds are
// converted, slices are converted element-wise and pointers allocated.
func Assign(f reflect.Value, v any) error {
	if v == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(f.Type()) {
		f.Set(rv)
		return nil
	}
	switch f.Kind() {
	case reflect.Pointer:
		nv := reflect.New(f.Type().Elem())
		if err := Assign(nv.Elem(), v); err != nil {
			return err
		}
		f.Set(nv)
		return nil
	case reflect.Slice:
		if rv.Kind() != reflect.Slice {
			break
		}
		s := reflect.MakeSlice(f.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := Assign(s.Index(i), rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		f.Set(s)
		return nil
	}
	if rv.Type().ConvertibleTo(f.Type()) && sameFamily(rv.Kind(), f.Kind()) {
		f.Set(rv.Convert(f.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, f.Type())
}

// sameFamily guards against reflect conversions that are legal but lossy
// in meaning, such as int to string.
func sameFamily(a, b reflect.Kind) bool {
	return family(a) == family(b)
}

func family(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 1
	case reflect.String:
		return 2
	case reflect.Bool:
		return 3
	}
	return int(k) + 10
}
