package schema

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	ogm "github.com/syssam/velox-ogm"
)

// Registry caches entity descriptors by struct type. It is safe for
// concurrent use, populated lazily and never invalidated.
type Registry struct {
	mu       sync.RWMutex
	entities map[reflect.Type]*Entity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[reflect.Type]*Entity)}
}

// Default is the process wide registry.
var Default = NewRegistry()

// Entity returns the descriptor for the type of v, which may be a struct,
// a pointer to a struct, or a reflect.Type of either.
func (r *Registry) Entity(v any) (*Entity, error) {
	var t reflect.Type
	switch v := v.(type) {
	case reflect.Type:
		t = v
	case reflect.Value:
		t = v.Type()
	default:
		t = reflect.TypeOf(v)
	}
	if t == nil {
		return nil, fmt.Errorf("ogm/schema: nil entity")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("ogm/schema: %s is not a struct", t)
	}
	r.mu.RLock()
	e, ok := r.entities[t]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entities[t]; ok {
		return e, nil
	}
	l := &loader{known: r.entities, pending: make(map[reflect.Type]*Entity)}
	e, err := l.load(t)
	if err != nil {
		return nil, err
	}
	for _, p := range l.order {
		resolveObverse(p)
	}
	for t, p := range l.pending {
		r.entities[t] = p
	}
	return e, nil
}

// MustEntity is like Entity but panics on error.
func (r *Registry) MustEntity(v any) *Entity {
	e, err := r.Entity(v)
	if err != nil {
		panic(err)
	}
	return e
}

// Len returns the number of cached descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// loader builds a closed set of entities reachable from one type. Nothing
// is published to the registry unless the whole set loads.
type loader struct {
	known   map[reflect.Type]*Entity
	pending map[reflect.Type]*Entity
	order   []*Entity
}

var timeType = reflect.TypeOf(time.Time{})

func (l *loader) load(t reflect.Type) (*Entity, error) {
	if e, ok := l.known[t]; ok {
		return e, nil
	}
	if e, ok := l.pending[t]; ok {
		return e, nil
	}
	e := &Entity{Type: t, Name: t.Name(), Label: t.Name()}
	l.pending[t] = e
	l.order = append(l.order, e)
	var extra []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tg := parseTag(f)
		if tg.skip {
			continue
		}
		if f.Name == "_" {
			if tg.has("node") {
				if lb := tg.get("label"); lb != "" {
					e.Label = lb
				}
				extra = append(extra, tg.list("labels")...)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := tg.name
		if name == "" {
			name = PropertyName(f.Name)
		}
		prop := &Property{Field: f.Name, Name: name, Index: f.Index, Type: f.Type}
		switch {
		case tg.has("id"):
			if e.ID != nil {
				return nil, fmt.Errorf("ogm/schema: %s declares more than one identifier", e.Name)
			}
			e.ID = prop
			switch {
			case tg.has("internal"):
				e.IDKind = IDInternal
			case tg.has("uuid"):
				e.IDKind = IDGenerated
			default:
				e.IDKind = IDAssigned
			}
			if !validID(e.IDKind, f.Type) {
				return nil, ogm.NewUnsupportedIdentifierKindError(e.Name, f.Name, f.Type)
			}
		case tg.has("version"):
			if !isInt(deref(f.Type)) {
				return nil, ogm.NewUnsupportedIdentifierKindError(e.Name, f.Name, f.Type)
			}
			e.Version = prop
		case tg.has("labels"):
			if f.Type != reflect.TypeOf([]string(nil)) {
				return nil, fmt.Errorf("ogm/schema: dynamic labels field %s.%s must be []string", e.Name, f.Name)
			}
			e.DynamicLabels = prop
		default:
			card, elem, ok := associationShape(f.Type)
			if !ok {
				e.Properties = append(e.Properties, prop)
				continue
			}
			a, err := l.association(e, f, tg, card, elem)
			if err != nil {
				return nil, err
			}
			e.associations = append(e.associations, a)
		}
	}
	if e.ID == nil {
		return nil, fmt.Errorf("ogm/schema: %s has no identifier field", e.Name)
	}
	e.Labels = append([]string{e.Label}, extra...)
	return e, nil
}

func (l *loader) association(owner *Entity, f reflect.StructField, tg tag, card Cardinality, elem reflect.Type) (*Association, error) {
	a := &Association{
		Field:       f.Name,
		Name:        tg.name,
		Index:       f.Index,
		Type:        tg.get("rel"),
		Cardinality: card,
		Owner:       owner,
		Cascade:     !tg.has("nocascade"),
		ReadOnly:    tg.has("readonly"),
	}
	if a.Name == "" {
		a.Name = PropertyName(f.Name)
	}
	switch tg.get("dir") {
	case "", "out", "outgoing":
		a.Direction = Outgoing
	case "in", "incoming":
		a.Direction = Incoming
	default:
		return nil, fmt.Errorf("ogm/schema: %s.%s: unknown direction %q", owner.Name, f.Name, tg.get("dir"))
	}
	if card.IsDynamic() {
		a.Type = ""
	} else if a.Type == "" {
		a.Type = RelationshipType(a.Name)
	}
	targetType := elem
	if rp, err := relationshipProperties(elem); err != nil {
		return nil, fmt.Errorf("ogm/schema: %s.%s: %w", owner.Name, f.Name, err)
	} else if rp != nil {
		a.Properties = rp
		targetType = rp.Target.Type.Elem()
	}
	target, err := l.load(targetType)
	if err != nil {
		return nil, err
	}
	a.Target = target
	return a, nil
}

// relationshipProperties returns the descriptor of t if one of its fields
// is tagged as relationship target.
func relationshipProperties(t reflect.Type) (*RelationshipProperties, error) {
	var rp *RelationshipProperties
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tg := parseTag(f); tg.has("target") {
			if f.Type.Kind() != reflect.Pointer || f.Type.Elem().Kind() != reflect.Struct {
				return nil, fmt.Errorf("relationship target %s.%s must be a struct pointer", t.Name(), f.Name)
			}
			rp = &RelationshipProperties{Type: t, Target: &Property{Field: f.Name, Name: f.Name, Index: f.Index, Type: f.Type}}
			break
		}
	}
	if rp == nil {
		return nil, nil
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tg := parseTag(f)
		if tg.skip || !f.IsExported() || f.Name == rp.Target.Field {
			continue
		}
		name := tg.name
		if name == "" {
			name = PropertyName(f.Name)
		}
		p := &Property{Field: f.Name, Name: name, Index: f.Index, Type: f.Type}
		if tg.has("id") {
			if !validID(IDInternal, f.Type) {
				return nil, ogm.NewUnsupportedIdentifierKindError(t.Name(), f.Name, f.Type)
			}
			rp.ID = p
			continue
		}
		rp.Properties = append(rp.Properties, p)
	}
	return rp, nil
}

// associationShape reports the cardinality and element struct type of an
// association field type.
func associationShape(t reflect.Type) (Cardinality, reflect.Type, bool) {
	ptrStruct := func(t reflect.Type) (reflect.Type, bool) {
		if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct && t.Elem() != timeType {
			return t.Elem(), true
		}
		return nil, false
	}
	switch t.Kind() {
	case reflect.Pointer:
		if e, ok := ptrStruct(t); ok {
			return OneToOne, e, true
		}
	case reflect.Slice:
		if e, ok := ptrStruct(t.Elem()); ok {
			return OneToMany, e, true
		}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			break
		}
		if e, ok := ptrStruct(t.Elem()); ok {
			return DynamicOneToOne, e, true
		}
		if t.Elem().Kind() == reflect.Slice {
			if e, ok := ptrStruct(t.Elem().Elem()); ok {
				return DynamicOneToMany, e, true
			}
		}
	}
	return 0, nil, false
}

// resolveObverse links the associations of e to their counterparts.
func resolveObverse(e *Entity) {
	for _, a := range e.associations {
		if a.Obverse != nil || a.Dynamic() {
			continue
		}
		for _, b := range a.Target.associations {
			if b != a && b.Obverse == nil && !b.Dynamic() && b.Type == a.Type &&
				b.Direction == a.Direction.Opposite() && b.Target == e {
				a.Obverse, b.Obverse = b, a
				break
			}
		}
	}
}

func deref(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func isInt(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func validID(kind IDKind, t reflect.Type) bool {
	t = deref(t)
	switch kind {
	case IDGenerated:
		return t.Kind() == reflect.String
	default:
		return t.Kind() == reflect.String || isInt(t)
	}
}
