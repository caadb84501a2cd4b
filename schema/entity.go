package schema

import (
	"reflect"
)

// IDKind describes who assigns the identifier of an entity.
type IDKind uint8

// Identifier kinds.
const (
	// IDInternal identifiers are assigned by the store on first write.
	IDInternal IDKind = iota + 1
	// IDAssigned identifiers are set by the caller before saving.
	IDAssigned
	// IDGenerated identifiers are UUID strings generated before the first write.
	IDGenerated
)

// String returns the kind name.
func (k IDKind) String() string {
	switch k {
	case IDInternal:
		return "internal"
	case IDAssigned:
		return "assigned"
	case IDGenerated:
		return "generated"
	}
	return "unknown"
}

// Direction of a relationship as seen from the declaring entity.
type Direction uint8

// Relationship directions.
const (
	Outgoing Direction = iota
	Incoming
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Outgoing {
		return Incoming
	}
	return Outgoing
}

// String returns the direction name.
func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// Cardinality is the shape of an association field.
type Cardinality uint8

// Association cardinalities.
const (
	OneToOne         Cardinality = iota + 1 // *T
	OneToMany                               // []*T
	DynamicOneToOne                         // map[string]*T
	DynamicOneToMany                        // map[string][]*T
)

// IsDynamic reports whether the relationship type comes from a map key.
func (c Cardinality) IsDynamic() bool {
	return c == DynamicOneToOne || c == DynamicOneToMany
}

// String returns the cardinality name.
func (c Cardinality) String() string {
	switch c {
	case OneToOne:
		return "one-to-one"
	case OneToMany:
		return "one-to-many"
	case DynamicOneToOne:
		return "dynamic-one-to-one"
	case DynamicOneToMany:
		return "dynamic-one-to-many"
	}
	return "unknown"
}

// Property is a persisted struct field.
type Property struct {
	Field string       // Go field name
	Name  string       // property key in the store
	Index []int        // reflect field index
	Type  reflect.Type // field type
}

// Value returns the field of v, which must be the addressable struct.
func (p *Property) Value(v reflect.Value) reflect.Value {
	return v.FieldByIndex(p.Index)
}

// Entity describes a mapped struct type. Entities are built once by a
// Registry and never mutated afterwards.
type Entity struct {
	Type          reflect.Type // struct type
	Name          string
	Label         string   // primary label
	Labels        []string // static labels, primary first
	ID            *Property
	IDKind        IDKind
	Version       *Property // optional
	DynamicLabels *Property // optional []string field
	Properties    []*Property

	associations []*Association
}

// Associations returns the declared associations in field order.
func (e *Entity) Associations() []*Association {
	return e.associations
}

// Association returns the association declared on the named field.
func (e *Entity) Association(field string) *Association {
	for _, a := range e.associations {
		if a.Field == field {
			return a
		}
	}
	return nil
}

// UsesInternalID reports whether the store assigns the identifier.
func (e *Entity) UsesInternalID() bool {
	return e.IDKind == IDInternal
}

// HasVersion reports whether the entity is version controlled.
func (e *Entity) HasVersion() bool {
	return e.Version != nil
}

// IDProperty returns the property key nodes are matched by, or the empty
// string when nodes are matched by store identifier.
func (e *Entity) IDProperty() string {
	if e.UsesInternalID() {
		return ""
	}
	return e.ID.Name
}

// String returns the entity name.
func (e *Entity) String() string {
	return e.Name
}

// Association describes one relationship field.
type Association struct {
	Field       string // Go field name
	Name        string // path segment used by inclusion filters
	Index       []int
	Type        string // relationship type, empty if dynamic
	Direction   Direction
	Cardinality Cardinality
	Owner       *Entity
	Target      *Entity
	Properties  *RelationshipProperties // optional
	Cascade     bool
	ReadOnly    bool
	// Obverse is the association on Target describing the same
	// relationship from the other side, if one is declared.
	Obverse *Association
}

// Dynamic reports whether relationship types are map keys.
func (a *Association) Dynamic() bool {
	return a.Cardinality.IsDynamic()
}

// HasProperties reports whether relationships carry their own properties.
func (a *Association) HasProperties() bool {
	return a.Properties != nil
}

// Bidirectional reports whether both sides declare the relationship.
func (a *Association) Bidirectional() bool {
	return a.Obverse != nil
}

// Value returns the association field of v, the addressable owner struct.
func (a *Association) Value(v reflect.Value) reflect.Value {
	return v.FieldByIndex(a.Index)
}

// String returns "Owner.name".
func (a *Association) String() string {
	return a.Owner.Name + "." + a.Name
}

// RelationshipProperties describes a struct carrying relationship
// properties and the related entity.
type RelationshipProperties struct {
	Type       reflect.Type // struct type
	ID         *Property    // optional relationship identifier
	Target     *Property    // field holding the related entity pointer
	Properties []*Property
}
