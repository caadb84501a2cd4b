// Package schema builds entity descriptors from annotated Go structs.
//
// A mapped type declares its identifier, properties and associations with
// `ogm` struct tags:
//
//	type Team struct {
//	    _       struct{}  `ogm:",node,label=Team,labels=Club"`
//	    ID      int64     `ogm:",id,internal"`
//	    Name    string    `ogm:"name"`
//	    Version int64     `ogm:",version"`
//	    Tags    []string  `ogm:",labels"`
//	    Players []*Player `ogm:"players,rel=HAS_PLAYER"`
//	}
//
//	type Player struct {
//	    ID   string `ogm:",id,uuid"`
//	    Name string
//	    Team *Team  `ogm:"team,rel=HAS_PLAYER,dir=in"`
//	}
//
// # Tag options
//
//	id                  identifier; add "internal" for store assigned or
//	                    "uuid" for generated identifiers
//	version             optimistic locking version (integer field)
//	labels              dynamic labels ([]string)
//	rel=TYPE            relationship type, defaults to the upper snake case
//	                    field name
//	dir=in|out          relationship direction, default out
//	nocascade           do not rewrite existing targets
//	readonly            never written by save
//	target              in a relationship properties struct, the related entity
//	-                   ignored field
//
// Fields of type *T, []*T, map[string]*T and map[string][]*T where T is a
// struct are associations; map keyed fields are dynamic relationships whose
// type is the key. If T has a field tagged `target`, T carries
// relationship properties and the target field points to the related entity.
//
// Descriptors are cached for the life of the process in a Registry.
package schema
