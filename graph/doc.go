// Package graph analyses the association graph formed by entity
// descriptors.
//
// A Filter decides which association paths take part in a save or load.
// Paths are dotted association names relative to the root entity:
//
//	graph.Paths("players", "players.team")
//
// HasPossibleCycle reports whether following the permitted associations
// from a root type can reach a type already on the current path, in which
// case loading must run the breadth-first identifier expansion instead of
// a single nested query.
package graph
