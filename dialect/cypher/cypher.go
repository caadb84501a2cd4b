// Package cypher renders dialect statements as parameterized Cypher for
// Neo4j 5. Identifiers are compared with id() by default and with
// elementId() when the renderer runs in element id mode.
package cypher

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/syssam/velox-ogm/dialect"
)

// Query is a rendered statement.
type Query struct {
	Text   string
	Params map[string]any
}

// Renderer turns statements into queries.
type Renderer struct {
	// ElementIDs selects elementId() instead of id() for store identifiers.
	ElementIDs bool
}

// Quote escapes a label, relationship type or property key.
func Quote(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func labels(ls ...string) string {
	var b strings.Builder
	for _, l := range ls {
		if l == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(Quote(l))
	}
	return b.String()
}

func (r Renderer) idOf(v string) string {
	if r.ElementIDs {
		return "elementId(" + v + ")"
	}
	return "id(" + v + ")"
}

// match renders a MATCH clause for ref bound to v. param names the
// identifier parameter.
func (r Renderer) match(ref dialect.NodeRef, v, param string) string {
	if ref.ByStoreID() {
		return fmt.Sprintf("MATCH (%s) WHERE %s = $%s", v, r.idOf(v), param)
	}
	return fmt.Sprintf("MATCH (%s%s {%s: $%s})", v, labels(ref.Label), Quote(ref.IDProperty), param)
}

// Render renders stmt.
func (r Renderer) Render(stmt dialect.Statement) (Query, error) {
	switch s := stmt.(type) {
	case dialect.SaveNode:
		return r.saveNode(s), nil
	case dialect.SaveNodes:
		return r.saveNodes(s), nil
	case dialect.ReadLabels:
		return Query{
			Text:   r.match(s.Node, "n", "id") + " RETURN [l IN labels(n) WHERE NOT l IN $exclude] AS labels",
			Params: map[string]any{"id": s.Node.ID, "exclude": nonNil(s.Exclude)},
		}, nil
	case dialect.LoadNode:
		return Query{
			Text:   r.match(s.Node, "n", "id") + " RETURN " + r.idOf("n") + " AS id",
			Params: map[string]any{"id": s.Node.ID},
		}, nil
	case dialect.DeleteRelationships:
		return r.deleteRelationships(s), nil
	case dialect.CreateRelationships:
		return r.createRelationships(s.Type, s.Incoming, s.Rows), nil
	case dialect.CreateRelationshipsWithProperties:
		return r.createRelationshipsWithProperties(s), nil
	case dialect.LookupRelationship:
		return Query{
			Text: fmt.Sprintf("MATCH (s)%s(t) WHERE %s = $source AND %s = $target RETURN %s AS id LIMIT 1",
				arrow("r", s.Type, s.Incoming), r.idOf("s"), r.idOf("t"), r.idOf("r")),
			Params: map[string]any{"source": s.Source, "target": s.Target},
		}, nil
	case dialect.MatchRoots:
		return r.matchRoots(s), nil
	case dialect.Expand:
		return r.expand(s), nil
	case dialect.FetchGraph:
		return r.fetchGraph(s), nil
	case dialect.DeleteNode:
		return r.deleteNode(s), nil
	case dialect.DeleteNodes:
		where := "n." + Quote(s.IDProperty) + " IN $ids"
		if s.IDProperty == "" {
			where = r.idOf("n") + " IN $ids"
		}
		return Query{
			Text:   fmt.Sprintf("MATCH (n%s) WHERE %s DETACH DELETE n", labels(s.Label), where),
			Params: map[string]any{"ids": nonNil(s.IDs)},
		}, nil
	case dialect.DeleteAll:
		return Query{Text: fmt.Sprintf("MATCH (n%s) DETACH DELETE n", labels(s.Label))}, nil
	case dialect.Count:
		return Query{Text: fmt.Sprintf("MATCH (n%s) RETURN count(n) AS count", labels(s.Label))}, nil
	}
	return Query{}, fmt.Errorf("dialect/cypher: unsupported statement %T", stmt)
}

func (r Renderer) saveNode(s dialect.SaveNode) Query {
	var b strings.Builder
	params := map[string]any{"props": nonNilMap(s.Properties)}
	switch {
	case s.Node.ByStoreID() && s.Node.ID == nil:
		fmt.Fprintf(&b, "CREATE (n%s)", labels(s.Labels...))
	case s.Node.ByStoreID():
		b.WriteString(r.match(s.Node, "n", "id"))
		params["id"] = s.Node.ID
	default:
		fmt.Fprintf(&b, "MERGE (n%s {%s: $id})", labels(s.Node.Label), Quote(s.Node.IDProperty))
		params["id"] = s.Node.ID
	}
	if s.VersionProperty != "" {
		fmt.Fprintf(&b, " WITH n WHERE coalesce(n.%s, 0) = $version", Quote(s.VersionProperty))
		params["version"] = s.Version
	}
	b.WriteString(" SET n += $props")
	if !s.Node.ByStoreID() {
		fmt.Fprintf(&b, ", n.%s = $id", Quote(s.Node.IDProperty))
	}
	if s.VersionProperty != "" {
		fmt.Fprintf(&b, ", n.%s = $version + 1", Quote(s.VersionProperty))
	}
	if !s.Node.ByStoreID() || s.Node.ID != nil {
		if l := labels(s.Labels...); l != "" {
			b.WriteString(" SET n" + l)
		}
	}
	var remove []string
	for _, l := range s.RemoveLabels {
		if !slices.Contains(s.Labels, l) {
			remove = append(remove, l)
		}
	}
	if len(remove) > 0 {
		b.WriteString(" REMOVE n" + labels(remove...))
	}
	if len(s.AddLabels) > 0 {
		b.WriteString(" SET n" + labels(s.AddLabels...))
	}
	b.WriteString(" RETURN " + r.idOf("n") + " AS id")
	if s.VersionProperty != "" {
		fmt.Fprintf(&b, ", n.%s AS version", Quote(s.VersionProperty))
	}
	return Query{Text: b.String(), Params: params}
}

func (r Renderer) saveNodes(s dialect.SaveNodes) Query {
	rows := make([]any, len(s.Rows))
	for i, row := range s.Rows {
		rows[i] = map[string]any{"index": i, "id": row.ID, "properties": nonNilMap(row.Properties)}
	}
	primary := ""
	if len(s.Labels) > 0 {
		primary = s.Labels[0]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "UNWIND $rows AS row MERGE (n%s {%s: row.id}) SET n += row.properties, n.%s = row.id",
		labels(primary), Quote(s.IDProperty), Quote(s.IDProperty))
	if len(s.Labels) > 1 {
		b.WriteString(" SET n" + labels(s.Labels[1:]...))
	}
	b.WriteString(" RETURN row.index AS index, " + r.idOf("n") + " AS id")
	return Query{Text: b.String(), Params: map[string]any{"rows": rows}}
}

// arrow renders a relationship pattern bound to v. An empty type matches
// any type.
func arrow(v, typ string, incoming bool) string {
	t := ""
	if typ != "" {
		t = ":" + Quote(typ)
	}
	if incoming {
		return "<-[" + v + t + "]-"
	}
	return "-[" + v + t + "]->"
}

func (r Renderer) deleteRelationships(s dialect.DeleteRelationships) Query {
	return Query{
		Text: fmt.Sprintf("MATCH (s)%s(t%s) WHERE %s = $source AND NOT %s IN $keep DELETE r",
			arrow("r", s.Type, s.Incoming), labels(s.TargetLabel), r.idOf("s"), r.idOf("r")),
		Params: map[string]any{"source": s.Source, "keep": nonNil(s.KeepIDs)},
	}
}

// createArrow renders the relationship created for one row. Without a
// fixed type, the row type is used through a dynamic type expression.
func createArrow(typ string, incoming bool) string {
	t := ":" + Quote(typ)
	if typ == "" {
		t = ":$(row.type)"
	}
	if incoming {
		return "<-[r" + t + "]-"
	}
	return "-[r" + t + "]->"
}

func relRows(rows []dialect.RelationshipRow) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = map[string]any{
			"index":      i,
			"source":     row.Source,
			"target":     row.Target,
			"type":       row.Type,
			"id":         row.ID,
			"properties": nonNilMap(row.Properties),
		}
	}
	return out
}

func (r Renderer) endpoints() string {
	return fmt.Sprintf("UNWIND $rows AS row MATCH (s) WHERE %s = row.source MATCH (t) WHERE %s = row.target",
		r.idOf("s"), r.idOf("t"))
}

func (r Renderer) createRelationships(typ string, incoming bool, rows []dialect.RelationshipRow) Query {
	return Query{
		Text: fmt.Sprintf("%s CREATE (s)%s(t) RETURN row.index AS index, %s AS id",
			r.endpoints(), createArrow(typ, incoming), r.idOf("r")),
		Params: map[string]any{"rows": relRows(rows)},
	}
}

func (r Renderer) createRelationshipsWithProperties(s dialect.CreateRelationshipsWithProperties) Query {
	text := fmt.Sprintf("%s OPTIONAL MATCH ()-[existing]->() WHERE row.id IS NOT NULL AND %s = row.id"+
		" CALL (s, t, row, existing) {"+
		" WITH existing WHERE existing IS NOT NULL SET existing = row.properties RETURN existing AS r"+
		" UNION"+
		" WITH s, t, row, existing WHERE existing IS NULL CREATE (s)%s(t) SET r = row.properties RETURN r"+
		" } RETURN row.index AS index, %s AS id",
		r.endpoints(), r.idOf("existing"), createArrow(s.Type, s.Incoming), r.idOf("r"))
	return Query{Text: text, Params: map[string]any{"rows": relRows(s.Rows)}}
}

func (r Renderer) matchRoots(s dialect.MatchRoots) Query {
	params := make(map[string]any)
	var conds []string
	for i, k := range slices.Sorted(maps.Keys(s.Conditions)) {
		p := fmt.Sprintf("c%d", i)
		conds = append(conds, fmt.Sprintf("n.%s = $%s", Quote(k), p))
		params[p] = s.Conditions[k]
	}
	if s.IDs != nil {
		conds = append(conds, r.idOf("n")+" IN $ids")
		params["ids"] = s.IDs
	}
	text := "MATCH (n" + labels(s.Label) + ")"
	if len(conds) > 0 {
		text += " WHERE " + strings.Join(conds, " AND ")
	}
	return Query{Text: text + " RETURN " + r.idOf("n") + " AS id", Params: params}
}

func (r Renderer) expand(s dialect.Expand) Query {
	types := make([]string, len(s.Types))
	for i, t := range s.Types {
		types[i] = Quote(t)
	}
	rel := "[r]"
	if len(types) > 0 {
		rel = "[r:" + strings.Join(types, "|") + "]"
	}
	pattern := "-" + rel + "->"
	if s.Incoming {
		pattern = "<-" + rel + "-"
	}
	return Query{
		Text: fmt.Sprintf("MATCH (s)%s(t%s) WHERE %s IN $sources RETURN %s AS source, %s AS relationshipId, %s AS relatedNodeId",
			pattern, labels(s.TargetLabel), r.idOf("s"), r.idOf("s"), r.idOf("r"), r.idOf("t")),
		Params: map[string]any{"sources": nonNil(s.Sources)},
	}
}

func (r Renderer) fetchGraph(s dialect.FetchGraph) Query {
	text := fmt.Sprintf("MATCH (n) WHERE %s IN $nodeIds"+
		" RETURN 'node' AS kind, %s AS id, labels(n) AS labels, properties(n) AS properties, null AS type, null AS `start`, null AS `end`"+
		" UNION ALL"+
		" MATCH ()-[r]->() WHERE %s IN $relationshipIds"+
		" RETURN 'relationship' AS kind, %s AS id, null AS labels, properties(r) AS properties, type(r) AS type, %s AS `start`, %s AS `end`",
		r.idOf("n"), r.idOf("n"), r.idOf("r"), r.idOf("r"), r.idOf("startNode(r)"), r.idOf("endNode(r)"))
	return Query{Text: text, Params: map[string]any{
		"nodeIds":         nonNil(s.NodeIDs),
		"relationshipIds": nonNil(s.RelationshipIDs),
	}}
}

func (r Renderer) deleteNode(s dialect.DeleteNode) Query {
	text := r.match(s.Node, "n", "id")
	params := map[string]any{"id": s.Node.ID}
	if s.VersionProperty != "" {
		text += fmt.Sprintf(" WITH n WHERE coalesce(n.%s, 0) = $version", Quote(s.VersionProperty))
		params["version"] = s.Version
	}
	return Query{Text: text + " DETACH DELETE n", Params: params}
}

// nonNil keeps list parameters from being sent as null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
