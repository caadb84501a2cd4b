package sqlgraph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/dialect/sql"
)

// conn is the query surface shared by the driver and its transactions.
type conn interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ScanOne(ctx context.Context, query string, args []any, dest ...any) error
}

type node struct {
	id     int64
	eid    string
	labels []string
	props  map[string]any
}

func (n *node) hasLabel(l string) bool {
	return l == "" || slices.Contains(n.labels, l)
}

func (n *node) addLabel(l string) bool {
	if l == "" || slices.Contains(n.labels, l) {
		return false
	}
	n.labels = append(n.labels, l)
	return true
}

func (n *node) removeLabel(l string) bool {
	i := slices.Index(n.labels, l)
	if i < 0 {
		return false
	}
	n.labels = slices.Delete(n.labels, i, i+1)
	return true
}

type rel struct {
	id         int64
	eid        string
	typ        string
	start, end int64
	props      map[string]any
}

// store reads and writes the graph tables through one connection.
type store struct {
	c          conn
	nodes      string
	rels       string
	elementIDs bool
}

// encodeLabels stores labels as "|A|B|" so a single label can be matched
// with LIKE.
func encodeLabels(ls []string) string {
	if len(ls) == 0 {
		return "|"
	}
	return "|" + strings.Join(ls, "|") + "|"
}

func decodeLabels(s string) []string {
	s = strings.Trim(s, "|")
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

func encodeProps(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: encode properties: %w", err)
	}
	return b, nil
}

func decodeProps(b []byte) (map[string]any, error) {
	m := make(map[string]any)
	if len(b) == 0 {
		return m, nil
	}
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("sqlgraph: decode properties: %w", err)
	}
	return m, nil
}

func (s *store) nodeID(n *node) any {
	if s.elementIDs {
		return n.eid
	}
	return n.id
}

func (s *store) relID(r *rel) any {
	if s.elementIDs {
		return r.eid
	}
	return r.id
}

// idColumn returns the column and argument addressing a store id.
func (s *store) idColumn(id any) (string, any, bool) {
	if s.elementIDs {
		v, ok := id.(string)
		return "element_id", v, ok
	}
	v, ok := dialect.ToInt64(id)
	return "id", v, ok
}

func (s *store) queryNodes(ctx context.Context, where string, args ...any) (_ []*node, rerr error) {
	rows, err := s.c.Query(ctx, "SELECT id, element_id, labels, props FROM "+s.nodes+" WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	var out []*node
	for rows.Next() {
		var (
			n      node
			labels string
			props  []byte
		)
		if err := rows.Scan(&n.id, &n.eid, &labels, &props); err != nil {
			return nil, err
		}
		n.labels = decodeLabels(labels)
		if n.props, err = decodeProps(props); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *store) queryRels(ctx context.Context, where string, args ...any) (_ []*rel, rerr error) {
	rows, err := s.c.Query(ctx, "SELECT id, element_id, type, start_id, end_id, props FROM "+s.rels+" WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	var out []*rel
	for rows.Next() {
		var (
			r     rel
			props []byte
		)
		if err := rows.Scan(&r.id, &r.eid, &r.typ, &r.start, &r.end, &props); err != nil {
			return nil, err
		}
		if r.props, err = decodeProps(props); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// labeled returns the nodes carrying label, or every node when empty.
func (s *store) labeled(ctx context.Context, label string) ([]*node, error) {
	if label == "" {
		return s.queryNodes(ctx, "1 = 1")
	}
	ns, err := s.queryNodes(ctx, "labels LIKE ?", "%|"+label+"|%")
	if err != nil {
		return nil, err
	}
	// LIKE treats % and _ in label names as wildcards.
	return slices.DeleteFunc(ns, func(n *node) bool { return !n.hasLabel(label) }), nil
}

func (s *store) node(ctx context.Context, id any) (*node, error) {
	col, arg, ok := s.idColumn(id)
	if !ok {
		return nil, nil
	}
	ns, err := s.queryNodes(ctx, col+" = ?", arg)
	if err != nil || len(ns) == 0 {
		return nil, err
	}
	return ns[0], nil
}

func (s *store) nodeByInternalID(ctx context.Context, id int64) (*node, error) {
	ns, err := s.queryNodes(ctx, "id = ?", id)
	if err != nil || len(ns) == 0 {
		return nil, err
	}
	return ns[0], nil
}

func (s *store) rel(ctx context.Context, id any) (*rel, error) {
	col, arg, ok := s.idColumn(id)
	if !ok {
		return nil, nil
	}
	rs, err := s.queryRels(ctx, col+" = ?", arg)
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return rs[0], nil
}

func (s *store) resolve(ctx context.Context, ref dialect.NodeRef) (*node, error) {
	if ref.ByStoreID() {
		if ref.ID == nil {
			return nil, nil
		}
		return s.node(ctx, ref.ID)
	}
	ns, err := s.labeled(ctx, ref.Label)
	if err != nil {
		return nil, err
	}
	for _, n := range ns {
		if dialect.ValuesEqual(n.props[ref.IDProperty], ref.ID) {
			return n, nil
		}
	}
	return nil, nil
}

func (s *store) createNode(ctx context.Context, labels []string) (*node, error) {
	n := &node{eid: uuid.NewString(), props: make(map[string]any)}
	for _, l := range labels {
		n.addLabel(l)
	}
	if _, err := s.c.Exec(ctx, "INSERT INTO "+s.nodes+" (element_id, labels, props) VALUES (?, ?, ?)",
		n.eid, encodeLabels(n.labels), nil); err != nil {
		return nil, wrapError(err)
	}
	if err := s.c.ScanOne(ctx, "SELECT id FROM "+s.nodes+" WHERE element_id = ?", []any{n.eid}, &n.id); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *store) updateNode(ctx context.Context, n *node) error {
	props, err := encodeProps(n.props)
	if err != nil {
		return err
	}
	_, err = s.c.Exec(ctx, "UPDATE "+s.nodes+" SET labels = ?, props = ? WHERE id = ?", encodeLabels(n.labels), props, n.id)
	return wrapError(err)
}

func (s *store) createRel(ctx context.Context, typ string, start, end int64, props map[string]any) (*rel, error) {
	r := &rel{eid: uuid.NewString(), typ: typ, start: start, end: end, props: props}
	b, err := encodeProps(props)
	if err != nil {
		return nil, err
	}
	if _, err := s.c.Exec(ctx, "INSERT INTO "+s.rels+" (element_id, type, start_id, end_id, props) VALUES (?, ?, ?, ?, ?)",
		r.eid, typ, start, end, b); err != nil {
		return nil, wrapError(err)
	}
	if err := s.c.ScanOne(ctx, "SELECT id FROM "+s.rels+" WHERE element_id = ?", []any{r.eid}, &r.id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *store) updateRel(ctx context.Context, r *rel) error {
	b, err := encodeProps(r.props)
	if err != nil {
		return err
	}
	_, err = s.c.Exec(ctx, "UPDATE "+s.rels+" SET props = ? WHERE id = ?", b, r.id)
	return err
}

func (s *store) deleteRel(ctx context.Context, id int64) error {
	_, err := s.c.Exec(ctx, "DELETE FROM "+s.rels+" WHERE id = ?", id)
	return err
}

// detachDelete removes n and its relationships.
func (s *store) detachDelete(ctx context.Context, n *node) (dialect.Counters, error) {
	var c dialect.Counters
	res, err := s.c.Exec(ctx, "DELETE FROM "+s.rels+" WHERE start_id = ? OR end_id = ?", n.id, n.id)
	if err != nil {
		return c, err
	}
	if affected, err := res.RowsAffected(); err == nil {
		c.RelationshipsDeleted = int(affected)
	}
	if _, err := s.c.Exec(ctx, "DELETE FROM "+s.nodes+" WHERE id = ?", n.id); err != nil {
		return c, err
	}
	c.NodesDeleted = 1
	return c, nil
}

// adjacent returns the relationships of n in the given direction along with
// the node at their other end.
func (s *store) adjacent(ctx context.Context, n *node, incoming bool) ([]*rel, map[int64]*node, error) {
	col := "start_id"
	if incoming {
		col = "end_id"
	}
	rs, err := s.queryRels(ctx, col+" = ?", n.id)
	if err != nil {
		return nil, nil, err
	}
	others := make(map[int64]*node, len(rs))
	for _, r := range rs {
		other := r.end
		if incoming {
			other = r.start
		}
		if _, ok := others[other]; ok {
			continue
		}
		on, err := s.nodeByInternalID(ctx, other)
		if err != nil {
			return nil, nil, err
		}
		others[other] = on
	}
	return rs, others, nil
}

func otherEnd(r *rel, incoming bool) int64 {
	if incoming {
		return r.start
	}
	return r.end
}
