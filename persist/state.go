package persist

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"github.com/syssam/velox-ogm/dialect"
	"github.com/syssam/velox-ogm/schema"
)

// State is the processing state of one association of one source node.
type State uint8

// Processing states.
const (
	// ProcessedNone means neither the relationships nor all related values
	// were handled yet.
	ProcessedNone State = iota
	// ProcessedAllRelationships means the relationships were flushed.
	ProcessedAllRelationships
	// ProcessedAllValues means every related value was already written.
	ProcessedAllValues
	// ProcessedBoth combines ProcessedAllRelationships and ProcessedAllValues.
	ProcessedBoth
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case ProcessedAllRelationships:
		return "all-relationships"
	case ProcessedAllValues:
		return "all-values"
	case ProcessedBoth:
		return "both"
	}
	return "none"
}

type relKey struct {
	source any
	assoc  *schema.Association
}

// edgeKey identifies a relationship by its stored direction, so both sides
// of a bidirectional association map to the same key.
type edgeKey struct {
	start, end any
	typ        string
}

// edgeNote records a relationship claimed during the call. ready is closed
// once the claiming branch has written it (or failed to); id is set before.
type edgeNote struct {
	key     edgeKey
	owner   *schema.Association
	values  map[string]any // relationship properties
	matched bool           // taken over by the obverse association
	id      any
	ready   chan struct{}
	once    sync.Once
}

func (n *edgeNote) finish(id any) {
	n.once.Do(func() {
		n.id = id
		close(n.ready)
	})
}

// wait blocks until the note is finished and returns the relationship id,
// nil if the write failed or produced no id.
func (n *edgeNote) wait(ctx context.Context) (any, error) {
	select {
	case <-n.ready:
		return n.id, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StateMachine tracks what one save call has already written. It is
// created per call and safe for concurrent use by the branches of that call.
//
// Instances are keyed by pointer identity: two equal but distinct instances
// are different entries.
type StateMachine struct {
	mu            sync.RWMutex
	relationships map[relKey]struct{}
	objects       map[any]any // instance -> store id
	aliases       map[any]any // original -> replacement
	edges         map[edgeKey][]*edgeNote
	props         map[any]*edgeNote // relationship properties pointer -> note
	stale         []*staleGate
}

// NewStateMachine returns an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		relationships: make(map[relKey]struct{}),
		objects:       make(map[any]any),
		aliases:       make(map[any]any),
		edges:         make(map[edgeKey][]*edgeNote),
		props:         make(map[any]*edgeNote),
	}
}

// StateOf returns the state of the association a of the node sourceID
// given the values currently held by that association.
func (m *StateMachine) StateOf(sourceID any, a *schema.Association, values []any) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, rels := m.relationships[relKey{sourceID, a}]
	all := m.processedAllLocked(values)
	switch {
	case rels && all:
		return ProcessedBoth
	case rels:
		return ProcessedAllRelationships
	case all:
		return ProcessedAllValues
	}
	return ProcessedNone
}

// processedAllLocked reports whether every non-nil value was processed.
// Without any non-nil value the result is false.
func (m *StateMachine) processedAllLocked(values []any) bool {
	n := 0
	for _, v := range values {
		if isNil(v) {
			continue
		}
		if _, ok := m.lookupLocked(v); !ok {
			return false
		}
		n++
	}
	return n > 0
}

// MarkRelationshipProcessed marks the association a of sourceID as
// flushed. It reports whether the pair was not marked before, which makes
// it usable as a claim between concurrent branches.
func (m *StateMachine) MarkRelationshipProcessed(sourceID any, a *schema.Association) bool {
	k := relKey{sourceID, a}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.relationships[k]; ok {
		return false
	}
	m.relationships[k] = struct{}{}
	return true
}

// MarkEntityProcessed records that instance was written as the node id.
// Nil instances are ignored.
func (m *StateMachine) MarkEntityProcessed(instance, id any) {
	if isNil(instance) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[instance] = id
}

// MarkProcessedAs records that original was replaced by replacement, for
// example by a before-bind callback.
func (m *StateMachine) MarkProcessedAs(original, replacement any) {
	if isNil(original) || isNil(replacement) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases[original] = replacement
}

// HasProcessedValue reports whether instance, or the instance it was
// replaced by, was written during the call.
func (m *StateMachine) HasProcessedValue(instance any) bool {
	_, ok := m.ProcessedAs(instance)
	return ok
}

// ProcessedAs returns the node id instance was written as.
func (m *StateMachine) ProcessedAs(instance any) (any, bool) {
	if isNil(instance) {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookupLocked(instance)
}

// Replacement returns the instance original was replaced by, or original.
func (m *StateMachine) Replacement(original any) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.aliases[original]; ok {
		return r
	}
	return original
}

func (m *StateMachine) lookupLocked(instance any) (any, bool) {
	if id, ok := m.objects[instance]; ok {
		return id, true
	}
	if r, ok := m.aliases[instance]; ok {
		id, ok := m.objects[r]
		return id, ok
	}
	return nil, false
}

// edgeClaim is one relationship a branch is about to write.
type edgeClaim struct {
	key   edgeKey
	owner *schema.Association
	// props is the pointer to the relationship properties struct, nil for
	// plain relationships. values are its encoded properties.
	props  any
	values map[string]any
}

// claimEdges claims every relationship of claims at once, after any stale
// delete covering one of their endpoints has finished. It returns the note
// of each claim and whether the caller owns it, in which case the caller
// must finish the note.
//
// Plain relationships are claimed by their key, so both sides of a
// bidirectional association share one relationship. Relationships with
// properties are claimed per properties struct: each one is written unless
// an unmatched relationship with the same key was claimed through the
// obverse association, preferring one with equal properties.
func (m *StateMachine) claimEdges(ctx context.Context, claims []edgeClaim) ([]*edgeNote, []bool, error) {
	for {
		m.mu.Lock()
		if g := m.gateLocked(claims); g != nil {
			m.mu.Unlock()
			select {
			case <-g.done:
				continue
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}
		notes := make([]*edgeNote, len(claims))
		owned := make([]bool, len(claims))
		for i, c := range claims {
			notes[i], owned[i] = m.claimLocked(c)
		}
		m.mu.Unlock()
		return notes, owned, nil
	}
}

func (m *StateMachine) claimLocked(c edgeClaim) (*edgeNote, bool) {
	if c.props == nil {
		if ns := m.edges[c.key]; len(ns) > 0 {
			return ns[0], false
		}
		return m.addLocked(c), true
	}
	if n, ok := m.props[c.props]; ok {
		return n, false
	}
	if n := m.obverseLocked(c); n != nil {
		n.matched = true
		m.props[c.props] = n
		return n, false
	}
	n := m.addLocked(c)
	m.props[c.props] = n
	return n, true
}

func (m *StateMachine) obverseLocked(c edgeClaim) *edgeNote {
	if c.owner.Obverse == nil || c.owner.Obverse == c.owner {
		return nil
	}
	var first *edgeNote
	for _, n := range m.edges[c.key] {
		if n.owner != c.owner.Obverse || n.matched {
			continue
		}
		if reflect.DeepEqual(n.values, c.values) {
			return n
		}
		if first == nil {
			first = n
		}
	}
	return first
}

func (m *StateMachine) addLocked(c edgeClaim) *edgeNote {
	n := &edgeNote{key: c.key, owner: c.owner, values: c.values, ready: make(chan struct{})}
	m.edges[c.key] = append(m.edges[c.key], n)
	return n
}

// staleGate is a stale relationship delete in progress.
type staleGate struct {
	node     any
	typ      string // empty matches any type
	incoming bool
	done     chan struct{}
}

// covers reports whether the relationship k touches the gate's node through
// its type and direction.
func (g *staleGate) covers(k edgeKey) bool {
	if g.typ != "" && g.typ != k.typ {
		return false
	}
	end := k.start
	if g.incoming {
		end = k.end
	}
	return dialect.ValuesEqual(end, g.node)
}

func (m *StateMachine) gateLocked(claims []edgeClaim) *staleGate {
	for _, g := range m.stale {
		for _, c := range claims {
			if g.covers(c.key) {
				return g
			}
		}
	}
	return nil
}

// beginStale starts a stale delete of the relationships of node with the
// given type and direction; an empty type matches any type. It waits for
// the relationships claimed so far that touch them and returns the ids of
// those written. Claims covered by the delete wait until end is called.
func (m *StateMachine) beginStale(ctx context.Context, node any, typ string, incoming bool) (ids []any, end func(), err error) {
	g := &staleGate{node: node, typ: typ, incoming: incoming, done: make(chan struct{})}
	m.mu.Lock()
	m.stale = append(m.stale, g)
	var pending []*edgeNote
	for k, ns := range m.edges {
		if g.covers(k) {
			pending = append(pending, ns...)
		}
	}
	m.mu.Unlock()
	end = func() {
		m.mu.Lock()
		m.stale = slices.DeleteFunc(m.stale, func(o *staleGate) bool { return o == g })
		m.mu.Unlock()
		close(g.done)
	}
	for _, n := range pending {
		id, err := n.wait(ctx)
		if err != nil {
			end()
			return nil, nil, err
		}
		if id != nil {
			ids = append(ids, id)
		}
	}
	return ids, end, nil
}
