package persist

import (
	"slices"

	"github.com/syssam/velox-ogm/schema"
)

// LabelDelta is the label change applied to one node.
type LabelDelta struct {
	Remove []string
	Add    []string
}

// Empty reports whether the delta changes nothing.
func (d LabelDelta) Empty() bool {
	return len(d.Remove) == 0 && len(d.Add) == 0
}

// Reconcile computes the dynamic label change from the stored labels old
// to the current labels cur. Nothing changes when old is empty or holds
// the same set as cur. Otherwise the labels of old missing from cur are
// removed and the labels of cur missing from old are added; a label kept
// on both sides is never removed. Static labels of e are dropped from
// both sets.
func Reconcile(e *schema.Entity, old, cur []string) LabelDelta {
	old, cur = dynamicOnly(e, old), dynamicOnly(e, cur)
	if len(old) == 0 || sameSet(old, cur) {
		return LabelDelta{}
	}
	var d LabelDelta
	for _, l := range old {
		if !slices.Contains(cur, l) {
			d.Remove = append(d.Remove, l)
		}
	}
	for _, l := range cur {
		if !slices.Contains(old, l) {
			d.Add = append(d.Add, l)
		}
	}
	return d
}

// dynamicOnly returns the distinct labels of ls that are not static
// labels of e, in order.
func dynamicOnly(e *schema.Entity, ls []string) []string {
	var out []string
	for _, l := range ls {
		if l == "" || slices.Contains(out, l) || e != nil && slices.Contains(e.Labels, l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, l := range a {
		if !slices.Contains(b, l) {
			return false
		}
	}
	return true
}
