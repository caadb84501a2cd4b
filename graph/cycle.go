package graph

import "github.com/syssam/velox-ogm/schema"

// HasPossibleCycle reports whether the associations of e permitted by f can
// lead back to an entity type already on the path from e.
func HasPossibleCycle(e *schema.Entity, f Filter) bool {
	f = OrAll(f)
	onPath := map[*schema.Entity]bool{e: true}
	var walk func(*schema.Entity, string) bool
	walk = func(e *schema.Entity, path string) bool {
		for _, a := range e.Associations() {
			p := Join(path, a.Name)
			if !f.Include(p) {
				continue
			}
			if onPath[a.Target] {
				return true
			}
			onPath[a.Target] = true
			found := walk(a.Target, p)
			delete(onPath, a.Target)
			if found {
				return true
			}
		}
		return false
	}
	return walk(e, "")
}

// Reachable returns the entity types reachable from e through permitted
// associations, e first, each once.
func Reachable(e *schema.Entity, f Filter) []*schema.Entity {
	f = OrAll(f)
	seen := map[*schema.Entity]bool{e: true}
	out := []*schema.Entity{e}
	type item struct {
		e    *schema.Entity
		path string
	}
	queue := []item{{e, ""}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		for _, a := range it.e.Associations() {
			p := Join(it.path, a.Name)
			if !f.Include(p) || seen[a.Target] {
				continue
			}
			seen[a.Target] = true
			out = append(out, a.Target)
			queue = append(queue, item{a.Target, p})
		}
	}
	return out
}
