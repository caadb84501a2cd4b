package graph

import (
	"sort"
	"strings"
)

// Filter decides whether an association path is included.
type Filter interface {
	Include(path string) bool
}

// The FilterFunc type is an adapter to allow the use of ordinary
// functions as filters.
type FilterFunc func(path string) bool

// Include returns f(path).
func (f FilterFunc) Include(path string) bool { return f(path) }

// All includes every path.
func All() Filter {
	return FilterFunc(func(string) bool { return true })
}

// None includes no path.
func None() Filter {
	return FilterFunc(func(string) bool { return false })
}

// PathFilter includes a fixed set of paths and all of their prefixes.
type PathFilter struct {
	paths map[string]struct{}
}

// Paths returns a filter including the given dotted paths. Including
// "players.team" also includes "players".
func Paths(paths ...string) *PathFilter {
	f := &PathFilter{paths: make(map[string]struct{})}
	for _, p := range paths {
		p = strings.Trim(p, ".")
		for p != "" {
			f.paths[p] = struct{}{}
			i := strings.LastIndexByte(p, '.')
			if i < 0 {
				break
			}
			p = p[:i]
		}
	}
	return f
}

// Include implements Filter.
func (f *PathFilter) Include(path string) bool {
	_, ok := f.paths[path]
	return ok
}

// List returns the included paths in lexical order.
func (f *PathFilter) List() []string {
	out := make([]string, 0, len(f.paths))
	for p := range f.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Join appends an association name to a path.
func Join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// OrAll returns f, or All if f is nil.
func OrAll(f Filter) Filter {
	if f == nil {
		return All()
	}
	return f
}
