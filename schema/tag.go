package schema

import (
	"reflect"
	"strings"
)

// TagName is the struct tag read by the registry.
const TagName = "ogm"

// tag is a parsed `ogm:"name,opt,key=value"` struct tag.
type tag struct {
	name string
	skip bool
	opts map[string]string
}

func parseTag(f reflect.StructField) tag {
	raw, ok := f.Tag.Lookup(TagName)
	if !ok {
		return tag{}
	}
	if raw == "-" {
		return tag{skip: true}
	}
	parts := strings.Split(raw, ",")
	t := tag{name: strings.TrimSpace(parts[0]), opts: make(map[string]string, len(parts)-1)}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, v, _ := strings.Cut(p, "=")
		t.opts[k] = v
	}
	return t
}

func (t tag) has(opt string) bool {
	_, ok := t.opts[opt]
	return ok
}

func (t tag) get(opt string) string {
	return t.opts[opt]
}

// list splits a "|" separated option value.
func (t tag) list(opt string) []string {
	v := t.opts[opt]
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, "|") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
