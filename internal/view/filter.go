package view

import (
	"slices"
	"strings"
)

// Filter decides which dotted property paths are visible.
//
// An exclude entry hides the path it names and everything below it, and
// always wins. With a non-empty include list a path is visible only when it
// equals an include entry or is a strict prefix of one; values below an
// exactly included path are then subject to excludes only.
type Filter struct {
	Included []string
	Excluded []string
}

// NewFilter builds a filter, dropping blank entries.
func NewFilter(included, excluded []string) Filter {
	return Filter{Included: cleanPaths(included), Excluded: cleanPaths(excluded)}
}

// IsZero reports whether the filter shows everything.
func (f Filter) IsZero() bool { return len(f.Included) == 0 && len(f.Excluded) == 0 }

// Visible reports whether path passes the filter.
func (f Filter) Visible(path string) bool {
	if f.excluded(path) {
		return false
	}
	if len(f.Included) == 0 {
		return true
	}
	for _, in := range f.Included {
		if path == in || strings.HasPrefix(in, path+".") {
			return true
		}
	}
	return false
}

// Apply returns the visible subset of props, descending into nested maps.
func (f Filter) Apply(props map[string]any) map[string]any {
	if f.IsZero() {
		return props
	}
	return f.apply("", props, len(f.Included) == 0)
}

func (f Filter) apply(prefix string, props map[string]any, included bool) map[string]any {
	out := make(map[string]any, len(props))
	for k, val := range props {
		path := prefix + k
		under := included || slices.Contains(f.Included, path)
		if f.excluded(path) || (!under && !f.Visible(path)) {
			continue
		}
		if m, ok := val.(map[string]any); ok {
			out[k] = f.apply(path+".", m, under)
			continue
		}
		out[k] = val
	}
	return out
}

func (f Filter) excluded(path string) bool {
	for _, ex := range f.Excluded {
		if path == ex || strings.HasPrefix(path, ex+".") {
			return true
		}
	}
	return false
}

func cleanPaths(paths []string) []string {
	var out []string
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
