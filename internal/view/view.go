// Package view maintains a flattened, filterable projection of a tree.
//
// The projection is the DFS pre-order sequence of nodes whose ancestors are
// all expanded, excluding the view root itself. It is kept current by
// reconciling each tree.Change against the previous sequence in place, so an
// Observer bound to the sequence sees only the patches that actually differ.
//
// A View is not safe for concurrent use; it shares its tree's lock.
package view

import (
	"maps"

	"github.com/alexanderramin/arbor/internal/tree"
)

// Item is one projected row.
type Item struct {
	NodeID string
	Depth  int
}

// Observer receives the patches applied to the projection, in order.
type Observer interface {
	Set(index int, item Item)
	Insert(index int, item Item)
	Remove(index int)
}

// Options configures a View.
type Options struct {
	DefaultExpanded bool
	Included        []string
	Excluded        []string
	Observer        Observer
}

// View is the expansion state and projected sequence of a subtree.
type View struct {
	tree            *tree.Tree
	root            string
	defaultExpanded bool
	expanded        map[string]bool
	items           []Item
	observer        Observer
	filter          Filter
	cancel          func()
}

// New attaches a view to t rooted at rootID and computes the initial
// projection.
func New(t *tree.Tree, rootID string, opts Options) (*View, error) {
	if _, err := t.Get(rootID); err != nil {
		return nil, err
	}
	v := &View{
		tree:            t,
		root:            rootID,
		defaultExpanded: opts.DefaultExpanded,
		expanded:        make(map[string]bool),
		observer:        opts.Observer,
		filter:          NewFilter(opts.Included, opts.Excluded),
	}
	v.Refresh()
	v.cancel = t.Watch(v.Reconcile)
	return v, nil
}

// Close detaches the view from its tree.
func (v *View) Close() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

// RootID returns the view root.
func (v *View) RootID() string { return v.root }

// Len returns the number of projected items.
func (v *View) Len() int { return len(v.items) }

// Items returns a copy of the projection.
func (v *View) Items() []Item {
	out := make([]Item, len(v.items))
	copy(out, v.items)
	return out
}

// IndexOf returns the projected index of id, or -1 when it is not visible.
func (v *View) IndexOf(id string) int {
	for i, it := range v.items {
		if it.NodeID == id {
			return i
		}
	}
	return -1
}

// SetObserver replaces the observer.
func (v *View) SetObserver(o Observer) { v.observer = o }

// DefaultExpanded reports the expansion state of nodes without an explicit
// entry.
func (v *View) DefaultExpanded() bool { return v.defaultExpanded }

// IsExpanded reports whether id shows its children.
func (v *View) IsExpanded(id string) bool {
	if e, ok := v.expanded[id]; ok {
		return e
	}
	return v.defaultExpanded
}

// Expand shows the children of id.
func (v *View) Expand(id string) error { return v.SetExpanded(id, true) }

// Collapse hides the children of id.
func (v *View) Collapse(id string) error { return v.SetExpanded(id, false) }

// Toggle flips the expansion of id and returns the new state.
func (v *View) Toggle(id string) (bool, error) {
	next := !v.IsExpanded(id)
	return next, v.SetExpanded(id, next)
}

// SetExpanded records the expansion of id and reconciles its slice.
func (v *View) SetExpanded(id string, expanded bool) error {
	if _, err := v.tree.Get(id); err != nil {
		return err
	}
	if v.IsExpanded(id) == expanded {
		v.expanded[id] = expanded
		return nil
	}
	v.expanded[id] = expanded
	v.reconcileParent(id)
	return nil
}

// SetRecursive applies expanded to the descendants of id down to maxDepth
// levels below it (maxDepth <= 0 means the whole subtree), and to id itself
// when includeRoot is set. It returns the number of nodes touched.
func (v *View) SetRecursive(id string, expanded bool, maxDepth int, includeRoot bool) (int, error) {
	start, err := v.tree.Get(id)
	if err != nil {
		return 0, err
	}
	touched := 0
	err = v.tree.Walk(id, func(n *tree.Node) bool {
		rel := n.Depth() - start.Depth()
		if rel == 0 && !includeRoot {
			return true
		}
		if maxDepth > 0 && rel > maxDepth {
			return false
		}
		v.expanded[n.ID()] = expanded
		touched++
		return true
	})
	if err != nil {
		return 0, err
	}
	v.reconcileParent(id)
	return touched, nil
}

// ExpansionState returns the explicit expansion entries.
func (v *View) ExpansionState() map[string]bool {
	return maps.Clone(v.expanded)
}

// RestoreExpansion replaces the expansion entries and recomputes the
// projection. Entries for unknown nodes are dropped.
func (v *View) RestoreExpansion(defaultExpanded bool, state map[string]bool) {
	v.defaultExpanded = defaultExpanded
	v.expanded = make(map[string]bool, len(state))
	for id, e := range state {
		if v.tree.Has(id) {
			v.expanded[id] = e
		}
	}
	v.Refresh()
}

// Filter returns the property filter.
func (v *View) Filter() Filter { return v.filter }

// SetPropertyFilters replaces the include and exclude path lists.
func (v *View) SetPropertyFilters(included, excluded []string) {
	v.filter = NewFilter(included, excluded)
}

// PropertyVisible applies the view's property filter to a dotted path.
func (v *View) PropertyVisible(path string) bool { return v.filter.Visible(path) }

// FilterProperties returns the visible subset of props.
func (v *View) FilterProperties(props map[string]any) map[string]any {
	return v.filter.Apply(props)
}
