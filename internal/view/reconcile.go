package view

import "github.com/alexanderramin/arbor/internal/tree"

// Reconcile brings the projection up to date with one applied change. Only
// the visible slices of the parents named by the change are recomputed.
func (v *View) Reconcile(c tree.Change) {
	for _, id := range c.Removed {
		delete(v.expanded, id)
	}
	if !v.tree.Has(v.root) {
		v.patch(0, len(v.items), nil)
		return
	}

	switch c.Kind {
	case tree.ChangeProperty:
		// Rows carry no payload; rebinding the row is enough.
		if i := v.IndexOf(c.NodeID); i >= 0 && v.observer != nil {
			v.observer.Set(i, v.items[i])
		}
	default:
		for _, p := range c.Parents {
			v.reconcileParent(p)
		}
	}
}

// Refresh recomputes the whole projection with the same patch algorithm.
func (v *View) Refresh() {
	var next []Item
	if v.tree.Has(v.root) && v.IsExpanded(v.root) {
		next = v.flatten(v.root)
	}
	v.patch(0, len(v.items), next)
}

// reconcileParent replaces the rows below id with its current visible
// children. Nothing happens when id is not shown.
func (v *View) reconcileParent(id string) {
	if !v.tree.Has(id) {
		return
	}
	if id == v.root {
		v.Refresh()
		return
	}
	if !v.tree.IsAncestor(v.root, id) {
		return
	}
	at := v.IndexOf(id)
	if at < 0 {
		return
	}
	start := at + 1
	end := start
	for end < len(v.items) && v.items[end].Depth > v.items[at].Depth {
		end++
	}
	var next []Item
	if v.IsExpanded(id) {
		next = v.flatten(id)
	}
	v.patch(start, end-start, next)
}

// flatten lists the visible descendants of id in DFS pre-order. id must be
// expanded.
func (v *View) flatten(id string) []Item {
	var out []Item
	var walk func(string)
	walk = func(cur string) {
		children, _ := v.tree.Children(cur)
		for _, c := range children {
			out = append(out, Item{NodeID: c.ID(), Depth: c.Depth()})
			if c.ChildCount() > 0 && v.IsExpanded(c.ID()) {
				walk(c.ID())
			}
		}
	}
	walk(id)
	return out
}

// patch rewrites items[start:start+oldLen] to next: rows that differ are set
// by index, a longer result inserts its tail, a shorter one removes the
// excess.
func (v *View) patch(start, oldLen int, next []Item) {
	common := min(oldLen, len(next))
	for i := range common {
		at := start + i
		if v.items[at] != next[i] {
			v.items[at] = next[i]
			if v.observer != nil {
				v.observer.Set(at, next[i])
			}
		}
	}

	switch {
	case len(next) > oldLen:
		tail := next[oldLen:]
		at := start + oldLen
		grown := make([]Item, 0, len(v.items)+len(tail))
		grown = append(grown, v.items[:at]...)
		grown = append(grown, tail...)
		grown = append(grown, v.items[at:]...)
		v.items = grown
		if v.observer != nil {
			for i, it := range tail {
				v.observer.Insert(at+i, it)
			}
		}
	case oldLen > len(next):
		at := start + len(next)
		excess := oldLen - len(next)
		v.items = append(v.items[:at], v.items[at+excess:]...)
		if v.observer != nil {
			for range excess {
				v.observer.Remove(at)
			}
		}
	}
}
