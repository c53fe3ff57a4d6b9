package tree

import (
	"fmt"
	"slices"
)

// Blueprint is a detached description of a subtree: the interchange form
// used by clone, snapshot, export and import.
type Blueprint struct {
	ID         string
	Type       string
	Properties map[string]any
	Children   []*Blueprint
}

// Count returns the number of nodes in the blueprint.
func (b *Blueprint) Count() int {
	n := 1
	for _, c := range b.Children {
		n += c.Count()
	}
	return n
}

// Blueprint captures the subtree rooted at id.
func (t *Tree) Blueprint(id string) (*Blueprint, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	return t.blueprint(n), nil
}

func (t *Tree) blueprint(n *Node) *Blueprint {
	bp := &Blueprint{ID: n.id, Type: n.spec.Name, Properties: n.Properties()}
	for _, c := range n.children {
		bp.Children = append(bp.Children, t.blueprint(t.nodes[c]))
	}
	return bp
}

// Graft builds bp under parentID at index. With freshIDs every node gets a
// new ID; otherwise blueprint IDs are kept and must not collide.
func (t *Tree) Graft(parentID string, bp *Blueprint, index int, freshIDs bool) (*Node, Change, error) {
	parent, err := t.Get(parentID)
	if err != nil {
		return nil, Change{}, err
	}
	n, err := t.graft(parent, bp, index, freshIDs)
	if err != nil {
		return nil, Change{}, err
	}
	return n, t.emit(Change{Kind: ChangeAdded, NodeID: n.id, Parents: []string{parent.id}}), nil
}

// graft builds the whole subtree detached first so a failure leaves the
// tree untouched.
func (t *Tree) graft(parent *Node, bp *Blueprint, index int, freshIDs bool) (*Node, error) {
	built := make(map[string]*Node)
	root, err := t.build(bp, parent.depth+1, freshIDs, built, nil)
	if err != nil {
		return nil, err
	}
	for id, n := range built {
		t.nodes[id] = n
	}
	root.parent = parent.id
	parent.children = insertAt(parent.children, index, root.id)
	return root, nil
}

// build constructs bp and its children into built. IDs present in the tree
// collide unless listed in reusable.
func (t *Tree) build(bp *Blueprint, depth int, freshIDs bool, built map[string]*Node, reusable map[string]bool) (*Node, error) {
	id := bp.ID
	if freshIDs || id == "" {
		id = t.newID()
	}
	if _, dup := built[id]; dup || (t.Has(id) && !reusable[id]) {
		return nil, fmt.Errorf("%s: %w", id, ErrDuplicateID)
	}
	if existing, ok := t.nodes[id]; ok {
		if err := sameIdentity(existing, bp); err != nil {
			return nil, err
		}
	}
	n, err := t.newNode(id, bp.Type, bp.Properties)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	n.depth = depth
	built[id] = n
	for _, cbp := range bp.Children {
		c, err := t.build(cbp, depth+1, freshIDs, built, reusable)
		if err != nil {
			return nil, err
		}
		c.parent = id
		n.children = append(n.children, c.id)
	}
	return n, nil
}

// Replace overwrites the subtree at id with bp, keeping blueprint IDs. The
// blueprint root must carry the same NodeId and PayloadType, and immutable
// properties must keep their values; violations return ErrIdentityMismatch
// or ErrImmutableProperty and leave the tree untouched. Blueprint nodes found
// elsewhere in the tree are detached from their current parent and rebuilt
// under id.
func (t *Tree) Replace(id string, bp *Blueprint) (Change, error) {
	n, err := t.Get(id)
	if err != nil {
		return Change{}, err
	}
	if bp.ID != id {
		return Change{}, fmt.Errorf("NodeId %s cannot become %s: %w", id, bp.ID, ErrIdentityMismatch)
	}
	if bp.Type != n.spec.Name {
		return Change{}, fmt.Errorf("PayloadType of %s cannot change from %s to %s: %w", id, n.spec.Name, bp.Type, ErrIdentityMismatch)
	}

	staged := &Node{id: n.id, spec: n.spec, payload: n.copyPayload(), sealed: true}
	for _, name := range sortedKeys(bp.Properties) {
		if _, err := staged.setProperty(name, bp.Properties[name]); err != nil {
			return Change{}, err
		}
	}

	old := t.subtreeIDs(id)[1:]
	reusable := make(map[string]bool, len(old))
	for _, o := range old {
		reusable[o] = true
	}
	strays, err := t.strays(id, bp, reusable)
	if err != nil {
		return Change{}, err
	}
	for _, s := range strays {
		for _, o := range t.subtreeIDs(s) {
			if !reusable[o] {
				reusable[o] = true
				old = append(old, o)
			}
		}
	}
	built := make(map[string]*Node)
	var children []*Node
	for _, cbp := range bp.Children {
		c, err := t.build(cbp, n.depth+1, false, built, reusable)
		if err != nil {
			return Change{}, err
		}
		children = append(children, c)
	}

	parents := make([]string, 0, len(strays)+1)
	for _, s := range strays {
		p := t.nodes[s].parent
		if reusable[p] {
			continue
		}
		prev := t.nodes[p]
		prev.children = slices.DeleteFunc(prev.children, func(c string) bool { return c == s })
		if !slices.Contains(parents, p) {
			parents = append(parents, p)
		}
	}
	parents = append(parents, id)

	var removed []string
	for _, o := range old {
		if _, kept := built[o]; !kept {
			removed = append(removed, o)
		}
		delete(t.nodes, o)
	}
	for bid, b := range built {
		t.nodes[bid] = b
	}
	n.payload = staged.payload
	n.children = n.children[:0]
	for _, c := range children {
		c.parent = id
		n.children = append(n.children, c.id)
	}
	slices.Sort(removed)
	return t.emit(Change{Kind: ChangeReplaced, NodeID: id, Parents: parents, Removed: removed}), nil
}

// strays lists blueprint nodes that still exist in the tree but were moved
// out of the subtree being replaced. Replace moves them back, together with
// their current descendants. A stray that is now an ancestor of id is a
// cycle.
func (t *Tree) strays(id string, bp *Blueprint, inside map[string]bool) ([]string, error) {
	var out []string
	var walk func(*Blueprint) error
	walk = func(b *Blueprint) error {
		if b.ID != "" && b.ID != id && !inside[b.ID] && t.Has(b.ID) && !slices.Contains(out, b.ID) {
			if t.IsAncestor(b.ID, id) {
				return fmt.Errorf("%s now contains %s: %w", b.ID, id, ErrCycle)
			}
			out = append(out, b.ID)
		}
		for _, c := range b.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range bp.Children {
		if err := walk(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FromBlueprint builds a new tree from bp, keeping its IDs.
func FromBlueprint(reg *Registry, bp *Blueprint, opts ...Option) (*Tree, error) {
	rootOpts := append([]Option{WithRootID(bp.ID)}, opts...)
	t, err := New(reg, bp.Type, bp.Properties, rootOpts...)
	if err != nil {
		return nil, err
	}
	root := t.Root()
	built := make(map[string]*Node)
	for _, cbp := range bp.Children {
		c, err := t.build(cbp, 1, false, built, nil)
		if err != nil {
			return nil, err
		}
		c.parent = root.id
		root.children = append(root.children, c.id)
	}
	for id, n := range built {
		t.nodes[id] = n
	}
	return t, nil
}

// sameIdentity rejects a blueprint that would change the payload type or an
// immutable property of the existing node it replaces.
func sameIdentity(n *Node, bp *Blueprint) error {
	if bp.Type != n.spec.Name {
		return fmt.Errorf("PayloadType of %s cannot change from %s to %s: %w", n.id, n.spec.Name, bp.Type, ErrIdentityMismatch)
	}
	for i := range n.spec.Properties {
		p := &n.spec.Properties[i]
		v, ok := bp.Properties[p.Name]
		if !p.Immutable || !ok {
			continue
		}
		cv, err := Coerce(p.Kind, v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", n.spec.Name, p.Name, err)
		}
		if cv != p.get(n.payload) {
			return fmt.Errorf("%s.%s on %s: %w", n.spec.Name, p.Name, n.id, ErrImmutableProperty)
		}
	}
	return nil
}
