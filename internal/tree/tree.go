// Package tree implements the node arena: typed payload nodes with unique
// IDs, ordered owned children and parent links held as IDs.
//
// A Tree is not safe for concurrent use. Callers serialize access; the
// service layer does so with a single RWMutex.
package tree

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"
)

// Tree is an arena of nodes keyed by ID with a single root.
type Tree struct {
	registry  *Registry
	nodes     map[string]*Node
	root      string
	newID     func() string
	watchers  map[int]func(Change)
	nextWatch int
}

// Option configures a Tree at construction.
type Option func(*Tree)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(t *Tree) { t.newID = fn }
}

// WithRootID fixes the root node ID instead of generating one.
func WithRootID(id string) Option {
	return func(t *Tree) { t.root = id }
}

// New creates a tree whose root has the given payload type and properties.
func New(reg *Registry, rootType string, props map[string]any, opts ...Option) (*Tree, error) {
	t := &Tree{
		registry: reg,
		nodes:    make(map[string]*Node),
		newID:    func() string { return uuid.New().String() },
		watchers: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(t)
	}
	id := t.root
	if id == "" {
		id = t.newID()
	}
	n, err := t.newNode(id, rootType, props)
	if err != nil {
		return nil, err
	}
	t.nodes[id] = n
	t.root = id
	return t, nil
}

// Registry returns the payload type registry the tree constructs from.
func (t *Tree) Registry() *Registry { return t.registry }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.nodes[t.root] }

// RootID returns the root node ID.
func (t *Tree) RootID() string { return t.root }

// Len returns the number of nodes, root included.
func (t *Tree) Len() int { return len(t.nodes) }

// Get returns the node with the given ID.
func (t *Tree) Get(id string) (*Node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return n, nil
}

// Has reports whether id is in the tree.
func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Parent returns the parent of id, or nil for the root.
func (t *Tree) Parent(id string) (*Node, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if n.parent == "" {
		return nil, nil
	}
	return t.nodes[n.parent], nil
}

// Children returns the ordered children of id.
func (t *Tree) Children(id string) ([]*Node, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	out := make([]*Node, len(n.children))
	for i, c := range n.children {
		out[i] = t.nodes[c]
	}
	return out, nil
}

// Watch registers fn to receive every Change after it is applied.
// The returned function detaches it.
func (t *Tree) Watch(fn func(Change)) (cancel func()) {
	id := t.nextWatch
	t.nextWatch++
	t.watchers[id] = fn
	return func() { delete(t.watchers, id) }
}

func (t *Tree) emit(c Change) Change {
	keys := make([]int, 0, len(t.watchers))
	for k := range t.watchers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		t.watchers[k](c)
	}
	return c
}

func (t *Tree) newNode(id, typeName string, props map[string]any) (*Node, error) {
	spec, err := t.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	n := &Node{id: id, spec: spec, payload: spec.New()}
	for _, name := range sortedKeys(props) {
		if _, err := n.setProperty(name, props[name]); err != nil {
			return nil, err
		}
	}
	n.sealed = true
	return n, nil
}

// AddChild constructs a node of typeName from props and inserts it under
// parentID at index. An index outside [0, len] appends.
func (t *Tree) AddChild(parentID, typeName string, props map[string]any, index int) (*Node, Change, error) {
	parent, err := t.Get(parentID)
	if err != nil {
		return nil, Change{}, err
	}
	n, err := t.newNode(t.newID(), typeName, props)
	if err != nil {
		return nil, Change{}, err
	}
	t.attach(n, parent, index)
	return n, t.emit(Change{Kind: ChangeAdded, NodeID: n.id, Parents: []string{parent.id}}), nil
}

// AddChildPayload inserts a prebuilt payload. The payload must be of the Go
// type the registered constructor returns.
func (t *Tree) AddChildPayload(parentID, typeName string, payload any, index int) (*Node, Change, error) {
	parent, err := t.Get(parentID)
	if err != nil {
		return nil, Change{}, err
	}
	spec, err := t.registry.Lookup(typeName)
	if err != nil {
		return nil, Change{}, err
	}
	if reflect.TypeOf(payload) != spec.goType {
		return nil, Change{}, fmt.Errorf("payload %T for type %s: %w", payload, typeName, ErrInvalidValue)
	}
	n := &Node{id: t.newID(), spec: spec, payload: payload, sealed: true}
	t.attach(n, parent, index)
	return n, t.emit(Change{Kind: ChangeAdded, NodeID: n.id, Parents: []string{parent.id}}), nil
}

func (t *Tree) attach(n *Node, parent *Node, index int) {
	n.parent = parent.id
	n.depth = parent.depth + 1
	parent.children = insertAt(parent.children, index, n.id)
	t.nodes[n.id] = n
}

// SetProperty writes one payload property through the reserved-name guard.
func (t *Tree) SetProperty(id, name string, value any) (Change, error) {
	n, err := t.Get(id)
	if err != nil {
		return Change{}, err
	}
	changed, err := n.setProperty(name, value)
	if err != nil {
		return Change{}, err
	}
	c := Change{Kind: ChangeProperty, NodeID: id, Property: name}
	if !changed {
		return c, nil
	}
	return t.emit(c), nil
}

// SetProperties writes several properties atomically: every value is
// validated before any is applied.
func (t *Tree) SetProperties(id string, props map[string]any) (Change, error) {
	n, err := t.Get(id)
	if err != nil {
		return Change{}, err
	}
	staged := &Node{id: n.id, spec: n.spec, payload: n.copyPayload(), sealed: true}
	for _, name := range sortedKeys(props) {
		if _, err := staged.setProperty(name, props[name]); err != nil {
			return Change{}, err
		}
	}
	for _, name := range sortedKeys(props) {
		if _, err := n.setProperty(name, props[name]); err != nil {
			return Change{}, err
		}
	}
	return t.emit(Change{Kind: ChangeProperty, NodeID: id}), nil
}

// SetParent reparents id under newParentID at index. The move detaches the
// node from its old parent, assigns the new parent, inserts it, and
// recomputes depth for the whole subtree.
func (t *Tree) SetParent(id, newParentID string, index int) (Change, error) {
	n, err := t.Get(id)
	if err != nil {
		return Change{}, err
	}
	newParent, err := t.Get(newParentID)
	if err != nil {
		return Change{}, err
	}
	if n.parent == "" {
		return Change{}, ErrRootImmutable
	}
	if id == newParentID || t.IsAncestor(id, newParentID) {
		return Change{}, fmt.Errorf("move %s under %s: %w", id, newParentID, ErrCycle)
	}
	return t.emit(t.reparent(n, newParent, index)), nil
}

func (t *Tree) reparent(n, newParent *Node, index int) Change {
	old := t.nodes[n.parent]
	old.children = removeID(old.children, n.id)
	n.parent = newParent.id
	newParent.children = insertAt(newParent.children, index, n.id)

	c := Change{Kind: ChangeMoved, NodeID: n.id, Parents: []string{old.id}}
	if newParent.id != old.id {
		c.Parents = append(c.Parents, newParent.id)
	} else {
		c.Kind = ChangeReordered
	}
	if want := newParent.depth + 1; want != n.depth {
		t.rebaseDepth(n, want)
		c.DepthChanged = true
	}
	return c
}

func (t *Tree) rebaseDepth(n *Node, depth int) {
	n.depth = depth
	for _, c := range n.children {
		t.rebaseDepth(t.nodes[c], depth+1)
	}
}

// MoveBefore places id immediately before siblingID, reparenting when the
// sibling lives under a different parent.
func (t *Tree) MoveBefore(id, siblingID string) (Change, error) {
	return t.moveRelative(id, siblingID, 0)
}

// MoveAfter places id immediately after siblingID.
func (t *Tree) MoveAfter(id, siblingID string) (Change, error) {
	return t.moveRelative(id, siblingID, 1)
}

func (t *Tree) moveRelative(id, siblingID string, offset int) (Change, error) {
	if id == siblingID {
		return Change{}, fmt.Errorf("%s relative to itself: %w", id, ErrInvalidMove)
	}
	n, err := t.Get(id)
	if err != nil {
		return Change{}, err
	}
	sib, err := t.Get(siblingID)
	if err != nil {
		return Change{}, err
	}
	if n.parent == "" || sib.parent == "" {
		return Change{}, ErrRootImmutable
	}
	parent := t.nodes[sib.parent]
	if parent.id == id || t.IsAncestor(id, parent.id) {
		return Change{}, fmt.Errorf("move %s next to %s: %w", id, siblingID, ErrCycle)
	}
	// reparent detaches n before inserting, so an index past n shifts left.
	idx := slices.Index(parent.children, sib.id)
	if n.parent == parent.id && slices.Index(parent.children, n.id) < idx {
		idx--
	}
	return t.emit(t.reparent(n, parent, idx+offset)), nil
}

// SortChildren stably reorders the children of parentID with cmp.
func (t *Tree) SortChildren(parentID string, cmp func(a, b *Node) int) (Change, error) {
	p, err := t.Get(parentID)
	if err != nil {
		return Change{}, err
	}
	slices.SortStableFunc(p.children, func(a, b string) int {
		return cmp(t.nodes[a], t.nodes[b])
	})
	return t.emit(Change{Kind: ChangeReordered, NodeID: parentID, Parents: []string{parentID}}), nil
}

// Remove deletes id and its whole subtree.
func (t *Tree) Remove(id string) (Change, error) {
	n, err := t.Get(id)
	if err != nil {
		return Change{}, err
	}
	if n.parent == "" {
		return Change{}, ErrRootImmutable
	}
	parent := t.nodes[n.parent]
	parent.children = removeID(parent.children, id)
	removed := t.subtreeIDs(id)
	for _, r := range removed {
		delete(t.nodes, r)
	}
	n.parent = ""
	return t.emit(Change{Kind: ChangeRemoved, NodeID: id, Parents: []string{parent.id}, Removed: removed}), nil
}

// subtreeIDs lists id and its descendants in pre-order.
func (t *Tree) subtreeIDs(id string) []string {
	var out []string
	var walk func(string)
	walk = func(cur string) {
		out = append(out, cur)
		for _, c := range t.nodes[cur].children {
			walk(c)
		}
	}
	walk(id)
	return out
}

// Walk visits id and its descendants in DFS pre-order. Returning false from
// fn skips the visited node's children.
func (t *Tree) Walk(id string, fn func(n *Node) bool) error {
	n, err := t.Get(id)
	if err != nil {
		return err
	}
	t.walk(n, fn)
	return nil
}

func (t *Tree) walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		t.walk(t.nodes[c], fn)
	}
}

// Descendants returns every node under id in pre-order, excluding id.
func (t *Tree) Descendants(id string) ([]*Node, error) {
	var out []*Node
	err := t.Walk(id, func(n *Node) bool {
		if n.id != id {
			out = append(out, n)
		}
		return true
	})
	return out, err
}

// Ancestors returns the chain from id's parent up to the root.
func (t *Tree) Ancestors(id string) ([]*Node, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for p := n.parent; p != ""; p = t.nodes[p].parent {
		out = append(out, t.nodes[p])
	}
	return out, nil
}

// IsAncestor reports whether ancestorID is a proper ancestor of id.
func (t *Tree) IsAncestor(ancestorID, id string) bool {
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	for p := n.parent; p != ""; p = t.nodes[p].parent {
		if p == ancestorID {
			return true
		}
	}
	return false
}

// CommonAncestor returns the deepest node that is id or an ancestor of id
// for every id given. A single id returns that node.
func (t *Tree) CommonAncestor(ids []string) (*Node, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("common ancestor of no nodes: %w", ErrNotFound)
	}
	first, err := t.Get(ids[0])
	if err != nil {
		return nil, err
	}
	// Chain from the first node (inclusive) up to the root.
	chain := []*Node{first}
	for p := first.parent; p != ""; p = t.nodes[p].parent {
		chain = append(chain, t.nodes[p])
	}
	best := 0
	for _, id := range ids[1:] {
		n, err := t.Get(id)
		if err != nil {
			return nil, err
		}
		for best < len(chain) && chain[best].id != n.id && !t.IsAncestor(chain[best].id, n.id) {
			best++
		}
	}
	if best >= len(chain) {
		return t.Root(), nil
	}
	return chain[best], nil
}

// Clone copies the subtree at id under destParentID at index. Duplicate
// mode deep-copies payload state; structure mode constructs default
// payloads. Either way every clone gets a fresh ID and its own payload.
func (t *Tree) Clone(id, destParentID string, index int, mode CloneMode) (*Node, Change, error) {
	src, err := t.Get(id)
	if err != nil {
		return nil, Change{}, err
	}
	dest, err := t.Get(destParentID)
	if err != nil {
		return nil, Change{}, err
	}
	built := make(map[string]*Node)
	n := t.cloneSubtree(src, dest.depth+1, mode, built)
	for bid, b := range built {
		t.nodes[bid] = b
	}
	n.parent = dest.id
	dest.children = insertAt(dest.children, index, n.id)
	return n, t.emit(Change{Kind: ChangeAdded, NodeID: n.id, Parents: []string{dest.id}}), nil
}

func (t *Tree) cloneSubtree(src *Node, depth int, mode CloneMode, built map[string]*Node) *Node {
	n := &Node{id: t.newID(), spec: src.spec, depth: depth, sealed: true}
	if mode == CloneDuplicate {
		n.payload = src.copyPayload()
	} else {
		n.payload = src.spec.New()
	}
	built[n.id] = n
	for _, c := range src.children {
		cc := t.cloneSubtree(t.nodes[c], depth+1, mode, built)
		cc.parent = n.id
		n.children = append(n.children, cc.id)
	}
	return n
}

// CloneMode selects how Clone treats payload state.
type CloneMode int

const (
	CloneDuplicate CloneMode = iota
	CloneStructure
)

func insertAt(ids []string, index int, id string) []string {
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	return slices.Insert(ids, index, id)
}

func removeID(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
