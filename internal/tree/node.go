package tree

import "fmt"

// Node is a tree entry. Nodes are owned by their Tree; parent and children
// are held as IDs into the tree's arena. A Node must not be mutated outside
// the Tree methods.
type Node struct {
	id       string
	spec     *TypeSpec
	payload  any
	parent   string
	children []string
	depth    int
	sealed   bool
}

func (n *Node) ID() string { return n.id }
func (n *Node) PayloadType() string { return n.spec.Name }
func (n *Node) Spec() *TypeSpec { return n.spec }
func (n *Node) ParentID() string { return n.parent }
func (n *Node) Depth() int { return n.depth }
func (n *Node) IsRoot() bool { return n.parent == "" }
func (n *Node) IsSelfPayload() bool { return n.spec.SelfPayload }
func (n *Node) ChildCount() int { return len(n.children) }

// ChildIDs returns a copy of the ordered child IDs.
func (n *Node) ChildIDs() []string {
	out := make([]string, len(n.children))
	copy(out, n.children)
	return out
}

// Payload returns the node's payload object. For self-payload types the
// node is its own payload.
func (n *Node) Payload() any {
	if n.spec.SelfPayload {
		return n
	}
	return n.payload
}

// Property reads a named property. Self-payload nodes also expose the
// reserved identity and structure properties.
func (n *Node) Property(name string) (any, bool) {
	if n.spec.SelfPayload {
		switch name {
		case PropNodeID:
			return n.id, true
		case PropPayloadType:
			return n.spec.Name, true
		case PropParent:
			return n.parent, true
		case PropChildren:
			return n.ChildIDs(), true
		}
	}
	p, ok := n.spec.Property(name)
	if !ok {
		return nil, false
	}
	return p.get(n.payload), true
}

// Properties returns the registered property values keyed by name.
func (n *Node) Properties() map[string]any {
	out := make(map[string]any, len(n.spec.Properties))
	for i := range n.spec.Properties {
		p := &n.spec.Properties[i]
		out[p.Name] = p.get(n.payload)
	}
	return out
}

// setProperty is the single write path for both node kinds. Reserved names
// are rejected before the type is consulted.
func (n *Node) setProperty(name string, value any) (changed bool, err error) {
	if IsReserved(name) {
		return false, fmt.Errorf("%s: %w", name, ErrReservedProperty)
	}
	p, ok := n.spec.Property(name)
	if !ok {
		return false, fmt.Errorf("%s.%s: %w", n.spec.Name, name, ErrUnknownProperty)
	}
	v, err := Coerce(p.Kind, value)
	if err != nil {
		return false, fmt.Errorf("%s.%s: %w", n.spec.Name, name, err)
	}
	current := p.get(n.payload)
	if n.sealed && p.Immutable {
		if current == v {
			return false, nil
		}
		return false, fmt.Errorf("%s.%s: %w", n.spec.Name, name, ErrImmutableProperty)
	}
	if current == v {
		return false, nil
	}
	p.set(n.payload, v)
	return true, nil
}

// copyPayload returns an independent copy of the node's payload state.
func (n *Node) copyPayload() any {
	if c, ok := n.payload.(Cloner); ok {
		return c.ClonePayload()
	}
	dst := n.spec.New()
	for i := range n.spec.Properties {
		p := &n.spec.Properties[i]
		p.set(dst, p.get(n.payload))
	}
	return dst
}
