package tree

// ChangeKind classifies a tree mutation.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
	ChangeMoved
	ChangeReordered
	ChangeProperty
	ChangeReplaced
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeMoved:
		return "moved"
	case ChangeReordered:
		return "reordered"
	case ChangeProperty:
		return "property"
	case ChangeReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Change describes one completed mutation. Parents lists every node whose
// child list changed (old parent first on a move); Removed lists every node
// that left the tree, subtree included.
type Change struct {
	Kind         ChangeKind
	NodeID       string
	Parents      []string
	Removed      []string
	Property     string
	DepthChanged bool
}
