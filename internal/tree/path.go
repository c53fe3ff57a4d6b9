package tree

import "strings"

// ResolvePath reads a dotted property path from n. NodeId, PayloadType and
// Depth resolve for every node; a leading "Payload." segment is optional;
// further segments descend into map values.
func ResolvePath(n *Node, path string) (any, bool) {
	segs := strings.Split(strings.TrimSpace(path), ".")
	if len(segs) > 1 && segs[0] == "Payload" {
		segs = segs[1:]
	}
	if segs[0] == "" {
		return nil, false
	}

	var cur any
	switch segs[0] {
	case PropNodeID:
		cur = n.id
	case PropPayloadType:
		cur = n.spec.Name
	case "Depth":
		cur = n.depth
	default:
		v, ok := n.Property(segs[0])
		if !ok {
			return nil, false
		}
		cur = v
	}

	for _, seg := range segs[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}
