package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/alexanderramin/arbor/internal/tree"
)

// GroupMode combines the predicates of a group.
type GroupMode string

const (
	ModeAnd      GroupMode = "and"
	ModeOr       GroupMode = "or"
	ModeButNotIf GroupMode = "but-not-if"
)

// ParseGroupMode normalizes a mode name. Empty means and.
func ParseGroupMode(s string) (GroupMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and", "all":
		return ModeAnd, nil
	case "or", "any":
		return ModeOr, nil
	case "but-not-if", "butnotif", "but_not_if":
		return ModeButNotIf, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownMode)
}

// PredicateGroup is a list of filters combined by Mode.
//
// In but-not-if mode the first predicate selects candidates and a match on
// any later predicate excludes the node.
type PredicateGroup struct {
	Mode       GroupMode
	Predicates []Filter
}

// Validate normalizes the mode and every predicate.
func (g *PredicateGroup) Validate() error {
	mode, err := ParseGroupMode(string(g.Mode))
	if err != nil {
		return err
	}
	g.Mode = mode
	if len(g.Predicates) == 0 {
		return fmt.Errorf("predicate group has no predicates: %w", ErrSyntax)
	}
	for i := range g.Predicates {
		if err := g.Predicates[i].Validate(); err != nil {
			return fmt.Errorf("predicate %d: %w", i, err)
		}
	}
	return nil
}

// Match evaluates the group against n.
func (g PredicateGroup) Match(n *tree.Node) bool {
	switch g.Mode {
	case ModeOr:
		return slices.ContainsFunc(g.Predicates, func(f Filter) bool { return f.Match(n) })
	case ModeButNotIf:
		if len(g.Predicates) == 0 || !g.Predicates[0].Match(n) {
			return false
		}
		return !slices.ContainsFunc(g.Predicates[1:], func(f Filter) bool { return f.Match(n) })
	default:
		return MatchAll(g.Predicates, n)
	}
}

// MatchAll reports whether n satisfies every filter.
func MatchAll(filters []Filter, n *tree.Node) bool {
	for _, f := range filters {
		if !f.Match(n) {
			return false
		}
	}
	return true
}

// Collect returns the descendants of rootID, in pre-order, for which match
// reports true. The root itself is never included.
func Collect(t *tree.Tree, rootID string, match func(*tree.Node) bool) ([]*tree.Node, error) {
	var out []*tree.Node
	err := t.Walk(rootID, func(n *tree.Node) bool {
		if n.ID() != rootID && match(n) {
			out = append(out, n)
		}
		return true
	})
	return out, err
}

// SortNodes stably orders nodes by the value at path. Nodes missing the
// value sort last in either direction.
func SortNodes(nodes []*tree.Node, path string, descending bool) {
	if strings.TrimSpace(path) == "" {
		return
	}
	slices.SortStableFunc(nodes, func(a, b *tree.Node) int {
		av, aok := tree.ResolvePath(a, path)
		bv, bok := tree.ResolvePath(b, path)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := order(av, bv)
		if descending {
			return -c
		}
		return c
	})
}

// IsDescending reads a sort direction. Anything other than desc or
// descending sorts ascending.
func IsDescending(direction string) bool {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "desc", "descending":
		return true
	}
	return false
}
