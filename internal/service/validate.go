package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/tree"
)

// ValidateTree checks link agreement, depth, registered types and required
// properties over the subtree at RootID.
func (s *Service) ValidateTree(ctx context.Context, agent contract.AgentContext, req contract.ValidateTreeRequest) contract.Result[contract.ValidationReport] {
	return run(ctx, s, read("ValidateTree", agent, req.RootID), func() (contract.ValidationReport, error) {
		root, err := s.tree.Get(s.orRoot(req.RootID))
		if err != nil {
			return contract.ValidationReport{}, err
		}
		v := validator{tree: s.tree, registry: s.registry, required: req.RequiredProperties, seen: make(map[string]bool)}
		v.visit(root)
		return v.report(), nil
	})
}

// ValidateNode runs the same checks on a single node.
func (s *Service) ValidateNode(ctx context.Context, agent contract.AgentContext, req contract.ValidateNodeRequest) contract.Result[contract.ValidationReport] {
	return run(ctx, s, read("ValidateNode", agent, req.NodeID), func() (contract.ValidationReport, error) {
		n, err := s.tree.Get(s.orRoot(req.NodeID))
		if err != nil {
			return contract.ValidationReport{}, err
		}
		v := validator{tree: s.tree, registry: s.registry, required: req.RequiredProperties}
		v.checkNode(n)
		if parent, err := s.tree.Parent(n.ID()); err == nil && parent != nil {
			v.checkLink(parent, n)
		} else if n.Depth() != 0 {
			v.addf(n, "root depth is %d, want 0", n.Depth())
		}
		return v.report(), nil
	})
}

type validator struct {
	tree     *tree.Tree
	registry *tree.Registry
	required []string
	seen     map[string]bool
	checked  int
	issues   []string
}

func (v *validator) visit(n *tree.Node) {
	if v.seen[n.ID()] {
		v.addf(n, "reached twice, the tree has a cycle")
		return
	}
	v.seen[n.ID()] = true
	v.checkNode(n)
	for _, id := range n.ChildIDs() {
		c, err := v.tree.Get(id)
		if err != nil {
			v.addf(n, "child %s is missing", id)
			continue
		}
		v.checkLink(n, c)
		v.visit(c)
	}
}

func (v *validator) checkNode(n *tree.Node) {
	v.checked++
	spec, err := v.registry.Lookup(n.PayloadType())
	if err != nil {
		v.addf(n, "payload type is not registered")
		return
	}
	for i := range spec.Properties {
		if p := &spec.Properties[i]; p.Required {
			v.checkRequired(n, p.Name)
		}
	}
	for _, path := range v.required {
		path = strings.TrimSpace(path)
		head, _, _ := strings.Cut(strings.TrimPrefix(path, "Payload."), ".")
		if _, declared := spec.Property(head); !declared {
			continue
		}
		if p, ok := spec.Property(path); ok && p.Required {
			continue
		}
		v.checkRequired(n, path)
	}
}

func (v *validator) checkRequired(n *tree.Node, path string) {
	val, ok := tree.ResolvePath(n, path)
	if !ok || val == nil {
		v.addf(n, "required property '%s' is null or empty", path)
		return
	}
	if s, isString := val.(string); isString && strings.TrimSpace(s) == "" {
		v.addf(n, "required property '%s' is null or empty", path)
	}
}

func (v *validator) checkLink(parent, child *tree.Node) {
	if child.ParentID() != parent.ID() {
		v.addf(child, "parent link %s disagrees with owner %s", child.ParentID(), parent.ID())
	}
	if child.Depth() != parent.Depth()+1 {
		v.addf(child, "depth %d, want %d", child.Depth(), parent.Depth()+1)
	}
}

func (v *validator) addf(n *tree.Node, format string, args ...any) {
	v.issues = append(v.issues, fmt.Sprintf("node %s (%s): ", n.ID(), n.PayloadType())+fmt.Sprintf(format, args...))
}

func (v *validator) report() contract.ValidationReport {
	return contract.ValidationReport{Valid: len(v.issues) == 0, NodesChecked: v.checked, Issues: v.issues}
}
