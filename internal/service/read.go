package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/query"
	"github.com/alexanderramin/arbor/internal/tree"
)

func (s *Service) GetNode(ctx context.Context, agent contract.AgentContext, req contract.GetNodeRequest) contract.Result[contract.NodeInfo] {
	return run(ctx, s, read("GetNode", agent, req.NodeID), func() (contract.NodeInfo, error) {
		n, err := s.tree.Get(s.orRoot(req.NodeID))
		if err != nil {
			return contract.NodeInfo{}, err
		}
		return s.nodeInfo(n), nil
	})
}

func (s *Service) ListChildren(ctx context.Context, agent contract.AgentContext, req contract.ListChildrenRequest) contract.Result[contract.Page[contract.NodeInfo]] {
	return run(ctx, s, read("ListChildren", agent, req.NodeID), func() (contract.Page[contract.NodeInfo], error) {
		children, err := s.tree.Children(s.orRoot(req.NodeID))
		if err != nil {
			return contract.Page[contract.NodeInfo]{}, err
		}
		return s.page(children, req.Paging), nil
	})
}

// GetProjection pages through the view's flattened visible rows.
func (s *Service) GetProjection(ctx context.Context, agent contract.AgentContext, req contract.GetProjectionRequest) contract.Result[contract.Page[contract.ProjectionItem]] {
	return run(ctx, s, read("GetProjection", agent), func() (contract.Page[contract.ProjectionItem], error) {
		items := s.view.Items()
		rows := make([]contract.ProjectionItem, len(items))
		for i, it := range items {
			n, err := s.tree.Get(it.NodeID)
			if err != nil {
				return contract.Page[contract.ProjectionItem]{}, fmt.Errorf("projection row %d: %w", i, err)
			}
			rows[i] = contract.ProjectionItem{
				NodeID:      n.ID(),
				PayloadType: n.PayloadType(),
				Depth:       it.Depth,
				Expanded:    s.view.IsExpanded(n.ID()),
				HasChildren: n.ChildCount() > 0,
				Label:       Label(n),
			}
		}
		pageItems, next := query.Paginate(rows, req.PageToken, s.pageSize(req.PageSize))
		return contract.Page[contract.ProjectionItem]{Items: pageItems, NextPageToken: next, TotalCount: len(rows)}, nil
	})
}

// GetAncestors returns the chain from the node's parent up to the root.
func (s *Service) GetAncestors(ctx context.Context, agent contract.AgentContext, req contract.GetAncestorsRequest) contract.Result[[]contract.NodeInfo] {
	return run(ctx, s, read("GetAncestors", agent, req.NodeID), func() ([]contract.NodeInfo, error) {
		if req.NodeID == "" {
			return nil, fmt.Errorf("node id is required: %w", ErrInvalidArgument)
		}
		ancestors, err := s.tree.Ancestors(req.NodeID)
		if err != nil {
			return nil, err
		}
		return s.nodeInfos(ancestors), nil
	})
}

// GetCommonAncestor returns the deepest node that is, or is an ancestor
// of, every given node.
func (s *Service) GetCommonAncestor(ctx context.Context, agent contract.AgentContext, req contract.GetCommonAncestorRequest) contract.Result[contract.NodeInfo] {
	return run(ctx, s, read("GetCommonAncestor", agent, req.NodeIDs...), func() (contract.NodeInfo, error) {
		if len(req.NodeIDs) == 0 {
			return contract.NodeInfo{}, fmt.Errorf("at least one node id is required: %w", ErrInvalidArgument)
		}
		n, err := s.tree.CommonAncestor(req.NodeIDs)
		if err != nil {
			return contract.NodeInfo{}, err
		}
		return s.nodeInfo(n), nil
	})
}

// GetVersion reports the version of a scope. An empty scope is the tree root.
func (s *Service) GetVersion(ctx context.Context, agent contract.AgentContext, req contract.GetVersionRequest) contract.Result[int64] {
	c := read("GetVersion", agent)
	c.scope = req.Scope
	return run(ctx, s, c, func() (int64, error) {
		return s.versions.Current(s.orRoot(req.Scope)), nil
	})
}

func (s *Service) page(nodes []*tree.Node, p contract.Paging) contract.Page[contract.NodeInfo] {
	items, next := query.Paginate(nodes, p.PageToken, s.pageSize(p.PageSize))
	return contract.Page[contract.NodeInfo]{Items: s.nodeInfos(items), NextPageToken: next, TotalCount: len(nodes)}
}

var labelProperties = []string{"Name", "Title", "Label"}

// Label returns a display name for n: the first non-empty of Name, Title or
// Label, then the first non-empty string property, then the payload type.
func Label(n *tree.Node) string {
	for _, name := range labelProperties {
		if v, ok := n.Property(name); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	spec := n.Spec()
	for i := range spec.Properties {
		p := &spec.Properties[i]
		if p.Kind != tree.KindString || slices.Contains(labelProperties, p.Name) {
			continue
		}
		if v, _ := n.Property(p.Name); v != "" && v != nil {
			return fmt.Sprint(v)
		}
	}
	return n.PayloadType()
}
