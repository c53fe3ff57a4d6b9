package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/query"
	"github.com/alexanderramin/arbor/internal/tree"
)

// AddChild constructs a node under ParentID. The version scope is the
// parent.
func (s *Service) AddChild(ctx context.Context, agent contract.AgentContext, req contract.AddChildRequest) contract.Result[contract.NodeInfo] {
	return run(ctx, s, mutation("AddChild", agent, req.MutationOptions, req.ParentID, req.ParentID), func() (contract.NodeInfo, error) {
		if req.PayloadType == "" {
			return contract.NodeInfo{}, fmt.Errorf("payload type is required: %w", ErrInvalidArgument)
		}
		n, _, err := s.tree.AddChild(s.orRoot(req.ParentID), req.PayloadType, req.Properties, index(req.Index))
		if err != nil {
			return contract.NodeInfo{}, err
		}
		return s.nodeInfo(n), nil
	})
}

// RemoveNode deletes a node and its subtree. Tags of removed nodes are
// dropped; bookmarks are kept and may dangle.
func (s *Service) RemoveNode(ctx context.Context, agent contract.AgentContext, req contract.RemoveNodeRequest) contract.Result[contract.RemoveResult] {
	return run(ctx, s, mutation("RemoveNode", agent, req.MutationOptions, req.NodeID, req.NodeID), func() (contract.RemoveResult, error) {
		if req.NodeID == "" {
			return contract.RemoveResult{}, fmt.Errorf("node id is required: %w", ErrInvalidArgument)
		}
		c, err := s.tree.Remove(req.NodeID)
		if err != nil {
			return contract.RemoveResult{}, err
		}
		return contract.RemoveResult{NodeID: req.NodeID, RemovedIDs: c.Removed}, nil
	})
}

func (s *Service) MoveNode(ctx context.Context, agent contract.AgentContext, req contract.MoveNodeRequest) contract.Result[contract.NodeInfo] {
	return run(ctx, s, mutation("MoveNode", agent, req.MutationOptions, req.NodeID, req.NodeID, req.NewParentID), func() (contract.NodeInfo, error) {
		if req.NodeID == "" {
			return contract.NodeInfo{}, fmt.Errorf("node id is required: %w", ErrInvalidArgument)
		}
		if _, err := s.tree.SetParent(req.NodeID, s.orRoot(req.NewParentID), index(req.Index)); err != nil {
			return contract.NodeInfo{}, err
		}
		return s.currentInfo(req.NodeID)
	})
}

func (s *Service) MoveBefore(ctx context.Context, agent contract.AgentContext, req contract.MoveRelativeRequest) contract.Result[contract.NodeInfo] {
	return s.moveRelative(ctx, "MoveBefore", agent, req, true)
}

func (s *Service) MoveAfter(ctx context.Context, agent contract.AgentContext, req contract.MoveRelativeRequest) contract.Result[contract.NodeInfo] {
	return s.moveRelative(ctx, "MoveAfter", agent, req, false)
}

func (s *Service) moveRelative(ctx context.Context, op string, agent contract.AgentContext, req contract.MoveRelativeRequest, before bool) contract.Result[contract.NodeInfo] {
	return run(ctx, s, mutation(op, agent, req.MutationOptions, req.NodeID, req.NodeID, req.SiblingID), func() (contract.NodeInfo, error) {
		if req.NodeID == "" || req.SiblingID == "" {
			return contract.NodeInfo{}, fmt.Errorf("node and sibling ids are required: %w", ErrInvalidArgument)
		}
		move := s.tree.MoveAfter
		if before {
			move = s.tree.MoveBefore
		}
		if _, err := move(req.NodeID, req.SiblingID); err != nil {
			return contract.NodeInfo{}, err
		}
		return s.currentInfo(req.NodeID)
	})
}

// SortChildren stably reorders the children of ParentID by the value at
// SortBy. Children missing the value keep their relative order at the end.
func (s *Service) SortChildren(ctx context.Context, agent contract.AgentContext, req contract.SortChildrenRequest) contract.Result[contract.SortResult] {
	return run(ctx, s, mutation("SortChildren", agent, req.MutationOptions, req.ParentID, req.ParentID), func() (contract.SortResult, error) {
		if strings.TrimSpace(req.SortBy) == "" {
			return contract.SortResult{}, fmt.Errorf("sort property is required: %w", ErrInvalidArgument)
		}
		parentID := s.orRoot(req.ParentID)
		children, err := s.tree.Children(parentID)
		if err != nil {
			return contract.SortResult{}, err
		}
		query.SortNodes(children, req.SortBy, query.IsDescending(req.Direction))
		rank := make(map[string]int, len(children))
		for i, c := range children {
			rank[c.ID()] = i
		}
		if _, err := s.tree.SortChildren(parentID, func(a, b *tree.Node) int {
			return rank[a.ID()] - rank[b.ID()]
		}); err != nil {
			return contract.SortResult{}, err
		}
		parent, err := s.tree.Get(parentID)
		if err != nil {
			return contract.SortResult{}, err
		}
		return contract.SortResult{ParentID: parentID, ChildIDs: parent.ChildIDs()}, nil
	})
}

// CloneNode inserts a copy of the subtree immediately after its source.
func (s *Service) CloneNode(ctx context.Context, agent contract.AgentContext, req contract.CloneNodeRequest) contract.Result[contract.NodeInfo] {
	return run(ctx, s, mutation("CloneNode", agent, req.MutationOptions, req.NodeID, req.NodeID), func() (contract.NodeInfo, error) {
		mode, err := parseCloneMode(req.Mode)
		if err != nil {
			return contract.NodeInfo{}, err
		}
		src, err := s.tree.Get(s.orRoot(req.NodeID))
		if err != nil {
			return contract.NodeInfo{}, err
		}
		if src.IsRoot() {
			return contract.NodeInfo{}, fmt.Errorf("clone beside the root: %w", tree.ErrRootImmutable)
		}
		siblings, err := s.tree.Children(src.ParentID())
		if err != nil {
			return contract.NodeInfo{}, err
		}
		at := 0
		for i, sib := range siblings {
			if sib.ID() == src.ID() {
				at = i + 1
			}
		}
		n, _, err := s.tree.Clone(src.ID(), src.ParentID(), at, mode)
		if err != nil {
			return contract.NodeInfo{}, err
		}
		return s.nodeInfo(n), nil
	})
}

// CopySubtree clones the source subtree under a destination parent. The
// version scope is the destination.
func (s *Service) CopySubtree(ctx context.Context, agent contract.AgentContext, req contract.CopySubtreeRequest) contract.Result[contract.NodeInfo] {
	c := mutation("CopySubtree", agent, req.MutationOptions, req.DestinationParentID, req.SourceID, req.DestinationParentID)
	return run(ctx, s, c, func() (contract.NodeInfo, error) {
		if req.SourceID == "" {
			return contract.NodeInfo{}, fmt.Errorf("source id is required: %w", ErrInvalidArgument)
		}
		mode, err := parseCloneMode(req.Mode)
		if err != nil {
			return contract.NodeInfo{}, err
		}
		n, _, err := s.tree.Clone(req.SourceID, s.orRoot(req.DestinationParentID), index(req.Index), mode)
		if err != nil {
			return contract.NodeInfo{}, err
		}
		return s.nodeInfo(n), nil
	})
}

// UpdatePayload writes several properties atomically.
func (s *Service) UpdatePayload(ctx context.Context, agent contract.AgentContext, req contract.UpdatePayloadRequest) contract.Result[contract.NodeInfo] {
	return run(ctx, s, mutation("UpdatePayload", agent, req.MutationOptions, req.NodeID, req.NodeID), func() (contract.NodeInfo, error) {
		if len(req.Properties) == 0 {
			return contract.NodeInfo{}, fmt.Errorf("no properties to update: %w", ErrInvalidArgument)
		}
		id := s.orRoot(req.NodeID)
		if _, err := s.tree.SetProperties(id, req.Properties); err != nil {
			return contract.NodeInfo{}, err
		}
		return s.currentInfo(id)
	})
}

func (s *Service) UpdatePayloadProperty(ctx context.Context, agent contract.AgentContext, req contract.UpdatePayloadPropertyRequest) contract.Result[contract.NodeInfo] {
	return run(ctx, s, mutation("UpdatePayloadProperty", agent, req.MutationOptions, req.NodeID, req.NodeID), func() (contract.NodeInfo, error) {
		if strings.TrimSpace(req.PropertyName) == "" {
			return contract.NodeInfo{}, fmt.Errorf("property name is required: %w", ErrInvalidArgument)
		}
		id := s.orRoot(req.NodeID)
		if _, err := s.tree.SetProperty(id, req.PropertyName, req.Value); err != nil {
			return contract.NodeInfo{}, err
		}
		return s.currentInfo(id)
	})
}

func (s *Service) ExpandNode(ctx context.Context, agent contract.AgentContext, req contract.ExpansionRequest) contract.Result[contract.ExpansionResult] {
	return s.setExpanded(ctx, "ExpandNode", agent, req, true)
}

func (s *Service) CollapseNode(ctx context.Context, agent contract.AgentContext, req contract.ExpansionRequest) contract.Result[contract.ExpansionResult] {
	return s.setExpanded(ctx, "CollapseNode", agent, req, false)
}

func (s *Service) setExpanded(ctx context.Context, op string, agent contract.AgentContext, req contract.ExpansionRequest, expanded bool) contract.Result[contract.ExpansionResult] {
	return run(ctx, s, mutation(op, agent, req.MutationOptions, req.NodeID, req.NodeID), func() (contract.ExpansionResult, error) {
		id := s.orRoot(req.NodeID)
		if err := s.view.SetExpanded(id, expanded); err != nil {
			return contract.ExpansionResult{}, err
		}
		return contract.ExpansionResult{NodeID: id, Expanded: expanded, Affected: 1, VisibleCount: s.view.Len()}, nil
	})
}

// SetExpansionRecursive expands or collapses a subtree down to MaxDepth
// levels below NodeID.
func (s *Service) SetExpansionRecursive(ctx context.Context, agent contract.AgentContext, req contract.SetExpansionRecursiveRequest) contract.Result[contract.ExpansionResult] {
	return run(ctx, s, mutation("SetExpansionRecursive", agent, req.MutationOptions, req.NodeID, req.NodeID), func() (contract.ExpansionResult, error) {
		id := s.orRoot(req.NodeID)
		affected, err := s.view.SetRecursive(id, req.Expanded, req.MaxDepth, req.IncludeRoot)
		if err != nil {
			return contract.ExpansionResult{}, err
		}
		return contract.ExpansionResult{NodeID: id, Expanded: req.Expanded, Affected: affected, VisibleCount: s.view.Len()}, nil
	})
}

// SetPropertyFilters replaces the dotted-path include and exclude lists
// applied to node properties in every response.
func (s *Service) SetPropertyFilters(ctx context.Context, agent contract.AgentContext, req contract.SetPropertyFiltersRequest) contract.Result[contract.FilterResult] {
	return run(ctx, s, mutation("SetPropertyFilters", agent, req.MutationOptions, ""), func() (contract.FilterResult, error) {
		s.view.SetPropertyFilters(req.Included, req.Excluded)
		f := s.view.Filter()
		return contract.FilterResult{Included: f.Included, Excluded: f.Excluded}, nil
	})
}

func (s *Service) currentInfo(id string) (contract.NodeInfo, error) {
	n, err := s.tree.Get(id)
	if err != nil {
		return contract.NodeInfo{}, err
	}
	return s.nodeInfo(n), nil
}

func parseCloneMode(mode string) (tree.CloneMode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "duplicate":
		return tree.CloneDuplicate, nil
	case "structure":
		return tree.CloneStructure, nil
	}
	return 0, fmt.Errorf("clone mode %q: %w", mode, ErrInvalidArgument)
}

// index converts an optional position; nil appends.
func index(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
