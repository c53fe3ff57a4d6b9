package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/query"
	"github.com/alexanderramin/arbor/internal/tree"
)

// Search returns the descendants of RootID that satisfy every filter.
func (s *Service) Search(ctx context.Context, agent contract.AgentContext, req contract.SearchRequest) contract.Result[contract.Page[contract.NodeInfo]] {
	return run(ctx, s, read("Search", agent, req.RootID), func() (contract.Page[contract.NodeInfo], error) {
		filters, err := toFilters(req.Filters)
		if err != nil {
			return contract.Page[contract.NodeInfo]{}, err
		}
		matches, err := query.Collect(s.tree, s.orRoot(req.RootID), func(n *tree.Node) bool {
			return query.MatchAll(filters, n)
		})
		if err != nil {
			return contract.Page[contract.NodeInfo]{}, err
		}
		return s.page(matches, req.Paging), nil
	})
}

// AdvancedSearch evaluates a predicate group and optionally sorts the
// matches.
func (s *Service) AdvancedSearch(ctx context.Context, agent contract.AgentContext, req contract.AdvancedSearchRequest) contract.Result[contract.Page[contract.NodeInfo]] {
	return run(ctx, s, read("AdvancedSearch", agent, req.RootID), func() (contract.Page[contract.NodeInfo], error) {
		filters, err := toFilters(req.Group.Predicates)
		if err != nil {
			return contract.Page[contract.NodeInfo]{}, err
		}
		group := query.PredicateGroup{Mode: query.GroupMode(req.Group.Mode), Predicates: filters}
		if err := group.Validate(); err != nil {
			return contract.Page[contract.NodeInfo]{}, err
		}
		matches, err := query.Collect(s.tree, s.orRoot(req.RootID), group.Match)
		if err != nil {
			return contract.Page[contract.NodeInfo]{}, err
		}
		query.SortNodes(matches, req.SortBy, query.IsDescending(req.SortDirection))
		return s.page(matches, req.Paging), nil
	})
}

// ExpressionSearch parses a textual query such as
// `Name contains "bed" and not Heated = false`.
func (s *Service) ExpressionSearch(ctx context.Context, agent contract.AgentContext, req contract.ExpressionSearchRequest) contract.Result[contract.Page[contract.NodeInfo]] {
	return run(ctx, s, read("ExpressionSearch", agent, req.RootID), func() (contract.Page[contract.NodeInfo], error) {
		expr, err := query.ParseExpr(req.Expression)
		if err != nil {
			return contract.Page[contract.NodeInfo]{}, err
		}
		matches, err := query.Collect(s.tree, s.orRoot(req.RootID), expr.Match)
		if err != nil {
			return contract.Page[contract.NodeInfo]{}, err
		}
		return s.page(matches, req.Paging), nil
	})
}

func toFilters(in []contract.Filter) ([]query.Filter, error) {
	out := make([]query.Filter, len(in))
	for i, f := range in {
		out[i] = query.Filter{Path: strings.TrimSpace(f.PropertyPath), Op: query.Operator(f.Operator), Value: f.Value}
		if err := out[i].Validate(); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
	}
	return out, nil
}
