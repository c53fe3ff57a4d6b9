package service

import (
	"testing"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/stretchr/testify/assert"
)

func TestSearch_FiltersAreCombinedWithAnd(t *testing.T) {
	f := newFixture(t)

	page := requireOK(t, f.svc.Search(f.ctx, reader, contract.SearchRequest{Filters: []contract.Filter{
		{PropertyPath: "Heated", Operator: "equals", Value: true},
		{PropertyPath: "SquareFeet", Operator: ">=", Value: 150},
	}}))
	assert.Equal(t, []string{"Kitchen"}, names(page.Items))
}

func TestSearch_ReturnsDescendantsOnly(t *testing.T) {
	f := newFixture(t)

	page := requireOK(t, f.svc.Search(f.ctx, reader, contract.SearchRequest{
		RootID:  f.id(t, "Level1a"),
		Filters: []contract.Filter{{PropertyPath: "Name", Operator: "contains", Value: "e"}},
	}))
	assert.Equal(t, []string{"Kitchen", "Bedroom"}, names(page.Items))
}

func TestSearch_RejectsUnknownOperator(t *testing.T) {
	f := newFixture(t)

	res := f.svc.Search(f.ctx, reader, contract.SearchRequest{Filters: []contract.Filter{
		{PropertyPath: "Name", Operator: "resembles", Value: "x"},
	}})
	requireCode(t, res, contract.ErrInvalidArgument)
}

func TestAdvancedSearch_ButNotIf(t *testing.T) {
	f := newFixture(t)

	page := requireOK(t, f.svc.AdvancedSearch(f.ctx, reader, contract.AdvancedSearchRequest{
		Group: contract.PredicateGroup{
			Mode: "but-not-if",
			Predicates: []contract.Filter{
				{PropertyPath: "SquareFeet", Operator: "gt", Value: 100},
				{PropertyPath: "Name", Operator: "contains", Value: "Kitchen"},
			},
		},
	}))
	assert.ElementsMatch(t, []string{"Bedroom", "Bathroom"}, names(page.Items))
}

func TestAdvancedSearch_SortsStably(t *testing.T) {
	f := newFixture(t)
	group := contract.PredicateGroup{Predicates: []contract.Filter{{PropertyPath: "SquareFeet", Operator: "gt", Value: 0}}}

	desc := requireOK(t, f.svc.AdvancedSearch(f.ctx, reader, contract.AdvancedSearchRequest{
		Group: group, SortBy: "SquareFeet", SortDirection: "desc",
	}))
	assert.Equal(t, []string{"Kitchen", "Bedroom", "Bathroom", "Garage"}, names(desc.Items))

	byHeat := requireOK(t, f.svc.AdvancedSearch(f.ctx, reader, contract.AdvancedSearchRequest{
		Group: group, SortBy: "Name",
	}))
	assert.Equal(t, []string{"Bathroom", "Bedroom", "Garage", "Kitchen"}, names(byHeat.Items))
}

func TestAdvancedSearch_OrAndUnknownMode(t *testing.T) {
	f := newFixture(t)

	page := requireOK(t, f.svc.AdvancedSearch(f.ctx, reader, contract.AdvancedSearchRequest{
		Group: contract.PredicateGroup{Mode: "or", Predicates: []contract.Filter{
			{PropertyPath: "Name", Operator: "equals", Value: "garage"},
			{PropertyPath: "Name", Operator: "starts_with", Value: "Bath"},
		}},
	}))
	assert.Equal(t, []string{"Bathroom", "Garage"}, names(page.Items))

	res := f.svc.AdvancedSearch(f.ctx, reader, contract.AdvancedSearchRequest{
		Group: contract.PredicateGroup{Mode: "xor"},
	})
	requireCode(t, res, contract.ErrInvalidArgument)
}

func TestExpressionSearch(t *testing.T) {
	f := newFixture(t)

	page := requireOK(t, f.svc.ExpressionSearch(f.ctx, reader, contract.ExpressionSearchRequest{
		Expression: `Name contains "bath" or SquareFeet < 100`,
	}))
	assert.Equal(t, []string{"Bathroom", "Garage"}, names(page.Items))

	page = requireOK(t, f.svc.ExpressionSearch(f.ctx, reader, contract.ExpressionSearchRequest{
		Expression: `SquareFeet > 100 and not Heated = true`,
	}))
	assert.Equal(t, []string{"Bedroom"}, names(page.Items))

	res := f.svc.ExpressionSearch(f.ctx, reader, contract.ExpressionSearchRequest{Expression: `Name contains`})
	e := requireCode(t, res, contract.ErrInvalidArgument)
	assert.Contains(t, e.Message, "position")
}
