package query

import (
	"errors"
	"testing"

	"github.com/alexanderramin/arbor/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type room struct {
	Name       string
	SquareFeet int
	Heated     bool
}

type house struct{ Name string }

// setupHouse builds House → Kitchen:200, Bedroom:150, Bathroom:120, Closet:20.
func setupHouse(t *testing.T) *tree.Tree {
	t.Helper()
	reg := tree.NewRegistry()
	require.NoError(t, reg.Register(tree.TypeSpec{
		Name: "Room",
		New:  func() any { return &room{} },
		Properties: []tree.PropertySpec{
			tree.StringProperty("Name", func(r *room) string { return r.Name }, func(r *room, v string) { r.Name = v }),
			tree.IntProperty("SquareFeet", func(r *room) int { return r.SquareFeet }, func(r *room, v int) { r.SquareFeet = v }),
			tree.BoolProperty("Heated", func(r *room) bool { return r.Heated }, func(r *room, v bool) { r.Heated = v }),
		},
	}))
	require.NoError(t, reg.Register(tree.TypeSpec{
		Name:        "House",
		SelfPayload: true,
		New:         func() any { return &house{} },
		Properties: []tree.PropertySpec{
			tree.StringProperty("Name", func(h *house) string { return h.Name }, func(h *house, v string) { h.Name = v }),
		},
	}))
	tr, err := tree.New(reg, "House", map[string]any{"Name": "Home"})
	require.NoError(t, err)
	for _, r := range []struct {
		name   string
		sq     int
		heated bool
	}{{"Kitchen", 200, true}, {"Bedroom", 150, true}, {"Bathroom", 120, false}, {"Closet", 20, false}} {
		_, _, err := tr.AddChild(tr.RootID(), "Room", map[string]any{"Name": r.name, "SquareFeet": r.sq, "Heated": r.heated}, -1)
		require.NoError(t, err)
	}
	return tr
}

func matchNames(t *testing.T, tr *tree.Tree, match func(*tree.Node) bool) []string {
	t.Helper()
	nodes, err := Collect(tr, tr.RootID(), match)
	require.NoError(t, err)
	return nodeNames(nodes)
}

func nodeNames(nodes []*tree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		v, _ := n.Property("Name")
		out[i] = v.(string)
	}
	return out
}

func TestCompare(t *testing.T) {
	tests := []struct {
		actual  any
		op      Operator
		operand any
		want    bool
	}{
		{"Kitchen", OpContains, "kit", true},
		{"Kitchen", OpNotContains, "bed", true},
		{"Kitchen", OpStartsWith, "KIT", true},
		{"Kitchen", OpEndsWith, "chen", true},
		{"Kitchen", OpEquals, "kitchen", true},
		{150, OpEquals, "150", true},
		{150, OpEquals, 150.0, true},
		{150, OpGreater, 100.0, true},
		{150, OpLessEq, "150", true},
		{150, OpLess, 100, false},
		{"9", OpGreater, "10", false},
		{"b", OpGreater, "a", true},
		{true, OpEquals, "TRUE", true},
		{true, OpNotEquals, false, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(tt.actual, tt.op, tt.operand), "%v %s %v", tt.actual, tt.op, tt.operand)
	}
}

func TestParseOperator_Aliases(t *testing.T) {
	for in, want := range map[string]Operator{"==": OpEquals, "EQ": OpEquals, ">=": OpGreaterEq, "!=": OpNotEquals, "ends_with": OpEndsWith} {
		got, err := ParseOperator(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseOperator("~=")
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestFilter_MissingPathOnlySatisfiesNegation(t *testing.T) {
	tr := setupHouse(t)

	assert.Empty(t, matchNames(t, tr, Filter{Path: "Color", Op: OpEquals, Value: "red"}.Match))
	assert.Len(t, matchNames(t, tr, Filter{Path: "Color", Op: OpNotEquals, Value: "red"}.Match), 4)
}

func TestSimpleSearch_AndOfFilters(t *testing.T) {
	tr := setupHouse(t)
	filters := []Filter{
		{Path: "SquareFeet", Op: OpGreater, Value: 100},
		{Path: "Heated", Op: OpEquals, Value: true},
	}
	got := matchNames(t, tr, func(n *tree.Node) bool { return MatchAll(filters, n) })
	assert.Equal(t, []string{"Kitchen", "Bedroom"}, got)
}

func TestPredicateGroup_ButNotIf(t *testing.T) {
	tr := setupHouse(t)
	g := PredicateGroup{
		Mode: "but-not-if",
		Predicates: []Filter{
			{Path: "SquareFeet", Op: ">", Value: 100},
			{Path: "Name", Op: "contains", Value: "Kitchen"},
		},
	}
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"Bedroom", "Bathroom"}, matchNames(t, tr, g.Match))
}

func TestPredicateGroup_Modes(t *testing.T) {
	tr := setupHouse(t)
	preds := []Filter{
		{Path: "SquareFeet", Op: OpLess, Value: 50},
		{Path: "Name", Op: OpStartsWith, Value: "bath"},
	}

	or := PredicateGroup{Mode: ModeOr, Predicates: preds}
	assert.Equal(t, []string{"Bathroom", "Closet"}, matchNames(t, tr, or.Match))

	and := PredicateGroup{Mode: ModeAnd, Predicates: preds}
	assert.Empty(t, matchNames(t, tr, and.Match))

	single := PredicateGroup{Mode: ModeButNotIf, Predicates: preds[:1]}
	assert.Equal(t, []string{"Closet"}, matchNames(t, tr, single.Match))

	bad := PredicateGroup{Mode: "xor", Predicates: preds}
	assert.ErrorIs(t, bad.Validate(), ErrUnknownMode)
	empty := PredicateGroup{Mode: ModeAnd}
	assert.ErrorIs(t, empty.Validate(), ErrSyntax)
}

func TestSortNodes_StableWithMissingLast(t *testing.T) {
	tr := setupHouse(t)
	nodes, err := Collect(tr, tr.RootID(), func(*tree.Node) bool { return true })
	require.NoError(t, err)

	SortNodes(nodes, "SquareFeet", false)
	assert.Equal(t, []string{"Closet", "Bathroom", "Bedroom", "Kitchen"}, nodeNames(nodes))

	SortNodes(nodes, "Heated", IsDescending("DESC"))
	assert.Equal(t, []string{"Bedroom", "Kitchen", "Closet", "Bathroom"}, nodeNames(nodes))

	SortNodes(nodes, "Color", false)
	assert.Equal(t, []string{"Bedroom", "Kitchen", "Closet", "Bathroom"}, nodeNames(nodes))
}

func TestCollect_ExcludesSearchRoot(t *testing.T) {
	tr := setupHouse(t)
	got := matchNames(t, tr, Filter{Path: "Name", Op: OpContains, Value: "o"}.Match)
	assert.Equal(t, []string{"Bedroom", "Bathroom", "Closet"}, got, "Home is the search root")
}

func TestParseExpr(t *testing.T) {
	tr := setupHouse(t)

	tests := []struct {
		expr string
		want []string
	}{
		{`SquareFeet > 100`, []string{"Kitchen", "Bedroom", "Bathroom"}},
		{`Name contains "room"`, []string{"Bedroom", "Bathroom"}},
		{`Name == kitchen`, []string{"Kitchen"}},
		{`SquareFeet>=150 and Heated == true`, []string{"Kitchen", "Bedroom"}},
		{`Name starts_with 'b' or SquareFeet < 50`, []string{"Bedroom", "Bathroom", "Closet"}},
		{`not (SquareFeet > 100) or Name ends_with "chen"`, []string{"Kitchen", "Closet"}},
		{`Payload.SquareFeet lte 120 and not Heated == true`, []string{"Bathroom", "Closet"}},
		{`Depth == 1 and PayloadType eq Room and SquareFeet > -1`, []string{"Kitchen", "Bedroom", "Bathroom", "Closet"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := ParseExpr(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, matchNames(t, tr, e.Match))
		})
	}
}

func TestParseExpr_ErrorsCarryPosition(t *testing.T) {
	tests := []struct {
		expr string
		pos  int
	}{
		{``, 0},
		{`Name`, 4},
		{`Name ~ x`, 5},
		{`Name == "open`, 8},
		{`(Name == a`, 10},
		{`Name == a b`, 10},
		{`Name contains`, 13},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseExpr(tt.expr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.pos, se.Pos)
		})
	}
}

func TestPaginate(t *testing.T) {
	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	var sizes []int
	token := ""
	for {
		page, next := Paginate(items, token, 3)
		sizes = append(sizes, len(page))
		if next == nil {
			break
		}
		token = *next
	}
	assert.Equal(t, []int{3, 3, 3, 1}, sizes)

	page, next := Paginate(items, "%%not-a-token", 3)
	assert.Equal(t, []int{0, 1, 2}, page)
	require.NotNil(t, next)

	page, next = Paginate(items, EncodeToken(99), 3)
	assert.Empty(t, page)
	assert.Nil(t, next)

	page, next = Paginate([]int{}, "", 3)
	assert.Empty(t, page)
	assert.Nil(t, next)
}

func TestPageSize(t *testing.T) {
	assert.Equal(t, 50, PageSize(0, 50, 500))
	assert.Equal(t, 500, PageSize(1000, 50, 500))
	assert.Equal(t, 7, PageSize(7, 50, 500))
}
