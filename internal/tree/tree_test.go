package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_AddChildSetsDepthAndOrder(t *testing.T) {
	tr, ids := buildSample(t)

	assert.Equal(t, 6, tr.Len())
	assert.Equal(t, []string{"Level1a", "Level1b"}, childNames(t, tr, ids["root"]))
	assert.Equal(t, []string{"Level2a", "Level2b"}, childNames(t, tr, ids["Level1a"]))

	n, err := tr.Get(ids["Level2b"])
	require.NoError(t, err)
	assert.Equal(t, 2, n.Depth())
	assertDepthInvariant(t, tr)
}

func TestTree_AddChildAtIndex(t *testing.T) {
	tr, ids := buildSample(t)

	_, _, err := tr.AddChild(ids["Level1a"], "Room", map[string]any{"Name": "First"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Level2a", "Level2b"}, childNames(t, tr, ids["Level1a"]))
}

func TestTree_AddChildUnknownType(t *testing.T) {
	tr, ids := buildSample(t)

	_, _, err := tr.AddChild(ids["root"], "Garage", nil, -1)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestTree_SetParentRecomputesSubtreeDepth(t *testing.T) {
	tr, ids := buildSample(t)

	var seen []Change
	cancel := tr.Watch(func(c Change) { seen = append(seen, c) })
	defer cancel()

	c, err := tr.SetParent(ids["Level1b"], ids["Level2a"], -1)
	require.NoError(t, err)

	assert.Equal(t, ChangeMoved, c.Kind)
	assert.Equal(t, []string{ids["root"], ids["Level2a"]}, c.Parents)
	assert.True(t, c.DepthChanged)
	require.Len(t, seen, 1)

	moved, _ := tr.Get(ids["Level2c"])
	assert.Equal(t, 4, moved.Depth())
	assert.Equal(t, []string{"Level1a"}, childNames(t, tr, ids["root"]))
	assertDepthInvariant(t, tr)
}

func TestTree_SetParentRejectsCycle(t *testing.T) {
	tr, ids := buildSample(t)

	_, err := tr.SetParent(ids["Level1a"], ids["Level2a"], -1)
	assert.ErrorIs(t, err, ErrCycle)

	_, err = tr.SetParent(ids["Level1a"], ids["Level1a"], -1)
	assert.ErrorIs(t, err, ErrCycle)

	_, err = tr.SetParent(ids["root"], ids["Level1a"], -1)
	assert.ErrorIs(t, err, ErrRootImmutable)

	assert.Equal(t, []string{"Level2a", "Level2b"}, childNames(t, tr, ids["Level1a"]))
}

func TestTree_MoveBeforeAndAfter(t *testing.T) {
	tr, ids := buildSample(t)
	_, _, err := tr.AddChild(ids["Level1a"], "Room", map[string]any{"Name": "Level2x"}, -1)
	require.NoError(t, err)

	x := findByName(t, tr, "Level2x")
	_, err = tr.MoveBefore(x, ids["Level2a"])
	require.NoError(t, err)
	assert.Equal(t, []string{"Level2x", "Level2a", "Level2b"}, childNames(t, tr, ids["Level1a"]))

	_, err = tr.MoveAfter(x, ids["Level2b"])
	require.NoError(t, err)
	assert.Equal(t, []string{"Level2a", "Level2b", "Level2x"}, childNames(t, tr, ids["Level1a"]))

	_, err = tr.MoveAfter(ids["Level2a"], ids["Level2b"])
	require.NoError(t, err)
	assert.Equal(t, []string{"Level2b", "Level2a", "Level2x"}, childNames(t, tr, ids["Level1a"]))

	// Across parents the node is reparented next to the sibling.
	c, err := tr.MoveBefore(ids["Level2c"], ids["Level2a"])
	require.NoError(t, err)
	assert.Equal(t, ChangeMoved, c.Kind)
	assert.Equal(t, []string{"Level2b", "Level2c", "Level2a", "Level2x"}, childNames(t, tr, ids["Level1a"]))
	assert.Empty(t, childNames(t, tr, ids["Level1b"]))

	_, err = tr.MoveBefore(x, x)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assertDepthInvariant(t, tr)
}

func TestTree_MoveNextToOwnChildRejectsCycle(t *testing.T) {
	tr, ids := buildSample(t)

	_, err := tr.MoveBefore(ids["Level1a"], ids["Level2a"])
	assert.ErrorIs(t, err, ErrCycle)

	_, err = tr.MoveAfter(ids["Level1a"], ids["Level2b"])
	assert.ErrorIs(t, err, ErrCycle)

	assert.Equal(t, []string{"Level1a", "Level1b"}, childNames(t, tr, ids["root"]))
	assert.Equal(t, []string{"Level2a", "Level2b"}, childNames(t, tr, ids["Level1a"]))
	assertDepthInvariant(t, tr)
}

func TestTree_SortChildrenIsStable(t *testing.T) {
	tr, ids := buildSample(t)
	for _, name := range []string{"b", "a", "b2", "a2"} {
		sq := 100
		if strings.HasPrefix(name, "a") {
			sq = 50
		}
		_, _, err := tr.AddChild(ids["Level1b"], "Room", map[string]any{"Name": name, "SquareFeet": sq}, -1)
		require.NoError(t, err)
	}

	_, err := tr.SortChildren(ids["Level1b"], func(a, b *Node) int {
		av, _ := a.Property("SquareFeet")
		bv, _ := b.Property("SquareFeet")
		return av.(int) - bv.(int)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Level2c", "a", "a2", "b", "b2"}, childNames(t, tr, ids["Level1b"]))
}

func TestTree_RemoveDropsSubtree(t *testing.T) {
	tr, ids := buildSample(t)

	c, err := tr.Remove(ids["Level1a"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids["Level1a"], ids["Level2a"], ids["Level2b"]}, c.Removed)
	assert.Equal(t, 3, tr.Len())
	assert.False(t, tr.Has(ids["Level2a"]))

	_, err = tr.Remove(ids["root"])
	assert.ErrorIs(t, err, ErrRootImmutable)
}

func TestTree_CommonAncestor(t *testing.T) {
	tr, ids := buildSample(t)

	tests := []struct {
		name  string
		input []string
		want  string
	}{
		{"siblings", []string{"Level2a", "Level2b"}, "Level1a"},
		{"single node", []string{"Level2b"}, "Level2b"},
		{"disjoint branches", []string{"Level2a", "Level2c"}, "root"},
		{"ancestor and descendant", []string{"Level1a", "Level2b"}, "Level1a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]string, len(tt.input))
			for i, name := range tt.input {
				in[i] = ids[name]
			}
			got, err := tr.CommonAncestor(in)
			require.NoError(t, err)
			assert.Equal(t, ids[tt.want], got.ID())
		})
	}

	_, err := tr.CommonAncestor([]string{ids["Level2a"], "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTree_CloneDuplicateNeverSharesPayload(t *testing.T) {
	tr, ids := buildSample(t)
	src, _ := tr.Get(ids["Level2a"])
	src.payload.(*testRoom).Tags = []string{"warm"}

	clone, _, err := tr.Clone(ids["Level1a"], ids["root"], -1, CloneDuplicate)
	require.NoError(t, err)

	assert.NotEqual(t, ids["Level1a"], clone.ID())
	assert.Equal(t, []string{"Level2a", "Level2b"}, childNames(t, tr, clone.ID()))
	assert.NotSame(t, tr.nodes[ids["Level1a"]], clone)

	cloned, _ := tr.Children(clone.ID())
	for i, orig := range []string{ids["Level2a"], ids["Level2b"]} {
		o, _ := tr.Get(orig)
		assert.NotSame(t, o.Payload(), cloned[i].Payload())
		assert.NotEqual(t, o.ID(), cloned[i].ID())
	}
	cloned[0].payload.(*testRoom).Tags[0] = "cold"
	assert.Equal(t, "warm", src.payload.(*testRoom).Tags[0])
	assertDepthInvariant(t, tr)
}

func TestTree_CloneStructureUsesDefaults(t *testing.T) {
	tr, ids := buildSample(t)

	clone, _, err := tr.Clone(ids["Level1a"], ids["Level1b"], 0, CloneStructure)
	require.NoError(t, err)
	v, _ := clone.Property("Name")
	assert.Equal(t, "", v)
	assert.Equal(t, 2, clone.ChildCount())
	assert.Equal(t, 2, clone.Depth())
}

func TestTree_CloneIntoOwnSubtree(t *testing.T) {
	tr, ids := buildSample(t)

	clone, _, err := tr.Clone(ids["Level1a"], ids["Level2a"], -1, CloneDuplicate)
	require.NoError(t, err)
	assert.Equal(t, 2, clone.ChildCount())
	assert.Equal(t, 9, tr.Len())
	assertDepthInvariant(t, tr)
}

func findByName(t *testing.T, tr *Tree, name string) string {
	t.Helper()
	var id string
	require.NoError(t, tr.Walk(tr.RootID(), func(n *Node) bool {
		if v, _ := n.Property("Name"); v == name {
			id = n.ID()
		}
		return true
	}))
	require.NotEmpty(t, id, "node %q", name)
	return id
}
