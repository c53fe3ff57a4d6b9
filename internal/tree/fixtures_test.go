package tree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type testRoom struct {
	Name       string
	SquareFeet int
	Serial     string
	Tags       []string
}

func (r *testRoom) ClonePayload() any {
	c := *r
	c.Tags = append([]string(nil), r.Tags...)
	return &c
}

type testFolder struct {
	Name string
	Open bool
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(TypeSpec{
		Name: "Room",
		New:  func() any { return &testRoom{} },
		Properties: []PropertySpec{
			StringProperty("Name", func(r *testRoom) string { return r.Name }, func(r *testRoom, v string) { r.Name = v }).AsRequired(),
			IntProperty("SquareFeet", func(r *testRoom) int { return r.SquareFeet }, func(r *testRoom, v int) { r.SquareFeet = v }),
			StringProperty("Serial", func(r *testRoom) string { return r.Serial }, func(r *testRoom, v string) { r.Serial = v }).AsImmutable(),
		},
	}))
	require.NoError(t, reg.Register(TypeSpec{
		Name:        "Folder",
		SelfPayload: true,
		New:         func() any { return &testFolder{} },
		Properties: []PropertySpec{
			StringProperty("Name", func(f *testFolder) string { return f.Name }, func(f *testFolder, v string) { f.Name = v }),
			BoolProperty("Open", func(f *testFolder) bool { return f.Open }, func(f *testFolder, v bool) { f.Open = v }),
		},
	}))
	return reg
}

// sequentialIDs returns a generator producing n1, n2, ...
func sequentialIDs() func() string {
	i := 0
	return func() string {
		i++
		return fmt.Sprintf("n%d", i)
	}
}

// buildSample creates:
//
//	root (Folder)
//	├─ Level1a (Folder)
//	│  ├─ Level2a (Room)
//	│  └─ Level2b (Room)
//	└─ Level1b (Folder)
//	   └─ Level2c (Room)
func buildSample(t *testing.T) (*Tree, map[string]string) {
	t.Helper()
	tr, err := New(testRegistry(t), "Folder", map[string]any{"Name": "root"}, WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)

	ids := map[string]string{"root": tr.RootID()}
	add := func(parent, typ, name string) {
		n, _, err := tr.AddChild(ids[parent], typ, map[string]any{"Name": name}, -1)
		require.NoError(t, err)
		ids[name] = n.ID()
	}
	add("root", "Folder", "Level1a")
	add("Level1a", "Room", "Level2a")
	add("Level1a", "Room", "Level2b")
	add("root", "Folder", "Level1b")
	add("Level1b", "Room", "Level2c")
	return tr, ids
}

func childNames(t *testing.T, tr *Tree, id string) []string {
	t.Helper()
	children, err := tr.Children(id)
	require.NoError(t, err)
	names := make([]string, len(children))
	for i, c := range children {
		v, _ := c.Property("Name")
		names[i] = v.(string)
	}
	return names
}

func assertDepthInvariant(t *testing.T, tr *Tree) {
	t.Helper()
	require.NoError(t, tr.Walk(tr.RootID(), func(n *Node) bool {
		if n.IsRoot() {
			require.Equal(t, 0, n.Depth())
			return true
		}
		p, err := tr.Parent(n.ID())
		require.NoError(t, err)
		require.Equal(t, p.Depth()+1, n.Depth(), "depth of %s", n.ID())
		return true
	}))
}
