package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/tree"
	"github.com/stretchr/testify/require"
)

// Room is a wrapped test payload.
type Room struct {
	Name       string
	SquareFeet int
	Heated     bool
	Serial     string
}

func (r *Room) ClonePayload() any {
	c := *r
	return &c
}

// Folder is a self-payload test type.
type Folder struct {
	Name string
	Open bool
}

const (
	TypeRoom   = "Room"
	TypeFolder = "Folder"
)

// HouseRegistry registers Room and Folder.
func HouseRegistry() *tree.Registry {
	return tree.NewRegistry().MustRegister(
		tree.TypeSpec{
			Name: TypeRoom,
			New:  func() any { return &Room{} },
			Properties: []tree.PropertySpec{
				tree.StringProperty("Name", func(r *Room) string { return r.Name }, func(r *Room, v string) { r.Name = v }).AsRequired(),
				tree.IntProperty("SquareFeet", func(r *Room) int { return r.SquareFeet }, func(r *Room, v int) { r.SquareFeet = v }),
				tree.BoolProperty("Heated", func(r *Room) bool { return r.Heated }, func(r *Room, v bool) { r.Heated = v }),
				tree.StringProperty("Serial", func(r *Room) string { return r.Serial }, func(r *Room, v string) { r.Serial = v }).AsImmutable(),
			},
		},
		tree.TypeSpec{
			Name:        TypeFolder,
			SelfPayload: true,
			New:         func() any { return &Folder{} },
			Properties: []tree.PropertySpec{
				tree.StringProperty("Name", func(f *Folder) string { return f.Name }, func(f *Folder, v string) { f.Name = v }),
				tree.BoolProperty("Open", func(f *Folder) bool { return f.Open }, func(f *Folder, v bool) { f.Open = v }),
			},
		},
	)
}

// SequentialIDs returns a generator producing <prefix>1, <prefix>2, ...
func SequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s%d", prefix, n.Add(1))
	}
}

// House is a small tree with its nodes indexed by name.
type House struct {
	Tree *tree.Tree
	IDs  map[string]string
}

// ID returns the NodeID of the named node and fails the test if absent.
func (h *House) ID(t *testing.T, name string) string {
	t.Helper()
	id, ok := h.IDs[name]
	require.True(t, ok, "no node named %q", name)
	return id
}

// Add inserts a node under the named parent and indexes it by its Name.
func (h *House) Add(t *testing.T, parent, typeName string, props map[string]any) string {
	t.Helper()
	n, _, err := h.Tree.AddChild(h.ID(t, parent), typeName, props, -1)
	require.NoError(t, err)
	if name, ok := props["Name"].(string); ok && name != "" {
		h.IDs[name] = n.ID()
	}
	return n.ID()
}

// HouseOption customizes NewHouse.
type HouseOption func(*houseConfig)

type houseConfig struct {
	newID func() string
	empty bool
}

// Empty builds only the root folder.
func Empty() HouseOption {
	return func(c *houseConfig) { c.empty = true }
}

// NewHouse builds:
//
//	House (Folder)
//	├─ Level1a (Folder)
//	│  ├─ Kitchen (Room 200)
//	│  ├─ Bedroom (Room 150)
//	│  └─ Bathroom (Room 120)
//	└─ Level1b (Folder)
//	   └─ Garage (Room 80)
func NewHouse(t *testing.T, opts ...HouseOption) *House {
	t.Helper()
	cfg := houseConfig{newID: SequentialIDs("n")}
	for _, opt := range opts {
		opt(&cfg)
	}
	tr, err := tree.New(HouseRegistry(), TypeFolder, map[string]any{"Name": "House"}, tree.WithIDGenerator(cfg.newID))
	require.NoError(t, err)

	h := &House{Tree: tr, IDs: map[string]string{"House": tr.RootID()}}
	if cfg.empty {
		return h
	}
	h.Add(t, "House", TypeFolder, map[string]any{"Name": "Level1a"})
	h.Add(t, "Level1a", TypeRoom, map[string]any{"Name": "Kitchen", "SquareFeet": 200, "Heated": true, "Serial": "K-1"})
	h.Add(t, "Level1a", TypeRoom, map[string]any{"Name": "Bedroom", "SquareFeet": 150, "Serial": "B-1"})
	h.Add(t, "Level1a", TypeRoom, map[string]any{"Name": "Bathroom", "SquareFeet": 120, "Heated": true, "Serial": "B-2"})
	h.Add(t, "House", TypeFolder, map[string]any{"Name": "Level1b"})
	h.Add(t, "Level1b", TypeRoom, map[string]any{"Name": "Garage", "SquareFeet": 80, "Serial": "G-1"})
	return h
}

// Agent helpers.

func Editor(id string) contract.AgentContext {
	return contract.NewAgentContext(id, contract.RoleEditor)
}

func Reader(id string) contract.AgentContext {
	return contract.NewAgentContext(id, contract.RoleReader)
}

func Admin(id string) contract.AgentContext {
	return contract.NewAgentContext(id, contract.RoleAdmin)
}

// ReadOnly returns an editor whose context forbids mutation.
func ReadOnly(id string) contract.AgentContext {
	a := Editor(id)
	a.ReadOnly = true
	return a
}

// Clock is a manually advanced clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
