package service

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/alexanderramin/arbor/internal/codec"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/tree"
)

// State is the durable form of a service: the whole tree with view state
// and tags, plus bookmarks, snapshots and version counters.
type State struct {
	Tree      json.RawMessage     `json:"tree"`
	Bookmarks []contract.Bookmark `json:"bookmarks,omitempty"`
	Snapshots []SnapshotState     `json:"snapshots,omitempty"`
	Versions  map[string]int64    `json:"versions,omitempty"`
}

type SnapshotState struct {
	Info contract.SnapshotInfo `json:"info"`
	Data json.RawMessage       `json:"data"`
}

// MarshalState serializes the whole service state. It bypasses the guard
// pipeline and is meant for the embedding host.
func (s *Service) MarshalState() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.document(s.tree.RootID(), true, true)
	if err != nil {
		return nil, err
	}
	treeJSON, err := codec.Encode(s.registry, doc, codec.Options{Format: codec.FormatJSON, Compact: true})
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	st := State{
		Tree:      treeJSON,
		Bookmarks: s.bookmarks,
		Versions:  s.versions.Snapshot(),
	}
	for _, snap := range s.snapshots {
		st.Snapshots = append(st.Snapshots, SnapshotState{Info: snap.info, Data: snap.data})
	}
	out, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return out, nil
}

// Load rebuilds a service from MarshalState output.
func Load(reg *tree.Registry, data []byte, cfg Config, opts ...Option) (*Service, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	doc, err := codec.Decode(st.Tree, codec.Options{Format: codec.FormatJSON})
	if err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}

	s := newService(reg, cfg, opts)
	t, err := tree.FromBlueprint(reg, doc.Root, tree.WithIDGenerator(s.newID))
	if err != nil {
		return nil, fmt.Errorf("rebuild tree: %w", err)
	}
	if err := s.attach(t, cfg.DefaultExpanded); err != nil {
		return nil, err
	}
	if doc.View != nil {
		s.view.RestoreExpansion(doc.View.DefaultExpanded, doc.View.Expanded)
		s.view.SetPropertyFilters(doc.View.Included, doc.View.Excluded)
	}
	for id, tags := range doc.Tags {
		if t.Has(id) {
			if norm := normalizeTags(tags); len(norm) > 0 {
				s.tags[id] = norm
			}
		}
	}
	s.bookmarks = st.Bookmarks
	for _, snap := range st.Snapshots {
		s.snapshots = append(s.snapshots, &snapshot{info: snap.Info, data: snap.Data})
	}
	s.versions.Restore(maps.Clone(st.Versions))
	return s, nil
}
