package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/alexanderramin/arbor/internal/codec"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/tree"
)

const (
	importAppend  = "append"
	importReplace = "replace"
)

// ExportTree serializes the subtree at NodeID.
func (s *Service) ExportTree(ctx context.Context, agent contract.AgentContext, req contract.ExportTreeRequest) contract.Result[contract.ExportResult] {
	return run(ctx, s, read("ExportTree", agent, req.NodeID), func() (contract.ExportResult, error) {
		format, err := codec.ParseFormat(req.Format)
		if err != nil {
			return contract.ExportResult{}, err
		}
		doc, err := s.document(s.orRoot(req.NodeID), req.IncludeViewState, req.IncludeTags)
		if err != nil {
			return contract.ExportResult{}, err
		}
		data, err := codec.Encode(s.registry, doc, codec.Options{Format: format, Compressed: req.Compress})
		if err != nil {
			return contract.ExportResult{}, err
		}
		return contract.ExportResult{
			Format:     string(format),
			Compressed: req.Compress,
			Data:       string(data),
			NodeCount:  doc.Root.Count(),
		}, nil
	})
}

// ImportTree decodes a document and either appends it under TargetID with
// fresh IDs or replaces TargetID in place. Replace requires the document
// root to carry TargetID and leaves immutable properties unchanged.
func (s *Service) ImportTree(ctx context.Context, agent contract.AgentContext, req contract.ImportTreeRequest) contract.Result[contract.ImportResult] {
	return run(ctx, s, mutation("ImportTree", agent, req.MutationOptions, req.TargetID, req.TargetID), func() (contract.ImportResult, error) {
		mode := strings.ToLower(strings.TrimSpace(req.Mode))
		if mode == "" {
			mode = importAppend
		}
		if mode != importAppend && mode != importReplace {
			return contract.ImportResult{}, fmt.Errorf("import mode %q: %w", req.Mode, ErrInvalidArgument)
		}
		var format codec.Format
		if strings.TrimSpace(req.Format) != "" {
			f, err := codec.ParseFormat(req.Format)
			if err != nil {
				return contract.ImportResult{}, err
			}
			format = f
		}
		doc, err := codec.Decode([]byte(req.Data), codec.Options{Format: format, Compressed: req.Compressed})
		if err != nil {
			return contract.ImportResult{}, err
		}
		rootID, err := s.apply(s.orRoot(req.TargetID), doc, mode, req.RestoreViewState, req.RestoreTags)
		if err != nil {
			return contract.ImportResult{}, err
		}
		return contract.ImportResult{RootID: rootID, Mode: mode, NodeCount: doc.Root.Count()}, nil
	})
}

// document captures the subtree at id with the requested side state.
func (s *Service) document(id string, withView, withTags bool) (codec.Document, error) {
	bp, err := s.tree.Blueprint(id)
	if err != nil {
		return codec.Document{}, err
	}
	doc := codec.Document{Root: bp}
	ids := blueprintIDs(bp)
	if withTags {
		for _, nid := range ids {
			if tags := s.tags[nid]; len(tags) > 0 {
				if doc.Tags == nil {
					doc.Tags = make(map[string][]string)
				}
				doc.Tags[nid] = slices.Clone(tags)
			}
		}
	}
	if withView {
		state := s.view.ExpansionState()
		vs := &codec.ViewState{
			DefaultExpanded: s.view.DefaultExpanded(),
			Included:        slices.Clone(s.view.Filter().Included),
			Excluded:        slices.Clone(s.view.Filter().Excluded),
		}
		for _, nid := range ids {
			if e, ok := state[nid]; ok {
				if vs.Expanded == nil {
					vs.Expanded = make(map[string]bool)
				}
				vs.Expanded[nid] = e
			}
		}
		doc.View = vs
	}
	return doc, nil
}

// apply grafts or replaces doc at targetID and restores the requested side
// state, translating document IDs to the IDs the nodes received.
func (s *Service) apply(targetID string, doc codec.Document, mode string, withView, withTags bool) (string, error) {
	var root *tree.Node
	switch mode {
	case importReplace:
		previous := append(blueprintIDs(blueprintOrNil(s.tree, targetID)), blueprintIDs(doc.Root)...)
		if _, err := s.tree.Replace(targetID, doc.Root); err != nil {
			return "", err
		}
		if withTags {
			for _, id := range previous {
				delete(s.tags, id)
			}
		}
		root, _ = s.tree.Get(targetID)
	default:
		n, _, err := s.tree.Graft(targetID, doc.Root, -1, true)
		if err != nil {
			return "", err
		}
		root = n
	}

	ids := make(map[string]string)
	s.mapIDs(doc.Root, root, ids)
	if withTags {
		for docID, tags := range doc.Tags {
			if id, ok := ids[docID]; ok {
				if t := normalizeTags(tags); len(t) > 0 {
					s.tags[id] = t
				}
			}
		}
	}
	if withView && doc.View != nil {
		if mode == importReplace && targetID == s.tree.RootID() {
			s.view.RestoreExpansion(doc.View.DefaultExpanded, doc.View.Expanded)
			s.view.SetPropertyFilters(doc.View.Included, doc.View.Excluded)
		} else {
			for docID, e := range doc.View.Expanded {
				if id, ok := ids[docID]; ok {
					if err := s.view.SetExpanded(id, e); err != nil {
						return "", err
					}
				}
			}
		}
	}
	return root.ID(), nil
}

// mapIDs pairs blueprint IDs with the IDs of the nodes built from them. The
// built subtree has the blueprint's shape and child order.
func (s *Service) mapIDs(bp *tree.Blueprint, n *tree.Node, out map[string]string) {
	if bp.ID != "" {
		out[bp.ID] = n.ID()
	}
	children := n.ChildIDs()
	for i, cbp := range bp.Children {
		if i >= len(children) {
			return
		}
		if c, err := s.tree.Get(children[i]); err == nil {
			s.mapIDs(cbp, c, out)
		}
	}
}

func blueprintIDs(bp *tree.Blueprint) []string {
	if bp == nil {
		return nil
	}
	ids := []string{bp.ID}
	for _, c := range bp.Children {
		ids = append(ids, blueprintIDs(c)...)
	}
	return ids
}

func blueprintOrNil(t *tree.Tree, id string) *tree.Blueprint {
	bp, err := t.Blueprint(id)
	if err != nil {
		return nil
	}
	return bp
}
