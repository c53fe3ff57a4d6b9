package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/tree"
)

func (s *Service) AddTags(ctx context.Context, agent contract.AgentContext, req contract.TagsRequest) contract.Result[contract.TagsResponse] {
	return s.editTags(ctx, "AddTags", agent, req, func(current, given []string) []string {
		return append(current, given...)
	})
}

func (s *Service) RemoveTags(ctx context.Context, agent contract.AgentContext, req contract.TagsRequest) contract.Result[contract.TagsResponse] {
	return s.editTags(ctx, "RemoveTags", agent, req, func(current, given []string) []string {
		return slices.DeleteFunc(current, func(t string) bool { return slices.Contains(given, t) })
	})
}

// ReplaceTags sets the node's tags to exactly the given set. An empty set
// clears them.
func (s *Service) ReplaceTags(ctx context.Context, agent contract.AgentContext, req contract.TagsRequest) contract.Result[contract.TagsResponse] {
	return s.editTags(ctx, "ReplaceTags", agent, req, func(_, given []string) []string {
		return given
	})
}

func (s *Service) editTags(ctx context.Context, op string, agent contract.AgentContext, req contract.TagsRequest, edit func(current, given []string) []string) contract.Result[contract.TagsResponse] {
	return run(ctx, s, mutation(op, agent, req.MutationOptions, req.NodeID, req.NodeID), func() (contract.TagsResponse, error) {
		given := normalizeTags(req.Tags)
		if len(given) == 0 && op != "ReplaceTags" {
			return contract.TagsResponse{}, fmt.Errorf("no tags given: %w", ErrInvalidArgument)
		}
		id := s.orRoot(req.NodeID)
		next := normalizeTags(edit(slices.Clone(s.tags[id]), given))
		if len(next) == 0 {
			delete(s.tags, id)
		} else {
			s.tags[id] = next
		}
		return contract.TagsResponse{NodeID: id, Tags: slices.Clone(next)}, nil
	})
}

// ListTags returns a node's tags, or every tag in use when NodeID is empty.
func (s *Service) ListTags(ctx context.Context, agent contract.AgentContext, req contract.ListTagsRequest) contract.Result[contract.TagsResponse] {
	return run(ctx, s, read("ListTags", agent, req.NodeID), func() (contract.TagsResponse, error) {
		if req.NodeID != "" {
			return contract.TagsResponse{NodeID: req.NodeID, Tags: slices.Clone(s.tags[req.NodeID])}, nil
		}
		var all []string
		for _, id := range slices.Sorted(maps.Keys(s.tags)) {
			all = append(all, s.tags[id]...)
		}
		return contract.TagsResponse{Tags: normalizeTags(all)}, nil
	})
}

// FindByTag pages through the nodes carrying Tag in the subtree at RootID,
// the root included, in pre-order.
func (s *Service) FindByTag(ctx context.Context, agent contract.AgentContext, req contract.FindByTagRequest) contract.Result[contract.Page[contract.NodeInfo]] {
	return run(ctx, s, read("FindByTag", agent, req.RootID), func() (contract.Page[contract.NodeInfo], error) {
		tag := strings.TrimSpace(req.Tag)
		if tag == "" {
			return contract.Page[contract.NodeInfo]{}, fmt.Errorf("tag is required: %w", ErrInvalidArgument)
		}
		var matches []*tree.Node
		err := s.tree.Walk(s.orRoot(req.RootID), func(n *tree.Node) bool {
			if _, ok := slices.BinarySearch(s.tags[n.ID()], tag); ok {
				matches = append(matches, n)
			}
			return true
		})
		if err != nil {
			return contract.Page[contract.NodeInfo]{}, err
		}
		return s.page(matches, req.Paging), nil
	})
}

// normalizeTags trims, drops blanks, sorts and deduplicates.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// CreateBookmark names a node. Bookmarks outlive their node and may dangle.
func (s *Service) CreateBookmark(ctx context.Context, agent contract.AgentContext, req contract.CreateBookmarkRequest) contract.Result[contract.Bookmark] {
	return run(ctx, s, mutation("CreateBookmark", agent, req.MutationOptions, "", req.NodeID), func() (contract.Bookmark, error) {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return contract.Bookmark{}, fmt.Errorf("bookmark name is required: %w", ErrInvalidArgument)
		}
		b := contract.Bookmark{
			ID:        s.newID(),
			Name:      name,
			NodeID:    s.orRoot(req.NodeID),
			CreatedBy: agent.AgentID,
			CreatedAt: s.now().UTC(),
			Metadata:  maps.Clone(req.Metadata),
		}
		s.bookmarks = append(s.bookmarks, b)
		return b, nil
	})
}

func (s *Service) DeleteBookmark(ctx context.Context, agent contract.AgentContext, req contract.DeleteBookmarkRequest) contract.Result[contract.Bookmark] {
	return run(ctx, s, mutation("DeleteBookmark", agent, req.MutationOptions, ""), func() (contract.Bookmark, error) {
		i := slices.IndexFunc(s.bookmarks, func(b contract.Bookmark) bool { return b.ID == req.BookmarkID })
		if i < 0 {
			return contract.Bookmark{}, fmt.Errorf("%s: %w", req.BookmarkID, ErrBookmarkNotFound)
		}
		b := s.bookmarks[i]
		s.bookmarks = slices.Delete(s.bookmarks, i, i+1)
		return b, nil
	})
}

// ListBookmarks returns bookmarks in creation order.
func (s *Service) ListBookmarks(ctx context.Context, agent contract.AgentContext, _ contract.ListBookmarksRequest) contract.Result[[]contract.Bookmark] {
	return run(ctx, s, read("ListBookmarks", agent), func() ([]contract.Bookmark, error) {
		out := make([]contract.Bookmark, len(s.bookmarks))
		for i, b := range s.bookmarks {
			b.Metadata = maps.Clone(b.Metadata)
			out[i] = b
		}
		return out, nil
	})
}
