package service

import (
	"context"

	"github.com/alexanderramin/arbor/internal/contract"
)

type NodeReader interface {
	GetNode(ctx context.Context, agent contract.AgentContext, req contract.GetNodeRequest) contract.Result[contract.NodeInfo]
	ListChildren(ctx context.Context, agent contract.AgentContext, req contract.ListChildrenRequest) contract.Result[contract.Page[contract.NodeInfo]]
	GetProjection(ctx context.Context, agent contract.AgentContext, req contract.GetProjectionRequest) contract.Result[contract.Page[contract.ProjectionItem]]
	GetAncestors(ctx context.Context, agent contract.AgentContext, req contract.GetAncestorsRequest) contract.Result[[]contract.NodeInfo]
	GetCommonAncestor(ctx context.Context, agent contract.AgentContext, req contract.GetCommonAncestorRequest) contract.Result[contract.NodeInfo]
	GetVersion(ctx context.Context, agent contract.AgentContext, req contract.GetVersionRequest) contract.Result[int64]
}

type Searcher interface {
	Search(ctx context.Context, agent contract.AgentContext, req contract.SearchRequest) contract.Result[contract.Page[contract.NodeInfo]]
	AdvancedSearch(ctx context.Context, agent contract.AgentContext, req contract.AdvancedSearchRequest) contract.Result[contract.Page[contract.NodeInfo]]
	ExpressionSearch(ctx context.Context, agent contract.AgentContext, req contract.ExpressionSearchRequest) contract.Result[contract.Page[contract.NodeInfo]]
	FindByTag(ctx context.Context, agent contract.AgentContext, req contract.FindByTagRequest) contract.Result[contract.Page[contract.NodeInfo]]
}

type NodeWriter interface {
	AddChild(ctx context.Context, agent contract.AgentContext, req contract.AddChildRequest) contract.Result[contract.NodeInfo]
	RemoveNode(ctx context.Context, agent contract.AgentContext, req contract.RemoveNodeRequest) contract.Result[contract.RemoveResult]
	MoveNode(ctx context.Context, agent contract.AgentContext, req contract.MoveNodeRequest) contract.Result[contract.NodeInfo]
	MoveBefore(ctx context.Context, agent contract.AgentContext, req contract.MoveRelativeRequest) contract.Result[contract.NodeInfo]
	MoveAfter(ctx context.Context, agent contract.AgentContext, req contract.MoveRelativeRequest) contract.Result[contract.NodeInfo]
	SortChildren(ctx context.Context, agent contract.AgentContext, req contract.SortChildrenRequest) contract.Result[contract.SortResult]
	CloneNode(ctx context.Context, agent contract.AgentContext, req contract.CloneNodeRequest) contract.Result[contract.NodeInfo]
	CopySubtree(ctx context.Context, agent contract.AgentContext, req contract.CopySubtreeRequest) contract.Result[contract.NodeInfo]
	UpdatePayload(ctx context.Context, agent contract.AgentContext, req contract.UpdatePayloadRequest) contract.Result[contract.NodeInfo]
	UpdatePayloadProperty(ctx context.Context, agent contract.AgentContext, req contract.UpdatePayloadPropertyRequest) contract.Result[contract.NodeInfo]
}

type ViewController interface {
	ExpandNode(ctx context.Context, agent contract.AgentContext, req contract.ExpansionRequest) contract.Result[contract.ExpansionResult]
	CollapseNode(ctx context.Context, agent contract.AgentContext, req contract.ExpansionRequest) contract.Result[contract.ExpansionResult]
	SetExpansionRecursive(ctx context.Context, agent contract.AgentContext, req contract.SetExpansionRecursiveRequest) contract.Result[contract.ExpansionResult]
	SetPropertyFilters(ctx context.Context, agent contract.AgentContext, req contract.SetPropertyFiltersRequest) contract.Result[contract.FilterResult]
}

type Annotator interface {
	AddTags(ctx context.Context, agent contract.AgentContext, req contract.TagsRequest) contract.Result[contract.TagsResponse]
	RemoveTags(ctx context.Context, agent contract.AgentContext, req contract.TagsRequest) contract.Result[contract.TagsResponse]
	ReplaceTags(ctx context.Context, agent contract.AgentContext, req contract.TagsRequest) contract.Result[contract.TagsResponse]
	ListTags(ctx context.Context, agent contract.AgentContext, req contract.ListTagsRequest) contract.Result[contract.TagsResponse]
	CreateBookmark(ctx context.Context, agent contract.AgentContext, req contract.CreateBookmarkRequest) contract.Result[contract.Bookmark]
	DeleteBookmark(ctx context.Context, agent contract.AgentContext, req contract.DeleteBookmarkRequest) contract.Result[contract.Bookmark]
	ListBookmarks(ctx context.Context, agent contract.AgentContext, req contract.ListBookmarksRequest) contract.Result[[]contract.Bookmark]
}

type Archiver interface {
	ValidateTree(ctx context.Context, agent contract.AgentContext, req contract.ValidateTreeRequest) contract.Result[contract.ValidationReport]
	ValidateNode(ctx context.Context, agent contract.AgentContext, req contract.ValidateNodeRequest) contract.Result[contract.ValidationReport]
	DiffTrees(ctx context.Context, agent contract.AgentContext, req contract.DiffTreesRequest) contract.Result[contract.DiffResult]
	ExportTree(ctx context.Context, agent contract.AgentContext, req contract.ExportTreeRequest) contract.Result[contract.ExportResult]
	ImportTree(ctx context.Context, agent contract.AgentContext, req contract.ImportTreeRequest) contract.Result[contract.ImportResult]
	CreateSnapshot(ctx context.Context, agent contract.AgentContext, req contract.CreateSnapshotRequest) contract.Result[contract.SnapshotInfo]
	RestoreSnapshot(ctx context.Context, agent contract.AgentContext, req contract.RestoreSnapshotRequest) contract.Result[contract.SnapshotInfo]
	DeleteSnapshot(ctx context.Context, agent contract.AgentContext, req contract.DeleteSnapshotRequest) contract.Result[contract.SnapshotInfo]
	ListSnapshots(ctx context.Context, agent contract.AgentContext, req contract.ListSnapshotsRequest) contract.Result[[]contract.SnapshotInfo]
}

// TreeService is the full agent-facing surface.
type TreeService interface {
	NodeReader
	Searcher
	NodeWriter
	ViewController
	Annotator
	Archiver
}

var _ TreeService = (*Service)(nil)
