package contract

type GetNodeRequest struct {
	NodeID string
}

type ListChildrenRequest struct {
	NodeID string
	Paging
}

type GetProjectionRequest struct {
	Paging
}

type GetAncestorsRequest struct {
	NodeID string
}

type GetCommonAncestorRequest struct {
	NodeIDs []string
}

type Filter struct {
	PropertyPath string
	Operator     string
	Value        any
}

type SearchRequest struct {
	RootID  string // empty searches from the tree root
	Filters []Filter
	Paging
}

type PredicateGroup struct {
	Mode       string // "and", "or" or "but-not-if"
	Predicates []Filter
}

type AdvancedSearchRequest struct {
	RootID        string
	Group         PredicateGroup
	SortBy        string
	SortDirection string // "asc" or "desc"
	Paging
}

type ExpressionSearchRequest struct {
	RootID     string
	Expression string
	Paging
}

type ListTagsRequest struct {
	NodeID string // empty lists every tag in use
}

type FindByTagRequest struct {
	Tag    string
	RootID string
	Paging
}

type ListBookmarksRequest struct{}

type ListSnapshotsRequest struct{}

type ValidateTreeRequest struct {
	RootID             string
	RequiredProperties []string
}

type ValidateNodeRequest struct {
	NodeID             string
	RequiredProperties []string
}

type DiffTreesRequest struct {
	LeftID           string
	RightID          string
	CompareStructure bool
	ComparePayload   bool
	CompareMetadata  bool
	CompareNodeIDs   bool
}

func NewDiffTreesRequest(leftID, rightID string) DiffTreesRequest {
	return DiffTreesRequest{
		LeftID:           leftID,
		RightID:          rightID,
		CompareStructure: true,
		ComparePayload:   true,
		CompareMetadata:  true,
	}
}

type ExportTreeRequest struct {
	NodeID           string // empty exports from the tree root
	Format           string // "json", "xml" or "csv"
	Compress         bool
	IncludeViewState bool
	IncludeTags      bool
}

func NewExportTreeRequest() ExportTreeRequest {
	return ExportTreeRequest{
		Format:           "json",
		IncludeViewState: true,
		IncludeTags:      true,
	}
}

type GetVersionRequest struct {
	Scope string // empty means the tree root
}

type AddChildRequest struct {
	MutationOptions
	ParentID    string
	PayloadType string
	Properties  map[string]any
	Index       *int // nil appends
}

type RemoveNodeRequest struct {
	MutationOptions
	NodeID string
}

type MoveNodeRequest struct {
	MutationOptions
	NodeID      string
	NewParentID string
	Index       *int
}

type MoveRelativeRequest struct {
	MutationOptions
	NodeID    string
	SiblingID string
}

type SortChildrenRequest struct {
	MutationOptions
	ParentID  string
	SortBy    string
	Direction string
}

type CloneNodeRequest struct {
	MutationOptions
	NodeID string
	Mode   string // "duplicate" or "structure"
}

type CopySubtreeRequest struct {
	MutationOptions
	SourceID            string
	DestinationParentID string
	Mode                string
	Index               *int
}

type UpdatePayloadRequest struct {
	MutationOptions
	NodeID     string
	Properties map[string]any
}

type UpdatePayloadPropertyRequest struct {
	MutationOptions
	NodeID       string
	PropertyName string
	Value        any
}

type ExpansionRequest struct {
	MutationOptions
	NodeID string
}

type SetExpansionRecursiveRequest struct {
	MutationOptions
	NodeID      string
	Expanded    bool
	MaxDepth    int // <= 0 means unlimited
	IncludeRoot bool
}

type SetPropertyFiltersRequest struct {
	MutationOptions
	Included []string
	Excluded []string
}

type TagsRequest struct {
	MutationOptions
	NodeID string
	Tags   []string
}

type CreateBookmarkRequest struct {
	MutationOptions
	Name     string
	NodeID   string
	Metadata map[string]string
}

type DeleteBookmarkRequest struct {
	MutationOptions
	BookmarkID string
}

type CreateSnapshotRequest struct {
	MutationOptions
	Name   string
	NodeID string // empty captures the whole tree
}

type RestoreSnapshotRequest struct {
	MutationOptions
	SnapshotID string
}

type DeleteSnapshotRequest struct {
	MutationOptions
	SnapshotID string
}

type ImportTreeRequest struct {
	MutationOptions
	TargetID         string // empty targets the tree root
	Data             string
	Format           string // empty detects
	Compressed       bool
	Mode             string // "append" or "replace"
	RestoreViewState bool
	RestoreTags      bool
}

func NewImportTreeRequest(data string) ImportTreeRequest {
	return ImportTreeRequest{
		Data:             data,
		Mode:             "append",
		RestoreViewState: true,
		RestoreTags:      true,
	}
}
