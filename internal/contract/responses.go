package contract

import "time"

// NodeInfo is a read-only view of one node. Properties are filtered by the
// view's property filter.
type NodeInfo struct {
	NodeID      string
	PayloadType string
	ParentID    string
	Depth       int
	ChildCount  int
	Expanded    bool
	Properties  map[string]any
	Tags        []string
}

type ProjectionItem struct {
	NodeID      string
	PayloadType string
	Depth       int
	Expanded    bool
	HasChildren bool
	Label       string
}

type RemoveResult struct {
	NodeID     string
	RemovedIDs []string
}

type SortResult struct {
	ParentID string
	ChildIDs []string
}

type ExpansionResult struct {
	NodeID       string
	Expanded     bool
	Affected     int
	VisibleCount int
}

type FilterResult struct {
	Included []string
	Excluded []string
}

type TagsResponse struct {
	NodeID string
	Tags   []string
}

type Bookmark struct {
	ID        string
	Name      string
	NodeID    string
	CreatedBy string
	CreatedAt time.Time
	Metadata  map[string]string
}

type SnapshotInfo struct {
	ID        string
	Name      string
	RootID    string
	CreatedBy string
	CreatedAt time.Time
	NodeCount int
}

type ValidationReport struct {
	Valid        bool
	NodesChecked int
	Issues       []string
}

type DiffResult struct {
	Equal       bool
	Differences map[string]any
}

type ExportResult struct {
	Format     string
	Compressed bool
	Data       string
	NodeCount  int
}

type ImportResult struct {
	RootID    string
	Mode      string
	NodeCount int
}
