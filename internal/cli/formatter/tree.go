package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TreeItem is one row of a rendered tree.
type TreeItem struct {
	ID       string
	Label    string
	Type     string
	Level    int
	IsLast   bool
	Expanded bool
	HasKids  bool
	Tags     []string
	Selected bool
}

const (
	treeBranch = "├─ "
	treeCorner = "└─ "
	treePipe   = "│  "
	treeSpace  = "   "
)

// TreeItems computes IsLast for rows given in DFS pre-order with Level set.
func TreeItems(items []TreeItem) []TreeItem {
	for i := range items {
		items[i].IsLast = true
		for j := i + 1; j < len(items); j++ {
			if items[j].Level < items[i].Level {
				break
			}
			if items[j].Level == items[i].Level {
				items[i].IsLast = false
				break
			}
		}
	}
	return items
}

// RenderTree renders rows as an indented tree with box-drawing connectors.
// Collapsed parents get a ▸ marker, expanded ones ▾. Tags are right-aligned
// badges.
func RenderTree(items []TreeItem) string {
	if len(items) == 0 {
		return ""
	}

	type lineInfo struct {
		content string
		badge   string
	}

	lines := make([]lineInfo, len(items))
	maxContentWidth := 0
	// open[l] reports whether level l still has siblings below.
	var open []bool

	for idx, item := range items {
		var prefix string
		if item.Level > 0 {
			for l := 1; l < item.Level; l++ {
				if l < len(open) && open[l] {
					prefix += treePipe
				} else {
					prefix += treeSpace
				}
			}
			if item.IsLast {
				prefix += treeCorner
			} else {
				prefix += treeBranch
			}
		}
		for len(open) <= item.Level {
			open = append(open, false)
		}
		open[item.Level] = !item.IsLast

		marker := "  "
		if item.HasKids {
			if item.Expanded {
				marker = StyleDim.Render("▾ ")
			} else {
				marker = StyleYellow.Render("▸ ")
			}
		}

		title := item.Label
		if item.Selected {
			title = StyleYellowBold.Render("› " + title)
		}
		content := prefix + marker + title + " " + Dim(fmt.Sprintf("%s %s", item.Type, TruncID(item.ID)))
		lines[idx].content = content

		if len(item.Tags) > 0 {
			lines[idx].badge = StyleBlue.Render(fmt.Sprintf("[ %s ]", strings.Join(item.Tags, ", ")))
		}

		if w := lipgloss.Width(content); w > maxContentWidth {
			maxContentWidth = w
		}
	}

	var b strings.Builder
	for _, li := range lines {
		if li.badge != "" {
			pad := maxContentWidth - lipgloss.Width(li.content)
			if pad < 0 {
				pad = 0
			}
			b.WriteString(li.content + strings.Repeat(" ", pad) + "  " + li.badge + "\n")
		} else {
			b.WriteString(li.content + "\n")
		}
	}

	return b.String()
}
