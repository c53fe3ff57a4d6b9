package formatter

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// RenderBox wraps content in a rounded-border box with an optional title.
func RenderBox(title string, content string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		PaddingLeft(2).
		PaddingRight(2)

	if title != "" {
		return boxStyle.Render(StyleHeader.Render(strings.ToUpper(title)) + "\n\n" + content)
	}
	return boxStyle.Render(content)
}

// TruncID shortens a node ID for display.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

// HumanTimestamp returns a relative timestamp for recent times and a date
// otherwise.
func HumanTimestamp(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < 0:
		return t.Format("Jan 2, 2006 15:04")
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return t.Format("Jan 2, 2006")
	}
}

// Value renders a property value, dimming empty ones.
func Value(v any) string {
	switch x := v.(type) {
	case nil:
		return Dim("—")
	case string:
		if x == "" {
			return Dim("—")
		}
		return x
	case map[string]any:
		return Dim(fmt.Sprintf("{%d fields}", len(x)))
	default:
		return fmt.Sprint(x)
	}
}

// Properties renders props as aligned "name  value" lines in name order.
func Properties(props map[string]any) string {
	names := make([]string, 0, len(props))
	width := 0
	for name := range props {
		names = append(names, name)
		width = max(width, len(name))
	}
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %s  %s\n", Dim(name+strings.Repeat(" ", width-len(name))), Value(props[name]))
	}
	return b.String()
}
