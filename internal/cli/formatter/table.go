package formatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	colGap      = 2
	maxCellWide = 48
)

// RenderTable renders an aligned table with a header separator line. Cells
// wider than maxCellWide are cut with an ellipsis. Widths are measured on
// visible text so styled cells line up.
func RenderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	cols := len(headers)

	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, cols)
		for i := 0; i < cols && i < len(row); i++ {
			cells[r][i] = Ellipsize(row[i], maxCellWide)
		}
	}

	widths := make([]int, cols)
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range cells {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	writeRow := func(row []string, style func(string) string) {
		for i, cell := range row {
			b.WriteString(style(cell))
			if i < cols-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+colGap))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers, func(s string) string { return StyleHeader.Render(s) })
	sep := make([]string, cols)
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	writeRow(sep, Dim)
	for _, row := range cells {
		writeRow(row, func(s string) string { return s })
	}
	return b.String()
}

// Ellipsize shortens plain text to width runes, ending in "…". Styled text is
// returned unchanged.
func Ellipsize(s string, width int) string {
	if strings.Contains(s, "\x1b[") {
		return s
	}
	r := []rune(s)
	if len(r) <= width || width < 1 {
		return s
	}
	return string(r[:width-1]) + "…"
}
