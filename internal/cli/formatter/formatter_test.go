package formatter

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/stretchr/testify/assert"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestTreeItems_IsLast(t *testing.T) {
	items := TreeItems([]TreeItem{
		{Label: "root", Level: 0},
		{Label: "a", Level: 1},
		{Label: "a1", Level: 2},
		{Label: "b", Level: 1},
	})

	assert.True(t, items[0].IsLast)
	assert.False(t, items[1].IsLast)
	assert.True(t, items[2].IsLast)
	assert.True(t, items[3].IsLast)
}

func TestRenderTree_Connectors(t *testing.T) {
	out := stripANSI(RenderTree(TreeItems([]TreeItem{
		{ID: "r", Label: "root", Type: "Topic", Level: 0, HasKids: true, Expanded: true},
		{ID: "a", Label: "a", Type: "Topic", Level: 1, HasKids: true},
		{ID: "b", Label: "b", Type: "Topic", Level: 1, Tags: []string{"x", "y"}},
	})))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "▾ root")
	assert.Contains(t, lines[1], "├─ ▸ a")
	assert.Contains(t, lines[2], "└─ ")
	assert.Contains(t, lines[2], "[ x, y ]")
}

func TestRenderTree_Empty(t *testing.T) {
	assert.Empty(t, RenderTree(nil))
}

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := stripANSI(RenderTable([]string{"ID", "NAME"}, [][]string{{"1", "alpha"}, {"22", StyleGreen.Render("b")}}))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Equal(t, "ID  NAME", strings.TrimRight(lines[0], " "))
	assert.Equal(t, "1   alpha", lines[2])
	assert.Equal(t, "22  b", lines[3])
}

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "abc", Ellipsize("abc", 5))
	assert.Equal(t, "abcd…", Ellipsize("abcdefgh", 5))
}

func TestHumanTimestamp(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"seconds", now.Add(-10 * time.Second), "Just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-72 * time.Hour), "Feb 4, 2026"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HumanTimestamp(tt.at, now))
		})
	}
}

func TestProperties_SortedAndAligned(t *testing.T) {
	out := stripANSI(Properties(map[string]any{"Title": "Plan", "Done": false, "Notes": ""}))

	assert.Equal(t, "  Done   false\n  Notes  —\n  Title  Plan\n", out)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", stripANSI(Outcome(true, "")))
	assert.Equal(t, "forbidden", stripANSI(Outcome(false, contract.ErrForbidden)))
}
