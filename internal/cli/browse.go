package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/arbor/internal/cli/formatter"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

type browseKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Expand   key.Binding
	Collapse key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Quit     key.Binding
}

func defaultBrowseKeys() browseKeyMap {
	return browseKeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Expand:   key.NewBinding(key.WithKeys("right", "l", "enter"), key.WithHelp("→/enter", "expand")),
		Collapse: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "collapse")),
		Top:      key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Expand, k.Collapse, k.Quit}
}

func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Top, k.Bottom}}
}

// browseModel walks the visible projection. Expanding and collapsing go
// through the service, so they are audited and persisted like any command.
type browseModel struct {
	s      *session
	keys   browseKeyMap
	help   help.Model
	rows   []formatter.TreeItem
	cursor int
	offset int
	width  int
	height int
	status string
}

func newBrowseModel(s *session) (*browseModel, error) {
	m := &browseModel{
		s:      s,
		keys:   defaultBrowseKeys(),
		help:   help.New(),
		height: 24,
	}
	if err := m.reload(""); err != nil {
		return nil, err
	}
	return m, nil
}

// reload refreshes rows and keeps the cursor on focusID when it is visible.
func (m *browseModel) reload(focusID string) error {
	rows, err := m.s.outline(false)
	if err != nil {
		return err
	}
	m.rows = rows
	for i, r := range rows {
		if r.ID == focusID {
			m.cursor = i
			break
		}
	}
	m.cursor = min(m.cursor, len(m.rows)-1)
	m.scroll()
	return nil
}

func (m *browseModel) Init() tea.Cmd { return nil }

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.scroll()
		return m, nil

	case tea.KeyMsg:
		m.status = ""
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Top):
			m.cursor = 0
		case key.Matches(msg, m.keys.Bottom):
			m.cursor = len(m.rows) - 1
		case key.Matches(msg, m.keys.Expand):
			m.expand()
		case key.Matches(msg, m.keys.Collapse):
			m.collapse()
		}
		m.scroll()
	}
	return m, nil
}

func (m *browseModel) current() formatter.TreeItem { return m.rows[m.cursor] }

func (m *browseModel) expand() {
	row := m.current()
	if !row.HasKids || row.Expanded {
		return
	}
	m.setExpanded(row.ID, true)
}

// collapse folds an expanded row, or jumps to the parent row otherwise.
func (m *browseModel) collapse() {
	row := m.current()
	if row.HasKids && row.Expanded && m.cursor > 0 {
		m.setExpanded(row.ID, false)
		return
	}
	for i := m.cursor - 1; i >= 0; i-- {
		if m.rows[i].Level < row.Level {
			m.cursor = i
			return
		}
	}
}

func (m *browseModel) setExpanded(id string, expanded bool) {
	req := contract.ExpansionRequest{NodeID: id}
	var res contract.Result[contract.ExpansionResult]
	if expanded {
		res = m.s.svc.ExpandNode(m.s.ctx, m.s.agent, req)
	} else {
		res = m.s.svc.CollapseNode(m.s.ctx, m.s.agent, req)
	}
	if _, err := mutated(m.s, res); err != nil {
		m.status = err.Error()
		return
	}
	if err := m.reload(id); err != nil {
		m.status = err.Error()
	}
}

// listHeight is the number of tree rows that fit between header and footer.
func (m *browseModel) listHeight() int {
	return max(m.height-4, 1)
}

func (m *browseModel) scroll() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = max(m.offset, 0)
}

func (m *browseModel) View() string {
	var b strings.Builder
	b.WriteString(formatter.StyleHeader.Render("ARBOR"))
	b.WriteString(formatter.Dim(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.rows))))
	b.WriteString("\n\n")

	rows := make([]formatter.TreeItem, len(m.rows))
	copy(rows, m.rows)
	rows[m.cursor].Selected = true
	lines := strings.Split(strings.TrimRight(formatter.RenderTree(formatter.TreeItems(rows)), "\n"), "\n")
	end := min(m.offset+m.listHeight(), len(lines))
	b.WriteString(strings.Join(lines[m.offset:end], "\n"))
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(formatter.StyleRed.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func newBrowseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Explore the tree interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run := app.RunProgram
			if run == nil {
				if app.IsInteractive != nil && !app.IsInteractive() {
					return errors.New("browse needs an interactive terminal")
				}
				run = func(m tea.Model) error {
					_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
					return err
				}
			}
			return app.withSession(cmd, func(s *session) error {
				m, err := newBrowseModel(s)
				if err != nil {
					return err
				}
				return run(m)
			})
		},
	}
}
