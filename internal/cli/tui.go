package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/maven"
	"github.com/matzehuels/classpath/pkg/resolve"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	listFailedStyle   = lipgloss.NewStyle().Foreground(colorRed)
	detailBoxStyle    = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorDim).
				Padding(0, 1)
)

// =============================================================================
// TreeModel - Interactive dependency tree browser
// =============================================================================

// TreeModel is the bubbletea model for browsing a resolved graph. Subtrees
// fold and unfold; the selected artifact's details are shown below the
// tree.
type TreeModel struct {
	graph     *resolve.Graph
	collapsed map[*resolve.Node]bool
	rows      []*resolve.Node
	Cursor    int
	Offset    int
	Height    int
}

func newTreeModel(g *resolve.Graph) TreeModel {
	m := TreeModel{graph: g, collapsed: make(map[*resolve.Node]bool), Height: 20}
	m.rows = m.visible()
	return m
}

// visible flattens the unfolded part of the tree.
func (m TreeModel) visible() []*resolve.Node {
	var rows []*resolve.Node
	var visit func(*resolve.Node)
	visit = func(n *resolve.Node) {
		rows = append(rows, n)
		if m.collapsed[n] {
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	for _, r := range m.graph.Roots {
		visit(r)
	}
	return rows
}

func (m TreeModel) Init() tea.Cmd {
	return nil
}

func (m TreeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.rows)-1 {
				m.Cursor++
			}
		case "enter", " ":
			m.setCollapsed(!m.collapsed[m.current()])
		case "left", "h":
			m.setCollapsed(true)
		case "right", "l":
			m.setCollapsed(false)
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 10
		if m.Height < 5 {
			m.Height = 5
		}
	}
	m.scroll()
	return m, nil
}

func (m TreeModel) current() *resolve.Node {
	if len(m.rows) == 0 {
		return nil
	}
	return m.rows[m.Cursor]
}

func (m *TreeModel) setCollapsed(v bool) {
	n := m.current()
	if n == nil || len(n.Children) == 0 {
		return
	}
	m.collapsed[n] = v
	m.rows = m.visible()
	for i, r := range m.rows {
		if r == n {
			m.Cursor = i
			break
		}
	}
}

func (m *TreeModel) scroll() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m TreeModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Dependency Tree"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ fold  ←/→ collapse/expand  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.rows))
	for i := m.Offset; i < end; i++ {
		b.WriteString(m.row(i))
		b.WriteString("\n")
	}

	if n := m.current(); n != nil {
		b.WriteString("\n")
		b.WriteString(detailBoxStyle.Render(details(n)))
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.rows))))
	return b.String()
}

func (m TreeModel) row(i int) string {
	n := m.rows[i]
	cursor := "  "
	if i == m.Cursor {
		cursor = "▸ "
	}
	fold := "  "
	if len(n.Children) > 0 {
		fold = "▾ "
		if m.collapsed[n] {
			fold = "▸ "
		}
	}
	line := cursor + strings.Repeat("  ", n.Depth) + fold + n.Coordinate.Display()
	if n.Scope != maven.ScopeCompile {
		line += " " + listDimStyle.Render("("+string(n.Scope)+")")
	}

	switch {
	case i == m.Cursor:
		return listSelectedStyle.Render(line)
	case n.Err != nil:
		return listFailedStyle.Render(line)
	default:
		return listNormalStyle.Render(line)
	}
}

// details describes one node for the detail pane.
func details(n *resolve.Node) string {
	lines := []string{
		StyleHighlight.Render(n.Coordinate.Display()),
		"declared  " + n.Declared.String(),
		"scope     " + string(n.Scope),
		fmt.Sprintf("depends   %d", len(n.Deps())),
	}
	if n.Path != "" {
		lines = append(lines, "file      "+n.Path)
	}
	if n.Err != nil {
		lines = append(lines, StyleError.Render("error     "+errors.UserMessage(n.Err)))
	}
	return strings.Join(lines, "\n")
}
