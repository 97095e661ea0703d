package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var detailKeys = struct {
	up, down, top, bottom, back key.Binding
}{
	up:     key.NewBinding(key.WithKeys("k", "up")),
	down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/k", "scroll")),
	top:    key.NewBinding(key.WithKeys("g")),
	bottom: key.NewBinding(key.WithKeys("G"), key.WithHelp("g/G", "top/bottom")),
	back:   key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"), key.WithHelp("esc/q", "back")),
}

type detailPage struct {
	width        int
	height       int
	viewport     viewport.Model
	selectedItem *threadDetail
}

func (m detailPage) Init() tea.Cmd {
	return nil
}

func (m detailPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, detailKeys.back):
			return m, func() tea.Msg { return goToTableMsg{} }
		case key.Matches(msg, detailKeys.up):
			m.viewport.ScrollUp(1)
		case key.Matches(msg, detailKeys.down):
			m.viewport.ScrollDown(1)
		case key.Matches(msg, detailKeys.top):
			m.viewport.GotoTop()
		case key.Matches(msg, detailKeys.bottom):
			m.viewport.GotoBottom()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width - 4
		m.height = msg.Height - 4
		if m.selectedItem != nil {
			m.viewport = setupViewport(m.width, m.height, m.selectedItem)
		}

		return m, nil
	case goToDetailMsg:
		m.selectedItem = msg.item
		m.viewport = setupViewport(m.width, m.height, m.selectedItem)

		return m, nil
	}

	return m, nil
}

func (m detailPage) View() string {
	if m.selectedItem == nil {
		return "No thread selected"
	}

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(accent)

	titleStyle := lipgloss.NewStyle().
		Foreground(accent).
		Bold(true).
		MarginBottom(1).
		Width(max(20, m.width-8))

	urlStyle := lipgloss.NewStyle().
		Foreground(highlight).
		Italic(true).
		Width(max(20, m.width-8))

	metaStyle := lipgloss.NewStyle().
		Foreground(muted).
		MarginBottom(1)

	scrollPercent := min(max(m.viewport.ScrollPercent(), 0), 1)
	scroll := hintStyle.
		Bold(true).
		Render(fmt.Sprintf("Scroll: %d%%", int(scrollPercent*100)))

	header := []string{titleStyle.Render(m.selectedItem.title)}
	if m.selectedItem.url != "" {
		header = append(header, urlStyle.Render(m.selectedItem.url))
	}
	header = append(header, metaStyle.Render(m.selectedItem.meta))

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinVertical(lipgloss.Left, header...),
		m.viewport.View(),
		scroll,
		hints(detailKeys.down, detailKeys.bottom, detailKeys.back))

	return pageStyle.Render(borderStyle.Render(content))
}

func setupViewport(width, height int, item *threadDetail) viewport.Model {
	contentWidth := max(20, width)
	vp := viewport.New(contentWidth, max(5, height-10))
	vp.SetContent(renderMarkdown(item.markdown, contentWidth))
	return vp
}

// renderMarkdown styles the detail document for the terminal and falls back
// to the raw text when the renderer fails.
func renderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return "Nothing to show"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithWordWrap(width),
		glamour.WithStandardStyle("dark"),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
