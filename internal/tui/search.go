package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const queryWidth = 50

var searchKeys = struct {
	submit, leave, edit, threads, quit key.Binding
}{
	submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "search posts")),
	leave:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "leave the query")),
	edit:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("Tab", "edit the query")),
	threads: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "threads")),
	quit:    key.NewBinding(key.WithKeys("esc", "q"), key.WithHelp("Esc/q", "quit")),
}

// searchPage edits a full-text query over post bodies. While the query has
// focus every key but Enter and Esc goes to the input.
type searchPage struct {
	query  textinput.Model
	width  int
	height int
	err    error
}

func (m searchPage) Init() tea.Cmd {
	return nil
}

func (m searchPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case goToSearchMsg:
		if m.query.Value() == "" {
			m.query = newQueryInput()
		}
		m.err = nil
		cmd := m.query.Focus()
		return m, cmd
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if m.query.Focused() {
			return m.edit(msg)
		}
		return m.idle(msg)
	}
	return m, nil
}

func (m searchPage) edit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, searchKeys.submit):
		cmd := m.submit()
		return m, cmd
	case key.Matches(msg, searchKeys.leave):
		m.query.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.query, cmd = m.query.Update(msg)
	return m, cmd
}

func (m searchPage) idle(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, searchKeys.edit):
		cmd := m.query.Focus()
		return m, cmd
	case key.Matches(msg, searchKeys.threads):
		return m, func() tea.Msg { return goToTableMsg{} }
	case key.Matches(msg, searchKeys.quit):
		return m, tea.Quit
	}
	return m, nil
}

func newQueryInput() textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "words from a post"
	in.Width = queryWidth
	return in
}

func (m *searchPage) submit() tea.Cmd {
	q := strings.TrimSpace(m.query.Value())
	if q == "" {
		m.err = errors.New("enter some words to search for")
		return nil
	}
	m.err = nil
	return func() tea.Msg { return searchMsg{query: q} }
}

func (m searchPage) View() string {
	box := lipgloss.NewStyle().
		Width(queryWidth).
		Border(lipgloss.NormalBorder()).
		BorderForeground(muted)
	help := hints(searchKeys.threads, searchKeys.edit, searchKeys.quit)
	if m.query.Focused() {
		box = box.BorderForeground(lipgloss.Color("15"))
		help = hints(searchKeys.submit, searchKeys.leave)
	}

	lines := []string{
		menu(searchView, m.width),
		lipgloss.NewStyle().MarginTop(min(m.height/4, 10)).MarginBottom(2).Render("Search the text of every crawled post"),
		box.Render(m.query.View()),
	}
	if m.err != nil {
		lines = append(lines, errorLine(m.err))
	}
	lines = append(lines, lipgloss.NewStyle().MarginTop(2).Render(help))
	return pageStyle.Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
}
