package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"forumgraph/internal/store"
)

const (
	countWidth   = 7
	scrapedWidth = 14
	// border runes plus the horizontal padding of five columns
	tableChrome = 6 + 2*5
)

var tableKeys = struct {
	up, down, prev, next, first, last, open, search, quit key.Binding
}{
	up:     key.NewBinding(key.WithKeys("k", "up")),
	down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/k", "move")),
	prev:   key.NewBinding(key.WithKeys("h", "left")),
	next:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("h/l", "page")),
	first:  key.NewBinding(key.WithKeys("g")),
	last:   key.NewBinding(key.WithKeys("G"), key.WithHelp("g/G", "first/last")),
	open:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("Enter", "open thread")),
	search: key.NewBinding(key.WithKeys("2", "/"), key.WithHelp("/", "search")),
	quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// tablePage pages through the thread summaries. selected indexes threads,
// so the page on screen is derived from it.
type tablePage struct {
	threads    []store.ThreadSummary
	now        func() time.Time
	selected   int
	perPage    int
	width      int
	titleWidth int
	ready      bool
}

func newTablePage(threads []store.ThreadSummary, now func() time.Time) tablePage {
	return tablePage{threads: threads, now: now, perPage: 10}
}

func (m tablePage) Init() tea.Cmd {
	return nil
}

func (m tablePage) page() int  { return m.selected / m.perPage }
func (m tablePage) pages() int { return max(1, (len(m.threads)+m.perPage-1)/m.perPage) }

func (m tablePage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width - 2
		m.perPage = max(5, msg.Height-10)
		m.titleWidth = max(20, msg.Width-3*countWidth-scrapedWidth-tableChrome)
		m.ready = true
		return m, tea.ClearScreen
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tablePage) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := len(m.threads) - 1
	switch {
	case key.Matches(msg, tableKeys.quit):
		return m, tea.Quit
	case key.Matches(msg, tableKeys.search):
		return m, func() tea.Msg { return goToSearchMsg{} }
	case key.Matches(msg, tableKeys.open):
		if last < 0 {
			return m, nil
		}
		t := m.threads[m.selected]
		return m, func() tea.Msg { return openThreadMsg{thread: t} }
	case last < 0:
		return m, nil
	case key.Matches(msg, tableKeys.up):
		m.selected = max(m.selected-1, 0)
	case key.Matches(msg, tableKeys.down):
		m.selected = min(m.selected+1, last)
	case key.Matches(msg, tableKeys.first):
		m.selected = 0
	case key.Matches(msg, tableKeys.last):
		m.selected = last
	case key.Matches(msg, tableKeys.prev):
		if m.page() == 0 {
			return m, nil
		}
		m.selected = (m.page() - 1) * m.perPage
		// lipgloss tables leave stale border cells behind on a page flip
		return m, tea.ClearScreen
	case key.Matches(msg, tableKeys.next):
		if m.page() >= m.pages()-1 {
			return m, nil
		}
		m.selected = (m.page() + 1) * m.perPage
		return m, tea.ClearScreen
	}
	return m, nil
}

func (m tablePage) View() string {
	if !m.ready {
		return "...Loading"
	}
	if len(m.threads) == 0 {
		return "No threads in the crawl database. Run 'forumgraph crawl' first."
	}
	status := hintStyle.Render(fmt.Sprintf("page %d/%d · %s threads", m.page()+1, m.pages(), humanize.Comma(int64(len(m.threads)))))
	help := hints(tableKeys.down, tableKeys.next, tableKeys.last, tableKeys.open, tableKeys.search, tableKeys.quit)
	return pageStyle.Render(lipgloss.JoinVertical(lipgloss.Left, menu(tableView, m.width), m.render(), status, help))
}

func (m tablePage) render() string {
	start := m.page() * m.perPage
	shown := m.threads[start:min(start+m.perPage, len(m.threads))]
	now := m.now()

	rows := make([][]string, len(shown))
	for i, t := range shown {
		title := "No title"
		if t.Title != nil && *t.Title != "" {
			title = *t.Title
		}
		rows[i] = []string{
			truncateString(title, m.titleWidth),
			humanize.Comma(int64(t.Posts)),
			strconv.Itoa(t.Participants),
			strconv.Itoa(t.Interactions),
			truncateString(humanize.RelTime(t.ScrapedAt, now, "ago", "from now"), scrapedWidth),
		}
	}

	cursor := m.selected - start
	header := lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(accent).Align(lipgloss.Center)
	return table.New().
		Width(m.width).
		Border(lipgloss.ThickBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accent)).
		Headers("Title", "Posts", "Members", "Edges", "Scraped").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			cell := lipgloss.NewStyle().Padding(0, 1)
			if col >= 1 && col <= 3 {
				cell = cell.Align(lipgloss.Right)
			}
			if row == cursor {
				cell = cell.Background(highlight).Foreground(lipgloss.Color("0"))
			}
			return cell
		}).
		Render()
}
