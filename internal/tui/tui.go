package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"forumgraph/internal/models"
	"forumgraph/internal/store"
)

// maxThreads bounds how many threads the browser loads up front.
const maxThreads = 5000

// Source is the read side of the crawl store the browser needs.
type Source interface {
	RecentThreads(ctx context.Context, limit int) ([]store.ThreadSummary, error)
	ThreadPosts(ctx context.Context, threadID string) ([]models.Post, error)
	ThreadInteractions(ctx context.Context, threadID string) ([]models.Interaction, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error)
}

type viewMode int

const (
	tableView viewMode = iota
	searchView
	detailView
)

// Navigation messages
type goToDetailMsg struct {
	item *threadDetail
}
type goToSearchMsg struct{}
type goToTableMsg struct{}

// Requests the root resolves against the store.
type openThreadMsg struct {
	thread store.ThreadSummary
}
type searchMsg struct {
	query string
}
type errMsg struct {
	err error
}

type rootPage struct {
	ctx        context.Context
	src        Source
	viewMode   viewMode
	detailPage detailPage
	tablePage  tablePage
	searchPage searchPage
	width      int
	height     int
	err        error
}

// threadDetail is whatever the detail page shows: one thread or a search result.
type threadDetail struct {
	title    string
	url      string
	meta     string
	markdown string
}

func Run(ctx context.Context, src Source) error {
	threads, err := src.RecentThreads(ctx, maxThreads)
	if err != nil {
		return fmt.Errorf("query failed while reading the crawl database: %w", err)
	}

	p := tea.NewProgram(newRoot(ctx, src, threads), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func newRoot(ctx context.Context, src Source, threads []store.ThreadSummary) rootPage {
	return rootPage{
		ctx:       ctx,
		src:       src,
		tablePage: newTablePage(threads, time.Now),
	}
}

func (m rootPage) Init() tea.Cmd {
	return nil
}

func (m rootPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.viewMode {
	case tableView:
		m.tablePage, cmd = update[tablePage](m.tablePage, msg)
	case detailView:
		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
	case searchView:
		m.searchPage, cmd = update[searchPage](m.searchPage, msg)
	}

	switch msg := msg.(type) {
	case openThreadMsg:
		m.err = nil
		return m, m.loadThread(msg.thread)
	case searchMsg:
		m.err = nil
		return m, m.search(msg.query)
	case errMsg:
		m.err = msg.err
		return m, nil
	case goToSearchMsg:
		m.viewMode = searchView
		m.searchPage, cmd = update[searchPage](m.searchPage, msg)
	case goToTableMsg:
		m.viewMode = tableView
	case goToDetailMsg:
		m.viewMode = detailView
		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
	case tea.WindowSizeMsg:
		var cmds []tea.Cmd

		m.tablePage, cmd = update[tablePage](m.tablePage, msg)
		cmds = append(cmds, cmd)

		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
		cmds = append(cmds, cmd)

		m.searchPage, cmd = update[searchPage](m.searchPage, msg)
		cmds = append(cmds, cmd)

		m.width = msg.Width - 4
		m.height = msg.Height - 4

		return m, tea.Batch(cmds...)
	}

	return m, cmd
}

func (m rootPage) View() string {
	var page string
	switch m.viewMode {
	case detailView:
		page = m.detailPage.View()
	case searchView:
		page = m.searchPage.View()
	case tableView:
		page = m.tablePage.View()
	default:
		page = "Unknown View"
	}
	if m.err != nil {
		page += "\n" + errorLine(m.err)
	}
	return page
}

func (m rootPage) loadThread(t store.ThreadSummary) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()
		posts, err := m.src.ThreadPosts(ctx, t.ThreadID)
		if err != nil {
			return errMsg{err}
		}
		edges, err := m.src.ThreadInteractions(ctx, t.ThreadID)
		if err != nil {
			return errMsg{err}
		}
		return goToDetailMsg{item: threadToDetail(t, posts, edges)}
	}
}

func (m rootPage) search(query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()
		posts, err := m.src.SearchPosts(ctx, query, 100)
		if err != nil {
			return errMsg{err}
		}
		return goToDetailMsg{item: searchToDetail(query, posts)}
	}
}

func update[T any](model tea.Model, msg tea.Msg) (T, tea.Cmd) {
	newModel, cmd := model.Update(msg)
	return newModel.(T), cmd
}
