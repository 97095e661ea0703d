package server

import (
	"context"
	"strings"
	"time"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"forumgraph/internal/infer"
	"forumgraph/internal/models"
	"forumgraph/internal/store"
	"forumgraph/internal/version"
)

const previewLen = 400

// Reader is the read side of the crawl store the tools query.
type Reader interface {
	Summary(ctx context.Context) (store.Summary, error)
	RecentThreads(ctx context.Context, limit int) ([]store.ThreadSummary, error)
	GetThread(ctx context.Context, threadID string) (*models.Thread, error)
	ThreadPosts(ctx context.Context, threadID string) ([]models.Post, error)
	ThreadInteractions(ctx context.Context, threadID string) ([]models.Interaction, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UserPosts(ctx context.Context, userID string, limit int) ([]models.Post, error)
	UserInteractions(ctx context.Context, userID string) ([]models.Interaction, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error)
}

type SummaryParams struct {
	Limit *int `json:"limit,omitempty"`
}

type ThreadParams struct {
	ThreadID    string `json:"thread_id"`
	IncludeText bool   `json:"include_text"`
}

type UserParams struct {
	UserID string `json:"user_id"`
	Limit  *int   `json:"limit,omitempty"`
}

type SearchParams struct {
	Query       string `json:"query"`
	Limit       *int   `json:"limit,omitempty"`
	IncludeText bool   `json:"include_text"`
}

type Server struct {
	store Reader
}

func New(r Reader) *Server {
	return &Server{store: r}
}

// MCP builds the tool server.
func (s *Server) MCP() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "forumgraph", Version: version.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{Name: "crawl_summary", Description: "Counts of crawled threads, posts, users and interactions plus the most recently scraped threads"}, s.handleSummary)
	mcp.AddTool(server, &mcp.Tool{Name: "get_thread", Description: "Posts of one thread with its derived reply graph"}, s.handleGetThread)
	mcp.AddTool(server, &mcp.Tool{Name: "get_user", Description: "Profile snapshot of one member with recent posts and interactions"}, s.handleGetUser)
	mcp.AddTool(server, &mcp.Tool{Name: "search_posts", Description: "Substring search over post text and usernames"}, s.handleSearch)
	return server
}

func (s *Server) Run(ctx context.Context) error {
	return s.MCP().Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleSummary(ctx context.Context, req *mcp.CallToolRequest, p SummaryParams) (*mcp.CallToolResult, any, error) {
	sum, err := s.store.Summary(ctx)
	if err != nil {
		return nil, failure("Failed reading the crawl database", err), nil
	}
	threads, err := s.store.RecentThreads(ctx, limit(p.Limit, 20))
	if err != nil {
		return nil, failure("Failed reading the crawl database", err), nil
	}
	return nil, map[string]any{"summary": sum, "threads": threads}, nil
}

func (s *Server) handleGetThread(ctx context.Context, req *mcp.CallToolRequest, p ThreadParams) (*mcp.CallToolResult, any, error) {
	id := strings.TrimSpace(p.ThreadID)
	t, err := s.store.GetThread(ctx, id)
	if err != nil {
		return nil, failure("Failed reading the crawl database", err), nil
	}
	if t == nil {
		return nil, notFound("thread", id), nil
	}
	posts, err := s.store.ThreadPosts(ctx, id)
	if err != nil {
		return nil, failure("Failed reading thread posts", err), nil
	}
	interactions, err := s.store.ThreadInteractions(ctx, id)
	if err != nil {
		return nil, failure("Failed reading thread interactions", err), nil
	}
	items := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		items = append(items, serializePost(post, p.IncludeText))
	}
	return nil, map[string]any{
		"thread":       t,
		"post_count":   len(posts),
		"posts":        items,
		"interactions": interactions,
		"edges":        infer.Aggregate(interactions),
	}, nil
}

func (s *Server) handleGetUser(ctx context.Context, req *mcp.CallToolRequest, p UserParams) (*mcp.CallToolResult, any, error) {
	id := strings.TrimSpace(p.UserID)
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, failure("Failed reading the crawl database", err), nil
	}
	if u == nil {
		return nil, notFound("user", id), nil
	}
	posts, err := s.store.UserPosts(ctx, id, limit(p.Limit, 20))
	if err != nil {
		return nil, failure("Failed reading user posts", err), nil
	}
	interactions, err := s.store.UserInteractions(ctx, id)
	if err != nil {
		return nil, failure("Failed reading user interactions", err), nil
	}
	var sent, received int
	for _, in := range interactions {
		if in.SourceUserID == id {
			sent++
		}
		if in.TargetUserID == id {
			received++
		}
	}
	items := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		items = append(items, serializePost(post, false))
	}
	return nil, map[string]any{
		"user":                  u,
		"posts":                 items,
		"interactions_sent":     sent,
		"interactions_received": received,
		"interactions":          interactions,
	}, nil
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, p SearchParams) (*mcp.CallToolResult, any, error) {
	q := strings.TrimSpace(p.Query)
	if q == "" {
		return nil, map[string]any{"ok": false, "message": "query is required"}, nil
	}
	posts, err := s.store.SearchPosts(ctx, q, limit(p.Limit, 50))
	if err != nil {
		return nil, failure("Search failed", err), nil
	}
	items := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		items = append(items, serializePost(post, p.IncludeText))
	}
	return nil, map[string]any{"count": len(items), "items": items}, nil
}

// serializePost renders a post for a tool response; without includeText the
// text is cut to a preview.
func serializePost(p models.Post, includeText bool) map[string]any {
	m := map[string]any{
		"post_id":    p.PostID,
		"thread_id":  p.ThreadID,
		"page_url":   p.PageURL,
		"user_id":    p.UserID,
		"username":   p.Username,
		"timestamp":  p.Timestamp.UTC().Format(time.RFC3339),
		"scraped_at": p.ScrapedAt.UTC().Format(time.RFC3339),
	}
	if len(p.Quotes) > 0 {
		m["quotes"] = p.Quotes
	}
	if includeText {
		m["text"] = p.Text
	} else {
		m["text_preview"] = preview(p.Text)
	}
	return m
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}

func limit(p *int, def int) int {
	if p != nil && *p > 0 {
		return *p
	}
	return def
}

func failure(msg string, err error) map[string]any {
	return map[string]any{"ok": false, "message": msg, "error": err.Error()}
}

func notFound(kind, id string) map[string]any {
	return map[string]any{
		"ok":      false,
		"message": kind + " " + id + " is not in the crawl database",
		"hint":    "Run 'forumgraph crawl' or 'forumgraph thread <url>' to fetch it.",
	}
}
