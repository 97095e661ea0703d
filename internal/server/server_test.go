package server

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumgraph/internal/infer"
	"forumgraph/internal/models"
	"forumgraph/internal/store"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Server {
	t.Helper()
	ctx := t.Context()
	st, err := store.Open(filepath.Join(t.TempDir(), "forumgraph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.UpsertThread(ctx, models.Thread{ThreadID: "10", ThreadURL: "https://forum.test/threads/coffee.10/", ScrapedAt: t0})
	require.NoError(t, err)
	for _, id := range []string{"1", "2"} {
		_, err = st.UpsertUser(ctx, models.User{UserID: id, ProfileURL: "https://forum.test/members/u." + id + "/", ScrapedAt: t0})
		require.NoError(t, err)
	}
	posts := []models.Post{
		{PostID: "101", ThreadID: "10", PageURL: "https://forum.test/threads/coffee.10/", UserID: "1", Username: "alice", Timestamp: t0, Text: "Coffee, obviously. " + strings.Repeat("x", 500)},
		{PostID: "102", ThreadID: "10", PageURL: "https://forum.test/threads/coffee.10/", UserID: "2", Username: "bob", Timestamp: t0.Add(time.Minute), Text: "Tea.",
			Quotes: []models.QuoteRef{{Username: "alice", PostID: "101"}}},
	}
	for _, p := range posts {
		p.ScrapedAt = t0
		_, err = st.UpsertPost(ctx, p)
		require.NoError(t, err)
	}
	committed, err := st.ThreadPosts(ctx, "10")
	require.NoError(t, err)
	require.NoError(t, st.ReplaceInteractions(ctx, "10", infer.Derive(committed, infer.Options{Now: t0})))
	return New(st)
}

func TestGetThread(t *testing.T) {
	s := seeded(t)
	_, out, err := s.handleGetThread(t.Context(), nil, ThreadParams{ThreadID: "10"})
	require.NoError(t, err)

	m := out.(map[string]any)
	assert.Equal(t, 2, m["post_count"])
	posts := m["posts"].([]map[string]any)
	assert.Equal(t, "101", posts[0]["post_id"])
	assert.NotContains(t, posts[0], "text")
	assert.Len(t, []rune(posts[0]["text_preview"].(string)), previewLen+3)

	edges := m["edges"].([]infer.Edge)
	require.Len(t, edges, 1)
	assert.Equal(t, "2", edges[0].SourceUserID)
	assert.Equal(t, "1", edges[0].TargetUserID)
}

func TestGetThreadIncludeText(t *testing.T) {
	s := seeded(t)
	_, out, err := s.handleGetThread(t.Context(), nil, ThreadParams{ThreadID: "10", IncludeText: true})
	require.NoError(t, err)
	posts := out.(map[string]any)["posts"].([]map[string]any)
	assert.Equal(t, "Tea.", posts[1]["text"])
}

func TestGetThreadUnknown(t *testing.T) {
	s := seeded(t)
	_, out, err := s.handleGetThread(t.Context(), nil, ThreadParams{ThreadID: "99"})
	require.NoError(t, err)
	assert.Equal(t, false, out.(map[string]any)["ok"])
}

func TestGetUser(t *testing.T) {
	s := seeded(t)
	_, out, err := s.handleGetUser(t.Context(), nil, UserParams{UserID: "1"})
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, 0, m["interactions_sent"])
	assert.Equal(t, 1, m["interactions_received"])
	assert.Len(t, m["posts"], 1)
}

func TestSearch(t *testing.T) {
	s := seeded(t)
	_, out, err := s.handleSearch(t.Context(), nil, SearchParams{Query: "tea"})
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, 1, m["count"])

	_, out, err = s.handleSearch(t.Context(), nil, SearchParams{Query: "  "})
	require.NoError(t, err)
	assert.Equal(t, false, out.(map[string]any)["ok"])
}

func TestSummary(t *testing.T) {
	s := seeded(t)
	_, out, err := s.handleSummary(t.Context(), nil, SummaryParams{})
	require.NoError(t, err)
	sum := out.(map[string]any)["summary"].(store.Summary)
	assert.Equal(t, 2, sum.Posts)
	assert.Equal(t, 1, sum.Interactions)
}

func TestMCPRegistersTools(t *testing.T) {
	assert.NotNil(t, seeded(t).MCP())
}
