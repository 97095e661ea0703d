package digest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumgraph/internal/config"
	"forumgraph/internal/models"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type memReader struct {
	thread       *models.Thread
	posts        []models.Post
	interactions []models.Interaction
}

func (m memReader) GetThread(context.Context, string) (*models.Thread, error) { return m.thread, nil }
func (m memReader) ThreadPosts(context.Context, string) ([]models.Post, error) {
	return m.posts, nil
}
func (m memReader) ThreadInteractions(context.Context, string) ([]models.Interaction, error) {
	return m.interactions, nil
}

func thread() memReader {
	title := "Coffee or tea?"
	return memReader{
		thread: &models.Thread{ThreadID: "10", ThreadURL: "https://forum.test/threads/coffee.10/", Title: &title},
		posts: []models.Post{
			{PostID: "101", UserID: "1", Username: "alice", Timestamp: t0, Text: "Coffee."},
			{PostID: "102", UserID: "2", Username: "bob", Timestamp: t0.Add(time.Minute), Text: "Tea, @alice."},
		},
		interactions: []models.Interaction{
			{SourceUserID: "2", TargetUserID: "1", Type: models.InteractionMention, Confidence: 0.5},
		},
	}
}

func TestBuild(t *testing.T) {
	c, err := Build(t.Context(), thread(), "10")
	require.NoError(t, err)
	assert.Equal(t, "Coffee or tea?", c.Title)
	assert.Equal(t, 2, c.Posts)
	assert.Equal(t, 2, c.Members)
	assert.Contains(t, c.Transcript, "[2024-05-01 10:01:00] bob (post 102):\nTea, @alice.")
	assert.Equal(t, "bob -> alice: 1 interaction(s), weight 0.5\n", c.Graph)
}

func TestBuildUnknownThread(t *testing.T) {
	_, err := Build(t.Context(), memReader{}, "99")
	assert.Error(t, err)
}

func TestPrompt(t *testing.T) {
	c := &Conversation{Title: "Coffee", Transcript: "T", Graph: "G"}

	p, err := Prompt("Summarize {{.Title}}", c)
	require.NoError(t, err)
	assert.Equal(t, "Summarize Coffee", p)

	p, err = Prompt("Summarize.", c)
	require.NoError(t, err)
	assert.Contains(t, p, "Thread: Coffee")
	assert.Contains(t, p, "Reply graph:\nG")
}

func TestRun(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)
		assert.Equal(t, "test-model", req.Model)
		if len(req.Messages) > 0 {
			prompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":0,"model":"test-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Bob argues with Alice."}}]}`)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := Run(t.Context(), thread(), "10", Options{
		AI:            config.AIConfig{BaseURL: srv.URL + "/", Model: "test-model", Prompt: "Summarize {{.Title}}"},
		ClientOptions: []option.RequestOption{option.WithAPIKey("test"), option.WithMaxRetries(0)},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Bob argues with Alice.\n", out.String())
	assert.Equal(t, "Summarize Coffee or tea?", prompt)
}

func TestRunRequiresConfig(t *testing.T) {
	err := Run(t.Context(), thread(), "10", Options{AI: config.AIConfig{Model: "m", Prompt: "p"}}, io.Discard)
	assert.ErrorContains(t, err, "base URL")
}
