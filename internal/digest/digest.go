package digest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"forumgraph/internal/config"
	"forumgraph/internal/infer"
	"forumgraph/internal/models"
)

// maxTranscript caps the transcript handed to the model, in runes.
const maxTranscript = 24000

// Reader is the part of the store a digest reads.
type Reader interface {
	GetThread(ctx context.Context, threadID string) (*models.Thread, error)
	ThreadPosts(ctx context.Context, threadID string) ([]models.Post, error)
	ThreadInteractions(ctx context.Context, threadID string) ([]models.Interaction, error)
}

// Conversation is what a prompt template can reference.
type Conversation struct {
	ThreadID   string
	Title      string
	URL        string
	Posts      int
	Members    int
	Transcript string
	Graph      string
}

type Options struct {
	AI     config.AIConfig
	Stream bool
	// Client options appended after the base URL, e.g. an API key.
	ClientOptions []option.RequestOption
}

// Build loads a thread and renders its transcript and reply graph.
func Build(ctx context.Context, r Reader, threadID string) (*Conversation, error) {
	t, err := r.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("thread %s has not been crawled", threadID)
	}
	posts, err := r.ThreadPosts(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("thread %s has no posts", threadID)
	}
	interactions, err := r.ThreadInteractions(ctx, threadID)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	var sb strings.Builder
	for _, p := range posts {
		names[p.UserID] = p.Username
		fmt.Fprintf(&sb, "[%s] %s (post %s):\n%s\n\n", p.Timestamp.UTC().Format(time.DateTime), p.Username, p.PostID, p.Text)
	}
	transcript := sb.String()
	if runes := []rune(transcript); len(runes) > maxTranscript {
		transcript = string(runes[:maxTranscript]) + "\n[transcript truncated]\n"
	}

	var gb strings.Builder
	for _, e := range infer.Aggregate(interactions) {
		fmt.Fprintf(&gb, "%s -> %s: %d interaction(s), weight %.1f\n",
			nameOf(names, e.SourceUserID), nameOf(names, e.TargetUserID), e.Count, e.Weight)
	}
	if gb.Len() == 0 {
		gb.WriteString("(no replies detected)\n")
	}

	c := &Conversation{
		ThreadID:   t.ThreadID,
		URL:        t.ThreadURL,
		Posts:      len(posts),
		Members:    len(names),
		Transcript: transcript,
		Graph:      gb.String(),
	}
	if t.Title != nil {
		c.Title = *t.Title
	}
	return c, nil
}

func nameOf(names map[string]string, id string) string {
	if n := names[id]; n != "" {
		return n
	}
	return "member " + id
}

// Prompt renders the configured template. A template without placeholders
// gets the thread appended.
func Prompt(tmpl string, c *Conversation) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		tmpl += "\n\nThread: {{.Title}} ({{.URL}})\n\n{{.Transcript}}\nReply graph:\n{{.Graph}}"
	}
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, c); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Run asks the configured model to summarize a thread and writes the answer to w.
func Run(ctx context.Context, r Reader, threadID string, opts Options, w io.Writer) error {
	if opts.AI.BaseURL == "" {
		return errors.New("AI base URL is not configured")
	}
	if opts.AI.Model == "" {
		return errors.New("AI model is not configured")
	}
	if opts.AI.Prompt == "" {
		return errors.New("AI prompt is not configured")
	}

	conv, err := Build(ctx, r, threadID)
	if err != nil {
		return err
	}
	prompt, err := Prompt(opts.AI.Prompt, conv)
	if err != nil {
		return err
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithBaseURL(opts.AI.BaseURL)}, opts.ClientOptions...)...)
	timeoutCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: opts.AI.Model,
	}

	if opts.Stream {
		stream := client.Chat.Completions.NewStreaming(timeoutCtx, params)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				fmt.Fprint(w, chunk.Choices[0].Delta.Content)
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("stream error: %w", err)
		}
		fmt.Fprintln(w)
		return nil
	}

	completion, err := client.Chat.Completions.New(timeoutCtx, params)
	if err != nil {
		return fmt.Errorf("failed to get AI completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return errors.New("AI returned no choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return errors.New("AI returned empty content")
	}
	fmt.Fprintln(w, content)
	return nil
}
