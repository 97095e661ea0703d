package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"forumgraph/internal/infer"
	"forumgraph/internal/models"
	"forumgraph/internal/store"
)

// threadToDetail lays a thread out as markdown: who replies to whom, then
// every post in reading order.
func threadToDetail(t store.ThreadSummary, posts []models.Post, interactions []models.Interaction) *threadDetail {
	title := "No title"
	if t.Title != nil && *t.Title != "" {
		title = *t.Title
	}
	names := map[string]string{}
	for _, p := range posts {
		names[p.UserID] = p.Username
	}

	var sb strings.Builder
	sb.WriteString("## Reply graph\n\n")
	edges := infer.Aggregate(interactions)
	if len(edges) == 0 {
		sb.WriteString("No replies detected.\n")
	}
	for _, e := range edges {
		fmt.Fprintf(&sb, "- **%s** → **%s**: %s, weight %.1f\n",
			escape(nameOr(names, e.SourceUserID)), escape(nameOr(names, e.TargetUserID)), typeCounts(e.Types), e.Weight)
	}
	sb.WriteString("\n## Posts\n\n")
	writePosts(&sb, posts)

	return &threadDetail{
		title: title,
		url:   t.ThreadURL,
		meta: fmt.Sprintf("%s posts • %d members • %d interactions • first seen %s",
			humanize.Comma(int64(len(posts))), len(names), len(interactions), t.FirstSeen.UTC().Format(time.DateOnly)),
		markdown: sb.String(),
	}
}

func searchToDetail(query string, posts []models.Post) *threadDetail {
	var sb strings.Builder
	if len(posts) == 0 {
		sb.WriteString("No posts match.\n")
	}
	writePosts(&sb, posts)
	return &threadDetail{
		title:    fmt.Sprintf("Search: %q", query),
		meta:     fmt.Sprintf("%s matching posts", humanize.Comma(int64(len(posts)))),
		markdown: sb.String(),
	}
}

func writePosts(sb *strings.Builder, posts []models.Post) {
	for _, p := range posts {
		fmt.Fprintf(sb, "### %s · %s · #%s (thread %s)\n\n", escape(p.Username), p.Timestamp.UTC().Format("2006-01-02 15:04"), p.PostID, p.ThreadID)
		for _, q := range p.Quotes {
			who := q.Username
			if who == "" {
				who = "post " + q.PostID
			}
			fmt.Fprintf(sb, "> quoting %s\n\n", escape(who))
		}
		sb.WriteString(escape(p.Text))
		sb.WriteString("\n\n")
	}
}

func typeCounts(types map[models.InteractionType]int) string {
	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", types[models.InteractionType(k)], k))
	}
	return strings.Join(parts, ", ")
}

func nameOr(names map[string]string, id string) string {
	if n := names[id]; n != "" {
		return n
	}
	return "member " + id
}

var mdEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `#`, `\#`, `>`, `\>`)

// escape keeps forum text from being read as markdown.
func escape(s string) string {
	return mdEscaper.Replace(s)
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
