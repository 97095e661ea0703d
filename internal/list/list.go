package list

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"forumgraph/internal/store"
)

// Reader is the part of the store the listing needs.
type Reader interface {
	Summary(ctx context.Context) (store.Summary, error)
	RecentThreads(ctx context.Context, limit int) ([]store.ThreadSummary, error)
}

type Options struct {
	Limit int
	JSON  bool
	Now   func() time.Time
}

type listing struct {
	store.Summary
	Threads []store.ThreadSummary `json:"recent_threads"`
}

// Run prints the crawl summary followed by the most recently scraped threads.
func Run(ctx context.Context, r Reader, w io.Writer, opts Options) error {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sum, err := r.Summary(ctx)
	if err != nil {
		return err
	}
	threads, err := r.RecentThreads(ctx, opts.Limit)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing{Summary: sum, Threads: threads})
	}

	if sum.Threads == 0 {
		fmt.Fprintln(w, "No threads crawled yet.")
		fmt.Fprintln(w, "Hint: run 'forumgraph crawl --forum-url <listing url>' first.")
		return nil
	}

	now := opts.Now()
	fmt.Fprintf(w, "%s threads, %s posts, %s users, %s interactions\n",
		humanize.Comma(int64(sum.Threads)), humanize.Comma(int64(sum.Posts)),
		humanize.Comma(int64(sum.Users)), humanize.Comma(int64(sum.Interactions)))
	if sum.LastScrape != nil {
		fmt.Fprintf(w, "Last scrape: %s\n", humanize.RelTime(*sum.LastScrape, now, "ago", "from now"))
	}
	fmt.Fprintln(w)

	for _, t := range threads {
		title := "No title"
		if t.Title != nil {
			title = *t.Title
		}
		fmt.Fprintf(w, "ID: %s\n", t.ThreadID)
		fmt.Fprintf(w, "Title: %s\n", title)
		fmt.Fprintf(w, "URL: %s\n", t.ThreadURL)
		fmt.Fprintf(w, "Posts: %s  Participants: %d  Interactions: %d\n",
			humanize.Comma(int64(t.Posts)), t.Participants, t.Interactions)
		fmt.Fprintf(w, "Scraped: %s\n", humanize.RelTime(t.ScrapedAt, now, "ago", "from now"))
		fmt.Fprintln(w, strings.Repeat("-", 80))
	}
	return nil
}
