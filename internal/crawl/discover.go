package crawl

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/ident"
	"forumgraph/internal/models"
	"forumgraph/internal/parse"
)

// DiscoverThreads lists the thread URLs of the configured forum, either by
// walking its listing pages or from its RSS feed. A failure on the first
// listing page is returned; later pages are reported and end the walk.
func (c *Coordinator) DiscoverThreads(ctx context.Context, r *Report) ([]string, error) {
	if c.opts.UseFeed {
		return c.discoverFeed(ctx)
	}
	return c.discoverListing(ctx, r)
}

func (c *Coordinator) discoverListing(ctx context.Context, r *Report) ([]string, error) {
	var (
		urls    []string
		seen    = map[string]bool{}
		visited = map[string]bool{}
		pageURL = c.opts.ForumURL
	)
	for page := 1; pageURL != "" && !visited[pageURL]; page++ {
		if c.opts.MaxForumPages > 0 && page > c.opts.MaxForumPages {
			break
		}
		visited[pageURL] = true

		doc, err := c.page(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			r.fail(pageURL, "listing", err)
			break
		}
		for _, link := range doc.ThreadLinks() {
			base, err := ident.ThreadBaseURL(link)
			if err != nil {
				r.fail(link, "listing", err)
				continue
			}
			if seen[base] {
				continue
			}
			seen[base] = true
			urls = append(urls, base)
			if c.opts.ThreadLimit > 0 && len(urls) >= c.opts.ThreadLimit {
				return urls, nil
			}
		}
		c.log.Debug("listing page parsed", "url", pageURL, "threads", len(urls))
		pageURL = doc.NextPage()
	}
	return urls, nil
}

// FeedURL is where XenForo publishes a forum's feed.
func FeedURL(forumURL string) string {
	return strings.TrimRight(forumURL, "/") + "/index.rss"
}

func (c *Coordinator) discoverFeed(ctx context.Context) ([]string, error) {
	feedURL := FeedURL(c.opts.ForumURL)
	body, err := c.fetch.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	var urls []string
	seen := map[string]bool{}
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		base, err := ident.ThreadBaseURL(ident.AbsoluteURL(c.opts.ForumURL, it.Link))
		if err != nil || seen[base] {
			continue
		}
		seen[base] = true
		urls = append(urls, base)
		if c.opts.ThreadLimit > 0 && len(urls) >= c.opts.ThreadLimit {
			break
		}
	}
	c.log.Debug("feed parsed", "url", feedURL, "items", len(feed.Items), "threads", len(urls))
	return urls, nil
}

// Forums lists the sub-forums on a forum directory page.
func (c *Coordinator) Forums(ctx context.Context, indexURL string) ([]models.Forum, error) {
	doc, err := c.page(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	return doc.Forums(), nil
}

func (c *Coordinator) page(ctx context.Context, url string) (*parse.Document, error) {
	body, err := c.fetch.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := parse.Parse(body, url)
	if err != nil {
		return nil, crawlerr.Extraction(url, "unparseable page", err)
	}
	return doc, nil
}
