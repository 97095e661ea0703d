package crawl

import (
	"context"

	"golang.org/x/sync/errgroup"

	"forumgraph/internal/extract"
	"forumgraph/internal/ident"
	"forumgraph/internal/models"
	"forumgraph/internal/parse"
)

// CrawlForum discovers the forum's threads and crawls each of them. Only a
// failure to read the forum itself is returned; everything else lands in
// the report.
func (c *Coordinator) CrawlForum(ctx context.Context) (*Report, error) {
	r := &Report{}
	urls, err := c.DiscoverThreads(ctx, r)
	if err != nil {
		return r, err
	}
	c.log.Info("threads discovered", "forum_url", c.opts.ForumURL, "threads", len(urls), "workers", c.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for _, u := range urls {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			c.crawlThread(gctx, u, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r, err
	}
	return r, ctx.Err()
}

// CrawlThread crawls every page of one thread and derives its interactions.
func (c *Coordinator) CrawlThread(ctx context.Context, threadURL string) (*Report, error) {
	r := &Report{}
	if _, err := ident.ThreadIDFromURL(threadURL); err != nil {
		return r, err
	}
	c.crawlThread(ctx, threadURL, r)
	return r, ctx.Err()
}

func (c *Coordinator) crawlThread(ctx context.Context, threadURL string, r *Report) {
	log := c.log.With("thread_url", threadURL)
	complete := true
	visited := map[string]bool{}
	var threadID string

	pageURL := threadURL
	for pages := 0; pageURL != "" && !visited[pageURL]; pages++ {
		if c.opts.ThreadPageLimit > 0 && pages >= c.opts.ThreadPageLimit {
			break
		}
		if ctx.Err() != nil {
			return
		}
		visited[pageURL] = true

		doc, err := c.page(ctx, pageURL)
		if err != nil {
			log.Warn("thread page failed", "source_url", pageURL, "error", err)
			r.fail(pageURL, "thread_page", err)
			complete = false
			break
		}

		if pages == 0 {
			th, err := extract.Thread(threadURL, c.opts.ForumURL, doc.Title(), c.now())
			if err != nil {
				r.fail(threadURL, "thread", err)
				return
			}
			if !commit(ctx, r, "thread", threadURL, th, c.store.UpsertThread) {
				return
			}
			threadID = th.ThreadID
		}

		c.crawlPage(ctx, doc, extract.Source{
			ThreadURL: threadURL,
			ThreadID:  threadID,
			PageURL:   pageURL,
			ScrapedAt: c.now(),
		}, r)
		pageURL = doc.NextPage()
	}

	if threadID == "" {
		return
	}
	if !complete {
		log.Warn("thread incomplete, interactions not derived", "thread_id", threadID)
		return
	}
	n, err := c.DeriveThread(ctx, threadID)
	if err != nil {
		log.Warn("derivation failed", "thread_id", threadID, "error", err)
		r.fail(threadURL, "interactions", err)
		return
	}
	r.addInteractions(n)
	log.Info("thread crawled", "thread_id", threadID, "pages", len(visited), "interactions", n)
}

// crawlPage extracts the posts of one page, commits their authors and then
// the posts themselves.
func (c *Coordinator) crawlPage(ctx context.Context, doc *parse.Document, src extract.Source, r *Report) {
	var candidates []extract.PostCandidate
	for _, block := range doc.PostBlocks() {
		cand, err := extract.Post(block, src)
		if err != nil {
			c.log.Warn("post skipped", "source_url", src.PageURL, "fragment_kind", "post", "error", err)
			r.fail(src.PageURL, "post", err)
			continue
		}
		candidates = append(candidates, cand)
	}

	names := map[string]string{}
	for _, cand := range candidates {
		if _, ok := names[cand.Post.UserID]; ok {
			continue
		}
		u, ok := c.resolveUser(ctx, cand.ProfileURL, cand.Post.Username, false, r)
		if ok && u.canonical {
			names[cand.Post.UserID] = *u.user.Username
		} else {
			names[cand.Post.UserID] = ""
		}
	}

	for _, cand := range candidates {
		p := cand.Post
		if name := names[p.UserID]; name != "" {
			p.Username = name
			p.UsernameSource = models.UsernameCanonical
		}
		commit(ctx, r, "post", src.PageURL, p, c.store.UpsertPost)
	}
}
