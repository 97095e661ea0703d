package crawl

import (
	"context"

	"forumgraph/internal/infer"
)

// DeriveThread recomputes the interactions of a thread from its committed
// posts and replaces the stored set. It returns the number of edges.
func (c *Coordinator) DeriveThread(ctx context.Context, threadID string) (int, error) {
	posts, err := c.store.ThreadPosts(ctx, threadID)
	if err != nil {
		return 0, err
	}
	edges := infer.Derive(posts, infer.Options{
		ImplicitReply: c.opts.ImplicitReply,
		Now:           c.now(),
		Logger:        c.log,
	})
	if err := c.store.ReplaceInteractions(ctx, threadID, edges); err != nil {
		return 0, err
	}
	return len(edges), nil
}

// DeriveAll re-derives every known thread.
func (c *Coordinator) DeriveAll(ctx context.Context) (*Report, error) {
	r := &Report{}
	ids, err := c.store.ThreadIDs(ctx)
	if err != nil {
		return r, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		n, err := c.DeriveThread(ctx, id)
		if err != nil {
			r.fail(id, "interactions", err)
			continue
		}
		r.addInteractions(n)
	}
	return r, nil
}
