// Package crawl is the upsert coordinator. It walks forum listings and
// thread pages through a Fetcher, extracts records, commits them in
// Thread, Users, Posts order and re-derives a thread's interactions once
// all of its pages are committed.
package crawl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"forumgraph/internal/models"
	"forumgraph/internal/store"
)

// Fetcher yields raw page bodies. *fetch.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Options struct {
	ForumURL string
	// Page and thread caps; zero means unlimited.
	MaxForumPages   int
	ThreadLimit     int
	ThreadPageLimit int
	// Workers crawl threads in parallel. Requests stay paced by the fetcher.
	Workers          int
	UseFeed          bool
	ImplicitReply    bool
	UserRefreshAfter time.Duration
	Now              func() time.Time
	Logger           *slog.Logger
}

type Coordinator struct {
	fetch Fetcher
	store *store.Store
	opts  Options
	log   *slog.Logger

	flight singleflight.Group
	mu     sync.Mutex
	users  map[string]resolvedUser
}

// New builds a coordinator. The per-run user cache lives as long as the
// coordinator does.
func New(f Fetcher, s *store.Store, opts Options) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		fetch: f,
		store: s,
		opts:  opts,
		log:   opts.Logger.With("component", "crawl"),
		users: map[string]resolvedUser{},
	}
}

func (c *Coordinator) now() time.Time {
	return c.opts.Now().UTC()
}

// ResetCache forgets the users resolved so far, e.g. between daemon runs.
func (c *Coordinator) ResetCache() {
	c.mu.Lock()
	c.users = map[string]resolvedUser{}
	c.mu.Unlock()
}

func (c *Coordinator) cached(userID string) (resolvedUser, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[userID]
	return u, ok
}

func (c *Coordinator) remember(u resolvedUser) {
	c.mu.Lock()
	c.users[u.user.UserID] = u
	c.mu.Unlock()
}

// commit upserts and tallies one record, reporting rather than returning a
// failure.
func commit[T any](ctx context.Context, r *Report, entity, url string, rec T,
	upsert func(context.Context, T) (models.CommitResult, error)) bool {
	res, err := upsert(ctx, rec)
	if err != nil {
		r.fail(url, entity, err)
		return false
	}
	r.count(entity, res)
	return true
}
