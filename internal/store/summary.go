package store

import (
	"context"
	"time"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/models"
)

// Summary counts what the database holds.
type Summary struct {
	Threads      int        `db:"threads" json:"threads"`
	Posts        int        `db:"posts" json:"posts"`
	Users        int        `db:"users" json:"users"`
	Interactions int        `db:"interactions" json:"interactions"`
	LastScrape   *time.Time `db:"-" json:"last_scrape,omitempty"`
}

func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.GetContext(ctx, &sum, `SELECT
		(SELECT COUNT(*) FROM threads) AS threads,
		(SELECT COUNT(*) FROM posts) AS posts,
		(SELECT COUNT(*) FROM users) AS users,
		(SELECT COUNT(*) FROM interactions) AS interactions`)
	if err != nil {
		return Summary{}, crawlerr.Persistence("summarize", err)
	}
	var last []time.Time
	if err := s.db.SelectContext(ctx, &last, `SELECT scraped_at FROM threads ORDER BY scraped_at DESC LIMIT 1`); err != nil {
		return Summary{}, crawlerr.Persistence("summarize", err)
	}
	if len(last) == 1 {
		sum.LastScrape = &last[0]
	}
	return sum, nil
}

// ThreadSummary is a thread with its post and edge counts.
type ThreadSummary struct {
	models.Thread
	Posts        int `db:"post_count" json:"posts"`
	Participants int `db:"participant_count" json:"participants"`
	Interactions int `db:"interaction_count" json:"interactions"`
}

// RecentThreads lists the most recently scraped threads.
func (s *Store) RecentThreads(ctx context.Context, limit int) ([]ThreadSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ThreadSummary
	err := s.db.SelectContext(ctx, &out, `SELECT t.thread_id, t.thread_url, t.forum_url, t.title,
			t.first_seen, t.last_seen, t.scraped_at,
			(SELECT COUNT(*) FROM posts p WHERE p.thread_id = t.thread_id) AS post_count,
			(SELECT COUNT(DISTINCT p.user_id) FROM posts p WHERE p.thread_id = t.thread_id) AS participant_count,
			(SELECT COUNT(*) FROM interactions i WHERE i.thread_id = t.thread_id) AS interaction_count
		FROM threads t
		ORDER BY t.scraped_at DESC, t.thread_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, crawlerr.Persistence("list recent threads", err)
	}
	return out, nil
}
