package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/models"
)

const threadColumns = `thread_id, thread_url, forum_url, title, first_seen, last_seen, scraped_at`

// UpsertThread records a sighting of t. A first sighting sets first_seen,
// last_seen and scraped_at to the sighting time; a repeat keeps first_seen
// and refreshes the other two.
func (s *Store) UpsertThread(ctx context.Context, t models.Thread) (models.CommitResult, error) {
	if t.ThreadID == "" || t.ThreadURL == "" {
		return 0, crawlerr.Persistence("thread without id or url", nil)
	}
	seen := s.stamp(t.ScrapedAt)
	t.LastSeen, t.ScrapedAt = seen, seen

	var result models.CommitResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var old models.Thread
		err := tx.GetContext(ctx, &old, `SELECT `+threadColumns+` FROM threads WHERE thread_id = ?`, t.ThreadID)
		switch {
		case notFound(err):
			t.FirstSeen = seen
			result = models.Inserted
			_, err = tx.NamedExecContext(ctx, `INSERT INTO threads (`+threadColumns+`)
				VALUES (:thread_id, :thread_url, :forum_url, :title, :first_seen, :last_seen, :scraped_at)`, t)
			return err
		case err != nil:
			return err
		}
		result = models.Updated
		_, err = tx.ExecContext(ctx, `UPDATE threads SET
				thread_url = ?,
				forum_url = COALESCE(?, forum_url),
				title = COALESCE(?, title),
				last_seen = ?,
				scraped_at = ?
			WHERE thread_id = ?`,
			t.ThreadURL, t.ForumURL, t.Title, seen, seen, t.ThreadID)
		return err
	})
	if err != nil {
		return 0, crawlerr.Persistence("upsert thread "+t.ThreadID, err)
	}
	return result, nil
}

// GetThread returns the thread or nil when it has never been seen.
func (s *Store) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	var t models.Thread
	err := s.db.GetContext(ctx, &t, `SELECT `+threadColumns+` FROM threads WHERE thread_id = ?`, threadID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, crawlerr.Persistence("get thread "+threadID, err)
	}
	return &t, nil
}

// ThreadIDs lists every known thread id.
func (s *Store) ThreadIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT thread_id FROM threads ORDER BY first_seen, thread_id`); err != nil {
		return nil, crawlerr.Persistence("list thread ids", err)
	}
	return ids, nil
}

func (s *Store) AllThreads(ctx context.Context) ([]models.Thread, error) {
	var out []models.Thread
	if err := s.db.SelectContext(ctx, &out, `SELECT `+threadColumns+` FROM threads ORDER BY first_seen, thread_id`); err != nil {
		return nil, crawlerr.Persistence("list threads", err)
	}
	return out, nil
}
