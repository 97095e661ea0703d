package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/models"
)

const postColumns = `post_id, thread_id, page_url, user_id, username, username_source, "timestamp", text, position, first_seen, scraped_at`

// UpsertPost records a sighting of p. Text, timestamp and author are fixed
// by the first sighting. A repeat refreshes scraped_at and may replace the
// username, but only with one from an equal or better source.
func (s *Store) UpsertPost(ctx context.Context, p models.Post) (models.CommitResult, error) {
	if p.PostID == "" || p.ThreadID == "" || p.UserID == "" {
		return 0, crawlerr.Persistence("post without id, thread or user", nil)
	}
	if p.UsernameSource == 0 {
		p.UsernameSource = models.UsernameDisplay
	}
	seen := s.stamp(p.ScrapedAt)
	p.ScrapedAt = seen
	p.Timestamp = p.Timestamp.UTC()

	var result models.CommitResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var old models.Post
		err := tx.GetContext(ctx, &old, `SELECT `+postColumns+` FROM posts WHERE post_id = ?`, p.PostID)
		switch {
		case notFound(err):
			p.FirstSeen = seen
			result = models.Inserted
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO posts (`+postColumns+`)
				VALUES (:post_id, :thread_id, :page_url, :user_id, :username, :username_source, :timestamp, :text, :position, :first_seen, :scraped_at)`, p); err != nil {
				return err
			}
			return insertQuotes(ctx, tx, p.PostID, p.Quotes)
		case err != nil:
			return err
		}

		result = models.Updated
		username, source := old.Username, old.UsernameSource
		if p.Username != "" && p.UsernameSource >= old.UsernameSource {
			username, source = p.Username, p.UsernameSource
		}
		_, err = tx.ExecContext(ctx, `UPDATE posts SET username = ?, username_source = ?, scraped_at = ? WHERE post_id = ?`,
			username, source, seen, p.PostID)
		return err
	})
	if err != nil {
		return 0, crawlerr.Persistence("upsert post "+p.PostID, err)
	}
	return result, nil
}

func insertQuotes(ctx context.Context, tx *sqlx.Tx, postID string, quotes []models.QuoteRef) error {
	for i, q := range quotes {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO post_quotes (post_id, seq, username, quoted_post_id, quoted_user_id)
			VALUES (?, ?, ?, ?, ?)`, postID, i, q.Username, q.PostID, q.UserID); err != nil {
			return err
		}
	}
	return nil
}

// UpgradeUsernames stamps the canonical name of a member onto every post
// they wrote. Display names never replace it afterwards.
func (s *Store) UpgradeUsernames(ctx context.Context, userID, canonical string) (int64, error) {
	if userID == "" || canonical == "" {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET username = ?, username_source = ?
		WHERE user_id = ? AND (username_source < ? OR username <> ?)`,
		canonical, models.UsernameCanonical, userID, models.UsernameCanonical, canonical)
	if err != nil {
		return 0, crawlerr.Persistence("upgrade usernames for "+userID, err)
	}
	return res.RowsAffected()
}

// GetPost returns the post with its quotes, or nil when unknown.
func (s *Store) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var p models.Post
	err := s.db.GetContext(ctx, &p, `SELECT `+postColumns+` FROM posts WHERE post_id = ?`, postID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, crawlerr.Persistence("get post "+postID, err)
	}
	if err := s.db.SelectContext(ctx, &p.Quotes, `SELECT username, quoted_post_id, quoted_user_id
		FROM post_quotes WHERE post_id = ? ORDER BY seq`, postID); err != nil {
		return nil, crawlerr.Persistence("get quotes of "+postID, err)
	}
	return &p, nil
}

// ThreadPosts returns every committed post of a thread, quotes attached, in
// reading order.
func (s *Store) ThreadPosts(ctx context.Context, threadID string) ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.SelectContext(ctx, &posts, `SELECT `+postColumns+` FROM posts
		WHERE thread_id = ? ORDER BY "timestamp", CAST(post_id AS INTEGER), position`, threadID); err != nil {
		return nil, crawlerr.Persistence("list posts of thread "+threadID, err)
	}

	var rows []struct {
		PostID string `db:"post_id"`
		models.QuoteRef
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT q.post_id, q.username, q.quoted_post_id, q.quoted_user_id
		FROM post_quotes q JOIN posts p ON p.post_id = q.post_id
		WHERE p.thread_id = ? ORDER BY q.post_id, q.seq`, threadID); err != nil {
		return nil, crawlerr.Persistence("list quotes of thread "+threadID, err)
	}
	byPost := make(map[string][]models.QuoteRef, len(rows))
	for _, r := range rows {
		byPost[r.PostID] = append(byPost[r.PostID], r.QuoteRef)
	}
	for i := range posts {
		posts[i].Quotes = byPost[posts[i].PostID]
	}
	return posts, nil
}

// UserPosts returns the latest posts written by a member.
func (s *Store) UserPosts(ctx context.Context, userID string, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	var posts []models.Post
	if err := s.db.SelectContext(ctx, &posts, `SELECT `+postColumns+` FROM posts
		WHERE user_id = ? ORDER BY "timestamp" DESC LIMIT ?`, userID, limit); err != nil {
		return nil, crawlerr.Persistence("list posts of user "+userID, err)
	}
	return posts, nil
}

// SearchPosts does a case-insensitive substring search over post text.
func (s *Store) SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	var posts []models.Post
	if err := s.db.SelectContext(ctx, &posts, `SELECT `+postColumns+` FROM posts
		WHERE text LIKE '%' || ? || '%' OR username LIKE '%' || ? || '%'
		ORDER BY "timestamp" DESC LIMIT ?`, query, query, limit); err != nil {
		return nil, crawlerr.Persistence("search posts", err)
	}
	return posts, nil
}

func (s *Store) AllPosts(ctx context.Context) ([]models.Post, error) {
	var out []models.Post
	if err := s.db.SelectContext(ctx, &out, `SELECT `+postColumns+` FROM posts
		ORDER BY thread_id, "timestamp", CAST(post_id AS INTEGER)`); err != nil {
		return nil, crawlerr.Persistence("list posts", err)
	}
	return out, nil
}
