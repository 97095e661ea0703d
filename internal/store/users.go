package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/models"
)

const userColumns = `user_id, username, profile_url, join_date, role, gender, country_of_birth, location,
	mbti_type, enneagram_type, socionics, occupation, replies, discussions_created, reaction_score,
	points, media_count, showcase_count, username_source, first_seen, scraped_at`

const userValues = `:user_id, :username, :profile_url, :join_date, :role, :gender, :country_of_birth, :location,
	:mbti_type, :enneagram_type, :socionics, :occupation, :replies, :discussions_created, :reaction_score,
	:points, :media_count, :showcase_count, :username_source, :first_seen, :scraped_at`

// UpsertUser records a snapshot of u. A later snapshot overwrites the stored
// one in full, nil fields included; only first_seen survives.
func (s *Store) UpsertUser(ctx context.Context, u models.User) (models.CommitResult, error) {
	if u.UserID == "" {
		return 0, crawlerr.Persistence("user without id", nil)
	}
	seen := s.stamp(u.ScrapedAt)
	u.ScrapedAt = seen
	if u.UsernameSource == 0 {
		u.UsernameSource = models.UsernameDisplay
	}
	if u.JoinDate != nil {
		jd := u.JoinDate.UTC()
		u.JoinDate = &jd
	}

	var result models.CommitResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var firstSeen time.Time
		err := tx.GetContext(ctx, &firstSeen, `SELECT first_seen FROM users WHERE user_id = ?`, u.UserID)
		switch {
		case notFound(err):
			u.FirstSeen = seen
			result = models.Inserted
			_, err = tx.NamedExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (`+userValues+`)`, u)
			return err
		case err != nil:
			return err
		}

		result = models.Updated
		u.FirstSeen = firstSeen
		_, err = tx.NamedExecContext(ctx, `UPDATE users SET
				username = :username,
				profile_url = :profile_url,
				join_date = :join_date,
				role = :role,
				gender = :gender,
				country_of_birth = :country_of_birth,
				location = :location,
				mbti_type = :mbti_type,
				enneagram_type = :enneagram_type,
				socionics = :socionics,
				occupation = :occupation,
				replies = :replies,
				discussions_created = :discussions_created,
				reaction_score = :reaction_score,
				points = :points,
				media_count = :media_count,
				showcase_count = :showcase_count,
				username_source = :username_source,
				scraped_at = :scraped_at
			WHERE user_id = :user_id`, u)
		return err
	})
	if err != nil {
		return 0, crawlerr.Persistence("upsert user "+u.UserID, err)
	}
	return result, nil
}

// GetUser returns the member or nil when unknown.
func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, crawlerr.Persistence("get user "+userID, err)
	}
	return &u, nil
}

// UserScrapedAt reports when the member profile was last refreshed.
func (s *Store) UserScrapedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	var at time.Time
	err := s.db.GetContext(ctx, &at, `SELECT scraped_at FROM users WHERE user_id = ?`, userID)
	if notFound(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, crawlerr.Persistence("get user "+userID, err)
	}
	return at, true, nil
}

func (s *Store) AllUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := s.db.SelectContext(ctx, &out, `SELECT `+userColumns+` FROM users ORDER BY CAST(user_id AS INTEGER), user_id`); err != nil {
		return nil, crawlerr.Persistence("list users", err)
	}
	return out, nil
}
