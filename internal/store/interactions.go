package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/models"
)

const interactionColumns = `interaction_id, replying_post_id, target_post_id, source_user_id, target_user_id,
	thread_id, interaction_type, confidence, scraped_at`

// ReplaceInteractions swaps the interaction set of a thread for set in one
// transaction. Readers see either the old set or the new one.
func (s *Store) ReplaceInteractions(ctx context.Context, threadID string, set []models.Interaction) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM interactions WHERE thread_id = ?`, threadID); err != nil {
			return err
		}
		for _, in := range set {
			in.ThreadID = threadID
			in.ScrapedAt = s.stamp(in.ScrapedAt)
			if _, err := tx.NamedExecContext(ctx, `INSERT OR REPLACE INTO interactions (`+interactionColumns+`)
				VALUES (:interaction_id, :replying_post_id, :target_post_id, :source_user_id, :target_user_id,
					:thread_id, :interaction_type, :confidence, :scraped_at)`, in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return crawlerr.Persistence("replace interactions of thread "+threadID, err)
	}
	return nil
}

func (s *Store) ThreadInteractions(ctx context.Context, threadID string) ([]models.Interaction, error) {
	var out []models.Interaction
	if err := s.db.SelectContext(ctx, &out, `SELECT `+interactionColumns+` FROM interactions
		WHERE thread_id = ? ORDER BY CAST(replying_post_id AS INTEGER), interaction_type, target_user_id`, threadID); err != nil {
		return nil, crawlerr.Persistence("list interactions of thread "+threadID, err)
	}
	return out, nil
}

// UserInteractions returns the edges a member sent or received.
func (s *Store) UserInteractions(ctx context.Context, userID string) ([]models.Interaction, error) {
	var out []models.Interaction
	if err := s.db.SelectContext(ctx, &out, `SELECT `+interactionColumns+` FROM interactions
		WHERE source_user_id = ? OR target_user_id = ?
		ORDER BY scraped_at DESC, interaction_id`, userID, userID); err != nil {
		return nil, crawlerr.Persistence("list interactions of user "+userID, err)
	}
	return out, nil
}

func (s *Store) AllInteractions(ctx context.Context) ([]models.Interaction, error) {
	var out []models.Interaction
	if err := s.db.SelectContext(ctx, &out, `SELECT `+interactionColumns+` FROM interactions
		ORDER BY thread_id, CAST(replying_post_id AS INTEGER), interaction_type, target_user_id`); err != nil {
		return nil, crawlerr.Persistence("list interactions", err)
	}
	return out, nil
}
