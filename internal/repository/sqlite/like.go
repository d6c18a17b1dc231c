package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/repository"
)

var _ repository.LikeRepository = (*DB)(nil)

// ToggleLike removes the like if present and adds it otherwise. The like row
// and the counter change commit together or not at all. If a concurrent
// toggle inserted the same pair first, the (member_id, post_id) primary key
// rejects the insert with a *repository.UniqueViolation and nothing is
// written; the caller may simply run the toggle again.
func (db *DB) ToggleLike(ctx context.Context, memberID, postID string) (*model.ToggleResult, error) {
	var result model.ToggleResult

	err := db.withTx(ctx, "toggling like", func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = ?)`, postID); err != nil {
			return mapError("toggling like: reading post", err)
		}
		if !exists {
			return apperror.NotFound("post", postID)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM likes WHERE member_id = ? AND post_id = ?`,
			memberID, postID,
		)
		if err != nil {
			return mapError("toggling like: removing like", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return mapError("toggling like: reading rows affected", err)
		}

		if removed > 0 {
			// Clamped so a counter that drifted low never goes negative.
			_, err = tx.ExecContext(ctx,
				`UPDATE posts SET like_count = MAX(like_count - 1, 0) WHERE id = ?`, postID)
			if err != nil {
				return mapError("toggling like: decrementing counter", err)
			}
			result.Liked = false
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO likes (member_id, post_id, created_at) VALUES (?, ?, ?)`,
				memberID, postID, now())
			if err != nil {
				return mapError("toggling like: adding like", err)
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE posts SET like_count = like_count + 1 WHERE id = ?`, postID)
			if err != nil {
				return mapError("toggling like: incrementing counter", err)
			}
			result.Liked = true
		}

		if err := tx.GetContext(ctx, &result.LikeCount, `SELECT like_count FROM posts WHERE id = ?`, postID); err != nil {
			return mapError("toggling like: reading counter", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (db *DB) HasLiked(ctx context.Context, memberID, postID string) (bool, error) {
	var liked bool
	err := db.conn.GetContext(ctx, &liked,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE member_id = ? AND post_id = ?)`,
		memberID, postID,
	)
	if err != nil {
		return false, mapError("checking like", err)
	}
	return liked, nil
}

func (db *DB) ReconcileLikeCounts(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE posts
		 SET like_count = (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id)
		 WHERE like_count != (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id)`,
	)
	if err != nil {
		return 0, mapError("reconciling like counts", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError("reconciling like counts", err)
	}
	return n, nil
}
