package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/xid"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

const commentColumns = `id, content, author_id, post_id, created_at, updated_at`

// CreateComment returns NotFound when the post has gone away in the meantime.
func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	res, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO comments (`+commentColumns+`)
		 SELECT :id, :content, :author_id, :post_id, :created_at, :updated_at
		 WHERE EXISTS (SELECT 1 FROM posts WHERE id = :post_id)`,
		c,
	)
	if err != nil {
		return mapError("creating comment", err)
	}
	return requireAffected(res, "post", c.PostID)
}

func (db *DB) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	err := db.conn.GetContext(ctx, &c, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, mapError("getting comment", err)
	}
	return &c, nil
}

func (db *DB) UpdateComment(ctx context.Context, c *model.Comment) error {
	c.UpdatedAt = now()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
		c.Content, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return mapError("updating comment", err)
	}
	return requireAffected(res, "comment", c.ID)
}

func (db *DB) DeleteComment(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return mapError("deleting comment", err)
	}
	return requireAffected(res, "comment", id)
}

func (db *DB) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	comments := make([]model.Comment, 0)
	err := db.conn.SelectContext(ctx, &comments,
		`SELECT `+commentColumns+` FROM comments
		 WHERE post_id = ?
		 ORDER BY created_at ASC, id ASC`,
		postID,
	)
	if err != nil {
		return nil, mapError("listing comments", err)
	}
	return comments, nil
}
