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

var _ repository.PostRepository = (*DB)(nil)

const postColumns = `id, title, content, image_ref, video_ref, author_id, like_count, created_at, updated_at`

// CreatePost always starts the counter at zero, whatever p carries.
func (db *DB) CreatePost(ctx context.Context, p *model.Post) error {
	p.ID = xid.New().String()
	p.LikeCount = 0
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (:id, :title, :content, :image_ref, :video_ref, :author_id, :like_count, :created_at, :updated_at)`,
		p,
	)
	if err != nil {
		return mapError("creating post", err)
	}
	return nil
}

func (db *DB) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := db.conn.GetContext(ctx, &p, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, mapError("getting post", err)
	}
	return &p, nil
}

// UpdatePost writes title, content and media. like_count is owned by the
// like toggle and is never written here.
func (db *DB) UpdatePost(ctx context.Context, p *model.Post) error {
	p.UpdatedAt = now()

	res, err := db.conn.NamedExecContext(ctx,
		`UPDATE posts SET
			title = :title,
			content = :content,
			image_ref = :image_ref,
			video_ref = :video_ref,
			updated_at = :updated_at
		 WHERE id = :id`,
		p,
	)
	if err != nil {
		return mapError("updating post", err)
	}
	return requireAffected(res, "post", p.ID)
}

// DeletePost removes the post; comments and likes go with it by cascade.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return mapError("deleting post", err)
	}
	return requireAffected(res, "post", id)
}

func (db *DB) ListPostsByAuthor(ctx context.Context, authorID string) ([]model.Post, error) {
	posts := make([]model.Post, 0)
	err := db.conn.SelectContext(ctx, &posts,
		`SELECT `+postColumns+` FROM posts
		 WHERE author_id = ?
		 ORDER BY created_at DESC, id DESC`,
		authorID,
	)
	if err != nil {
		return nil, mapError("listing posts by author", err)
	}
	return posts, nil
}
