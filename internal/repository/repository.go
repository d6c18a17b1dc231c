// Package repository declares the persistence contracts the services depend
// on. The sqlite subpackage is the only implementation; service tests use
// in-memory fakes.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/skyhub/internal/model"
)

// ErrUniqueViolation is matched by every *UniqueViolation.
var ErrUniqueViolation = errors.New("unique constraint violated")

// ErrBusy means the store could not take its write lock in time. The
// operation touched nothing and may be retried.
var ErrBusy = errors.New("store busy")

// UniqueViolation reports which column rejected an insert or update. The
// uniqueness constraints are the final word on races, so callers branch on
// Column to decide between retrying and giving up.
type UniqueViolation struct {
	Table  string
	Column string
	Err    error
}

func (e *UniqueViolation) Error() string {
	return fmt.Sprintf("unique constraint violated on %s.%s", e.Table, e.Column)
}

func (e *UniqueViolation) Unwrap() error { return e.Err }

func (e *UniqueViolation) Is(target error) bool { return target == ErrUniqueViolation }

// ViolatedColumn returns the column of a UniqueViolation in err's chain.
func ViolatedColumn(err error) (string, bool) {
	var uv *UniqueViolation
	if errors.As(err, &uv) {
		return uv.Column, true
	}
	return "", false
}

// MemberRepository persists members.
type MemberRepository interface {
	// CreateMember assigns ID and timestamps. A taken username, email or
	// external id yields a *UniqueViolation.
	CreateMember(ctx context.Context, m *model.Member) error
	GetMember(ctx context.Context, id string) (*model.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (*model.Member, error)
	GetMemberByExternalID(ctx context.Context, externalID string) (*model.Member, error)
	// IdentityTaken reports whether any member has username OR email.
	IdentityTaken(ctx context.Context, username, email string) (bool, error)
	UpdateMember(ctx context.Context, m *model.Member) error
	LinkExternalID(ctx context.Context, memberID, externalID string) error
	// DeleteMember removes the member and everything they own. Like counters
	// of other members' posts they had liked are decremented in the same
	// transaction.
	DeleteMember(ctx context.Context, id string) error
	ListMembers(ctx context.Context, f model.MemberFilter) ([]model.Member, error)
}

// PostRepository persists posts and serves the feed.
type PostRepository interface {
	CreatePost(ctx context.Context, p *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	UpdatePost(ctx context.Context, p *model.Post) error
	DeletePost(ctx context.Context, id string) error
	ListFeed(ctx context.Context, f model.FeedFilter) ([]model.FeedItem, error)
	ListPostsByAuthor(ctx context.Context, authorID string) ([]model.Post, error)
}

// CommentRepository persists comments.
type CommentRepository interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	UpdateComment(ctx context.Context, c *model.Comment) error
	DeleteComment(ctx context.Context, id string) error
	// ListComments returns a post's comments oldest first.
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)
}

// LikeRepository owns the like set and the denormalized counter.
type LikeRepository interface {
	// ToggleLike flips the (member, post) like and adjusts the post's counter
	// in one transaction.
	ToggleLike(ctx context.Context, memberID, postID string) (*model.ToggleResult, error)
	HasLiked(ctx context.Context, memberID, postID string) (bool, error)
	// ReconcileLikeCounts rewrites every drifted counter from the like set
	// and returns how many posts were corrected.
	ReconcileLikeCounts(ctx context.Context) (int64, error)
}
