package model

import (
	"time"

	"github.com/sakif/skyhub/internal/blob"
)

// Post is a member's update on the feed. LikeCount is denormalized and must
// always equal the number of Like rows for the post.
type Post struct {
	ID        string    `json:"id"        db:"id"`
	Title     string    `json:"title"     db:"title"`
	Content   string    `json:"content"   db:"content"`
	ImageRef  *blob.Ref `json:"imageRef"  db:"image_ref"`
	VideoRef  *blob.Ref `json:"videoRef"  db:"video_ref"`
	AuthorID  string    `json:"authorId"  db:"author_id"`
	LikeCount int       `json:"likeCount" db:"like_count"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Comment belongs to one post and one author.
type Comment struct {
	ID        string    `json:"id"        db:"id"`
	Content   string    `json:"content"   db:"content"`
	AuthorID  string    `json:"authorId"  db:"author_id"`
	PostID    string    `json:"postId"    db:"post_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// FeedItem is a post joined with the author fields the feed displays.
type FeedItem struct {
	Post
	AuthorUsername  string   `json:"authorUsername"  db:"author_username"`
	AuthorTrack     *string  `json:"authorTrack"     db:"author_track"`
	AuthorAvatarRef blob.Ref `json:"authorAvatarRef" db:"author_avatar_ref"`
	AuthorAvailable bool     `json:"authorAvailable" db:"author_available"`
}

// FeedFilter narrows the feed. Zero values mean "no filter".
type FeedFilter struct {
	Track         string
	AvailableOnly bool
}

// ToggleResult is the outcome of a like toggle.
type ToggleResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}
