package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/repository"
)

// DiscoveryService answers the read side: the feed, member search, profile
// pages and post detail.
type DiscoveryService struct {
	members  repository.MemberRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	likes    repository.LikeRepository
	logger   *slog.Logger
}

// NewDiscoveryService creates a DiscoveryService.
func NewDiscoveryService(
	members repository.MemberRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	likes repository.LikeRepository,
	logger *slog.Logger,
) *DiscoveryService {
	return &DiscoveryService{
		members:  members,
		posts:    posts,
		comments: comments,
		likes:    likes,
		logger:   logger,
	}
}

// Feed lists posts with their authors, newest first.
func (s *DiscoveryService) Feed(ctx context.Context, f model.FeedFilter) ([]model.FeedItem, error) {
	f.Track = strings.TrimSpace(f.Track)
	items, err := s.posts.ListFeed(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: listing feed: %w", err)
	}
	return items, nil
}

// Discover searches other members. The requester never appears in their own
// results.
func (s *DiscoveryService) Discover(ctx context.Context, requesterID string, f model.MemberFilter) ([]model.Member, error) {
	f.ExcludeID = requesterID
	f.Search = strings.TrimSpace(f.Search)
	f.Track = strings.TrimSpace(f.Track)

	members, err := s.members.ListMembers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: listing members: %w", err)
	}
	return members, nil
}

// ProfilePage is a member with their posts and the likes those posts earned.
type ProfilePage struct {
	Member     *model.Member `json:"member"`
	Posts      []model.Post  `json:"posts"`
	TotalLikes int           `json:"totalLikes"`
}

// Profile returns the member, their posts newest first and the likes
// those posts have received in total.
func (s *DiscoveryService) Profile(ctx context.Context, memberID string) (*ProfilePage, error) {
	if memberID == "" {
		return nil, apperror.ValidationFailed("id", "member id is required")
	}

	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: fetching member %s: %w", memberID, err)
	}
	posts, err := s.posts.ListPostsByAuthor(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: listing posts of %s: %w", memberID, err)
	}

	page := &ProfilePage{Member: m, Posts: posts}
	for _, p := range posts {
		page.TotalLikes += p.LikeCount
	}
	return page, nil
}

// PostDetail is a post with its comments (oldest first) and whether the
// viewer has liked it.
type PostDetail struct {
	Post     *model.Post     `json:"post"`
	Author   *model.Member   `json:"author"`
	Comments []model.Comment `json:"comments"`
	Liked    bool            `json:"liked"`
}

// PostDetail works for anonymous viewers too; Liked is then false.
func (s *DiscoveryService) PostDetail(ctx context.Context, viewerID, postID string) (*PostDetail, error) {
	p, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: fetching post %s: %w", postID, err)
	}
	author, err := s.members.GetMember(ctx, p.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: fetching author of %s: %w", postID, err)
	}
	comments, err := s.comments.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: listing comments of %s: %w", postID, err)
	}

	detail := &PostDetail{Post: p, Author: author, Comments: comments}
	if viewerID != "" {
		if detail.Liked, err = s.likes.HasLiked(ctx, viewerID, postID); err != nil {
			return nil, fmt.Errorf("service/discovery: checking like: %w", err)
		}
	}
	return detail, nil
}
