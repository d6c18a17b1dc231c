package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/blob"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/repository"
)

const (
	titleFromContentLength = 80
	untitled               = "Untitled"
	ellipsis               = "…"
)

// ContentService owns posts and comments. Every mutation checks that the
// actor is the author before touching storage.
type ContentService struct {
	posts     repository.PostRepository
	comments  repository.CommentRepository
	media     media
	maxUpload int64
	logger    *slog.Logger
}

// NewContentService creates a ContentService. A non-positive maxUpload
// falls back to DefaultMaxUploadSize.
func NewContentService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	store blob.Store,
	maxUpload int64,
	logger *slog.Logger,
) *ContentService {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}
	return &ContentService{
		posts:     posts,
		comments:  comments,
		media:     media{store: store, logger: logger},
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// DeriveTitle returns the first 80 characters of content, trimmed, with an
// ellipsis when content was longer. Empty content gives "Untitled".
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return untitled
	}

	r := []rune(content)
	if len(r) <= titleFromContentLength {
		return content
	}
	return strings.TrimSpace(string(r[:titleFromContentLength])) + ellipsis
}

func (s *ContentService) checkPost(in *PostInput) error {
	in.Title = strings.TrimSpace(in.Title)

	fields := checkStruct(*in)
	fields = checkUpload(postImageUpload, in.Image, s.maxUpload, fields)
	fields = checkUpload(postVideoUpload, in.Video, s.maxUpload, fields)
	return invalid(fields)
}

// CreatePost publishes a post for authorID with like_count zero.
func (s *ContentService) CreatePost(ctx context.Context, authorID string, in PostInput) (*model.Post, error) {
	if authorID == "" {
		return nil, apperror.Forbidden("sign in to post")
	}
	if err := s.checkPost(&in); err != nil {
		return nil, err
	}

	imageRef, err := s.media.put(ctx, in.Image)
	if err != nil {
		return nil, err
	}
	videoRef, err := s.media.put(ctx, in.Video)
	if err != nil {
		s.media.discard(ctx, imageRef)
		return nil, err
	}

	p := &model.Post{
		Title:    in.Title,
		Content:  in.Content,
		ImageRef: imageRef,
		VideoRef: videoRef,
		AuthorID: authorID,
	}
	if p.Title == "" {
		p.Title = DeriveTitle(p.Content)
	}

	if err := s.posts.CreatePost(ctx, p); err != nil {
		s.media.discard(ctx, imageRef, videoRef)
		return nil, fmt.Errorf("service/content: creating post: %w", err)
	}

	s.logger.Info("post created", slog.String("postID", p.ID), slog.String("authorID", authorID))
	return p, nil
}

// GetPost returns the post or a NotFound error.
func (s *ContentService) GetPost(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/content: fetching post %s: %w", id, err)
	}
	return p, nil
}

// ownedPost fetches the post and fails with NotAuthor unless actorID wrote it.
func (s *ContentService) ownedPost(ctx context.Context, actorID, postID string) (*model.Post, error) {
	p, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || p.AuthorID != actorID {
		s.logger.Warn("rejected post mutation by non-author",
			slog.String("postID", postID),
			slog.String("actorID", actorID),
		)
		return nil, apperror.NotAuthor("post", postID)
	}
	return p, nil
}

// EditPost replaces only the fields present in in. An empty title is derived
// from the post's content after the edit.
func (s *ContentService) EditPost(ctx context.Context, actorID, postID string, in PostEdit) (*model.Post, error) {
	p, err := s.ownedPost(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		in.Title = &title
	}
	fields := checkStruct(in)
	fields = checkUpload(postImageUpload, in.Image, s.maxUpload, fields)
	fields = checkUpload(postVideoUpload, in.Video, s.maxUpload, fields)
	if err := invalid(fields); err != nil {
		return nil, err
	}

	imageRef, err := s.media.put(ctx, in.Image)
	if err != nil {
		return nil, err
	}
	videoRef, err := s.media.put(ctx, in.Video)
	if err != nil {
		s.media.discard(ctx, imageRef)
		return nil, err
	}

	oldImage, oldVideo := p.ImageRef, p.VideoRef
	if in.Content != nil {
		p.Content = *in.Content
	}
	if in.Title != nil {
		p.Title = *in.Title
		if p.Title == "" {
			p.Title = DeriveTitle(p.Content)
		}
	}
	if imageRef != nil {
		p.ImageRef = imageRef
	}
	if videoRef != nil {
		p.VideoRef = videoRef
	}

	if err := s.posts.UpdatePost(ctx, p); err != nil {
		s.media.discard(ctx, imageRef, videoRef)
		return nil, fmt.Errorf("service/content: updating post %s: %w", postID, err)
	}

	if imageRef != nil {
		s.media.discard(ctx, oldImage)
	}
	if videoRef != nil {
		s.media.discard(ctx, oldVideo)
	}
	return p, nil
}

// DeletePost removes the post with its comments and likes.
func (s *ContentService) DeletePost(ctx context.Context, actorID, postID string) error {
	p, err := s.ownedPost(ctx, actorID, postID)
	if err != nil {
		return err
	}

	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("service/content: deleting post %s: %w", postID, err)
	}
	s.media.discard(ctx, p.ImageRef, p.VideoRef)

	s.logger.Info("post deleted", slog.String("postID", postID))
	return nil
}

// AddComment fails with EmptyContent when content is blank after trimming.
func (s *ContentService) AddComment(ctx context.Context, authorID, postID, content string) (*model.Comment, error) {
	if authorID == "" {
		return nil, apperror.Forbidden("sign in to comment")
	}
	content, err := checkComment(content)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{Content: content, AuthorID: authorID, PostID: postID}
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("service/content: adding comment to %s: %w", postID, err)
	}
	return c, nil
}

func (s *ContentService) ownedComment(ctx context.Context, actorID, commentID string) (*model.Comment, error) {
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("service/content: fetching comment %s: %w", commentID, err)
	}
	if actorID == "" || c.AuthorID != actorID {
		return nil, apperror.NotAuthor("comment", commentID)
	}
	return c, nil
}

// EditComment replaces the comment text. Only its author may edit it.
func (s *ContentService) EditComment(ctx context.Context, actorID, commentID, content string) (*model.Comment, error) {
	c, err := s.ownedComment(ctx, actorID, commentID)
	if err != nil {
		return nil, err
	}
	content, err = checkComment(content)
	if err != nil {
		return nil, err
	}

	c.Content = content
	if err := s.comments.UpdateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("service/content: updating comment %s: %w", commentID, err)
	}
	return c, nil
}

// DeleteComment removes the comment. Only its author may delete it.
func (s *ContentService) DeleteComment(ctx context.Context, actorID, commentID string) error {
	if _, err := s.ownedComment(ctx, actorID, commentID); err != nil {
		return err
	}
	if err := s.comments.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("service/content: deleting comment %s: %w", commentID, err)
	}
	return nil
}

// ListComments returns the post's comments, oldest first.
func (s *ContentService) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	comments, err := s.comments.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("service/content: listing comments of %s: %w", postID, err)
	}
	return comments, nil
}

const maxCommentLength = 2000

func checkComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.EmptyContent("content")
	}
	if len([]rune(content)) > maxCommentLength {
		return "", apperror.ValidationFailed("content", fmt.Sprintf("must be at most %d characters", maxCommentLength))
	}
	return content, nil
}
