package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/repository"
)

// maxToggleAttempts bounds retries of a like toggle that lost a race.
const maxToggleAttempts = 3

// InteractionService runs the like toggle and keeps the denormalized counter
// honest.
type InteractionService struct {
	likes  repository.LikeRepository
	logger *slog.Logger
}

// NewInteractionService creates an InteractionService over likes.
func NewInteractionService(likes repository.LikeRepository, logger *slog.Logger) *InteractionService {
	return &InteractionService{likes: likes, logger: logger}
}

// ToggleLike likes the post if the member has not, and unlikes it otherwise.
// A toggle that lost a race to a concurrent one from the same member (unique
// violation) or found the store locked is retried; each attempt is atomic,
// so a failed one leaves nothing behind. When retries run out the result is
// InteractionFailed.
func (s *InteractionService) ToggleLike(ctx context.Context, memberID, postID string) (*model.ToggleResult, error) {
	if memberID == "" {
		return nil, apperror.Forbidden("sign in to like posts")
	}

	var lastErr error
	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		res, err := s.likes.ToggleLike(ctx, memberID, postID)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/interaction: toggling like on %s: %w", postID, err)
		}
		if !errors.Is(err, repository.ErrUniqueViolation) && !errors.Is(err, repository.ErrBusy) {
			lastErr = err
			break
		}

		lastErr = err
		s.logger.Debug("like toggle lost a race, retrying",
			slog.String("postID", postID),
			slog.Int("attempt", attempt),
		)
		if ctx.Err() != nil {
			break
		}
	}

	s.logger.Error("like toggle failed",
		slog.String("postID", postID),
		slog.String("memberID", memberID),
		slog.String("error", lastErr.Error()),
	)
	return nil, apperror.InteractionFailed("could not update the like, please try again", lastErr)
}

// HasLiked is false for anonymous viewers.
func (s *InteractionService) HasLiked(ctx context.Context, memberID, postID string) (bool, error) {
	if memberID == "" {
		return false, nil
	}
	liked, err := s.likes.HasLiked(ctx, memberID, postID)
	if err != nil {
		return false, fmt.Errorf("service/interaction: checking like: %w", err)
	}
	return liked, nil
}

// ReconcileLikeCounts rewrites any counter that disagrees with its like set
// and returns how many were fixed.
func (s *InteractionService) ReconcileLikeCounts(ctx context.Context) (int64, error) {
	fixed, err := s.likes.ReconcileLikeCounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/interaction: reconciling like counts: %w", err)
	}
	if fixed > 0 {
		s.logger.Warn("corrected drifted like counters", slog.Int64("posts", fixed))
	} else {
		s.logger.Info("like counters consistent")
	}
	return fixed, nil
}
