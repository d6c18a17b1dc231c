package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/repository"
)

// scriptedLikes fails ToggleLike with the queued errors, then delegates.
type scriptedLikes struct {
	repository.LikeRepository
	errs  []error
	calls int
}

func (s *scriptedLikes) ToggleLike(ctx context.Context, memberID, postID string) (*model.ToggleResult, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return s.LikeRepository.ToggleLike(ctx, memberID, postID)
}

func seedPost(t *testing.T, fx *contentFixture, authorID string) *model.Post {
	t.Helper()
	return fx.mustPost(t, authorID, PostInput{Content: "likeable"})
}

// =========================================================================
// TOGGLE TESTS
// =========================================================================

func TestToggleLike_Alternates(t *testing.T) {
	fx := newContentFixture(t)
	svc := NewInteractionService(fx.db, newTestLogger())
	author := seedMember(t, fx.db, "author")
	fan := seedMember(t, fx.db, "fan")
	p := seedPost(t, fx, author.ID)

	first, err := svc.ToggleLike(context.Background(), fan.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ToggleResult{Liked: true, LikeCount: 1}, *first)

	second, err := svc.ToggleLike(context.Background(), fan.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ToggleResult{Liked: false, LikeCount: 0}, *second)

	liked, err := svc.HasLiked(context.Background(), fan.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestToggleLike_OddNumberOfTogglesLeavesOneLike(t *testing.T) {
	fx := newContentFixture(t)
	svc := NewInteractionService(fx.db, newTestLogger())
	author := seedMember(t, fx.db, "author")
	fan := seedMember(t, fx.db, "fan")
	p := seedPost(t, fx, author.ID)

	const toggles = 7
	var wg sync.WaitGroup
	for n := 0; n < toggles; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ToggleLike(context.Background(), fan.ID, p.ID); err != nil {
				t.Errorf("ToggleLike: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := fx.db.GetPost(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikeCount)

	liked, _ := svc.HasLiked(context.Background(), fan.ID, p.ID)
	assert.True(t, liked)
}

func TestToggleLike_CountsEachMemberOnce(t *testing.T) {
	fx := newContentFixture(t)
	svc := NewInteractionService(fx.db, newTestLogger())
	author := seedMember(t, fx.db, "author")
	p := seedPost(t, fx, author.ID)

	for _, name := range []string{"ann", "bob", "cat"} {
		m := seedMember(t, fx.db, name)
		_, err := svc.ToggleLike(context.Background(), m.ID, p.ID)
		require.NoError(t, err)
	}

	got, _ := fx.db.GetPost(context.Background(), p.ID)
	assert.Equal(t, 3, got.LikeCount)
}

func TestToggleLike_RetriesLostRace(t *testing.T) {
	fx := newContentFixture(t)
	likes := &scriptedLikes{
		LikeRepository: fx.db,
		errs: []error{
			&repository.UniqueViolation{Table: "likes", Column: "member_id"},
			apperror.StorageUnavailable("toggling like", repository.ErrBusy),
		},
	}
	svc := NewInteractionService(likes, newTestLogger())
	author := seedMember(t, fx.db, "author")
	fan := seedMember(t, fx.db, "fan")
	p := seedPost(t, fx, author.ID)

	res, err := svc.ToggleLike(context.Background(), fan.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, 1, res.LikeCount)
	assert.Equal(t, 3, likes.calls)
}

func TestToggleLike_GivesUpAfterBoundedRetries(t *testing.T) {
	fx := newContentFixture(t)
	likes := &scriptedLikes{LikeRepository: fx.db}
	for n := 0; n < maxToggleAttempts; n++ {
		likes.errs = append(likes.errs, &repository.UniqueViolation{Table: "likes", Column: "member_id"})
	}
	svc := NewInteractionService(likes, newTestLogger())
	author := seedMember(t, fx.db, "author")
	fan := seedMember(t, fx.db, "fan")
	p := seedPost(t, fx, author.ID)

	_, err := svc.ToggleLike(context.Background(), fan.ID, p.ID)
	assert.True(t, errors.Is(err, apperror.ErrInteractionFailed), "got %v", err)
	assert.Equal(t, maxToggleAttempts, likes.calls)

	got, _ := fx.db.GetPost(context.Background(), p.ID)
	assert.Zero(t, got.LikeCount)
}

func TestToggleLike_StorageFailureIsInteractionFailed(t *testing.T) {
	likes := &scriptedLikes{errs: []error{apperror.StorageUnavailable("toggling like", errors.New("disk full"))}}
	svc := NewInteractionService(likes, newTestLogger())

	_, err := svc.ToggleLike(context.Background(), "m1", "p1")
	assert.True(t, errors.Is(err, apperror.ErrInteractionFailed))
	assert.Equal(t, 1, likes.calls, "non-transient failures are not retried")
}

func TestToggleLike_MissingPost(t *testing.T) {
	fx := newContentFixture(t)
	svc := NewInteractionService(fx.db, newTestLogger())
	fan := seedMember(t, fx.db, "fan")

	_, err := svc.ToggleLike(context.Background(), fan.ID, "no-such-post")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}

func TestToggleLike_Anonymous(t *testing.T) {
	svc := NewInteractionService(&scriptedLikes{}, newTestLogger())

	_, err := svc.ToggleLike(context.Background(), "", "p1")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	liked, err := svc.HasLiked(context.Background(), "", "p1")
	require.NoError(t, err)
	assert.False(t, liked)
}

// =========================================================================
// RECONCILE TESTS
// =========================================================================

func TestReconcileLikeCounts_NothingToFix(t *testing.T) {
	fx := newContentFixture(t)
	svc := NewInteractionService(fx.db, newTestLogger())
	author := seedMember(t, fx.db, "author")
	p := seedPost(t, fx, author.ID)
	_, err := svc.ToggleLike(context.Background(), author.ID, p.ID)
	require.NoError(t, err)

	fixed, err := svc.ReconcileLikeCounts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
