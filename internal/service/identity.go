// Package service holds the business rules: identity resolution, content
// ownership, the like toggle and the feed/discovery queries. Services accept
// plain inputs and an explicit actor id, and return apperror kinds; they know
// nothing about HTTP or SQL.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/auth"
	"github.com/sakif/skyhub/internal/blob"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/repository"
)

const (
	maxUsernameLength = 50
	usernameSuffixLen = 6

	// maxUsernameAttempts bounds suffix-and-retry when SSO usernames collide.
	maxUsernameAttempts = 5
)

// AvatarFetcher downloads a remote picture and returns its ref. It must fall
// back to blob.DefaultAvatar instead of failing.
type AvatarFetcher interface {
	FetchAvatar(ctx context.Context, url string) blob.Ref
}

// IdentityService registers members, checks credentials, resolves external
// identities and manages the member's own account.
type IdentityService struct {
	members   repository.MemberRepository
	posts     repository.PostRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	avatars   AvatarFetcher
	media     media
	maxUpload int64
	logger    *slog.Logger
}

// NewIdentityService wires the identity resolver to its stores. avatars
// downloads provider pictures for first-time SSO members.
func NewIdentityService(
	members repository.MemberRepository,
	posts repository.PostRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	avatars AvatarFetcher,
	store blob.Store,
	maxUpload int64,
	logger *slog.Logger,
) *IdentityService {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}
	return &IdentityService{
		members:   members,
		posts:     posts,
		passwords: passwords,
		tokens:    tokens,
		avatars:   avatars,
		media:     media{store: store, logger: logger},
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// AuthResult bundles the member with a freshly issued session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	Member *model.Member
	Token  string
}

// Register creates a local account. A taken username or email fails with
// DuplicateIdentity without saying which; the UNIQUE constraints settle
// concurrent registrations.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	normalizeProfile(&in.ProfileInput)

	fields := checkStruct(in)
	fields = checkPassword(in.Password, fields)
	fields = checkUpload(avatarUpload, in.Avatar, s.maxUpload, fields)
	fields = checkUpload(cvUpload, in.CV, s.maxUpload, fields)
	if err := invalid(fields); err != nil {
		return nil, err
	}

	taken, err := s.members.IdentityTaken(ctx, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("service/identity: checking identity: %w", err)
	}
	if taken {
		return nil, apperror.DuplicateIdentity()
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/identity: hashing password: %w", err)
	}

	avatarRef, err := s.media.put(ctx, in.Avatar)
	if err != nil {
		return nil, err
	}
	cvRef, err := s.media.put(ctx, in.CV)
	if err != nil {
		s.media.discard(ctx, avatarRef)
		return nil, err
	}

	m := &model.Member{
		Username:            in.Username,
		Email:               in.Email,
		PasswordHash:        &hash,
		AvailableForProject: true,
		AvatarRef:           blob.DefaultAvatar,
		CVRef:               cvRef,
	}
	applyProfile(m, in.ProfileInput)
	if avatarRef != nil {
		m.AvatarRef = *avatarRef
	}

	if err := s.members.CreateMember(ctx, m); err != nil {
		s.media.discard(ctx, avatarRef, cvRef)
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, apperror.DuplicateIdentity()
		}
		return nil, fmt.Errorf("service/identity: creating member: %w", err)
	}

	s.logger.Info("member registered", slog.String("memberID", m.ID))
	return s.issue(m)
}

// Login checks an email and password. An unknown email, an account without
// a password and a wrong password all fail with the same InvalidCredentials
// after the same bcrypt work.
func (s *IdentityService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := invalid(checkStruct(in)); err != nil {
		return nil, err
	}

	m, err := s.members.GetMemberByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		_ = s.passwords.VerifyMissing(in.Password)
		return nil, apperror.InvalidCredentials()
	case err != nil:
		return nil, fmt.Errorf("service/identity: looking up member: %w", err)
	}

	if !m.HasPassword() {
		_ = s.passwords.VerifyMissing(in.Password)
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(*m.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unusable",
				slog.String("memberID", m.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.InvalidCredentials()
	}

	return s.issue(m)
}

// LoginExternal resolves a verified identity-provider assertion to a member:
// by linked subject, then by email (linking the subject to that account),
// then by creating a new member. expectedNonce is the value issued with the
// redirect; a missing or different nonce in the assertion is rejected.
//
// Linking on email match merges the external identity into a pre-existing
// local account without asking for that account's password. Only assertions
// whose email the provider has verified are accepted.
func (s *IdentityService) LoginExternal(ctx context.Context, a *auth.Assertion, expectedNonce string) (*AuthResult, error) {
	if a == nil || a.Subject == "" {
		return nil, apperror.InvalidAssertion("identity assertion is incomplete")
	}
	if expectedNonce == "" || a.Nonce == "" ||
		subtle.ConstantTimeCompare([]byte(a.Nonce), []byte(expectedNonce)) != 1 {
		s.logger.Warn("rejected identity assertion with mismatched nonce", slog.String("subject", a.Subject))
		return nil, apperror.InvalidAssertion("sign-in request expired or was replayed")
	}
	email := normalizeEmail(a.Email)
	if email == "" {
		return nil, apperror.InvalidAssertion("identity provider did not supply an email")
	}

	m, err := s.resolveExternal(ctx, a.Subject, email, a.EmailVerified)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m, err = s.createExternal(ctx, a, email)
		if err != nil {
			return nil, err
		}
	}

	return s.issue(m)
}

// resolveExternal runs the subject lookup and the email link. It returns
// (nil, nil) when neither matches. An existing account is linked only when
// the provider verified the email.
func (s *IdentityService) resolveExternal(ctx context.Context, subject, email string, emailVerified bool) (*model.Member, error) {
	m, err := s.members.GetMemberByExternalID(ctx, subject)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/identity: looking up external identity: %w", err)
	}

	m, err = s.members.GetMemberByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/identity: looking up member by email: %w", err)
	}
	if !emailVerified {
		s.logger.Warn("refused to link unverified email to existing member", slog.String("memberID", m.ID))
		return nil, apperror.InvalidAssertion("identity provider has not verified this email")
	}

	if err := s.members.LinkExternalID(ctx, m.ID, subject); err != nil {
		return nil, fmt.Errorf("service/identity: linking external identity: %w", err)
	}
	m.ExternalID = &subject
	s.logger.Info("linked external identity to existing member", slog.String("memberID", m.ID))
	return m, nil
}

// createExternal inserts a member for a first-time SSO login. Username
// collisions get a random suffix and another attempt; a collision on email
// or subject means a concurrent login won, so resolution runs again. The
// fetched avatar is removed if no member ends up owning it.
func (s *IdentityService) createExternal(ctx context.Context, a *auth.Assertion, email string) (*model.Member, error) {
	avatar := s.avatars.FetchAvatar(ctx, a.Picture)
	base := usernameFromDisplayName(a.Name)
	subject := a.Subject

	candidate := base
	for attempt := 1; attempt <= maxUsernameAttempts; attempt++ {
		m := &model.Member{
			Username:            candidate,
			Email:               email,
			ExternalID:          &subject,
			AvailableForProject: true,
			AvatarRef:           avatar,
		}

		err := s.members.CreateMember(ctx, m)
		if err == nil {
			s.logger.Info("member created from external identity", slog.String("memberID", m.ID))
			return m, nil
		}

		col, unique := repository.ViolatedColumn(err)
		switch {
		case unique && col == "username":
			candidate = withSuffix(base)
			continue
		case unique:
			s.media.discard(ctx, &avatar)
			existing, rerr := s.resolveExternal(ctx, a.Subject, email, a.EmailVerified)
			if rerr != nil {
				return nil, rerr
			}
			if existing != nil {
				return existing, nil
			}
			return nil, apperror.IdentityCreationFailed("could not create an account for this sign-in")
		default:
			s.media.discard(ctx, &avatar)
			return nil, fmt.Errorf("service/identity: creating member from external identity: %w", err)
		}
	}

	s.media.discard(ctx, &avatar)
	s.logger.Warn("gave up finding a free username", slog.String("base", base))
	return nil, apperror.IdentityCreationFailed("could not find a free username")
}

// usernameFromDisplayName lower-cases, replaces spaces with underscores and
// truncates to the username limit. An empty result becomes "user".
func usernameFromDisplayName(name string) string {
	u := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	u = truncateRunes(u, maxUsernameLength)
	if u == "" {
		return "user"
	}
	return u
}

// withSuffix appends "_" and six random hex characters, shortening base so
// the result still fits.
func withSuffix(base string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:usernameSuffixLen]
	return truncateRunes(base, maxUsernameLength-usernameSuffixLen-1) + "_" + suffix
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// UpdateProfile edits the actor's own profile. Uploads replace the stored
// avatar or CV only when a new file is supplied.
func (s *IdentityService) UpdateProfile(ctx context.Context, actorID, memberID string, in UpdateProfileInput) (*model.Member, error) {
	if actorID == "" || actorID != memberID {
		return nil, apperror.Forbidden("members may only edit their own profile")
	}

	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	normalizeProfile(&in.ProfileInput)

	fields := checkStruct(in)
	fields = checkUpload(avatarUpload, in.Avatar, s.maxUpload, fields)
	fields = checkUpload(cvUpload, in.CV, s.maxUpload, fields)
	if err := invalid(fields); err != nil {
		return nil, err
	}

	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("service/identity: fetching member %s: %w", memberID, err)
	}

	avatarRef, err := s.media.put(ctx, in.Avatar)
	if err != nil {
		return nil, err
	}
	cvRef, err := s.media.put(ctx, in.CV)
	if err != nil {
		s.media.discard(ctx, avatarRef)
		return nil, err
	}

	oldAvatar, oldCV := m.AvatarRef, m.CVRef
	m.Username = in.Username
	m.Email = in.Email
	applyProfile(m, in.ProfileInput)
	if avatarRef != nil {
		m.AvatarRef = *avatarRef
	}
	if cvRef != nil {
		m.CVRef = cvRef
	}

	if err := s.members.UpdateMember(ctx, m); err != nil {
		s.media.discard(ctx, avatarRef, cvRef)
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, apperror.DuplicateIdentity()
		}
		return nil, fmt.Errorf("service/identity: updating member %s: %w", memberID, err)
	}

	if avatarRef != nil {
		s.media.discard(ctx, &oldAvatar)
	}
	if cvRef != nil {
		s.media.discard(ctx, oldCV)
	}

	return m, nil
}

// DeleteAccount removes the actor's own account and, by cascade, their
// posts, comments and likes. Stored files are cleaned up afterwards.
func (s *IdentityService) DeleteAccount(ctx context.Context, actorID, memberID string) error {
	if actorID == "" || actorID != memberID {
		return apperror.Forbidden("members may only delete their own account")
	}

	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("service/identity: fetching member %s: %w", memberID, err)
	}
	posts, err := s.posts.ListPostsByAuthor(ctx, memberID)
	if err != nil {
		return fmt.Errorf("service/identity: listing posts of %s: %w", memberID, err)
	}

	if err := s.members.DeleteMember(ctx, memberID); err != nil {
		return fmt.Errorf("service/identity: deleting member %s: %w", memberID, err)
	}

	s.media.discard(ctx, &m.AvatarRef, m.CVRef)
	for _, p := range posts {
		s.media.discard(ctx, p.ImageRef, p.VideoRef)
	}

	s.logger.Info("member deleted their account", slog.String("memberID", memberID))
	return nil
}

// GetMember returns the member or a NotFound error.
func (s *IdentityService) GetMember(ctx context.Context, id string) (*model.Member, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "member id is required")
	}
	m, err := s.members.GetMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/identity: fetching member %s: %w", id, err)
	}
	return m, nil
}

func (s *IdentityService) issue(m *model.Member) (*AuthResult, error) {
	token, err := s.tokens.Generate(m.ID)
	if err != nil {
		return nil, fmt.Errorf("service/identity: issuing session for %s: %w", m.ID, err)
	}
	return &AuthResult{Member: m, Token: token}, nil
}
