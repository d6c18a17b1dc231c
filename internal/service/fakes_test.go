package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/auth"
	"github.com/sakif/skyhub/internal/blob"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/repository"
	"github.com/sakif/skyhub/internal/repository/sqlite"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)
	pdfBytes = []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")
	mp4Bytes = append([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2"), bytes.Repeat([]byte{0}, 16)...)
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMemberRepo is an in-memory MemberRepository that enforces the same
// uniqueness rules as the schema.
type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[string]*model.Member
	nextID  int

	// createErrs are returned, in order, by the next CreateMember calls
	// before normal behaviour resumes.
	createErrs []error
	// onCreate runs inside CreateMember before anything else, holding the
	// lock; tests use it to simulate a concurrent insert.
	onCreate  func(f *fakeMemberRepo)
	getErr    error
	linkCalls int
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: make(map[string]*model.Member)}
}

func (f *fakeMemberRepo) conflict(m *model.Member) error {
	for _, other := range f.members {
		if other.ID == m.ID {
			continue
		}
		switch {
		case strings.EqualFold(other.Username, m.Username):
			return &repository.UniqueViolation{Table: "members", Column: "username"}
		case strings.EqualFold(other.Email, m.Email):
			return &repository.UniqueViolation{Table: "members", Column: "email"}
		case m.ExternalID != nil && other.ExternalID != nil && *m.ExternalID == *other.ExternalID:
			return &repository.UniqueViolation{Table: "members", Column: "external_identity_id"}
		}
	}
	return nil
}

func (f *fakeMemberRepo) CreateMember(_ context.Context, m *model.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.onCreate != nil {
		hook := f.onCreate
		f.onCreate = nil
		hook(f)
	}
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		return err
	}
	if err := f.conflict(m); err != nil {
		return err
	}

	f.nextID++
	m.ID = fmt.Sprintf("member-%d", f.nextID)
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	if m.AvatarRef == "" {
		m.AvatarRef = blob.DefaultAvatar
	}
	copied := *m
	f.members[m.ID] = &copied
	return nil
}

func (f *fakeMemberRepo) find(match func(*model.Member) bool, key string) (*model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, m := range f.members {
		if match(m) {
			copied := *m
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("member", key)
}

func (f *fakeMemberRepo) GetMember(_ context.Context, id string) (*model.Member, error) {
	return f.find(func(m *model.Member) bool { return m.ID == id }, id)
}

func (f *fakeMemberRepo) GetMemberByEmail(_ context.Context, email string) (*model.Member, error) {
	return f.find(func(m *model.Member) bool { return strings.EqualFold(m.Email, email) }, email)
}

func (f *fakeMemberRepo) GetMemberByExternalID(_ context.Context, ext string) (*model.Member, error) {
	return f.find(func(m *model.Member) bool { return m.ExternalID != nil && *m.ExternalID == ext }, ext)
}

func (f *fakeMemberRepo) IdentityTaken(_ context.Context, username, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if strings.EqualFold(m.Username, username) || strings.EqualFold(m.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMemberRepo) UpdateMember(_ context.Context, m *model.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[m.ID]; !ok {
		return apperror.NotFound("member", m.ID)
	}
	if err := f.conflict(m); err != nil {
		return err
	}
	copied := *m
	f.members[m.ID] = &copied
	return nil
}

func (f *fakeMemberRepo) LinkExternalID(_ context.Context, memberID, ext string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberID]
	if !ok {
		return apperror.NotFound("member", memberID)
	}
	f.linkCalls++
	m.ExternalID = &ext
	return nil
}

func (f *fakeMemberRepo) DeleteMember(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[id]; !ok {
		return apperror.NotFound("member", id)
	}
	delete(f.members, id)
	return nil
}

func (f *fakeMemberRepo) ListMembers(context.Context, model.MemberFilter) ([]model.Member, error) {
	return nil, nil
}

func (f *fakeMemberRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members)
}

// fakePostLister only answers ListPostsByAuthor; any other call panics on
// the nil embedded interface.
type fakePostLister struct {
	repository.PostRepository
	byAuthor map[string][]model.Post
}

func (f *fakePostLister) ListPostsByAuthor(_ context.Context, authorID string) ([]model.Post, error) {
	return f.byAuthor[authorID], nil
}

// memStore is an in-memory blob.Store.
type memStore struct {
	mu     sync.Mutex
	blobs  map[blob.Ref][]byte
	n      int
	putErr error
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[blob.Ref][]byte)}
}

func (s *memStore) Put(_ context.Context, ext string, data []byte) (blob.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	s.n++
	ref := blob.Ref(fmt.Sprintf("blob-%d.%s", s.n, ext))
	s.blobs[ref] = data
	return ref, nil
}

func (s *memStore) URL(_ context.Context, ref blob.Ref) (string, error) {
	return "/uploads/" + string(ref), nil
}

func (s *memStore) Delete(_ context.Context, ref blob.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}

func (s *memStore) has(ref blob.Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[ref]
	return ok
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// fakeFetcher stores a fixed image for any URL, or returns the default
// avatar when fail is set.
type fakeFetcher struct {
	store *memStore
	fail  bool
	urls  []string
}

func (f *fakeFetcher) FetchAvatar(ctx context.Context, url string) blob.Ref {
	f.urls = append(f.urls, url)
	if f.fail || url == "" {
		return blob.DefaultAvatar
	}
	ref, err := f.store.Put(ctx, "png", pngBytes)
	if err != nil {
		return blob.DefaultAvatar
	}
	return ref
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// identityFixture wires an IdentityService with fakes.
type identityFixture struct {
	svc     *IdentityService
	members *fakeMemberRepo
	posts   *fakePostLister
	store   *memStore
	fetcher *fakeFetcher
	tokens  *auth.TokenService
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()
	fx := &identityFixture{
		members: newFakeMemberRepo(),
		posts:   &fakePostLister{byAuthor: map[string][]model.Post{}},
		store:   newMemStore(),
		tokens:  newTestTokens(t),
	}
	fx.fetcher = &fakeFetcher{store: fx.store}
	fx.svc = NewIdentityService(
		fx.members, fx.posts,
		auth.NewPasswordServiceForTest(4), fx.tokens,
		fx.fetcher, fx.store, 0, newTestLogger(),
	)
	return fx
}

// newTestSQLite opens an in-memory database for tests that need the real
// constraints and cascades.
func newTestSQLite(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool     { return &b }
