package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/skyhub/internal/model"
)

type seedMember struct {
	username  string
	track     string
	skills    string
	available bool
}

func seedMembers(t *testing.T, db *DB, seeds ...seedMember) map[string]*model.Member {
	t.Helper()
	out := make(map[string]*model.Member, len(seeds))
	for _, s := range seeds {
		m := &model.Member{
			Username:            s.username,
			Email:               s.username + "@uni.edu",
			Skills:              s.skills,
			AvailableForProject: s.available,
		}
		if s.track != "" {
			m.Track = strPtr(s.track)
		}
		require.NoError(t, db.CreateMember(context.Background(), m))
		out[s.username] = m
	}
	return out
}

func usernames(members []model.Member) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Username
	}
	return names
}

func TestListFeed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := seedMembers(t, db,
		seedMember{username: "web_open", track: "Web Development", available: true},
		seedMember{username: "web_busy", track: "Web Development", available: false},
		seedMember{username: "data_open", track: "Data Science", available: true},
	)

	p1 := createTestPost(t, db, m["web_open"].ID, "one")
	time.Sleep(2 * time.Millisecond)
	p2 := createTestPost(t, db, m["web_busy"].ID, "two")
	time.Sleep(2 * time.Millisecond)
	p3 := createTestPost(t, db, m["data_open"].ID, "three")

	ids := func(items []model.FeedItem) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter model.FeedFilter
		want   []string
	}{
		{"everything newest first", model.FeedFilter{}, []string{p3.ID, p2.ID, p1.ID}},
		{"exact track", model.FeedFilter{Track: "Web Development"}, []string{p2.ID, p1.ID}},
		{"available only", model.FeedFilter{AvailableOnly: true}, []string{p3.ID, p1.ID}},
		{"track and available", model.FeedFilter{Track: "Web Development", AvailableOnly: true}, []string{p1.ID}},
		{"partial track does not match", model.FeedFilter{Track: "Web"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := db.ListFeed(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(items))
		})
	}

	t.Run("author fields joined", func(t *testing.T) {
		items, err := db.ListFeed(ctx, model.FeedFilter{Track: "Data Science"})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "data_open", items[0].AuthorUsername)
		assert.True(t, items[0].AuthorAvailable)
		require.NotNil(t, items[0].AuthorTrack)
		assert.Equal(t, "Data Science", *items[0].AuthorTrack)
		assert.Equal(t, m["data_open"].AvatarRef, items[0].AuthorAvatarRef)
	})
}

func TestListMembers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := seedMembers(t, db,
		seedMember{username: "zoe", track: "Data Science", skills: "python", available: true},
		seedMember{username: "adam", track: "Web Development", skills: "Go, React", available: false},
		seedMember{username: "bella", track: "Cybersecurity", skills: "go fuzzing", available: true},
		seedMember{username: "carl", skills: "design", available: true},
		seedMember{username: "me", track: "Web Development", skills: "go", available: true},
		seedMember{username: "élodie", skills: "Éclair, Go", available: false},
	)

	tests := []struct {
		name   string
		filter model.MemberFilter
		want   []string
	}{
		{
			name:   "no filter, available first then alphabetical, requester excluded",
			filter: model.MemberFilter{ExcludeID: m["me"].ID},
			want:   []string{"bella", "carl", "zoe", "adam", "élodie"},
		},
		{
			name:   "search matches skills case-insensitively",
			filter: model.MemberFilter{Search: "GO", ExcludeID: m["me"].ID},
			want:   []string{"bella", "adam", "élodie"},
		},
		{
			name:   "search matches track",
			filter: model.MemberFilter{Search: "science", ExcludeID: m["me"].ID},
			want:   []string{"zoe"},
		},
		{
			name:   "search matches username",
			filter: model.MemberFilter{Search: "arl", ExcludeID: m["me"].ID},
			want:   []string{"carl"},
		},
		{
			name:   "search AND available",
			filter: model.MemberFilter{Search: "go", AvailableOnly: true, ExcludeID: m["me"].ID},
			want:   []string{"bella"},
		},
		{
			name:   "non-ascii search in stored case",
			filter: model.MemberFilter{Search: "Éclair", ExcludeID: m["me"].ID},
			want:   []string{"élodie"},
		},
		{
			name:   "non-ascii search in other case",
			filter: model.MemberFilter{Search: "éCLAIR", ExcludeID: m["me"].ID},
			want:   []string{"élodie"},
		},
		{
			name:   "non-ascii username",
			filter: model.MemberFilter{Search: "ÉLO", ExcludeID: m["me"].ID},
			want:   []string{"élodie"},
		},
		{
			name:   "exact track filter",
			filter: model.MemberFilter{Track: "Web Development", ExcludeID: m["me"].ID},
			want:   []string{"adam"},
		},
		{
			name:   "like wildcards are literal",
			filter: model.MemberFilter{Search: "%", ExcludeID: m["me"].ID},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListMembers(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, usernames(got))
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
