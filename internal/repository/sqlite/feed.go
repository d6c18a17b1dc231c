package sqlite

import (
	"context"
	"database/sql/driver"
	"strings"

	msqlite "modernc.org/sqlite"

	"github.com/sakif/skyhub/internal/model"
)

// ListFeed joins each post with its author, newest first. Track is an exact
// match on the author's track.
func (db *DB) ListFeed(ctx context.Context, f model.FeedFilter) ([]model.FeedItem, error) {
	var b strings.Builder
	args := make([]any, 0, 2)

	b.WriteString(`SELECT p.id, p.title, p.content, p.image_ref, p.video_ref, p.author_id,
		p.like_count, p.created_at, p.updated_at,
		m.username AS author_username,
		m.track AS author_track,
		m.avatar_ref AS author_avatar_ref,
		m.available_for_project AS author_available
	FROM posts p
	JOIN members m ON m.id = p.author_id
	WHERE 1 = 1`)

	if f.Track != "" {
		b.WriteString(` AND m.track = ?`)
		args = append(args, f.Track)
	}
	if f.AvailableOnly {
		b.WriteString(` AND m.available_for_project = 1`)
	}
	b.WriteString(` ORDER BY p.created_at DESC, p.id DESC`)

	items := make([]model.FeedItem, 0)
	if err := db.conn.SelectContext(ctx, &items, b.String(), args...); err != nil {
		return nil, mapError("listing feed", err)
	}
	return items, nil
}

// ListMembers is the discovery query. Search is a case-insensitive substring
// match against username, skills or track; the track and availability
// filters are ANDed with it. Members open to projects come first, then
// alphabetical by username.
func (db *DB) ListMembers(ctx context.Context, f model.MemberFilter) ([]model.Member, error) {
	var b strings.Builder
	args := make([]any, 0, 5)

	b.WriteString(`SELECT ` + memberColumns + ` FROM members WHERE 1 = 1`)

	if f.ExcludeID != "" {
		b.WriteString(` AND id != ?`)
		args = append(args, f.ExcludeID)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + escapeLike(fold(search)) + "%"
		b.WriteString(` AND (fold(username) LIKE ? ESCAPE '\'
			OR fold(skills) LIKE ? ESCAPE '\'
			OR fold(COALESCE(track, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if f.Track != "" {
		b.WriteString(` AND track = ?`)
		args = append(args, f.Track)
	}
	if f.AvailableOnly {
		b.WriteString(` AND available_for_project = 1`)
	}
	b.WriteString(` ORDER BY available_for_project DESC, username ASC`)

	members := make([]model.Member, 0)
	if err := db.conn.SelectContext(ctx, &members, b.String(), args...); err != nil {
		return nil, mapError("listing members", err)
	}
	return members, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// foldFunc is the SQL name of foldText. The search pattern goes through the
// same fold, so both sides agree on non-ASCII text.
const foldFunc = "fold"

func fold(s string) string {
	return strings.ToLower(s)
}

func foldText(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return fold(v), nil
	case []byte:
		return fold(string(v)), nil
	default:
		return v, nil
	}
}
