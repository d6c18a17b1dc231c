package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/blob"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/repository"
)

var _ repository.MemberRepository = (*DB)(nil)

const memberColumns = `id, username, email, external_identity_id, password_hash, track, skills,
	available_for_project, github_link, portfolio_link, linkedin_link, phone_number,
	cv_ref, avatar_ref, created_at, updated_at`

// CreateMember inserts m, filling in ID, timestamps and the default avatar.
func (db *DB) CreateMember(ctx context.Context, m *model.Member) error {
	m.ID = xid.New().String()
	m.CreatedAt = now()
	m.UpdatedAt = m.CreatedAt
	if m.AvatarRef == "" {
		m.AvatarRef = blob.DefaultAvatar
	}

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO members (`+memberColumns+`)
		 VALUES (:id, :username, :email, :external_identity_id, :password_hash, :track, :skills,
		         :available_for_project, :github_link, :portfolio_link, :linkedin_link, :phone_number,
		         :cv_ref, :avatar_ref, :created_at, :updated_at)`,
		m,
	)
	if err != nil {
		return mapError("creating member", err)
	}
	return nil
}

func (db *DB) GetMember(ctx context.Context, id string) (*model.Member, error) {
	return db.getMemberWhere(ctx, "id = ?", id)
}

func (db *DB) GetMemberByEmail(ctx context.Context, email string) (*model.Member, error) {
	return db.getMemberWhere(ctx, "email = ?", email)
}

func (db *DB) GetMemberByExternalID(ctx context.Context, externalID string) (*model.Member, error) {
	return db.getMemberWhere(ctx, "external_identity_id = ?", externalID)
}

func (db *DB) getMemberWhere(ctx context.Context, cond, arg string) (*model.Member, error) {
	var m model.Member
	err := db.conn.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM members WHERE `+cond, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("member", arg)
		}
		return nil, mapError("getting member", err)
	}
	return &m, nil
}

// IdentityTaken checks username and email in one lookup so the caller cannot
// tell which of the two collided.
func (db *DB) IdentityTaken(ctx context.Context, username, email string) (bool, error) {
	var taken bool
	err := db.conn.GetContext(ctx, &taken,
		`SELECT EXISTS (SELECT 1 FROM members WHERE username = ? OR email = ?)`,
		username, email,
	)
	if err != nil {
		return false, mapError("checking identity", err)
	}
	return taken, nil
}

// UpdateMember writes the profile fields. Password hash and external id have
// their own paths and are left alone.
func (db *DB) UpdateMember(ctx context.Context, m *model.Member) error {
	m.UpdatedAt = now()

	res, err := db.conn.NamedExecContext(ctx,
		`UPDATE members SET
			username = :username,
			email = :email,
			track = :track,
			skills = :skills,
			available_for_project = :available_for_project,
			github_link = :github_link,
			portfolio_link = :portfolio_link,
			linkedin_link = :linkedin_link,
			phone_number = :phone_number,
			cv_ref = :cv_ref,
			avatar_ref = :avatar_ref,
			updated_at = :updated_at
		 WHERE id = :id`,
		m,
	)
	if err != nil {
		return mapError("updating member", err)
	}
	return requireAffected(res, "member", m.ID)
}

// LinkExternalID attaches an identity-provider subject to an existing member,
// replacing any subject that was linked before.
func (db *DB) LinkExternalID(ctx context.Context, memberID, externalID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE members SET external_identity_id = ?, updated_at = ? WHERE id = ?`,
		externalID, now(), memberID,
	)
	if err != nil {
		return mapError("linking external identity", err)
	}
	return requireAffected(res, "member", memberID)
}

func (db *DB) DeleteMember(ctx context.Context, id string) error {
	return db.withTx(ctx, "deleting member", func(tx *sqlx.Tx) error {
		// The cascade removes this member's likes without touching counters,
		// so settle the counters of surviving posts first.
		_, err := tx.ExecContext(ctx,
			`UPDATE posts SET like_count = MAX(like_count - 1, 0)
			 WHERE author_id != ?
			   AND id IN (SELECT post_id FROM likes WHERE member_id = ?)`,
			id, id,
		)
		if err != nil {
			return mapError("deleting member: releasing likes", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
		if err != nil {
			return mapError("deleting member", err)
		}
		return requireAffected(res, "member", id)
	})
}

func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("reading rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
