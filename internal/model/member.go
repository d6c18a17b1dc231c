// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"github.com/sakif/skyhub/internal/blob"
)

// Tracks are the academic tracks a member can pick on their profile.
var Tracks = []string{
	"Web Development",
	"Mobile App",
	"Data Science",
	"AI & Machine Learning",
	"Cybersecurity",
	"Game Development",
	"Embedded Systems",
	"Other",
}

// Member is a registered platform user, local or SSO-originated.
//
// PasswordHash is nil for accounts created through the identity provider;
// ExternalID is nil until the account is linked to one.
type Member struct {
	ID                  string    `json:"id"                  db:"id"`
	Username            string    `json:"username"            db:"username"`
	Email               string    `json:"email"               db:"email"`
	ExternalID          *string   `json:"-"                   db:"external_identity_id"`
	PasswordHash        *string   `json:"-"                   db:"password_hash"`
	Track               *string   `json:"track"               db:"track"`
	Skills              string    `json:"skills"              db:"skills"`
	AvailableForProject bool      `json:"availableForProject" db:"available_for_project"`
	GitHubLink          *string   `json:"githubLink"          db:"github_link"`
	PortfolioLink       *string   `json:"portfolioLink"       db:"portfolio_link"`
	LinkedInLink        *string   `json:"linkedinLink"        db:"linkedin_link"`
	PhoneNumber         *string   `json:"phoneNumber"         db:"phone_number"`
	CVRef               *blob.Ref `json:"cvRef"               db:"cv_ref"`
	AvatarRef           blob.Ref  `json:"avatarRef"           db:"avatar_ref"`
	CreatedAt           time.Time `json:"createdAt"           db:"created_at"`
	UpdatedAt           time.Time `json:"updatedAt"           db:"updated_at"`
}

// HasPassword reports whether the member can log in with local credentials.
func (m *Member) HasPassword() bool {
	return m.PasswordHash != nil && *m.PasswordHash != ""
}

// MemberFilter narrows the discovery listing. Zero values mean "no filter".
type MemberFilter struct {
	Search        string
	Track         string
	AvailableOnly bool
	ExcludeID     string
}
