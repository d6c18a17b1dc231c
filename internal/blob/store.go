// Package blob is the storage collaborator for uploaded files.
//
// The rest of the application never builds file paths or object keys. It hands
// raw bytes and a declared extension to a Store and keeps only the opaque Ref
// that comes back. Resolving a Ref to something a browser can fetch is also
// the Store's job.
package blob

import (
	"context"
	"database/sql/driver"
	_ "embed"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Ref is an opaque, stable handle to a stored blob.
type Ref string

// Value stores a Ref as plain TEXT.
func (r Ref) Value() (driver.Value, error) {
	return string(r), nil
}

// DefaultAvatar is the placeholder every member starts with. Each Store
// writes it when constructed, so its URL always resolves.
const DefaultAvatar Ref = "default_profile.png"

//go:embed default_profile.png
var defaultAvatarPNG []byte

// ErrInvalidRef is returned for refs that could escape the store's namespace.
var ErrInvalidRef = errors.New("blob: invalid ref")

// Store persists blobs and resolves refs to URLs.
type Store interface {
	Put(ctx context.Context, ext string, data []byte) (Ref, error)
	URL(ctx context.Context, ref Ref) (string, error)
	Delete(ctx context.Context, ref Ref) error
}

// Upload is a file received from a client, already read into memory. The
// request body limit bounds its size.
type Upload struct {
	Filename string
	Data     []byte
}

// Ext returns the lower-cased extension of the declared filename, without the dot.
func (u *Upload) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(u.Filename)), ".")
}

// Empty reports whether no file was supplied.
func (u *Upload) Empty() bool {
	return u == nil || len(u.Data) == 0
}

// newRef generates a fresh name such as "9f1c0b6e2d7a4b1e8c3f5a6d7e8f9012.png".
func newRef(ext string) Ref {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	if ext == "" {
		return Ref(name)
	}
	return Ref(name + "." + ext)
}

// validRef rejects anything that is not a single plain path element.
func validRef(ref Ref) error {
	s := string(ref)
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return ErrInvalidRef
	}
	return nil
}
