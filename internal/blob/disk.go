package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// compile-time check that *DiskStore implements Store
var _ Store = (*DiskStore)(nil)

// DiskStore keeps blobs as files in one directory and serves them under a
// public URL prefix (the server mounts the directory at that prefix).
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the directory if needed and writes the default avatar
// unless a file of that name is already there.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: creating upload dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, string(DefaultAvatar))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	switch {
	case errors.Is(err, os.ErrExist):
	case err != nil:
		return nil, fmt.Errorf("blob: creating default avatar: %w", err)
	default:
		_, werr := f.Write(defaultAvatarPNG)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			os.Remove(path)
			return nil, fmt.Errorf("blob: writing default avatar: %w", werr)
		}
	}

	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put writes data to a fresh file under the store directory.
func (s *DiskStore) Put(ctx context.Context, ext string, data []byte) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := newRef(ext)
	path := filepath.Join(s.dir, string(ref))

	// O_EXCL: a uuid collision must never overwrite someone else's file.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("blob: creating %s: %w", ref, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("blob: writing %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("blob: closing %s: %w", ref, err)
	}

	return ref, nil
}

// URL joins the base URL and the ref.
func (s *DiskStore) URL(_ context.Context, ref Ref) (string, error) {
	if err := validRef(ref); err != nil {
		return "", err
	}
	return s.baseURL + "/" + url.PathEscape(string(ref)), nil
}

// Delete is a no-op for the default avatar and for files that are already gone.
func (s *DiskStore) Delete(_ context.Context, ref Ref) error {
	if ref == DefaultAvatar {
		return nil
	}
	if err := validRef(ref); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, string(ref)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blob: deleting %s: %w", ref, err)
	}
	return nil
}
