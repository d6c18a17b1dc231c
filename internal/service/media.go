package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/skyhub/internal/blob"
)

// media stores validated uploads and cleans up after failed or superseded
// writes. Cleanup is best effort: a leftover blob is logged, never returned.
type media struct {
	store  blob.Store
	logger *slog.Logger
}

// put stores u and returns its ref, or nil when nothing was uploaded.
func (m media) put(ctx context.Context, u *blob.Upload) (*blob.Ref, error) {
	if u.Empty() {
		return nil, nil
	}
	ref, err := m.store.Put(ctx, u.Ext(), u.Data)
	if err != nil {
		return nil, fmt.Errorf("service: storing upload: %w", err)
	}
	return &ref, nil
}

// discard deletes refs, skipping nils and the default avatar.
func (m media) discard(ctx context.Context, refs ...*blob.Ref) {
	for _, ref := range refs {
		if ref == nil || *ref == "" || *ref == blob.DefaultAvatar {
			continue
		}
		if err := m.store.Delete(ctx, *ref); err != nil {
			m.logger.Warn("could not delete blob",
				slog.String("ref", string(*ref)),
				slog.String("error", err.Error()),
			)
		}
	}
}
