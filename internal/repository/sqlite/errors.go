package sqlite

import (
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/repository"
)

const uniqueMarker = "UNIQUE constraint failed: "

// mapError turns a driver error into the repository vocabulary: unique
// violations keep their column, lock contention is marked retryable, and
// everything else becomes StorageUnavailable.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return uniqueViolation(err)
		}
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return apperror.StorageUnavailable(op, fmt.Errorf("%w: %w", repository.ErrBusy, err))
		}
	}

	if strings.Contains(err.Error(), uniqueMarker) {
		return uniqueViolation(err)
	}

	return apperror.StorageUnavailable(op, err)
}

// uniqueViolation reads the first table.column out of messages such as
// "UNIQUE constraint failed: likes.member_id, likes.post_id".
func uniqueViolation(err error) *repository.UniqueViolation {
	uv := &repository.UniqueViolation{Err: err}

	msg := err.Error()
	i := strings.Index(msg, uniqueMarker)
	if i < 0 {
		return uv
	}
	rest := msg[i+len(uniqueMarker):]
	if end := strings.IndexAny(rest, ", )"); end >= 0 {
		rest = rest[:end]
	}
	uv.Table, uv.Column, _ = strings.Cut(rest, ".")
	return uv
}
