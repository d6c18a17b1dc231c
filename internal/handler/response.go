// Package handler is the JSON HTTP surface. Handlers decode requests, take
// the acting member from the request context, call a service and encode the
// result. They never reach storage directly.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/skyhub/internal/apperror"
)

// ErrorResponse is the body of every error reply.
//
//	{"error": "validation_error", "message": "...", "fields": {"email": "required"}}
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeJSON sets headers and status before the body; later header changes
// would be ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorKind maps an error chain to a status and a machine-readable kind.
// Order matters: NotAuthor also matches Forbidden, and an InteractionFailed
// may carry a StorageUnavailable underneath.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrEmptyContent):
		return http.StatusBadRequest, "empty_content"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperror.ErrReplayOrInvalidAssertion):
		return http.StatusUnauthorized, "invalid_assertion"
	case errors.Is(err, apperror.ErrNotAuthor):
		return http.StatusForbidden, "not_author"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrDuplicateIdentity):
		return http.StatusConflict, "duplicate_identity"
	case errors.Is(err, apperror.ErrInteractionFailed):
		return http.StatusServiceUnavailable, "interaction_failed"
	case errors.Is(err, apperror.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, apperror.ErrIdentityCreationFailed):
		return http.StatusInternalServerError, "identity_creation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError translates a service error into the standard error reply.
// Untyped errors become a generic 500; their text may hold SQL or paths and
// is only logged.
func writeError(w http.ResponseWriter, err error) {
	status, kind := errorKind(err)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("kind", kind),
			slog.Any("error", appErr.Err),
		)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
		Fields:  appErr.Fields,
	})
}

// badRequest replies 400 for malformed input that never reached a service.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: message})
}
