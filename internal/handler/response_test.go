package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/skyhub/internal/apperror"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", apperror.ValidationFailed("email", "required"), http.StatusBadRequest, "validation_error"},
		{"empty content", apperror.EmptyContent("content"), http.StatusBadRequest, "empty_content"},
		{"credentials", apperror.InvalidCredentials(), http.StatusUnauthorized, "invalid_credentials"},
		{"assertion", apperror.InvalidAssertion("bad nonce"), http.StatusUnauthorized, "invalid_assertion"},
		{"not author before forbidden", apperror.NotAuthor("post", "p1"), http.StatusForbidden, "not_author"},
		{"forbidden", apperror.Forbidden("no"), http.StatusForbidden, "forbidden"},
		{"not found", apperror.NotFound("post", "p1"), http.StatusNotFound, "not_found"},
		{"duplicate", apperror.DuplicateIdentity(), http.StatusConflict, "duplicate_identity"},
		{"storage", apperror.StorageUnavailable("op", errors.New("locked")), http.StatusServiceUnavailable, "storage_unavailable"},
		{"creation failed", apperror.IdentityCreationFailed("x"), http.StatusInternalServerError, "identity_creation_failed"},
		{"wrapped", fmt.Errorf("service/content: fetching: %w", apperror.NotFound("post", "p1")), http.StatusNotFound, "not_found"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		{
			"interaction failure wins over storage",
			apperror.InteractionFailed("retry", apperror.StorageUnavailable("op", errors.New("x"))),
			http.StatusServiceUnavailable, "interaction_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := errorKind(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestWriteError_IncludesFields(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperror.InvalidFields(map[string]string{"email": "required", "password": "required"}))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "validation_error", body.Error)
	assert.Equal(t, map[string]string{"email": "required", "password": "required"}, body.Fields)
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, errors.New("near \"SELEC\": syntax error in /var/lib/skyhub.db"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "SELEC")
	assert.NotContains(t, rr.Body.String(), "skyhub.db")
}

func TestWriteError_StorageSetsRetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperror.StorageUnavailable("op", errors.New("database is locked")))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.NotContains(t, rr.Body.String(), "locked")
}
