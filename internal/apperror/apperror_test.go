package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("post", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("username", "username is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "NotAuthor wraps ErrNotAuthor",
			err:       NotAuthor("post", "abc123"),
			target:    ErrNotAuthor,
			wantMatch: true,
		},
		{
			name:      "NotAuthor is also a Forbidden",
			err:       NotAuthor("comment", "abc123"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "Forbidden is not NotAuthor",
			err:       Forbidden("nope"),
			target:    ErrNotAuthor,
			wantMatch: false,
		},
		{
			name:      "StorageUnavailable survives extra wrapping",
			err:       fmt.Errorf("service: %w", StorageUnavailable("inserting member", errors.New("disk full"))),
			target:    ErrStorageUnavailable,
			wantMatch: true,
		},
		{
			name:      "InteractionFailed keeps its storage cause",
			err:       InteractionFailed("retry", StorageUnavailable("toggling like", errors.New("locked"))),
			target:    ErrStorageUnavailable,
			wantMatch: true,
		},
		{
			name:      "InteractionFailed without a cause",
			err:       InteractionFailed("retry", nil),
			target:    ErrInteractionFailed,
			wantMatch: true,
		},
		{
			name:      "DuplicateIdentity does NOT match ErrValidation",
			err:       DuplicateIdentity(),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "EmptyContent does NOT match ErrValidation",
			err:       EmptyContent("content"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("post", "abc123"),
			wantMessage: "post not found with id abc123",
		},
		{
			name:        "DuplicateIdentity does not name the colliding field",
			err:         DuplicateIdentity(),
			wantMessage: "username or email already registered",
		},
		{
			name:        "StorageUnavailable hides the driver error",
			err:         StorageUnavailable("listing feed", errors.New("database is locked")),
			wantMessage: "storage is temporarily unavailable",
		},
		{
			name:        "InvalidFields lists fields in order",
			err:         InvalidFields(map[string]string{"email": "email", "username": "min"}),
			wantMessage: "invalid fields: email, username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("post", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
	if err.Fields["email"] != "invalid email format" {
		t.Errorf("Fields[email] = %q", err.Fields["email"])
	}
}

func TestInvalidFields_SingleFieldSetsField(t *testing.T) {
	err := InvalidFields(map[string]string{"track": "oneof"})
	if err.Field != "track" {
		t.Errorf("Field = %q, want %q", err.Field, "track")
	}

	multi := InvalidFields(map[string]string{"track": "oneof", "skills": "max"})
	if multi.Field != "" {
		t.Errorf("Field = %q, want empty for multiple fields", multi.Field)
	}
}
