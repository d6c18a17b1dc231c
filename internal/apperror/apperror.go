// Package apperror defines the error taxonomy shared by every layer.
//
// Services return these errors; only the HTTP layer decides which status code
// each one becomes. Callers test for a kind with errors.Is against one of the
// sentinels below, never by comparing messages.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")

	// Identity errors.
	ErrDuplicateIdentity        = errors.New("duplicate identity")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrReplayOrInvalidAssertion = errors.New("replay or invalid assertion")
	ErrIdentityCreationFailed   = errors.New("identity creation failed")

	// Content and interaction errors.
	ErrNotAuthor         = fmt.Errorf("not author: %w", ErrForbidden)
	ErrEmptyContent      = errors.New("empty content")
	ErrInteractionFailed = errors.New("interaction failed")

	// ErrStorageUnavailable is the catch-all for the persistence layer failing.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// AppError pairs a sentinel with a message safe to show to clients.
type AppError struct {
	Err     error             // actual error
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: every violated field with its rule
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ValidationFailed reports a single invalid field.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  map[string]string{field: message},
	}
}

// InvalidFields reports several violated fields at once. The message lists the
// field names in a stable order so it is safe to show and to assert on.
func InvalidFields(fields map[string]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	field := ""
	if len(names) == 1 {
		field = names[0]
	}
	return &AppError{
		Err:     ErrValidation,
		Message: "invalid fields: " + strings.Join(names, ", "),
		Field:   field,
		Fields:  fields,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// DuplicateIdentity does not say which of username or email collided.
func DuplicateIdentity() *AppError {
	return &AppError{
		Err:     ErrDuplicateIdentity,
		Message: "username or email already registered",
	}
}

// InvalidCredentials is returned for an unknown email and for a wrong
// password alike, so the two cases cannot be told apart.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "incorrect email or password",
	}
}

// InvalidAssertion rejects an external sign-in: bad nonce, missing claims or
// an unverified email where linking needs one.
func InvalidAssertion(message string) *AppError {
	return &AppError{
		Err:     ErrReplayOrInvalidAssertion,
		Message: message,
	}
}

// IdentityCreationFailed is returned when SSO sign-up could not settle on a
// free username.
func IdentityCreationFailed(message string) *AppError {
	return &AppError{
		Err:     ErrIdentityCreationFailed,
		Message: message,
	}
}

// NotAuthor matches both ErrNotAuthor and ErrForbidden.
func NotAuthor(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotAuthor,
		Message: fmt.Sprintf("only the author may modify %s %s", resource, id),
	}
}

// EmptyContent rejects text that is blank after trimming.
func EmptyContent(field string) *AppError {
	return &AppError{
		Err:     ErrEmptyContent,
		Message: fmt.Sprintf("%s must not be empty", field),
		Field:   field,
		Fields:  map[string]string{field: "required"},
	}
}

// InteractionFailed keeps cause in the chain, so a storage failure behind it
// still matches ErrStorageUnavailable.
func InteractionFailed(message string, cause error) *AppError {
	err := ErrInteractionFailed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrInteractionFailed, cause)
	}
	return &AppError{
		Err:     err,
		Message: message,
	}
}

// StorageUnavailable keeps the driver error in the chain for logging while
// exposing only a generic message.
func StorageUnavailable(op string, err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err),
		Message: "storage is temporarily unavailable",
	}
}
