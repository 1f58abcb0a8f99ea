// internal/apperr/errors.go
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrDuplicateEmail is returned by signup when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrInvalidCredentials is the single authentication failure. It never says which field was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrNotFound is returned by stores when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps any store failure (unavailable db, failed query).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError unless it already carries a
// more specific classification from this package.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var pe *PersistenceError
	switch {
	case errors.As(err, &ve), errors.As(err, &pe),
		errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrInvalidCredentials):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// HTTPStatus maps an error from any service to the response status code.
func HTTPStatus(err error) int {
	var ve *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve),
		errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
