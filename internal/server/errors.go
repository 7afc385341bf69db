// Package server receives GitHub webhook deliveries and backend progress updates.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrMalformedPayload indicates a request body that is not the expected JSON.
type ErrMalformedPayload struct {
	Cause error
}

func (e *ErrMalformedPayload) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Cause)
}

func (e *ErrMalformedPayload) Unwrap() error {
	return e.Cause
}

// ErrCommentFailed indicates the comment for a progress update could not be posted.
type ErrCommentFailed struct {
	Cause error
}

func (e *ErrCommentFailed) Error() string {
	return fmt.Sprintf("failed to post comment: %v", e.Cause)
}

func (e *ErrCommentFailed) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *ErrValidation
	var payloadErr *ErrMalformedPayload
	var commentErr *ErrCommentFailed

	switch {
	case errors.As(err, &validationErr), errors.As(err, &payloadErr):
		return http.StatusBadRequest
	case errors.As(err, &commentErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// validationError converts a validator failure into an ErrValidation naming
// the first offending field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ErrValidation{Field: fe.Namespace(), Message: "failed on '" + fe.Tag() + "'"}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}
