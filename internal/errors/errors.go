package errors

import (
	"net/http"
)

// APIError is the error type every handler and service surfaces. Status is
// the HTTP status rendered by the error-handler middleware; Internal is the
// wrapped cause, logged but never sent to the client.
type APIError struct {
	Status   int    `json:"-"`
	Message  string `json:"error"`
	Internal error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

func newError(status int, message string, err error) *APIError {
	return &APIError{Status: status, Message: message, Internal: err}
}

func BadRequest(message string, err error) *APIError {
	return newError(http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *APIError {
	return newError(http.StatusUnauthorized, message, err)
}

func Forbidden(message string, err error) *APIError {
	return newError(http.StatusForbidden, message, err)
}

func NotFound(message string, err error) *APIError {
	return newError(http.StatusNotFound, message, err)
}

// Conflict marks a race that slipped past the row lock (e.g. a duplicate
// revision number). The caller may retry the whole operation once.
func Conflict(message string, err error) *APIError {
	return newError(http.StatusConflict, message, err)
}

// PreconditionFailed marks a transition attempted from the wrong source
// state or with a missing required field. Not retryable.
func PreconditionFailed(message string, err error) *APIError {
	return newError(http.StatusUnprocessableEntity, message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return newError(http.StatusUnprocessableEntity, message, err)
}

// Unavailable marks a transaction that could not commit; transient, safe to
// retry with the same expectations as Conflict.
func Unavailable(message string, err error) *APIError {
	return newError(http.StatusServiceUnavailable, message, err)
}

func Internal(err error) *APIError {
	return newError(http.StatusInternalServerError, "Internal server error", err)
}

// NewValidationError wraps a gin binding failure.
func NewValidationError(err error) *APIError {
	return newError(http.StatusUnprocessableEntity, "Invalid input", err)
}
