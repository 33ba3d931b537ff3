package api

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Common errors returned by Client operations.
//
// An *Error returned by HTTPClient matches these through errors.Is:
//
//	if errors.Is(err, api.ErrNotFound) {
//	    // the project was deleted by someone else
//	}
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the bearer token is missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller's role does not allow the call.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when the backend refuses a write because of
	// the current entity state.
	ErrConflict = errors.New("conflict")

	// ErrBadRequest is returned when the backend rejects the payload.
	ErrBadRequest = errors.New("bad request")

	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("server error")
)

// Error is a non-2xx response from the REST collaborator.
type Error struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is maps status codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	case ErrServer:
		return e.StatusCode >= 500
	}
	return false
}

// IsRetryable returns true if the error is likely to succeed on retry.
// Network failures and 5xx responses are retryable; client errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
