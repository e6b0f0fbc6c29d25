package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies backend failures for retry and control-flow
// decisions.
type ErrorKind string

const (
	// KindNotFound means the requested resource does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindUnauthorized means the API key was rejected.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindTransient covers network failures and 5xx responses that may
	// succeed on a later attempt.
	KindTransient ErrorKind = "transient"
	// KindUnknown covers everything else, including malformed responses
	// and explicit refusals from the backend.
	KindUnknown ErrorKind = "unknown"
)

// APIError describes a failed backend call.
type APIError struct {
	Kind       ErrorKind
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %s: %s (status %d)", e.Operation, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("backend %s: %s", e.Operation, e.Message)
}

func (e *APIError) Unwrap() error { return e.Cause }

// Retryable reports whether the call may succeed if attempted again.
func (e *APIError) Retryable() bool { return e.Kind == KindTransient }

// IsNotFound reports whether err is a backend error for a missing
// resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindNotFound
}
