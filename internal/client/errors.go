package client

import (
	"errors"
	"fmt"
)

// ErrOperationInFlight is returned when a second mutation for the same
// reservation is attempted while one is still running.
var ErrOperationInFlight = errors.New("another operation for this reservation is in flight")

// ErrNotAuthenticated is returned when an authenticated call is made
// without a session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Kind classifies an API failure so callers can decide between inline
// display, retry, refetch, and session teardown without inspecting
// status codes.
type Kind string

const (
	// KindValidation: recoverable input problems, surfaced inline.
	KindValidation Kind = "VALIDATION"
	// KindDomainState: the operation conflicts with current server
	// state (sold out, expired hold, wrong status).
	KindDomainState Kind = "DOMAIN_STATE"
	// KindAuth: token invalid or expired; the session has been torn
	// down and the user must re-authenticate.
	KindAuth Kind = "AUTH"
	// KindNetwork: timeout or connectivity failure, retryable.
	KindNetwork Kind = "NETWORK"
	// KindNotFound: stale id; callers should refetch.
	KindNotFound Kind = "NOT_FOUND"
	// KindForbidden: authenticated but not allowed.
	KindForbidden Kind = "FORBIDDEN"
)

// APIError is the classified form of any failed API call.
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
	// Fields carries per-field messages on validation failures.
	Fields map[string][]string
	// Err is the underlying transport error for network failures.
	Err error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same call may succeed.
func (e *APIError) Retryable() bool { return e.Kind == KindNetwork }
