package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// Class buckets catalog failures by how the caller should react.
type Class string

// Failure classes.
const (
	// ClassTransient covers timeouts, 5xx responses and rate-limit
	// responses; the resilient client retries these with backoff.
	ClassTransient Class = "transient"
	// ClassPermanent covers not-found and malformed requests; these fail
	// immediately.
	ClassPermanent Class = "permanent"
	// ClassAuthExpired triggers one re-authentication followed by one
	// retry of the original call.
	ClassAuthExpired Class = "auth_expired"
)

// Error is a classified catalog failure.
type Error struct {
	Op         string
	Class      Class
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("catalog %s: %s (status %d): %v", e.Op, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("catalog %s: %s: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusError classifies an HTTP status into an Error.
func statusError(op string, status int, err error) *Error {
	return &Error{Op: op, Class: classify(status), StatusCode: status, Err: err}
}

// transportError wraps a network-level failure; timeouts and connection
// resets are retryable.
func transportError(op string, err error) *Error {
	return &Error{Op: op, Class: ClassTransient, Err: err}
}

// decodeError marks a malformed response body; retrying will not help.
func decodeError(op string, err error) *Error {
	return &Error{Op: op, Class: ClassPermanent, Err: err}
}

func classify(status int) Class {
	switch {
	case status == http.StatusUnauthorized:
		return ClassAuthExpired
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// ClassOf extracts the failure class, defaulting to transient so unknown
// errors (e.g. raw network failures) remain retryable.
func ClassOf(err error) Class {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassTransient
}

// IsTransient reports whether the error should be retried with backoff.
func IsTransient(err error) bool {
	return ClassOf(err) == ClassTransient
}

// IsPermanent reports whether the error is not worth retrying.
func IsPermanent(err error) bool {
	return ClassOf(err) == ClassPermanent
}

// IsAuthExpired reports whether the session needs to be re-established.
func IsAuthExpired(err error) bool {
	return ClassOf(err) == ClassAuthExpired
}

// IsNotFound reports whether the catalog has no entity with the given id.
func IsNotFound(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound
}
