package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication matches every *AuthError.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRejected: the server answered with a non-2xx status.
	ErrRejected = errors.New("rejected by server")

	// ErrMalformedResponse: a 2xx response lacked required fields.
	ErrMalformedResponse = errors.New("malformed server response")

	// ErrTransport: no response was received.
	ErrTransport = errors.New("server unreachable")

	// ErrNotAuthenticated is returned by operations that require a session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrConfigUnavailable is returned when required configuration is missing or never became available.
	ErrConfigUnavailable = errors.New("configuration unavailable")

	// ErrConfig is returned for invalid configuration values.
	ErrConfig = errors.New("invalid config")
)

// AuthError is returned by Login, Register and UpdateProfile.
// Message is safe to show to the user.
type AuthError struct {
	Op      string
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Message)
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is reports ErrAuthentication as a match for every AuthError.
func (e *AuthError) Is(target error) bool { return target == ErrAuthentication }

// IsAuthError reports whether err is an AuthError of the given kind (any kind when kind is nil).
func IsAuthError(err error, kind error) bool {
	var ae *AuthError
	if !errors.As(err, &ae) {
		return false
	}
	return kind == nil || errors.Is(ae.Kind, kind)
}
