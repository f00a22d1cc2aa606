package authapi

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks failures where no HTTP response was received.
	ErrTransport = errors.New("auth api unreachable")
	// ErrDecode marks a 2xx response whose body could not be decoded.
	ErrDecode = errors.New("auth api response undecodable")
	// ErrInvalidBaseURL is returned by NewClient for unusable base URLs.
	ErrInvalidBaseURL = errors.New("invalid auth api base url")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth api status %d", e.Status)
	}
	return fmt.Sprintf("auth api status %d: %s", e.Status, e.Message)
}

// TransportError wraps the underlying network error. errors.Is(err, ErrTransport)
// holds, and the cause (e.g. context.Canceled) stays reachable through Unwrap.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports ErrTransport as a match.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
