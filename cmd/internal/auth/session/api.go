package session

import (
	"context"
	"errors"

	"taskdash/cmd/internal/auth/api"
)

// API is the subset of the auth endpoints the Manager calls. *authapi.Client implements it.
type API interface {
	Login(ctx context.Context, username, password string) (authapi.AuthResponse, error)
	Register(ctx context.Context, in authapi.RegisterRequest) (authapi.UserResponse, error)
	Refresh(ctx context.Context, token string) (authapi.AuthResponse, error)
	UpdateProfile(ctx context.Context, token string, in authapi.ProfileRequest) (authapi.UserResponse, error)
}

var _ API = (*authapi.Client)(nil)

// authError maps an authapi failure to an AuthError with a displayable message.
func authError(op string, err error, fallback string) *AuthError {
	var se *authapi.StatusError
	switch {
	case errors.As(err, &se):
		msg := se.Message
		if msg == "" {
			msg = fallback
		}
		return &AuthError{Op: op, Kind: ErrRejected, Status: se.Status, Message: msg, Err: err}
	case errors.Is(err, authapi.ErrDecode):
		return &AuthError{Op: op, Kind: ErrMalformedResponse, Message: fallback, Err: err}
	default:
		return &AuthError{Op: op, Kind: ErrTransport, Message: fallback, Err: err}
	}
}

func malformed(op, fallback string) *AuthError {
	return &AuthError{Op: op, Kind: ErrMalformedResponse, Message: fallback}
}
