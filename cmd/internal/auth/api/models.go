package authapi

import "taskdash/cmd/identity"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
}

// ProfileRequest is the body of PUT /auth/profile. Nil fields are left unchanged.
type ProfileRequest struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Department *string `json:"department,omitempty"`
}

// AuthResponse is returned by login and refresh. Either field may be missing
// on a malformed response; callers decide what is acceptable.
type AuthResponse struct {
	Token string         `json:"token"`
	User  *identity.User `json:"user,omitempty"`
}

// UserResponse is returned by register and profile update.
type UserResponse struct {
	User *identity.User `json:"user,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse accepts both {message} and {error:{code,message}}.
type errorResponse struct {
	Message string    `json:"message"`
	Error   *apiError `json:"error"`
}
