package session

import (
	"strings"

	"taskdash/cmd/identity"
	"taskdash/cmd/internal/auth/api"
)

// RegisterInput is the account data sent to POST /auth/register.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	Name       string
	Role       string
	Department string
}

func (in RegisterInput) request() (authapi.RegisterRequest, error) {
	username := identity.NormalizeUsername(in.Username)
	email := identity.NormalizeEmail(in.Email)
	switch {
	case username == "":
		return authapi.RegisterRequest{}, identity.OpError{Op: "register", Kind: identity.ErrInvalidInput, Msg: "username is required"}
	case email == "" || !strings.Contains(email, "@"):
		return authapi.RegisterRequest{}, identity.OpError{Op: "register", Kind: identity.ErrInvalidInput, Msg: "a valid email is required"}
	case in.Password == "":
		return authapi.RegisterRequest{}, identity.OpError{Op: "register", Kind: identity.ErrInvalidInput, Msg: "password is required"}
	}

	role := identity.NormalizeRole(in.Role)
	if !role.Valid() {
		return authapi.RegisterRequest{}, identity.OpError{Op: "register", Kind: identity.ErrInvalidRole, Msg: string(role)}
	}

	return authapi.RegisterRequest{
		Username:   username,
		Email:      email,
		Password:   in.Password,
		Name:       strings.TrimSpace(in.Name),
		Role:       string(role),
		Department: strings.TrimSpace(in.Department),
	}, nil
}

// ProfileUpdate lists the profile fields to change. Nil fields are left as-is.
type ProfileUpdate struct {
	Name       *string
	Email      *string
	Department *string
}

func (p ProfileUpdate) request() (authapi.ProfileRequest, error) {
	var out authapi.ProfileRequest

	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		out.Name = &v
	}
	if p.Email != nil {
		v := identity.NormalizeEmail(*p.Email)
		if v == "" || !strings.Contains(v, "@") {
			return authapi.ProfileRequest{}, identity.OpError{Op: "update_profile", Kind: identity.ErrInvalidInput, Msg: "a valid email is required"}
		}
		out.Email = &v
	}
	if p.Department != nil {
		v := strings.TrimSpace(*p.Department)
		out.Department = &v
	}

	if out.Name == nil && out.Email == nil && out.Department == nil {
		return authapi.ProfileRequest{}, identity.OpError{Op: "update_profile", Kind: identity.ErrInvalidInput, Msg: "nothing to update"}
	}
	return out, nil
}
