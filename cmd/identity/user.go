package identity

import "strings"

// Role is the authorization role carried by a user record.
type Role string

const (
	// RoleAdmin grants access to admin reporting views.
	RoleAdmin Role = "admin"
	// RoleTeamMember is the default role for regular users.
	RoleTeamMember Role = "team_member"
)

// Valid reports whether r is one of the roles the backend accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeamMember:
		return true
	default:
		return false
	}
}

// User mirrors the user object returned by the auth endpoints.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Role       Role   `json:"role"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
}

// HasRole reports whether the user carries role.
// An empty role never matches, so missing role data reads as "not granted".
func (u User) HasRole(role Role) bool {
	if strings.TrimSpace(string(role)) == "" || u.Role == "" {
		return false
	}
	return u.Role == role
}

// Complete reports whether the record carries the fields the client relies on.
func (u User) Complete() bool {
	return strings.TrimSpace(u.ID) != ""
}
