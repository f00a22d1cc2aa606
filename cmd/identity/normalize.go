package identity

import "strings"

// NormalizeUsername trims surrounding whitespace.
// Case is preserved: the backend matches usernames exactly.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeRole lower-cases a role and maps the empty string to RoleTeamMember,
// which is the backend default for self-registration.
func NormalizeRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return RoleTeamMember
	}
	return r
}
