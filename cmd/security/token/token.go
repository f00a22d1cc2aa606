package token

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// segments is the number of dot-separated parts in a compact signed token.
	segments = 3

	// maxLen bounds the token size accepted from storage or the network.
	maxLen = 8192

	fingerprintLen = 12
)

// Validate checks the structural shape of a compact signed token.
// It returns ErrEmpty for blank input and ErrMalformed for anything that is not
// exactly three non-empty dot-separated segments.
func Validate(tok string) error {
	if strings.TrimSpace(tok) == "" {
		return ErrEmpty
	}
	if len(tok) > maxLen || strings.ContainsAny(tok, " \t\r\n") {
		return ErrMalformed
	}
	parts := strings.Split(tok, ".")
	if len(parts) != segments {
		return ErrMalformed
	}
	for _, p := range parts {
		if p == "" {
			return ErrMalformed
		}
	}
	return nil
}

// Valid is the boolean form of Validate.
func Valid(tok string) bool { return Validate(tok) == nil }

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns a short, log-safe identifier for a token.
// Empty input yields an empty fingerprint.
func Fingerprint(tok string) string {
	if tok == "" {
		return ""
	}
	return HashSHA256Hex(tok)[:fingerprintLen]
}

// BearerHeader formats the Authorization header value for tok.
func BearerHeader(tok string) string {
	return "Bearer " + tok
}
