// Package ids provides ID primitives (ULID) for event envelopes and stream clients.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars).
// ULIDs sort by creation time, which keeps event logs readable.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustULID is NewULID for call sites that cannot surface an error.
// It falls back to ulid.Make on a reader failure.
func MustULID(now time.Time) string {
	id, err := NewULID(now)
	if err != nil {
		return ulid.Make().String()
	}
	return id
}
