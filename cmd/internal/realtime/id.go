package realtime

import (
	"time"

	"taskdash/cmd/identity/ids"
)

// NewSubscriberID returns a ULID identifying one WebSocket subscriber.
func NewSubscriberID(now time.Time) string {
	return ids.MustULID(now)
}

// NewEnvelopeID returns a ULID used as envelope id.
// ULIDs sort by time, which keeps event logs readable.
func NewEnvelopeID(now time.Time) string {
	return ids.MustULID(now)
}
