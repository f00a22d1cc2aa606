package session

import (
	"context"
	"time"

	"taskdash/cmd/identity"
)

// Navigator sends the user to the unauthenticated entry point.
type Navigator interface {
	ToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context)

// ToLogin calls f.
func (f NavigatorFunc) ToLogin(ctx context.Context) { f(ctx) }

// LoadingIndicator is toggled around every user-initiated network call.
type LoadingIndicator interface {
	Show()
	Hide()
}

// EventKind names a session-changed moment.
type EventKind string

const (
	EventEstablished    EventKind = "established"
	EventRefreshed      EventKind = "refreshed"
	EventCleared        EventKind = "cleared"
	EventProfileUpdated EventKind = "profile_updated"
)

// Reasons attached to events and logout metrics.
const (
	ReasonLogin              = "login"
	ReasonRestored           = "restored"
	ReasonRefresh            = "refresh"
	ReasonProfile            = "profile"
	ReasonLogout             = "logout"
	ReasonInvalidSession     = "invalid_session"
	ReasonMalformedRefresh   = "malformed_refresh"
	ReasonRefreshRejected    = "refresh_rejected"
	ReasonRefreshUnreachable = "refresh_unreachable"
)

// Event describes a session change. User is nil for EventCleared.
// TokenFingerprint identifies the token without revealing it.
//
// Seq increases with every change of one Manager. Delivery runs outside the
// Manager's lock, so an observer that keeps state must ignore an event whose
// Seq is not above the last one it applied.
type Event struct {
	Kind             EventKind
	Seq              uint64
	Reason           string
	User             *identity.User
	Admin            bool
	TokenFingerprint string
	At               time.Time
}

// Notifier observes session changes. Implementations must not block.
type Notifier interface {
	SessionChanged(ev Event)
}

type noopNavigator struct{}

func (noopNavigator) ToLogin(context.Context) {}

type noopLoading struct{}

func (noopLoading) Show() {}
func (noopLoading) Hide() {}
