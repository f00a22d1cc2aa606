// Package v1 defines the taskdash session event stream contract.
//
// The agent pushes these envelopes to dependent UIs over /events so they can
// re-render when the session changes. Kept free of internal imports so
// external clients can depend on it directly.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is negotiated during the WebSocket handshake.
const Subprotocol = "taskdash.events.v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a subscription (client -> agent).
	TypeHello = "hello"
	// TypeHelloAck acknowledges the subscription and carries the current snapshot (agent -> client).
	TypeHelloAck = "hello_ack"

	// TypeSessionEstablished is pushed after login or restore.
	TypeSessionEstablished = "session_established"
	// TypeSessionRefreshed is pushed after a successful token renewal.
	TypeSessionRefreshed = "session_refreshed"
	// TypeSessionCleared is pushed after explicit or implicit logout.
	TypeSessionCleared = "session_cleared"
	// TypeProfileUpdated is pushed after the stored user record changes.
	TypeProfileUpdated = "profile_updated"
	// TypeNavigateLogin asks the UI to show its login view.
	TypeNavigateLogin = "navigate_login"

	// TypeError is a generic error envelope (agent -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypeSessionEstablished,
		TypeSessionRefreshed,
		TypeSessionCleared,
		TypeProfileUpdated,
		TypeNavigateLogin,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// HelloPayload is sent by the client to subscribe.
type HelloPayload struct {
	Client string `json:"client,omitempty"`
}

// UserView is the public projection of the signed-in user.
type UserView struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
}

// SessionPayload describes the session after a change.
// Tokens never cross the wire; only a short fingerprint does.
type SessionPayload struct {
	Authenticated    bool      `json:"authenticated"`
	Admin            bool      `json:"admin"`
	User             *UserView `json:"user,omitempty"`
	TokenFingerprint string    `json:"token_fingerprint,omitempty"`
	Reason           string    `json:"reason,omitempty"`
}

// HelloAckPayload carries the subscriber id and the current session.
type HelloAckPayload struct {
	SubscriberID string         `json:"subscriber_id"`
	Session      SessionPayload `json:"session"`
}

// NavigatePayload names the view the UI should show.
type NavigatePayload struct {
	View string `json:"view"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
