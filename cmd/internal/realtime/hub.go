package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"taskdash/cmd/identity"
	"taskdash/cmd/internal/auth/session"
	v1 "taskdash/contracts/events/v1"
)

// Hub fans session events out to subscribers and remembers the latest
// session state for new subscribers.
//
// Broadcast never blocks: a full client queue drops the envelope.
type Hub struct {
	log *slog.Logger

	// order serializes session state changes and joins, so a subscriber
	// sees its hello_ack and later changes in Seq order.
	order   sync.Mutex
	lastSeq uint64

	mu      sync.RWMutex
	clients map[string]*Client
	current v1.SessionPayload
}

var (
	_ session.Notifier  = (*Hub)(nil)
	_ session.Navigator = (*Hub)(nil)
)

// NewHub constructs an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:     log,
		clients: make(map[string]*Client),
	}
}

// Subscribe adds client to the fanout set.
func (h *Hub) Subscribe(client *Client) {
	if h == nil || client == nil || client.ID == "" {
		return
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("events.subscriber.join", "subscriber_id", client.ID, "subscribers", n)
}

// Unsubscribe removes a client and signals its shutdown.
func (h *Hub) Unsubscribe(id string) {
	if h == nil || id == "" {
		return
	}

	h.mu.Lock()
	cl := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	// Close after removal so no broadcaster still holds the client.
	if cl != nil {
		cl.Close()
		h.log.Info("events.subscriber.leave", "subscriber_id", id)
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Current returns the most recent session payload.
func (h *Hub) Current() v1.SessionPayload {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Seed sets the current state without broadcasting.
func (h *Hub) Seed(p v1.SessionPayload) {
	h.order.Lock()
	defer h.order.Unlock()

	h.mu.Lock()
	h.current = p
	h.mu.Unlock()
}

// Join hands the current state to ack and subscribes client only if ack
// succeeds. No session change can be applied in between, so the client
// misses nothing and never sees a change before its ack.
func (h *Hub) Join(client *Client, ack func(current v1.SessionPayload) bool) bool {
	h.order.Lock()
	defer h.order.Unlock()

	if !ack(h.Current()) {
		return false
	}
	h.Subscribe(client)
	return true
}

// Broadcast delivers env to every subscriber without blocking.
func (h *Hub) Broadcast(env v1.Envelope) {
	if h == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case <-c.Done():
			continue
		default:
		}

		select {
		case c.Send <- env:
		default:
			h.log.Debug("events.drop", "subscriber_id", c.ID, "type", env.Type)
		}
	}
}

// SessionChanged implements session.Notifier.
func (h *Hub) SessionChanged(ev session.Event) {
	typ, ok := eventType(ev.Kind)
	if !ok {
		return
	}

	p := payloadFromEvent(ev)

	h.order.Lock()
	defer h.order.Unlock()

	if ev.Seq != 0 {
		if ev.Seq <= h.lastSeq {
			h.log.Debug("events.stale", "kind", string(ev.Kind), "seq", ev.Seq, "last_seq", h.lastSeq)
			return
		}
		h.lastSeq = ev.Seq
	}

	h.mu.Lock()
	h.current = p
	h.mu.Unlock()

	h.Broadcast(newEnvelope(typ, mustJSON(p), ev.At))
}

// ToLogin implements session.Navigator: subscribed UIs are told to show the login view.
func (h *Hub) ToLogin(context.Context) {
	h.Broadcast(newEnvelope(v1.TypeNavigateLogin, mustJSON(v1.NavigatePayload{View: "login"}), time.Now().UTC()))
}

func eventType(k session.EventKind) (string, bool) {
	switch k {
	case session.EventEstablished:
		return v1.TypeSessionEstablished, true
	case session.EventRefreshed:
		return v1.TypeSessionRefreshed, true
	case session.EventCleared:
		return v1.TypeSessionCleared, true
	case session.EventProfileUpdated:
		return v1.TypeProfileUpdated, true
	default:
		return "", false
	}
}

func payloadFromEvent(ev session.Event) v1.SessionPayload {
	p := v1.SessionPayload{Reason: ev.Reason}
	if ev.User != nil {
		p.Authenticated = true
		p.Admin = ev.Admin
		p.User = userView(*ev.User)
		p.TokenFingerprint = ev.TokenFingerprint
	}
	return p
}

// PayloadFromSnapshot converts a Manager snapshot for Seed and hello_ack.
func PayloadFromSnapshot(s session.Snapshot) v1.SessionPayload {
	p := v1.SessionPayload{
		Authenticated:    s.Authenticated,
		Admin:            s.Admin,
		TokenFingerprint: s.TokenFingerprint,
	}
	if s.User != nil {
		p.User = userView(*s.User)
	}
	return p
}

func userView(u identity.User) *v1.UserView {
	return &v1.UserView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       string(u.Role),
		Name:       u.Name,
		Department: u.Department,
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
