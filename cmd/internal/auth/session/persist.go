package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"taskdash/cmd/identity"
	"taskdash/cmd/internal/storage"
	"taskdash/cmd/security/token"
)

const storageTimeout = 5 * time.Second

// persistIfCurrent runs fn under persistMu when epoch is still current.
// fn receives a context detached from the caller's cancellation so that a
// logout triggered from a cancelled cycle still reaches storage.
func (m *Manager) persistIfCurrent(ctx context.Context, epoch uint64, fn func(context.Context)) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if m.currentEpoch() != epoch {
		return
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storageTimeout)
	defer cancel()
	fn(sctx)
}

func (m *Manager) writeToken(ctx context.Context, tok string) {
	if err := m.store.Set(ctx, m.cfg.TokenKey, tok); err != nil {
		m.metrics.storageError("set_token")
		m.log.Error("session.storage.set_failed", "key", m.cfg.TokenKey, "err", err)
	}
}

func (m *Manager) writeUser(ctx context.Context, u identity.User) {
	b, err := json.Marshal(u)
	if err != nil {
		m.log.Error("session.storage.encode_failed", "key", m.cfg.UserKey, "err", err)
		return
	}
	if err := m.store.Set(ctx, m.cfg.UserKey, string(b)); err != nil {
		m.metrics.storageError("set_user")
		m.log.Error("session.storage.set_failed", "key", m.cfg.UserKey, "err", err)
	}
}

func (m *Manager) deleteKey(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		m.metrics.storageError("delete")
		m.log.Error("session.storage.delete_failed", "key", key, "err", err)
	}
}

// restore reads both entries and returns a usable session. When the pair is
// not usable but something was stored, both entries are purged. A plain read
// failure is treated as absence without purging.
func (m *Manager) restore(ctx context.Context) (string, identity.User, bool) {
	sctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	rawTok, tokState := m.readEntry(sctx, m.cfg.TokenKey)
	rawUser, userState := m.readEntry(sctx, m.cfg.UserKey)

	if tokState == entryUnreadable || userState == entryUnreadable {
		return "", identity.User{}, false
	}
	if tokState == entryAbsent && userState == entryAbsent {
		return "", identity.User{}, false
	}

	tok, tokOK := parseStoredToken(rawTok, tokState)
	user, userOK := parseStoredUser(rawUser, userState)
	if tokOK && userOK {
		return tok, user, true
	}

	m.log.Warn("session.restore.corrupt",
		"token_ok", tokOK,
		"user_ok", userOK,
	)
	m.purge(ctx)
	return "", identity.User{}, false
}

type entryState int

const (
	entryAbsent entryState = iota
	entryPresent
	entryCorrupt
	entryUnreadable
)

func (m *Manager) readEntry(ctx context.Context, key string) (string, entryState) {
	v, ok, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrCorrupt):
		return "", entryCorrupt
	case err != nil:
		m.metrics.storageError("get")
		m.log.Error("session.storage.get_failed", "key", key, "err", err)
		return "", entryUnreadable
	case !ok:
		return "", entryAbsent
	default:
		return v, entryPresent
	}
}

func (m *Manager) purge(ctx context.Context) {
	m.persistIfCurrent(ctx, m.currentEpoch(), func(sctx context.Context) {
		m.deleteKey(sctx, m.cfg.TokenKey)
		m.deleteKey(sctx, m.cfg.UserKey)
	})
}

// isNullish matches values left behind by code that stored a missing object as text.
func isNullish(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "null", "undefined":
		return true
	default:
		return false
	}
}

func parseStoredToken(raw string, st entryState) (string, bool) {
	if st != entryPresent || isNullish(raw) {
		return "", false
	}
	tok := strings.TrimSpace(raw)
	if !token.Valid(tok) {
		return "", false
	}
	return tok, true
}

func parseStoredUser(raw string, st entryState) (identity.User, bool) {
	if st != entryPresent || isNullish(raw) {
		return identity.User{}, false
	}
	var u identity.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return identity.User{}, false
	}
	if !u.Complete() {
		return identity.User{}, false
	}
	return u, true
}
