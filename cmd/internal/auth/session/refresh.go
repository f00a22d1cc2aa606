package session

import (
	"context"
	"errors"
	"time"

	"taskdash/cmd/internal/auth/api"
	"taskdash/cmd/security/token"
)

// ticker is the part of *time.Ticker the cycle uses.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func newRealTicker(d time.Duration) ticker { return realTicker{t: time.NewTicker(d)} }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// cycle is one running RefreshCycle.
type cycle struct {
	epoch  uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *cycle) stop() { c.cancel() }

// startCycleLocked cancels any running cycle and starts a new one bound to epoch.
// Caller holds m.mu.
func (m *Manager) startCycleLocked(epoch uint64) {
	if prev := m.cycle; prev != nil {
		prev.stop()
		m.cycle = nil
	}
	if m.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &cycle{epoch: epoch, cancel: cancel, done: make(chan struct{})}
	m.cycle = c

	t := m.newTicker(m.cfg.RefreshInterval)
	go m.runCycle(ctx, c, t)
}

func (m *Manager) runCycle(ctx context.Context, c *cycle, t ticker) {
	defer close(c.done)
	defer t.Stop()

	m.log.Debug("session.refresh.cycle.start", "interval", m.cfg.RefreshInterval.String())
	defer m.log.Debug("session.refresh.cycle.stop")

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			// A tick and a cancel can be ready together; cancellation wins.
			if ctx.Err() != nil {
				return
			}
			if done := m.tick(ctx, c.epoch); done {
				return
			}
		}
	}
}

// tick runs one refresh sequence and reports whether the cycle should end.
func (m *Manager) tick(ctx context.Context, epoch uint64) bool {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return true
	}
	tok := m.token
	valid := m.authenticatedLocked()
	m.mu.Unlock()

	if !valid {
		m.log.Warn("session.refresh.invalid_session")
		m.expire(ctx, epoch, ReasonInvalidSession)
		return true
	}

	attempts := m.cfg.RefreshMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		resp, err := m.api.Refresh(ctx, tok)
		if ctx.Err() != nil {
			// Cancelled by logout, a newer session or Close.
			return true
		}

		var se *authapi.StatusError
		switch {
		case err == nil:
			if !token.Valid(resp.Token) {
				m.metrics.refresh("malformed")
				m.log.Warn("session.refresh.malformed", "attempt", attempt)
				m.expire(ctx, epoch, ReasonMalformedRefresh)
				return true
			}
			m.metrics.refresh("success")
			return !m.applyRefresh(ctx, epoch, resp.Token)

		case errors.As(err, &se):
			m.metrics.refresh("rejected")
			m.log.Warn("session.refresh.rejected", "status", se.Status, "code", se.Code)
			m.expire(ctx, epoch, ReasonRefreshRejected)
			return true

		case errors.Is(err, authapi.ErrDecode):
			m.metrics.refresh("malformed")
			m.log.Warn("session.refresh.malformed", "attempt", attempt, "err", err)
			m.expire(ctx, epoch, ReasonMalformedRefresh)
			return true

		default:
			m.metrics.refresh("transport")
			m.log.Warn("session.refresh.fail",
				"attempt", attempt,
				"max_attempts", attempts,
				"err", err,
			)
			if attempt >= attempts {
				m.expire(ctx, epoch, ReasonRefreshUnreachable)
				return true
			}
			if err := m.sleep(ctx, m.cfg.RefreshRetryDelay); err != nil {
				return true
			}
		}
	}
}

// applyRefresh installs a renewed token when epoch is still current and
// reports whether it did.
func (m *Manager) applyRefresh(ctx context.Context, epoch uint64, tok string) bool {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.log.Debug("session.refresh.stale")
		return false
	}
	m.token = tok
	m.lastRefresh = m.now()
	ev := m.eventLocked(EventRefreshed, ReasonRefresh)
	m.mu.Unlock()

	m.persistIfCurrent(ctx, epoch, func(sctx context.Context) {
		m.writeToken(sctx, tok)
	})
	m.emitIfCurrent(ev, epoch)
	m.log.Info("session.refresh.ok", "token_fp", token.Fingerprint(tok))
	return true
}

// expire is the implicit logout issued by the cycle.
func (m *Manager) expire(ctx context.Context, epoch uint64, reason string) {
	if !m.clear(ctx, reason, epoch, true) {
		m.log.Debug("session.refresh.expire_stale", "reason", reason)
	}
}
