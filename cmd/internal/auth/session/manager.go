package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"taskdash/cmd/identity"
	"taskdash/cmd/internal/storage"
	"taskdash/cmd/security/token"
)

// Manager owns one client session. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	api     API
	store   storage.Store
	log     *slog.Logger
	nav     Navigator
	loading LoadingIndicator
	notify  []Notifier
	metrics *Metrics

	now       func() time.Time
	newTicker func(time.Duration) ticker
	sleep     func(context.Context, time.Duration) error

	mu            sync.Mutex
	token         string
	user          *identity.User
	epoch         uint64
	seq           uint64
	establishedAt time.Time
	lastRefresh   time.Time
	cycle         *cycle
	closed        bool

	// persistMu serializes storage writes so an epoch check and the write it guards are atomic.
	persistMu sync.Mutex
}

// Option configures optional Manager dependencies.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithNavigator sets the hook invoked on every logout.
func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		if n != nil {
			m.nav = n
		}
	}
}

// WithLoadingIndicator sets the hook toggled around user-initiated network calls.
func WithLoadingIndicator(l LoadingIndicator) Option {
	return func(m *Manager) {
		if l != nil {
			m.loading = l
		}
	}
}

// WithNotifier adds a session-changed observer. May be given more than once.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notify = append(m.notify, n)
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager validates cfg and returns an idle Manager. Call Initialize to
// restore a stored session.
func NewManager(cfg Config, api API, store storage.Store, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if api == nil {
		return nil, fmt.Errorf("%w: nil auth api", ErrConfigUnavailable)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil storage", ErrConfigUnavailable)
	}

	m := &Manager{
		cfg:       cfg,
		api:       api,
		store:     store,
		log:       slog.Default(),
		nav:       noopNavigator{},
		loading:   noopLoading{},
		now:       time.Now,
		newTicker: newRealTicker,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(m)
	}
	m.metrics.setAuthenticated(false)
	return m, nil
}

// Initialize restores a stored session, if any, and starts the RefreshCycle
// for it. Unusable stored entries are purged. Stored data never causes an error;
// only a cancelled ctx does.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tok, user, ok := m.restore(ctx)
	if !ok {
		m.log.Info("session.restore.none")
		return nil
	}

	m.establish(ctx, tok, user, ReasonRestored, false)
	m.log.Info("session.restore.ok",
		"user_id", user.ID,
		"token_fp", token.Fingerprint(tok),
	)
	return nil
}

// Login exchanges credentials for a session. A failure leaves any existing
// session untouched.
func (m *Manager) Login(ctx context.Context, username, password string) (identity.User, error) {
	const op = "login"
	const fallback = "Login failed"

	username = identity.NormalizeUsername(username)
	if username == "" || password == "" {
		return identity.User{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "username and password are required"}
	}

	m.loading.Show()
	defer m.loading.Hide()

	resp, err := m.api.Login(ctx, username, password)
	if err != nil {
		ae := authError(op, err, fallback)
		m.metrics.login(resultOf(ae))
		m.log.Warn("session.login.fail", "kind", ae.Kind.Error(), "status", ae.Status)
		return identity.User{}, ae
	}
	if resp.User == nil || !resp.User.Complete() || !token.Valid(resp.Token) {
		ae := malformed(op, fallback)
		m.metrics.login(resultOf(ae))
		m.log.Warn("session.login.malformed",
			"has_token", resp.Token != "",
			"has_user", resp.User != nil,
		)
		return identity.User{}, ae
	}

	user := *resp.User
	m.establish(ctx, resp.Token, user, ReasonLogin, true)
	m.metrics.login("success")
	m.log.Info("session.login.ok", "user_id", user.ID, "role", string(user.Role))
	return user, nil
}

// Register creates an account. It never establishes a session; the caller logs in separately.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (identity.User, error) {
	const op = "register"
	const fallback = "Registration failed"

	req, err := in.request()
	if err != nil {
		return identity.User{}, err
	}

	m.loading.Show()
	defer m.loading.Hide()

	resp, err := m.api.Register(ctx, req)
	if err != nil {
		ae := authError(op, err, fallback)
		m.log.Warn("session.register.fail", "kind", ae.Kind.Error(), "status", ae.Status)
		return identity.User{}, ae
	}
	if resp.User == nil || !resp.User.Complete() {
		m.log.Warn("session.register.malformed")
		return identity.User{}, malformed(op, fallback)
	}

	m.log.Info("session.register.ok", "user_id", resp.User.ID)
	return *resp.User, nil
}

// Logout clears the session from memory and storage, stops the RefreshCycle
// and invokes the navigator. It is idempotent and never fails; storage
// errors are logged.
func (m *Manager) Logout(ctx context.Context) {
	m.clear(ctx, ReasonLogout, 0, false)
}

// Token returns the current token, or "" without a session.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.presentLocked() {
		return ""
	}
	return m.token
}

// User returns the current user record.
func (m *Manager) User() (identity.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.presentLocked() {
		return identity.User{}, false
	}
	return *m.user, true
}

// IsAuthenticated reports whether a user is present and the token is structurally valid.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticatedLocked()
}

// IsAdmin reports whether the session's user carries the configured admin role.
func (m *Manager) IsAdmin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adminLocked()
}

// UpdateProfile changes profile fields on the server and replaces the stored
// user with the returned record. The token is left untouched.
func (m *Manager) UpdateProfile(ctx context.Context, in ProfileUpdate) (identity.User, error) {
	const op = "update_profile"
	const fallback = "Failed to update profile"

	m.mu.Lock()
	if !m.authenticatedLocked() {
		m.mu.Unlock()
		return identity.User{}, ErrNotAuthenticated
	}
	tok, epoch := m.token, m.epoch
	m.mu.Unlock()

	req, err := in.request()
	if err != nil {
		return identity.User{}, err
	}

	m.loading.Show()
	defer m.loading.Hide()

	resp, err := m.api.UpdateProfile(ctx, tok, req)
	if err != nil {
		ae := authError(op, err, fallback)
		m.metrics.profile(resultOf(ae))
		m.log.Warn("session.profile.fail", "kind", ae.Kind.Error(), "status", ae.Status)
		return identity.User{}, ae
	}
	if resp.User == nil || !resp.User.Complete() {
		ae := malformed(op, fallback)
		m.metrics.profile(resultOf(ae))
		m.log.Warn("session.profile.malformed")
		return identity.User{}, ae
	}
	user := *resp.User

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.log.Info("session.profile.stale", "user_id", user.ID)
		m.metrics.profile("stale")
		return user, nil
	}
	m.user = &user
	ev := m.eventLocked(EventProfileUpdated, ReasonProfile)
	m.mu.Unlock()

	m.persistIfCurrent(ctx, epoch, func(sctx context.Context) {
		m.writeUser(sctx, user)
	})
	m.metrics.profile("success")
	m.emitIfCurrent(ev, epoch)
	m.log.Info("session.profile.ok", "user_id", user.ID)
	return user, nil
}

// Snapshot is a read-only view for status endpoints. It never carries the token itself.
type Snapshot struct {
	Authenticated    bool           `json:"authenticated"`
	Admin            bool           `json:"admin"`
	User             *identity.User `json:"user,omitempty"`
	TokenFingerprint string         `json:"token_fingerprint,omitempty"`
	CycleActive      bool           `json:"refresh_cycle_active"`
	EstablishedAt    *time.Time     `json:"established_at,omitempty"`
	LastRefresh      *time.Time     `json:"last_refresh,omitempty"`
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Authenticated: m.authenticatedLocked(),
		Admin:         m.adminLocked(),
		CycleActive:   m.cycle != nil,
	}
	if m.user != nil {
		u := *m.user
		s.User = &u
		s.TokenFingerprint = token.Fingerprint(m.token)
	}
	if !m.establishedAt.IsZero() {
		t := m.establishedAt
		s.EstablishedAt = &t
	}
	if !m.lastRefresh.IsZero() {
		t := m.lastRefresh
		s.LastRefresh = &t
	}
	return s
}

// Close stops the RefreshCycle and waits for it to exit. The session itself
// stays in memory and storage. Must not be called from a Notifier or Navigator.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	c := m.cycle
	m.cycle = nil
	m.mu.Unlock()

	if c != nil {
		c.stop()
		<-c.done
	}
}

// presentLocked reports whether both halves of a session are held, valid or not.
func (m *Manager) presentLocked() bool {
	return m.user != nil && m.token != ""
}

func (m *Manager) authenticatedLocked() bool {
	return m.user != nil && m.user.Complete() && token.Valid(m.token)
}

func (m *Manager) adminLocked() bool {
	if !m.authenticatedLocked() {
		return false
	}
	admin := strings.TrimSpace(m.cfg.AdminRole)
	if admin == "" {
		return false
	}
	return m.user.HasRole(identity.Role(admin))
}

// establish installs a new session, optionally persists it, restarts the
// RefreshCycle and emits EventEstablished.
func (m *Manager) establish(ctx context.Context, tok string, user identity.User, reason string, persist bool) {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.token = tok
	m.user = &user
	m.establishedAt = m.now()
	m.lastRefresh = time.Time{}
	m.startCycleLocked(epoch)
	ev := m.eventLocked(EventEstablished, reason)
	m.metrics.setAuthenticated(true)
	m.mu.Unlock()

	if persist {
		m.persistIfCurrent(ctx, epoch, func(sctx context.Context) {
			m.writeToken(sctx, tok)
			m.writeUser(sctx, user)
		})
	}
	m.emit(ev)
}

// clear removes the session. With guarded set, it only acts when epoch is
// still current and reports whether it did.
func (m *Manager) clear(ctx context.Context, reason string, epoch uint64, guarded bool) bool {
	m.mu.Lock()
	if guarded && m.epoch != epoch {
		m.mu.Unlock()
		return false
	}
	had := m.user != nil || m.token != ""
	m.epoch++
	cleared := m.epoch
	m.token = ""
	m.user = nil
	m.establishedAt = time.Time{}
	m.lastRefresh = time.Time{}
	c := m.cycle
	m.cycle = nil
	ev := m.eventLocked(EventCleared, reason)
	m.metrics.setAuthenticated(false)
	m.mu.Unlock()

	if c != nil {
		c.stop()
	}

	m.persistIfCurrent(ctx, cleared, func(sctx context.Context) {
		m.deleteKey(sctx, m.cfg.TokenKey)
		m.deleteKey(sctx, m.cfg.UserKey)
	})

	if had {
		m.metrics.logout(reason)
		m.log.Info("session.cleared", "reason", reason)
	}
	m.nav.ToLogin(context.WithoutCancel(ctx))
	m.emit(ev)
	return true
}

// eventLocked stamps the next sequence number, so observers can tell a late
// delivery from a newer change.
func (m *Manager) eventLocked(kind EventKind, reason string) Event {
	m.seq++
	ev := Event{Kind: kind, Seq: m.seq, Reason: reason, At: m.now()}
	if m.user != nil {
		u := *m.user
		ev.User = &u
		ev.Admin = m.adminLocked()
		ev.TokenFingerprint = token.Fingerprint(m.token)
	}
	return ev
}

func (m *Manager) emit(ev Event) {
	for _, n := range m.notify {
		n.SessionChanged(ev)
	}
}

// emitIfCurrent drops ev when the session it describes was replaced or
// cleared after ev was built.
func (m *Manager) emitIfCurrent(ev Event, epoch uint64) {
	if m.currentEpoch() != epoch {
		m.log.Debug("session.event.stale", "kind", string(ev.Kind), "seq", ev.Seq)
		return
	}
	m.emit(ev)
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}
