package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskdash/cmd/identity"
	"taskdash/cmd/internal/auth/api"
	"taskdash/cmd/internal/storage"
)

// fakeAPI implements API with per-endpoint funcs and call counters.
type fakeAPI struct {
	login    func(ctx context.Context, username, password string) (authapi.AuthResponse, error)
	register func(ctx context.Context, in authapi.RegisterRequest) (authapi.UserResponse, error)
	refresh  func(ctx context.Context, tok string, n int) (authapi.AuthResponse, error)
	profile  func(ctx context.Context, tok string, in authapi.ProfileRequest) (authapi.UserResponse, error)

	loginCalls    atomic.Int32
	registerCalls atomic.Int32
	refreshCalls  atomic.Int32
	profileCalls  atomic.Int32
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (authapi.AuthResponse, error) {
	f.loginCalls.Add(1)
	if f.login == nil {
		return authapi.AuthResponse{}, &authapi.StatusError{Status: 500}
	}
	return f.login(ctx, username, password)
}

func (f *fakeAPI) Register(ctx context.Context, in authapi.RegisterRequest) (authapi.UserResponse, error) {
	f.registerCalls.Add(1)
	if f.register == nil {
		return authapi.UserResponse{}, &authapi.StatusError{Status: 500}
	}
	return f.register(ctx, in)
}

func (f *fakeAPI) Refresh(ctx context.Context, tok string) (authapi.AuthResponse, error) {
	n := int(f.refreshCalls.Add(1))
	if f.refresh == nil {
		return authapi.AuthResponse{}, &authapi.StatusError{Status: 500}
	}
	return f.refresh(ctx, tok, n)
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, tok string, in authapi.ProfileRequest) (authapi.UserResponse, error) {
	f.profileCalls.Add(1)
	if f.profile == nil {
		return authapi.UserResponse{}, &authapi.StatusError{Status: 500}
	}
	return f.profile(ctx, tok, in)
}

func loginAs(tok string, u identity.User) func(context.Context, string, string) (authapi.AuthResponse, error) {
	return func(context.Context, string, string) (authapi.AuthResponse, error) {
		uu := u
		return authapi.AuthResponse{Token: tok, User: &uu}, nil
	}
}

var errNetDown = &authapi.TransportError{Method: "POST", Path: "/auth/refresh", Err: errors.New("connection refused")}

// manualTicker fires only when the test sends on it.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (f *tickerFactory) new(time.Duration) ticker {
	t := &manualTicker{ch: make(chan time.Time, 1)}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	return t
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *tickerFactory) get(i int) *manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[i]
}

func (f *tickerFactory) last() *manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[len(f.tickers)-1]
}

// fire sends one tick without blocking.
func (t *manualTicker) fire() {
	select {
	case t.ch <- time.Now():
	default:
	}
}

// recorder collects events and navigation calls.
type recorder struct {
	events   chan Event
	navCalls atomic.Int32
	shows    atomic.Int32
	hides    atomic.Int32
}

func newRecorder() *recorder {
	return &recorder{events: make(chan Event, 64)}
}

func (r *recorder) SessionChanged(ev Event) { r.events <- ev }
func (r *recorder) ToLogin(context.Context) { r.navCalls.Add(1) }
func (r *recorder) Show()                   { r.shows.Add(1) }
func (r *recorder) Hide()                   { r.hides.Add(1) }

// waitFor returns the next event of kind, failing the test after a timeout.
func (r *recorder) waitFor(t *testing.T, kind EventKind) Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.events:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
			return Event{}
		}
	}
}

func (r *recorder) drain() {
	for {
		select {
		case <-r.events:
		default:
			return
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	m       *Manager
	api     *fakeAPI
	store   storage.Store
	tickers *tickerFactory
	rec     *recorder
}

func newHarness(t *testing.T, api *fakeAPI, store storage.Store) *harness {
	t.Helper()

	if store == nil {
		store = storage.NewMemoryStore()
	}
	rec := newRecorder()

	m, err := NewManager(DefaultConfig(), api, store,
		WithLogger(discardLogger()),
		WithNotifier(rec),
		WithNavigator(rec),
		WithLoadingIndicator(rec),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tf := &tickerFactory{}
	m.newTicker = tf.new
	m.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	t.Cleanup(m.Close)
	return &harness{m: m, api: api, store: store, tickers: tf, rec: rec}
}

func storedValue(t *testing.T, s storage.Store, key string) (string, bool) {
	t.Helper()
	v, ok, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("store.Get(%q): %v", key, err)
	}
	return v, ok
}

// failingStore fails every operation.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }
func (failingStore) Set(context.Context, string, string) error         { return errStoreDown }
func (failingStore) Delete(context.Context, string) error              { return errStoreDown }
func (failingStore) Close() error                                      { return nil }
