package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"taskdash/cmd/identity"
	"taskdash/cmd/internal/auth/api"
	"taskdash/cmd/internal/storage"
)

func TestLogin_AgainstHTTPStub(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/auth/login" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var in struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Username != "alice" || in.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"a.b.c","user":{"id":"u1","role":"admin"}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := authapi.NewClient(authapi.ClientConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	store := storage.NewMemoryStore()
	m, err := NewManager(DefaultConfig(), client, store, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.newTicker = (&tickerFactory{}).new
	t.Cleanup(m.Close)

	u, err := m.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("Login user=%+v", u)
	}
	if !m.IsAuthenticated() {
		t.Fatalf("expected authenticated")
	}
	if !m.IsAdmin() {
		t.Fatalf("expected admin")
	}
	if got := m.Token(); got != "a.b.c" {
		t.Fatalf("Token()=%q", got)
	}

	if v, ok := storedValue(t, store, "tms_token"); !ok || v != "a.b.c" {
		t.Fatalf("stored token=%q ok=%v", v, ok)
	}
	raw, ok := storedValue(t, store, "tms_user")
	if !ok {
		t.Fatalf("user not stored")
	}
	var stored identity.User
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.ID != "u1" {
		t.Fatalf("stored user=%q err=%v", raw, err)
	}

	_, err = m.Login(context.Background(), "alice", "wrong")
	var ae *AuthError
	if !errors.As(err, &ae) || !errors.Is(err, ErrRejected) || ae.Message != "Invalid credentials" || ae.Status != http.StatusUnauthorized {
		t.Fatalf("expected rejected AuthError with server message, got %v", err)
	}
	if m.Token() != "a.b.c" {
		t.Fatalf("failed login must not touch the session")
	}
}

func TestLogin_SetsSessionFromResponse(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{login: loginAs("h.p.s", identity.User{ID: "u2", Username: "bob", Role: identity.RoleTeamMember})}
	h := newHarness(t, api, nil)

	u, err := h.m.Login(context.Background(), "  bob ", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, ok := h.m.User()
	if !ok || got != u || got.Username != "bob" {
		t.Fatalf("User()=%+v ok=%v", got, ok)
	}
	if h.m.Token() != "h.p.s" {
		t.Fatalf("Token()=%q", h.m.Token())
	}
	if h.m.IsAdmin() {
		t.Fatalf("team_member must not be admin")
	}

	ev := h.rec.waitFor(t, EventEstablished)
	if ev.Reason != ReasonLogin || ev.User == nil || ev.User.ID != "u2" || ev.TokenFingerprint == "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if h.rec.shows.Load() != 1 || h.rec.hides.Load() != 1 {
		t.Fatalf("loading indicator shows=%d hides=%d", h.rec.shows.Load(), h.rec.hides.Load())
	}
	if !h.m.Snapshot().CycleActive {
		t.Fatalf("expected refresh cycle after login")
	}
}

func TestLogin_FailureLeavesPriorSession(t *testing.T) {
	t.Parallel()

	u1 := identity.User{ID: "u1", Role: identity.RoleAdmin}

	cases := []struct {
		name     string
		resp     authapi.AuthResponse
		err      error
		wantKind error
		wantMsg  string
	}{
		{name: "missing token", resp: authapi.AuthResponse{User: &identity.User{ID: "u9"}}, wantKind: ErrMalformedResponse, wantMsg: "Login failed"},
		{name: "missing user", resp: authapi.AuthResponse{Token: "x.y.z"}, wantKind: ErrMalformedResponse, wantMsg: "Login failed"},
		{name: "user without id", resp: authapi.AuthResponse{Token: "x.y.z", User: &identity.User{Username: "x"}}, wantKind: ErrMalformedResponse, wantMsg: "Login failed"},
		{name: "token not three segments", resp: authapi.AuthResponse{Token: "opaque", User: &identity.User{ID: "u9"}}, wantKind: ErrMalformedResponse, wantMsg: "Login failed"},
		{name: "rejected without message", err: &authapi.StatusError{Status: 401}, wantKind: ErrRejected, wantMsg: "Login failed"},
		{name: "rejected with message", err: &authapi.StatusError{Status: 403, Message: "Account locked"}, wantKind: ErrRejected, wantMsg: "Account locked"},
		{name: "undecodable body", err: authapi.ErrDecode, wantKind: ErrMalformedResponse, wantMsg: "Login failed"},
		{name: "transport", err: errNetDown, wantKind: ErrTransport, wantMsg: "Login failed"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var second atomic.Bool
			api := &fakeAPI{}
			api.login = func(ctx context.Context, u, p string) (authapi.AuthResponse, error) {
				if !second.Swap(true) {
					return loginAs("a.b.c", u1)(ctx, u, p)
				}
				return tc.resp, tc.err
			}
			h := newHarness(t, api, nil)

			if _, err := h.m.Login(context.Background(), "alice", "pw"); err != nil {
				t.Fatalf("first Login: %v", err)
			}

			_, err := h.m.Login(context.Background(), "alice", "pw")
			if !errors.Is(err, ErrAuthentication) || !errors.Is(err, tc.wantKind) {
				t.Fatalf("expected %v AuthError, got %v", tc.wantKind, err)
			}
			var ae *AuthError
			if !errors.As(err, &ae) || ae.Message != tc.wantMsg || ae.Op != "login" {
				t.Fatalf("unexpected AuthError: %+v", ae)
			}

			if h.m.Token() != "a.b.c" || !h.m.IsAdmin() {
				t.Fatalf("prior session changed: token=%q", h.m.Token())
			}
			if v, _ := storedValue(t, h.store, "tms_token"); v != "a.b.c" {
				t.Fatalf("stored token changed: %q", v)
			}
		})
	}
}

func TestLogin_InvalidInputMakesNoCall(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	h := newHarness(t, api, nil)

	_, err := h.m.Login(context.Background(), "   ", "pw")
	if !identity.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if api.loginCalls.Load() != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestLogout_ClearsMemoryAndStorage(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{login: loginAs("a.b.c", identity.User{ID: "u1", Role: identity.RoleAdmin})}
	h := newHarness(t, api, nil)

	if _, err := h.m.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	h.rec.drain()

	h.m.Logout(context.Background())

	if h.m.IsAuthenticated() {
		t.Fatalf("expected not authenticated")
	}
	if h.m.Token() != "" {
		t.Fatalf("Token()=%q", h.m.Token())
	}
	if _, ok := h.m.User(); ok {
		t.Fatalf("expected no user")
	}
	if _, ok := storedValue(t, h.store, "tms_token"); ok {
		t.Fatalf("token still stored")
	}
	if _, ok := storedValue(t, h.store, "tms_user"); ok {
		t.Fatalf("user still stored")
	}
	if h.m.Snapshot().CycleActive {
		t.Fatalf("refresh cycle still active")
	}

	ev := h.rec.waitFor(t, EventCleared)
	if ev.Reason != ReasonLogout || ev.User != nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if h.rec.navCalls.Load() != 1 {
		t.Fatalf("navigator calls=%d", h.rec.navCalls.Load())
	}
}

func TestLogout_WithoutSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAPI{}, nil)

	h.m.Logout(context.Background())
	h.m.Logout(context.Background())

	if h.rec.navCalls.Load() != 2 {
		t.Fatalf("navigator must run on every logout, got %d", h.rec.navCalls.Load())
	}
	if h.m.IsAuthenticated() {
		t.Fatalf("expected not authenticated")
	}
}

func TestLogout_StorageFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{login: loginAs("a.b.c", identity.User{ID: "u1"})}
	h := newHarness(t, api, failingStore{})

	if _, err := h.m.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login must succeed despite storage failure: %v", err)
	}
	if !h.m.IsAuthenticated() {
		t.Fatalf("expected in-memory session")
	}

	h.m.Logout(context.Background())
	if h.m.IsAuthenticated() {
		t.Fatalf("expected cleared session")
	}
	if h.rec.navCalls.Load() != 1 {
		t.Fatalf("navigator calls=%d", h.rec.navCalls.Load())
	}
}

func TestRegister_DoesNotEstablishSession(t *testing.T) {
	t.Parallel()

	var got authapi.RegisterRequest
	api := &fakeAPI{register: func(_ context.Context, in authapi.RegisterRequest) (authapi.UserResponse, error) {
		got = in
		return authapi.UserResponse{User: &identity.User{ID: "u7", Username: in.Username, Role: identity.Role(in.Role)}}, nil
	}}
	h := newHarness(t, api, nil)

	u, err := h.m.Register(context.Background(), RegisterInput{
		Username:   "carol",
		Email:      " Carol@Example.COM ",
		Password:   "pw",
		Department: "ops",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID != "u7" {
		t.Fatalf("Register user=%+v", u)
	}
	if got.Email != "carol@example.com" || got.Role != "team_member" || got.Department != "ops" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if h.m.IsAuthenticated() || h.m.Token() != "" {
		t.Fatalf("register must not establish a session")
	}
	if h.tickers.count() != 0 {
		t.Fatalf("register must not start a refresh cycle")
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	h := newHarness(t, api, nil)

	cases := []struct {
		name string
		in   RegisterInput
		kind error
	}{
		{"missing username", RegisterInput{Email: "a@b.c", Password: "pw"}, identity.ErrInvalidInput},
		{"bad email", RegisterInput{Username: "a", Email: "nope", Password: "pw"}, identity.ErrInvalidInput},
		{"missing password", RegisterInput{Username: "a", Email: "a@b.c"}, identity.ErrInvalidInput},
		{"unknown role", RegisterInput{Username: "a", Email: "a@b.c", Password: "pw", Role: "root"}, identity.ErrInvalidRole},
	}
	for _, tc := range cases {
		if _, err := h.m.Register(context.Background(), tc.in); !errors.Is(err, tc.kind) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.kind, err)
		}
	}
	if api.registerCalls.Load() != 0 {
		t.Fatalf("validation failures must not reach the network")
	}
}

func TestRegister_Errors(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{register: func(context.Context, authapi.RegisterRequest) (authapi.UserResponse, error) {
		return authapi.UserResponse{}, &authapi.StatusError{Status: 409, Message: "Username taken"}
	}}
	h := newHarness(t, api, nil)

	_, err := h.m.Register(context.Background(), RegisterInput{Username: "a", Email: "a@b.c", Password: "pw"})
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != ErrRejected || ae.Message != "Username taken" {
		t.Fatalf("unexpected error: %v", err)
	}

	api.register = func(context.Context, authapi.RegisterRequest) (authapi.UserResponse, error) {
		return authapi.UserResponse{}, nil
	}
	_, err = h.m.Register(context.Background(), RegisterInput{Username: "a", Email: "a@b.c", Password: "pw"})
	if !IsAuthError(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed, got %v", err)
	}
	if !errors.As(err, &ae) || ae.Message != "Registration failed" {
		t.Fatalf("expected fallback message, got %v", err)
	}
}

func TestUpdateProfile_RequiresSession(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	h := newHarness(t, api, nil)

	email := "x@y.com"
	_, err := h.m.UpdateProfile(context.Background(), ProfileUpdate{Email: &email})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if api.profileCalls.Load() != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestUpdateProfile_ReplacesUserKeepsToken(t *testing.T) {
	t.Parallel()

	var gotToken string
	api := &fakeAPI{
		login: loginAs("a.b.c", identity.User{ID: "u1", Email: "old@y.com", Role: identity.RoleAdmin}),
		profile: func(_ context.Context, tok string, in authapi.ProfileRequest) (authapi.UserResponse, error) {
			gotToken = tok
			return authapi.UserResponse{User: &identity.User{ID: "u1", Email: *in.Email, Role: identity.RoleAdmin}}, nil
		},
	}
	h := newHarness(t, api, nil)

	if _, err := h.m.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	email := "X@Y.com"
	u, err := h.m.UpdateProfile(context.Background(), ProfileUpdate{Email: &email})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if gotToken != "a.b.c" {
		t.Fatalf("profile call token=%q", gotToken)
	}
	if u.Email != "x@y.com" {
		t.Fatalf("returned user=%+v", u)
	}

	cur, _ := h.m.User()
	if cur.Email != "x@y.com" {
		t.Fatalf("in-memory user not replaced: %+v", cur)
	}
	if h.m.Token() != "a.b.c" {
		t.Fatalf("token changed: %q", h.m.Token())
	}
	raw, _ := storedValue(t, h.store, "tms_user")
	var stored identity.User
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.Email != "x@y.com" {
		t.Fatalf("stored user not replaced: %q", raw)
	}
	if v, _ := storedValue(t, h.store, "tms_token"); v != "a.b.c" {
		t.Fatalf("stored token changed: %q", v)
	}
	h.rec.waitFor(t, EventProfileUpdated)
}

func TestUpdateProfile_Rejected(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: loginAs("a.b.c", identity.User{ID: "u1"}),
		profile: func(context.Context, string, authapi.ProfileRequest) (authapi.UserResponse, error) {
			return authapi.UserResponse{}, &authapi.StatusError{Status: 400}
		},
	}
	h := newHarness(t, api, nil)
	if _, err := h.m.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	name := "Alice"
	_, err := h.m.UpdateProfile(context.Background(), ProfileUpdate{Name: &name})
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Message != "Failed to update profile" {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.m.IsAuthenticated() {
		t.Fatalf("a failed profile update must not end the session")
	}
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		role      identity.Role
		adminRole string
		want      bool
	}{
		{"admin", identity.RoleAdmin, "admin", true},
		{"team member", identity.RoleTeamMember, "admin", false},
		{"empty role", "", "admin", false},
		{"custom admin role", "owner", "owner", true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.AdminRole = tc.adminRole
			api := &fakeAPI{login: loginAs("a.b.c", identity.User{ID: "u1", Role: tc.role})}
			m, err := NewManager(cfg, api, storage.NewMemoryStore(), WithLogger(discardLogger()))
			if err != nil {
				t.Fatalf("NewManager: %v", err)
			}
			m.newTicker = (&tickerFactory{}).new
			t.Cleanup(m.Close)

			if _, err := m.Login(context.Background(), "u", "p"); err != nil {
				t.Fatalf("Login: %v", err)
			}
			if got := m.IsAdmin(); got != tc.want {
				t.Fatalf("IsAdmin()=%v want %v", got, tc.want)
			}
		})
	}
}

func TestIsAdmin_NoUser(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAPI{}, nil)
	if h.m.IsAdmin() {
		t.Fatalf("IsAdmin must be false without a user")
	}
}

func TestIsAdmin_MissingRoleConfig(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAPI{login: loginAs("a.b.c", identity.User{ID: "u1", Role: identity.RoleAdmin})}, nil)
	if _, err := h.m.Login(context.Background(), "u", "p"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	// Simulate configuration losing the admin role at runtime.
	h.m.mu.Lock()
	h.m.cfg.AdminRole = ""
	h.m.mu.Unlock()

	if h.m.IsAdmin() {
		t.Fatalf("IsAdmin must be false when the admin role is not configured")
	}
}

func TestNewManager_RequiresConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.TokenKey = ""
	if _, err := NewManager(cfg, &fakeAPI{}, storage.NewMemoryStore()); !errors.Is(err, ErrConfigUnavailable) {
		t.Fatalf("expected ErrConfigUnavailable, got %v", err)
	}
	if _, err := NewManager(DefaultConfig(), nil, storage.NewMemoryStore()); !errors.Is(err, ErrConfigUnavailable) {
		t.Fatalf("expected ErrConfigUnavailable for nil api, got %v", err)
	}
}

func TestSnapshot_NeverCarriesToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAPI{login: loginAs("a.b.c", identity.User{ID: "u1"})}, nil)
	if _, err := h.m.Login(context.Background(), "u", "p"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	b, err := json.Marshal(h.m.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "a.b.c") {
		t.Fatalf("snapshot leaks token: %s", b)
	}
}
