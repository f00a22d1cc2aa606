package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	v1 "taskdash/contracts/events/v1"
)

// isolate points HOME at a temp dir so no real config or session is read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TASKDASH_CONFIG", "")
	t.Setenv("TASKDASH_API_URL", "")
	t.Setenv("TASKDASH_STORAGE_URL", "")
	t.Setenv("TASKDASH_PASSWORD", "")
	t.Setenv("TASKDASH_LOG_LEVEL", "")
	t.Setenv("TASKDASH_LOG_FORMAT", "")
	return home
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func stubAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Path {
		case "/auth/login":
			if body["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"Invalid username or password"}`))
				return
			}
			_, _ = w.Write([]byte(`{"token":"a.b.c","user":{"id":"u1","username":"alice","email":"alice@example.com","role":"admin","name":"Alice"}}`))
		case "/auth/register":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"user":{"id":"u2","username":"bob","role":"team_member"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	want := []string{"agent", "login", "logout", "profile", "register", "version", "watch", "whoami"}

	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		found := false
		for _, g := range got {
			if g == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing subcommand %q in %v", name, got)
		}
	}

	for _, flag := range []string{"config", "api-url", "storage", "log-level", "log-format"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Fatalf("missing persistent flag --%s", flag)
		}
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	home := isolate(t)
	api := stubAPI(t)
	store := filepath.Join(home, "session.json")
	base := []string{"--api-url", api.URL, "--storage", store}

	out, _, err := run(t, "secret\n", append(base, "login", "alice")...)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Signed in as Alice (admin)") {
		t.Fatalf("login output=%q", out)
	}

	// A fresh process restores the session from the file store.
	out, _, err = run(t, "", append(base, "whoami")...)
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	for _, want := range []string{"alice@example.com", "Admin:      true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("whoami output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "a.b.c") {
		t.Fatal("whoami printed the token")
	}

	out, errOut, err := run(t, "", append(base, "logout")...)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "Session cleared") || !strings.Contains(errOut, "taskdash login") {
		t.Fatalf("logout out=%q err=%q", out, errOut)
	}

	_, _, err = run(t, "", append(base, "whoami")...)
	if !errors.Is(err, errNotSignedIn) {
		t.Fatalf("whoami after logout err=%v", err)
	}
}

func TestLoginRejectedShowsServerMessage(t *testing.T) {
	home := isolate(t)
	api := stubAPI(t)

	_, _, err := run(t, "", "--api-url", api.URL, "--storage", filepath.Join(home, "s.json"), "login", "alice", "-p", "wrong")
	if err == nil || err.Error() != "Invalid username or password" {
		t.Fatalf("err=%v", err)
	}
}

func TestRegisterDoesNotSignIn(t *testing.T) {
	home := isolate(t)
	api := stubAPI(t)
	base := []string{"--api-url", api.URL, "--storage", filepath.Join(home, "s.json")}

	out, _, err := run(t, "", append(base, "register", "--username", "bob", "--email", "bob@example.com", "-p", "pw")...)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(out, "Created bob (team_member)") {
		t.Fatalf("register output=%q", out)
	}

	if _, _, err := run(t, "", append(base, "whoami")...); !errors.Is(err, errNotSignedIn) {
		t.Fatalf("whoami err=%v", err)
	}
}

func TestProfileUpdateFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "profile"}
	var name, email, dept string
	cmd.Flags().StringVar(&name, "name", "", "")
	cmd.Flags().StringVar(&email, "email", "", "")
	cmd.Flags().StringVar(&dept, "department", "", "")
	if err := cmd.Flags().Parse([]string{"--email", "x@y.com", "--department", ""}); err != nil {
		t.Fatal(err)
	}

	upd := profileUpdateFromFlags(cmd, name, email, dept)
	if upd.Name != nil {
		t.Fatalf("name should be unset, got %q", *upd.Name)
	}
	if upd.Email == nil || *upd.Email != "x@y.com" {
		t.Fatalf("email=%v", upd.Email)
	}
	if upd.Department == nil || *upd.Department != "" {
		t.Fatalf("department=%v", upd.Department)
	}
}

func TestProfileWithoutSession(t *testing.T) {
	home := isolate(t)
	api := stubAPI(t)

	_, _, err := run(t, "", "--api-url", api.URL, "--storage", filepath.Join(home, "s.json"), "profile", "--email", "x@y.com")
	if !errors.Is(err, errNotSignedIn) {
		t.Fatalf("err=%v", err)
	}
}

func TestReadPassword(t *testing.T) {
	t.Setenv("TASKDASH_PASSWORD", "")

	if pw, _ := readPassword(strings.NewReader("ignored\n"), "flag"); pw != "flag" {
		t.Fatalf("flag pw=%q", pw)
	}
	if pw, _ := readPassword(strings.NewReader("from-stdin\r\n"), ""); pw != "from-stdin" {
		t.Fatalf("stdin pw=%q", pw)
	}
	if _, err := readPassword(strings.NewReader(""), ""); err == nil {
		t.Fatal("empty stdin should fail")
	}

	t.Setenv("TASKDASH_PASSWORD", "from-env")
	if pw, _ := readPassword(strings.NewReader("from-stdin\n"), ""); pw != "from-env" {
		t.Fatalf("env pw=%q", pw)
	}
}

func TestSignedOutPointsAtLogin(t *testing.T) {
	var buf bytes.Buffer
	signedOut(&buf).ToLogin(context.Background())
	if !strings.Contains(buf.String(), "taskdash login") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestStatusLineNests(t *testing.T) {
	var buf bytes.Buffer
	s := newStatusLine(&buf, "working")

	s.Show()
	s.Show()
	s.Hide()
	if strings.Contains(buf.String(), "\033[K") {
		t.Fatal("erased while a call was still in flight")
	}
	s.Hide()
	s.Hide()

	if got := strings.Count(buf.String(), "working"); got != 1 {
		t.Fatalf("shown %d times", got)
	}
	if got := strings.Count(buf.String(), "\033[K"); got != 1 {
		t.Fatalf("erased %d times", got)
	}
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}

	cases := []struct {
		name string
		env  v1.Envelope
		want []string
	}{
		{
			name: "established",
			env:  v1.Envelope{Type: v1.TypeSessionEstablished, TS: ts, Payload: payload(v1.SessionPayload{
				Authenticated: true,
				Admin:         true,
				User:          &v1.UserView{ID: "u1", Username: "alice", Role: "admin"},
				Reason:        "login",
			})},
			want: []string{"session_established", "user=alice", "role=admin", "admin", "reason=login"},
		},
		{
			name: "cleared",
			env:  v1.Envelope{Type: v1.TypeSessionCleared, TS: ts, Payload: payload(v1.SessionPayload{Reason: "refresh_rejected"})},
			want: []string{"session_cleared", "signed out", "reason=refresh_rejected"},
		},
		{
			name: "ack",
			env:  v1.Envelope{Type: v1.TypeHelloAck, TS: ts, Payload: payload(v1.HelloAckPayload{SubscriberID: "sub-1"})},
			want: []string{"subscribed", "subscriber=sub-1", "signed out"},
		},
		{
			name: "error",
			env:  v1.Envelope{Type: v1.TypeError, TS: ts, Payload: payload(v1.ErrorPayload{Code: "bad_json", Message: "invalid JSON"})},
			want: []string{"bad_json: invalid JSON"},
		},
		{
			name: "navigate",
			env:  v1.Envelope{Type: v1.TypeNavigateLogin, TS: ts},
			want: []string{"navigate_login", "sign-in required"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := formatEvent(tc.env)
			for _, w := range tc.want {
				if !strings.Contains(got, w) {
					t.Fatalf("formatEvent=%q missing %q", got, w)
				}
			}
		})
	}
}

func TestValidateEventsURL(t *testing.T) {
	for raw, ok := range map[string]bool{
		"ws://127.0.0.1:8787/events": true,
		"wss://agent.local/events":   true,
		"http://127.0.0.1/events":    false,
		"ws:///events":               false,
	} {
		if err := validateEventsURL(raw); (err == nil) != ok {
			t.Fatalf("%s: err=%v want ok=%v", raw, err, ok)
		}
	}
}
