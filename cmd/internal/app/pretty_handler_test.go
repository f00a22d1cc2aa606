package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandler_ColorsAreStrippable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true))
	log.Error("http.request", "method", "get", "status", 503, "duration_ms", 1200, "result", "server_error")

	out := buf.String()
	if !strings.Contains(out, ansiRed) {
		t.Fatalf("expected color codes in %q", out)
	}

	plain := stripANSI(out)
	for _, want := range []string{"lvl=[ERROR]", "method=GET", "status=503", "duration=1200ms", "result=server_error"} {
		if !strings.Contains(plain, want) {
			t.Fatalf("missing %q in %q", want, plain)
		}
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false)).
		With("component", "session").
		WithGroup("refresh")
	log.Info("session.refresh.ok", "attempt", 1, slog.Group("api", "path", "/auth/refresh"))

	out := buf.String()
	for _, want := range []string{"component=session", "refresh.attempt=1", "refresh.api.path=/auth/refresh"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))
	log.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info record leaked: %q", buf.String())
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":          `""`,
		"plain":     "plain",
		"two words": `"two words"`,
		"a=b":       `"a=b"`,
	}
	for in, want := range cases {
		if got := quoteIfNeeded(in); got != want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestLevelTag(t *testing.T) {
	t.Parallel()

	cases := map[slog.Level]string{
		slog.LevelDebug:     "[DEBUG]",
		slog.LevelInfo:      "[INFO]",
		slog.LevelWarn:      "[WARN]",
		slog.LevelError + 4: "[ERROR]",
	}
	for level, want := range cases {
		if got := levelTag(level, false); got != want {
			t.Fatalf("levelTag(%v)=%q want=%q", level, got, want)
		}
	}
}

func TestPrettyHandler_SessionKeysAreRenamedAndKept(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false))
	log.Warn("session.cleared", "reason", "refresh failed", "status_class", "4xx", "token_fp", "ab12", "status", "n/a")

	out := buf.String()
	for _, want := range []string{`reason="refresh failed"`, "class=4xx", "token_fp=ab12", "status=n/a"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}
