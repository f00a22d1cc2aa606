package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler writes one colored key=value line per record. It is the
// terminal format for the agent and the CLI; session and HTTP keys listed in
// fieldStyles get their own rendering.
type prettyHandler struct {
	out    io.Writer
	level  slog.Leveler
	source bool
	color  bool
	scope  string
	bound  []boundAttr
	mu     *sync.Mutex
}

// boundAttr is an attribute added through With, kept with the group scope
// that was open at the time.
type boundAttr struct {
	scope string
	attr  slog.Attr
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{out: w, level: slog.LevelInfo, color: color, mu: &sync.Mutex{}}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.source = opts.AddSource
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	ln := prettyLine{color: h.color}

	at := r.Time
	if at.IsZero() {
		at = time.Now()
	}
	ln.field("ts", paint(at.Format("15:04:05.000"), ansiDim, h.color))
	ln.field("lvl", levelTag(r.Level, h.color))
	ln.field("msg", paint(r.Message, ansiBright, h.color))
	if src := h.sourceOf(r.PC); src != "" {
		ln.field("src", paint(src, ansiDim, h.color))
	}

	for _, ba := range h.bound {
		ln.attr(ba.scope, ba.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		ln.attr(h.scope, a)
		return true
	})
	ln.buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, ln.buf.String())
	return err
}

func (h *prettyHandler) sourceOf(pc uintptr) string {
	if !h.source || pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.bound = make([]boundAttr, 0, len(h.bound)+len(attrs))
	cp.bound = append(cp.bound, h.bound...)
	for _, a := range attrs {
		cp.bound = append(cp.bound, boundAttr{scope: h.scope, attr: a})
	}
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	cp := *h
	cp.scope = joinKey(h.scope, name)
	return &cp
}

// prettyLine accumulates the fields of a single record.
type prettyLine struct {
	buf   strings.Builder
	color bool
}

func (l *prettyLine) field(key, rendered string) {
	if l.buf.Len() > 0 {
		l.buf.WriteByte(' ')
	}
	l.buf.WriteString(key)
	l.buf.WriteByte('=')
	l.buf.WriteString(rendered)
}

func (l *prettyLine) attr(scope string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)
	if key == "" || a.Equal(slog.Attr{}) {
		return
	}
	key = joinKey(scope, key)

	if a.Value.Kind() == slog.KindGroup {
		for _, member := range a.Value.Group() {
			l.attr(key, member)
		}
		return
	}

	if style, ok := fieldStyles[key]; ok {
		if out, ok := style.render(a.Value, l.color); ok {
			l.field(style.label(key), out)
			return
		}
	}
	l.field(key, quoteIfNeeded(valueToString(a.Value)))
}

func joinKey(scope, key string) string {
	if scope == "" {
		return key
	}
	return scope + "." + key
}

type fieldStyle struct {
	rename string
	render func(v slog.Value, color bool) (string, bool)
}

func (s fieldStyle) label(key string) string {
	if s.rename != "" {
		return s.rename
	}
	return key
}

func textStyle(fn func(string, bool) string) func(slog.Value, bool) (string, bool) {
	return func(v slog.Value, color bool) (string, bool) {
		return fn(valueToString(v), color), true
	}
}

func dimQuoted(s string, color bool) string { return paint(quoteIfNeeded(s), ansiDim, color) }

var fieldStyles = map[string]fieldStyle{
	"method": {render: textStyle(func(s string, color bool) string {
		return colorizeHTTPMethod(strings.ToUpper(strings.TrimSpace(s)), color)
	})},
	"path": {render: textStyle(func(s string, color bool) string {
		return paint(strings.TrimSpace(s), ansiCyan, color)
	})},
	"status": {render: func(v slog.Value, color bool) (string, bool) {
		n, ok := valueToInt64(v)
		return colorizeStatusCode(int(n), color), ok
	}},
	"status_class": {rename: "class", render: textStyle(func(s string, color bool) string {
		return colorizeStatusClass(strings.TrimSpace(s), color)
	})},
	"duration_ms": {rename: "duration", render: func(v slog.Value, color bool) (string, bool) {
		n, ok := valueToInt64(v)
		return colorizeDurationMS(n, color), ok
	}},
	"result": {render: textStyle(func(s string, color bool) string {
		return colorizeResult(strings.ToLower(strings.TrimSpace(s)), color)
	})},
	"reason": {render: textStyle(func(s string, color bool) string {
		return colorizeReason(quoteIfNeeded(s), color)
	})},
	"token_fp":      {render: textStyle(dimQuoted)},
	"request_id":    {render: textStyle(dimQuoted)},
	"subscriber_id": {render: textStyle(dimQuoted)},
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

var levelTags = []struct {
	min  slog.Level
	tag  string
	code string
}{
	{slog.LevelError, "[ERROR]", ansiRed},
	{slog.LevelWarn, "[WARN]", ansiYellow},
	{slog.LevelInfo, "[INFO]", ansiBlue},
}

func levelTag(level slog.Level, color bool) string {
	for _, lt := range levelTags {
		if level >= lt.min {
			return paint(lt.tag, lt.code, color)
		}
	}
	return paint("[DEBUG]", ansiMagenta, color)
}
