package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"taskdash/cmd/internal/auth/session"
)

// signedOut is the CLI's unauthenticated entry point: it tells the user how
// to sign in again.
func signedOut(w io.Writer) session.Navigator {
	return session.NavigatorFunc(func(context.Context) {
		fmt.Fprintln(w, "  Signed out. Run \"taskdash login\" to start a new session.")
	})
}

// statusLine shows msg while at least one call is in flight and erases it
// when the last one finishes.
type statusLine struct {
	w   io.Writer
	msg string

	mu    sync.Mutex
	depth int
}

func newStatusLine(w io.Writer, msg string) *statusLine {
	return &statusLine{w: w, msg: msg}
}

func (s *statusLine) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth == 0 {
		fmt.Fprintf(s.w, "\r  %s", s.msg)
	}
	s.depth++
}

func (s *statusLine) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth == 0 {
		return
	}
	s.depth--
	if s.depth == 0 {
		fmt.Fprint(s.w, "\r\033[K")
	}
}
