// Package app wires the taskdash agent: config, logging, storage, the
// session Manager, metrics and the local status server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"taskdash/cmd/internal/auth/session"
	"taskdash/cmd/internal/realtime"
)

// App is the agent runtime. It owns the Session and the HTTP server.
type App struct {
	cfg Config
	log Logger

	reg *prometheus.Registry
	hub *realtime.Hub
	ws  *realtime.WSGateway

	// sess is nil when the configuration never became available.
	sess         *Session
	unconfigured error
}

// New constructs a fully wired App. A session configuration that stays
// unavailable is not fatal: the agent serves /healthz and reports not ready.
func New(ctx context.Context, cfg Config, log Logger, reload ConfigLoader) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hub := realtime.NewHub(log.With("component", "events"))
	reg := newRegistry(hub)

	a := &App{
		cfg: cfg,
		log: log,
		reg: reg,
		hub: hub,
		ws:  realtime.NewWSGateway(log.With("component", "events"), hub, cfg.Gateway()),
	}

	sess, err := OpenSession(ctx, cfg, log, reload,
		session.WithLogger(log.With("component", "session")),
		session.WithNotifier(hub),
		session.WithNavigator(hub),
		session.WithMetrics(session.NewMetrics(reg)),
	)
	switch {
	case errors.Is(err, session.ErrConfigUnavailable):
		log.Warn("agent.unconfigured", "err", err)
		a.unconfigured = err
	case err != nil:
		return nil, err
	default:
		a.sess = sess
		a.cfg = sess.Config
	}

	return a, nil
}

// Run restores the stored session, serves HTTP and blocks until ctx is done
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.sess != nil {
		if err := a.sess.Manager.Initialize(ctx); err != nil {
			return err
		}
		a.hub.Seed(realtime.PayloadFromSnapshot(a.sess.Manager.Snapshot()))
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"url", a.cfg.AgentURL(),
		"configured", a.sess != nil,
		"version", Version,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	if err := a.sess.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return runErr
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
