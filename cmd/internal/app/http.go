package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskdash/cmd/internal/storage"
)

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return WithRequestLogging(next, a.log) })
	r.Use(WithSecurityHeaders)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return WithCORS(next, a.cfg, a.log) })

		for path, h := range map[string]http.HandlerFunc{
			"/healthz": a.handleHealth,
			"/readyz":  a.handleReady,
			"/session": a.handleSession,
		} {
			r.Get(path, h)
			// Preflight is answered by WithCORS; the route only has to exist.
			r.Options(path, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		}
	})

	r.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}))
	r.Get("/events", a.ws.ServeHTTP)
	return r
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.sess == nil {
		http.Error(w, "session not configured", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := storage.Ping(ctx, a.sess.Store); err != nil {
		a.log.Info("readyz.storage.not_ready", "err", err)
		http.Error(w, "storage not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}

func (a *App) handleSession(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if a.sess == nil {
		msg := ""
		if a.unconfigured != nil {
			msg = a.unconfigured.Error()
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"configured": false,
			"error":      msg,
			"version":    Version,
		})
		return
	}

	_ = json.NewEncoder(w).Encode(a.sess.Manager.Snapshot())
}
