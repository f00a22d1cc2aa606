package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskdash/cmd/internal/auth/api"
	"taskdash/cmd/internal/auth/session"
	"taskdash/cmd/internal/storage"
)

// ConfigLoader re-reads configuration while the session waits for it.
type ConfigLoader func() (Config, error)

// Session is a Manager together with the resources it was built from.
type Session struct {
	Manager *session.Manager
	Client  *authapi.Client
	Store   storage.Store
	// Config is the configuration the Manager was finally built with.
	Config Config
}

// OpenSession opens storage, waits for a complete session configuration and
// builds the Manager. Initialize is left to the caller.
//
// reload may be nil, in which case cfg is the only candidate. On
// ErrConfigUnavailable nothing is left open.
func OpenSession(ctx context.Context, cfg Config, log *slog.Logger, reload ConfigLoader, opts ...session.Option) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	final, sc, err := awaitConfig(ctx, cfg, reload, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client, err := authapi.NewClient(final.Client(), authapi.WithLogger(log.With("component", "authapi")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%w: %v", session.ErrConfigUnavailable, err)
	}

	mgr, err := session.NewManager(sc, client, store, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Session{Manager: mgr, Client: client, Store: store, Config: final}, nil
}

// Close stops the RefreshCycle and releases storage. The session stays persisted.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.Manager.Close()
	return s.Store.Close()
}

func openStore(ctx context.Context, cfg Config, log *slog.Logger) (storage.Store, error) {
	st, err := storage.Open(ctx, cfg.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", storage.Describe(cfg.StorageURL), err)
	}

	sealer, err := newSealer(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if sealer != nil {
		log.Info("storage.open", "url", storage.Describe(cfg.StorageURL), "sealed", true)
		return storage.NewSealedStore(st, sealer), nil
	}

	log.Info("storage.open", "url", storage.Describe(cfg.StorageURL), "sealed", false)
	return st, nil
}

// awaitConfig polls until api_url and the session settings are present.
// The first attempt uses cfg; later ones call reload when set.
func awaitConfig(ctx context.Context, cfg Config, reload ConfigLoader, log *slog.Logger) (Config, session.Config, error) {
	latest := cfg
	attempt := 0

	src := session.ConfigSourceFunc(func(context.Context) (session.Config, error) {
		attempt++
		if attempt > 1 && reload != nil {
			c, err := reload()
			if err != nil {
				log.Warn("config.reload.fail", "attempt", attempt, "err", err)
				return session.Config{}, err
			}
			latest = c
		}
		if strings.TrimSpace(latest.APIURL) == "" {
			return session.Config{}, fmt.Errorf("%w: missing api_url", session.ErrConfigUnavailable)
		}
		return latest.Session(), nil
	})

	sc, err := session.AwaitConfig(ctx, src, cfg.ConfigWaitAttempts, cfg.ConfigWaitBackoff)
	if err != nil {
		if !errors.Is(err, session.ErrConfigUnavailable) {
			err = fmt.Errorf("%w: %v", session.ErrConfigUnavailable, err)
		}
		return Config{}, session.Config{}, err
	}
	return latest, sc, nil
}
