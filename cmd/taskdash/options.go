package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"taskdash/cmd/internal/app"
	"taskdash/cmd/internal/auth/session"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	apiURL     string
	storageURL string
	logLevel   string
	logFormat  string
}

func (o *globalOptions) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "Config file (default ~/.taskdash/config.yaml)")
	f.StringVar(&o.apiURL, "api-url", "", "Task dashboard API base URL")
	f.StringVar(&o.storageURL, "storage", "", "Session storage URL (file://, sqlite://, postgres://, redis://, memory:)")
	f.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", "", "Log format: json, pretty, text")
}

// load reads file and env config, then applies flags on top. It is also
// the reload hook used while waiting for configuration.
func (o *globalOptions) load() (app.Config, error) {
	cfg, err := app.LoadConfigFrom(o.configPath)
	if err != nil {
		return app.Config{}, err
	}

	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.storageURL != "" {
		cfg.StorageURL = o.storageURL
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	return cfg, cfg.Validate()
}

// cliLogger keeps one-shot commands quiet unless a level was asked for.
func (o *globalOptions) cliLogger(cfg app.Config) *slog.Logger {
	level := "warn"
	if o.logLevel != "" || app.EnvString("TASKDASH_LOG_LEVEL", "") != "" {
		level = cfg.LogLevel
	}
	format := "pretty"
	if o.logFormat != "" || app.EnvString("TASKDASH_LOG_FORMAT", "") != "" {
		format = cfg.LogFormat
	}
	return app.NewLogger(level, format)
}

// withSession opens the stored session, runs fn and closes it again.
func (o *globalOptions) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *app.Session) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	log := o.cliLogger(cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	errOut := cmd.ErrOrStderr()
	s, err := app.OpenSession(ctx, cfg, log, o.load,
		session.WithLogger(log),
		session.WithNavigator(signedOut(errOut)),
		session.WithLoadingIndicator(newStatusLine(errOut, "contacting "+cfg.APIURL+"…")),
	)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.Manager.Initialize(ctx); err != nil {
		return err
	}
	return fn(ctx, s)
}
