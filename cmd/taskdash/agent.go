package main

import (
	"github.com/spf13/cobra"

	"taskdash/cmd/internal/app"
)

func agentCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Keep the session fresh and serve it to local dashboards",
		Long: `Run the session agent in the foreground.

The agent restores the stored session, renews the token on the configured
interval and logs out when the API rejects it. It serves:

  /healthz   liveness
  /readyz    503 until configuration and storage are usable
  /session   current session snapshot (JSON, no token)
  /metrics   Prometheus metrics
  /events    WebSocket stream of session changes (taskdash.events.v1)

Examples:
  taskdash agent
  taskdash agent --addr 127.0.0.1:9000 --log-format pretty`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			load := func() (app.Config, error) {
				cfg, err := opts.load()
				if err == nil && addr != "" {
					cfg.HTTPAddr = addr
				}
				return cfg, err
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			log := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
			return app.RunAgent(cmd.Context(), cfg, log, load)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:8787)")
	return cmd
}
