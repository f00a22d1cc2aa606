package app

import (
	"context"
	"os/signal"
	"syscall"
)

// RunAgent is the entrypoint used by `taskdash agent`. It returns an error
// instead of calling os.Exit so deferred cleanup runs.
func RunAgent(parent context.Context, cfg Config, log Logger, reload ConfigLoader) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log, reload)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
