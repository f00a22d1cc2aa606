// Command taskdash signs in to the task dashboard API, keeps the session
// fresh, and reports session changes to local UIs.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "taskdash",
		Short: "Session client for the task dashboard",
		Long: `taskdash manages your task dashboard session from the terminal.

Sign in once with "taskdash login"; the session is stored locally and
renewed in the background by "taskdash agent", which also serves the
session state to dashboards on http://127.0.0.1:8787.

Configuration is read from ~/.taskdash/config.yaml (or $TASKDASH_CONFIG),
then TASKDASH_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(rootCmd)

	rootCmd.AddCommand(
		agentCmd(opts),
		loginCmd(opts),
		logoutCmd(opts),
		registerCmd(opts),
		whoamiCmd(opts),
		profileCmd(opts),
		watchCmd(opts),
		versionCmd(),
	)
	return rootCmd
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
