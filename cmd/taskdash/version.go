package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"taskdash/cmd/internal/app"
	v1 "taskdash/contracts/events/v1"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, app.Version)
				return
			}
			fmt.Fprintf(out, "  Version:    %s\n", app.Version)
			fmt.Fprintf(out, "  Events:     %s\n", v1.Subprotocol)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	return cmd
}
