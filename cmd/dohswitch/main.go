package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Resinat/dohswitch/internal/buildinfo"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dohswitch",
		Short:         "Switch and monitor the DoH upstream of a local forwarding daemon",
		Version:       fmt.Sprintf("%s (%s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		// With no subcommand the daemon runs.
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the sampler and the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run()
			},
		},
		newProvidersCmd(),
		newSwitchCmd(),
		newStatusCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
