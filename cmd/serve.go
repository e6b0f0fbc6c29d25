// Package cmd defines and implements the CLI commands for the enrichment-worker executable.
package cmd

import (
	"github.com/spf13/cobra"
)

// newServeCmd creates and configures the 'serve' subcommand, the normal
// deployment mode of the worker.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP invocation server",
		Long: `Runs the worker as a long-lived HTTP service exposing the /invoke
entry point plus health, stats, and metrics routes. The process serves
until it receives SIGINT or SIGTERM, then drains in-flight invocations
and shuts down.`,

		Args: cobra.NoArgs,
		RunE: runServeCommand,
	}
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	return appInstance.Run(cmd.Context())
}
