package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatsCmd creates and configures the 'stats' subcommand.
func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Prints backend processing statistics",
		Long: `Fetches the processing-stats document from the backend and prints it as
JSON. The document shape is owned by the backend; the worker passes it
through untouched.`,

		Args: cobra.NoArgs,
		RunE: runStatsCommand,
	}
	return cmd
}

func runStatsCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	stats, err := appInstance.Backend().GetProcessingStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch processing stats: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), stats)
}
