package cmd

import (
	"errors"
	"fmt"

	"github.com/nodeinsights/enrichment-worker/internal/dispatcher"
	"github.com/nodeinsights/enrichment-worker/internal/handler"
	"github.com/spf13/cobra"
)

// compareResult is the CLI rendering of one provider comparison.
type compareResult struct {
	WebpageID  string              `json:"webpageId"`
	Error      string              `json:"error,omitempty"`
	Comparison *handler.Comparison `json:"comparison,omitempty"`
}

// newCompareCmd creates and configures the 'compare' subcommand. Comparisons
// run both providers side by side without writing anything back, which is
// how provider extraction quality is evaluated before flipping defaults.
func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [webpageId...]",
		Short: "Compares provider extraction quality",
		Long: `Fetches each webpage through both the reader and the search-API provider
and reports per-provider field yield plus the merged result. With no
arguments it pulls a batch of already-processed candidates from the
backend and compares them concurrently.`,

		RunE: runCompareCommand,
	}
	cmd.Flags().Int("limit", 5, "candidate batch size when no webpage ids are given")
	cmd.Flags().Int("workers", dispatcher.DefaultWorkers, "concurrent comparisons")
	return cmd
}

func runCompareCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ids := args
	if len(ids) == 0 {
		limit, _ := cmd.Flags().GetInt("limit")
		records, err := appInstance.Backend().ListTestCandidates(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("list test candidates: %w", err)
		}
		for _, rec := range records {
			ids = append(ids, rec.WebpageID)
		}
	}
	if len(ids) == 0 {
		return errors.New("no webpages to compare")
	}

	workers, _ := cmd.Flags().GetInt("workers")
	pool := dispatcher.New(appInstance.Processor(), dispatcher.Config{Workers: workers}, appInstance.Logger())
	results := pool.Run(cmd.Context(), ids)

	rows := make([]compareResult, 0, len(results))
	failures := 0
	for _, res := range results {
		row := compareResult{WebpageID: res.WebpageID}
		if res.Err != nil {
			failures++
			row.Error = res.Err.Error()
		} else {
			row.Comparison = handler.NewComparison(res.Report)
		}
		rows = append(rows, row)
	}
	if err := printJSON(cmd.OutOrStdout(), rows); err != nil {
		return err
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d comparisons failed", failures, len(results))
	}
	return nil
}
