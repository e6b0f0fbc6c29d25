package cmd

import (
	"fmt"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
	"github.com/spf13/cobra"
)

// processResult is the CLI rendering of one invocation outcome.
type processResult struct {
	WebpageID        string `json:"webpageId"`
	NodeID           string `json:"nodeId,omitempty"`
	Result           string `json:"result"`
	Success          bool   `json:"success"`
	Via              string `json:"via,omitempty"`
	FieldsExtracted  int    `json:"fieldsExtracted,omitempty"`
	NodesUpdated     int    `json:"nodesUpdated,omitempty"`
	Quality          string `json:"quality,omitempty"`
	Reason           string `json:"reason,omitempty"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
}

// newProcessCmd creates and configures the 'process' subcommand. It runs a
// single enrichment invocation from the command line, which is how the
// scheduler's HTTP trigger is exercised locally.
func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <webpageId>",
		Short: "Runs one enrichment invocation",
		Long: `Enriches a single webpage record end to end: fetch through the provider
sequence, extract company fields, persist the result, and propagate it
to graph nodes. The terminal outcome is printed as JSON.`,

		Args: cobra.ExactArgs(1),
		RunE: runProcessCommand,
	}
	cmd.Flags().String("user", "", "user id recorded on the invocation")
	cmd.Flags().Bool("reprocess", false, "re-enrich even if the webpage was already processed")
	return cmd
}

func runProcessCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	reprocess, _ := cmd.Flags().GetBool("reprocess")

	req := enricher.Request{WebpageID: args[0], UserID: userID}
	if reprocess {
		req.Trigger = enricher.TriggerReprocess
	}

	outcome, err := appInstance.Processor().Process(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("process webpage: %w", err)
	}

	row := processResult{
		WebpageID:        args[0],
		NodeID:           outcome.NodeID,
		Result:           string(outcome.Kind),
		Success:          outcome.Succeeded(),
		Via:              string(outcome.Via),
		FieldsExtracted:  outcome.FieldsExtracted,
		NodesUpdated:     outcome.NodesUpdated,
		Quality:          string(outcome.Quality),
		Reason:           outcome.Reason,
		AlreadyProcessed: outcome.AlreadyProcessed,
	}
	if err := printJSON(cmd.OutOrStdout(), row); err != nil {
		return err
	}

	if !outcome.Succeeded() {
		return fmt.Errorf("enrichment failed: %s", outcome.Reason)
	}
	return nil
}
