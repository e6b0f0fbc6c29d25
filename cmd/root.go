package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nodeinsights/enrichment-worker/internal/app"
	"github.com/nodeinsights/enrichment-worker/internal/backend"
	"github.com/nodeinsights/enrichment-worker/internal/config"
	"github.com/nodeinsights/enrichment-worker/internal/enricher"
	"github.com/nodeinsights/enrichment-worker/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the application that commands use. Keeping it an
// interface lets tests inject a stub factory.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Processor() *enricher.Processor
	Backend() *backend.Client
	Logger() *zap.Logger
}

// newApp is the application factory. It's a variable so we can replace it
// with a stub factory in our tests.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	a, err := app.Build(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrichment-worker",
		Short: "Company enrichment worker for the NodeInsights graph.",
		Long: `enrichment-worker turns queued company webpages into structured company
attributes. It fetches each page through a reader provider with a
search-API fallback, extracts company fields, persists results through
the backend REST API, and propagates them to graph nodes.`,

		// This hook runs AFTER flags are parsed but BEFORE the subcommand's
		// RunE, so every command sees a fully wired application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				if err := appInstance.Close(cmd.Context()); err != nil {
					logging.L.Warn("Failed to close application services", zap.Error(err))
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default reads ENRICHER_* environment variables)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

// resolveApp retrieves the application injected by the root command's
// PersistentPreRunE hook.
func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
