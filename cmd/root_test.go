package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nodeinsights/enrichment-worker/internal/app"
	"github.com/nodeinsights/enrichment-worker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// swapFactory replaces the application factory for one test.
func swapFactory(t *testing.T, factory func(ctx context.Context) (App, error)) {
	t.Helper()
	orig := newApp
	newApp = factory
	t.Cleanup(func() { newApp = orig })
}

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"serve", "process", "compare", "stats"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCmdReportsFactoryFailure(t *testing.T) {
	swapFactory(t, func(_ context.Context) (App, error) {
		return nil, errors.New("config incomplete")
	})

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"stats"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize application services")
	assert.Contains(t, err.Error(), "config incomplete")
}

func TestProcessCmdRequiresWebpageID(t *testing.T) {
	// Argument validation runs before the factory, so a missing id must
	// never build the application.
	swapFactory(t, func(_ context.Context) (App, error) {
		t.Fatal("factory called despite invalid arguments")
		return nil, nil
	})

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"process"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestStatsCmdPrintsBackendDocument(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webpages/processing-stats" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "stats": {"pendingWebpages": 4, "processedWebpages": 90}}`))
	}))
	defer backendSrv.Close()

	swapFactory(t, func(ctx context.Context) (App, error) {
		cfg := config.Config{
			Server:  config.ServerConfig{ListenAddr: "127.0.0.1:0"},
			Backend: config.BackendConfig{BaseURL: backendSrv.URL, APIKey: "backend-key", TimeoutSeconds: 5, MaxRetries: 1},
			Reader:  config.ReaderConfig{APIKey: "reader-key", BaseURL: "https://r.jina.ai"},
			Worker:  config.WorkerConfig{ID: "worker-test", CleanupOnFailure: true},
			Logging: config.LoggingConfig{Level: "error"},
		}
		return app.Build(ctx, &cfg)
	})

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"stats"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "pendingWebpages")
	assert.Contains(t, out.String(), "processedWebpages")
}
