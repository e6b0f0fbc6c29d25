// Package app builds and runs the enrichment worker's long-lived services.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/nodeinsights/enrichment-worker/internal/api"
	archivegcs "github.com/nodeinsights/enrichment-worker/internal/archive/gcs"
	"github.com/nodeinsights/enrichment-worker/internal/backend"
	"github.com/nodeinsights/enrichment-worker/internal/clock/system"
	"github.com/nodeinsights/enrichment-worker/internal/config"
	"github.com/nodeinsights/enrichment-worker/internal/enricher"
	"github.com/nodeinsights/enrichment-worker/internal/extract"
	"github.com/nodeinsights/enrichment-worker/internal/handler"
	"github.com/nodeinsights/enrichment-worker/internal/hash/sha256"
	"github.com/nodeinsights/enrichment-worker/internal/id/uuid"
	journalpg "github.com/nodeinsights/enrichment-worker/internal/journal/postgres"
	"github.com/nodeinsights/enrichment-worker/internal/logging"
	"github.com/nodeinsights/enrichment-worker/internal/metrics"
	"github.com/nodeinsights/enrichment-worker/internal/policy/ratelimit"
	"github.com/nodeinsights/enrichment-worker/internal/progress"
	progresssinks "github.com/nodeinsights/enrichment-worker/internal/progress/sinks"
	gcppublisher "github.com/nodeinsights/enrichment-worker/internal/publisher/pubsub"
	"github.com/nodeinsights/enrichment-worker/pkg/reader"
	"github.com/nodeinsights/enrichment-worker/pkg/search"
)

// App holds the wired services for one worker process.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	backend   *backend.Client
	processor *enricher.Processor
	apiServer *api.Server

	storageClient *storage.Client
	pubsubClient  *pubsub.Client
	publisher     *gcppublisher.Publisher
	journal       *journalpg.Journal
	progressHub   *progress.Hub

	closeOnce sync.Once
}

// Processor exposes the enrichment pipeline for CLI invocations.
func (a *App) Processor() *enricher.Processor {
	return a.processor
}

// Backend exposes the data service client.
func (a *App) Backend() *backend.Client {
	return a.backend
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Build creates the application's dependencies. Optional side channels
// (archive, journal, events) are wired only when configured; everything
// else fails fast.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}

	if cfg.Worker.ID == "" {
		id, err := uuid.New().NewID()
		if err != nil {
			return nil, fmt.Errorf("generate worker id: %w", err)
		}
		cfg.Worker.ID = "worker-" + id[:8]
	}
	app.logger.Info("building application dependencies",
		zap.String("worker_id", cfg.Worker.ID),
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.Bool("fallback_enabled", cfg.FallbackEnabled()),
	)

	app.backend = backend.New(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		APIKey:     cfg.Backend.APIKey,
		Timeout:    cfg.CallTimeout(),
		MaxRetries: cfg.Backend.MaxRetries,
	}, logger.Named("backend"))

	var primary enricher.FetchProvider = reader.New(reader.Config{
		APIKey:  cfg.Reader.APIKey,
		BaseURL: cfg.Reader.BaseURL,
		Timeout: cfg.CallTimeout(),
	})

	var fallback enricher.FetchProvider
	if cfg.FallbackEnabled() {
		fallback = search.New(search.Config{
			APIKey:  cfg.Search.APIKey,
			APIHost: cfg.Search.Host,
			APIURL:  cfg.SearchEndpoint(),
			Timeout: cfg.CallTimeout(),
		})
		app.logger.Info("fallback provider enabled", zap.String("host", cfg.Search.Host))
	} else {
		app.logger.Warn("no search API key configured, fallback provider disabled")
	}

	if cfg.Providers.RPS > 0 {
		limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Providers.RPS, Burst: cfg.Providers.Burst})
		primary = ratelimit.WrapProvider(primary, limiter)
		if fallback != nil {
			fallback = ratelimit.WrapProvider(fallback, limiter)
		}
		app.logger.Info("provider pacing enabled",
			zap.Float64("rps", cfg.Providers.RPS),
			zap.Int("burst", cfg.Providers.Burst),
		)
	}

	archiveStore, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}

	journal, err := setupJournal(ctx, app)
	if err != nil {
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	app.processor = enricher.New(
		app.backend,
		primary,
		fallback,
		extract.NewCompanyExtractor(),
		archiveStore,
		sha256.New(),
		journal,
		publisher,
		setupProgress(ctx, app),
		system.New(),
		uuid.New(),
		enricher.Config{
			FetchTimeout:     cfg.CallTimeout(),
			CleanupOnFailure: cfg.Worker.CleanupOnFailure,
			WorkerID:         cfg.Worker.ID,
			Topic:            cfg.Events.Topic,
			ArchivePrefix:    cfg.Archive.Prefix,
		},
		logger.Named("enricher"),
	)

	invoke := handler.New(app.processor, logger.Named("handler"))
	app.apiServer = api.NewServer(invoke, app.backend, api.Config{APIKey: cfg.Server.APIKey}, logger.Named("api"))

	return app, nil
}

// Run starts the HTTP server and blocks until a signal or context
// cancellation triggers shutdown.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.String("addr", a.cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully releases clients and flushes buffered work. It is safe
// to call more than once; only the first call does the work.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		if a.progressHub != nil {
			if err := a.progressHub.Close(ctx); err != nil {
				a.logger.Warn("progress hub close failed", zap.Error(err))
			}
		}
		if a.publisher != nil {
			a.publisher.Stop()
		}
		if a.pubsubClient != nil {
			if err := a.pubsubClient.Close(); err != nil {
				a.logger.Warn("pubsub client close failed", zap.Error(err))
			}
		}
		if a.storageClient != nil {
			if err := a.storageClient.Close(); err != nil {
				a.logger.Warn("gcs client close failed", zap.Error(err))
			}
		}
		if a.journal != nil {
			a.journal.Close()
		}
		if err := a.logger.Sync(); err != nil {
			a.logger.Warn("logger sync failed", zap.Error(err))
		}
		a.logger.Info("shutdown complete")
	})
	return nil
}

func setupArchive(ctx context.Context, app *App) (enricher.BlobStore, error) {
	if app.cfg.Archive.Bucket == "" {
		app.logger.Info("raw content archive disabled")
		return nil, nil
	}
	var err error
	app.storageClient, err = storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client init failed: %w", err)
	}
	store, err := archivegcs.New(app.storageClient, archivegcs.Config{Bucket: app.cfg.Archive.Bucket})
	if err != nil {
		return nil, fmt.Errorf("archive init failed: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("archive bucket check failed: %w", err)
	}
	app.logger.Info("raw content archive enabled", zap.String("bucket", app.cfg.Archive.Bucket))
	return store, nil
}

func setupJournal(ctx context.Context, app *App) (enricher.Recorder, error) {
	if app.cfg.Journal.DatabaseURL == "" {
		app.logger.Info("invocation journal disabled")
		return nil, nil
	}
	var err error
	app.journal, err = journalpg.New(ctx, journalpg.Config{DSN: app.cfg.Journal.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("journal init failed: %w", err)
	}
	app.logger.Info("invocation journal enabled")
	return app.journal, nil
}

func setupPublisher(ctx context.Context, app *App) (enricher.Publisher, error) {
	if app.cfg.Events.Topic == "" {
		app.logger.Info("outcome events disabled")
		return nil, nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.Events.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(app.pubsubClient)
	app.logger.Info("outcome events enabled",
		zap.String("project", app.cfg.Events.ProjectID),
		zap.String("topic", app.cfg.Events.Topic),
	)
	return app.publisher, nil
}

func setupProgress(ctx context.Context, app *App) progress.Emitter {
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(app.logger.Named("progress_log")),
	}
	promSink, err := progresssinks.NewPrometheusSink(nil)
	if err != nil {
		app.logger.Warn("prometheus progress sink init failed", zap.Error(err))
	} else {
		sinkList = append(sinkList, promSink)
	}
	app.progressHub = progress.NewHub(progress.Config{
		BaseContext: ctx,
		Logger:      app.logger.Named("progress_hub"),
	}, sinkList...)
	return app.progressHub
}
