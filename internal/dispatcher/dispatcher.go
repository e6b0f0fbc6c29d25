// Package dispatcher fans provider-comparison work out to a bounded pool.
package dispatcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

// DefaultWorkers bounds concurrency when the config leaves it unset.
const DefaultWorkers = 4

// Comparer runs the read-only provider comparison for one webpage.
type Comparer interface {
	Compare(ctx context.Context, webpageID string) (enricher.CompareReport, error)
}

// Config controls Dispatcher behavior.
type Config struct {
	Workers int
}

// Result pairs one webpage ID with its comparison outcome.
type Result struct {
	WebpageID string
	Report    enricher.CompareReport
	Err       error
}

// Dispatcher runs comparisons for batches of webpage IDs.
type Dispatcher struct {
	comparer Comparer
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Dispatcher.
func New(comparer Comparer, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		comparer: comparer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run compares every webpage ID with bounded concurrency and returns
// results in input order. Work not yet dispatched when the context is
// canceled gets the context error as its result.
func (d *Dispatcher) Run(ctx context.Context, webpageIDs []string) []Result {
	results := make([]Result, len(webpageIDs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				id := webpageIDs[idx]
				report, err := d.comparer.Compare(ctx, id)
				results[idx] = Result{WebpageID: id, Report: report, Err: err}
				if err != nil {
					d.logger.Warn("comparison failed", zap.String("webpage_id", id), zap.Error(err))
					continue
				}
				d.logger.Debug("comparison finished",
					zap.String("webpage_id", id),
					zap.Int("merged_fields", report.MergedFields),
				)
			}
		}()
	}

feed:
	for i := range webpageIDs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(webpageIDs); j++ {
				results[j] = Result{WebpageID: webpageIDs[j], Err: ctx.Err()}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return results
}
