package enricher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nodeinsights/enrichment-worker/internal/metrics"
	"github.com/nodeinsights/enrichment-worker/internal/progress"
)

// TriggerReprocess forces a fresh run even when the record was already
// processed by an earlier invocation.
const TriggerReprocess = "reprocess"

const (
	defaultFetchTimeout = 45 * time.Second
	processorVersion    = "company-processor-v1"
)

// Config controls Processor behavior.
type Config struct {
	// FetchTimeout bounds each provider attempt.
	FetchTimeout time.Duration
	// CleanupOnFailure deletes the webpage record when the provider
	// sequence is exhausted; otherwise the record is marked failed.
	CleanupOnFailure bool
	// WorkerID is stamped into persisted metadata and journal records.
	WorkerID string
	// Topic names the outcome event topic. Empty disables publishing.
	Topic string
	// ArchivePrefix prefixes raw content blob paths.
	ArchivePrefix string
}

// Processor orchestrates the enrichment pipeline for one webpage at a
// time: load the record, fetch through the provider sequence, extract,
// and persist exactly one terminal outcome.
type Processor struct {
	data      DataService
	primary   FetchProvider
	fallback  FetchProvider
	extractor Extractor
	archive   BlobStore
	hasher    Hasher
	journal   Recorder
	publisher Publisher
	events    progress.Emitter
	clock     Clock
	ids       IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Processor. The fallback provider, archive, journal,
// publisher, and events emitter may be nil; the matching side channels
// are skipped.
func New(
	data DataService,
	primary FetchProvider,
	fallback FetchProvider,
	extractor Extractor,
	archive BlobStore,
	hasher Hasher,
	journal Recorder,
	publisher Publisher,
	events progress.Emitter,
	clock Clock,
	ids IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Processor {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		data:      data,
		primary:   primary,
		fallback:  fallback,
		extractor: extractor,
		archive:   archive,
		hasher:    hasher,
		journal:   journal,
		publisher: publisher,
		events:    events,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
	}
}

// invocation carries per-run bookkeeping across the pipeline stages.
type invocation struct {
	id        string
	uuid      [16]byte
	webpageID string
	nodeID    string
	started   time.Time
}

// Process runs the pipeline for one webpage and returns its terminal
// outcome. An error is returned only for failures outside the provider
// sequence: a record that cannot be loaded, or a persistence failure.
// Such invocations have no terminal outcome and the caller may
// re-invoke.
func (p *Processor) Process(ctx context.Context, req Request) (ProcessingOutcome, error) {
	inv := p.begin(req)

	rec, err := p.data.GetWebpage(ctx, req.WebpageID)
	if err != nil {
		return p.fail(inv, fmt.Errorf("load webpage %s: %w", req.WebpageID, err))
	}
	inv.nodeID = rec.NodeID

	if rec.Status == WebpageStatusProcessed && req.Trigger != TriggerReprocess {
		outcome := p.alreadyProcessed(rec)
		p.finish(ctx, inv, outcome, "already_processed")
		return outcome, nil
	}

	if strings.TrimSpace(rec.URL) == "" {
		return p.settleMarked(ctx, inv, "missing_url", "webpage record has no url")
	}
	profileURL, err := CleanProfileURL(rec.URL)
	if err == nil {
		err = ValidateCompanyURL(profileURL)
	}
	if err != nil {
		return p.settleMarked(ctx, inv, "invalid_url", err.Error())
	}

	fields, via, perr := p.attemptProviders(ctx, inv, profileURL)
	if perr != nil {
		return p.settleFailure(ctx, inv, perr)
	}
	return p.succeed(ctx, inv, profileURL, via, fields)
}

// begin opens the invocation bookkeeping and announces the start.
func (p *Processor) begin(req Request) *invocation {
	started := p.clock.Now()
	id, err := p.ids.NewID()
	if err != nil || id == "" {
		id = uuid.NewString()
	}
	u, perr := uuid.Parse(id)
	if perr != nil {
		u = uuid.New()
	}
	inv := &invocation{
		id:        id,
		uuid:      progress.UUIDToBytes(u),
		webpageID: req.WebpageID,
		started:   started,
	}
	p.emit(progress.Event{
		InvocationID: inv.uuid,
		TS:           started,
		Stage:        progress.StageInvocationStart,
		WebpageID:    req.WebpageID,
	})
	p.logger.Info("processing webpage",
		zap.String("webpage_id", req.WebpageID),
		zap.String("invocation_id", inv.id),
		zap.String("trigger", req.Trigger))
	return inv
}

// attemptProviders runs the strict primary-then-fallback sequence and
// returns the first extraction with usable fields. A non-retryable
// primary failure ends the sequence without touching the fallback.
func (p *Processor) attemptProviders(ctx context.Context, inv *invocation, profileURL string) (CompanyFields, ProviderName, error) {
	fields, err := p.attempt(ctx, inv, p.primary, profileURL)
	if err == nil {
		return fields, ProviderPrimary, nil
	}
	if !retryable(err) || p.fallback == nil {
		return nil, "", err
	}

	fbFields, fbErr := p.attempt(ctx, inv, p.fallback, profileURL)
	if fbErr != nil {
		return nil, "", fmt.Errorf("%v; %w", err, fbErr)
	}
	return fbFields, ProviderFallback, nil
}

// attempt fetches through one provider and extracts. Zero extracted
// fields count as a retryable provider failure so the sequence can
// continue.
func (p *Processor) attempt(ctx context.Context, inv *invocation, provider FetchProvider, profileURL string) (CompanyFields, error) {
	name := provider.Name()
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	start := p.clock.Now()
	content, err := provider.Fetch(fetchCtx, profileURL)
	dur := p.clock.Now().Sub(start)
	if err != nil {
		metrics.ObserveProviderFetch(name, "failure", dur)
		p.emit(progress.Event{
			InvocationID: inv.uuid,
			TS:           p.clock.Now(),
			Stage:        progress.StageProviderFetch,
			WebpageID:    inv.webpageID,
			Provider:     name,
			StatusClass:  progress.ClassifyStatus(statusCodeOf(err)),
			Dur:          dur,
			Note:         err.Error(),
		})
		p.logger.Warn("provider fetch failed",
			zap.String("webpage_id", inv.webpageID),
			zap.String("provider", name),
			zap.Error(err))
		return nil, err
	}

	p.emit(progress.Event{
		InvocationID: inv.uuid,
		TS:           p.clock.Now(),
		Stage:        progress.StageProviderFetch,
		WebpageID:    inv.webpageID,
		Provider:     name,
		StatusClass:  progress.Status2xx,
		Dur:          dur,
	})
	p.archiveContent(ctx, inv, name, content)

	fields := p.extractor.Extract(content)
	count := fields.FieldsExtracted()
	p.emit(progress.Event{
		InvocationID: inv.uuid,
		TS:           p.clock.Now(),
		Stage:        progress.StageExtraction,
		WebpageID:    inv.webpageID,
		Provider:     name,
		Fields:       int64(count),
	})
	if count == 0 {
		metrics.ObserveProviderFetch(name, "empty", dur)
		p.logger.Warn("extraction yielded no fields",
			zap.String("webpage_id", inv.webpageID),
			zap.String("provider", name))
		return nil, &ProviderError{Provider: name, Reason: "no usable fields extracted", Retryable: true}
	}

	metrics.ObserveProviderFetch(name, "success", dur)
	metrics.ObserveExtraction(name, count, string(fields.Quality()))
	return fields, nil
}

// succeed persists the extraction and applies node enrichment. Both
// writes are hard: a failure here aborts the invocation rather than
// downgrading a produced extraction to a failed outcome.
func (p *Processor) succeed(ctx context.Context, inv *invocation, profileURL string, via ProviderName, fields CompanyFields) (ProcessingOutcome, error) {
	count := fields.FieldsExtracted()
	quality := fields.Quality()

	update := p.stampMetadata(fields, via, profileURL, count, quality)
	if err := p.data.UpdateWebpage(ctx, inv.webpageID, update); err != nil {
		return p.fail(inv, fmt.Errorf("persist extracted fields: %w", err))
	}

	nodes, err := p.data.ApplyCompanyEnrichment(ctx, inv.webpageID, fields)
	if err != nil {
		return p.fail(inv, fmt.Errorf("apply company enrichment: %w", err))
	}
	p.emit(progress.Event{
		InvocationID: inv.uuid,
		TS:           p.clock.Now(),
		Stage:        progress.StagePersistence,
		WebpageID:    inv.webpageID,
		Provider:     string(via),
		Nodes:        int64(nodes),
	})

	outcome := ProcessingOutcome{
		Kind:            OutcomeSucceeded,
		Via:             via,
		NodeID:          inv.nodeID,
		FieldsExtracted: count,
		NodesUpdated:    nodes,
		Quality:         quality,
	}
	p.finish(ctx, inv, outcome, string(OutcomeSucceeded))
	return outcome, nil
}

// settleFailure applies the terminal policy after the provider sequence
// is exhausted: cleanup when enabled, mark failed otherwise.
func (p *Processor) settleFailure(ctx context.Context, inv *invocation, cause error) (ProcessingOutcome, error) {
	if p.cfg.CleanupOnFailure {
		if err := p.data.CleanupWebpage(ctx, inv.webpageID); err != nil {
			return p.fail(inv, fmt.Errorf("cleanup failed webpage: %w", err))
		}
		outcome := ProcessingOutcome{Kind: OutcomeFailedCleaned, Reason: cause.Error()}
		p.finish(ctx, inv, outcome, string(OutcomeFailedCleaned))
		return outcome, nil
	}
	return p.settleMarked(ctx, inv, failureType(cause), cause.Error())
}

// settleMarked records a terminal mark-failed outcome.
func (p *Processor) settleMarked(ctx context.Context, inv *invocation, errType, reason string) (ProcessingOutcome, error) {
	if err := p.data.MarkFailed(ctx, inv.webpageID, errType, reason); err != nil {
		return p.fail(inv, fmt.Errorf("mark webpage failed: %w", err))
	}
	outcome := ProcessingOutcome{Kind: OutcomeFailedMarked, Reason: reason}
	p.finish(ctx, inv, outcome, string(OutcomeFailedMarked))
	return outcome, nil
}

// alreadyProcessed summarizes a record finished by an earlier invocation
// without touching the providers again.
func (p *Processor) alreadyProcessed(rec WebpageRecord) ProcessingOutcome {
	outcome := ProcessingOutcome{
		Kind:             OutcomeSucceeded,
		AlreadyProcessed: true,
		NodeID:           rec.NodeID,
		FieldsExtracted:  rec.ExtractedFields.FieldsExtracted(),
		Quality:          rec.ExtractedFields.Quality(),
	}
	if via, ok := rec.ExtractedFields["processedVia"].(string); ok {
		outcome.Via = ProviderName(via)
	}
	if n, ok := intValue(rec.ExtractedFields["fieldsExtracted"]); ok {
		outcome.FieldsExtracted = n
	}
	return outcome
}

// stampMetadata copies the extracted fields and adds the processing
// bookkeeping the backend stores alongside them. The input map is not
// modified; node enrichment receives the bare extraction.
func (p *Processor) stampMetadata(fields CompanyFields, via ProviderName, profileURL string, count int, quality ExtractionQuality) CompanyFields {
	now := p.clock.Now().UTC().Format(time.RFC3339)
	update := make(CompanyFields, len(fields)+11)
	for k, v := range fields {
		update[k] = v
	}
	update["platform"] = "linkedin"
	update["processedVia"] = string(via)
	update["extractionMethod"] = extractionMethod(via)
	update["extractedAt"] = now
	update["processedAt"] = now
	update["workerId"] = p.cfg.WorkerID
	update["processorVersion"] = processorVersion
	update["extractionQuality"] = string(quality)
	update["fieldsExtracted"] = count
	update["url"] = profileURL
	return update
}

// finish emits the terminal side effects shared by every outcome.
func (p *Processor) finish(ctx context.Context, inv *invocation, outcome ProcessingOutcome, label string) {
	dur := p.clock.Now().Sub(inv.started)
	metrics.ObserveInvocation(label)
	metrics.AddNodesUpdated(outcome.NodesUpdated)

	stage := progress.StageInvocationDone
	note := ""
	if !outcome.Succeeded() {
		stage = progress.StageInvocationError
		note = outcome.Reason
	}
	p.emit(progress.Event{
		InvocationID: inv.uuid,
		TS:           p.clock.Now(),
		Stage:        stage,
		WebpageID:    inv.webpageID,
		Fields:       int64(outcome.FieldsExtracted),
		Nodes:        int64(outcome.NodesUpdated),
		Dur:          dur,
		Note:         note,
	})

	p.journalOutcome(ctx, inv, outcome, dur)
	p.publishOutcome(ctx, inv, outcome)

	p.logger.Info("invocation finished",
		zap.String("webpage_id", inv.webpageID),
		zap.String("invocation_id", inv.id),
		zap.String("outcome", string(outcome.Kind)),
		zap.String("via", string(outcome.Via)),
		zap.Int("fields_extracted", outcome.FieldsExtracted),
		zap.Int("nodes_updated", outcome.NodesUpdated),
		zap.Bool("already_processed", outcome.AlreadyProcessed),
		zap.Duration("duration", dur))
}

// fail reports an invocation that ended without a terminal outcome.
func (p *Processor) fail(inv *invocation, err error) (ProcessingOutcome, error) {
	dur := p.clock.Now().Sub(inv.started)
	metrics.ObserveInvocation("error")
	p.emit(progress.Event{
		InvocationID: inv.uuid,
		TS:           p.clock.Now(),
		Stage:        progress.StageInvocationError,
		WebpageID:    inv.webpageID,
		Dur:          dur,
		Note:         err.Error(),
	})
	p.logger.Error("invocation failed",
		zap.String("webpage_id", inv.webpageID),
		zap.String("invocation_id", inv.id),
		zap.Error(err))
	return ProcessingOutcome{}, err
}

// archiveContent stores the raw provider payload, best effort.
func (p *Processor) archiveContent(ctx context.Context, inv *invocation, provider string, content Content) {
	if p.archive == nil {
		return
	}
	ext, contentType := "html", "text/html; charset=utf-8"
	if content.Kind == ContentJSON {
		ext, contentType = "json", "application/json"
	}
	name := provider
	if p.hasher != nil {
		if h, err := p.hasher.Hash(content.Data); err == nil {
			name = provider + "-" + h
		}
	}
	path := fmt.Sprintf("%s/%s.%s", inv.webpageID, name, ext)
	if prefix := strings.Trim(p.cfg.ArchivePrefix, "/"); prefix != "" {
		path = prefix + "/" + path
	}
	if _, err := p.archive.PutObject(ctx, path, contentType, content.Data); err != nil {
		p.logger.Warn("archive raw content failed",
			zap.String("webpage_id", inv.webpageID),
			zap.String("provider", provider),
			zap.Error(err))
	}
}

// journalOutcome records the terminal outcome, best effort.
func (p *Processor) journalOutcome(ctx context.Context, inv *invocation, outcome ProcessingOutcome, dur time.Duration) {
	if p.journal == nil {
		return
	}
	rec := InvocationRecord{
		InvocationID:    inv.id,
		WebpageID:       inv.webpageID,
		WorkerID:        p.cfg.WorkerID,
		Outcome:         outcome.Kind,
		Via:             outcome.Via,
		FieldsExtracted: outcome.FieldsExtracted,
		NodesUpdated:    outcome.NodesUpdated,
		Reason:          outcome.Reason,
		Duration:        dur,
		StartedAt:       inv.started,
	}
	if err := p.journal.RecordInvocation(ctx, rec); err != nil {
		p.logger.Warn("journal invocation failed",
			zap.String("invocation_id", inv.id),
			zap.Error(err))
	}
}

// publishOutcome pushes the terminal outcome event, best effort.
func (p *Processor) publishOutcome(ctx context.Context, inv *invocation, outcome ProcessingOutcome) {
	if p.cfg.Topic == "" || p.publisher == nil {
		return
	}
	payload := map[string]any{
		"invocationId":    inv.id,
		"webpageId":       inv.webpageID,
		"outcome":         string(outcome.Kind),
		"via":             string(outcome.Via),
		"fieldsExtracted": outcome.FieldsExtracted,
		"nodesUpdated":    outcome.NodesUpdated,
		"timestamp":       p.clock.Now().UTC().Format(time.RFC3339),
	}
	if outcome.Reason != "" {
		payload["reason"] = outcome.Reason
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, payload); err != nil {
		p.logger.Warn("publish outcome failed",
			zap.String("invocation_id", inv.id),
			zap.Error(err))
	}
}

func (p *Processor) emit(evt progress.Event) {
	if p.events == nil {
		return
	}
	p.events.Emit(evt)
}

func retryable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}

func statusCodeOf(err error) int {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode
	}
	return 0
}

// failureType names the terminal failure for the mark-failed record. A
// non-retryable provider error means the profile itself is gone.
func failureType(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) && !perr.Retryable {
		return "profile_not_found"
	}
	return "providers_failed"
}

func extractionMethod(via ProviderName) string {
	if via == ProviderFallback {
		return "api_direct"
	}
	return "html_parsing"
}

func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}
