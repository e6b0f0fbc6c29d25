// Package handler normalizes invocation events, runs them through the
// processor, and shapes the response envelope.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nodeinsights/enrichment-worker/internal/backend"
	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

// Invoker runs enrichment operations. *enricher.Processor satisfies it.
type Invoker interface {
	Process(ctx context.Context, req enricher.Request) (enricher.ProcessingOutcome, error)
	Compare(ctx context.Context, webpageID string) (enricher.CompareReport, error)
}

// Handler turns raw invocation events into processor calls.
type Handler struct {
	invoker Invoker
	logger  *zap.Logger
}

// New constructs a Handler.
func New(invoker Invoker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{invoker: invoker, logger: logger}
}

// Response is the invocation envelope returned to the caller.
type Response struct {
	StatusCode int  `json:"statusCode"`
	Body       Body `json:"body"`
}

// Body carries the invocation result.
type Body struct {
	WebpageID       string      `json:"webpageId,omitempty"`
	NodeID          string      `json:"nodeId,omitempty"`
	UserID          string      `json:"userId,omitempty"`
	Success         bool        `json:"success"`
	Via             string      `json:"via,omitempty"`
	FieldsExtracted int         `json:"fieldsExtracted,omitempty"`
	NodesUpdated    int         `json:"nodesUpdated,omitempty"`
	Message         string      `json:"message,omitempty"`
	Error           string      `json:"error,omitempty"`
	Comparison      *Comparison `json:"comparison,omitempty"`
}

// Comparison is the wire form of a provider comparison report.
type Comparison struct {
	URL          string         `json:"url"`
	Primary      ProviderView   `json:"primary"`
	Fallback     ProviderView   `json:"fallback"`
	Merged       map[string]any `json:"merged,omitempty"`
	MergedFields int            `json:"mergedFields"`
}

// ProviderView is one provider's side of a comparison.
type ProviderView struct {
	Provider        string         `json:"provider"`
	Fetched         bool           `json:"fetched"`
	FailureReason   string         `json:"failureReason,omitempty"`
	FieldsExtracted int            `json:"fieldsExtracted"`
	Quality         string         `json:"quality,omitempty"`
	DurationMs      int64          `json:"durationMs"`
	Fields          map[string]any `json:"fields,omitempty"`
}

type payload struct {
	WebpageID string `json:"webpageId"`
	UserID    string `json:"userId"`
	Trigger   string `json:"trigger"`
	Operation string `json:"operation"`
	Action    string `json:"action"`
}

type envelope struct {
	payload
	Body json.RawMessage `json:"body"`
}

// Handle runs one invocation event and returns its response envelope. It
// never panics: recovered panics become a 500 response.
func (h *Handler) Handle(ctx context.Context, event []byte) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic during invocation", zap.Any("panic", rec))
			resp = Response{StatusCode: http.StatusInternalServerError, Body: Body{Error: "internal error"}}
		}
	}()

	p := h.parsePayload(event)
	if p.WebpageID == "" {
		h.logger.Error("event payload has no webpageId")
		return Response{StatusCode: http.StatusBadRequest, Body: Body{Error: "webpageId required"}}
	}

	if isCompareOperation(p.Operation, p.Action) {
		return h.compare(ctx, p.WebpageID)
	}
	return h.process(ctx, p)
}

// parsePayload normalizes the supported event shapes: fields at the top
// level, under a "body" object, or under a "body" string holding JSON.
func (h *Handler) parsePayload(event []byte) payload {
	var env envelope
	if err := json.Unmarshal(event, &env); err != nil {
		return payload{}
	}
	body := env.Body
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err == nil {
			body = json.RawMessage(inner)
		} else {
			body = nil
		}
	}
	var keys map[string]json.RawMessage
	if len(body) > 0 && json.Unmarshal(body, &keys) == nil && len(keys) > 0 {
		var p payload
		if err := json.Unmarshal(body, &p); err == nil {
			return p
		}
		h.logger.Warn("undecodable event body, using top-level keys")
	}
	return env.payload
}

func isCompareOperation(operation, action string) bool {
	op := operation
	if op == "" {
		op = action
	}
	switch strings.ToLower(op) {
	case "compare", "compareapis", "compare_apis":
		return true
	}
	return false
}

func (h *Handler) process(ctx context.Context, p payload) Response {
	outcome, err := h.invoker.Process(ctx, enricher.Request{
		WebpageID: p.WebpageID,
		UserID:    p.UserID,
		Trigger:   p.Trigger,
	})
	if err != nil {
		if backend.IsNotFound(err) {
			return Response{StatusCode: http.StatusNotFound, Body: Body{WebpageID: p.WebpageID, Error: "webpage not found"}}
		}
		h.logger.Error("invocation error", zap.String("webpage_id", p.WebpageID), zap.Error(err))
		return Response{StatusCode: http.StatusInternalServerError, Body: Body{WebpageID: p.WebpageID, Error: err.Error()}}
	}

	body := Body{
		WebpageID:       p.WebpageID,
		NodeID:          outcome.NodeID,
		UserID:          p.UserID,
		Success:         outcome.Succeeded(),
		Via:             string(outcome.Via),
		FieldsExtracted: outcome.FieldsExtracted,
		NodesUpdated:    outcome.NodesUpdated,
	}
	if !outcome.Succeeded() {
		body.Error = outcome.Reason
		body.Message = terminalMessage(outcome.Kind)
		return Response{StatusCode: http.StatusInternalServerError, Body: body}
	}
	body.Message = "company processed successfully"
	if outcome.AlreadyProcessed {
		body.Message = "already processed"
	}
	return Response{StatusCode: http.StatusOK, Body: body}
}

func (h *Handler) compare(ctx context.Context, webpageID string) Response {
	report, err := h.invoker.Compare(ctx, webpageID)
	if err != nil {
		if backend.IsNotFound(err) {
			return Response{StatusCode: http.StatusNotFound, Body: Body{WebpageID: webpageID, Error: "webpage not found"}}
		}
		h.logger.Error("comparison error", zap.String("webpage_id", webpageID), zap.Error(err))
		return Response{StatusCode: http.StatusInternalServerError, Body: Body{WebpageID: webpageID, Error: err.Error()}}
	}
	return Response{StatusCode: http.StatusOK, Body: Body{
		WebpageID:  webpageID,
		Success:    true,
		Comparison: NewComparison(report),
	}}
}

func terminalMessage(kind enricher.OutcomeKind) string {
	if kind == enricher.OutcomeFailedCleaned {
		return "webpage record cleaned up"
	}
	return "webpage marked failed"
}

// NewComparison converts a compare report into its wire representation.
func NewComparison(report enricher.CompareReport) *Comparison {
	return &Comparison{
		URL:          report.URL,
		Primary:      newProviderView(report.Primary),
		Fallback:     newProviderView(report.Fallback),
		Merged:       report.Merged,
		MergedFields: report.MergedFields,
	}
}

func newProviderView(r enricher.ProviderReport) ProviderView {
	return ProviderView{
		Provider:        r.Provider,
		Fetched:         r.Fetched,
		FailureReason:   r.FailureReason,
		FieldsExtracted: r.FieldsExtracted,
		Quality:         string(r.Quality),
		DurationMs:      r.Duration.Milliseconds(),
		Fields:          r.Fields,
	}
}
