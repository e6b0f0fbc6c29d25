package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeinsights/enrichment-worker/internal/backend"
	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

type stubInvoker struct {
	req      enricher.Request
	outcome  enricher.ProcessingOutcome
	report   enricher.CompareReport
	err      error
	panicVal any
	compared string
	calls    int
}

func (s *stubInvoker) Process(ctx context.Context, req enricher.Request) (enricher.ProcessingOutcome, error) {
	s.calls++
	s.req = req
	if s.panicVal != nil {
		panic(s.panicVal)
	}
	return s.outcome, s.err
}

func (s *stubInvoker) Compare(ctx context.Context, webpageID string) (enricher.CompareReport, error) {
	s.compared = webpageID
	return s.report, s.err
}

func successOutcome() enricher.ProcessingOutcome {
	return enricher.ProcessingOutcome{
		Kind:            enricher.OutcomeSucceeded,
		Via:             enricher.ProviderPrimary,
		NodeID:          "node-1",
		FieldsExtracted: 6,
		NodesUpdated:    2,
		Quality:         enricher.QualityFull,
	}
}

func TestHandleProcessSuccess(t *testing.T) {
	inv := &stubInvoker{outcome: successOutcome()}
	h := New(inv, nil)

	resp := h.Handle(context.Background(), []byte(`{"webpageId": "wp-1", "userId": "u-7"}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.Body.Success)
	assert.Equal(t, "wp-1", resp.Body.WebpageID)
	assert.Equal(t, "node-1", resp.Body.NodeID)
	assert.Equal(t, "u-7", resp.Body.UserID)
	assert.Equal(t, "primary", resp.Body.Via)
	assert.Equal(t, 6, resp.Body.FieldsExtracted)
	assert.Equal(t, 2, resp.Body.NodesUpdated)
	assert.Equal(t, "company processed successfully", resp.Body.Message)
	assert.Equal(t, enricher.Request{WebpageID: "wp-1", UserID: "u-7"}, inv.req)
}

func TestHandleBodyObjectPayload(t *testing.T) {
	inv := &stubInvoker{outcome: successOutcome()}
	h := New(inv, nil)

	resp := h.Handle(context.Background(), []byte(`{"body": {"webpageId": "wp-2", "trigger": "reprocess"}}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, enricher.Request{WebpageID: "wp-2", Trigger: "reprocess"}, inv.req)
}

func TestHandleBodyStringPayload(t *testing.T) {
	inv := &stubInvoker{outcome: successOutcome()}
	h := New(inv, nil)

	resp := h.Handle(context.Background(), []byte(`{"body": "{\"webpageId\": \"wp-3\"}"}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "wp-3", inv.req.WebpageID)
}

func TestHandleUndecodableBodyFallsBackToTopLevel(t *testing.T) {
	inv := &stubInvoker{outcome: successOutcome()}
	h := New(inv, nil)

	resp := h.Handle(context.Background(), []byte(`{"webpageId": "wp-4", "body": "{oops"}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "wp-4", inv.req.WebpageID)
}

func TestHandleMissingWebpageID(t *testing.T) {
	tests := []struct {
		name  string
		event string
	}{
		{"empty object", `{}`},
		{"body without webpageId", `{"body": {"trigger": "reprocess"}}`},
		{"malformed event", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &stubInvoker{}
			h := New(inv, nil)

			resp := h.Handle(context.Background(), []byte(tt.event))

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.False(t, resp.Body.Success)
			assert.Equal(t, "webpageId required", resp.Body.Error)
			assert.Equal(t, 0, inv.calls)
		})
	}
}

func TestHandleWebpageNotFound(t *testing.T) {
	cause := &backend.APIError{Kind: backend.KindNotFound, Operation: "getWebpage", StatusCode: 404, Message: "no such record"}
	inv := &stubInvoker{err: fmt.Errorf("load webpage wp-9: %w", cause)}
	h := New(inv, nil)

	resp := h.Handle(context.Background(), []byte(`{"webpageId": "wp-9"}`))

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.Body.Success)
	assert.Equal(t, "webpage not found", resp.Body.Error)
}

func TestHandleProcessorError(t *testing.T) {
	inv := &stubInvoker{err: errors.New("persist extracted fields: backend down")}
	h := New(inv, nil)

	resp := h.Handle(context.Background(), []byte(`{"webpageId": "wp-1"}`))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, resp.Body.Success)
	assert.Contains(t, resp.Body.Error, "persist extracted fields")
}

func TestHandleTerminalFailure(t *testing.T) {
	tests := []struct {
		name    string
		kind    enricher.OutcomeKind
		message string
	}{
		{"cleaned", enricher.OutcomeFailedCleaned, "webpage record cleaned up"},
		{"marked", enricher.OutcomeFailedMarked, "webpage marked failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &stubInvoker{outcome: enricher.ProcessingOutcome{
				Kind:   tt.kind,
				Reason: "primary provider: status 500",
			}}
			h := New(inv, nil)

			resp := h.Handle(context.Background(), []byte(`{"webpageId": "wp-1"}`))

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.False(t, resp.Body.Success)
			assert.Equal(t, tt.message, resp.Body.Message)
			assert.Equal(t, "primary provider: status 500", resp.Body.Error)
		})
	}
}

func TestHandleAlreadyProcessed(t *testing.T) {
	outcome := successOutcome()
	outcome.AlreadyProcessed = true
	inv := &stubInvoker{outcome: outcome}
	h := New(inv, nil)

	resp := h.Handle(context.Background(), []byte(`{"webpageId": "wp-1"}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.Body.Success)
	assert.Equal(t, "already processed", resp.Body.Message)
}

func TestHandleCompareOperation(t *testing.T) {
	report := enricher.CompareReport{
		WebpageID: "wp-1",
		URL:       "https://www.linkedin.com/company/acme",
		Primary: enricher.ProviderReport{
			Provider:        "primary",
			Fetched:         true,
			FieldsExtracted: 4,
			Quality:         enricher.QualityPartial,
			Duration:        1500 * time.Millisecond,
			Fields:          enricher.CompanyFields{"name": "Acme"},
		},
		Fallback: enricher.ProviderReport{
			Provider:      "fallback",
			FailureReason: "fallback provider not configured",
		},
		Merged:       enricher.CompanyFields{"name": "Acme"},
		MergedFields: 1,
	}

	for _, event := range []string{
		`{"webpageId": "wp-1", "operation": "compare"}`,
		`{"webpageId": "wp-1", "action": "compareApis"}`,
		`{"webpageId": "wp-1", "operation": "compare_apis"}`,
	} {
		inv := &stubInvoker{report: report}
		h := New(inv, nil)

		resp := h.Handle(context.Background(), []byte(event))

		require.Equal(t, http.StatusOK, resp.StatusCode, event)
		require.NotNil(t, resp.Body.Comparison, event)
		assert.Equal(t, "wp-1", inv.compared)
		assert.Equal(t, 0, inv.calls)
		assert.True(t, resp.Body.Success)
		assert.Equal(t, "https://www.linkedin.com/company/acme", resp.Body.Comparison.URL)
		assert.Equal(t, int64(1500), resp.Body.Comparison.Primary.DurationMs)
		assert.Equal(t, "partial", resp.Body.Comparison.Primary.Quality)
		assert.Equal(t, 1, resp.Body.Comparison.MergedFields)
	}
}

func TestHandleUnknownOperationProcesses(t *testing.T) {
	inv := &stubInvoker{outcome: successOutcome()}
	h := New(inv, nil)

	resp := h.Handle(context.Background(), []byte(`{"webpageId": "wp-1", "operation": "process"}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, inv.calls)
	assert.Empty(t, inv.compared)
}

func TestHandlePanicRecovered(t *testing.T) {
	inv := &stubInvoker{panicVal: "extractor blew up"}
	h := New(inv, nil)

	resp := h.Handle(context.Background(), []byte(`{"webpageId": "wp-1"}`))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, resp.Body.Success)
	assert.Equal(t, "internal error", resp.Body.Error)
}
