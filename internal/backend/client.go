// Package backend wraps the node-insights REST API that owns webpage
// records and graph nodes. The Client maps each route to a typed
// operation, converts failures into APIError values, and retries
// transient errors with exponential backoff.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
	"github.com/nodeinsights/enrichment-worker/internal/metrics"
)

const (
	defaultTimeout    = 45 * time.Second
	defaultMaxRetries = 3

	initialRetryInterval = 500 * time.Millisecond
	maxRetryInterval     = 5 * time.Second
)

// Config holds connection settings for the backend API.
type Config struct {
	// BaseURL is the API root every operation path is joined to.
	BaseURL string
	// APIKey is sent as X-API-Key on every request.
	APIKey string
	// Timeout bounds a single HTTP attempt. Defaults to 45 seconds.
	Timeout time.Duration
	// MaxRetries caps additional attempts after a transient failure.
	// Zero selects the default of 3, negative disables retries.
	MaxRetries int
}

// Client is a typed wrapper over the backend REST API. It implements
// enricher.DataService.
type Client struct {
	cfg        Config
	maxRetries uint64
	client     *http.Client
	logger     *zap.Logger
}

// New returns a ready Client. A nil logger disables request logging.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultMaxRetries
	} else if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		maxRetries: uint64(retries),
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// GetWebpage loads the webpage record queued for enrichment. A
// success=false envelope counts as not found, the same as a 404.
func (c *Client) GetWebpage(ctx context.Context, webpageID string) (enricher.WebpageRecord, error) {
	const op = "getWebpage"
	data, err := c.do(ctx, op, http.MethodGet, "webpages/"+url.PathEscape(webpageID), nil)
	if err != nil {
		return enricher.WebpageRecord{}, err
	}

	var env struct {
		Success *bool           `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return enricher.WebpageRecord{}, &APIError{Kind: KindUnknown, Operation: op, Message: "decode response", Cause: err}
	}
	if refused(env.Success) {
		return enricher.WebpageRecord{}, envelopeFailure(op, KindNotFound, env.Message)
	}

	// Older backend deployments return the record at the top level
	// instead of under "data".
	doc := data
	if present(env.Data) {
		doc = env.Data
	}
	var rec enricher.WebpageRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return enricher.WebpageRecord{}, &APIError{Kind: KindUnknown, Operation: op, Message: "decode webpage record", Cause: err}
	}
	if rec.WebpageID == "" {
		rec.WebpageID = webpageID
	}
	return rec, nil
}

// UpdateWebpage persists extracted company fields onto the webpage
// record. The fields map is sent as the PATCH document unchanged, so the
// caller controls exactly which attributes are written.
func (c *Client) UpdateWebpage(ctx context.Context, webpageID string, fields enricher.CompanyFields) error {
	const op = "updateWebpage"
	data, err := c.do(ctx, op, http.MethodPatch, "webpages/"+url.PathEscape(webpageID), fields)
	if err != nil {
		return err
	}
	return checkWrite(op, data)
}

// MarkFailed records a terminal extraction failure on the webpage.
func (c *Client) MarkFailed(ctx context.Context, webpageID, errType, errMessage string) error {
	const op = "markFailed"
	payload := map[string]string{
		"webpageId":    webpageID,
		"errorType":    errType,
		"errorMessage": errMessage,
	}
	data, err := c.do(ctx, op, http.MethodPost, "webpages/mark-failed", payload)
	if err != nil {
		return err
	}
	return checkWrite(op, data)
}

// CleanupWebpage removes the webpage record and its references after a
// fatal failure.
func (c *Client) CleanupWebpage(ctx context.Context, webpageID string) error {
	const op = "cleanupWebpage"
	data, err := c.do(ctx, op, http.MethodPost, "webpages/cleanup-failed", map[string]string{"webpageId": webpageID})
	if err != nil {
		return err
	}
	return checkWrite(op, data)
}

// ApplyCompanyEnrichment pushes freshly extracted company data to every
// graph node referencing the webpage and reports how many were updated.
func (c *Client) ApplyCompanyEnrichment(ctx context.Context, webpageID string, fields enricher.CompanyFields) (int, error) {
	const op = "applyCompanyEnrichment"
	payload := map[string]any{
		"webpageId":   webpageID,
		"companyData": fields,
	}
	data, err := c.do(ctx, op, http.MethodPost, "nodes/apply-company-enrichment", payload)
	if err != nil {
		return 0, err
	}

	var env struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
		Updated *int   `json:"updated"`
		Count   *int   `json:"count"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, &APIError{Kind: KindUnknown, Operation: op, Message: "decode response", Cause: err}
	}
	if refused(env.Success) {
		return 0, envelopeFailure(op, KindUnknown, env.Message)
	}
	switch {
	case env.Updated != nil:
		return *env.Updated, nil
	case env.Count != nil:
		return *env.Count, nil
	}
	return 0, nil
}

// ProcessingStats is the backend's aggregate view of the enrichment
// queue.
type ProcessingStats map[string]any

// GetProcessingStats fetches queue-wide processing counters for
// reporting.
func (c *Client) GetProcessingStats(ctx context.Context) (ProcessingStats, error) {
	const op = "getProcessingStats"
	data, err := c.do(ctx, op, http.MethodGet, "webpages/processing-stats", nil)
	if err != nil {
		return nil, err
	}

	var env struct {
		Success *bool           `json:"success"`
		Message string          `json:"message"`
		Stats   json.RawMessage `json:"stats"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &APIError{Kind: KindUnknown, Operation: op, Message: "decode response", Cause: err}
	}
	if refused(env.Success) {
		return nil, envelopeFailure(op, KindUnknown, env.Message)
	}

	doc := data
	if present(env.Stats) {
		doc = env.Stats
	}
	stats := ProcessingStats{}
	if err := json.Unmarshal(doc, &stats); err != nil {
		return nil, &APIError{Kind: KindUnknown, Operation: op, Message: "decode stats", Cause: err}
	}
	return stats, nil
}

// ListTestCandidates returns webpages suitable for the provider
// comparison diagnostic.
func (c *Client) ListTestCandidates(ctx context.Context, limit int) ([]enricher.WebpageRecord, error) {
	const op = "listTestCandidates"
	if limit <= 0 {
		limit = 5
	}
	data, err := c.do(ctx, op, http.MethodPost, "webpages/list-test-candidates", map[string]int{"limit": limit})
	if err != nil {
		return nil, err
	}

	var env struct {
		Success  *bool                    `json:"success"`
		Message  string                   `json:"message"`
		Webpages []enricher.WebpageRecord `json:"webpages"`
		Data     []enricher.WebpageRecord `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &APIError{Kind: KindUnknown, Operation: op, Message: "decode response", Cause: err}
	}
	if refused(env.Success) {
		return nil, envelopeFailure(op, KindUnknown, env.Message)
	}
	if len(env.Webpages) > 0 {
		return env.Webpages, nil
	}
	return env.Data, nil
}

// do performs one backend call, retrying transient failures with
// exponential backoff. It returns the raw response body of the first
// successful attempt.
func (c *Client) do(ctx context.Context, operation, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &APIError{Kind: KindUnknown, Operation: operation, Message: "encode request body", Cause: err}
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialRetryInterval
	bo.MaxInterval = maxRetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)

	var out []byte
	attempt := 0
	call := func() error {
		attempt++
		data, err := c.roundTrip(ctx, operation, method, path, payload)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Retryable() {
				c.logger.Warn("backend call failed, retrying",
					zap.String("operation", operation),
					zap.Int("attempt", attempt),
					zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		out = data
		return nil
	}

	if err := backoff.Retry(call, policy); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return out, nil
}

// roundTrip executes a single HTTP attempt and classifies the result.
func (c *Client) roundTrip(ctx context.Context, operation, method, path string, payload []byte) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &APIError{Kind: KindUnknown, Operation: operation, Message: "build request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveBackendRequest(operation, 0)
		return nil, &APIError{Kind: KindTransient, Operation: operation, Message: "call backend", Cause: err}
	}
	defer resp.Body.Close()

	metrics.ObserveBackendRequest(operation, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindTransient, Operation: operation, StatusCode: resp.StatusCode, Message: "read response", Cause: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	msg := strings.TrimSpace(truncate(data, 200))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return nil, &APIError{
		Kind:       classifyStatus(resp.StatusCode),
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}

func classifyStatus(code int) ErrorKind {
	switch code {
	case http.StatusNotFound, http.StatusGone:
		return KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindTransient
	}
	if code >= 500 {
		return KindTransient
	}
	return KindUnknown
}

// checkWrite inspects a write response for an explicit refusal. Bodies
// without a success flag count as accepted.
func checkWrite(op string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var env struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return &APIError{Kind: KindUnknown, Operation: op, Message: "decode response", Cause: err}
	}
	if refused(env.Success) {
		return envelopeFailure(op, KindUnknown, env.Message)
	}
	return nil
}

func refused(success *bool) bool {
	return success != nil && !*success
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func envelopeFailure(op string, kind ErrorKind, message string) *APIError {
	if message == "" {
		message = "backend reported failure"
	}
	return &APIError{Kind: kind, Operation: op, Message: message}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
