// Package search implements the fallback fetch provider. It queries a
// company-search API keyed by the LinkedIn username derived from the
// profile URL and unwraps the JSON envelope the API returns.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

// Config controls the search client.
type Config struct {
	APIKey  string
	APIHost string
	APIURL  string
	Timeout time.Duration
}

// Client implements enricher.FetchProvider against the search API.
type Client struct {
	cfg    Config
	client *http.Client
}

// New builds a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies this provider's position in the fallback sequence.
func (c *Client) Name() string {
	return string(enricher.ProviderFallback)
}

// envelope wraps every search API response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Fetch looks up the company behind profileURL and returns the raw company
// object from the response envelope. Failures come back as
// *enricher.ProviderError.
func (c *Client) Fetch(ctx context.Context, profileURL string) (enricher.Content, error) {
	username, err := enricher.CompanyUsername(profileURL)
	if err != nil {
		return enricher.Content{}, &enricher.ProviderError{
			Provider:  c.Name(),
			Reason:    err.Error(),
			Retryable: false,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL, nil)
	if err != nil {
		return enricher.Content{}, &enricher.ProviderError{
			Provider:  c.Name(),
			Reason:    fmt.Sprintf("build request: %v", err),
			Retryable: false,
		}
	}
	req.Header.Set("x-rapidapi-key", c.cfg.APIKey)
	req.Header.Set("x-rapidapi-host", c.cfg.APIHost)
	q := req.URL.Query()
	q.Set("username", username)
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return enricher.Content{}, &enricher.ProviderError{
			Provider:  c.Name(),
			Reason:    fmt.Sprintf("call search api: %v", err),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return enricher.Content{}, &enricher.ProviderError{
			Provider:   c.Name(),
			Reason:     fmt.Sprintf("read response: %v", err),
			StatusCode: resp.StatusCode,
			Retryable:  true,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return enricher.Content{}, &enricher.ProviderError{
			Provider:   c.Name(),
			Reason:     fmt.Sprintf("search api status %d: %s", resp.StatusCode, truncate(body, 200)),
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusGone,
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return enricher.Content{}, &enricher.ProviderError{
			Provider:   c.Name(),
			Reason:     fmt.Sprintf("decode response: %v", err),
			StatusCode: resp.StatusCode,
			Retryable:  true,
		}
	}
	if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		message := env.Message
		if message == "" {
			message = "no data returned"
		}
		return enricher.Content{}, &enricher.ProviderError{
			Provider:   c.Name(),
			Reason:     "unsuccessful response: " + message,
			StatusCode: resp.StatusCode,
			Retryable:  true,
		}
	}

	return enricher.Content{Kind: enricher.ContentJSON, Data: env.Data}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
