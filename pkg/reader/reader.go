// Package reader implements the primary fetch provider. It retrieves the
// rendered HTML of a company page through a reader-style proxy API that
// takes the target URL as its path.
package reader

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

// Config controls the reader client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements enricher.FetchProvider against the reader API.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Client. Revisits are allowed because reprocess triggers fetch
// the same profile URL again within one process lifetime.
func New(cfg Config) *Client {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Client{cfg: cfg, baseCollector: c}
}

// Name identifies this provider's position in the fallback sequence.
func (c *Client) Name() string {
	return string(enricher.ProviderPrimary)
}

// Fetch retrieves the page HTML for profileURL through the reader endpoint.
// Failures come back as *enricher.ProviderError; a 404 or 410 from the
// reader marks the failure non-retryable.
func (c *Client) Fetch(ctx context.Context, profileURL string) (enricher.Content, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := c.buildCollector(&body, &status, &fetchErr)
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + profileURL

	if err := c.runCollector(ctx, collector, endpoint, &fetchErr); err != nil {
		return enricher.Content{}, c.classify(status, err)
	}
	return enricher.Content{Kind: enricher.ContentHTML, Data: body}, nil
}

func (c *Client) buildCollector(body *[]byte, status *int, fetchErr *error) *colly.Collector {
	collector := c.baseCollector.Clone()
	timeout := c.cfg.Timeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	c.configureCollectorHooks(collector, body, status, fetchErr)
	return collector
}

func (c *Client) configureCollectorHooks(hooks collectorHooks, body *[]byte, status *int, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Authorization", "Bearer "+c.cfg.APIKey)
		r.Headers.Set("Accept", "text/html")
		r.Headers.Set("X-Return-Format", "html")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*status = r.StatusCode
		}
		*fetchErr = err
	})
}

func (c *Client) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("reader fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("reader visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("reader response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (c *Client) classify(status int, err error) *enricher.ProviderError {
	return &enricher.ProviderError{
		Provider:   c.Name(),
		Reason:     err.Error(),
		StatusCode: status,
		Retryable:  status != http.StatusNotFound && status != http.StatusGone,
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
