// Package ratelimit implements token bucket pacing for outbound provider
// calls, keyed by target host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
	"github.com/nodeinsights/enrichment-worker/internal/metrics"
)

// Limiter manages per-host rate limits. Both providers share one Limiter
// so batch comparisons cannot exceed an API plan's request rate no matter
// how many workers run.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// Config holds limiter settings. An RPS at or below zero disables pacing.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// Wait blocks until the host of rawURL has a token available, respecting
// the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveThrottleDelay(host, delay)
	}
	return nil
}

// Provider decorates an enricher.FetchProvider with per-host pacing.
type Provider struct {
	next    enricher.FetchProvider
	limiter *Limiter
}

// WrapProvider returns next paced by l. A nil limiter returns next
// unchanged.
func WrapProvider(next enricher.FetchProvider, l *Limiter) enricher.FetchProvider {
	if l == nil {
		return next
	}
	return &Provider{next: next, limiter: l}
}

// Name reports the wrapped provider's name.
func (p *Provider) Name() string {
	return p.next.Name()
}

// Fetch waits for a token for the URL's host, then delegates.
func (p *Provider) Fetch(ctx context.Context, profileURL string) (enricher.Content, error) {
	if err := p.limiter.Wait(ctx, profileURL); err != nil {
		return enricher.Content{}, err
	}
	return p.next.Fetch(ctx, profileURL)
}
