// Package api hosts the HTTP server, middleware, and REST handlers for the
// enrichment worker. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /invoke for enrichment invocations (the serverless entry point).
//   - GET /stats for backend processing counters.
package api
