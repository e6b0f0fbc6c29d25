package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nodeinsights/enrichment-worker/internal/progress"
)

// PrometheusSink exports live invocation progress via Prometheus. It owns all
// collectors for invocations started/completed/running and per-provider
// fetch counters derived from the event stream.
type PrometheusSink struct {
	invocationsStarted   prometheus.Counter
	invocationsCompleted *prometheus.CounterVec
	invocationsRunning   prometheus.Gauge
	invocationRuntime    *prometheus.HistogramVec

	providerFetches *prometheus.CounterVec
	extractedFields *prometheus.CounterVec

	tracker *invocationTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		invocationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrichment_invocations_started_total",
			Help: "Total invocations that have started.",
		}),
		invocationsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_invocations_completed_total",
			Help: "Total invocations completed partitioned by result.",
		}, []string{"result"}),
		invocationsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "enrichment_invocations_running",
			Help: "Current number of in-flight invocations.",
		}),
		invocationRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrichment_invocation_runtime_seconds",
			Help:    "Wall time per completed invocation.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90, 180},
		}, []string{"result"}),
		providerFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_provider_fetches_total",
			Help: "Provider fetch completions partitioned by provider and status class.",
		}, []string{"provider", "status_class"}),
		extractedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_extracted_fields_total",
			Help: "Populated fields extracted per provider.",
		}, []string{"provider"}),
		tracker: newInvocationTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.invocationsStarted,
		s.invocationsCompleted,
		s.invocationsRunning,
		s.invocationRuntime,
		s.providerFetches,
		s.extractedFields,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageInvocationStart, progress.StageInvocationDone, progress.StageInvocationError:
		s.handleLifecycleEvent(evt)
	case progress.StageProviderFetch:
		s.handleFetchEvent(evt)
	case progress.StageExtraction:
		s.handleExtractionEvent(evt)
	}
}

func (s *PrometheusSink) handleLifecycleEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageInvocationStart:
		s.invocationsStarted.Inc()
		if s.tracker.start(evt.InvocationID) {
			s.invocationsRunning.Inc()
		}
	case progress.StageInvocationDone:
		s.invocationsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageInvocationError:
		s.invocationsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
	if evt.Stage != progress.StageInvocationStart && s.tracker.complete(evt.InvocationID) {
		s.invocationsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.invocationRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	provider := evt.Provider
	if provider == "" {
		provider = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.providerFetches.WithLabelValues(provider, statusClass).Inc()
}

func (s *PrometheusSink) handleExtractionEvent(evt progress.Event) {
	provider := evt.Provider
	if provider == "" {
		provider = "unknown"
	}
	if evt.Fields > 0 {
		s.extractedFields.WithLabelValues(provider).Add(float64(evt.Fields))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type invocationTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newInvocationTracker() *invocationTracker {
	return &invocationTracker{running: make(map[[16]byte]struct{})}
}

func (t *invocationTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *invocationTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
