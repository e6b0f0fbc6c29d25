package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	enrichmentInvocationsTotal = nil
	providerRequestsTotal = nil
	providerFetchDurationSeconds = nil
	httpRequestsTotal = nil
	httpRequestDurationSeconds = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if enrichmentInvocationsTotal == nil || providerRequestsTotal == nil ||
		providerFetchDurationSeconds == nil || httpRequestsTotal == nil ||
		httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	// A simple check to see if a metric can be used.
	enrichmentInvocationsTotal.WithLabelValues("succeeded").Inc()
	if val := testutil.ToFloat64(enrichmentInvocationsTotal); val != 1 {
		t.Errorf("Expected enrichmentInvocationsTotal to be 1, got %f", val)
	}
}

func TestObserveProviderFetch(t *testing.T) {
	Init()

	ObserveProviderFetch("primary", "success", 250*time.Millisecond)
	ObserveProviderFetch("fallback", "failure", time.Second)

	if val := testutil.ToFloat64(providerRequestsTotal.WithLabelValues("primary", "success")); val != 1 {
		t.Errorf("Expected primary success count to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(providerRequestsTotal.WithLabelValues("fallback", "failure")); val != 1 {
		t.Errorf("Expected fallback failure count to be 1, got %f", val)
	}
	if val := testutil.CollectAndCount(providerFetchDurationSeconds); val != 2 {
		t.Errorf("Expected 2 provider duration series, got %d", val)
	}
}

func TestObserveExtraction(t *testing.T) {
	Init()

	ObserveExtraction("primary", 7, "full")
	ObserveExtraction("fallback", 3, "partial")

	if val := testutil.ToFloat64(extractionQualityTotal.WithLabelValues("full")); val != 1 {
		t.Errorf("Expected full quality count to be 1, got %f", val)
	}
	if val := testutil.CollectAndCount(fieldsExtracted); val != 2 {
		t.Errorf("Expected 2 fields series, got %d", val)
	}
}

func TestAddNodesUpdated(t *testing.T) {
	Init()

	before := testutil.ToFloat64(nodesUpdatedTotal)
	AddNodesUpdated(3)
	AddNodesUpdated(0)
	AddNodesUpdated(-1)

	if val := testutil.ToFloat64(nodesUpdatedTotal); val != before+3 {
		t.Errorf("Expected nodesUpdatedTotal to grow by 3, got %f", val-before)
	}
}
