package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsRouteMetrics(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/invoke", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/invoke", "application/json", strings.NewReader(`{"webpageId":"wp-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "200")); val != 1 {
		t.Errorf("Expected POST 200 count to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "502")); val != 1 {
		t.Errorf("Expected GET 502 count to be 1, got %f", val)
	}
	if val := testutil.CollectAndCount(httpRequestDurationSeconds); val <= 0 {
		t.Errorf("Expected request durations to be observed, got %d", val)
	}
}

// Unmatched paths carry no chi route pattern; the middleware labels them
// "unknown" to keep series cardinality bounded.
func TestMiddlewareLabelsUnmatchedRoutes(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/known", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	seriesBefore := testutil.CollectAndCount(httpRequestDurationSeconds)

	resp, err := http.Get(srv.URL + "/does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unmatched path, got %d", resp.StatusCode)
	}
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404")); val != 1 {
		t.Errorf("Expected GET 404 count to be 1, got %f", val)
	}
	if after := testutil.CollectAndCount(httpRequestDurationSeconds); after != seriesBefore+1 {
		t.Errorf("Expected one new duration series for the unknown route, got %d -> %d", seriesBefore, after)
	}
}
