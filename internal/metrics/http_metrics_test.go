package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsRecordRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewHTTP(registry)

	m.RecordRequest("GET", "GET /api/entitlements", 200, 10*time.Millisecond)
	m.RecordRequest("GET", "GET /api/entitlements", 200, 20*time.Millisecond)
	m.RecordRequest("POST", "", 404, time.Millisecond)
	m.RecordRequest("GET", "GET /api/health", 503, time.Millisecond)

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "GET /api/entitlements", "200")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestErrors.WithLabelValues("POST", "unmatched", "client_error")); got != 1 {
		t.Fatalf("expected 1 client error for unmatched route, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestErrors.WithLabelValues("GET", "GET /api/health", "server_error")); got != 1 {
		t.Fatalf("expected 1 server error, got %v", got)
	}

	// A second registration reuses the existing collectors.
	again := NewHTTP(registry)
	if again.requestTotal != m.requestTotal {
		t.Fatal("expected collectors to be reused on re-registration")
	}

	var nilMetrics *HTTPMetrics
	nilMetrics.RecordRequest("GET", "/", 200, 0)
}

func TestClassifyStatus(t *testing.T) {
	tests := map[int]string{200: "none", 302: "none", 400: "client_error", 429: "client_error", 500: "server_error"}
	for status, want := range tests {
		if got := classifyStatus(status); got != want {
			t.Fatalf("classifyStatus(%d) = %q, want %q", status, got, want)
		}
	}
}
