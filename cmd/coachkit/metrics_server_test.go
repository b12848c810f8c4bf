package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcourtman/coachkit/internal/metrics"
)

func TestMetricsHandlerServesProcessRegistry(t *testing.T) {
	set := metrics.NewSet()
	set.Entitlements.RecordResolution("track")
	set.HTTP.RecordRequest(http.MethodGet, "GET /api/entitlements", http.StatusOK, 0)

	h := newMetricsHandler(set, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `coachkit_entitlements_resolutions_total{source="track"} 1`)
	require.Contains(t, body, "coachkit_http_requests_total")
	require.Contains(t, body, "go_goroutines")
}

func TestMetricsHandlerHealth(t *testing.T) {
	tests := []struct {
		name   string
		health func(context.Context) error
		want   int
	}{
		{name: "no check", health: nil, want: http.StatusOK},
		{name: "store up", health: func(context.Context) error { return nil }, want: http.StatusOK},
		{name: "store down", health: func(context.Context) error { return errors.New("database is locked") }, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newMetricsHandler(metrics.NewSet(), tt.health)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tt.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	newMetricsHandler(metrics.NewSet(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
