// Package api serves the JSON surface the coaching SPA uses to ask access
// questions.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rcourtman/coachkit/internal/access"
	"github.com/rcourtman/coachkit/internal/metrics"
)

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

// Router handles HTTP routing
type Router struct {
	mux     *http.ServeMux
	service *access.Service
	health  HealthFunc
	version string
}

// NewRouter creates the API handler. A nil m uses the process-wide HTTP
// metrics.
func NewRouter(service *access.Service, health HealthFunc, version string, m *metrics.HTTPMetrics) http.Handler {
	r := &Router{
		mux:     http.NewServeMux(),
		service: service,
		health:  health,
		version: version,
	}
	r.setupRoutes()
	if m == nil {
		m = metrics.HTTP()
	}
	return ErrorHandler(r, m)
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("GET /api/health", r.handleHealth)

	r.mux.HandleFunc("GET /api/entitlements", r.handleListEntitlements)
	r.mux.HandleFunc("GET /api/entitlements/preview-loss", r.handlePreviewLoss)
	r.mux.HandleFunc("GET /api/entitlements/{feature}", r.handleResolve)
	r.mux.HandleFunc("POST /api/entitlements/{feature}/usage", r.handleRecordUsage)

	r.mux.HandleFunc("GET /api/gate/{feature}", r.handleGate)
	r.mux.HandleFunc("GET /api/gate/capability/{tag}", r.handleGateCapability)
	r.mux.HandleFunc("GET /api/plans/max-tier", r.handleMaxTier)

	r.mux.HandleFunc("GET /api/programs/{id}/alumni-access", r.handleAlumniAccess)
	r.mux.HandleFunc("GET /api/programs/{id}/deadline", r.handleDeadline)
	r.mux.HandleFunc("GET /api/programs/{id}/writable", r.handleWritable)

	r.mux.HandleFunc("POST /api/addons/{id}/grant", r.handleGrantAddOn)
	r.mux.HandleFunc("DELETE /api/addons/{id}/grant", r.handleRevokeAddOn)

	r.mux.HandleFunc("GET /api/settings", r.handleGetSettings)
	r.mux.HandleFunc("PUT /api/settings/alumni-grace-period", r.handleSetGracePeriod)

	r.mux.HandleFunc("GET /api/audit", r.handleListAudit)
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasPrefix(req.URL.Path, "/api/") {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
	}
	r.mux.ServeHTTP(w, req)
}

// userID returns the caller identity set by the upstream auth layer.
func userID(req *http.Request) string {
	return strings.TrimSpace(req.Header.Get(UserHeader))
}
