package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	internalerrors "github.com/rcourtman/coachkit/internal/errors"
	"github.com/rcourtman/coachkit/pkg/audit"
	"github.com/rcourtman/coachkit/pkg/entitlements"
)

const maxBodyBytes = 64 << 10

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	status := http.StatusOK
	resp := map[string]string{"status": "ok", "version": r.version}
	if r.health != nil {
		if err := r.health(req.Context()); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
		}
	}
	writeJSON(w, status, resp)
}

type entitlementsResponse struct {
	UserID   string                    `json:"user_id"`
	Features []entitlements.FeatureKey `json:"features"`
}

func (r *Router) handleListEntitlements(w http.ResponseWriter, req *http.Request) {
	user := userID(req)
	features, err := r.service.ResolveAll(req.Context(), user)
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, entitlementsResponse{UserID: user, Features: features})
}

func (r *Router) handleResolve(w http.ResponseWriter, req *http.Request) {
	rec, err := r.service.Resolve(req.Context(), userID(req), entitlements.FeatureKey(req.PathValue("feature")))
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (r *Router) handleRecordUsage(w http.ResponseWriter, req *http.Request) {
	rec, err := r.service.RecordUsage(req.Context(), userID(req), entitlements.FeatureKey(req.PathValue("feature")))
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (r *Router) handlePreviewLoss(w http.ResponseWriter, req *http.Request) {
	source, err := entitlements.ParseAccessSource(req.URL.Query().Get("source"))
	if err != nil {
		writeError(w, req, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err))
		return
	}
	preview, err := r.service.PreviewLoss(req.Context(), userID(req), source)
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (r *Router) handleGate(w http.ResponseWriter, req *http.Request) {
	d, err := r.service.Gate(req.Context(), userID(req), entitlements.FeatureKey(req.PathValue("feature")))
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (r *Router) handleGateCapability(w http.ResponseWriter, req *http.Request) {
	d, err := r.service.GateCapability(req.Context(), userID(req), entitlements.CapabilityTag(req.PathValue("tag")))
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (r *Router) handleMaxTier(w http.ResponseWriter, req *http.Request) {
	isMax, err := r.service.IsMaxPlan(req.Context(), userID(req))
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_max_tier": isMax})
}

func (r *Router) handleAlumniAccess(w http.ResponseWriter, req *http.Request) {
	status, err := r.service.AlumniAccess(req.Context(), userID(req), req.PathValue("id"))
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (r *Router) handleDeadline(w http.ResponseWriter, req *http.Request) {
	warning, err := r.service.DeadlineWarning(req.Context(), userID(req), req.PathValue("id"))
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, warning)
}

func (r *Router) handleWritable(w http.ResponseWriter, req *http.Request) {
	if err := r.service.RequireWritable(req.Context(), userID(req), req.PathValue("id")); err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"writable": true})
}

type grantRequest struct {
	UserID    string     `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (r *Router) handleGrantAddOn(w http.ResponseWriter, req *http.Request) {
	var body grantRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, req, err)
		return
	}
	grant, err := r.service.GrantAddOn(req.Context(), userID(req), body.UserID, req.PathValue("id"), body.ExpiresAt)
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (r *Router) handleRevokeAddOn(w http.ResponseWriter, req *http.Request) {
	removed, err := r.service.RevokeAddOn(req.Context(), userID(req), req.URL.Query().Get("user_id"), req.PathValue("id"))
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (r *Router) handleGetSettings(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.service.Settings(req.Context()))
}

type gracePeriodRequest struct {
	Days *int `json:"days"`
}

func (r *Router) handleSetGracePeriod(w http.ResponseWriter, req *http.Request) {
	var body gracePeriodRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, req, err)
		return
	}
	if body.Days == nil {
		writeError(w, req, fmt.Errorf("days is required: %w", internalerrors.ErrInvalidInput))
		return
	}
	if err := r.service.SetGracePeriodDays(req.Context(), userID(req), *body.Days); err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, r.service.Settings(req.Context()))
}

// handleListAudit handles GET /api/audit
func (r *Router) handleListAudit(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	filter := audit.QueryFilter{
		Action:     query.Get("action"),
		EntityType: query.Get("entity_type"),
		EntityID:   query.Get("entity_id"),
		ActorID:    query.Get("actor_id"),
		Limit:      100,
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if startStr := query.Get("start_time"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			filter.StartTime = &t
		}
	}
	if endStr := query.Get("end_time"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			filter.EndTime = &t
		}
	}

	events, err := r.service.AuditEvents(req.Context(), userID(req), filter)
	if err != nil {
		writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "total": len(events)})
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", internalerrors.ErrInvalidInput)
	}
	return nil
}
