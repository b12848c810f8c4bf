package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	internalerrors "github.com/rcourtman/coachkit/internal/errors"
	"github.com/rcourtman/coachkit/internal/logging"
	"github.com/rcourtman/coachkit/internal/metrics"
)

// UserHeader carries the authenticated user ID set by the upstream auth
// layer.
const UserHeader = "X-User-ID"

// APIError represents a structured API error response
type APIError struct {
	ErrorMessage string `json:"error"`
	Code         string `json:"code,omitempty"`
	StatusCode   int    `json:"status_code"`
	Timestamp    int64  `json:"timestamp"`
	RequestID    string `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.ErrorMessage
}

// ErrorHandler assigns request IDs, recovers panics, and records request
// metrics.
func ErrorHandler(next http.Handler, m *metrics.HTTPMetrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		incomingID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		ctx, requestID := logging.WithRequestID(r.Context(), incomingID)
		ctx = logging.WithLogger(ctx, log.Logger.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger())
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		rw.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		defer func() {
			m.RecordRequest(r.Method, r.Pattern, rw.statusCode, time.Since(start))
		}()

		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Str("request_id", requestID).
					Bytes("stack", debug.Stack()).
					Msg("Panic recovered in API handler")

				writeErrorResponse(rw, requestID, http.StatusInternalServerError, "internal_error",
					"An unexpected error occurred")
			}
		}()

		next.ServeHTTP(rw, r)

		if rw.statusCode >= 400 {
			log.Warn().
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Int("status", rw.statusCode).
				Str("request_id", requestID).
				Msg("Request failed")
		}
	})
}

// writeErrorResponse writes a consistent error response
func writeErrorResponse(w http.ResponseWriter, requestID string, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := APIError{
		ErrorMessage: message,
		Code:         code,
		StatusCode:   statusCode,
		Timestamp:    time.Now().Unix(),
		RequestID:    requestID,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// writeError maps a service error to a status code. Caller errors are
// described to the client; anything else is logged and replaced with a
// generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logging.GetRequestID(r.Context())
	status, code, message := classifyError(err)
	if status >= 500 {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Int("status", status).Msg(message)
	}
	writeErrorResponse(w, requestID, status, code, message)
}

func classifyError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, internalerrors.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "Authentication required"
	case errors.Is(err, internalerrors.ErrReadOnly):
		return http.StatusForbidden, "read_only", "Your access to this program is read-only"
	case errors.Is(err, internalerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden", "You do not have access to this resource"
	case errors.Is(err, internalerrors.ErrUsageLimit):
		return http.StatusTooManyRequests, "usage_limit_reached", "Usage limit reached for this period"
	case errors.Is(err, internalerrors.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, internalerrors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, internalerrors.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable", "A backing service is temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "An unexpected error occurred"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// responseWriter wraps http.ResponseWriter to capture status codes
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.ResponseWriter.WriteHeader(code)
		rw.written = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
