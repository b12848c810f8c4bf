package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/rcourtman/coachkit/internal/api"
	"github.com/rcourtman/coachkit/internal/metrics"
)

const (
	metricsReadTimeout     = 5 * time.Second
	metricsWriteTimeout    = 10 * time.Second
	metricsShutdownTimeout = 5 * time.Second
)

// newMetricsHandler serves the process's own registry on /metrics and a
// store liveness check on /healthz for the scraper's target probe.
func newMetricsHandler(set *metrics.Set, health api.HealthFunc) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(set.Registry, promhttp.HandlerOpts{
		Registry:          set.Registry,
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				log.Warn().Err(err).Msg("Metrics listener health check failed")
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// startMetricsServer runs the metrics listener until ctx is cancelled. A
// listener failure is logged and leaves the API server running.
func startMetricsServer(ctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: metricsReadTimeout,
		ReadTimeout:       metricsReadTimeout,
		WriteTimeout:      metricsWriteTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics listener did not stop cleanly")
		}
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("Serving coachkit metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics listener failed")
		}
	}()
}
