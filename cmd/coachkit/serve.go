package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rcourtman/coachkit/internal/api"
	"github.com/rcourtman/coachkit/internal/config"
	"github.com/rcourtman/coachkit/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the entitlement API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

const (
	serverReadHeaderTimeout = 15 * time.Second
	serverWriteTimeout      = 30 * time.Second
	serverIdleTimeout       = 120 * time.Second
)

var serverShutdownTimeout = 30 * time.Second

func runServer(ctx context.Context) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().
		Str("version", Version).
		Str("data_dir", a.cfg.DataDir).
		Str("priority", a.cfg.Priority().String()).
		Msg("Starting coachkit entitlement server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.MetricsAddr != "" {
		startMetricsServer(ctx, a.cfg.MetricsAddr, newMetricsHandler(a.metrics, a.store.Ping))
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           api.NewRouter(a.service, a.store.Ping, Version, a.metrics.HTTP),
		ReadHeaderTimeout: serverReadHeaderTimeout,
		WriteTimeout:      serverWriteTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	configWatcher, err := config.NewConfigWatcher(a.cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher, .env changes will require restart")
	} else {
		configWatcher.SetReloadCallback(applyConfigChanges)
		if err := configWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start config watcher")
		}
		defer configWatcher.Stop()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.cfg.ListenAddr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	signal.Notify(reloadChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	defer signal.Stop(reloadChan)

	for {
		select {
		case <-reloadChan:
			log.Info().Msg("Received SIGHUP, reloading configuration")
			if configWatcher != nil {
				configWatcher.ReloadConfig()
			}
		case err := <-serveErr:
			return err
		case <-sigChan:
			log.Info().Msg("Shutting down server")
			return shutdown(srv)
		case <-ctx.Done():
			return shutdown(srv)
		}
	}
}

func shutdown(srv *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

// applyConfigChanges applies runtime changes from the .env watcher. The
// source priority needs no action here: the service reads it per request.
func applyConfigChanges(changes []config.Change) {
	for _, c := range changes {
		switch c.Key {
		case config.EnvLogLevel:
			level := logging.SetLevel(c.New)
			log.Info().Str("level", level.String()).Msg("Log level changed")
		case config.EnvSourcePriority:
			log.Info().Str("old", c.Old).Str("new", c.New).Msg("Access source priority changed")
		}
	}
}
