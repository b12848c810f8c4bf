package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rcourtman/coachkit/internal/access"
	"github.com/rcourtman/coachkit/internal/config"
	"github.com/rcourtman/coachkit/internal/logging"
	"github.com/rcourtman/coachkit/internal/metrics"
	"github.com/rcourtman/coachkit/internal/settings"
	"github.com/rcourtman/coachkit/internal/store"
	"github.com/rcourtman/coachkit/pkg/audit"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var dataDirFlag string

var rootCmd = &cobra.Command{
	Use:     "coachkit",
	Short:   "coachkit - entitlement engine for the coaching platform",
	Long:    `coachkit resolves which features a user may use, from which access source, and how alumni access winds down after a program ends.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (overrides "+config.EnvDataDir+")")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(previewLossCmd)
	rootCmd.AddCommand(alumniCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "coachkit %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Fprintf(out, "Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Fprintf(out, "Commit: %s\n", GitCommit)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration, applying --data-dir first so the .env
// file is read from the right place.
func loadConfig() (*config.Config, error) {
	if dataDirFlag != "" {
		if err := os.Setenv(config.EnvDataDir, dataDirFlag); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.Level(),
		Component: "coachkit",
	})
	return cfg, nil
}

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	store   *store.Store
	auditor *audit.SQLiteLogger
	metrics *metrics.Set
	service *access.Service
}

// openApp opens the store and builds the access service. withAudit
// also opens the persistent audit log.
func openApp(withAudit bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: st, metrics: metrics.NewSet()}
	opts := []access.Option{
		access.WithPriority(cfg.Priority),
		access.WithSettings(settings.NewLoader(st, cfg.SettingsTTL)),
		access.WithMetrics(a.metrics.Entitlements),
	}
	if withAudit {
		auditor, err := audit.NewSQLiteLogger(audit.SQLiteLoggerConfig{
			DataDir:       cfg.DataDir,
			RetentionDays: cfg.AuditRetentionDays,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to open audit database, falling back to console audit log")
		} else {
			a.auditor = auditor
			audit.SetLogger(auditor)
			opts = append(opts, access.WithAuditLogger(auditor))
		}
	}
	a.service = access.NewService(st, opts...)
	return a, nil
}

func (a *app) Close() {
	if a.auditor != nil {
		if err := a.auditor.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close audit database")
		}
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}
