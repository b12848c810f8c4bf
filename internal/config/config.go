// Package config loads runtime configuration from the environment and an
// optional .env file in the data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/rcourtman/coachkit/pkg/entitlements"
)

// Environment variables read by Load.
const (
	EnvDataDir            = "COACHKIT_DATA_DIR"
	EnvListenAddr         = "COACHKIT_LISTEN_ADDR"
	EnvMetricsAddr        = "COACHKIT_METRICS_ADDR"
	EnvLogLevel           = "COACHKIT_LOG_LEVEL"
	EnvLogFormat          = "COACHKIT_LOG_FORMAT"
	EnvSourcePriority     = "COACHKIT_SOURCE_PRIORITY"
	EnvSettingsTTL        = "COACHKIT_SETTINGS_TTL"
	EnvAuditRetentionDays = "COACHKIT_AUDIT_RETENTION_DAYS"
)

// Defaults applied before environment overrides.
const (
	DefaultDataDir            = "./data"
	DefaultListenAddr         = ":8080"
	DefaultMetricsAddr        = ":9091"
	DefaultSettingsTTL        = 5 * time.Minute
	DefaultAuditRetentionDays = 365
)

// Mu guards the fields the watcher can change at runtime (LogLevel and
// SourcePriority).
var Mu sync.RWMutex

// Config holds runtime configuration.
type Config struct {
	DataDir            string
	ListenAddr         string
	MetricsAddr        string // empty disables the metrics listener
	LogLevel           string
	LogFormat          string
	SourcePriority     entitlements.Priority
	SettingsTTL        time.Duration
	AuditRetentionDays int
}

// EnvPath returns the path of the .env file in the data directory.
func (c *Config) EnvPath() string {
	return filepath.Join(c.DataDir, ".env")
}

// Priority returns a copy of the current source priority.
func (c *Config) Priority() entitlements.Priority {
	Mu.RLock()
	defer Mu.RUnlock()
	return c.SourcePriority.Clone()
}

// Level returns the current log level.
func (c *Config) Level() string {
	Mu.RLock()
	defer Mu.RUnlock()
	return c.LogLevel
}

// Load reads configuration. Values already in the environment win over the
// .env file in the data directory.
func Load() (*Config, error) {
	dataDir := DefaultDataDir
	if dir := strings.TrimSpace(os.Getenv(EnvDataDir)); dir != "" {
		dataDir = dir
	}

	envFile := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		} else {
			log.Info().Str("file", envFile).Msg("Loaded .env file")
		}
	}

	cfg := &Config{
		DataDir:            dataDir,
		ListenAddr:         DefaultListenAddr,
		MetricsAddr:        DefaultMetricsAddr,
		LogLevel:           "info",
		LogFormat:          "auto",
		SourcePriority:     entitlements.DefaultPriority.Clone(),
		SettingsTTL:        DefaultSettingsTTL,
		AuditRetentionDays: DefaultAuditRetentionDays,
	}

	if addr, ok := os.LookupEnv(EnvListenAddr); ok && strings.TrimSpace(addr) != "" {
		cfg.ListenAddr = strings.TrimSpace(addr)
	}
	if addr, ok := os.LookupEnv(EnvMetricsAddr); ok {
		cfg.MetricsAddr = strings.TrimSpace(addr)
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.LogLevel = level
	}
	if format := strings.TrimSpace(os.Getenv(EnvLogFormat)); format != "" {
		cfg.LogFormat = format
	}
	if raw := strings.TrimSpace(os.Getenv(EnvSourcePriority)); raw != "" {
		p, err := entitlements.ParsePriority(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvSourcePriority, err)
		}
		cfg.SourcePriority = p
	}
	if raw := strings.TrimSpace(os.Getenv(EnvSettingsTTL)); raw != "" {
		ttl, err := parseTTL(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvSettingsTTL, err)
		}
		cfg.SettingsTTL = ttl
	}
	if raw := strings.TrimSpace(os.Getenv(EnvAuditRetentionDays)); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid integer %q", EnvAuditRetentionDays, raw)
		}
		cfg.AuditRetentionDays = days
	}

	return cfg, nil
}

// parseTTL accepts a Go duration ("90s", "5m") or plain seconds. Negative
// values are allowed and mean "defaults only".
func parseTTL(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}
