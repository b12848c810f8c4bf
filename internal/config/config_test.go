package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcourtman/coachkit/pkg/entitlements"
)

var allEnv = []string{
	EnvDataDir, EnvListenAddr, EnvMetricsAddr, EnvLogLevel, EnvLogFormat,
	EnvSourcePriority, EnvSettingsTTL, EnvAuditRetentionDays,
}

// clearEnv unsets every config variable for the duration of the test,
// including any that a loaded .env file sets later.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	require.Equal(t, DefaultMetricsAddr, cfg.MetricsAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "auto", cfg.LogFormat)
	require.Equal(t, entitlements.DefaultPriority, cfg.SourcePriority)
	require.Equal(t, DefaultSettingsTTL, cfg.SettingsTTL)
	require.Equal(t, DefaultAuditRetentionDays, cfg.AuditRetentionDays)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvListenAddr, "127.0.0.1:9000")
	t.Setenv(EnvMetricsAddr, "")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvSourcePriority, "add_on, track")
	t.Setenv(EnvSettingsTTL, "90")
	t.Setenv(EnvAuditRetentionDays, "-1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	require.Empty(t, cfg.MetricsAddr, "explicit empty metrics addr disables the listener")
	require.Equal(t, "debug", cfg.Level())
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "add_on,track,subscription,program_plan,org_sponsored", cfg.Priority().String())
	require.Equal(t, 90*time.Second, cfg.SettingsTTL)
	require.Equal(t, -1, cfg.AuditRetentionDays)
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	t.Setenv(EnvLogLevel, "warn")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"COACHKIT_LOG_LEVEL=debug\nCOACHKIT_SETTINGS_TTL=2m\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, 2*time.Minute, cfg.SettingsTTL)
	require.Equal(t, filepath.Join(dir, ".env"), cfg.EnvPath())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown source", key: EnvSourcePriority, val: "subscription,coupon"},
		{name: "duplicate source", key: EnvSourcePriority, val: "track,track"},
		{name: "bad ttl", key: EnvSettingsTTL, val: "soon"},
		{name: "bad retention", key: EnvAuditRetentionDays, val: "forever"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvDataDir, t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: "0", want: 0},
		{in: "-1", want: -time.Second},
		{in: "30s", want: 30 * time.Second},
		{in: "1h", want: time.Hour},
	}
	for _, tt := range tests {
		got, err := parseTTL(tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, tt.in)
	}
}
