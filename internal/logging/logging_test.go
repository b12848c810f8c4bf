package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func restoreLogging(t *testing.T) {
	t.Helper()
	mu.RLock()
	prevLogger, prevWriter := baseLogger, baseWriter
	mu.RUnlock()
	prevLevel := zerolog.GlobalLevel()
	prevTerminal := isTerminalFn

	t.Cleanup(func() {
		mu.Lock()
		baseLogger, baseWriter = prevLogger, prevWriter
		mu.Unlock()
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
		isTerminalFn = prevTerminal
	})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var event map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &event); err != nil {
		t.Fatalf("log line %q is not JSON: %v", buf.String(), err)
	}
	return event
}

func TestInitSelectsWriter(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		terminal bool
		console  bool
	}{
		{name: "json", format: "json", terminal: true},
		{name: "console", format: "console", console: true},
		{name: "auto on terminal", format: "auto", terminal: true, console: true},
		{name: "auto on pipe", format: "", terminal: false},
		{name: "unknown falls back to json", format: "xml", terminal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreLogging(t)
			isTerminalFn = func(int) bool { return tt.terminal }

			Init(Config{Format: tt.format, Level: "info"})

			_, isConsole := baseWriter.(zerolog.ConsoleWriter)
			require.Equal(t, tt.console, isConsole)
			if !tt.console {
				require.Equal(t, os.Stderr, baseWriter)
			}
		})
	}
}

func TestInitAddsComponentAndLevel(t *testing.T) {
	restoreLogging(t)
	isTerminalFn = func(int) bool { return false }

	logger := Init(Config{Format: "json", Level: "warn", Component: " coachkit "})
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	var buf bytes.Buffer
	out := logger.Output(&buf)
	out.Warn().Msg("started")
	event := decodeLine(t, &buf)
	require.Equal(t, "coachkit", event["component"])
	require.Equal(t, "started", event["message"])
}

func TestSetLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: "WARNING", want: zerolog.WarnLevel},
		{in: " error ", want: zerolog.ErrorLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			restoreLogging(t)
			if got := SetLevel(tt.in); got != tt.want {
				t.Fatalf("SetLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
			require.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestWithRequestID(t *testing.T) {
	ctx, id := WithRequestID(context.Background(), "  req-7 ")
	require.Equal(t, "req-7", id)
	require.Equal(t, "req-7", GetRequestID(ctx))

	ctx, id = WithRequestID(context.Background(), "")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, id, GetRequestID(ctx))

	require.Empty(t, GetRequestID(context.Background()))
}

func TestFromContextAnnotatesRequestID(t *testing.T) {
	restoreLogging(t)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf).With().Str("method", "GET").Logger())
	ctx, _ = WithRequestID(ctx, "req-9")

	logger := FromContext(ctx)
	logger.Error().Msg("lookup failed")

	event := decodeLine(t, &buf)
	require.Equal(t, "req-9", event["request_id"])
	require.Equal(t, "GET", event["method"])
	require.Equal(t, "error", event["level"])
}

func TestFromContextFallsBackToBaseLogger(t *testing.T) {
	restoreLogging(t)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	mu.Lock()
	baseLogger = zerolog.New(&buf)
	mu.Unlock()

	logger := FromContext(context.Background())
	logger.Info().Msg("no request")

	event := decodeLine(t, &buf)
	require.NotContains(t, event, "request_id")
	require.Equal(t, "no request", event["message"])
}
