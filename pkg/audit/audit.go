// Package audit records who changed what for access-affecting mutations.
//
// Audit sinks are best-effort: Record never returns an error and never
// panics, so a broken sink cannot fail the mutation being audited.
package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event represents a single audit log entry.
type Event struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Action     string          `json:"action"`      // "add_on.grant", "settings.update", etc.
	EntityType string          `json:"entity_type"` // "user_add_on", "system_setting", ...
	EntityID   string          `json:"entity_id"`
	ActorID    string          `json:"actor_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorID    string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
}

// Logger defines the interface for audit logging backends.
type Logger interface {
	Log(event Event) error
	Query(filter QueryFilter) ([]Event, error)
	Close() error
}

var (
	globalLogger Logger
	loggerMu     sync.RWMutex
)

// SetLogger sets the global audit logger.
func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	globalLogger = l
}

// GetLogger returns the current global audit logger, defaulting to the
// console logger.
func GetLogger() Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if globalLogger == nil {
		return consoleLogger
	}
	return globalLogger
}

var consoleLogger = NewConsoleLogger()

// NewEvent builds an event, encoding before/after snapshots as JSON.
// Values that cannot be encoded are dropped.
func NewEvent(action, entityType, entityID, actorID string, before, after any) Event {
	return Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Before:     encodeSnapshot(before),
		After:      encodeSnapshot(after),
	}
}

func encodeSnapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Debug().Err(err).Msg("Dropping unencodable audit snapshot")
		return nil
	}
	return data
}

// Record logs event to l, swallowing any error or panic. A nil logger uses
// the global logger.
func Record(l Logger, event Event) {
	if l == nil {
		l = GetLogger()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("action", event.Action).Msg("Audit sink panicked")
		}
	}()
	if err := l.Log(event); err != nil {
		log.Warn().Err(err).Str("action", event.Action).Str("entity_id", event.EntityID).Msg("Failed to record audit event")
	}
}

// ConsoleLogger implements Logger by writing to zerolog.
type ConsoleLogger struct{}

// NewConsoleLogger creates a new console-based audit logger.
func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{}
}

// Log writes an audit event to zerolog.
func (c *ConsoleLogger) Log(event Event) error {
	log.Info().
		Str("audit_id", event.ID).
		Str("action", event.Action).
		Str("entity_type", event.EntityType).
		Str("entity_id", event.EntityID).
		Str("actor_id", event.ActorID).
		RawJSON("before", orNull(event.Before)).
		RawJSON("after", orNull(event.After)).
		Time("timestamp", event.Timestamp).
		Msg("Audit event")
	return nil
}

func orNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

// Query returns an empty slice; console logs are not queryable.
func (c *ConsoleLogger) Query(QueryFilter) ([]Event, error) {
	return []Event{}, nil
}

// Close is a no-op for the console logger.
func (c *ConsoleLogger) Close() error {
	return nil
}
