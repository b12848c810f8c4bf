package audit

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteLoggerConfig configures the SQLite audit logger.
type SQLiteLoggerConfig struct {
	DataDir       string // Directory for audit.db
	RetentionDays int    // Days to keep events (default: 365, <0 = forever)
}

// SQLiteLogger implements Logger with persistent SQLite storage.
type SQLiteLogger struct {
	mu            sync.RWMutex
	db            *sql.DB
	dbPath        string
	retentionDays int
	stopChan      chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup
}

// NewSQLiteLogger creates a new SQLite-backed audit logger.
func NewSQLiteLogger(cfg SQLiteLoggerConfig) (*SQLiteLogger, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	auditDir := filepath.Join(cfg.DataDir, "audit")
	if err := os.MkdirAll(auditDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	dbPath := filepath.Join(auditDir, "audit.db")

	// Pragmas in the DSN so every pool connection is configured
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	retentionDays := cfg.RetentionDays
	if retentionDays == 0 {
		retentionDays = 365
	}

	l := &SQLiteLogger{
		db:            db,
		dbPath:        dbPath,
		retentionDays: retentionDays,
		stopChan:      make(chan struct{}),
	}

	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if retentionDays > 0 {
		l.wg.Add(1)
		go l.retentionWorker()
	}

	log.Info().
		Str("dbPath", dbPath).
		Int("retentionDays", retentionDays).
		Msg("SQLite audit logger initialized")

	return l, nil
}

func (l *SQLiteLogger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		before_value TEXT,
		after_value TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_events(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_events(actor_id);
	`

	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Log records an audit event.
func (l *SQLiteLogger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`
		INSERT INTO audit_events (id, timestamp, action, entity_type, entity_id, actor_id, before_value, after_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UnixMilli(),
		event.Action,
		event.EntityType,
		event.EntityID,
		event.ActorID,
		nullableJSON(event.Before),
		nullableJSON(event.After),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	log.Debug().
		Str("audit_id", event.ID).
		Str("action", event.Action).
		Str("entity_id", event.EntityID).
		Str("actor_id", event.ActorID).
		Msg("Audit event stored")
	return nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// Query retrieves audit events matching the filter, newest first.
func (l *SQLiteLogger) Query(filter QueryFilter) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query := "SELECT id, timestamp, action, entity_type, entity_id, actor_id, before_value, after_value FROM audit_events WHERE 1=1"
	args := []interface{}{}

	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filter.EntityID)
	}
	if filter.ActorID != "" {
		query += " AND actor_id = ?"
		args = append(args, filter.ActorID)
	}
	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime.UnixMilli())
	}
	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime.UnixMilli())
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var timestamp int64
		var before, after sql.NullString

		if err := rows.Scan(&e.ID, &timestamp, &e.Action, &e.EntityType, &e.EntityID, &e.ActorID, &before, &after); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		e.Timestamp = time.UnixMilli(timestamp).UTC()
		if before.Valid {
			e.Before = []byte(before.String)
		}
		if after.Valid {
			e.After = []byte(after.String)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Close gracefully shuts down the logger.
func (l *SQLiteLogger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
		if cerr := l.db.Close(); cerr != nil {
			err = fmt.Errorf("failed to close audit database: %w", cerr)
			return
		}
		log.Info().Msg("SQLite audit logger closed")
	})
	return err
}

// retentionWorker runs periodically to clean up old events.
func (l *SQLiteLogger) retentionWorker() {
	defer l.wg.Done()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanupOldEvents(time.Now())
		}
	}
}

// cleanupOldEvents deletes events older than the retention period.
func (l *SQLiteLogger) cleanupOldEvents(now time.Time) int64 {
	if l.retentionDays <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.AddDate(0, 0, -l.retentionDays).UnixMilli()

	result, err := l.db.Exec(`DELETE FROM audit_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old audit events")
		return 0
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		log.Info().
			Int64("deleted", deleted).
			Int("retentionDays", l.retentionDays).
			Msg("Cleaned up old audit events")
	}
	return deleted
}

// GetRetentionDays returns the current retention period.
func (l *SQLiteLogger) GetRetentionDays() int {
	return l.retentionDays
}
