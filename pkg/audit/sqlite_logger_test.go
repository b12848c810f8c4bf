package audit

import (
	"testing"
	"time"
)

func newTestSQLiteLogger(t *testing.T, retention int) *SQLiteLogger {
	t.Helper()
	logger, err := NewSQLiteLogger(SQLiteLoggerConfig{
		DataDir:       t.TempDir(),
		RetentionDays: retention,
	})
	if err != nil {
		t.Fatalf("NewSQLiteLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestNewSQLiteLoggerRequiresDataDir(t *testing.T) {
	if _, err := NewSQLiteLogger(SQLiteLoggerConfig{}); err == nil {
		t.Fatal("expected error for empty data dir")
	}
}

func TestNewSQLiteLoggerDefaultRetention(t *testing.T) {
	logger := newTestSQLiteLogger(t, 0)
	if logger.GetRetentionDays() != 365 {
		t.Errorf("Expected default retention days 365, got %d", logger.GetRetentionDays())
	}
}

func TestSQLiteLoggerLogAndQuery(t *testing.T) {
	logger := newTestSQLiteLogger(t, 30)

	first := NewEvent("add_on.grant", "user_add_on", "user-1:addon-ai", "admin-1", nil, map[string]any{"expires_at": nil})
	second := NewEvent("settings.update", "system_setting", "alumni_grace_period_days", "admin-2", 90, 60)
	second.Timestamp = first.Timestamp.Add(time.Second)

	for _, e := range []Event{first, second} {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	all, err := logger.Query(QueryFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(all))
	}
	if all[0].ID != second.ID {
		t.Errorf("Expected newest event first, got %s", all[0].Action)
	}
	if string(all[0].Before) != "90" || string(all[0].After) != "60" {
		t.Errorf("Unexpected before/after: %s / %s", all[0].Before, all[0].After)
	}
	if all[1].Before != nil {
		t.Errorf("Expected nil before for grant, got %s", all[1].Before)
	}

	byActor, err := logger.Query(QueryFilter{ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(byActor) != 1 || byActor[0].Action != "add_on.grant" {
		t.Errorf("Unexpected actor filter result: %+v", byActor)
	}

	limited, err := logger.Query(QueryFilter{Limit: 1})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 event with limit, got %d", len(limited))
	}
}

func TestSQLiteLoggerRetentionCleanup(t *testing.T) {
	logger := newTestSQLiteLogger(t, 30)

	old := NewEvent("add_on.revoke", "user_add_on", "user-1:addon-ai", "admin-1", nil, nil)
	old.Timestamp = time.Now().AddDate(0, 0, -45)
	recent := NewEvent("add_on.grant", "user_add_on", "user-1:addon-ai", "admin-1", nil, nil)
	for _, e := range []Event{old, recent} {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	if deleted := logger.cleanupOldEvents(time.Now()); deleted != 1 {
		t.Fatalf("Expected 1 deleted event, got %d", deleted)
	}
	remaining, err := logger.Query(QueryFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != recent.ID {
		t.Fatalf("Unexpected remaining events: %+v", remaining)
	}
}

func TestSQLiteLoggerCloseIdempotent(t *testing.T) {
	logger := newTestSQLiteLogger(t, -1)
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
