package audit

import (
	"database/sql"
	"os"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	tmpFile, err := os.CreateTemp("", "audit_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	db, err := sql.Open("sqlite", tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			username TEXT NOT NULL,
			ip_address TEXT NOT NULL,
			detail TEXT,
			timestamp INTEGER NOT NULL
		);
	`)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestRecordAndRecent(t *testing.T) {
	bus := New(setupTestDB(t))
	t.Cleanup(bus.Hub().Stop)

	bus.Record(UserRegistered, "alice", "127.0.0.1", "")
	bus.Record(LoginFailed, "alice", "127.0.0.1", "proof_invalid")
	bus.Record(LoginSuccess, "alice", "127.0.0.1", "")

	events, err := bus.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// Newest first.
	if events[0].Type != LoginSuccess {
		t.Fatalf("expected newest event to be LoginSuccess, got %v", events[0].Type)
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	bus := New(setupTestDB(t))
	t.Cleanup(bus.Hub().Stop)

	for i := 0; i < 5; i++ {
		bus.Record(LoginSuccess, "alice", "127.0.0.1", "")
	}

	events, err := bus.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

func TestCleanupRemovesOldEvents(t *testing.T) {
	db := setupTestDB(t)
	bus := New(db)
	t.Cleanup(bus.Hub().Stop)

	// Insert a row with a timestamp far in the past directly, bypassing
	// Record, so it predates any "days to keep" cutoff.
	_, err := db.Exec(`
		INSERT INTO audit_events (type, username, ip_address, detail, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, string(LoginSuccess), "alice", "127.0.0.1", "", 1)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	bus.Record(LoginSuccess, "bob", "127.0.0.1", "")

	if err := bus.Cleanup(1); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	events, err := bus.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 1 || events[0].Username != "bob" {
		t.Fatalf("expected only the recent event to survive, got %+v", events)
	}
}
