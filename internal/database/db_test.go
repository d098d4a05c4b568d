package database

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func TestOpenRunsMigrateAndEnablesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	var migrated bool
	db, err := Open(path, func(db *sql.DB) error {
		migrated = true
		_, err := db.Exec(`CREATE TABLE probe (id INTEGER PRIMARY KEY)`)
		return err
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if !migrated {
		t.Fatal("expected migrate callback to run")
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	if _, err := db.Exec("INSERT INTO probe (id) VALUES (1)"); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}
}

func TestOpenPropagatesMigrateError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	_, err := Open(path, func(db *sql.DB) error {
		return sql.ErrNoRows
	})
	if err == nil {
		t.Fatal("expected error from failing migrate callback")
	}
}

func TestOpenWithNilMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	db, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()
}
