package config

import (
	"database/sql"
	"fmt"
)

// Migrate creates every table the server needs if it does not already
// exist. There is deliberately no versioned migration chain here: the
// schema is small and stable enough that "create if missing" covers
// both a fresh database and an upgrade from an earlier build that had
// the same tables.
func Migrate(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username   TEXT PRIMARY KEY,
			y_hex      TEXT NOT NULL,
			salt       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_login INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS challenges (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL,
			r_hex      TEXT NOT NULL,
			c_hex      TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_challenges_expires_at ON challenges(expires_at)`,
		`CREATE TABLE IF NOT EXISTS session_tokens (
			token_hash TEXT PRIMARY KEY,
			username   TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_tokens_expires_at ON session_tokens(expires_at)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			type       TEXT NOT NULL,
			username   TEXT NOT NULL,
			ip_address TEXT NOT NULL,
			detail     TEXT,
			timestamp  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_username ON audit_events(username)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("config: migrate: %w", err)
		}
	}
	return nil
}
