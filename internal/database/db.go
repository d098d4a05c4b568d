package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens the SQLite database at path using the pure-Go modernc.org
// driver, enables WAL journaling and foreign key enforcement, and runs
// migrate against it before returning. path should already have gone
// through ResolvePath.
//
// A single *sql.DB is shared by every package in this process
// (userdirectory, challengestore, token, audit); SQLite's own locking
// serializes writers, so there is no need for an application-level
// connection pool beyond the database/sql default.
func Open(path string, migrate func(*sql.DB) error) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: enable foreign keys: %w", err)
	}

	if migrate != nil {
		if err := migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("database: migrate: %w", err)
		}
	}

	return db, nil
}
