package database

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDBPath is the default database path when none is specified.
// Uses ~/.zkauth/data.db for a consistent location regardless of CWD.
// Override with --db flag or ZKAUTH_DB_PATH environment variable.
const DefaultDBPath = "~/.zkauth/data.db"

// ResolvePath determines the database path using the priority:
// 1. Explicit path argument (--db flag)
// 2. ZKAUTH_DB_PATH environment variable
// 3. Default: ~/.zkauth/data.db
//
// This is the single source of truth for DB path resolution.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return expandPath(explicit)
	}
	if envPath := os.Getenv("ZKAUTH_DB_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	return expandPath(DefaultDBPath)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
