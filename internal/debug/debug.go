// Package debug provides debug logging utilities for zkauth.
// Debug mode is enabled via ZKAUTH_DEBUG=1 or automatically when ENV
// is unset or "development".
package debug

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

var (
	enabled     bool
	enabledOnce sync.Once
)

// IsEnabled returns true if debug mode is active.
// Checks ZKAUTH_DEBUG env var on first call and caches the result.
func IsEnabled() bool {
	enabledOnce.Do(func() {
		debug := os.Getenv("ZKAUTH_DEBUG")
		if debug != "" {
			enabled = debug == "1" || debug == "true"
		} else {
			env := os.Getenv("ZKAUTH_ENV")
			enabled = env == "" || env == "development"
		}
		if enabled {
			log.Printf("[DEBUG] Debug mode enabled")
		}
	})
	return enabled
}

// Log logs a debug message if debug mode is enabled.
func Log(category, format string, args ...interface{}) {
	if !IsEnabled() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Printf("[DEBUG %s] %s", category, msg)
}

// Warn logs a warning message if debug mode is enabled.
func Warn(category, format string, args ...interface{}) {
	if !IsEnabled() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Printf("[WARN  %s] %s", category, msg)
}

// SQL logs a SQL query if debug is enabled.
func SQL(query string, args []interface{}) {
	if !IsEnabled() {
		return
	}
	q := strings.TrimSpace(query)
	q = strings.ReplaceAll(q, "\n", " ")
	q = strings.ReplaceAll(q, "\t", " ")
	for strings.Contains(q, "  ") {
		q = strings.ReplaceAll(q, "  ", " ")
	}
	if len(q) > 200 {
		q = q[:197] + "..."
	}
	log.Printf("[DEBUG sql] %s args=%v", q, args)
}
