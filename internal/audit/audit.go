// Package audit records the three events the specification requires
// visibility into — registration, successful login, failed login —
// and makes them available both for historical query and as a live
// tail over a WebSocket for an operator dashboard.
package audit

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// EventType is the closed taxonomy of audit events. Anything else the
// server might log (rate-limit rejections, pool saturation) is
// operational logging, not an audit event, and does not go through
// this package.
type EventType string

const (
	UserRegistered EventType = "USER_REGISTERED"
	LoginSuccess   EventType = "LOGIN_SUCCESS"
	LoginFailed    EventType = "LOGIN_FAILED"
)

// Event is one row of the audit trail.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"eventType"`
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address"`
	Detail    string    `json:"reason,omitempty"`
}

// Bus writes audit events to SQLite and fans them out to any
// connected live-tail subscribers.
type Bus struct {
	db  *sql.DB
	hub *Hub
}

// New wires a Bus to db. The database must already have the
// audit_events table created by the config package's migrations.
func New(db *sql.DB) *Bus {
	return &Bus{db: db, hub: newHub()}
}

// Hub exposes the live-tail hub so an HTTP handler can upgrade a
// connection onto it.
func (b *Bus) Hub() *Hub {
	return b.hub
}

// Record persists an event and pushes it to any live subscribers.
// Record logs and swallows a database error rather than propagating
// it — a failure to write an audit row must never turn a successful
// authentication into a failed HTTP response.
func (b *Bus) Record(eventType EventType, username, ipAddress, detail string) {
	now := time.Now()
	res, err := b.db.Exec(`
		INSERT INTO audit_events (type, username, ip_address, detail, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, string(eventType), username, ipAddress, detail, now.Unix())
	if err != nil {
		log.Printf("audit: failed to record %s for %s: %v", eventType, username, err)
		return
	}

	id, _ := res.LastInsertId()
	b.hub.Broadcast(Event{
		ID:        id,
		Timestamp: now,
		Type:      eventType,
		Username:  username,
		IPAddress: ipAddress,
		Detail:    detail,
	})
}

// Recent returns the most recent limit events, newest first.
func (b *Bus) Recent(limit int) ([]Event, error) {
	rows, err := b.db.Query(`
		SELECT id, type, username, ip_address, detail, timestamp
		FROM audit_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &e.Type, &e.Username, &e.IPAddress, &e.Detail, &ts); err != nil {
			log.Printf("audit: scan error: %v", err)
			continue
		}
		e.Timestamp = time.Unix(ts, 0)
		events = append(events, e)
	}
	return events, nil
}

// Cleanup removes events older than daysToKeep.
func (b *Bus) Cleanup(daysToKeep int) error {
	cutoff := time.Now().AddDate(0, 0, -daysToKeep).Unix()
	result, err := b.db.Exec(`DELETE FROM audit_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n > 0 {
		log.Printf("audit: cleaned up %d events older than %d days", n, daysToKeep)
	}
	return nil
}
