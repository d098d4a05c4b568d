// Package userdirectory stores the one durable secret the server is
// allowed to know about a registrant: their public key Y = g^x mod p.
// It never sees, derives, or stores x.
package userdirectory

import (
	"database/sql"
	"errors"
	"math/big"
	"time"

	"github.com/zkid-sh/zkauth/internal/zkp"
)

var (
	ErrUserExists      = errors.New("userdirectory: username already registered")
	ErrUserNotFound    = errors.New("userdirectory: username not found")
	ErrInvalidPublicKey = errors.New("userdirectory: public key is not a valid group element")
)

// Record is the durable row for a registered username.
type Record struct {
	Username  string
	Y         *big.Int
	Salt      string // opaque, client-chosen; stored but never interpreted server-side
	CreatedAt int64
	LastLogin *int64
}

// Directory is a SQLite-backed store of registered usernames and their
// public keys.
type Directory struct {
	db    *sql.DB
	group zkp.Group
}

// New returns a Directory validating registered keys against group.
func New(db *sql.DB, group zkp.Group) *Directory {
	return &Directory{db: db, group: group}
}

// Register inserts a new user. It rejects a Y outside the group's
// valid element range and, per the subgroup-confinement decision for
// this service, one that is not in the order-q subgroup generated by
// g — a value that passes the cheap range check but sits outside the
// subgroup would let a client construct a key for which the discrete
// log relative to g does not exist, defeating the soundness of every
// subsequent proof.
func (d *Directory) Register(username string, y *big.Int, salt string) error {
	if !d.group.IsValidElement(y) || !d.group.IsInSubgroup(y) {
		return ErrInvalidPublicKey
	}

	existing, err := d.GetByUsername(username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if existing != nil {
		return ErrUserExists
	}

	now := time.Now().Unix()
	_, err = d.db.Exec(`
		INSERT INTO users (username, y_hex, salt, created_at, last_login)
		VALUES (?, ?, ?, ?, NULL)
	`, username, y.Text(16), salt, now)
	if err != nil {
		return err
	}
	return nil
}

// GetByUsername looks up a registered user's public key. It returns
// ErrUserNotFound, not a nil record, when the username is unclaimed —
// callers that must not leak this distinction do not propagate it to a
// client: the challenge endpoint substitutes a decoy, and the verify
// endpoint reports the generic authentication failure.
func (d *Directory) GetByUsername(username string) (*Record, error) {
	var rec Record
	var yHex string
	var lastLogin sql.NullInt64

	err := d.db.QueryRow(`
		SELECT username, y_hex, salt, created_at, last_login FROM users WHERE username = ?
	`, username).Scan(&rec.Username, &yHex, &rec.Salt, &rec.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	y, ok := new(big.Int).SetString(yHex, 16)
	if !ok {
		return nil, errors.New("userdirectory: corrupt y_hex for " + username)
	}
	rec.Y = y
	if lastLogin.Valid {
		rec.LastLogin = &lastLogin.Int64
	}
	return &rec, nil
}

// UpdateLastLogin best-effort-records a successful verification. A
// failure here must never turn a successful login into an error
// response, so callers log it rather than propagate it.
func (d *Directory) UpdateLastLogin(username string) error {
	now := time.Now().Unix()
	_, err := d.db.Exec(`UPDATE users SET last_login = ? WHERE username = ?`, now, username)
	return err
}

// Exists reports whether username is already registered, without
// exposing the public key.
func (d *Directory) Exists(username string) (bool, error) {
	var exists int
	err := d.db.QueryRow(`SELECT 1 FROM users WHERE username = ? LIMIT 1`, username).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the total number of registered users.
func (d *Directory) Count() (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
