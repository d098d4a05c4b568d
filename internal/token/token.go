// Package token issues and validates the bearer session tokens handed
// out after a successful VerifyProof. A token is an opaque session id
// plus an HMAC over that id; only the id's SHA-256 hash is ever
// written to disk, and the HMAC key lives only in process memory.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	// DefaultTTL is the lifetime of an issued session token.
	DefaultTTL = 1 * time.Hour

	sessionIDBytes = 32
)

var (
	ErrInvalidToken = errors.New("token: invalid or expired")
)

// Issuer mints and validates bearer tokens backed by a SQLite table.
// It additionally derives a per-process HMAC key via HKDF from a
// random startup seed: the key never touches disk, so a stolen
// session_tokens table (hashes of the session id alone) is not enough
// to mint a token that Validate will accept, even if the id itself
// were somehow recovered from that table.
type Issuer struct {
	db  *sql.DB
	ttl time.Duration

	signingKey []byte
}

// New returns an Issuer with the given token lifetime. A zero ttl
// selects DefaultTTL.
func New(db *sql.DB, ttl time.Duration) (*Issuer, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	key, err := deriveSigningKey(seed)
	if err != nil {
		return nil, err
	}

	return &Issuer{db: db, ttl: ttl, signingKey: key}, nil
}

func deriveSigningKey(seed []byte) ([]byte, error) {
	hk := hkdf.New(sha256.New, seed, nil, []byte("zkauth session signing key"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	return key, nil
}

func generateSessionID() ([]byte, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func hashSessionID(id []byte) string {
	sum := sha256.Sum256(id)
	return hex.EncodeToString(sum[:])
}

// sign returns the HMAC-SHA256 of id under key.
func sign(key, id []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(id)
	return mac.Sum(nil)
}

// encodeToken joins a session id and its signature into the bearer
// string handed to the client.
func encodeToken(id, sig []byte) string {
	return base64.URLEncoding.EncodeToString(id) + "." + base64.URLEncoding.EncodeToString(sig)
}

// decodeToken splits a bearer string back into its session id and
// claimed signature.
func decodeToken(token string) (id, sig []byte, ok bool) {
	idPart, sigPart, found := strings.Cut(token, ".")
	if !found || idPart == "" || sigPart == "" {
		return nil, nil, false
	}
	id, err := base64.URLEncoding.DecodeString(idPart)
	if err != nil {
		return nil, nil, false
	}
	sig, err = base64.URLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, nil, false
	}
	return id, sig, true
}

// Issue mints a fresh token bound to username and persists the hash
// of its session id.
func (i *Issuer) Issue(username string) (token string, expiresAt time.Time, err error) {
	id, err := generateSessionID()
	if err != nil {
		return "", time.Time{}, err
	}
	sig := sign(i.signingKey, id)
	token = encodeToken(id, sig)

	now := time.Now()
	expiresAt = now.Add(i.ttl)

	_, err = i.db.Exec(`
		INSERT INTO session_tokens (token_hash, username, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, hashSessionID(id), username, now.Unix(), expiresAt.Unix())
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// Validate checks token's signature against the in-memory signing
// key before ever touching the database, then looks up the session id
// hash and returns the username it was issued to. An expired row is
// deleted as a side effect of the lookup failing.
func (i *Issuer) Validate(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	id, sig, ok := decodeToken(token)
	if !ok {
		return "", ErrInvalidToken
	}
	if !hmac.Equal(sig, sign(i.signingKey, id)) {
		return "", ErrInvalidToken
	}

	hash := hashSessionID(id)
	now := time.Now().Unix()

	var username string
	var expiresAt int64
	err := i.db.QueryRow(`
		SELECT username, expires_at FROM session_tokens WHERE token_hash = ?
	`, hash).Scan(&username, &expiresAt)
	if err == sql.ErrNoRows {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}

	if now > expiresAt {
		_, _ = i.db.Exec(`DELETE FROM session_tokens WHERE token_hash = ?`, hash)
		return "", ErrInvalidToken
	}

	return username, nil
}

// Revoke deletes a single token, e.g. on an explicit logout.
func (i *Issuer) Revoke(token string) error {
	id, _, ok := decodeToken(token)
	if !ok {
		return nil
	}
	_, err := i.db.Exec(`DELETE FROM session_tokens WHERE token_hash = ?`, hashSessionID(id))
	return err
}

// CleanupExpired removes expired tokens; intended to be called
// periodically alongside the challenge store's own sweep.
func (i *Issuer) CleanupExpired() error {
	_, err := i.db.Exec(`DELETE FROM session_tokens WHERE expires_at < ?`, time.Now().Unix())
	return err
}
