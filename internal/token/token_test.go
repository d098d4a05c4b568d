package token

import (
	"database/sql"
	"os"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	tmpFile, err := os.CreateTemp("", "token_test_*.db")
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
		CREATE TABLE session_tokens (
			token_hash TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestIssueAndValidate(t *testing.T) {
	i, err := New(setupTestDB(t), time.Hour)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tok, expiresAt, err := i.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok == "" {
		t.Fatal("expected a non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expected expiry in the future")
	}

	username, err := i.Validate(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if username != "alice" {
		t.Fatalf("expected alice, got %s", username)
	}
}

func TestValidateUnknownTokenFails(t *testing.T) {
	i, err := New(setupTestDB(t), time.Hour)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = i.Validate("not-a-real-token")
	if err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateExpiredTokenFails(t *testing.T) {
	i, err := New(setupTestDB(t), -1*time.Second)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tok, _, err := i.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = i.Validate(tok)
	if err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for an already-expired token, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	i, err := New(setupTestDB(t), time.Hour)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tok, _, err := i.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := i.Revoke(tok); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	_, err = i.Validate(tok)
	if err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken after revoke, got %v", err)
	}
}

func TestTwoIssuedTokensAreDistinct(t *testing.T) {
	i, err := New(setupTestDB(t), time.Hour)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tok1, _, _ := i.Issue("alice")
	tok2, _, _ := i.Issue("alice")
	if tok1 == tok2 {
		t.Fatal("expected two independently issued tokens to differ")
	}
}
