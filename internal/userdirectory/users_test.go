package userdirectory

import (
	"database/sql"
	"math/big"
	"os"
	"testing"

	"github.com/zkid-sh/zkauth/internal/zkp"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	tmpFile, err := os.CreateTemp("", "userdirectory_test_*.db")
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
		CREATE TABLE users (
			username TEXT PRIMARY KEY,
			y_hex TEXT NOT NULL,
			salt TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_login INTEGER
		);
	`)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

// validY returns g^x mod p for a small x, guaranteed to lie in the
// order-q subgroup since g itself generates it.
func validY(x int64) *big.Int {
	return zkp.Standard.ModPow(zkp.Standard.G, big.NewInt(x))
}

func TestRegisterAndGetByUsername(t *testing.T) {
	d := New(setupTestDB(t), zkp.Standard)

	y := validY(12345)
	if err := d.Register("alice", y, "somesalt"); err != nil {
		t.Fatalf("register: %v", err)
	}

	rec, err := d.GetByUsername("alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Username != "alice" || rec.Y.Cmp(y) != 0 || rec.Salt != "somesalt" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.LastLogin != nil {
		t.Fatal("expected LastLogin to be nil before any login")
	}
}

func TestRegisterDuplicateUsernameFails(t *testing.T) {
	d := New(setupTestDB(t), zkp.Standard)

	y := validY(1)
	if err := d.Register("alice", y, "salt1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := d.Register("alice", validY(2), "salt2")
	if err != ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterRejectsOutOfRangeKey(t *testing.T) {
	d := New(setupTestDB(t), zkp.Standard)

	for _, bad := range []*big.Int{big.NewInt(0), big.NewInt(1), new(big.Int).Set(zkp.Standard.P)} {
		if err := d.Register("alice", bad, "salt"); err != ErrInvalidPublicKey {
			t.Fatalf("expected ErrInvalidPublicKey for y=%v, got %v", bad, err)
		}
	}
}

func TestGetByUsernameUnknownIsNotFound(t *testing.T) {
	d := New(setupTestDB(t), zkp.Standard)

	_, err := d.GetByUsername("nobody")
	if err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateLastLogin(t *testing.T) {
	d := New(setupTestDB(t), zkp.Standard)

	if err := d.Register("alice", validY(7), "salt"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := d.UpdateLastLogin("alice"); err != nil {
		t.Fatalf("update last login: %v", err)
	}

	rec, err := d.GetByUsername("alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.LastLogin == nil {
		t.Fatal("expected LastLogin to be set")
	}
}

func TestExistsAndCount(t *testing.T) {
	d := New(setupTestDB(t), zkp.Standard)

	exists, err := d.Exists("alice")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("expected alice to not exist yet")
	}

	if err := d.Register("alice", validY(3), "salt"); err != nil {
		t.Fatalf("register: %v", err)
	}

	exists, err = d.Exists("alice")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected alice to exist")
	}

	count, err := d.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}
