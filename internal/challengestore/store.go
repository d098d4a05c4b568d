// Package challengestore provides a SQLite-backed implementation of
// zkp.Store: the one-shot, TTL-bound holding area for a ChallengeRecord
// between IssueChallenge and VerifyProof.
package challengestore

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/zkid-sh/zkauth/internal/zkp"
)

const cleanupInterval = 30 * time.Second

// Store persists challenge records in SQLite and additionally keeps a
// small in-process cache so the common case (issue, then verify a few
// hundred milliseconds later from the same process) never round-trips
// to disk twice. Delete always goes to the database row, so the row
// decides which caller consumes a challenge; Get answers from an
// unexpired cache entry without rechecking the row.
type Store struct {
	db    *sql.DB
	cache sync.Map // challengeID -> *cachedRecord

	done chan struct{}
	wg   sync.WaitGroup
}

type cachedRecord struct {
	username  string
	r, c      *big.Int
	expiresAt time.Time
}

// New returns a Store backed by db, which must already have the
// challenges table created by the config package's migrations. It
// starts a background goroutine that deletes expired rows so a
// never-verified challenge does not linger past its TTL.
func New(db *sql.DB) *Store {
	s := &Store{db: db, done: make(chan struct{})}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// Close stops the background expiry sweep.
func (s *Store) Close() {
	close(s.done)
	s.wg.Wait()
}

// Put persists a new challenge record. challengeID must be unique;
// a collision is treated as an error rather than silently overwriting
// an in-flight session.
func (s *Store) Put(ctx context.Context, challengeID, username string, r, c *big.Int, ttlSeconds int64) error {
	expiresAt := time.Now().Add(time.Duration(ttlSeconds) * time.Second)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO challenges (id, username, r_hex, c_hex, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, challengeID, username, r.Text(16), c.Text(16), expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("challengestore: put: %w", err)
	}

	s.cache.Store(challengeID, &cachedRecord{
		username:  username,
		r:         new(big.Int).Set(r),
		c:         new(big.Int).Set(c),
		expiresAt: expiresAt,
	})
	return nil
}

// Get returns the record for challengeID if it exists and has not
// expired. A miss (absent or expired) is reported as ok=false with a
// nil error, matching zkp.Store's contract.
func (s *Store) Get(ctx context.Context, challengeID string) (string, *big.Int, *big.Int, bool, error) {
	if v, ok := s.cache.Load(challengeID); ok {
		rec := v.(*cachedRecord)
		if time.Now().Before(rec.expiresAt) {
			return rec.username, new(big.Int).Set(rec.r), new(big.Int).Set(rec.c), true, nil
		}
		s.cache.Delete(challengeID)
	}

	var username, rHex, cHex string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT username, r_hex, c_hex, expires_at FROM challenges WHERE id = ?
	`, challengeID).Scan(&username, &rHex, &cHex, &expiresAt)
	if err == sql.ErrNoRows {
		return "", nil, nil, false, nil
	}
	if err != nil {
		return "", nil, nil, false, fmt.Errorf("challengestore: get: %w", err)
	}
	if time.Now().After(time.Unix(expiresAt, 0)) {
		return "", nil, nil, false, nil
	}

	r, ok := new(big.Int).SetString(rHex, 16)
	if !ok {
		return "", nil, nil, false, fmt.Errorf("challengestore: corrupt r_hex for %s", challengeID)
	}
	c, ok := new(big.Int).SetString(cHex, 16)
	if !ok {
		return "", nil, nil, false, fmt.Errorf("challengestore: corrupt c_hex for %s", challengeID)
	}
	return username, r, c, true, nil
}

// Delete removes challengeID unconditionally and reports whether a row
// was actually present, so the engine can distinguish "I consumed it"
// from "someone else already did": only the caller that sees true goes
// on to check the proof; the other is rejected as session-not-found.
func (s *Store) Delete(ctx context.Context, challengeID string) (bool, error) {
	s.cache.Delete(challengeID)

	res, err := s.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = ?`, challengeID)
	if err != nil {
		return false, fmt.Errorf("challengestore: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("challengestore: delete: %w", err)
	}
	return n > 0, nil
}

func (s *Store) cleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepExpired()
		case <-s.done:
			return
		}
	}
}

func (s *Store) sweepExpired() {
	now := time.Now().Unix()
	_, _ = s.db.Exec(`DELETE FROM challenges WHERE expires_at <= ?`, now)

	nowTime := time.Now()
	s.cache.Range(func(key, value any) bool {
		rec := value.(*cachedRecord)
		if nowTime.After(rec.expiresAt) {
			s.cache.Delete(key)
		}
		return true
	})
}

var _ zkp.Store = (*Store)(nil)
