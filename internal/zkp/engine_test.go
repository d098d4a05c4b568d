package zkp

import (
	"context"
	"math/big"
	"sync"
	"testing"
)

// memStore is an in-memory Store used only for unit-testing Engine in
// isolation from internal/challengestore's SQLite backing.
type memStore struct {
	mu   sync.Mutex
	data map[string]memEntry
}

type memEntry struct {
	username string
	r, c     *big.Int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]memEntry)}
}

func (s *memStore) Put(ctx context.Context, challengeID, username string, r, c *big.Int, ttlSeconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[challengeID] = memEntry{username: username, r: r, c: c}
	return nil
}

func (s *memStore) Get(ctx context.Context, challengeID string) (string, *big.Int, *big.Int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[challengeID]
	if !ok {
		return "", nil, nil, false, nil
	}
	return e.username, e.r, e.c, true, nil
}

func (s *memStore) Delete(ctx context.Context, challengeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[challengeID]
	delete(s.data, challengeID)
	return ok, nil
}

func inlineExponent(ctx context.Context, base, exp *big.Int) (*big.Int, error) {
	return Standard.ModPow(base, exp), nil
}

func newTestEngine() Engine {
	return NewEngine(newMemStore(), inlineExponent)
}

// clientProof computes the client-side values for a full round, given
// x (private scalar), r (nonce) and username.
func clientProof(t *testing.T, e Engine, username string, x, r *big.Int) (R, Y, s *big.Int) {
	t.Helper()
	Y = e.Group.ModPow(e.Group.G, x)
	R = e.Group.ModPow(e.Group.G, r)
	c := ChallengeHash(e.Group, R, Y, username)
	s = new(big.Int).Add(r, new(big.Int).Mul(c, x))
	s = e.Group.ScalarReduce(s)
	return R, Y, s
}

func TestCorrectness(t *testing.T) {
	// Property 1: for all valid x, r, username, a correctly-computed
	// proof is Accepted.
	cases := []struct {
		name     string
		x, r     int64
		username string
	}{
		{"small", 7, 11, "alice"},
		{"x=1", 1, 42, "bob_01"},
		{"large-ish", 123456789, 987654321, "user_name_32_chars_long_00000000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine()
			ctx := context.Background()
			x := big.NewInt(tc.x)
			r := big.NewInt(tc.r)

			R, Y, s := clientProof(t, e, tc.username, x, r)

			ch, reason, err := e.IssueChallenge(ctx, tc.username, R, Y)
			if err != nil || reason != Accepted {
				t.Fatalf("issue failed: reason=%v err=%v", reason, err)
			}

			reason, err = e.VerifyProof(ctx, ch.ChallengeID, s, R, tc.username, Y)
			if err != nil {
				t.Fatalf("verify error: %v", err)
			}
			if reason != Accepted {
				t.Fatalf("expected Accepted, got %v", reason)
			}
		})
	}
}

func TestSoundnessRandomS(t *testing.T) {
	// Property 2: an s independent of r, x should (overwhelmingly) be
	// rejected.
	e := newTestEngine()
	ctx := context.Background()
	x := big.NewInt(7)
	r := big.NewInt(11)
	username := "alice"

	R, Y, _ := clientProof(t, e, username, x, r)
	ch, _, err := e.IssueChallenge(ctx, username, R, Y)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	wrongS := big.NewInt(424242)
	reason, err := e.VerifyProof(ctx, ch.ChallengeID, wrongS, R, username, Y)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if reason != ProofInvalid {
		t.Fatalf("expected ProofInvalid, got %v", reason)
	}
}

func TestHashBindingChangesOnAnyComponent(t *testing.T) {
	// Property 3: changing R, Y, or username changes c.
	e := newTestEngine()
	R := big.NewInt(12345)
	Y := big.NewInt(67890)
	c0 := ChallengeHash(e.Group, R, Y, "alice")

	if c1 := ChallengeHash(e.Group, new(big.Int).Add(R, big.NewInt(1)), Y, "alice"); c1.Cmp(c0) == 0 {
		t.Fatal("changing R did not change c")
	}
	if c2 := ChallengeHash(e.Group, R, new(big.Int).Add(Y, big.NewInt(1)), "alice"); c2.Cmp(c0) == 0 {
		t.Fatal("changing Y did not change c")
	}
	if c3 := ChallengeHash(e.Group, R, Y, "alicee"); c3.Cmp(c0) == 0 {
		t.Fatal("changing username did not change c")
	}
}

func TestOneShotConsumption(t *testing.T) {
	// Property 4: after any Accept or Reject, a second verify on the
	// same challengeId returns SessionNotFound.
	e := newTestEngine()
	ctx := context.Background()
	x := big.NewInt(7)
	r := big.NewInt(11)
	username := "alice"

	R, Y, s := clientProof(t, e, username, x, r)
	ch, _, _ := e.IssueChallenge(ctx, username, R, Y)

	reason, _ := e.VerifyProof(ctx, ch.ChallengeID, s, R, username, Y)
	if reason != Accepted {
		t.Fatalf("first verify should accept, got %v", reason)
	}

	reason, _ = e.VerifyProof(ctx, ch.ChallengeID, s, R, username, Y)
	if reason != SessionNotFound {
		t.Fatalf("replayed verify should be SessionNotFound, got %v", reason)
	}
}

func TestTamperedREchoRejected(t *testing.T) {
	// Property 5: a different clientR at verify time yields
	// BindingMismatch, and the session is still consumed.
	e := newTestEngine()
	ctx := context.Background()
	x := big.NewInt(7)
	r := big.NewInt(11)
	username := "alice"

	R, Y, s := clientProof(t, e, username, x, r)
	ch, _, _ := e.IssueChallenge(ctx, username, R, Y)

	tamperedR := new(big.Int).Add(R, big.NewInt(1))
	reason, _ := e.VerifyProof(ctx, ch.ChallengeID, s, tamperedR, username, Y)
	if reason != BindingMismatch {
		t.Fatalf("expected BindingMismatch, got %v", reason)
	}

	reason, _ = e.VerifyProof(ctx, ch.ChallengeID, s, R, username, Y)
	if reason != SessionNotFound {
		t.Fatalf("challenge should have been consumed by the failed attempt, got %v", reason)
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	// Property 8: hex(parse(hex(k))) == hex(k) for non-negative k,
	// using the lowercase-no-leading-zero convention.
	values := []int64{0, 1, 2, 15, 16, 255, 256, 123456789}
	for _, v := range values {
		n := big.NewInt(v)
		h := EncodeHex(n)
		parsed, err := DecodeHex(h)
		if err != nil {
			t.Fatalf("decode(%q): %v", h, err)
		}
		if roundTripped := EncodeHex(parsed); roundTripped != h {
			t.Fatalf("round trip mismatch for %d: %q != %q", v, roundTripped, h)
		}
	}

	if got := EncodeHex(big.NewInt(0)); got != "0" {
		t.Fatalf("zero should encode as \"0\", got %q", got)
	}
	if got := EncodeHex(big.NewInt(255)); got != "ff" {
		t.Fatalf("255 should encode as \"ff\", got %q", got)
	}
}

func TestIssueChallengeRejectsInvalidR(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	for _, bad := range []*big.Int{big.NewInt(0), big.NewInt(1), new(big.Int).Set(e.Group.P)} {
		_, reason, err := e.IssueChallenge(ctx, "alice", bad, big.NewInt(2))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reason != InvalidArgument {
			t.Fatalf("expected InvalidArgument for R=%v, got %v", bad, reason)
		}
	}
}

func TestVerifyUnknownChallengeIsSessionNotFound(t *testing.T) {
	e := newTestEngine()
	reason, err := e.VerifyProof(context.Background(), "does-not-exist", big.NewInt(1), big.NewInt(2), "alice", big.NewInt(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != SessionNotFound {
		t.Fatalf("expected SessionNotFound, got %v", reason)
	}
}

func TestVerifyUsernameMismatchIsBindingMismatch(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	x := big.NewInt(7)
	r := big.NewInt(11)

	R, Y, s := clientProof(t, e, "alice", x, r)
	ch, _, _ := e.IssueChallenge(ctx, "alice", R, Y)

	reason, _ := e.VerifyProof(ctx, ch.ChallengeID, s, R, "mallory", Y)
	if reason != BindingMismatch {
		t.Fatalf("expected BindingMismatch, got %v", reason)
	}
}
