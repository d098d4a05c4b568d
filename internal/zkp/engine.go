package zkp

import (
	"context"
	"errors"
	"math/big"
)

// Reason is the internal rejection taxonomy (§7 of the specification).
// Every Reason other than Accepted collapses to a single externally
// visible "authentication failed" at the facade layer; the taxonomy
// exists for internal metrics and audit only and must never reach a
// client.
type Reason string

const (
	Accepted         Reason = "accepted"
	InvalidArgument  Reason = "invalid_argument"
	SessionNotFound  Reason = "session_not_found"
	BindingMismatch  Reason = "binding_mismatch"
	ProofInvalid     Reason = "proof_invalid"
)

// Store is the subset of ChallengeStore the engine depends on. It is
// an interface so the engine can be tested without a real SQLite
// backing store and so the CPU-bound exponentiation offload (Exponent)
// can be swapped independently of persistence.
type Store interface {
	Put(ctx context.Context, challengeID, username string, r, c *big.Int, ttlSeconds int64) error
	Get(ctx context.Context, challengeID string) (username string, r, c *big.Int, ok bool, err error)
	// Delete performs an unconditional, at-most-once-effective removal
	// and reports whether a record was actually present and removed.
	Delete(ctx context.Context, challengeID string) (wasPresent bool, err error)
}

// Exponent offloads a single modular exponentiation to a bounded CPU
// worker pool (see internal/worker) rather than running it inline on
// the calling goroutine — required by §5 of the specification so that
// a burst of verify calls, each costing two millisecond-scale
// exponentiations, cannot starve the HTTP I/O layer.
type Exponent func(ctx context.Context, base, exp *big.Int) (*big.Int, error)

// ChallengeTTLSeconds is the fixed lifetime of a ChallengeRecord from
// the moment it is written, per §3 of the specification.
const ChallengeTTLSeconds = 300

// Engine orchestrates IssueChallenge and VerifyProof, enforcing every
// invariant in §4.4 of the specification. It holds no per-session
// mutable state of its own; all session state lives in Store.
type Engine struct {
	Group    Group
	Random   RandomSource
	Store    Store
	Exponent Exponent
}

// NewEngine constructs an Engine over the fixed Standard group.
func NewEngine(store Store, exponent Exponent) Engine {
	return Engine{
		Group:    Standard,
		Random:   NewRandomSource(Standard),
		Store:    store,
		Exponent: exponent,
	}
}

// Challenge is the response to a successful IssueChallenge call.
type Challenge struct {
	ChallengeID string
	R           *big.Int
	C           *big.Int
	P           *big.Int
	Q           *big.Int
	G           *big.Int
}

// IssueChallenge validates the client's commitment clientR, derives
// the challenge scalar c = H(clientR, yForUser, username), and
// persists the binding under a fresh challenge id. yForUser must be
// fixed by the caller at issue time — the real Y for a registered
// user, or a decoy for an unregistered one — and is never re-fetched
// by this call, so a key rotation between issue and verify cannot
// split the hash (§4.4).
func (e Engine) IssueChallenge(ctx context.Context, username string, clientR, yForUser *big.Int) (Challenge, Reason, error) {
	if !e.Group.IsValidElement(clientR) {
		return Challenge{}, InvalidArgument, nil
	}

	challengeID := e.Random.NewChallengeID()
	c := ChallengeHash(e.Group, clientR, yForUser, username)

	if err := e.Store.Put(ctx, challengeID, username, clientR, c, ChallengeTTLSeconds); err != nil {
		return Challenge{}, "", err
	}

	return Challenge{
		ChallengeID: challengeID,
		R:           clientR,
		C:           c,
		P:           e.Group.P,
		Q:           e.Group.Q,
		G:           e.Group.G,
	}, Accepted, nil
}

// VerifyProof checks the Schnorr verification equation
// g^s ≡ R · Y^c (mod p) against the challenge record stored under
// challengeID, consuming the record exactly once regardless of
// outcome.
//
// y is the caller's freshly re-fetched public key for claimedUsername
// (the facade is responsible for that lookup; the engine never talks
// to the user directory). s is a non-negative integer supplied by the
// client and reduced mod q before use, per §4.4 step 4.
func (e Engine) VerifyProof(ctx context.Context, challengeID string, s *big.Int, clientREchoed *big.Int, claimedUsername string, y *big.Int) (Reason, error) {
	if s == nil || s.Sign() < 0 {
		// Malformed/negative s never reaches the store at all; there is
		// nothing to consume, so this is the one path that does not
		// attempt a delete. A legitimate retry still needs a fresh
		// challenge since the server does not know whether the client
		// already spent this one.
		return InvalidArgument, nil
	}

	storedUsername, storedR, storedC, ok, err := e.Store.Get(ctx, challengeID)
	if err != nil {
		return "", err
	}

	// Always attempt the delete once we've looked the record up, even
	// on a binding mismatch below — a session must not survive a
	// failed verify attempt (§4.4: "do not abort after get succeeds
	// until delete has been attempted").
	var wasPresent bool
	if ok {
		wasPresent, err = e.Store.Delete(ctx, challengeID)
		if err != nil {
			return "", err
		}
	}

	if !ok || !wasPresent {
		// Either genuinely absent/expired, or lost the race to a
		// concurrent verify of the same id — both collapse to the same
		// externally-visible outcome (§4.4, §8 property 4 and S6).
		return SessionNotFound, nil
	}

	if storedUsername != claimedUsername {
		return BindingMismatch, nil
	}
	if storedR.Cmp(clientREchoed) != 0 {
		return BindingMismatch, nil
	}

	// Use the challenge scalar exactly as computed and persisted at
	// issue time (§3 ChallengeRecord invariant: c is a pure function of
	// the stored (R, Y_at_issue, username)). Re-deriving it here from a
	// freshly re-fetched Y would silently validate against whatever key
	// is registered *now*, defeating the point of fixing Y at issue
	// time (§4.4).
	sReduced := e.Group.ScalarReduce(s)

	lhs, err := e.Exponent(ctx, e.Group.G, sReduced)
	if err != nil {
		return "", err
	}

	yc, err := e.Exponent(ctx, y, storedC)
	if err != nil {
		return "", err
	}
	rhs := e.Group.ModMul(storedR, yc)

	if lhs.Cmp(rhs) != 0 {
		return ProofInvalid, nil
	}
	return Accepted, nil
}

// ErrUnknownReason is returned by callers that fail to map an internal
// Reason onto an HTTP status; it should never surface to a client.
var ErrUnknownReason = errors.New("zkp: unknown reason code")
