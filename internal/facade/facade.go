// Package facade is the public surface of the service: it accepts
// register/challenge/verify requests, orchestrates the protocol
// engine together with the user directory, session token issuer, and
// audit bus, and is the only layer that talks to all four.
package facade

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/zkid-sh/zkauth/internal/audit"
	"github.com/zkid-sh/zkauth/internal/token"
	"github.com/zkid-sh/zkauth/internal/userdirectory"
	"github.com/zkid-sh/zkauth/internal/worker"
	"github.com/zkid-sh/zkauth/internal/zkp"
)

// usernamePattern is the wire validation rule for usernames: 3-32
// alphanumeric-or-underscore characters.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// ValidUsername reports whether username satisfies the wire format.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

var (
	ErrInvalidUsername  = errors.New("facade: invalid username")
	ErrInvalidHex       = errors.New("facade: invalid hex field")
	ErrInvalidPublicKey = errors.New("facade: public key out of range")
	ErrUsernameTaken    = errors.New("facade: username already registered")
	ErrAuthFailed       = errors.New("facade: authentication failed")
)

// Directory is the subset of userdirectory.Directory the facade
// depends on, narrowed to an interface so it can be exercised with a
// fake in tests without a real database.
type Directory interface {
	Register(username string, y *big.Int, salt string) error
	GetByUsername(username string) (*userdirectory.Record, error)
	UpdateLastLogin(username string) error
}

// TokenIssuer is the subset of token.Issuer the facade depends on.
type TokenIssuer interface {
	Issue(username string) (string, time.Time, error)
}

// AuditRecorder is the subset of audit.Bus the facade depends on.
type AuditRecorder interface {
	Record(eventType audit.EventType, username, ipAddress, detail string)
}

// Facade wires the protocol engine to its external collaborators.
type Facade struct {
	engine    zkp.Engine
	directory Directory
	tokens    TokenIssuer
	audit     AuditRecorder
}

// New returns a Facade over engine, using directory for username/Y
// lookups, tokens to mint bearer credentials on successful verify, and
// audit to record the three observable events.
func New(engine zkp.Engine, directory Directory, tokens TokenIssuer, auditBus AuditRecorder) *Facade {
	return &Facade{
		engine:    engine,
		directory: directory,
		tokens:    tokens,
		audit:     auditBus,
	}
}

// RegisterResult is the outcome of a successful Register call.
type RegisterResult struct {
	Username string
}

// Register validates and persists a new user's public key.
func (f *Facade) Register(ctx context.Context, username, publicKeyYHex, salt, ipAddress string) (RegisterResult, error) {
	if !ValidUsername(username) {
		return RegisterResult{}, ErrInvalidUsername
	}
	if !zkp.ValidHexString(publicKeyYHex) {
		return RegisterResult{}, ErrInvalidHex
	}

	y, err := zkp.DecodeHex(publicKeyYHex)
	if err != nil {
		return RegisterResult{}, ErrInvalidHex
	}
	if !f.engine.Group.IsValidElement(y) {
		return RegisterResult{}, ErrInvalidPublicKey
	}

	if err := f.directory.Register(username, y, salt); err != nil {
		if errors.Is(err, userdirectory.ErrUserExists) {
			return RegisterResult{}, ErrUsernameTaken
		}
		if errors.Is(err, userdirectory.ErrInvalidPublicKey) {
			return RegisterResult{}, ErrInvalidPublicKey
		}
		return RegisterResult{}, fmt.Errorf("facade: register: %w", err)
	}

	f.audit.Record(audit.UserRegistered, username, ipAddress, "")
	return RegisterResult{Username: username}, nil
}

// ChallengeResult is the outcome of a successful Challenge call. It is
// returned identically in shape whether or not username is registered.
type ChallengeResult struct {
	ChallengeID string
	R           *big.Int
	C           *big.Int
	P           *big.Int
	Q           *big.Int
	G           *big.Int
}

// Challenge issues a fresh challenge for username against clientR. An
// unregistered username is indistinguishable from a registered one at
// this call: a freshly drawn decoy Y stands in for the real one, so
// the response shape, and the CPU work behind it (none — hashing is
// cheap; only verify dispatches to the worker pool), is identical
// either way.
func (f *Facade) Challenge(ctx context.Context, username, clientRHex string) (ChallengeResult, error) {
	if !ValidUsername(username) {
		return ChallengeResult{}, ErrInvalidUsername
	}
	if !zkp.ValidHexString(clientRHex) {
		return ChallengeResult{}, ErrInvalidHex
	}

	clientR, err := zkp.DecodeHex(clientRHex)
	if err != nil {
		return ChallengeResult{}, ErrInvalidHex
	}

	y, err := f.yForChallenge(username)
	if err != nil {
		return ChallengeResult{}, fmt.Errorf("facade: challenge: %w", err)
	}

	challenge, reason, err := f.engine.IssueChallenge(ctx, username, clientR, y)
	if err != nil {
		return ChallengeResult{}, fmt.Errorf("facade: challenge: %w", err)
	}
	if reason != zkp.Accepted {
		return ChallengeResult{}, ErrInvalidHex
	}

	return ChallengeResult{
		ChallengeID: challenge.ChallengeID,
		R:           challenge.R,
		C:           challenge.C,
		P:           challenge.P,
		Q:           challenge.Q,
		G:           challenge.G,
	}, nil
}

// yForChallenge returns the real Y for a registered user, or a fresh
// decoy for an unregistered one. The decoy is never persisted; a later
// verify against this challengeId fails at this same lookup.
func (f *Facade) yForChallenge(username string) (*big.Int, error) {
	rec, err := f.directory.GetByUsername(username)
	if err == nil {
		return rec.Y, nil
	}
	if !errors.Is(err, userdirectory.ErrUserNotFound) {
		return nil, err
	}
	return f.engine.Random.RandomElement()
}

// VerifyResult is the outcome of a successful Verify call.
type VerifyResult struct {
	Token     string
	Username  string
	ExpiresIn int64 // seconds
}

// Verify checks a proof against a previously issued challenge. Any
// rejection reason collapses to ErrAuthFailed; the caller must not
// attempt to recover or surface the internal reason.
func (f *Facade) Verify(ctx context.Context, challengeID, sHex, clientRHex, username, ipAddress string) (VerifyResult, error) {
	if !ValidUsername(username) {
		f.audit.Record(audit.LoginFailed, username, ipAddress, "invalid_argument")
		return VerifyResult{}, ErrAuthFailed
	}
	if !zkp.ValidHexString(sHex) || !zkp.ValidHexString(clientRHex) {
		f.audit.Record(audit.LoginFailed, username, ipAddress, "invalid_argument")
		return VerifyResult{}, ErrAuthFailed
	}

	s, err := zkp.DecodeHex(sHex)
	if err != nil {
		f.audit.Record(audit.LoginFailed, username, ipAddress, "invalid_argument")
		return VerifyResult{}, ErrAuthFailed
	}
	clientR, err := zkp.DecodeHex(clientRHex)
	if err != nil {
		f.audit.Record(audit.LoginFailed, username, ipAddress, "invalid_argument")
		return VerifyResult{}, ErrAuthFailed
	}

	// Re-fetch Y fresh rather than trusting anything cached from
	// Challenge time: the engine itself uses the value stored at issue
	// time for the hash, but the equality check must run against
	// whatever key is registered now. A username that is not registered
	// (decoy path) is rejected here as unknown_user, before the engine
	// runs, so it can never reach an accept.
	rec, err := f.directory.GetByUsername(username)
	if err != nil {
		if errors.Is(err, userdirectory.ErrUserNotFound) {
			f.audit.Record(audit.LoginFailed, username, ipAddress, "unknown_user")
			return VerifyResult{}, ErrAuthFailed
		}
		return VerifyResult{}, fmt.Errorf("facade: verify: %w", err)
	}

	reason, err := f.engine.VerifyProof(ctx, challengeID, s, clientR, username, rec.Y)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("facade: verify: %w", err)
	}
	if reason != zkp.Accepted {
		f.audit.Record(audit.LoginFailed, username, ipAddress, string(reason))
		return VerifyResult{}, ErrAuthFailed
	}

	if err := f.directory.UpdateLastLogin(username); err != nil {
		// Best-effort per the facade's failure-handling contract: never
		// turn a successful proof into a failed response over this.
		f.audit.Record(audit.LoginFailed, username, ipAddress, "last_login_update_failed")
	}

	tok, expiresAt, err := f.tokens.Issue(username)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("facade: verify: mint token: %w", err)
	}

	f.audit.Record(audit.LoginSuccess, username, ipAddress, "")

	return VerifyResult{
		Token:     tok,
		Username:  username,
		ExpiresIn: int64(time.Until(expiresAt).Seconds()),
	}, nil
}

// ExponentFromPool adapts a worker.Pool into a zkp.Exponent, the
// signature the engine uses to offload modPow calls off the calling
// goroutine.
func ExponentFromPool(pool *worker.Pool) zkp.Exponent {
	return func(ctx context.Context, base, exp *big.Int) (*big.Int, error) {
		return pool.Submit(ctx, func(ctx context.Context) (*big.Int, error) {
			return zkp.Standard.ModPow(base, exp), nil
		})
	}
}
