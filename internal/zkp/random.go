package zkp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// RandomSource produces the randomness the protocol needs: uniformly
// random scalars in [1, q-1] (for nonces, on the client side that
// consumes this same package's types), uniformly random elements in
// (1, p-1) used as decoy Y values, and unique 128-bit challenge
// identifiers.
type RandomSource struct {
	group Group
}

// NewRandomSource returns a RandomSource bound to group.
func NewRandomSource(group Group) RandomSource {
	return RandomSource{group: group}
}

// RandomScalar returns a uniformly random integer in [1, q-1].
func (r RandomSource) RandomScalar() (*big.Int, error) {
	// q-1 is the exclusive upper bound for rand.Int; we want [1, q-1]
	// inclusive, so sample in [0, q-2] and add 1.
	upper := new(big.Int).Sub(r.group.Q, big.NewInt(1))
	if upper.Sign() <= 0 {
		return nil, fmt.Errorf("zkp: group order too small to sample a scalar")
	}
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return nil, fmt.Errorf("zkp: failed to read random scalar: %w", err)
	}
	return n.Add(n, big.NewInt(1)), nil
}

// RandomElement returns a uniformly random integer in (1, p-1),
// suitable as a decoy public key Y. It is drawn fresh on every call
// and is never persisted or logged, per the design note in §9 of the
// specification: a stable per-username decoy would leak timing
// information about cache warmth.
func (r RandomSource) RandomElement() (*big.Int, error) {
	// Want a uniform value in [2, p-2] (the open interval (1, p-1)).
	// Shifted by -2 that's [0, p-4], a range of size p-3.
	span := new(big.Int).Sub(r.group.P, big.NewInt(3))
	if span.Sign() <= 0 {
		return nil, fmt.Errorf("zkp: group modulus too small to sample an element")
	}
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return nil, fmt.Errorf("zkp: failed to read random element: %w", err)
	}
	return n.Add(n, big.NewInt(2)), nil
}

// NewChallengeID returns a fresh collision-resistant 128-bit opaque
// identifier for a ChallengeRecord.
func (r RandomSource) NewChallengeID() string {
	return uuid.New().String()
}
