// Package zkp implements the Schnorr identification protocol rendered
// non-interactive within one session via a Fiat-Shamir hash: a client
// proves knowledge of a private scalar x without transmitting it, and
// the server verifies the proof against the public element Y = g^x.
package zkp

import "math/big"

// Group holds the fixed Schnorr group (p, q, g) and the numeric
// validity predicates that operate over it. p is the RFC 3526
// 1536-bit MODP Group safe prime, q = (p-1)/2 is its prime subgroup
// order, and g = 2 generates the order-q subgroup. These values are
// wire-visible and must be byte-identical across every deployment of
// this service.
type Group struct {
	P *big.Int
	Q *big.Int
	G *big.Int
}

// rfc3526Hex is the RFC 3526 1536-bit MODP Group prime.
const rfc3526Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
	"129024E088A67CC74020BBEA63B139B22514A08798E3404" +
	"DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C" +
	"245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406" +
	"B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE" +
	"65381FFFFFFFFFFFFFFFFF"

// Standard is the fixed RFC 3526 1536-bit MODP Group used by every
// deployment of this service. It is initialised once at package load
// and never mutated.
var Standard = newStandardGroup()

func newStandardGroup() Group {
	p, ok := new(big.Int).SetString(rfc3526Hex, 16)
	if !ok {
		panic("zkp: failed to parse RFC 3526 1536-bit MODP prime")
	}

	q := new(big.Int).Rsh(p, 1) // q = (p-1)/2, since p is odd: (p-1)>>1 == (p-1)/2
	g := big.NewInt(2)

	return Group{P: p, Q: q, G: g}
}

// IsValidElement reports whether x is a valid GroupElement: strictly
// greater than 1 and strictly less than p. Elements equal to 0 or 1
// are rejected as trivial or fixed-point values.
func (g Group) IsValidElement(x *big.Int) bool {
	if x == nil {
		return false
	}
	one := big.NewInt(1)
	return x.Cmp(one) > 0 && x.Cmp(g.P) < 0
}

// IsValidScalar reports whether k is a valid Scalar: 0 <= k < q.
func (g Group) IsValidScalar(k *big.Int) bool {
	if k == nil {
		return false
	}
	return k.Sign() >= 0 && k.Cmp(g.Q) < 0
}

// ModPow computes base^exp mod p.
func (g Group) ModPow(base, exp *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, g.P)
}

// ModMul computes a*b mod p.
func (g Group) ModMul(a, b *big.Int) *big.Int {
	res := new(big.Int).Mul(a, b)
	return res.Mod(res, g.P)
}

// ScalarReduce reduces n modulo q, returning a non-negative result.
func (g Group) ScalarReduce(n *big.Int) *big.Int {
	res := new(big.Int).Mod(n, g.Q)
	if res.Sign() < 0 {
		res.Add(res, g.Q)
	}
	return res
}

// IsInSubgroup reports whether x^q == 1 (mod p), i.e. x lies in the
// order-q subgroup generated by g. This is a stricter check than
// IsValidElement and is optional per the protocol (see package
// userdirectory, which runs it once at registration to close the
// small-subgroup gap that the range check alone leaves open).
func (g Group) IsInSubgroup(x *big.Int) bool {
	return g.ModPow(x, g.Q).Cmp(big.NewInt(1)) == 0
}
