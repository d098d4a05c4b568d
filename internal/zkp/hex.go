package zkp

import (
	"fmt"
	"math/big"
	"regexp"
)

// hexPattern matches the wire format accepted for big-integer fields:
// one or more hex digits, case-insensitive.
var hexPattern = regexp.MustCompile(`^[0-9A-Fa-f]+$`)

// EncodeHex renders a non-negative integer as lowercase hexadecimal of
// its big-endian unsigned magnitude, with no leading zeros other than
// the single digit "0" for the value zero. This is the exact encoding
// ChallengeHash feeds to SHA-256 (see hash.go) and the exact encoding
// used on the wire (§6 of the specification); a raw byte encoding
// would diverge silently from a client computing the same hash.
func EncodeHex(n *big.Int) string {
	return n.Text(16)
}

// DecodeHex parses a hexadecimal string into a non-negative integer.
// Uppercase input is accepted; input that ValidHexString rejects is
// returned as an error.
func DecodeHex(s string) (*big.Int, error) {
	if !ValidHexString(s) {
		return nil, fmt.Errorf("zkp: invalid hex string %q", s)
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("zkp: failed to parse hex string %q", s)
	}
	return n, nil
}

// ValidHexString reports whether s matches the wire validation regex
// for big-integer fields: ^[0-9A-Fa-f]+$.
func ValidHexString(s string) bool {
	return s != "" && hexPattern.MatchString(s)
}
