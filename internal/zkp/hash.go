package zkp

import (
	"crypto/sha256"
	"math/big"
)

// ChallengeHash computes c = H(R, Y, username), binding the client's
// commitment, the claimed public key, and the claimed identity into a
// single challenge scalar so a proof crafted for one user's key cannot
// be replayed against another's.
//
// Encoding is exact and wire-visible: R and Y are serialised as
// lowercase hexadecimal of their big-endian unsigned magnitude (see
// EncodeHex), concatenated with the UTF-8 bytes of username, fed to
// SHA-256, and the 32-byte digest is interpreted as a big-endian
// unsigned integer and reduced modulo q. Using the textual hex
// encoding rather than raw bytes is mandatory — client and server must
// agree bit-for-bit, and a raw encoding would diverge silently.
func ChallengeHash(group Group, r, y *big.Int, username string) *big.Int {
	h := sha256.New()
	h.Write([]byte(EncodeHex(r)))
	h.Write([]byte(EncodeHex(y)))
	h.Write([]byte(username))

	digest := h.Sum(nil)
	c := new(big.Int).SetBytes(digest)
	return group.ScalarReduce(c)
}
