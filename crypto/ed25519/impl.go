// Package ed25519 implements RFC 8032 Ed25519 signing and cofactored
// verification on top of constant-time modular arithmetic.
package ed25519

import (
	"crypto/sha512"
	"io"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/bigmod"
)

// KeyPair holds the expanded form of a seed.
type KeyPair struct {
	seed   [32]byte
	scalar []byte // clamped, big-endian
	prefix [32]byte
	pub    PublicKey
}

// NewKeyPairFromSeed expands a 32 byte seed. It panics if the seed has the
// wrong length.
func NewKeyPairFromSeed(seed []byte) *KeyPair {
	if len(seed) != PrivateKeySize {
		panic("ed25519: bad seed length")
	}
	h := sha512.Sum512(seed)
	s := h[:32]
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64

	kp := &KeyPair{scalar: make([]byte, 32)}
	copy(kp.seed[:], seed)
	copy(kp.scalar, s)
	reverse(kp.scalar)
	copy(kp.prefix[:], h[32:])

	c := curve()
	copy(kp.pub[:], c.encode(c.scalarMult(c.base, kp.scalar)))
	return kp
}

// GenerateKeyPair reads a fresh seed from rng.
func GenerateKeyPair(rng io.Reader) (*KeyPair, error) {
	var seed [32]byte
	if _, err := io.ReadFull(rng, seed[:]); err != nil {
		return nil, crypto.RandomSourceFailure(err)
	}
	return NewKeyPairFromSeed(seed[:]), nil
}

func (k *KeyPair) PublicKey() PublicKey { return k.pub }

func (k *KeyPair) PrivateKey() *PrivateKey {
	out := PrivateKey(k.seed)
	return &out
}

// Sign produces the deterministic signature of message.
func (k *KeyPair) Sign(message []byte) []byte {
	c := curve()

	h := sha512.New()
	h.Write(k.prefix[:])
	h.Write(message)
	r := c.reduceScalar(h.Sum(nil))

	R := c.encode(c.scalarMult(c.base, r.Bytes(c.l)))

	h.Reset()
	h.Write(R)
	h.Write(k.pub[:])
	h.Write(message)
	kh := c.reduceScalar(h.Sum(nil))

	// S = r + k·s mod l
	be := make([]byte, 32)
	copy(be, k.scalar)
	s := bigmod.NewNat().Mod(bigmod.NatFromBytes(be), c.l)
	S := kh.Mul(s, c.l).Add(r, c.l).Bytes(c.l)
	reverse(S)

	sig := make([]byte, SignatureSize)
	copy(sig, R)
	copy(sig[32:], S)
	return sig
}

// Verify reports whether sig is a valid signature of message by pub. It
// rejects non-canonical S and point encodings as well as small order A and
// R, and checks the cofactored equation [8][S]B = [8]R + [8][k]A.
func Verify(pub, message, sig []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	c := curve()

	A, err := c.decode(pub)
	if err != nil || c.isIdentity(c.mulByCofactor(A)) {
		return false
	}
	R, err := c.decode(sig[:32])
	if err != nil || c.isIdentity(c.mulByCofactor(R)) {
		return false
	}
	sBytes := make([]byte, 32)
	copy(sBytes, sig[32:])
	reverse(sBytes)
	S, err := bigmod.NewNat().SetBytes(sBytes, c.l)
	if err != nil {
		return false
	}

	h := sha512.New()
	h.Write(sig[:32])
	h.Write(pub)
	h.Write(message)
	k := c.reduceScalar(h.Sum(nil))

	lhs := c.mulByCofactor(c.scalarMult(c.base, S.Bytes(c.l)))
	rhs := c.mulByCofactor(c.addPoints(R, c.scalarMult(A, k.Bytes(c.l))))
	return c.equal(lhs, rhs)
}
