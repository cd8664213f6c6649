package ecdsa

import (
	"errors"
	"io"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/bigmod"
	"github.com/signatory-io/sigengine/crypto/ct"
)

const maxSignAttempts = 32

var errSignRetries = errors.New("ecdsa: failed to find a usable nonce")

// hashToNat converts a digest to an integer modulo n as described in SEC 1
// section 4.1.3 step 5. Both curves have an order with a whole number of
// bytes, so truncation happens on byte boundaries.
func (c *curveParams) hashToNat(digest []byte) *bigmod.Nat {
	if len(digest) > c.size {
		digest = digest[:c.size]
	}
	return bigmod.NewNat().Mod(bigmod.NatFromBytes(digest), c.n)
}

// randomScalar draws a uniformly distributed non-zero scalar by reducing
// size+16 random bytes modulo n.
func (c *curveParams) randomScalar(rng io.Reader) (*bigmod.Nat, error) {
	buf := make([]byte, c.size+16)
	for range maxSignAttempts {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return nil, crypto.RandomSourceFailure(err)
		}
		k := bigmod.NewNat().Mod(bigmod.NatFromBytes(buf), c.n)
		if !k.IsZero().Bool() {
			return k, nil
		}
	}
	return nil, crypto.RandomSourceFailure(errSignRetries)
}

// GeneratePrivateKey returns a new key with a scalar drawn from rng.
func GeneratePrivateKey(rng io.Reader, curve Curve) (*PrivateKey, error) {
	c := curve.params()
	if c == nil {
		return nil, ErrUnknownCurve
	}
	d, err := c.randomScalar(rng)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{Curve: curve, D: d.Bytes(c.n)}, nil
}

// SignDigest signs a precomputed digest with a fresh random nonce.
func (p *PrivateKey) SignDigest(rng io.Reader, digest []byte) (*Signature, error) {
	c := p.Curve.params()
	if c == nil {
		return nil, ErrUnknownCurve
	}
	d, err := bigmod.NewNat().SetBytes(p.D, c.n)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	e := c.hashToNat(digest)

	for range maxSignAttempts {
		k, err := c.randomScalar(rng)
		if err != nil {
			return nil, err
		}
		R := c.scalarBaseMult(k.Bytes(c.n))
		x, _ := c.affine(R)
		r := bigmod.NewNat().Mod(bigmod.NatFromBytes(x.Bytes(c.p)), c.n)
		if r.IsZero().Bool() {
			continue
		}
		// s = k⁻¹(e + r·d) mod n
		kInv := bigmod.NewNat().Exp(k, c.nMinus2, c.n)
		s := r.Clone().Mul(d, c.n).Add(e, c.n).Mul(kInv, c.n)
		if s.IsZero().Bool() {
			continue
		}
		return &Signature{Curve: p.Curve, R: r.Bytes(c.n), S: s.Bytes(c.n)}, nil
	}
	return nil, errSignRetries
}

// Verify reports whether r and s form a valid signature of digest. r and s
// are big-endian integers that must lie in [1, n-1].
func Verify(pub *PublicKey, digest, r, s []byte) bool {
	c := pub.Curve.params()
	if c == nil || len(r) > c.size || len(s) > c.size {
		return false
	}
	rNat, err := bigmod.NewNat().SetBytes(r, c.n)
	if err != nil || rNat.IsZero().Bool() {
		return false
	}
	sNat, err := bigmod.NewNat().SetBytes(s, c.n)
	if err != nil || sNat.IsZero().Bool() {
		return false
	}
	q, err := pub.point()
	if err != nil {
		return false
	}

	e := c.hashToNat(digest)
	w := bigmod.NewNat().Exp(sNat, c.nMinus2, c.n)
	u1 := e.Mul(w, c.n)
	u2 := rNat.Clone().Mul(w, c.n)

	R := c.addPoints(c.scalarBaseMult(u1.Bytes(c.n)), c.scalarMult(q, u2.Bytes(c.n)))
	if c.isIdentity(R).Bool() {
		return false
	}
	x, _ := c.affine(R)
	v := bigmod.NewNat().Mod(bigmod.NatFromBytes(x.Bytes(c.p)), c.n)
	return v.Equal(rNat) == ct.True
}

// VerifySignature checks sig against a precomputed digest.
func (p *PublicKey) VerifySignature(sig *Signature, digest []byte) bool {
	return sig.Curve == p.Curve && Verify(p, digest, sig.R, sig.S)
}
