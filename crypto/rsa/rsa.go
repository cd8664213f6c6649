// Package rsa implements RSA public keys, PKCS #1 v1.5 and PSS signature
// verification, and CRT signing with blinding.
package rsa

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/bigmod"
	"github.com/signatory-io/sigengine/crypto/cose"
	"github.com/signatory-io/sigengine/crypto/ct"
	"github.com/signatory-io/sigengine/crypto/der"
)

// KeySize bounds the accepted modulus length in bits, inclusive.
type KeySize struct {
	Min, Max int
}

const (
	MinPublicExponent = 3
	MaxPublicExponent = 1<<33 - 1
)

// SigningKeySize bounds the private keys accepted for signing.
var SigningKeySize = KeySize{Min: 2048, Max: 8192}

var (
	errModulusSize = errors.New("rsa: modulus length is out of range")
	errModulus     = errors.New("rsa: invalid modulus")
	errExponent    = errors.New("rsa: invalid public exponent")
)

type PublicKey struct {
	n      *bigmod.Modulus
	nBytes []byte
	e      uint64
}

func trimLeadingZeros(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

// ParsePublicKey parses RSAPublicKey ::= SEQUENCE{modulus, publicExponent}
// and checks the modulus length against size before any arithmetic.
func ParsePublicKey(data []byte, size KeySize) (*PublicKey, error) {
	n, e, err := der.ParseRSAPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("rsa: %w", err)
	}
	return NewPublicKey(n, e, size)
}

// NewPublicKey creates a public key from big-endian modulus and exponent.
func NewPublicKey(n, e []byte, size KeySize) (*PublicKey, error) {
	n = trimLeadingZeros(n)
	if len(n) == 0 {
		return nil, errModulus
	}
	bitLen := (len(n)-1)*8 + bits.Len8(n[0])
	if bitLen < size.Min || bitLen > size.Max {
		return nil, errModulusSize
	}
	if n[len(n)-1]&1 == 0 {
		return nil, errModulus
	}
	e = trimLeadingZeros(e)
	if len(e) > 8 {
		return nil, errExponent
	}
	var buf [8]byte
	copy(buf[8-len(e):], e)
	exp := binary.BigEndian.Uint64(buf[:])
	if exp < MinPublicExponent || exp > MaxPublicExponent || exp&1 == 0 {
		return nil, errExponent
	}
	m, err := bigmod.NewModulus(n)
	if err != nil {
		return nil, errModulus
	}
	return &PublicKey{
		n:      m,
		nBytes: bytes.Clone(n),
		e:      exp,
	}, nil
}

// Size returns the modulus length in bytes, which is also the signature length.
func (p *PublicKey) Size() int   { return p.n.Size() }
func (p *PublicKey) BitLen() int { return p.n.BitLen() }
func (p *PublicKey) E() uint64   { return p.e }
func (p *PublicKey) N() []byte   { return bytes.Clone(p.nBytes) }

func (p *PublicKey) exponentBytes() []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], p.e)
	return trimLeadingZeros(buf[:])
}

// Bytes returns the DER encoded RSAPublicKey.
func (p *PublicKey) Bytes() []byte {
	return der.MarshalRSAPublicKey(p.nBytes, p.exponentBytes())
}

func (p *PublicKey) PublicKeyType() crypto.Algorithm { return crypto.RSA }

func (p *PublicKey) COSE() cose.Key {
	return cose.Key{
		cose.AttrKty:   cose.KeyTypeRSA,
		cose.AttrRSA_N: bytes.Clone(p.nBytes),
		cose.AttrRSA_E: p.exponentBytes(),
	}
}

func (p *PublicKey) Equal(other crypto.PublicKey) bool {
	if oth, ok := other.(*PublicKey); ok {
		return oth.e == p.e && bytes.Equal(oth.nBytes, p.nBytes)
	}
	return false
}

// recover returns s^e mod n as a Size() long block. Signatures that are not
// exactly Size() bytes, are zero or not smaller than n are rejected.
func (p *PublicKey) recover(sig []byte) ([]byte, bool) {
	if len(sig) != p.Size() {
		return nil, false
	}
	s, err := bigmod.NewNat().SetBytes(sig, p.n)
	if err != nil {
		return nil, false
	}
	if s.IsZero().Bool() {
		return nil, false
	}
	// The exponent is public so the variable-time path leaks nothing secret.
	m := bigmod.NewNat().ExpShortVarTime(s, p.e, p.n)
	return m.Bytes(p.n), true
}

// checks performs the constant-time comparisons of a padding check. A
// non-nil observe sees every comparison with its operand length.
type checks struct {
	observe func(op string, n int)
}

func (c checks) note(op string, n int) {
	if c.observe != nil {
		c.observe(op, n)
	}
}

func (c checks) equal(op string, a, b []byte) ct.Choice {
	c.note(op, len(a))
	return ct.BytesEqual(a, b)
}

func (c checks) equalByte(op string, a, b byte) ct.Choice {
	c.note(op, 1)
	return ct.ByteEq(a, b)
}
