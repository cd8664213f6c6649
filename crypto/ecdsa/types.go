package ecdsa

import (
	"bytes"
	hexenc "encoding/hex"
	"errors"
	"fmt"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/bigmod"
	"github.com/signatory-io/sigengine/crypto/cose"
	"github.com/signatory-io/sigengine/crypto/der"
)

var (
	ErrInvalidPublicKey  = errors.New("ecdsa: invalid public key")
	ErrInvalidPrivateKey = errors.New("ecdsa: invalid private key")
	ErrUnknownCurve      = errors.New("ecdsa: unknown curve")
)

// PublicKey holds a validated affine point as fixed length big-endian
// coordinates.
type PublicKey struct {
	Curve Curve
	X, Y  []byte
}

func (p *PublicKey) Equal(other crypto.PublicKey) bool {
	if oth, ok := other.(*PublicKey); ok {
		return oth.Curve == p.Curve && bytes.Equal(oth.X, p.X) && bytes.Equal(oth.Y, p.Y)
	}
	return false
}

// Bytes returns the uncompressed point.
func (p *PublicKey) Bytes() []byte {
	out := make([]byte, 1+len(p.X)+len(p.Y))
	out[0] = 4
	copy(out[1:], p.X)
	copy(out[1+len(p.X):], p.Y)
	return out
}

// CompressedBytes returns the compressed point.
func (p *PublicKey) CompressedBytes() []byte {
	out := make([]byte, 1+len(p.X))
	out[0] = 2 | p.Y[len(p.Y)-1]&1
	copy(out[1:], p.X)
	return out
}

func (p *PublicKey) PublicKeyType() crypto.Algorithm { return p.Curve.Algorithm() }

func (p *PublicKey) COSE() cose.Key {
	return cose.Key{
		cose.AttrKty:     cose.KeyTypeEC2,
		cose.AttrEC2_Crv: p.Curve.COSE(),
		cose.AttrEC2_X:   bytes.Clone(p.X),
		cose.AttrEC2_Y:   p.Y[len(p.Y)-1]&1 != 0,
	}
}

func (p *PublicKey) String() string {
	return fmt.Sprintf("%v:%s:%s", p.Curve, hexenc.EncodeToString(p.X), hexenc.EncodeToString(p.Y))
}

// point decodes the key again, the exported coordinates may have been
// changed since construction.
func (p *PublicKey) point() (*point, error) {
	c := p.Curve.params()
	if c == nil {
		return nil, ErrUnknownCurve
	}
	return c.decodePoint(p.Bytes())
}

// NewPublicKey parses a compressed or uncompressed SEC 1 point and checks
// that it lies on the curve.
func NewPublicKey(data []byte, curve Curve) (*PublicKey, error) {
	c := curve.params()
	if c == nil {
		return nil, ErrUnknownCurve
	}
	pt, err := c.decodePoint(data)
	if err != nil {
		return nil, err
	}
	return newPublicKeyFromPoint(curve, pt), nil
}

// NewPublicKeyFromUncompressed accepts only the 0x04 form.
func NewPublicKeyFromUncompressed(data []byte, curve Curve) (*PublicKey, error) {
	if len(data) == 0 || data[0] != 4 {
		return nil, ErrInvalidPublicKey
	}
	return NewPublicKey(data, curve)
}

// UnmarshalCompressed recovers the point with the given x coordinate and y parity.
func UnmarshalCompressed(xBytes []byte, yOdd bool, curve Curve) (*PublicKey, error) {
	buf := make([]byte, 1+len(xBytes))
	buf[0] = 2
	if yOdd {
		buf[0] = 3
	}
	copy(buf[1:], xBytes)
	return NewPublicKey(buf, curve)
}

func newPublicKeyFromPoint(curve Curve, pt *point) *PublicKey {
	c := curve.params()
	enc := c.encodePoint(pt)
	return &PublicKey{
		Curve: curve,
		X:     enc[1 : 1+c.size],
		Y:     enc[1+c.size:],
	}
}

type PrivateKey struct {
	Curve Curve
	D     []byte
}

// NewPrivateKey checks that 0 < d < n.
func NewPrivateKey(curve Curve, d []byte) (*PrivateKey, error) {
	c := curve.params()
	if c == nil {
		return nil, ErrUnknownCurve
	}
	if len(d) > c.size {
		return nil, ErrInvalidPrivateKey
	}
	buf := make([]byte, c.size)
	copy(buf[c.size-len(d):], d)
	v, err := bigmod.NewNat().SetBytes(buf, c.n)
	if err != nil || v.IsZero().Bool() {
		return nil, ErrInvalidPrivateKey
	}
	return &PrivateKey{Curve: curve, D: buf}, nil
}

func (p *PrivateKey) PrivateKeyType() crypto.Algorithm { return p.Curve.Algorithm() }

func (p *PrivateKey) Public() crypto.PublicKey { return p.PublicKey() }

func (p *PrivateKey) PublicKey() *PublicKey {
	c := p.Curve.params()
	return newPublicKeyFromPoint(p.Curve, c.scalarBaseMult(p.D))
}

func (p *PrivateKey) COSE() cose.Key {
	pub := p.PublicKey()
	return cose.Key{
		cose.AttrKty:     cose.KeyTypeEC2,
		cose.AttrEC2_Crv: p.Curve.COSE(),
		cose.AttrEC2_X:   pub.X,
		cose.AttrEC2_Y:   pub.Y,
		cose.AttrEC2_D:   bytes.Clone(p.D),
	}
}

type Signature struct {
	Curve Curve
	R, S  []byte
}

// Bytes returns the fixed length r||s encoding.
func (s *Signature) Bytes() []byte {
	size := s.Curve.FieldBytes()
	out := make([]byte, 2*size)
	copy(out[size-len(s.R):size], s.R)
	copy(out[2*size-len(s.S):], s.S)
	return out
}

func (s *Signature) DERBytes() []byte {
	return der.MarshalECDSASignature(s.R, s.S)
}

func (s *Signature) SignatureAlgorithm() crypto.Algorithm { return s.Curve.Algorithm() }

func NewSignatureFromBytes(data []byte, curve Curve) (*Signature, error) {
	size := curve.FieldBytes()
	if size == 0 {
		return nil, ErrUnknownCurve
	}
	if len(data) != 2*size {
		return nil, fmt.Errorf("ecdsa: unexpected signature length: %d", len(data))
	}
	return &Signature{
		Curve: curve,
		R:     bytes.Clone(data[:size]),
		S:     bytes.Clone(data[size:]),
	}, nil
}

func NewSignatureFromDERBytes(data []byte, curve Curve) (*Signature, error) {
	r, s, err := der.ParseECDSASignature(data)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: %w", err)
	}
	if len(r) > curve.FieldBytes() || len(s) > curve.FieldBytes() {
		return nil, errors.New("ecdsa: signature component is too long")
	}
	return &Signature{Curve: curve, R: r, S: s}, nil
}
