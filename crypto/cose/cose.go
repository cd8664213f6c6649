// Package cose holds the subset of COSE (RFC 9052, RFC 9053, RFC 8230) key
// identifiers used to store and fingerprint keys.
package cose

import (
	"github.com/fxamacker/cbor/v2"
)

type KeyType int64

const (
	KeyTypeOKP KeyType = 1 + iota
	KeyTypeEC2
	KeyTypeRSA
	KeyTypeSymmetric
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeOKP:
		return "OKP"
	case KeyTypeEC2:
		return "EC2"
	case KeyTypeRSA:
		return "RSA"
	case KeyTypeSymmetric:
		return "Symmetric"
	default:
		return "Unknown"
	}
}

type Algorithm int64

const (
	AlgRS1   Algorithm = -65535
	AlgRS512 Algorithm = -259
	AlgRS384 Algorithm = -258
	AlgRS256 Algorithm = -257
	AlgPS512 Algorithm = -39
	AlgPS384 Algorithm = -38
	AlgPS256 Algorithm = -37
	AlgES512 Algorithm = -36
	AlgES384 Algorithm = -35
	AlgEdDSA Algorithm = -8
	AlgES256 Algorithm = -7
)

func (a Algorithm) String() string {
	switch a {
	case AlgRS1:
		return "RS1"
	case AlgRS512:
		return "RS512"
	case AlgRS384:
		return "RS384"
	case AlgRS256:
		return "RS256"
	case AlgPS512:
		return "PS512"
	case AlgPS384:
		return "PS384"
	case AlgPS256:
		return "PS256"
	case AlgES512:
		return "ES512"
	case AlgES384:
		return "ES384"
	case AlgEdDSA:
		return "EdDSA"
	case AlgES256:
		return "ES256"
	default:
		return "Unknown"
	}
}

const (
	AttrKty = 1 + iota
	AttrKid
	AttrAlg
	AttrKeyOps
	AttrBaseIV
)

const (
	AttrOKP_Crv = -1
	AttrOKP_X   = -2
	AttrOKP_D   = -4

	AttrEC2_Crv = -1
	AttrEC2_X   = -2
	AttrEC2_Y   = -3
	AttrEC2_D   = -4

	AttrRSA_N    = -1
	AttrRSA_E    = -2
	AttrRSA_D    = -3
	AttrRSA_P    = -4
	AttrRSA_Q    = -5
	AttrRSA_dP   = -6
	AttrRSA_dQ   = -7
	AttrRSA_qInv = -8
)

type Key map[int64]any

// GetAttr returns an integer attribute or zero if it is missing.
func GetAttr[T ~int64](k Key, attr int64) T {
	switch v := k[attr].(type) {
	case int64:
		return T(v)
	case uint64:
		return T(v)
	case T:
		return v
	default:
		return 0
	}
}

// GetBytes returns a byte string attribute.
func GetBytes(k Key, attr int64) ([]byte, bool) {
	v, ok := k[attr].([]byte)
	return v, ok
}

func (k Key) Kty() KeyType {
	return GetAttr[KeyType](k, AttrKty)
}

func (k Key) Kid() []byte {
	v, _ := k[AttrKid].([]byte)
	return v
}

func (k Key) Alg() Algorithm {
	return GetAttr[Algorithm](k, AttrAlg)
}

// Encode uses the core deterministic encoding so that equal keys produce
// equal fingerprints.
func (k Key) Encode() []byte {
	out, err := encMode.Marshal(k)
	if err != nil {
		panic(err)
	}
	return out
}

func DecodeKey(data []byte) (key Key, err error) {
	err = cbor.Unmarshal(data, &key)
	return
}

var encMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

type Curve int64

const (
	CrvP256 Curve = 1 + iota
	CrvP384
	CrvP521
	CrvX25519
	CrvX448
	CrvEd25519
)

func (c Curve) String() string {
	switch c {
	case CrvP256:
		return "NIST P-256"
	case CrvP384:
		return "NIST P-384"
	case CrvP521:
		return "NIST P-521"
	case CrvX25519:
		return "X25519"
	case CrvX448:
		return "X448"
	case CrvEd25519:
		return "Ed25519"
	default:
		return "Unknown"
	}
}
