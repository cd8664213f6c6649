package ecdsa

import (
	"encoding/asn1"
	"math/big"
	"sync"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/bigmod"
	"github.com/signatory-io/sigengine/crypto/cose"
	"github.com/signatory-io/sigengine/crypto/oiddb"
)

type Curve uint

const (
	NIST_P256 Curve = 1 + iota
	NIST_P384
)

func (c Curve) String() string {
	switch c {
	case NIST_P256:
		return "NIST P-256"
	case NIST_P384:
		return "NIST P-384"
	default:
		return "Unknown"
	}
}

func (c Curve) Algorithm() crypto.Algorithm {
	switch c {
	case NIST_P256:
		return crypto.ECDSA_P256
	case NIST_P384:
		return crypto.ECDSA_P384
	default:
		return 0
	}
}

func (c Curve) COSE() cose.Curve {
	switch c {
	case NIST_P256:
		return cose.CrvP256
	case NIST_P384:
		return cose.CrvP384
	default:
		return 0
	}
}

// FieldBytes returns the length of an encoded coordinate or scalar.
func (c Curve) FieldBytes() int {
	switch c {
	case NIST_P256:
		return 32
	case NIST_P384:
		return 48
	default:
		return 0
	}
}

func (c Curve) OID() asn1.ObjectIdentifier {
	switch c {
	case NIST_P256:
		return oiddb.P256
	case NIST_P384:
		return oiddb.P384
	default:
		return nil
	}
}

func CurveFromOID(oid asn1.ObjectIdentifier) Curve {
	switch {
	case oid.Equal(oiddb.P256):
		return NIST_P256
	case oid.Equal(oiddb.P384):
		return NIST_P384
	default:
		return 0
	}
}

func CurveFromCOSE(crv cose.Curve) Curve {
	switch crv {
	case cose.CrvP256:
		return NIST_P256
	case cose.CrvP384:
		return NIST_P384
	default:
		return 0
	}
}

type curveParams struct {
	size int
	p    *bigmod.Modulus
	n    *bigmod.Modulus
	b    *bigmod.Nat
	g    *point

	pMinus2  []byte // field inversion exponent
	nMinus2  []byte // scalar inversion exponent
	sqrtExp  []byte // (p+1)/4, p = 3 mod 4 for both curves
	identity *point
}

func hex(src string) *big.Int {
	v, ok := new(big.Int).SetString(src, 16)
	if !ok {
		panic("invalid hex value")
	}
	return v
}

func newCurveParams(size int, p, n, b, gx, gy string) *curveParams {
	fill := func(v *big.Int) []byte { return v.FillBytes(make([]byte, size)) }
	pv, nv := hex(p), hex(n)
	pm, err := bigmod.NewModulus(fill(pv))
	if err != nil {
		panic(err)
	}
	nm, err := bigmod.NewModulus(fill(nv))
	if err != nil {
		panic(err)
	}
	two := big.NewInt(2)
	elem := func(s string) *bigmod.Nat {
		v, err := bigmod.NewNat().SetBytes(fill(hex(s)), pm)
		if err != nil {
			panic(err)
		}
		return v
	}
	sqrtExp := new(big.Int).Add(pv, big.NewInt(1))
	sqrtExp.Rsh(sqrtExp, 2)

	c := &curveParams{
		size:    size,
		p:       pm,
		n:       nm,
		b:       elem(b),
		pMinus2: fill(new(big.Int).Sub(pv, two)),
		nMinus2: fill(new(big.Int).Sub(nv, two)),
		sqrtExp: fill(sqrtExp),
	}
	c.identity = &point{
		x: bigmod.NewNat().SetUint(0, pm),
		y: bigmod.NewNat().SetUint(1, pm),
		z: bigmod.NewNat().SetUint(0, pm),
	}
	c.g = &point{x: elem(gx), y: elem(gy), z: bigmod.NewNat().SetUint(1, pm)}
	return c
}

var p256 = sync.OnceValue(func() *curveParams {
	return newCurveParams(32,
		"ffffffff00000001000000000000000000000000ffffffffffffffffffffffff",
		"ffffffff00000000ffffffffffffffffbce6faada7179e84f3b9cac2fc632551",
		"5ac635d8aa3a93e7b3ebbd55769886bc651d06b0cc53b0f63bce3c3e27d2604b",
		"6b17d1f2e12c4247f8bce6e563a440f277037d812deb33a0f4a13945d898c296",
		"4fe342e2fe1a7f9b8ee7eb4a7c0f9e162bce33576b315ececbb6406837bf51f5",
	)
})

var p384 = sync.OnceValue(func() *curveParams {
	return newCurveParams(48,
		"fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffeffffffff0000000000000000ffffffff",
		"ffffffffffffffffffffffffffffffffffffffffffffffffc7634d81f4372ddf581a0db248b0a77aecec196accc52973",
		"b3312fa7e23ee7e4988e056be3f82d19181d9c6efe8141120314088f5013875ac656398d8a2ed19d2a85c8edd3ec2aef",
		"aa87ca22be8b05378eb1c71ef320ad746e1d3b628ba79b9859f741e082542a385502f25dbf55296c3a545e3872760ab7",
		"3617de4a96262c6f5d9e98bf9292dc29f8f41dbd289a147ce9da3113b5f0b8c00a60b1ce1d7e819d7a431d7c90ea0e5f",
	)
})

func (c Curve) params() *curveParams {
	switch c {
	case NIST_P256:
		return p256()
	case NIST_P384:
		return p384()
	default:
		return nil
	}
}
