package rsa

import (
	"bytes"
	"errors"
	"io"
	"math/big"
	"sync"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/bigmod"
	"github.com/signatory-io/sigengine/crypto/cose"
	"github.com/signatory-io/sigengine/crypto/der"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var (
	errPrivateKey    = errors.New("rsa: inconsistent private key")
	errMultiPrime    = errors.New("rsa: multi-prime keys are not supported")
	errFault         = errors.New("rsa: signature fault check failed")
	errBlinding      = errors.New("rsa: failed to generate a blinding value")
	errMalformedPKCS = errors.New("rsa: malformed PKCS #1 private key")
)

const maxBlindingAttempts = 10

type blinding struct {
	re   *bigmod.Nat // r^e mod n
	rInv *bigmod.Nat // r^-1 mod n
}

// PrivateKey is a two-prime RSA key with precomputed CRT parameters. Signing
// is serialized on the key because the blinding pair is refreshed on every
// call.
type PrivateKey struct {
	pub *PublicKey

	d, p, q, dP, dQ, qInv []byte

	pm, qm   *bigmod.Modulus
	qNat     *bigmod.Nat
	qInvNat  *bigmod.Nat
	dPPadded []byte
	dQPadded []byte

	mtx   sync.Mutex
	blind *blinding
}

func bigOf(b []byte) *big.Int { return new(big.Int).SetBytes(b) }

// NewPrivateKey validates the key material and derives the CRT parameters.
// The modulus length must be within SigningKeySize.
func NewPrivateKey(n, e, d, p, q []byte) (*PrivateKey, error) {
	pub, err := NewPublicKey(n, e, SigningKeySize)
	if err != nil {
		return nil, crypto.KeyRejected(err)
	}
	N, D, P, Q := bigOf(n), bigOf(d), bigOf(p), bigOf(q)
	one := big.NewInt(1)
	if P.Cmp(one) <= 0 || Q.Cmp(one) <= 0 || P.Cmp(Q) == 0 {
		return nil, crypto.KeyRejected(errPrivateKey)
	}
	if new(big.Int).Mul(P, Q).Cmp(N) != 0 {
		return nil, crypto.KeyRejected(errPrivateKey)
	}
	if D.Sign() <= 0 || D.Cmp(N) >= 0 {
		return nil, crypto.KeyRejected(errPrivateKey)
	}

	E := new(big.Int).SetUint64(pub.e)
	pMinus1 := new(big.Int).Sub(P, one)
	qMinus1 := new(big.Int).Sub(Q, one)
	DP := new(big.Int).Mod(D, pMinus1)
	DQ := new(big.Int).Mod(D, qMinus1)
	// d*e == 1 mod (p-1) and mod (q-1) is what CRT signing relies on.
	if new(big.Int).Mod(new(big.Int).Mul(DP, E), pMinus1).Cmp(one) != 0 ||
		new(big.Int).Mod(new(big.Int).Mul(DQ, E), qMinus1).Cmp(one) != 0 {
		return nil, crypto.KeyRejected(errPrivateKey)
	}

	pm, err := bigmod.NewModulus(p)
	if err != nil {
		return nil, crypto.KeyRejected(errPrivateKey)
	}
	qm, err := bigmod.NewModulus(q)
	if err != nil {
		return nil, crypto.KeyRejected(errPrivateKey)
	}
	qModP := bigmod.NewNat().Mod(bigmod.NatFromBytes(q), pm)
	qInvNat, ok := bigmod.NewNat().InverseVarTime(qModP, pm)
	if !ok {
		return nil, crypto.KeyRejected(errPrivateKey)
	}

	return &PrivateKey{
		pub:      pub,
		d:        D.Bytes(),
		p:        P.Bytes(),
		q:        Q.Bytes(),
		dP:       DP.Bytes(),
		dQ:       DQ.Bytes(),
		qInv:     trimLeadingZeros(qInvNat.Bytes(pm)),
		pm:       pm,
		qm:       qm,
		qNat:     bigmod.NatFromBytes(q),
		qInvNat:  qInvNat,
		dPPadded: DP.FillBytes(make([]byte, pm.Size())),
		dQPadded: DQ.FillBytes(make([]byte, qm.Size())),
	}, nil
}

// NewPrivateKeyWithCRT is like NewPrivateKey but also checks the supplied
// CRT parameters against the derived ones.
func NewPrivateKeyWithCRT(n, e, d, p, q, dP, dQ, qInv []byte) (*PrivateKey, error) {
	k, err := NewPrivateKey(n, e, d, p, q)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(trimLeadingZeros(dP), k.dP) ||
		!bytes.Equal(trimLeadingZeros(dQ), k.dQ) ||
		!bytes.Equal(trimLeadingZeros(qInv), k.qInv) {
		return nil, crypto.KeyRejected(errPrivateKey)
	}
	return k, nil
}

// ParsePKCS1PrivateKey parses a two-prime RSAPrivateKey structure.
func ParsePKCS1PrivateKey(data []byte) (*PrivateKey, error) {
	input := cryptobyte.String(data)
	var (
		seq                            cryptobyte.String
		version                        int
		n, e, d, p, q, dP, dQ, qInvVal []byte
	)
	if !input.ReadASN1(&seq, asn1.SEQUENCE) || !input.Empty() ||
		!seq.ReadASN1Integer(&version) {
		return nil, crypto.KeyRejected(errMalformedPKCS)
	}
	if version != 0 {
		return nil, crypto.KeyRejected(errMultiPrime)
	}
	for _, v := range []*[]byte{&n, &e, &d, &p, &q, &dP, &dQ, &qInvVal} {
		if !der.ReadUnsignedInteger(&seq, v) {
			return nil, crypto.KeyRejected(errMalformedPKCS)
		}
	}
	if !seq.Empty() {
		return nil, crypto.KeyRejected(errMalformedPKCS)
	}
	return NewPrivateKeyWithCRT(n, e, d, p, q, dP, dQ, qInvVal)
}

// MarshalPKCS1PrivateKey encodes k as a two-prime RSAPrivateKey.
func MarshalPKCS1PrivateKey(k *PrivateKey) []byte {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(0)
		for _, v := range [][]byte{k.pub.nBytes, k.pub.exponentBytes(), k.d, k.p, k.q, k.dP, k.dQ, k.qInv} {
			der.AddUnsignedInteger(b, v)
		}
	})
	return b.BytesOrPanic()
}

func (k *PrivateKey) PublicKey() *PublicKey            { return k.pub }
func (k *PrivateKey) Public() crypto.PublicKey         { return k.pub }
func (k *PrivateKey) PrivateKeyType() crypto.Algorithm { return crypto.RSA }
func (k *PrivateKey) Size() int                        { return k.pub.Size() }

func (k *PrivateKey) COSE() cose.Key {
	key := k.pub.COSE()
	key[cose.AttrRSA_D] = bytes.Clone(k.d)
	key[cose.AttrRSA_P] = bytes.Clone(k.p)
	key[cose.AttrRSA_Q] = bytes.Clone(k.q)
	key[cose.AttrRSA_dP] = bytes.Clone(k.dP)
	key[cose.AttrRSA_dQ] = bytes.Clone(k.dQ)
	key[cose.AttrRSA_qInv] = bytes.Clone(k.qInv)
	return key
}

// refreshBlinding draws a fresh r coprime to n. Must be called with mtx held.
func (k *PrivateKey) refreshBlinding(rng io.Reader) error {
	n := k.pub.n
	buf := make([]byte, n.Size())
	excess := n.Size()*8 - n.BitLen()
	for range maxBlindingAttempts {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return crypto.RandomSourceFailure(err)
		}
		buf[0] &= 0xff >> excess
		r, err := bigmod.NewNat().SetBytes(buf, n)
		if err != nil || r.IsZero().Bool() {
			continue
		}
		rInv, ok := bigmod.NewNat().InverseVarTime(r, n)
		if !ok {
			continue
		}
		k.blind = &blinding{
			re:   bigmod.NewNat().ExpShortVarTime(r, k.pub.e, n),
			rInv: rInv,
		}
		return nil
	}
	return crypto.RandomSourceFailure(errBlinding)
}

// sign computes em^d mod n using CRT on a blinded input and checks the
// result against the public key before releasing it.
func (k *PrivateKey) sign(rng io.Reader, em []byte) ([]byte, error) {
	n := k.pub.n
	m, err := bigmod.NewNat().SetBytes(em, n)
	if err != nil {
		return nil, errKeyTooSmall
	}

	k.mtx.Lock()
	defer k.mtx.Unlock()

	if err := k.refreshBlinding(rng); err != nil {
		return nil, err
	}
	c := m.Clone().Mul(k.blind.re, n)

	m1 := bigmod.NewNat().Exp(bigmod.NewNat().Mod(c, k.pm), k.dPPadded, k.pm)
	m2 := bigmod.NewNat().Exp(bigmod.NewNat().Mod(c, k.qm), k.dQPadded, k.qm)

	// h = qInv * (m1 - m2) mod p
	h := m1.Sub(bigmod.NewNat().Mod(m2, k.pm), k.pm).Mul(k.qInvNat, k.pm)
	// s = m2 + h * q mod n
	s := bigmod.NewNat().Mod(h, n).Mul(bigmod.NewNat().Mod(k.qNat, n), n)
	s.Add(bigmod.NewNat().Mod(m2, n), n)
	s.Mul(k.blind.rInv, n)

	check := bigmod.NewNat().ExpShortVarTime(s, k.pub.e, n)
	if !check.Equal(m).Bool() {
		return nil, errFault
	}
	return s.Bytes(n), nil
}
