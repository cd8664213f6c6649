package bigmod

import (
	"errors"
	"math/big"
	"math/bits"
)

// Modulus is an odd modulus greater than one with precomputed Montgomery
// constants. Its bit length may leak, its value does not.
type Modulus struct {
	nat     *Nat
	leading int  // number of leading zero bits in the top limb
	m0inv   uint // -nat.limbs[0]⁻¹ mod 2^_W
	rr      *Nat // R² mod m
}

// minusInverseModW computes -x⁻¹ mod 2^_W for an odd x. Each iteration
// doubles the number of correct low bits.
func minusInverseModW(x uint) uint {
	y := x
	for range 5 {
		y = y * (2 - x*y)
	}
	return (1 << _W) - (y & _MASK)
}

var (
	errEvenModulus  = errors.New("bigmod: modulus is even")
	errSmallModulus = errors.New("bigmod: modulus is too small")
)

// NewModulus creates a modulus from big-endian bytes. Leading zero bytes are
// allowed and don't affect the announced length.
func NewModulus(b []byte) (*Modulus, error) {
	n := NatFromBytes(b)
	size := len(n.limbs)
	for size > 0 && n.limbs[size-1] == 0 {
		size--
	}
	if size == 0 {
		return nil, errSmallModulus
	}
	n.limbs = n.limbs[:size]
	if n.limbs[0]&1 == 0 {
		return nil, errEvenModulus
	}
	if size == 1 && n.limbs[0] == 1 {
		return nil, errSmallModulus
	}
	m := &Modulus{
		nat:     n,
		leading: bits.LeadingZeros(n.limbs[size-1]) - (bits.UintSize - _W),
		m0inv:   minusInverseModW(n.limbs[0]),
	}
	rr := NewNat().SetUint(1, m)
	for range 2 * size {
		rr.shiftIn(0, m)
	}
	m.rr = rr
	return m, nil
}

// BitLen returns the exact bit length of m.
func (m *Modulus) BitLen() int {
	return len(m.nat.limbs)*_W - m.leading
}

// Size returns the length of m in bytes.
func (m *Modulus) Size() int {
	return (m.BitLen() + 7) / 8
}

// Nat returns a copy of m as a Nat. It is not reduced modulo m and must not
// be passed to modular operations.
func (m *Modulus) Nat() *Nat { return m.nat.Clone() }

// Bytes returns m as big-endian bytes of m.Size() length.
func (m *Modulus) Bytes() []byte { return m.nat.Bytes(m) }

// InverseVarTime sets x = a⁻¹ mod m using the extended Euclidean algorithm.
// It returns false if a is not invertible. The running time depends on the
// values of a and m, so a must be public or random.
func (x *Nat) InverseVarTime(a *Nat, m *Modulus) (*Nat, bool) {
	checkReduced(m, a)
	mv := new(big.Int).SetBytes(m.Bytes())
	r0, r1 := new(big.Int).Set(mv), new(big.Int).SetBytes(a.Bytes(m))
	t0, t1 := new(big.Int), big.NewInt(1)
	q, tmp := new(big.Int), new(big.Int)
	for r1.Sign() != 0 {
		q.QuoRem(r0, r1, tmp)
		r0, r1, tmp = r1, tmp, r0
		tmp.Mul(q, t1)
		tmp.Sub(t0, tmp)
		t0, t1, tmp = t1, tmp, t0
	}
	if r0.Cmp(big.NewInt(1)) != 0 {
		return x, false
	}
	if t0.Sign() < 0 {
		t0.Add(t0, mv)
	}
	if _, err := x.SetBytes(t0.FillBytes(make([]byte, m.Size())), m); err != nil {
		return x, false
	}
	return x, true
}
