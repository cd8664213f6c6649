// Package bigmod implements constant-time modular arithmetic over natural
// numbers of a size fixed by their modulus.
//
// A Nat has an announced length, the number of limbs it stores. Operations
// may leak the announced length but not the values held in the limbs.
// Operations taking a Modulus expect every operand to be reduced and to share
// the modulus' announced length.
package bigmod

import (
	"errors"
	"math/bits"

	"github.com/signatory-io/sigengine/crypto/ct"
)

const (
	// _W is the number of bits used in each limb. The top bit of a machine
	// word is kept clear between operations.
	_W    = bits.UintSize - 1
	_MASK = (1 << _W) - 1
)

// div calculates (hi:lo / d, hi:lo % d) in time independent of its inputs.
// If d == 0 or d <= hi the results are undefined.
func div(hi, lo, d uint) (quo uint, rem uint) {
	for i := bits.UintSize - 1; i >= 0; i-- {
		quo <<= 1
		j := bits.UintSize - i
		w := (hi << j) | (lo >> i)
		sel := ct.Geq(w, d) | ct.Choice(hi>>i)
		hi2 := (w - d) >> j
		lo2 := lo - (d << i)
		hi = ct.Select(sel, hi2, hi)
		lo = ct.Select(sel, lo2, lo)
		quo |= uint(sel)
	}
	rem = lo
	return
}

// Nat is an arbitrary natural number stored as little-endian base 2^_W limbs.
type Nat struct {
	limbs []uint
}

func NewNat() *Nat { return &Nat{} }

func (x *Nat) expand(n int) *Nat {
	if n < len(x.limbs) {
		panic("bigmod: internal error: shrinking nat")
	}
	if cap(x.limbs) < n {
		newLimbs := make([]uint, n)
		copy(newLimbs, x.limbs)
		x.limbs = newLimbs
		return x
	}
	extra := x.limbs[len(x.limbs):n]
	clear(extra)
	x.limbs = x.limbs[:n]
	return x
}

func (x *Nat) reset(n int) *Nat {
	if cap(x.limbs) < n {
		x.limbs = make([]uint, n)
		return x
	}
	x.limbs = x.limbs[:n]
	clear(x.limbs)
	return x
}

// Set copies y into x, including its announced length.
func (x *Nat) Set(y *Nat) *Nat {
	x.reset(len(y.limbs))
	copy(x.limbs, y.limbs)
	return x
}

func (x *Nat) Clone() *Nat { return NewNat().Set(x) }

// NatFromBytes creates an unreduced number from big-endian bytes. The
// announced length depends on len(b) only, leading zeros are kept.
func NatFromBytes(b []byte) *Nat {
	required := (len(b)*8 + _W - 1) / _W
	out := &Nat{limbs: make([]uint, required)}
	outI := 0
	shift := 0
	for i := len(b) - 1; i >= 0; i-- {
		bi := b[i]
		out.limbs[outI] |= uint(bi) << shift
		shift += 8
		if shift >= _W {
			shift -= _W
			out.limbs[outI] &= _MASK
			outI++
			if outI < len(out.limbs) {
				out.limbs[outI] = uint(bi) >> (8 - shift)
			}
		}
	}
	return out
}

var errOverflow = errors.New("bigmod: input overflows the modulus")

// SetBytes sets x to the big-endian value of b, which must be smaller than m.
// Leading zero bytes beyond the size of m are not accepted.
func (x *Nat) SetBytes(b []byte, m *Modulus) (*Nat, error) {
	x.reset(len(m.nat.limbs))
	outI := 0
	shift := 0
	for i := len(b) - 1; i >= 0; i-- {
		bi := b[i]
		x.limbs[outI] |= uint(bi) << shift
		shift += 8
		if shift >= _W {
			shift -= _W
			x.limbs[outI] &= _MASK
			overflow := bi >> (8 - shift)
			outI++
			if outI >= len(x.limbs) {
				if overflow > 0 || i > 0 {
					return nil, errOverflow
				}
				break
			}
			x.limbs[outI] = uint(overflow)
		}
	}
	if x.cmpGeq(m.nat) == ct.True {
		return nil, errOverflow
	}
	return x, nil
}

// SetUint sets x to the small constant v. It panics if v does not fit in a
// limb or is not smaller than m.
func (x *Nat) SetUint(v uint, m *Modulus) *Nat {
	if v > _MASK {
		panic("bigmod: constant is too large")
	}
	x.reset(len(m.nat.limbs))
	x.limbs[0] = v
	if x.cmpGeq(m.nat) == ct.True {
		panic("bigmod: constant overflows the modulus")
	}
	return x
}

// Bytes returns x as a zero-extended big-endian slice of m.Size() bytes.
func (x *Nat) Bytes(m *Modulus) []byte {
	out := make([]byte, m.Size())
	shift := 0
	outI := len(out) - 1
	for _, limb := range x.limbs {
		remaining := _W
		for remaining >= 8 {
			out[outI] |= byte(limb) << shift
			consumed := 8 - shift
			limb >>= consumed
			remaining -= consumed
			shift = 0
			outI--
			if outI < 0 {
				return out
			}
		}
		out[outI] = byte(limb)
		shift = remaining
	}
	return out
}

// Equal returns 1 if x == y. Both operands must have the same announced length.
func (x *Nat) Equal(y *Nat) ct.Choice {
	eq := ct.True
	for i := 0; i < len(x.limbs) && i < len(y.limbs); i++ {
		eq &= ct.Eq(x.limbs[i], y.limbs[i])
	}
	return eq
}

// IsZero returns 1 if x == 0.
func (x *Nat) IsZero() ct.Choice {
	zero := ct.True
	for _, l := range x.limbs {
		zero &= ct.Eq(l, 0)
	}
	return zero
}

// IsOdd returns 1 if the lowest bit of x is set.
func (x *Nat) IsOdd() ct.Choice {
	if len(x.limbs) == 0 {
		return ct.False
	}
	return ct.Choice(x.limbs[0] & 1)
}

func (x *Nat) cmpGeq(y *Nat) ct.Choice {
	var c uint
	for i := 0; i < len(x.limbs) && i < len(y.limbs); i++ {
		c = (x.limbs[i] - y.limbs[i] - c) >> _W
	}
	return ct.Not(ct.Choice(c))
}

// Assign sets x to y if on == 1 and leaves it unchanged otherwise.
func (x *Nat) Assign(on ct.Choice, y *Nat) *Nat {
	for i := 0; i < len(x.limbs) && i < len(y.limbs); i++ {
		x.limbs[i] = ct.Select(on, y.limbs[i], x.limbs[i])
	}
	return x
}

func (x *Nat) add(on ct.Choice, y *Nat) (c uint) {
	for i := 0; i < len(x.limbs) && i < len(y.limbs); i++ {
		res := x.limbs[i] + y.limbs[i] + c
		x.limbs[i] = ct.Select(on, res&_MASK, x.limbs[i])
		c = res >> _W
	}
	return
}

func (x *Nat) sub(on ct.Choice, y *Nat) (c uint) {
	for i := 0; i < len(x.limbs) && i < len(y.limbs); i++ {
		res := x.limbs[i] - y.limbs[i] - c
		x.limbs[i] = ct.Select(on, res&_MASK, x.limbs[i])
		c = res >> _W
	}
	return
}

// mulSub calculates x -= q * m and returns the borrow.
func (x *Nat) mulSub(q uint, m *Nat) (cc uint) {
	for i := range x.limbs {
		hi, lo := bits.Mul(q, m.limbs[i])
		lo, cc = bits.Add(lo, cc, 0)
		hi += cc
		cc = (hi << 1) | (lo >> _W)
		res := x.limbs[i] - (lo & _MASK)
		cc += res >> _W
		x.limbs[i] = res & _MASK
	}
	return
}

// shiftIn calculates x = x << _W + y mod m. x must be reduced and y < 2^_W.
func (x *Nat) shiftIn(y uint, m *Modulus) *Nat {
	checkReduced(m, x)
	if y > _MASK {
		panic("bigmod: internal error: shiftIn input out of bounds")
	}

	size := len(m.nat.limbs)
	if size == 1 {
		_, r := div(x.limbs[0]>>1, (x.limbs[0]<<_W)|y, m.nat.limbs[0])
		x.limbs[0] = r
		return x
	}

	hi := x.limbs[size-1]
	for i := size - 1; i > 0; i-- {
		x.limbs[i] = x.limbs[i-1]
	}
	x.limbs[0] = y

	// Estimate the quotient from the top 2*_W bits of x and the top _W bits
	// of m. The estimate is off by at most one in either direction.
	a1 := ((hi << m.leading) | (x.limbs[size-1] >> (_W - m.leading))) & _MASK
	a0 := ((x.limbs[size-1] << m.leading) | (x.limbs[size-2] >> (_W - m.leading))) & _MASK
	b0 := ((m.nat.limbs[size-1] << m.leading) | (m.nat.limbs[size-2] >> (_W - m.leading))) & _MASK

	q, _ := div(a1>>1, (a1<<_W)|a0, b0)
	q = ct.Select(ct.Eq(q, 0), 0, q-1)

	cc := x.mulSub(q, m.nat)
	under := ct.Not(ct.Geq(hi, cc))
	stillBigger := x.cmpGeq(m.nat)
	over := ct.Not(under) & (stillBigger | ct.Not(ct.Eq(cc, hi)))
	x.add(under, m.nat)
	x.sub(over, m.nat)
	return x
}

// Mod calculates out = x mod m for an x of any announced length. out is
// resized to the length of m and must not alias x.
func (out *Nat) Mod(x *Nat, m *Modulus) *Nat {
	out.reset(len(m.nat.limbs))
	i := len(x.limbs) - 1
	// The top N-1 limbs of x are already smaller than m.
	start := len(m.nat.limbs) - 2
	if i < start {
		start = i
	}
	for j := start; j >= 0; j-- {
		out.limbs[j] = x.limbs[i]
		i--
	}
	for i >= 0 {
		out.shiftIn(x.limbs[i], m)
		i--
	}
	return out
}

// Sub computes x = x - y mod m.
func (x *Nat) Sub(y *Nat, m *Modulus) *Nat {
	checkReduced(m, x, y)
	underflow := x.sub(ct.True, y)
	x.add(ct.Choice(underflow), m.nat)
	return x
}

// Add computes x = x + y mod m.
func (x *Nat) Add(y *Nat, m *Modulus) *Nat {
	checkReduced(m, x, y)
	overflow := x.add(ct.True, y)
	underflow := ct.Not(x.cmpGeq(m.nat))
	// overflow == 1 implies underflow == 1 since y < m. Subtract m when the
	// carry and the borrow cancel out.
	needSubtraction := ct.Eq(overflow, uint(underflow))
	x.sub(needSubtraction, m.nat)
	return x
}

// montgomeryMul calculates out = x * y / R mod m with R = 2^(_W * n) and
// n = len(m.nat.limbs). out may alias x or y.
func (out *Nat) montgomeryMul(x, y *Nat, m *Modulus) *Nat {
	n := len(m.nat.limbs)
	t := &Nat{limbs: make([]uint, n)}
	overflow := uint(0)
	for i := 0; i < n; i++ {
		f := ((t.limbs[0] + x.limbs[i]*y.limbs[0]) * m.m0inv) & _MASK
		var carry uint
		for j := 0; j < n; j++ {
			hi, lo := bits.Mul(x.limbs[i], y.limbs[j])
			zLo, c := bits.Add(t.limbs[j], lo, 0)
			zHi, _ := bits.Add(0, hi, c)
			hi, lo = bits.Mul(f, m.nat.limbs[j])
			zLo, c = bits.Add(zLo, lo, 0)
			zHi, _ = bits.Add(zHi, hi, c)
			zLo, c = bits.Add(zLo, carry, 0)
			zHi, _ = bits.Add(zHi, 0, c)
			if j > 0 {
				t.limbs[j-1] = zLo & _MASK
			}
			carry = (zLo >> _W) | (zHi << 1)
		}
		z := overflow + carry
		t.limbs[n-1] = z & _MASK
		overflow = z >> _W
	}
	underflow := ct.Not(t.cmpGeq(m.nat))
	needSubtraction := ct.Eq(overflow, uint(underflow))
	t.sub(needSubtraction, m.nat)
	return out.Set(t)
}

// Mul computes x = x * y mod m. y may alias x.
func (x *Nat) Mul(y *Nat, m *Modulus) *Nat {
	checkReduced(m, x, y)
	xR := NewNat().montgomeryMul(x, m.rr, m)
	return x.montgomeryMul(xR, y, m)
}

// Exp calculates out = x^e mod m in constant time with respect to the values
// of x and e. The running time depends on len(e) only. x must be reduced.
func (out *Nat) Exp(x *Nat, e []byte, m *Modulus) *Nat {
	checkReduced(m, x)
	size := len(m.nat.limbs)

	// Table of x^1..x^15 in Montgomery form for 4 bit windows
	table := make([]*Nat, 15)
	table[0] = NewNat().montgomeryMul(x, m.rr, m)
	for i := 1; i < len(table); i++ {
		table[i] = NewNat().montgomeryMul(table[i-1], table[0], m)
	}

	acc := NewNat().SetUint(1, m)
	acc.montgomeryMul(acc, m.rr, m)
	selected := &Nat{limbs: make([]uint, size)}
	tmp := NewNat()
	for _, b := range e {
		for j := 4; j >= 0; j -= 4 {
			acc.montgomeryMul(acc, acc, m)
			acc.montgomeryMul(acc, acc, m)
			acc.montgomeryMul(acc, acc, m)
			acc.montgomeryMul(acc, acc, m)

			window := uint((b >> j) & 0x0f)
			for i := range table {
				selected.Assign(ct.Eq(window, uint(i+1)), table[i])
			}
			tmp.montgomeryMul(acc, selected, m)
			acc.Assign(ct.Not(ct.Eq(window, 0)), tmp)
		}
	}
	one := NewNat().SetUint(1, m)
	return out.montgomeryMul(acc, one, m)
}

// ExpShortVarTime calculates out = x^e mod m. The running time depends on the
// value of e, which must be public.
func (out *Nat) ExpShortVarTime(x *Nat, e uint64, m *Modulus) *Nat {
	checkReduced(m, x)
	if e == 0 {
		return out.SetUint(1, m)
	}
	xR := NewNat().montgomeryMul(x, m.rr, m)
	acc := xR.Clone()
	for i := bits.Len64(e) - 2; i >= 0; i-- {
		acc.montgomeryMul(acc, acc, m)
		if (e>>i)&1 == 1 {
			acc.montgomeryMul(acc, xR, m)
		}
	}
	one := NewNat().SetUint(1, m)
	return out.montgomeryMul(acc, one, m)
}

func checkReduced(m *Modulus, xs ...*Nat) {
	for _, x := range xs {
		if len(x.limbs) != len(m.nat.limbs) {
			panic("bigmod: internal error: nat length differs from the modulus")
		}
		if x.cmpGeq(m.nat) == ct.True {
			panic("bigmod: internal error: nat is not reduced")
		}
	}
}
