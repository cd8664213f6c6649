package ed25519

import (
	"errors"
	"math/big"
	"sync"

	"github.com/signatory-io/sigengine/crypto/bigmod"
	"github.com/signatory-io/sigengine/crypto/ct"
)

var errInvalidPoint = errors.New("ed25519: invalid point encoding")

type edwardsParams struct {
	p, l    *bigmod.Modulus
	d2      *bigmod.Nat // 2d
	d       *bigmod.Nat
	sqrtM1  *bigmod.Nat
	zero    *bigmod.Nat
	one     *bigmod.Nat
	invExp  []byte // p-2
	sqrtExp []byte // (p-5)/8
	base    *point
}

// point is an extended twisted Edwards point (X:Y:Z:T) with x = X/Z,
// y = Y/Z and xy = T/Z.
type point struct {
	x, y, z, t *bigmod.Nat
}

func fill(v *big.Int) []byte { return v.FillBytes(make([]byte, 32)) }

var curve = sync.OnceValue(func() *edwardsParams {
	pv := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))
	lv, _ := new(big.Int).SetString("27742317777372353535851937790883648493", 10)
	lv.Add(lv, new(big.Int).Lsh(big.NewInt(1), 252))

	pm, err := bigmod.NewModulus(fill(pv))
	if err != nil {
		panic(err)
	}
	lm, err := bigmod.NewModulus(fill(lv))
	if err != nil {
		panic(err)
	}
	elem := func(v *big.Int) *bigmod.Nat {
		n, err := bigmod.NewNat().SetBytes(fill(v), pm)
		if err != nil {
			panic(err)
		}
		return n
	}

	// d = -121665/121666
	dv := new(big.Int).ModInverse(big.NewInt(121666), pv)
	dv.Mul(dv, big.NewInt(-121665)).Mod(dv, pv)
	// sqrt(-1) = 2^((p-1)/4)
	e := new(big.Int).Rsh(new(big.Int).Sub(pv, big.NewInt(1)), 2)
	sqrtM1 := new(big.Int).Exp(big.NewInt(2), e, pv)

	c := &edwardsParams{
		p:       pm,
		l:       lm,
		d:       elem(dv),
		d2:      elem(new(big.Int).Mod(new(big.Int).Lsh(dv, 1), pv)),
		sqrtM1:  elem(sqrtM1),
		zero:    bigmod.NewNat().SetUint(0, pm),
		one:     bigmod.NewNat().SetUint(1, pm),
		invExp:  fill(new(big.Int).Sub(pv, big.NewInt(2))),
		sqrtExp: fill(new(big.Int).Rsh(new(big.Int).Sub(pv, big.NewInt(5)), 3)),
	}

	// The base point has y = 4/5 and a positive x.
	by := new(big.Int).ModInverse(big.NewInt(5), pv)
	by.Mul(by, big.NewInt(4)).Mod(by, pv)
	var enc [32]byte
	by.FillBytes(enc[:])
	reverse(enc[:])
	base, err := c.decode(enc[:])
	if err != nil {
		panic(err)
	}
	c.base = base
	return c
})

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func (c *edwardsParams) mul(a, b *bigmod.Nat) *bigmod.Nat { return a.Clone().Mul(b, c.p) }
func (c *edwardsParams) add(a, b *bigmod.Nat) *bigmod.Nat { return a.Clone().Add(b, c.p) }
func (c *edwardsParams) sub(a, b *bigmod.Nat) *bigmod.Nat { return a.Clone().Sub(b, c.p) }

func (c *edwardsParams) identity() *point {
	return &point{x: c.zero.Clone(), y: c.one.Clone(), z: c.one.Clone(), t: c.zero.Clone()}
}

// addPoints is the unified addition for a = -1 from Hisil, Wong, Carter and
// Dawson, "Twisted Edwards curves revisited", section 3.1. It is complete on
// edwards25519 because d is not a square.
func (c *edwardsParams) addPoints(p1, p2 *point) *point {
	a := c.mul(c.sub(p1.y, p1.x), c.sub(p2.y, p2.x))
	b := c.mul(c.add(p1.y, p1.x), c.add(p2.y, p2.x))
	cc := c.mul(c.mul(p1.t, c.d2), p2.t)
	d := c.mul(c.add(p1.z, p1.z), p2.z)
	e := c.sub(b, a)
	f := c.sub(d, cc)
	g := c.add(d, cc)
	h := c.add(b, a)
	return &point{
		x: c.mul(e, f),
		y: c.mul(g, h),
		t: c.mul(e, h),
		z: c.mul(f, g),
	}
}

func (c *edwardsParams) mulByCofactor(p *point) *point {
	for range 3 {
		p = c.addPoints(p, p)
	}
	return p
}

func (p *point) assign(on ct.Choice, q *point) {
	p.x.Assign(on, q.x)
	p.y.Assign(on, q.y)
	p.z.Assign(on, q.z)
	p.t.Assign(on, q.t)
}

// scalarMult computes [k]q for a big-endian k with a fixed 4 bit window.
func (c *edwardsParams) scalarMult(q *point, k []byte) *point {
	var table [16]*point
	table[0] = c.identity()
	table[1] = q
	for i := 2; i < len(table); i++ {
		table[i] = c.addPoints(table[i-1], q)
	}
	acc := c.identity()
	for _, b := range k {
		for _, shift := range [2]uint{4, 0} {
			for range 4 {
				acc = c.addPoints(acc, acc)
			}
			window := uint(b>>shift) & 0x0f
			selected := c.identity()
			ct.Lookup(table[:], window, selected.assign)
			acc = c.addPoints(acc, selected)
		}
	}
	return acc
}

func (c *edwardsParams) isIdentity(p *point) bool {
	return p.x.IsZero().Bool() && p.y.Equal(p.z).Bool()
}

func (c *edwardsParams) equal(p, q *point) bool {
	return c.mul(p.x, q.z).Equal(c.mul(q.x, p.z)).Bool() &&
		c.mul(p.y, q.z).Equal(c.mul(q.y, p.z)).Bool()
}

// decode parses a 32 byte point encoding as in RFC 8032 section 5.1.3.
// Non-canonical y coordinates and a negative zero x are rejected.
func (c *edwardsParams) decode(data []byte) (*point, error) {
	if len(data) != 32 {
		return nil, errInvalidPoint
	}
	var buf [32]byte
	copy(buf[:], data)
	sign := buf[31] >> 7
	buf[31] &= 0x7f
	reverse(buf[:])
	y, err := bigmod.NewNat().SetBytes(buf[:], c.p)
	if err != nil {
		return nil, errInvalidPoint
	}

	yy := c.mul(y, y)
	u := c.sub(yy, c.one)
	v := c.add(c.mul(c.d, yy), c.one)

	// x = u v³ (u v⁷)^((p-5)/8)
	v3 := c.mul(c.mul(v, v), v)
	v7 := c.mul(c.mul(v3, v3), v)
	x := c.mul(c.mul(u, v3), bigmod.NewNat().Exp(c.mul(u, v7), c.sqrtExp, c.p))

	vxx := c.mul(v, c.mul(x, x))
	switch {
	case vxx.Equal(u).Bool():
	case vxx.Equal(c.sub(c.zero, u)).Bool():
		x = c.mul(x, c.sqrtM1)
	default:
		return nil, errInvalidPoint
	}

	if x.IsZero().Bool() && sign == 1 {
		return nil, errInvalidPoint
	}
	if uint8(x.IsOdd()) != sign {
		x = c.sub(c.zero, x)
	}
	return &point{x: x, y: y, z: c.one.Clone(), t: c.mul(x, y)}, nil
}

func (c *edwardsParams) encode(p *point) []byte {
	zInv := bigmod.NewNat().Exp(p.z, c.invExp, c.p)
	x := c.mul(p.x, zInv)
	y := c.mul(p.y, zInv)
	out := y.Bytes(c.p)
	reverse(out)
	out[31] |= byte(x.IsOdd()) << 7
	return out
}

// reduceScalar returns a little-endian byte string modulo l.
func (c *edwardsParams) reduceScalar(le []byte) *bigmod.Nat {
	be := make([]byte, len(le))
	copy(be, le)
	reverse(be)
	return bigmod.NewNat().Mod(bigmod.NatFromBytes(be), c.l)
}
