package ecdsa

import (
	"github.com/signatory-io/sigengine/crypto/bigmod"
	"github.com/signatory-io/sigengine/crypto/ct"
)

// point is a projective (X:Y:Z) point on a short Weierstrass curve with
// a = -3. The identity is (0:1:0).
type point struct {
	x, y, z *bigmod.Nat
}

func (p *point) clone() *point {
	return &point{x: p.x.Clone(), y: p.y.Clone(), z: p.z.Clone()}
}

func (p *point) assign(on ct.Choice, q *point) {
	p.x.Assign(on, q.x)
	p.y.Assign(on, q.y)
	p.z.Assign(on, q.z)
}

func (c *curveParams) mul(a, b *bigmod.Nat) *bigmod.Nat { return a.Clone().Mul(b, c.p) }
func (c *curveParams) add(a, b *bigmod.Nat) *bigmod.Nat { return a.Clone().Add(b, c.p) }
func (c *curveParams) sub(a, b *bigmod.Nat) *bigmod.Nat { return a.Clone().Sub(b, c.p) }

// addPoints uses the complete addition formula for a = -3 from Renes,
// Costello and Batina, "Complete addition formulas for prime order elliptic
// curves", algorithm 4. It has no exceptional cases, so it doubles as well.
func (c *curveParams) addPoints(p1, p2 *point) *point {
	t0 := c.mul(p1.x, p2.x)
	t1 := c.mul(p1.y, p2.y)
	t2 := c.mul(p1.z, p2.z)
	t3 := c.add(p1.x, p1.y)
	t4 := c.add(p2.x, p2.y)
	t3 = c.mul(t3, t4)
	t4 = c.add(t0, t1)
	t3 = c.sub(t3, t4)
	t4 = c.add(p1.y, p1.z)
	x3 := c.add(p2.y, p2.z)
	t4 = c.mul(t4, x3)
	x3 = c.add(t1, t2)
	t4 = c.sub(t4, x3)
	x3 = c.add(p1.x, p1.z)
	y3 := c.add(p2.x, p2.z)
	x3 = c.mul(x3, y3)
	y3 = c.add(t0, t2)
	y3 = c.sub(x3, y3)
	z3 := c.mul(c.b, t2)
	x3 = c.sub(y3, z3)
	z3 = c.add(x3, x3)
	x3 = c.add(x3, z3)
	z3 = c.sub(t1, x3)
	x3 = c.add(t1, x3)
	y3 = c.mul(c.b, y3)
	t1 = c.add(t2, t2)
	t2 = c.add(t1, t2)
	y3 = c.sub(y3, t2)
	y3 = c.sub(y3, t0)
	t1 = c.add(y3, y3)
	y3 = c.add(t1, y3)
	t1 = c.add(t0, t0)
	t0 = c.add(t1, t0)
	t0 = c.sub(t0, t2)
	t1 = c.mul(t4, y3)
	t2 = c.mul(t0, y3)
	y3 = c.mul(x3, z3)
	y3 = c.add(y3, t2)
	x3 = c.mul(t3, x3)
	x3 = c.sub(x3, t1)
	z3 = c.mul(t4, z3)
	t1 = c.mul(t3, t0)
	z3 = c.add(z3, t1)
	return &point{x: x3, y: y3, z: z3}
}

// scalarMult computes [k]q with a fixed 4 bit window. The sequence of
// operations depends on len(k) only.
func (c *curveParams) scalarMult(q *point, k []byte) *point {
	var table [16]*point
	table[0] = c.identity
	table[1] = q
	for i := 2; i < len(table); i++ {
		table[i] = c.addPoints(table[i-1], q)
	}

	acc := c.identity.clone()
	for _, b := range k {
		for _, shift := range [2]uint{4, 0} {
			for range 4 {
				acc = c.addPoints(acc, acc)
			}
			window := uint(b>>shift) & 0x0f
			selected := c.identity.clone()
			ct.Lookup(table[:], window, selected.assign)
			acc = c.addPoints(acc, selected)
		}
	}
	return acc
}

func (c *curveParams) scalarBaseMult(k []byte) *point {
	return c.scalarMult(c.g, k)
}

func (c *curveParams) isIdentity(p *point) ct.Choice {
	return p.z.IsZero()
}

// affine returns the affine coordinates of a point that is not the identity.
func (c *curveParams) affine(p *point) (x, y *bigmod.Nat) {
	zInv := bigmod.NewNat().Exp(p.z, c.pMinus2, c.p)
	return c.mul(p.x, zInv), c.mul(p.y, zInv)
}

// rhs returns x³ - 3x + b.
func (c *curveParams) rhs(x *bigmod.Nat) *bigmod.Nat {
	x3 := c.mul(c.mul(x, x), x)
	threeX := c.add(c.add(x, x), x)
	return c.add(c.sub(x3, threeX), c.b)
}

func (c *curveParams) isOnCurve(x, y *bigmod.Nat) ct.Choice {
	return c.mul(y, y).Equal(c.rhs(x))
}

// decodePoint parses an uncompressed or compressed SEC 1 point. The
// identity encoding and any coordinate not reduced modulo p is rejected.
func (c *curveParams) decodePoint(data []byte) (*point, error) {
	switch {
	case len(data) == 1+2*c.size && data[0] == 4:
		x, err := bigmod.NewNat().SetBytes(data[1:1+c.size], c.p)
		if err != nil {
			return nil, ErrInvalidPublicKey
		}
		y, err := bigmod.NewNat().SetBytes(data[1+c.size:], c.p)
		if err != nil {
			return nil, ErrInvalidPublicKey
		}
		if !c.isOnCurve(x, y).Bool() {
			return nil, ErrInvalidPublicKey
		}
		return &point{x: x, y: y, z: bigmod.NewNat().SetUint(1, c.p)}, nil

	case len(data) == 1+c.size && (data[0] == 2 || data[0] == 3):
		x, err := bigmod.NewNat().SetBytes(data[1:], c.p)
		if err != nil {
			return nil, ErrInvalidPublicKey
		}
		y2 := c.rhs(x)
		y := bigmod.NewNat().Exp(y2, c.sqrtExp, c.p)
		if !c.mul(y, y).Equal(y2).Bool() {
			return nil, ErrInvalidPublicKey
		}
		odd := y.IsOdd()
		negY := c.sub(bigmod.NewNat().SetUint(0, c.p), y)
		y.Assign(ct.Not(ct.Eq(uint(odd), uint(data[0]&1))), negY)
		return &point{x: x, y: y, z: bigmod.NewNat().SetUint(1, c.p)}, nil

	default:
		return nil, ErrInvalidPublicKey
	}
}

func (c *curveParams) encodePoint(p *point) []byte {
	x, y := c.affine(p)
	out := make([]byte, 1+2*c.size)
	out[0] = 4
	copy(out[1:], x.Bytes(c.p))
	copy(out[1+c.size:], y.Bytes(c.p))
	return out
}
