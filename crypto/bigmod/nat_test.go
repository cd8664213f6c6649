package bigmod

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/signatory-io/sigengine/crypto/ct"
	"github.com/stretchr/testify/require"
)

func randomOdd(t *testing.T, bits int) *big.Int {
	for {
		v, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
		require.NoError(t, err)
		v.SetBit(v, bits-1, 1)
		v.SetBit(v, 0, 1)
		if v.Cmp(big.NewInt(1)) > 0 {
			return v
		}
	}
}

func randomBelow(t *testing.T, m *big.Int) *big.Int {
	v, err := rand.Int(rand.Reader, m)
	require.NoError(t, err)
	return v
}

func natFor(t *testing.T, v *big.Int, m *Modulus) *Nat {
	x, err := NewNat().SetBytes(v.Bytes(), m)
	require.NoError(t, err)
	return x
}

func toBig(x *Nat, m *Modulus) *big.Int {
	return new(big.Int).SetBytes(x.Bytes(m))
}

var testSizes = []int{3, 61, 63, 64, 65, 126, 127, 128, 255, 256, 384, 521, 1024, 2048}

func TestArithmetic(t *testing.T) {
	for _, bits := range testSizes {
		mv := randomOdd(t, bits)
		m, err := NewModulus(mv.Bytes())
		require.NoError(t, err)
		require.Equal(t, bits, m.BitLen())
		require.Equal(t, (bits+7)/8, m.Size())

		for range 8 {
			a, b := randomBelow(t, mv), randomBelow(t, mv)
			x, y := natFor(t, a, m), natFor(t, b, m)

			sum := new(big.Int).Add(a, b)
			sum.Mod(sum, mv)
			require.Equal(t, sum, toBig(x.Clone().Add(y, m), m), "add %d", bits)

			diff := new(big.Int).Sub(a, b)
			diff.Mod(diff, mv)
			require.Equal(t, diff, toBig(x.Clone().Sub(y, m), m), "sub %d", bits)

			prod := new(big.Int).Mul(a, b)
			prod.Mod(prod, mv)
			require.Equal(t, prod, toBig(x.Clone().Mul(y, m), m), "mul %d", bits)

			sq := new(big.Int).Mul(a, a)
			sq.Mod(sq, mv)
			xx := x.Clone()
			require.Equal(t, sq, toBig(xx.Mul(xx, m), m), "square %d", bits)

			e := randomBelow(t, mv)
			pow := new(big.Int).Exp(a, e, mv)
			require.Equal(t, pow, toBig(NewNat().Exp(x, e.Bytes(), m), m), "exp %d", bits)

			const pubExp = 65537
			pow.Exp(a, big.NewInt(pubExp), mv)
			require.Equal(t, pow, toBig(NewNat().ExpShortVarTime(x, pubExp, m), m), "exp short %d", bits)
		}
	}
}

func TestMod(t *testing.T) {
	for _, bits := range testSizes {
		mv := randomOdd(t, bits)
		m, err := NewModulus(mv.Bytes())
		require.NoError(t, err)
		for _, inBits := range []int{bits / 2, bits, 2 * bits, 4*bits + 7} {
			if inBits == 0 {
				continue
			}
			v := randomBelow(t, new(big.Int).Lsh(big.NewInt(1), uint(inBits)))
			buf := v.FillBytes(make([]byte, (inBits+7)/8))
			got := NewNat().Mod(NatFromBytes(buf), m)
			require.Equal(t, new(big.Int).Mod(v, mv), toBig(got, m))
		}
	}
}

func TestSetBytes(t *testing.T) {
	m, err := NewModulus([]byte{0x00, 0xff, 0xf1})
	require.NoError(t, err)
	require.Equal(t, 2, m.Size())

	_, err = NewNat().SetBytes([]byte{0xff, 0xf1}, m)
	require.Error(t, err)
	_, err = NewNat().SetBytes([]byte{0xff, 0xf2}, m)
	require.Error(t, err)
	_, err = NewNat().SetBytes([]byte{0x01, 0x00, 0x00}, m)
	require.Error(t, err)

	x, err := NewNat().SetBytes([]byte{0xff, 0xf0}, m)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xf0}, x.Bytes(m))

	x, err = NewNat().SetBytes(nil, m)
	require.NoError(t, err)
	require.Equal(t, ct.True, x.IsZero())
}

func TestModulusRejects(t *testing.T) {
	cases := [][]byte{nil, {0}, {0, 0}, {1}, {0, 1}, {2}, {0x10, 0x00}}
	for _, c := range cases {
		_, err := NewModulus(c)
		require.Error(t, err, "%x", c)
	}
}

func TestInverse(t *testing.T) {
	for _, bits := range testSizes {
		mv := randomOdd(t, bits)
		m, err := NewModulus(mv.Bytes())
		require.NoError(t, err)
		for range 8 {
			a := randomBelow(t, mv)
			x := natFor(t, a, m)
			inv, ok := NewNat().InverseVarTime(x, m)
			expected := new(big.Int).ModInverse(a, mv)
			if expected == nil {
				require.False(t, ok)
				continue
			}
			require.True(t, ok)
			require.Equal(t, expected, toBig(inv, m))
		}
	}

	m, err := NewModulus([]byte{15})
	require.NoError(t, err)
	_, ok := NewNat().InverseVarTime(NewNat().SetUint(5, m), m)
	require.False(t, ok)
	_, ok = NewNat().InverseVarTime(NewNat().SetUint(0, m), m)
	require.False(t, ok)
}

func TestCompare(t *testing.T) {
	m, err := NewModulus([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfd})
	require.NoError(t, err)
	a := NewNat().SetUint(12345, m)
	b := NewNat().SetUint(12345, m)
	c := NewNat().SetUint(12346, m)
	require.Equal(t, ct.True, a.Equal(b))
	require.Equal(t, ct.False, a.Equal(c))
	require.Equal(t, ct.True, a.IsOdd())
	require.Equal(t, ct.False, c.IsOdd())

	a.Assign(ct.False, c)
	require.Equal(t, ct.True, a.Equal(b))
	a.Assign(ct.True, c)
	require.Equal(t, ct.True, a.Equal(c))
}
