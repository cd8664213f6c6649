// Package ct contains constant-time helpers shared by the arithmetic and padding code.
package ct

import (
	"crypto/subtle"
	"math/bits"
)

// Choice is a constant-time boolean, always 0 or 1.
type Choice uint

const (
	False Choice = 0
	True  Choice = 1
)

func Not(c Choice) Choice { return 1 ^ c }

// Bool leaks the value. Use it only once the result is public.
func (c Choice) Bool() bool { return c == 1 }

// Select returns x if on == 1 and y if on == 0.
func Select(on Choice, x, y uint) uint {
	mask := -uint(on)
	return y ^ (mask & (y ^ x))
}

// Eq returns 1 if x == y.
func Eq(x, y uint) Choice {
	_, c1 := bits.Sub(x, y, 0)
	_, c2 := bits.Sub(y, x, 0)
	return Not(Choice(c1 | c2))
}

// Geq returns 1 if x >= y.
func Geq(x, y uint) Choice {
	_, carry := bits.Sub(x, y, 0)
	return Not(Choice(carry))
}

func ByteEq(x, y byte) Choice { return Choice(subtle.ConstantTimeByteEq(x, y)) }

// BytesEqual compares two slices in time depending only on their lengths.
// Slices of different length are never equal.
func BytesEqual(a, b []byte) Choice {
	return Choice(subtle.ConstantTimeCompare(a, b))
}

// IsZero returns 1 if every byte of b is zero.
func IsZero(b []byte) Choice {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return ByteEq(acc, 0)
}

// CopyIf copies src into dst if on == 1. Both slices must have the same length.
func CopyIf(on Choice, dst, src []byte) {
	if len(dst) != len(src) {
		panic("ct: slices have different lengths")
	}
	subtle.ConstantTimeCopy(int(on), dst, src)
}

// Lookup passes every entry of table to assign, with on set only for
// table[index]. An index out of range selects nothing.
func Lookup[T any](table []T, index uint, assign func(on Choice, entry T)) {
	for i, entry := range table {
		assign(Eq(uint(i), index), entry)
	}
}
