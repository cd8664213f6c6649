// Package der implements the strict DER subset used for RSA public keys and
// ECDSA signatures. Decoding fails closed on anything that is not the unique
// minimal encoding.
package der

import (
	"errors"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var (
	ErrMalformed = errors.New("der: malformed encoding")
)

// ReadUnsignedInteger reads a non-negative, minimally encoded INTEGER and
// returns its big-endian magnitude without the sign padding. Zero is
// returned as an empty slice. cryptobyte already rejects long-form lengths
// that could have been encoded shorter and indefinite lengths.
func ReadUnsignedInteger(s *cryptobyte.String, out *[]byte) bool {
	var content cryptobyte.String
	if !s.ReadASN1(&content, asn1.INTEGER) || len(content) == 0 {
		return false
	}
	if content[0]&0x80 != 0 {
		// negative
		return false
	}
	if content[0] == 0 {
		if len(content) == 1 {
			*out = content[1:]
			return true
		}
		if content[1]&0x80 == 0 {
			// superfluous leading zero
			return false
		}
		content = content[1:]
	}
	*out = content
	return true
}

// AddUnsignedInteger appends the minimal INTEGER encoding of the big-endian
// magnitude v. Leading zeros in v are ignored.
func AddUnsignedInteger(b *cryptobyte.Builder, v []byte) {
	for len(v) > 0 && v[0] == 0 {
		v = v[1:]
	}
	b.AddASN1(asn1.INTEGER, func(c *cryptobyte.Builder) {
		if len(v) == 0 || v[0]&0x80 != 0 {
			c.AddUint8(0)
		}
		c.AddBytes(v)
	})
}

// ParseIntegerPair parses SEQUENCE{INTEGER, INTEGER} with nothing trailing.
func ParseIntegerPair(data []byte) (a, b []byte, err error) {
	input := cryptobyte.String(data)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, asn1.SEQUENCE) ||
		!input.Empty() ||
		!ReadUnsignedInteger(&seq, &a) ||
		!ReadUnsignedInteger(&seq, &b) ||
		!seq.Empty() {
		return nil, nil, ErrMalformed
	}
	return a, b, nil
}

// MarshalIntegerPair encodes SEQUENCE{INTEGER a, INTEGER b}.
func MarshalIntegerPair(a, b []byte) []byte {
	var out cryptobyte.Builder
	out.AddASN1(asn1.SEQUENCE, func(child *cryptobyte.Builder) {
		AddUnsignedInteger(child, a)
		AddUnsignedInteger(child, b)
	})
	return out.BytesOrPanic()
}

// ParseRSAPublicKey parses RSAPublicKey ::= SEQUENCE{modulus, publicExponent}.
func ParseRSAPublicKey(data []byte) (n, e []byte, err error) {
	return ParseIntegerPair(data)
}

func MarshalRSAPublicKey(n, e []byte) []byte {
	return MarshalIntegerPair(n, e)
}

// ParseECDSASignature parses ECDSA-Sig-Value ::= SEQUENCE{r, s}.
func ParseECDSASignature(data []byte) (r, s []byte, err error) {
	return ParseIntegerPair(data)
}

func MarshalECDSASignature(r, s []byte) []byte {
	return MarshalIntegerPair(r, s)
}
