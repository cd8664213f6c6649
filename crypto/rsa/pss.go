package rsa

import (
	"io"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ct"
)

// mgf1XOR xors out with MGF1(seed) as defined in RFC 8017 appendix B.2.1.
func mgf1XOR(out []byte, h crypto.Hash, seed []byte) {
	var counter [4]byte
	done := 0
	for done < len(out) {
		d := h.New()
		d.Write(seed)
		d.Write(counter[:])
		digest := d.Sum(nil)
		for i := 0; i < len(digest) && done < len(out); i++ {
			out[done] ^= digest[i]
			done++
		}
		for i := len(counter) - 1; i >= 0; i-- {
			counter[i]++
			if counter[i] != 0 {
				break
			}
		}
	}
}

func pssHash(h crypto.Hash, mHash, salt []byte, out []byte) []byte {
	var zeros [8]byte
	d := h.New()
	d.Write(zeros[:])
	d.Write(mHash)
	d.Write(salt)
	return d.Sum(out)
}

// emsaPSSEncode implements EMSA-PSS-ENCODE from RFC 8017 section 9.1.1.
func emsaPSSEncode(mHash []byte, emBits int, salt []byte, h crypto.Hash) ([]byte, error) {
	hLen := h.Size()
	sLen := len(salt)
	emLen := (emBits + 7) / 8
	if len(mHash) != hLen {
		return nil, errDigestLength
	}
	if emLen < hLen+sLen+2 {
		return nil, errKeyTooSmall
	}

	em := make([]byte, emLen)
	psLen := emLen - sLen - hLen - 2
	db := em[:psLen+1+sLen]
	hv := em[psLen+1+sLen : emLen-1]
	hv = pssHash(h, mHash, salt, hv[:0])

	db[psLen] = 0x01
	copy(db[psLen+1:], salt)
	mgf1XOR(db, h, hv)
	db[0] &= 0xff >> (8*emLen - emBits)
	em[emLen-1] = 0xbc
	return em, nil
}

// emsaPSSVerify implements EMSA-PSS-VERIFY from RFC 8017 section 9.1.2 with
// a fixed salt length. Only lengths decide the control flow, every content
// check is accumulated into the result.
func emsaPSSVerify(c checks, mHash, em []byte, emBits, sLen int, h crypto.Hash) ct.Choice {
	hLen := h.Size()
	emLen := (emBits + 7) / 8
	if len(mHash) != hLen || len(em) != emLen || emLen < hLen+sLen+2 {
		return ct.False
	}

	ok := c.equalByte("pss trailer", em[emLen-1], 0xbc)

	db := make([]byte, emLen-hLen-1)
	copy(db, em[:emLen-hLen-1])
	hv := em[emLen-hLen-1 : emLen-1]

	topMask := byte(0xff >> (8*emLen - emBits))
	ok &= c.equalByte("pss top bits", db[0]&^topMask, 0)

	mgf1XOR(db, h, hv)
	db[0] &= topMask

	psLen := emLen - hLen - sLen - 2
	c.note("pss padding", psLen)
	ok &= ct.IsZero(db[:psLen])
	ok &= c.equalByte("pss separator", db[psLen], 0x01)

	salt := db[len(db)-sLen:]
	expected := pssHash(h, mHash, salt, nil)
	ok &= c.equal("pss digest", hv, expected)
	return ok
}

// VerifyPSS checks an RSASSA-PSS signature over a precomputed digest. The
// salt length equals the digest length and MGF1 uses the same hash.
func VerifyPSS(pub *PublicKey, h crypto.Hash, hashed, sig []byte) error {
	return verifyPSS(checks{}, pub, h, hashed, sig)
}

func verifyPSS(c checks, pub *PublicKey, h crypto.Hash, hashed, sig []byte) error {
	if len(hashed) != h.Size() {
		return crypto.ErrInvalidSignature
	}
	em, ok := pub.recover(sig)
	if !ok {
		return crypto.ErrInvalidSignature
	}
	emBits := pub.BitLen() - 1
	emLen := (emBits + 7) / 8
	valid := ct.True
	if emLen < len(em) {
		valid &= c.equalByte("pss leading byte", em[0], 0)
		em = em[1:]
	}
	valid &= emsaPSSVerify(c, hashed, em, emBits, h.Size(), h)
	if !valid.Bool() {
		return crypto.ErrInvalidSignature
	}
	return nil
}

// SignPSS produces an RSASSA-PSS signature with a fresh salt of digest length.
func SignPSS(rng io.Reader, priv *PrivateKey, h crypto.Hash, hashed []byte) ([]byte, error) {
	if _, ok := digestInfoPrefix(h); !ok {
		return nil, errUnsupportedHash
	}
	salt := make([]byte, h.Size())
	if _, err := io.ReadFull(rng, salt); err != nil {
		return nil, crypto.RandomSourceFailure(err)
	}
	emBits := priv.pub.BitLen() - 1
	em, err := emsaPSSEncode(hashed, emBits, salt, h)
	if err != nil {
		return nil, err
	}
	k := priv.pub.Size()
	block := make([]byte, k)
	copy(block[k-len(em):], em)
	return priv.sign(rng, block)
}
