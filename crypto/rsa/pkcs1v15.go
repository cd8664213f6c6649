package rsa

import (
	"errors"
	"io"

	"github.com/signatory-io/sigengine/crypto"
)

// DER encoded DigestInfo prefixes from RFC 8017 section 9.2, note 1.
var (
	prefixSHA1   = []byte{0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2b, 0x0e, 0x03, 0x02, 0x1a, 0x05, 0x00, 0x04, 0x14}
	prefixSHA256 = []byte{0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20}
	prefixSHA384 = []byte{0x30, 0x41, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x02, 0x05, 0x00, 0x04, 0x30}
	prefixSHA512 = []byte{0x30, 0x51, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x03, 0x05, 0x00, 0x04, 0x40}
)

func digestInfoPrefix(h crypto.Hash) ([]byte, bool) {
	switch h {
	case crypto.SHA1:
		return prefixSHA1, true
	case crypto.SHA256:
		return prefixSHA256, true
	case crypto.SHA384:
		return prefixSHA384, true
	case crypto.SHA512:
		return prefixSHA512, true
	default:
		return nil, false
	}
}

var (
	errUnsupportedHash = errors.New("rsa: unsupported hash function")
	errDigestLength    = errors.New("rsa: digest length doesn't match the hash function")
	errKeyTooSmall     = errors.New("rsa: key is too small for the encoding")
)

// pkcs1v15Encode builds 0x00 0x01 0xff.. 0x00 DigestInfo(hashed) of k bytes.
func pkcs1v15Encode(h crypto.Hash, hashed []byte, k int) ([]byte, error) {
	prefix, ok := digestInfoPrefix(h)
	if !ok {
		return nil, errUnsupportedHash
	}
	if len(hashed) != h.Size() {
		return nil, errDigestLength
	}
	tLen := len(prefix) + len(hashed)
	if k < tLen+11 {
		return nil, errKeyTooSmall
	}
	em := make([]byte, k)
	em[1] = 1
	for i := 2; i < k-tLen-1; i++ {
		em[i] = 0xff
	}
	copy(em[k-tLen:], prefix)
	copy(em[k-len(hashed):], hashed)
	return em, nil
}

// VerifyPKCS1v15 checks an RSASSA-PKCS1-v1_5 signature over a precomputed
// digest. The expected block is rebuilt and compared as a whole.
func VerifyPKCS1v15(pub *PublicKey, h crypto.Hash, hashed, sig []byte) error {
	return verifyPKCS1v15(checks{}, pub, h, hashed, sig)
}

func verifyPKCS1v15(c checks, pub *PublicKey, h crypto.Hash, hashed, sig []byte) error {
	expected, err := pkcs1v15Encode(h, hashed, pub.Size())
	if err != nil {
		return crypto.ErrInvalidSignature
	}
	em, ok := pub.recover(sig)
	if !ok {
		return crypto.ErrInvalidSignature
	}
	if !c.equal("pkcs1 block", em, expected).Bool() {
		return crypto.ErrInvalidSignature
	}
	return nil
}

// SignPKCS1v15 produces a deterministic RSASSA-PKCS1-v1_5 signature. rng is
// only used for blinding.
func SignPKCS1v15(rng io.Reader, priv *PrivateKey, h crypto.Hash, hashed []byte) ([]byte, error) {
	em, err := pkcs1v15Encode(h, hashed, priv.pub.Size())
	if err != nil {
		return nil, err
	}
	return priv.sign(rng, em)
}
