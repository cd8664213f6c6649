package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Hash is an opaque digest function.
type Hash interface {
	String() string
	Size() int
	New() hash.Hash
	HashFunc() Hash
}

type hSHA1 struct{}
type hSHA256 struct{}
type hSHA384 struct{}
type hSHA512 struct{}
type hBLAKE2b_256 struct{}

func (hSHA1) String() string        { return "SHA-1" }
func (hSHA256) String() string      { return "SHA-256" }
func (hSHA384) String() string      { return "SHA-384" }
func (hSHA512) String() string      { return "SHA-512" }
func (hBLAKE2b_256) String() string { return "BLAKE2b-256" }

func (hSHA1) Size() int        { return 20 }
func (hSHA256) Size() int      { return 32 }
func (hSHA384) Size() int      { return 48 }
func (hSHA512) Size() int      { return 64 }
func (hBLAKE2b_256) Size() int { return 32 }

func (hSHA1) New() hash.Hash        { return sha1.New() }
func (hSHA256) New() hash.Hash      { return sha256.New() }
func (hSHA384) New() hash.Hash      { return sha512.New384() }
func (hSHA512) New() hash.Hash      { return sha512.New() }
func (hBLAKE2b_256) New() hash.Hash { h, _ := blake2b.New256(nil); return h }

func (h hSHA1) HashFunc() Hash        { return h }
func (h hSHA256) HashFunc() Hash      { return h }
func (h hSHA384) HashFunc() Hash      { return h }
func (h hSHA512) HashFunc() Hash      { return h }
func (h hBLAKE2b_256) HashFunc() Hash { return h }

var (
	SHA1        Hash = hSHA1{} // Legacy
	SHA256      Hash = hSHA256{}
	SHA384      Hash = hSHA384{}
	SHA512      Hash = hSHA512{}
	BLAKE2b_256 Hash = hBLAKE2b_256{}
)

// Digest hashes message with h.
func Digest(h Hash, message []byte) []byte {
	d := h.New()
	d.Write(message)
	return d.Sum(nil)
}
