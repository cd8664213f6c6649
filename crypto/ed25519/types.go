package ed25519

import (
	"bytes"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/cose"
)

const (
	PublicKeySize  = 32
	PrivateKeySize = 32
	SignatureSize  = 64
)

type PublicKey [PublicKeySize]byte

func (p *PublicKey) Equal(other crypto.PublicKey) bool {
	if oth, ok := other.(*PublicKey); ok {
		return *oth == *p
	}
	return false
}

func (p *PublicKey) PublicKeyType() crypto.Algorithm { return crypto.Ed25519 }
func (p *PublicKey) Bytes() []byte                   { return bytes.Clone(p[:]) }
func (p *PublicKey) COSE() cose.Key {
	return cose.Key{
		cose.AttrKty:     cose.KeyTypeOKP,
		cose.AttrOKP_Crv: cose.CrvEd25519,
		cose.AttrOKP_X:   bytes.Clone(p[:]),
	}
}

// PrivateKey is the 32 byte RFC 8032 seed.
type PrivateKey [PrivateKeySize]byte

func (p *PrivateKey) PrivateKeyType() crypto.Algorithm { return crypto.Ed25519 }

func (p *PrivateKey) Public() crypto.PublicKey {
	pub := NewKeyPairFromSeed(p[:]).PublicKey()
	return &pub
}

func (p *PrivateKey) COSE() cose.Key {
	pub := NewKeyPairFromSeed(p[:]).PublicKey()
	return cose.Key{
		cose.AttrKty:     cose.KeyTypeOKP,
		cose.AttrOKP_Crv: cose.CrvEd25519,
		cose.AttrOKP_X:   pub[:],
		cose.AttrOKP_D:   bytes.Clone(p[:]),
	}
}
