package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/signatory-io/sigengine/crypto/cose"
)

// Algorithm identifies a key family. The high word holds the COSE algorithm,
// the low word the COSE curve or key type.
type Algorithm uint64

const (
	Ed25519    = Algorithm(cose.AlgEdDSA&(1<<32-1))<<32 | Algorithm(cose.CrvEd25519&(1<<32-1))
	ECDSA_P256 = Algorithm(cose.AlgES256&(1<<32-1))<<32 | Algorithm(cose.CrvP256&(1<<32-1))
	ECDSA_P384 = Algorithm(cose.AlgES384&(1<<32-1))<<32 | Algorithm(cose.CrvP384&(1<<32-1))
	RSA        = Algorithm(cose.AlgPS256&(1<<32-1))<<32 | Algorithm(cose.KeyTypeRSA&(1<<32-1))
)

var algorithmNames = map[Algorithm]string{
	Ed25519:    "Ed25519",
	ECDSA_P256: "ECDSA P-256",
	ECDSA_P384: "ECDSA P-384",
	RSA:        "RSA",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return "Unknown"
}

func (a Algorithm) MarshalText() ([]byte, error) {
	if name, ok := algorithmNames[a]; ok {
		return []byte(name), nil
	}
	return nil, fmt.Errorf("unknown algorithm: %#x", uint64(a))
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	v, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAlgorithm accepts a display name or a short form like "p256" or "ed25519".
func ParseAlgorithm(name string) (Algorithm, error) {
	norm := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(name))
	switch norm {
	case "ed25519", "eddsa":
		return Ed25519, nil
	case "ecdsap256", "p256", "es256":
		return ECDSA_P256, nil
	case "ecdsap384", "p384", "es384":
		return ECDSA_P384, nil
	case "rsa":
		return RSA, nil
	default:
		return 0, fmt.Errorf("unknown algorithm: %s", name)
	}
}

// Algorithms returns all supported key families.
func Algorithms() []Algorithm {
	return []Algorithm{Ed25519, ECDSA_P256, ECDSA_P384, RSA}
}

type PublicKeyHash [32]byte

func (h *PublicKeyHash) String() string {
	return hex.EncodeToString(h[:])
}

func (h PublicKeyHash) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

func (h *PublicKeyHash) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != len(h) {
		return fmt.Errorf("invalid public key hash length: %d", len(text))
	}
	_, err := hex.Decode(h[:], text)
	return err
}

// NewPublicKeyHash fingerprints pub with BLAKE2b-256 over its COSE encoding.
func NewPublicKeyHash(pub PublicKey) *PublicKeyHash {
	h := PublicKeyHash(Digest(BLAKE2b_256, pub.COSE().Encode()))
	return &h
}

// PublicKey is a parsed public key. Bytes returns the encoding consumed by
// the verification functions: raw 32 bytes for Ed25519, an uncompressed
// point for ECDSA and a DER SEQUENCE{n, e} for RSA.
type PublicKey interface {
	PublicKeyType() Algorithm
	Bytes() []byte
	COSE() cose.Key
	Equal(other PublicKey) bool
}

// PrivateKey is a parsed private key. It may not contain its precomputed
// public counterpart.
type PrivateKey interface {
	PrivateKeyType() Algorithm
	Public() PublicKey
	COSE() cose.Key
}
