package signature

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/ed25519"
	"github.com/signatory-io/sigengine/crypto/pkcs8"
	"github.com/signatory-io/sigengine/crypto/rsa"
)

// KeyPair is a private key able to sign with the algorithms of its family.
type KeyPair interface {
	KeyType() crypto.Algorithm
	PublicKey() crypto.PublicKey
	PrivateKey() crypto.PrivateKey
	// SignMessage signs message with alg. crypto.ErrUnsupportedAlgorithm is
	// returned if alg doesn't belong to the key family.
	SignMessage(alg *SigningAlgorithm, rng io.Reader, message []byte) ([]byte, error)
}

var errPublicKeyMismatch = errors.New("signature: public key doesn't match the seed")

// NewKeyPair wraps a parsed private key.
func NewKeyPair(priv crypto.PrivateKey) (KeyPair, error) {
	switch k := priv.(type) {
	case *ed25519.PrivateKey:
		return &Ed25519KeyPair{kp: ed25519.NewKeyPairFromSeed(k[:])}, nil
	case *ecdsa.PrivateKey:
		return &ECDSAKeyPair{priv: k, pub: k.PublicKey()}, nil
	case *rsa.PrivateKey:
		return &RSAKeyPair{priv: k}, nil
	default:
		return nil, fmt.Errorf("%w: %T", crypto.ErrUnsupportedAlgorithm, priv)
	}
}

// NewKeyPairFromPKCS8 parses a PKCS #8 document of any supported family.
func NewKeyPairFromPKCS8(der []byte) (KeyPair, error) {
	priv, err := pkcs8.ParsePrivateKey(der)
	if err != nil {
		return nil, err
	}
	return NewKeyPair(priv)
}

// Ed25519KeyPair signs with ED25519_SIGNING. It is read-only after
// construction and safe for concurrent use.
type Ed25519KeyPair struct {
	kp *ed25519.KeyPair
}

// Ed25519KeyPairFromSeed derives a key pair from a raw 32 byte seed.
func Ed25519KeyPairFromSeed(seed []byte) (*Ed25519KeyPair, error) {
	if len(seed) != ed25519.PrivateKeySize {
		return nil, crypto.KeyRejected(fmt.Errorf("signature: invalid seed length: %d", len(seed)))
	}
	return &Ed25519KeyPair{kp: ed25519.NewKeyPairFromSeed(seed)}, nil
}

// Ed25519KeyPairFromSeedAndPublicKey derives a key pair and checks that its
// public key equals pub.
func Ed25519KeyPairFromSeedAndPublicKey(seed, pub []byte) (*Ed25519KeyPair, error) {
	kp, err := Ed25519KeyPairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	derived := kp.kp.PublicKey()
	if !bytes.Equal(derived[:], pub) {
		return nil, crypto.KeyRejected(errPublicKeyMismatch)
	}
	return kp, nil
}

// Ed25519KeyPairFromPKCS8 parses a v1 or v2 PKCS #8 Ed25519 key.
func Ed25519KeyPairFromPKCS8(der []byte) (*Ed25519KeyPair, error) {
	priv, err := pkcs8.ParsePrivateKey(der)
	if err != nil {
		return nil, err
	}
	k, ok := priv.(*ed25519.PrivateKey)
	if !ok {
		return nil, crypto.KeyRejected(fmt.Errorf("signature: not an Ed25519 key: %v", priv.PrivateKeyType()))
	}
	return &Ed25519KeyPair{kp: ed25519.NewKeyPairFromSeed(k[:])}, nil
}

// GenerateEd25519PKCS8 creates a new key and returns its PKCS #8 v2 encoding.
func GenerateEd25519PKCS8(rng io.Reader) ([]byte, error) {
	kp, err := ed25519.GenerateKeyPair(rng)
	if err != nil {
		return nil, err
	}
	return pkcs8.MarshalPrivateKey(kp.PrivateKey())
}

func (k *Ed25519KeyPair) KeyType() crypto.Algorithm { return crypto.Ed25519 }

func (k *Ed25519KeyPair) PublicKey() crypto.PublicKey {
	pub := k.kp.PublicKey()
	return &pub
}

func (k *Ed25519KeyPair) PrivateKey() crypto.PrivateKey { return k.kp.PrivateKey() }

// PublicKeyBytes returns the 32 byte encoded public point.
func (k *Ed25519KeyPair) PublicKeyBytes() []byte {
	pub := k.kp.PublicKey()
	return pub[:]
}

// Sign returns the 64 byte R||S signature of message.
func (k *Ed25519KeyPair) Sign(message []byte) []byte { return k.kp.Sign(message) }

func (k *Ed25519KeyPair) SignMessage(alg *SigningAlgorithm, _ io.Reader, message []byte) ([]byte, error) {
	if alg != ED25519_SIGNING {
		return nil, crypto.ErrUnsupportedAlgorithm
	}
	return k.Sign(message), nil
}

// RSAKeyPair holds an RSA private key with its CRT parameters. Signing calls
// are serialized internally.
type RSAKeyPair struct {
	priv *rsa.PrivateKey
}

// RSAKeyPairFromDER parses a PKCS #1 RSAPrivateKey.
func RSAKeyPairFromDER(der []byte) (*RSAKeyPair, error) {
	priv, err := rsa.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, err
	}
	return &RSAKeyPair{priv: priv}, nil
}

// RSAKeyPairFromPKCS8 parses a PKCS #8 wrapped RSA key.
func RSAKeyPairFromPKCS8(der []byte) (*RSAKeyPair, error) {
	priv, err := pkcs8.ParsePrivateKey(der)
	if err != nil {
		return nil, err
	}
	k, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, crypto.KeyRejected(fmt.Errorf("signature: not an RSA key: %v", priv.PrivateKeyType()))
	}
	return &RSAKeyPair{priv: k}, nil
}

func (k *RSAKeyPair) KeyType() crypto.Algorithm     { return crypto.RSA }
func (k *RSAKeyPair) PublicKey() crypto.PublicKey   { return k.priv.PublicKey() }
func (k *RSAKeyPair) PrivateKey() crypto.PrivateKey { return k.priv }

// PublicKeyBytes returns the DER encoded RSAPublicKey.
func (k *RSAKeyPair) PublicKeyBytes() []byte { return k.priv.PublicKey().Bytes() }

// PublicModulusLen returns the modulus length in bytes, which is the length
// of every signature.
func (k *RSAKeyPair) PublicModulusLen() int { return k.priv.Size() }

// Sign hashes message and signs it with the padding of alg. rng is used for
// blinding and, with PSS, for the salt.
func (k *RSAKeyPair) Sign(alg *SigningAlgorithm, rng io.Reader, message []byte) ([]byte, error) {
	if !isPublishedSigning(alg) {
		return nil, crypto.ErrUnsupportedAlgorithm
	}
	v := alg.verification
	digest := crypto.Digest(v.hash, message)
	switch v.family {
	case familyRSAPKCS1:
		return rsa.SignPKCS1v15(rng, k.priv, v.hash, digest)
	case familyRSAPSS:
		return rsa.SignPSS(rng, k.priv, v.hash, digest)
	default:
		return nil, crypto.ErrUnsupportedAlgorithm
	}
}

func (k *RSAKeyPair) SignMessage(alg *SigningAlgorithm, rng io.Reader, message []byte) ([]byte, error) {
	return k.Sign(alg, rng, message)
}

// ECDSAKeyPair signs with a P-256 or P-384 key using a random nonce.
type ECDSAKeyPair struct {
	priv *ecdsa.PrivateKey
	pub  *ecdsa.PublicKey
}

// GenerateECDSAKeyPair creates a key on the curve of alg.
func GenerateECDSAKeyPair(alg *SigningAlgorithm, rng io.Reader) (*ECDSAKeyPair, error) {
	if !isPublishedSigning(alg) || alg.verification.family != familyECDSA {
		return nil, crypto.ErrUnsupportedAlgorithm
	}
	priv, err := ecdsa.GeneratePrivateKey(rng, alg.verification.curve)
	if err != nil {
		return nil, err
	}
	return &ECDSAKeyPair{priv: priv, pub: priv.PublicKey()}, nil
}

// ECDSAKeyPairFromPKCS8 parses a PKCS #8 EC key whose curve must match alg.
func ECDSAKeyPairFromPKCS8(alg *SigningAlgorithm, der []byte) (*ECDSAKeyPair, error) {
	if !isPublishedSigning(alg) || alg.verification.family != familyECDSA {
		return nil, crypto.ErrUnsupportedAlgorithm
	}
	priv, err := pkcs8.ParsePrivateKey(der)
	if err != nil {
		return nil, err
	}
	k, ok := priv.(*ecdsa.PrivateKey)
	if !ok || k.Curve != alg.verification.curve {
		return nil, crypto.KeyRejected(fmt.Errorf("signature: key type %v doesn't match %v", priv.PrivateKeyType(), alg))
	}
	return &ECDSAKeyPair{priv: k, pub: k.PublicKey()}, nil
}

func (k *ECDSAKeyPair) KeyType() crypto.Algorithm     { return k.priv.Curve.Algorithm() }
func (k *ECDSAKeyPair) PublicKey() crypto.PublicKey   { return k.pub }
func (k *ECDSAKeyPair) PrivateKey() crypto.PrivateKey { return k.priv }

// PublicKeyBytes returns the uncompressed SEC 1 point.
func (k *ECDSAKeyPair) PublicKeyBytes() []byte { return k.pub.Bytes() }

// Sign hashes message with the digest of alg and returns the signature in
// its ASN.1 or fixed encoding.
func (k *ECDSAKeyPair) Sign(alg *SigningAlgorithm, rng io.Reader, message []byte) ([]byte, error) {
	if !isPublishedSigning(alg) {
		return nil, crypto.ErrUnsupportedAlgorithm
	}
	v := alg.verification
	if v.family != familyECDSA || v.curve != k.priv.Curve {
		return nil, crypto.ErrUnsupportedAlgorithm
	}
	sig, err := k.priv.SignDigest(rng, crypto.Digest(v.hash, message))
	if err != nil {
		return nil, err
	}
	if v.encoding == encodingFixed {
		return sig.Bytes(), nil
	}
	return sig.DERBytes(), nil
}

func (k *ECDSAKeyPair) SignMessage(alg *SigningAlgorithm, rng io.Reader, message []byte) ([]byte, error) {
	return k.Sign(alg, rng, message)
}

var (
	_ KeyPair = (*Ed25519KeyPair)(nil)
	_ KeyPair = (*RSAKeyPair)(nil)
	_ KeyPair = (*ECDSAKeyPair)(nil)
)
