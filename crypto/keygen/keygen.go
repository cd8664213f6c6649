// Package keygen creates private keys for the families that support local
// generation. RSA keys can only be imported.
package keygen

import (
	"fmt"
	"io"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/ed25519"
)

func GeneratePrivateKey(alg crypto.Algorithm, rng io.Reader) (crypto.PrivateKey, error) {
	switch alg {
	case crypto.Ed25519:
		kp, err := ed25519.GenerateKeyPair(rng)
		if err != nil {
			return nil, err
		}
		return kp.PrivateKey(), nil

	case crypto.ECDSA_P256:
		return ecdsaKey(rng, ecdsa.NIST_P256)

	case crypto.ECDSA_P384:
		return ecdsaKey(rng, ecdsa.NIST_P384)

	case crypto.RSA:
		return nil, fmt.Errorf("keygen: %w: RSA keys must be imported", crypto.ErrUnsupportedAlgorithm)

	default:
		return nil, fmt.Errorf("keygen: %w: `%v'", crypto.ErrUnsupportedAlgorithm, alg)
	}
}

func ecdsaKey(rng io.Reader, curve ecdsa.Curve) (crypto.PrivateKey, error) {
	priv, err := ecdsa.GeneratePrivateKey(rng, curve)
	if err != nil {
		return nil, err
	}
	return priv, nil
}
