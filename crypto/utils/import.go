package utils

import (
	"bytes"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/ecadlabs/gotez/v2"
	"github.com/ecadlabs/gotez/v2/b58"
	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/ed25519"
	"github.com/signatory-io/sigengine/crypto/pkcs8"
	"github.com/signatory-io/sigengine/crypto/rsa"
)

var ErrUnknownFormat = errors.New("unknown private key format")

// ParsePrivateKey accepts a PEM armoured PKCS #8 or PKCS #1 key, the same in
// raw DER, a hex encoded Ed25519 seed or an unencrypted Tezos base58 key
// (edsk or p2sk).
func ParsePrivateKey(data []byte) (crypto.PrivateKey, error) {
	data = bytes.TrimSpace(data)
	if block, _ := pem.Decode(data); block != nil {
		switch block.Type {
		case "PRIVATE KEY":
			return pkcs8.ParsePrivateKey(block.Bytes)
		case "RSA PRIVATE KEY":
			return rsa.ParsePKCS1PrivateKey(block.Bytes)
		default:
			return nil, fmt.Errorf("%w: PEM block %q", ErrUnknownFormat, block.Type)
		}
	}

	if len(data) == hex.EncodedLen(ed25519.PrivateKeySize) {
		if seed, err := hex.DecodeString(string(data)); err == nil {
			return ed25519.NewKeyPairFromSeed(seed).PrivateKey(), nil
		}
	}

	if priv, err := b58.ParsePrivateKey(data); err == nil {
		return fromTezosKey(priv)
	}

	if priv, err := pkcs8.ParsePrivateKey(data); err == nil {
		return priv, nil
	}
	if priv, err := rsa.ParsePKCS1PrivateKey(data); err == nil {
		return priv, nil
	}
	return nil, ErrUnknownFormat
}

func fromTezosKey(priv gotez.PrivateKey) (crypto.PrivateKey, error) {
	switch key := priv.(type) {
	case *gotez.Ed25519PrivateKey:
		return ed25519.NewKeyPairFromSeed(key[:]).PrivateKey(), nil
	case *gotez.P256PrivateKey:
		k, err := ecdsa.NewPrivateKey(ecdsa.NIST_P256, key[:])
		if err != nil {
			return nil, err
		}
		return k, nil
	default:
		// secp256k1 and BLS keys are outside the supported families
		return nil, fmt.Errorf("%w: %T", ErrUnknownFormat, priv)
	}
}

// MarshalPEM returns the PKCS #8 PEM armour of priv.
func MarshalPEM(priv crypto.PrivateKey) ([]byte, error) {
	der, err := pkcs8.MarshalPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
