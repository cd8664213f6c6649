// Package key converts COSE keys to parsed public and private keys.
package key

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/cose"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/ed25519"
	"github.com/signatory-io/sigengine/crypto/rsa"
)

var errInvalidPublicKey = errors.New("invalid public key format")
var errInvalidPrivateKey = errors.New("invalid private key format")

// RSAKeySize bounds RSA public keys decoded from COSE.
var RSAKeySize = rsa.KeySize{Min: 2048, Max: 8192}

func ParsePublicKey(data []byte) (crypto.PublicKey, error) {
	var key cose.Key
	if err := cbor.Unmarshal(data, &key); err != nil {
		return nil, err
	}
	return NewPublicKey(key)
}

func NewPublicKey(key cose.Key) (crypto.PublicKey, error) {
	switch kty := key.Kty(); kty {
	case cose.KeyTypeOKP:
		x, ok := cose.GetBytes(key, cose.AttrOKP_X)
		if !ok {
			return nil, errInvalidPublicKey
		}
		switch crv := cose.GetAttr[cose.Curve](key, cose.AttrOKP_Crv); crv {
		case cose.CrvEd25519:
			if len(x) != ed25519.PublicKeySize {
				return nil, fmt.Errorf("invalid public key length: %d", len(x))
			}
			var out ed25519.PublicKey
			copy(out[:], x)
			return &out, nil

		default:
			return nil, fmt.Errorf("unsupported curve %v for key type %v", crv, kty)
		}

	case cose.KeyTypeEC2:
		crv := cose.GetAttr[cose.Curve](key, cose.AttrEC2_Crv)
		curve := ecdsa.CurveFromCOSE(crv)
		if curve == 0 {
			return nil, fmt.Errorf("unsupported curve %v for key type %v", crv, kty)
		}
		xBytes, ok := cose.GetBytes(key, cose.AttrEC2_X)
		if !ok {
			return nil, errInvalidPublicKey
		}
		var (
			pub *ecdsa.PublicKey
			err error
		)
		switch yVal := key[cose.AttrEC2_Y].(type) {
		case []byte:
			buf := make([]byte, 0, 1+len(xBytes)+len(yVal))
			buf = append(buf, 4)
			buf = append(buf, xBytes...)
			buf = append(buf, yVal...)
			pub, err = ecdsa.NewPublicKeyFromUncompressed(buf, curve)
		case bool:
			pub, err = ecdsa.UnmarshalCompressed(xBytes, yVal, curve)
		default:
			return nil, errInvalidPublicKey
		}
		if err != nil {
			return nil, err
		}
		return pub, nil

	case cose.KeyTypeRSA:
		n, okN := cose.GetBytes(key, cose.AttrRSA_N)
		e, okE := cose.GetBytes(key, cose.AttrRSA_E)
		if !okN || !okE {
			return nil, errInvalidPublicKey
		}
		pub, err := rsa.NewPublicKey(n, e, RSAKeySize)
		if err != nil {
			return nil, err
		}
		return pub, nil

	default:
		return nil, fmt.Errorf("unsupported key type %v", kty)
	}
}

func ParsePrivateKey(data []byte) (crypto.PrivateKey, error) {
	var key cose.Key
	if err := cbor.Unmarshal(data, &key); err != nil {
		return nil, err
	}
	return NewPrivateKey(key)
}

func NewPrivateKey(key cose.Key) (crypto.PrivateKey, error) {
	switch kty := key.Kty(); kty {
	case cose.KeyTypeOKP:
		d, ok := cose.GetBytes(key, cose.AttrOKP_D)
		if !ok {
			return nil, errInvalidPrivateKey
		}
		switch crv := cose.GetAttr[cose.Curve](key, cose.AttrOKP_Crv); crv {
		case cose.CrvEd25519:
			if len(d) != ed25519.PrivateKeySize {
				return nil, fmt.Errorf("invalid private key length: %d", len(d))
			}
			var out ed25519.PrivateKey
			copy(out[:], d)
			return &out, nil

		default:
			return nil, fmt.Errorf("unsupported curve %v for key type %v", crv, kty)
		}

	case cose.KeyTypeEC2:
		crv := cose.GetAttr[cose.Curve](key, cose.AttrEC2_Crv)
		curve := ecdsa.CurveFromCOSE(crv)
		if curve == 0 {
			return nil, fmt.Errorf("unsupported curve %v for key type %v", crv, kty)
		}
		d, ok := cose.GetBytes(key, cose.AttrEC2_D)
		if !ok {
			return nil, errInvalidPrivateKey
		}
		priv, err := ecdsa.NewPrivateKey(curve, d)
		if err != nil {
			return nil, err
		}
		return priv, nil

	case cose.KeyTypeRSA:
		var fields [8][]byte
		for i, attr := range []int64{
			cose.AttrRSA_N, cose.AttrRSA_E, cose.AttrRSA_D, cose.AttrRSA_P,
			cose.AttrRSA_Q, cose.AttrRSA_dP, cose.AttrRSA_dQ, cose.AttrRSA_qInv,
		} {
			v, ok := cose.GetBytes(key, attr)
			if !ok {
				return nil, errInvalidPrivateKey
			}
			fields[i] = v
		}
		priv, err := rsa.NewPrivateKeyWithCRT(fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6], fields[7])
		if err != nil {
			return nil, err
		}
		return priv, nil

	default:
		return nil, fmt.Errorf("unsupported key type %v", kty)
	}
}
