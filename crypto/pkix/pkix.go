package pkix

import (
	encoding_asn1 "encoding/asn1"
	"errors"
	"fmt"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/ed25519"
	"github.com/signatory-io/sigengine/crypto/oiddb"
	"github.com/signatory-io/sigengine/crypto/rsa"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// RSAKeySize bounds RSA keys accepted from SubjectPublicKeyInfo.
var RSAKeySize = rsa.KeySize{Min: 2048, Max: 8192}

// ParsePublicKey parses a DER encoded SubjectPublicKeyInfo.
func ParsePublicKey(der []byte) (pub crypto.PublicKey, err error) {
	src := cryptobyte.String(der)
	var (
		obj, algo cryptobyte.String
		algoOid   encoding_asn1.ObjectIdentifier
		keyData   encoding_asn1.BitString
	)

	if !src.ReadASN1(&obj, asn1.SEQUENCE) ||
		!src.Empty() ||
		!obj.ReadASN1(&algo, asn1.SEQUENCE) ||
		!algo.ReadASN1ObjectIdentifier(&algoOid) ||
		!obj.ReadASN1BitString(&keyData) ||
		!obj.Empty() {
		return nil, errors.New("pkix: failed to parse PKIX public key")
	}
	if keyData.BitLength%8 != 0 {
		return nil, errors.New("pkix: invalid public key bit string")
	}

	keyBytes := keyData.Bytes
	switch {
	case algoOid.Equal(oiddb.PublicKeyECDSA):
		var curveOid encoding_asn1.ObjectIdentifier
		if !algo.ReadASN1ObjectIdentifier(&curveOid) {
			return nil, errors.New("pkix: failed to parse EC OID")
		}
		curve := ecdsa.CurveFromOID(curveOid)
		if curve == 0 {
			return nil, fmt.Errorf("pkix: unknown curve: %v", curveOid)
		}
		key, err := ecdsa.NewPublicKey(keyBytes, curve)
		if err != nil {
			return nil, err
		}
		return key, nil

	case algoOid.Equal(oiddb.PublicKeyEd25519):
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("pkix: invalid Ed25519 public key length: %d", len(keyBytes))
		}
		var pub ed25519.PublicKey
		copy(pub[:], keyBytes)
		return &pub, nil

	case algoOid.Equal(oiddb.PublicKeyRSA):
		key, err := rsa.ParsePublicKey(keyBytes, RSAKeySize)
		if err != nil {
			return nil, err
		}
		return key, nil

	default:
		return nil, fmt.Errorf("pkix: unsupported algorithm: %v", algoOid)
	}
}

// MarshalPublicKey encodes pub as SubjectPublicKeyInfo.
func MarshalPublicKey(pub crypto.PublicKey) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			switch k := pub.(type) {
			case *ecdsa.PublicKey:
				b.AddASN1ObjectIdentifier(oiddb.PublicKeyECDSA)
				b.AddASN1ObjectIdentifier(k.Curve.OID())
			case *ed25519.PublicKey:
				b.AddASN1ObjectIdentifier(oiddb.PublicKeyEd25519)
			case *rsa.PublicKey:
				b.AddASN1ObjectIdentifier(oiddb.PublicKeyRSA)
				b.AddASN1NULL()
			default:
				b.SetError(fmt.Errorf("pkix: unsupported key type %T", pub))
			}
		})
		b.AddASN1BitString(pub.Bytes())
	})
	return b.Bytes()
}
