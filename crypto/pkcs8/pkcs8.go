// Package pkcs8 parses and serializes PKCS #8 private keys. Ed25519 keys may
// carry the RFC 5958 public key field, which is checked against the seed.
package pkcs8

import (
	"bytes"
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

var (
	errMalformed      = errors.New("pkcs8: failed to parse PKCS#8 private key")
	errVersion        = errors.New("pkcs8: invalid version")
	errPublicMismatch = errors.New("pkcs8: embedded public key doesn't match the private key")
)

func rejected(err error) error { return crypto.KeyRejected(err) }

// ParsePrivateKey parses a DER encoded PKCS #8 v1 or v2 structure holding an
// Ed25519, ECDSA P-256/P-384 or RSA key.
func ParsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	src := cryptobyte.String(der)
	var (
		ver                int
		obj, algo, keyData cryptobyte.String
		algoOid            encoding_asn1.ObjectIdentifier
	)
	if !src.ReadASN1(&obj, asn1.SEQUENCE) ||
		!src.Empty() ||
		!obj.ReadASN1Integer(&ver) ||
		!obj.ReadASN1(&algo, asn1.SEQUENCE) ||
		!algo.ReadASN1ObjectIdentifier(&algoOid) ||
		!obj.ReadASN1(&keyData, asn1.OCTET_STRING) {
		return nil, rejected(errMalformed)
	}
	if ver != 0 && ver != 1 {
		return nil, rejected(errVersion)
	}
	// attributes [0] are ignored
	if !obj.SkipOptionalASN1(asn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, rejected(errMalformed)
	}
	var (
		embeddedPub []byte
		hasPub      bool
	)
	if ver == 1 {
		var err error
		if embeddedPub, hasPub, err = readEmbeddedPublicKey(&obj); err != nil {
			return nil, rejected(err)
		}
	}
	if !obj.Empty() {
		return nil, rejected(errMalformed)
	}

	switch {
	case algoOid.Equal(oiddb.PublicKeyECDSA):
		var curveOid encoding_asn1.ObjectIdentifier
		if !algo.ReadASN1ObjectIdentifier(&curveOid) {
			return nil, rejected(errors.New("pkcs8: failed to parse EC OID"))
		}
		curve := ecdsa.CurveFromOID(curveOid)
		if curve == 0 {
			return nil, rejected(fmt.Errorf("pkcs8: unknown curve: %v", curveOid))
		}
		priv, err := parseECPrivateKey(keyData, curve)
		if err != nil {
			return nil, err
		}
		return priv, nil

	case algoOid.Equal(oiddb.PublicKeyEd25519):
		var value cryptobyte.String
		if !keyData.ReadASN1(&value, asn1.OCTET_STRING) || !keyData.Empty() {
			return nil, rejected(errors.New("pkcs8: failed to parse EdDSA private key"))
		}
		if len(value) != ed25519.PrivateKeySize {
			return nil, rejected(fmt.Errorf("pkcs8: invalid EdDSA private key length: %d", len(value)))
		}
		var priv ed25519.PrivateKey
		copy(priv[:], value)
		if hasPub {
			pub := ed25519.NewKeyPairFromSeed(priv[:]).PublicKey()
			if !bytes.Equal(pub[:], embeddedPub) {
				return nil, rejected(errPublicMismatch)
			}
		}
		return &priv, nil

	case algoOid.Equal(oiddb.PublicKeyRSA):
		priv, err := rsa.ParsePKCS1PrivateKey(keyData)
		if err != nil {
			return nil, err
		}
		return priv, nil

	default:
		return nil, rejected(fmt.Errorf("pkcs8: unsupported algorithm: %v", algoOid))
	}
}

// readEmbeddedPublicKey reads the RFC 5958 publicKey field. Both the
// IMPLICIT BIT STRING form and the explicitly tagged one are accepted.
func readEmbeddedPublicKey(obj *cryptobyte.String) ([]byte, bool, error) {
	var (
		data    cryptobyte.String
		present bool
	)
	if !obj.ReadOptionalASN1(&data, &present, asn1.Tag(1).Constructed().ContextSpecific()) {
		return nil, false, errMalformed
	}
	if present {
		var bits encoding_asn1.BitString
		if !data.ReadASN1BitString(&bits) || !data.Empty() || bits.BitLength%8 != 0 {
			return nil, false, errMalformed
		}
		return bits.Bytes, true, nil
	}
	if !obj.ReadOptionalASN1(&data, &present, asn1.Tag(1).ContextSpecific()) {
		return nil, false, errMalformed
	}
	if !present {
		return nil, false, nil
	}
	// the first byte counts unused bits
	if len(data) == 0 || data[0] != 0 {
		return nil, false, errMalformed
	}
	return data[1:], true, nil
}

// parseECPrivateKey parses the RFC 5915 ECPrivateKey structure.
func parseECPrivateKey(data cryptobyte.String, curve ecdsa.Curve) (*ecdsa.PrivateKey, error) {
	var (
		obj               cryptobyte.String
		ver               int
		value             cryptobyte.String
		params            cryptobyte.String
		pub               cryptobyte.String
		hasParams, hasPub bool
	)
	if !data.ReadASN1(&obj, asn1.SEQUENCE) ||
		!data.Empty() ||
		!obj.ReadASN1Integer(&ver) ||
		!obj.ReadASN1(&value, asn1.OCTET_STRING) ||
		!obj.ReadOptionalASN1(&params, &hasParams, asn1.Tag(0).Constructed().ContextSpecific()) ||
		!obj.ReadOptionalASN1(&pub, &hasPub, asn1.Tag(1).Constructed().ContextSpecific()) ||
		!obj.Empty() {
		return nil, rejected(errors.New("pkcs8: failed to parse EC private key"))
	}
	if ver != 1 {
		return nil, rejected(errVersion)
	}
	if hasParams {
		var oid encoding_asn1.ObjectIdentifier
		if !params.ReadASN1ObjectIdentifier(&oid) || ecdsa.CurveFromOID(oid) != curve {
			return nil, rejected(errors.New("pkcs8: EC parameters mismatch"))
		}
	}
	if len(value) != curve.FieldBytes() {
		return nil, rejected(fmt.Errorf("pkcs8: invalid EC private key length: %d", len(value)))
	}
	priv, err := ecdsa.NewPrivateKey(curve, value)
	if err != nil {
		return nil, rejected(err)
	}
	if hasPub {
		var bits encoding_asn1.BitString
		if !pub.ReadASN1BitString(&bits) || bits.BitLength%8 != 0 {
			return nil, rejected(errors.New("pkcs8: failed to parse EC public key"))
		}
		decoded, err := ecdsa.NewPublicKey(bits.Bytes, curve)
		if err != nil || !decoded.Equal(priv.PublicKey()) {
			return nil, rejected(errPublicMismatch)
		}
	}
	return priv, nil
}

// MarshalPrivateKey serializes a key as PKCS #8. Ed25519 keys are written in
// the v2 form with the public key included.
func MarshalPrivateKey(priv crypto.PrivateKey) ([]byte, error) {
	var b cryptobyte.Builder
	switch k := priv.(type) {
	case *ed25519.PrivateKey:
		pub := ed25519.NewKeyPairFromSeed(k[:]).PublicKey()
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1Int64(1)
			b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oiddb.PublicKeyEd25519)
			})
			b.AddASN1(asn1.OCTET_STRING, func(b *cryptobyte.Builder) {
				b.AddASN1OctetString(k[:])
			})
			b.AddASN1(asn1.Tag(1).ContextSpecific(), func(b *cryptobyte.Builder) {
				b.AddUint8(0)
				b.AddBytes(pub[:])
			})
		})

	case *ecdsa.PrivateKey:
		pub := k.PublicKey()
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1Int64(0)
			b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oiddb.PublicKeyECDSA)
				b.AddASN1ObjectIdentifier(k.Curve.OID())
			})
			b.AddASN1(asn1.OCTET_STRING, func(b *cryptobyte.Builder) {
				b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1Int64(1)
					b.AddASN1OctetString(k.D)
					b.AddASN1(asn1.Tag(1).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
						b.AddASN1BitString(pub.Bytes())
					})
				})
			})
		})

	case *rsa.PrivateKey:
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1Int64(0)
			b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oiddb.PublicKeyRSA)
				b.AddASN1NULL()
			})
			b.AddASN1OctetString(rsa.MarshalPKCS1PrivateKey(k))
		})

	default:
		return nil, fmt.Errorf("pkcs8: unsupported key type %T", priv)
	}
	return b.Bytes()
}
