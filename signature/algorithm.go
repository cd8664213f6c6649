// Package signature dispatches verification and signing over a closed set of
// algorithm descriptors. Only the descriptors published by this package are
// accepted; a copy of one is treated as an unknown algorithm.
package signature

import (
	"fmt"
	"strings"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/rsa"
)

type family int

const (
	familyEd25519 family = iota + 1
	familyECDSA
	familyRSAPKCS1
	familyRSAPSS
)

type encoding int

const (
	encodingRaw encoding = iota
	encodingASN1
	encodingFixed
)

// VerificationAlgorithm binds a key family, a digest, a signature encoding
// and the accepted key size.
type VerificationAlgorithm struct {
	name     string
	family   family
	hash     crypto.Hash
	curve    ecdsa.Curve
	encoding encoding
	keySize  rsa.KeySize
}

func (a *VerificationAlgorithm) String() string { return a.name }

// KeyType returns the key family the algorithm accepts.
func (a *VerificationAlgorithm) KeyType() crypto.Algorithm {
	switch a.family {
	case familyEd25519:
		return crypto.Ed25519
	case familyECDSA:
		return a.curve.Algorithm()
	default:
		return crypto.RSA
	}
}

// SigningAlgorithm describes how a key pair produces a signature. Every
// signing algorithm has a matching verification algorithm.
type SigningAlgorithm struct {
	name         string
	verification *VerificationAlgorithm
}

func (a *SigningAlgorithm) String() string { return a.name }

// Verification returns the algorithm that checks signatures produced by a.
func (a *SigningAlgorithm) Verification() *VerificationAlgorithm { return a.verification }

func (a *SigningAlgorithm) KeyType() crypto.Algorithm { return a.verification.KeyType() }

func ecdsaAlg(name string, curve ecdsa.Curve, h crypto.Hash, enc encoding) *VerificationAlgorithm {
	return &VerificationAlgorithm{name: name, family: familyECDSA, hash: h, curve: curve, encoding: enc}
}

func rsaAlg(name string, f family, h crypto.Hash, minBits int) *VerificationAlgorithm {
	return &VerificationAlgorithm{name: name, family: f, hash: h, keySize: rsa.KeySize{Min: minBits, Max: 8192}}
}

// Verification algorithms
var (
	ECDSA_P256_SHA256_ASN1  = ecdsaAlg("ECDSA_P256_SHA256_ASN1", ecdsa.NIST_P256, crypto.SHA256, encodingASN1)
	ECDSA_P256_SHA384_ASN1  = ecdsaAlg("ECDSA_P256_SHA384_ASN1", ecdsa.NIST_P256, crypto.SHA384, encodingASN1)
	ECDSA_P384_SHA256_ASN1  = ecdsaAlg("ECDSA_P384_SHA256_ASN1", ecdsa.NIST_P384, crypto.SHA256, encodingASN1)
	ECDSA_P384_SHA384_ASN1  = ecdsaAlg("ECDSA_P384_SHA384_ASN1", ecdsa.NIST_P384, crypto.SHA384, encodingASN1)
	ECDSA_P256_SHA256_FIXED = ecdsaAlg("ECDSA_P256_SHA256_FIXED", ecdsa.NIST_P256, crypto.SHA256, encodingFixed)
	ECDSA_P384_SHA384_FIXED = ecdsaAlg("ECDSA_P384_SHA384_FIXED", ecdsa.NIST_P384, crypto.SHA384, encodingFixed)

	ED25519 = &VerificationAlgorithm{name: "ED25519", family: familyEd25519, hash: crypto.SHA512}

	RSA_PKCS1_2048_8192_SHA1_FOR_LEGACY_USE_ONLY = rsaAlg("RSA_PKCS1_2048_8192_SHA1_FOR_LEGACY_USE_ONLY", familyRSAPKCS1, crypto.SHA1, 2048)
	RSA_PKCS1_2048_8192_SHA256                   = rsaAlg("RSA_PKCS1_2048_8192_SHA256", familyRSAPKCS1, crypto.SHA256, 2048)
	RSA_PKCS1_2048_8192_SHA384                   = rsaAlg("RSA_PKCS1_2048_8192_SHA384", familyRSAPKCS1, crypto.SHA384, 2048)
	RSA_PKCS1_2048_8192_SHA512                   = rsaAlg("RSA_PKCS1_2048_8192_SHA512", familyRSAPKCS1, crypto.SHA512, 2048)
	RSA_PKCS1_3072_8192_SHA384                   = rsaAlg("RSA_PKCS1_3072_8192_SHA384", familyRSAPKCS1, crypto.SHA384, 3072)
	RSA_PSS_2048_8192_SHA256                     = rsaAlg("RSA_PSS_2048_8192_SHA256", familyRSAPSS, crypto.SHA256, 2048)
	RSA_PSS_2048_8192_SHA384                     = rsaAlg("RSA_PSS_2048_8192_SHA384", familyRSAPSS, crypto.SHA384, 2048)
	RSA_PSS_2048_8192_SHA512                     = rsaAlg("RSA_PSS_2048_8192_SHA512", familyRSAPSS, crypto.SHA512, 2048)
)

// Signing algorithms
var (
	ED25519_SIGNING = &SigningAlgorithm{name: "ED25519", verification: ED25519}

	RSA_PKCS1_SHA256 = &SigningAlgorithm{name: "RSA_PKCS1_SHA256", verification: RSA_PKCS1_2048_8192_SHA256}
	RSA_PKCS1_SHA384 = &SigningAlgorithm{name: "RSA_PKCS1_SHA384", verification: RSA_PKCS1_2048_8192_SHA384}
	RSA_PKCS1_SHA512 = &SigningAlgorithm{name: "RSA_PKCS1_SHA512", verification: RSA_PKCS1_2048_8192_SHA512}
	RSA_PSS_SHA256   = &SigningAlgorithm{name: "RSA_PSS_SHA256", verification: RSA_PSS_2048_8192_SHA256}
	RSA_PSS_SHA384   = &SigningAlgorithm{name: "RSA_PSS_SHA384", verification: RSA_PSS_2048_8192_SHA384}
	RSA_PSS_SHA512   = &SigningAlgorithm{name: "RSA_PSS_SHA512", verification: RSA_PSS_2048_8192_SHA512}

	ECDSA_P256_SHA256_ASN1_SIGNING  = &SigningAlgorithm{name: "ECDSA_P256_SHA256_ASN1", verification: ECDSA_P256_SHA256_ASN1}
	ECDSA_P384_SHA384_ASN1_SIGNING  = &SigningAlgorithm{name: "ECDSA_P384_SHA384_ASN1", verification: ECDSA_P384_SHA384_ASN1}
	ECDSA_P256_SHA256_FIXED_SIGNING = &SigningAlgorithm{name: "ECDSA_P256_SHA256_FIXED", verification: ECDSA_P256_SHA256_FIXED}
	ECDSA_P384_SHA384_FIXED_SIGNING = &SigningAlgorithm{name: "ECDSA_P384_SHA384_FIXED", verification: ECDSA_P384_SHA384_FIXED}
)

var verificationAlgorithms = []*VerificationAlgorithm{
	ECDSA_P256_SHA256_ASN1,
	ECDSA_P256_SHA384_ASN1,
	ECDSA_P384_SHA256_ASN1,
	ECDSA_P384_SHA384_ASN1,
	ECDSA_P256_SHA256_FIXED,
	ECDSA_P384_SHA384_FIXED,
	ED25519,
	RSA_PKCS1_2048_8192_SHA1_FOR_LEGACY_USE_ONLY,
	RSA_PKCS1_2048_8192_SHA256,
	RSA_PKCS1_2048_8192_SHA384,
	RSA_PKCS1_2048_8192_SHA512,
	RSA_PKCS1_3072_8192_SHA384,
	RSA_PSS_2048_8192_SHA256,
	RSA_PSS_2048_8192_SHA384,
	RSA_PSS_2048_8192_SHA512,
}

var signingAlgorithms = []*SigningAlgorithm{
	ED25519_SIGNING,
	RSA_PKCS1_SHA256,
	RSA_PKCS1_SHA384,
	RSA_PKCS1_SHA512,
	RSA_PSS_SHA256,
	RSA_PSS_SHA384,
	RSA_PSS_SHA512,
	ECDSA_P256_SHA256_ASN1_SIGNING,
	ECDSA_P384_SHA384_ASN1_SIGNING,
	ECDSA_P256_SHA256_FIXED_SIGNING,
	ECDSA_P384_SHA384_FIXED_SIGNING,
}

// identity comparison, a struct copy with equal fields is not published
func isPublished(alg *VerificationAlgorithm) bool {
	for _, a := range verificationAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}

func isPublishedSigning(alg *SigningAlgorithm) bool {
	for _, a := range signingAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}

// VerificationAlgorithms returns the published verification algorithms.
func VerificationAlgorithms() []*VerificationAlgorithm {
	out := make([]*VerificationAlgorithm, len(verificationAlgorithms))
	copy(out, verificationAlgorithms)
	return out
}

// SigningAlgorithms returns the published signing algorithms.
func SigningAlgorithms() []*SigningAlgorithm {
	out := make([]*SigningAlgorithm, len(signingAlgorithms))
	copy(out, signingAlgorithms)
	return out
}

func normName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(name)))
}

// LookupVerification finds a verification algorithm by name. The match is
// case insensitive and treats dashes as underscores.
func LookupVerification(name string) (*VerificationAlgorithm, error) {
	n := normName(name)
	for _, a := range verificationAlgorithms {
		if a.name == n {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", crypto.ErrUnsupportedAlgorithm, name)
}

// LookupSigning finds a signing algorithm by name.
func LookupSigning(name string) (*SigningAlgorithm, error) {
	n := normName(name)
	for _, a := range signingAlgorithms {
		if a.name == n {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", crypto.ErrUnsupportedAlgorithm, name)
}

// DefaultSigningAlgorithm returns the algorithm used for a key family when
// none is configured.
func DefaultSigningAlgorithm(keyType crypto.Algorithm) (*SigningAlgorithm, error) {
	switch keyType {
	case crypto.Ed25519:
		return ED25519_SIGNING, nil
	case crypto.ECDSA_P256:
		return ECDSA_P256_SHA256_ASN1_SIGNING, nil
	case crypto.ECDSA_P384:
		return ECDSA_P384_SHA384_ASN1_SIGNING, nil
	case crypto.RSA:
		return RSA_PSS_SHA256, nil
	default:
		return nil, crypto.ErrUnsupportedAlgorithm
	}
}
