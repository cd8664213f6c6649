package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/signature"
)

var b64 = base64.RawURLEncoding

var ErrMalformed = errors.New("token: malformed token")

type Header struct {
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
}

type Claims struct {
	Issuer   string `json:"iss"`
	IssuedAt int64  `json:"iat"`
}

func (c *Claims) IssueTime() time.Time { return time.Unix(c.IssuedAt, 0) }

var algNames = map[*signature.SigningAlgorithm]string{
	signature.ECDSA_P256_SHA256_FIXED_SIGNING: "ES256",
	signature.ECDSA_P384_SHA384_FIXED_SIGNING: "ES384",
	signature.ED25519_SIGNING:                 "EdDSA",
	signature.RSA_PKCS1_SHA256:                "RS256",
	signature.RSA_PKCS1_SHA384:                "RS384",
	signature.RSA_PKCS1_SHA512:                "RS512",
	signature.RSA_PSS_SHA256:                  "PS256",
	signature.RSA_PSS_SHA384:                  "PS384",
	signature.RSA_PSS_SHA512:                  "PS512",
}

// AlgorithmByName returns the signing algorithm registered under a JWS name.
func AlgorithmByName(name string) (*signature.SigningAlgorithm, error) {
	for alg, n := range algNames {
		if n == name {
			return alg, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", crypto.ErrUnsupportedAlgorithm, name)
}

func encodeSegment(v any) (string, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return b64.EncodeToString(buf), nil
}

func signingInput(h *Header, c *Claims) (string, error) {
	hs, err := encodeSegment(h)
	if err != nil {
		return "", err
	}
	cs, err := encodeSegment(c)
	if err != nil {
		return "", err
	}
	return hs + "." + cs, nil
}

func decodeSegment(s string, v any) error {
	buf, err := b64.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Verify checks the token signature with pub and returns the decoded parts.
// The algorithm named in the header must belong to the family of pub.
func Verify(token string, pub crypto.PublicKey) (*Header, *Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, nil, ErrMalformed
	}
	var (
		h Header
		c Claims
	)
	if err := decodeSegment(parts[0], &h); err != nil {
		return nil, nil, err
	}
	alg, err := AlgorithmByName(h.Algorithm)
	if err != nil {
		return nil, nil, err
	}
	if alg.KeyType() != pub.PublicKeyType() {
		return nil, nil, fmt.Errorf("token: %s can't be verified with %v key: %w", h.Algorithm, pub.PublicKeyType(), crypto.ErrInvalidSignature)
	}
	sig, err := b64.DecodeString(parts[2])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := signature.Verify(alg.Verification(), pub.Bytes(), []byte(parts[0]+"."+parts[1]), sig); err != nil {
		return nil, nil, err
	}
	if err := decodeSegment(parts[1], &c); err != nil {
		return nil, nil, err
	}
	return &h, &c, nil
}
