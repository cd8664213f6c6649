package pkix

import (
	stdecdsa "crypto/ecdsa"
	stded25519 "crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	stdrsa "crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/stretchr/testify/require"
)

func TestParseMarshal(t *testing.T) {
	type testCase struct {
		name   string
		alg    crypto.Algorithm
		newKey func() (any, error)
	}
	cases := []testCase{
		{
			name: "Ed25519",
			alg:  crypto.Ed25519,
			newKey: func() (any, error) {
				pub, _, err := stded25519.GenerateKey(rand.Reader)
				return pub, err
			},
		},
		{
			name: "P-256",
			alg:  crypto.ECDSA_P256,
			newKey: func() (any, error) {
				k, err := stdecdsa.GenerateKey(elliptic.P256(), rand.Reader)
				if err != nil {
					return nil, err
				}
				return &k.PublicKey, nil
			},
		},
		{
			name: "P-384",
			alg:  crypto.ECDSA_P384,
			newKey: func() (any, error) {
				k, err := stdecdsa.GenerateKey(elliptic.P384(), rand.Reader)
				if err != nil {
					return nil, err
				}
				return &k.PublicKey, nil
			},
		},
		{
			name: "RSA",
			alg:  crypto.RSA,
			newKey: func() (any, error) {
				k, err := stdrsa.GenerateKey(rand.Reader, 2048)
				if err != nil {
					return nil, err
				}
				return &k.PublicKey, nil
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			std, err := c.newKey()
			require.NoError(t, err)
			der, err := x509.MarshalPKIXPublicKey(std)
			require.NoError(t, err)

			pub, err := ParsePublicKey(der)
			require.NoError(t, err)
			require.Equal(t, c.alg, pub.PublicKeyType())

			out, err := MarshalPublicKey(pub)
			require.NoError(t, err)
			require.Equal(t, der, out)
		})
	}
}

func TestRejectSmallRSA(t *testing.T) {
	k, err := stdrsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	require.NoError(t, err)
	_, err = ParsePublicKey(der)
	require.Error(t, err)
}
