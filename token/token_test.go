package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/signature"
	"github.com/stretchr/testify/require"
)

const testKey = "MIGHAgEAMBMGByqGSM49AgEGCCqGSM49AwEHBG0wawIBAQQg8g/n6j9roKvnUkwulCEIvbDqlUhA5FOzcakkG90E8L+hRANCAATKS2ZExEybUvchRDuKBftotMwVEus3jDwmlD1Gg0yJt1e38djFwsxsfr5q2hv0Rj9fTEqAPr8H7mGm0wKxZ7iQ"

func testKeyPair(t *testing.T) signature.KeyPair {
	der, err := base64.StdEncoding.DecodeString(testKey)
	require.NoError(t, err)
	kp, err := signature.NewKeyPairFromPKCS8(der)
	require.NoError(t, err)
	return kp
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func newSigner(t *testing.T, ttl time.Duration) (*Signer, *clock, signature.KeyPair) {
	kp := testKeyPair(t)
	s, err := New(FromKeyPair(kp, rand.Reader), &Config{KeyID: "89AFRD1X22", Issuer: "ASDFQWERTY", TTL: ttl}, nil)
	require.NoError(t, err)
	c := &clock{t: time.Unix(1700000000, 0)}
	s.Now = c.now
	return s, c, kp
}

func TestCaching(t *testing.T) {
	s, c, _ := newSigner(t, 100*time.Second)
	ctx := context.Background()

	tok1, err := s.Token(ctx)
	require.NoError(t, err)
	c.t = c.t.Add(99 * time.Second)
	tok2, err := s.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, tok1, tok2)

	c.t = c.t.Add(time.Second)
	tok3, err := s.Token(ctx)
	require.NoError(t, err)
	require.NotEqual(t, tok1, tok3)
}

func TestWithoutCaching(t *testing.T) {
	s, _, _ := newSigner(t, 0)
	ctx := context.Background()

	tok1, err := s.Token(ctx)
	require.NoError(t, err)
	tok2, err := s.Token(ctx)
	require.NoError(t, err)
	require.NotEqual(t, tok1, tok2)
}

func TestVerify(t *testing.T) {
	s, c, kp := newSigner(t, time.Minute)
	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	require.Len(t, strings.Split(tok, "."), 3)

	h, claims, err := Verify(tok, kp.PublicKey())
	require.NoError(t, err)
	require.Equal(t, &Header{Algorithm: "ES256", KeyID: "89AFRD1X22"}, h)
	require.Equal(t, "ASDFQWERTY", claims.Issuer)
	require.Equal(t, c.t, claims.IssueTime())

	parts := strings.Split(tok, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	require.Len(t, sig, 64)

	cases := map[string]string{
		"two parts":     parts[0] + "." + parts[1],
		"bad signature": parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(make([]byte, 64)),
		"other claims":  parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"iss":"X","iat":0}`)) + "." + parts[2],
		"bad base64":    parts[0] + "." + parts[1] + ".!!",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Verify(tok, kp.PublicKey())
			require.Error(t, err)
		})
	}
}

func TestAlgorithms(t *testing.T) {
	kp, err := signature.GenerateEd25519PKCS8(rand.Reader)
	require.NoError(t, err)
	ed, err := signature.NewKeyPairFromPKCS8(kp)
	require.NoError(t, err)

	s, err := New(FromKeyPair(ed, rand.Reader), &Config{KeyID: "k", Issuer: "i", TTL: time.Hour, Algorithm: signature.ED25519_SIGNING}, nil)
	require.NoError(t, err)
	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	h, _, err := Verify(tok, ed.PublicKey())
	require.NoError(t, err)
	require.Equal(t, "EdDSA", h.Algorithm)

	_, _, err = Verify(tok, testKeyPair(t).PublicKey())
	require.ErrorIs(t, err, crypto.ErrInvalidSignature)

	_, err = New(FromKeyPair(ed, rand.Reader), &Config{Algorithm: signature.ECDSA_P256_SHA256_ASN1_SIGNING}, nil)
	require.Error(t, err)

	_, err = AlgorithmByName("HS256")
	require.ErrorIs(t, err, crypto.ErrUnsupportedAlgorithm)
}

func TestConcurrent(t *testing.T) {
	s, _, _ := newSigner(t, time.Hour)
	var wg sync.WaitGroup
	tokens := make([]string, 16)
	for i := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], _ = s.Token(context.Background())
		}()
	}
	wg.Wait()
	for _, tok := range tokens {
		require.Equal(t, tokens[0], tok)
		require.NotEmpty(t, tok)
	}
}
