package utils

import (
	"crypto/rand"
	stdrsa "crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/ed25519"
	"github.com/stretchr/testify/require"
)

func TestKeyFile(t *testing.T) {
	priv, err := ecdsa.GeneratePrivateKey(rand.Reader, ecdsa.NIST_P256)
	require.NoError(t, err)
	dir := t.TempDir()

	t.Run("plain", func(t *testing.T) {
		kf, err := NewKeyFile(priv, nil, rand.Reader)
		require.NoError(t, err)
		enc, err := kf.IsEncrypted()
		require.NoError(t, err)
		require.False(t, enc)

		name := filepath.Join(dir, "plain.key")
		require.NoError(t, WriteKeyFile(name, kf))
		got, err := ReadKeyFile(name)
		require.NoError(t, err)

		p, err := got.DecryptPrivate(nil)
		require.NoError(t, err)
		require.True(t, priv.Public().Equal(p.Public()))
	})

	t.Run("encrypted", func(t *testing.T) {
		kf, err := NewKeyFile(priv, []byte("secret"), rand.Reader)
		require.NoError(t, err)
		enc, err := kf.IsEncrypted()
		require.NoError(t, err)
		require.True(t, enc)

		name := filepath.Join(dir, "enc.key")
		require.NoError(t, WriteKeyFile(name, kf))
		got, err := ReadKeyFile(name)
		require.NoError(t, err)

		pub, err := got.Public()
		require.NoError(t, err)
		require.True(t, priv.Public().Equal(pub))

		_, err = got.DecryptPrivate([]byte("wrong"))
		require.ErrorIs(t, err, ErrDecrypt)

		p, err := got.DecryptPrivate([]byte("secret"))
		require.NoError(t, err)
		require.True(t, priv.Public().Equal(p.Public()))
	})

	t.Run("distinct nonces", func(t *testing.T) {
		a, err := NewKeyFile(priv, []byte("secret"), rand.Reader)
		require.NoError(t, err)
		b, err := NewKeyFile(priv, []byte("secret"), rand.Reader)
		require.NoError(t, err)
		require.NotEqual(t, a.EncryptedPrivateKey.Nonce, b.EncryptedPrivateKey.Nonce)
		require.NotEqual(t, a.EncryptedPrivateKey.Data, b.EncryptedPrivateKey.Data)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := (&KeyFile{}).Public()
		require.ErrorIs(t, err, ErrInvalidKeyFile)
		_, err = (&KeyFile{}).IsEncrypted()
		require.ErrorIs(t, err, ErrInvalidKeyFile)

		name := filepath.Join(dir, "empty.key")
		require.NoError(t, WriteKeyFile(name, &KeyFile{}))
		_, err = ReadKeyFile(name)
		require.ErrorIs(t, err, ErrInvalidKeyFile)
	})

	t.Run("both forms", func(t *testing.T) {
		plain, err := NewKeyFile(priv, nil, rand.Reader)
		require.NoError(t, err)
		sealed, err := NewKeyFile(priv, []byte("secret"), rand.Reader)
		require.NoError(t, err)
		_, err = (&KeyFile{PrivateKey: plain.PrivateKey, EncryptedPrivateKey: sealed.EncryptedPrivateKey}).IsEncrypted()
		require.ErrorIs(t, err, ErrInvalidKeyFile)
	})
}

func TestParsePrivateKey(t *testing.T) {
	seed := make([]byte, ed25519.PrivateKeySize)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	edPriv := ed25519.NewKeyPairFromSeed(seed).PrivateKey()

	edPEM, err := MarshalPEM(edPriv)
	require.NoError(t, err)

	rsaKey, err := stdrsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pkcs1 := x509.MarshalPKCS1PrivateKey(rsaKey)

	cases := []struct {
		name string
		data []byte
		alg  crypto.Algorithm
	}{
		{"hex seed", []byte(hex.EncodeToString(seed) + "\n"), crypto.Ed25519},
		{"pkcs8 pem", edPEM, crypto.Ed25519},
		{"pkcs8 der", func() []byte { b, _ := pem.Decode(edPEM); return b.Bytes }(), crypto.Ed25519},
		{"pkcs1 pem", pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: pkcs1}), crypto.RSA},
		{"pkcs1 der", pkcs1, crypto.RSA},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			priv, err := ParsePrivateKey(c.data)
			require.NoError(t, err)
			require.Equal(t, c.alg, priv.PrivateKeyType())
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := ParsePrivateKey([]byte("not a key"))
		require.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("certificate", func(t *testing.T) {
		_, err := ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0}}))
		require.ErrorIs(t, err, ErrUnknownFormat)
	})
}

func TestParseTezosKey(t *testing.T) {
	t.Run("edsk", func(t *testing.T) {
		priv, err := ParsePrivateKey([]byte("edsk3gUfUPyBSfrS9CCgmCiQsTCHGkviBDusMxDJstFtojtc1zcpsh"))
		require.NoError(t, err)
		require.Equal(t, crypto.Ed25519, priv.PrivateKeyType())
		require.Equal(t, "4798d2cc98473d7e250c898885718afd2e4efbcb1a1595ab9730761ed830de0f", hex.EncodeToString(priv.Public().Bytes()))

		fromSeed, err := ParsePrivateKey([]byte("8500c86780141917fcd8ac6a54a43a9eeda1aba9d263ce5dec5a1d0e5df1e598"))
		require.NoError(t, err)
		require.True(t, fromSeed.Public().Equal(priv.Public()))
	})

	t.Run("p2sk", func(t *testing.T) {
		priv, err := ParsePrivateKey([]byte("p2sk3sccH1AApz4Yw1gufgkeN91Rn9KnzPe2cv5WiaNmxusAZZ7Na2\n"))
		require.NoError(t, err)
		require.Equal(t, crypto.ECDSA_P256, priv.PrivateKeyType())

		d, err := hex.DecodeString("c9afa9d845ba75166b5c215767b1d6934e50c3db36e89b127b8a622b120f6721")
		require.NoError(t, err)
		expected, err := ecdsa.NewPrivateKey(ecdsa.NIST_P256, d)
		require.NoError(t, err)
		require.True(t, expected.Public().Equal(priv.Public()))
	})

	rejected := map[string]string{
		"secp256k1":    "spsk2xPV3WEaNjx5BZTdJf6rbFPNZiDpfJ25aPZ5T6a8FE7rNtmoe8",
		"bls":          "BLsk1dRnT8bPfZHt973HZwDSiQ1RpaottQmxMcDwq9bGYUxVpq6aj8",
		"bad checksum": "edsk3gUfUPyBSfrS9CCgmCiQsTCHGkviBDusMxDJstFtojtc1zcpsi",
	}
	for name, key := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePrivateKey([]byte(key))
			require.ErrorIs(t, err, ErrUnknownFormat)
		})
	}
}

func TestRandomArt(t *testing.T) {
	pub := ed25519.NewKeyPairFromSeed(make([]byte, 32)).PublicKey()
	art := KeyRandomArt("ED25519", &pub)
	lines := strings.Split(strings.TrimSuffix(art, "\n"), "\n")
	require.Len(t, lines, artHeight+2)
	for _, l := range lines {
		require.Len(t, l, artWidth+2)
	}
	require.Contains(t, lines[0], "[ED25519]")
	require.Equal(t, 1, strings.Count(art, "E")-strings.Count(lines[0], "E"))
	require.Equal(t, art, KeyRandomArt("ED25519", &pub))
}
