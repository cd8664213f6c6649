package cli

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/pkix"
	"github.com/signatory-io/sigengine/signature"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAlgorithms(t *testing.T) {
	out, err := run(t, "algorithms")
	require.NoError(t, err)
	for _, a := range signature.VerificationAlgorithms() {
		require.Contains(t, out, a.String())
	}
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "config", "init", "-b", dir, "-l", "debug")
	require.NoError(t, err)

	buf, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(buf), "log_level: debug")

	_, err = run(t, "config", "init", "-b", dir)
	require.Error(t, err)

	_, err = run(t, "key", "generate", "-b", dir, "-a", "p256")
	require.NoError(t, err)
	_, err = run(t, "key", "list", "-b", dir)
	require.NoError(t, err)
	_, err = run(t, "key", "generate", "-b", dir, "-a", "rsa")
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	der, err := signature.GenerateEd25519PKCS8(rand.Reader)
	require.NoError(t, err)
	kp, err := signature.NewKeyPairFromPKCS8(der)
	require.NoError(t, err)

	msg := []byte("message")
	sig, err := kp.SignMessage(signature.ED25519_SIGNING, rand.Reader, msg)
	require.NoError(t, err)

	spki, err := pkix.MarshalPublicKey(kp.PublicKey())
	require.NoError(t, err)

	files := map[string][]byte{
		"msg":     msg,
		"sig":     []byte(hex.EncodeToString(sig)),
		"pub.pem": pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: spki}),
		"pub.hex": []byte(hex.EncodeToString(kp.PublicKey().Bytes()) + "\n"),
		"bad":     []byte("bad"),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0600))
	}
	p := func(name string) string { return filepath.Join(dir, name) }

	for _, pub := range []string{"pub.pem", "pub.hex"} {
		t.Run(pub, func(t *testing.T) {
			out, err := run(t, "verify", "-a", "ed25519", "-p", p(pub), "-s", p("sig"), "-i", p("msg"))
			require.NoError(t, err)
			require.Equal(t, "OK\n", out)
		})
	}

	t.Run("wrong message", func(t *testing.T) {
		_, err := run(t, "verify", "-a", "ed25519", "-p", p("pub.hex"), "-s", p("sig"), "-i", p("bad"))
		require.ErrorIs(t, err, crypto.ErrInvalidSignature)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := run(t, "verify", "-a", "dsa", "-p", p("pub.hex"), "-s", p("sig"), "-i", p("msg"))
		require.Error(t, err)
	})
}
