package signature

import (
	"bytes"
	"context"
	stdcrypto "crypto"
	stdecdsa "crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	stdrsa "crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/pkcs8"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var testRSAKey = sync.OnceValue(func() *stdrsa.PrivateKey {
	k, err := stdrsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return k
})

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func flipBit(b []byte, i int) []byte {
	out := bytes.Clone(b)
	out[i/8] ^= 1 << (i % 8)
	return out
}

type signCase struct {
	alg     *SigningAlgorithm
	keyPair func(t *testing.T) KeyPair
}

func rsaKeyPair(t *testing.T) KeyPair {
	kp, err := RSAKeyPairFromDER(x509.MarshalPKCS1PrivateKey(testRSAKey()))
	require.NoError(t, err)
	return kp
}

func ed25519KeyPair(t *testing.T) KeyPair {
	der, err := GenerateEd25519PKCS8(rand.Reader)
	require.NoError(t, err)
	kp, err := Ed25519KeyPairFromPKCS8(der)
	require.NoError(t, err)
	return kp
}

func ecdsaKeyPair(alg *SigningAlgorithm) func(t *testing.T) KeyPair {
	return func(t *testing.T) KeyPair {
		kp, err := GenerateECDSAKeyPair(alg, rand.Reader)
		require.NoError(t, err)
		return kp
	}
}

func publicKeyBytes(kp KeyPair) []byte { return kp.PublicKey().Bytes() }

func signCases() []signCase {
	return []signCase{
		{alg: ED25519_SIGNING, keyPair: ed25519KeyPair},
		{alg: RSA_PKCS1_SHA256, keyPair: rsaKeyPair},
		{alg: RSA_PKCS1_SHA384, keyPair: rsaKeyPair},
		{alg: RSA_PKCS1_SHA512, keyPair: rsaKeyPair},
		{alg: RSA_PSS_SHA256, keyPair: rsaKeyPair},
		{alg: RSA_PSS_SHA384, keyPair: rsaKeyPair},
		{alg: RSA_PSS_SHA512, keyPair: rsaKeyPair},
		{alg: ECDSA_P256_SHA256_ASN1_SIGNING, keyPair: ecdsaKeyPair(ECDSA_P256_SHA256_ASN1_SIGNING)},
		{alg: ECDSA_P384_SHA384_ASN1_SIGNING, keyPair: ecdsaKeyPair(ECDSA_P384_SHA384_ASN1_SIGNING)},
		{alg: ECDSA_P256_SHA256_FIXED_SIGNING, keyPair: ecdsaKeyPair(ECDSA_P256_SHA256_FIXED_SIGNING)},
		{alg: ECDSA_P384_SHA384_FIXED_SIGNING, keyPair: ecdsaKeyPair(ECDSA_P384_SHA384_FIXED_SIGNING)},
	}
}

func TestSignVerify(t *testing.T) {
	message := []byte("the quick brown fox jumps over the lazy dog")
	for _, c := range signCases() {
		t.Run(c.alg.String(), func(t *testing.T) {
			kp := c.keyPair(t)
			sig, err := kp.SignMessage(c.alg, rand.Reader, message)
			require.NoError(t, err)
			pub := publicKeyBytes(kp)
			v := c.alg.Verification()

			require.NoError(t, Verify(v, pub, message, sig))

			for _, bit := range []int{0, len(message) * 4, len(message)*8 - 1} {
				require.ErrorIs(t, Verify(v, pub, flipBit(message, bit), sig), crypto.ErrInvalidSignature)
			}
			for _, bit := range []int{0, len(sig) * 4, len(sig)*8 - 1} {
				require.ErrorIs(t, Verify(v, pub, message, flipBit(sig, bit)), crypto.ErrInvalidSignature)
			}
			for _, bit := range []int{len(pub) * 4, len(pub)*8 - 9} {
				require.ErrorIs(t, Verify(v, flipBit(pub, bit), message, sig), crypto.ErrInvalidSignature)
			}
		})
	}
}

func TestEmptyInputs(t *testing.T) {
	for _, alg := range VerificationAlgorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			require.NotPanics(t, func() {
				require.ErrorIs(t, Verify(alg, nil, nil, nil), crypto.ErrInvalidSignature)
				require.ErrorIs(t, Verify(alg, []byte{}, []byte{}, []byte{}), crypto.ErrInvalidSignature)
				require.ErrorIs(t, Verify(alg, []byte{0x30, 0x00}, nil, []byte{0x30, 0x00}), crypto.ErrInvalidSignature)
			})
		})
	}
}

func TestUnpublishedAlgorithm(t *testing.T) {
	kp := ed25519KeyPair(t).(*Ed25519KeyPair)
	msg := []byte("message")
	sig := kp.Sign(msg)

	cp := *ED25519
	require.ErrorIs(t, Verify(&cp, kp.PublicKeyBytes(), msg, sig), crypto.ErrUnsupportedAlgorithm)
	require.ErrorIs(t, Verify(nil, kp.PublicKeyBytes(), msg, sig), crypto.ErrUnsupportedAlgorithm)
	require.NoError(t, Verify(ED25519, kp.PublicKeyBytes(), msg, sig))

	scp := *RSA_PSS_SHA256
	_, err := rsaKeyPair(t).SignMessage(&scp, rand.Reader, msg)
	require.ErrorIs(t, err, crypto.ErrUnsupportedAlgorithm)
}

func TestFamilyMismatch(t *testing.T) {
	msg := []byte("message")
	_, err := ed25519KeyPair(t).SignMessage(RSA_PSS_SHA256, rand.Reader, msg)
	require.ErrorIs(t, err, crypto.ErrUnsupportedAlgorithm)
	_, err = rsaKeyPair(t).SignMessage(ED25519_SIGNING, rand.Reader, msg)
	require.ErrorIs(t, err, crypto.ErrUnsupportedAlgorithm)
	_, err = ecdsaKeyPair(ECDSA_P256_SHA256_ASN1_SIGNING)(t).SignMessage(ECDSA_P384_SHA384_ASN1_SIGNING, rand.Reader, msg)
	require.ErrorIs(t, err, crypto.ErrUnsupportedAlgorithm)
	_, err = GenerateECDSAKeyPair(RSA_PKCS1_SHA256, rand.Reader)
	require.ErrorIs(t, err, crypto.ErrUnsupportedAlgorithm)
}

func TestEd25519KnownAnswer(t *testing.T) {
	cases := []struct {
		name                string
		seed, pub, msg, sig string
	}{
		{
			name: "RFC 8032 TEST 1",
			seed: "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60",
			pub:  "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a",
			msg:  "",
			sig:  "e5564300c360ac729086e2cc806e828a84877f1eb8e5d974d873e065224901555fb8821590a33bacc61e39701cf9b46bd25bf5f0595bbe24655141438e7a100b",
		},
		{
			name: "RFC 8032 TEST 2",
			seed: "4ccd089b28ff96da9db6c346ec114e0f5b8a319f35aba624da8cf6ed4fb8a6fb",
			pub:  "3d4017c3e843895a92b70aa74d1b7ebc9c982ccf2ec4968cc0cd55f12af4660c",
			msg:  "72",
			sig:  "92a009a9f0d4cab8720e820b5f642540a2b27b5416503f8fb3762223ebdb69da085ac1e43e15996e458f3613d0f11d8c387b2eaeb4302aeeb00d291612bb0c00",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			kp, err := Ed25519KeyPairFromSeedAndPublicKey(mustHex(c.seed), mustHex(c.pub))
			require.NoError(t, err)
			require.Equal(t, mustHex(c.sig), kp.Sign(mustHex(c.msg)))
			require.NoError(t, Verify(ED25519, mustHex(c.pub), mustHex(c.msg), mustHex(c.sig)))
		})
	}
}

func TestEd25519KeyPairImport(t *testing.T) {
	seed := mustHex("9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60")
	pub := mustHex("d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a")

	_, err := Ed25519KeyPairFromSeed(seed[:31])
	require.ErrorIs(t, err, crypto.ErrKeyRejected)
	_, err = Ed25519KeyPairFromSeedAndPublicKey(seed, flipBit(pub, 3))
	require.ErrorIs(t, err, crypto.ErrKeyRejected)

	kp, err := Ed25519KeyPairFromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, pub, kp.PublicKeyBytes())

	der, err := pkcs8.MarshalPrivateKey(kp.PrivateKey())
	require.NoError(t, err)
	_, err = RSAKeyPairFromPKCS8(der)
	require.ErrorIs(t, err, crypto.ErrKeyRejected)
	generic, err := NewKeyPairFromPKCS8(der)
	require.NoError(t, err)
	require.Equal(t, crypto.Ed25519, generic.KeyType())
	require.True(t, generic.PublicKey().Equal(kp.PublicKey()))
}

func TestEd25519SmallOrder(t *testing.T) {
	points := []string{
		"0100000000000000000000000000000000000000000000000000000000000000",
		"ecffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f",
		"0000000000000000000000000000000000000000000000000000000000000000",
		"0000000000000000000000000000000000000000000000000000000000000080",
		"c7176a703d4dd84fba3c0b760d10670f2a2053fa2c39ccc64ec7fd7792ac037a",
		"c7176a703d4dd84fba3c0b760d10670f2a2053fa2c39ccc64ec7fd7792ac03fa",
		"26e8958fc2b227b045c3f489f2ef98f0d5dfac05d3c63339b13802886d53fc05",
		"26e8958fc2b227b045c3f489f2ef98f0d5dfac05d3c63339b13802886d53fc85",
	}
	msg := []byte("message")
	kp, err := Ed25519KeyPairFromSeed(make([]byte, 32))
	require.NoError(t, err)
	sig := kp.Sign(msg)
	require.NoError(t, Verify(ED25519, kp.PublicKeyBytes(), msg, sig))

	for _, h := range points {
		t.Run(h[:8]+h[62:], func(t *testing.T) {
			p, err := hex.DecodeString(h)
			require.NoError(t, err)
			require.ErrorIs(t, Verify(ED25519, p, msg, sig), crypto.ErrInvalidSignature)
			require.ErrorIs(t, Verify(ED25519, kp.PublicKeyBytes(), msg, append(p, sig[32:]...)), crypto.ErrInvalidSignature)
			require.ErrorIs(t, Verify(ED25519, p, msg, append(p, make([]byte, 32)...)), crypto.ErrInvalidSignature)
		})
	}
}

func TestRSADeterminism(t *testing.T) {
	kp := rsaKeyPair(t).(*RSAKeyPair)
	pub := kp.PublicKeyBytes()
	msg := []byte("message")

	a, err := kp.Sign(RSA_PKCS1_SHA256, rand.Reader, msg)
	require.NoError(t, err)
	b, err := kp.Sign(RSA_PKCS1_SHA256, rand.Reader, msg)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, kp.PublicModulusLen())

	a, err = kp.Sign(RSA_PSS_SHA256, rand.Reader, msg)
	require.NoError(t, err)
	b, err = kp.Sign(RSA_PSS_SHA256, rand.Reader, msg)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NoError(t, Verify(RSA_PSS_2048_8192_SHA256, pub, msg, a))
	require.NoError(t, Verify(RSA_PSS_2048_8192_SHA256, pub, msg, b))

	// PKCS #1 and PSS signatures are not interchangeable
	require.ErrorIs(t, Verify(RSA_PKCS1_2048_8192_SHA256, pub, msg, a), crypto.ErrInvalidSignature)
}

func TestRSAInterop(t *testing.T) {
	std := testRSAKey()
	pub := x509.MarshalPKCS1PublicKey(&std.PublicKey)
	msg := []byte("interop")

	cases := []struct {
		alg  *VerificationAlgorithm
		hash stdcrypto.Hash
		pss  bool
	}{
		{RSA_PKCS1_2048_8192_SHA1_FOR_LEGACY_USE_ONLY, stdcrypto.SHA1, false},
		{RSA_PKCS1_2048_8192_SHA256, stdcrypto.SHA256, false},
		{RSA_PKCS1_2048_8192_SHA384, stdcrypto.SHA384, false},
		{RSA_PKCS1_2048_8192_SHA512, stdcrypto.SHA512, false},
		{RSA_PSS_2048_8192_SHA256, stdcrypto.SHA256, true},
		{RSA_PSS_2048_8192_SHA384, stdcrypto.SHA384, true},
		{RSA_PSS_2048_8192_SHA512, stdcrypto.SHA512, true},
	}
	for _, c := range cases {
		t.Run(c.alg.String(), func(t *testing.T) {
			h := c.hash.New()
			h.Write(msg)
			digest := h.Sum(nil)
			var (
				sig []byte
				err error
			)
			if c.pss {
				sig, err = stdrsa.SignPSS(rand.Reader, std, c.hash, digest, &stdrsa.PSSOptions{SaltLength: stdrsa.PSSSaltLengthEqualsHash})
			} else {
				sig, err = stdrsa.SignPKCS1v15(rand.Reader, std, c.hash, digest)
			}
			require.NoError(t, err)
			require.NoError(t, Verify(c.alg, pub, msg, sig))
		})
	}

	// 2048 bit key is below the 3072 bit minimum
	digest := sha512.Sum384(msg)
	sig, err := stdrsa.SignPKCS1v15(rand.Reader, std, stdcrypto.SHA384, digest[:])
	require.NoError(t, err)
	require.NoError(t, Verify(RSA_PKCS1_2048_8192_SHA384, pub, msg, sig))
	require.ErrorIs(t, Verify(RSA_PKCS1_3072_8192_SHA384, pub, msg, sig), crypto.ErrInvalidSignature)
}

func TestRSAPKCS8(t *testing.T) {
	der, err := x509.MarshalPKCS8PrivateKey(testRSAKey())
	require.NoError(t, err)
	kp, err := RSAKeyPairFromPKCS8(der)
	require.NoError(t, err)
	generic, err := NewKeyPairFromPKCS8(der)
	require.NoError(t, err)
	require.True(t, kp.PublicKey().Equal(generic.PublicKey()))
	_, err = Ed25519KeyPairFromPKCS8(der)
	require.ErrorIs(t, err, crypto.ErrKeyRejected)
}

func TestECDSAInterop(t *testing.T) {
	msg := []byte("interop")
	cases := []struct {
		alg   *VerificationAlgorithm
		curve elliptic.Curve
		hash  stdcrypto.Hash
	}{
		{ECDSA_P256_SHA256_ASN1, elliptic.P256(), stdcrypto.SHA256},
		{ECDSA_P256_SHA384_ASN1, elliptic.P256(), stdcrypto.SHA384},
		{ECDSA_P384_SHA256_ASN1, elliptic.P384(), stdcrypto.SHA256},
		{ECDSA_P384_SHA384_ASN1, elliptic.P384(), stdcrypto.SHA384},
	}
	for _, c := range cases {
		t.Run(c.alg.String(), func(t *testing.T) {
			priv, err := stdecdsa.GenerateKey(c.curve, rand.Reader)
			require.NoError(t, err)
			ecdhPub, err := priv.PublicKey.ECDH()
			require.NoError(t, err)
			h := c.hash.New()
			h.Write(msg)
			sig, err := stdecdsa.SignASN1(rand.Reader, priv, h.Sum(nil))
			require.NoError(t, err)
			require.NoError(t, Verify(c.alg, ecdhPub.Bytes(), msg, sig))
		})
	}

	for _, alg := range []*SigningAlgorithm{ECDSA_P256_SHA256_ASN1_SIGNING, ECDSA_P384_SHA384_ASN1_SIGNING} {
		t.Run(alg.String()+"/stdlib", func(t *testing.T) {
			kp, err := GenerateECDSAKeyPair(alg, rand.Reader)
			require.NoError(t, err)
			sig, err := kp.Sign(alg, rand.Reader, msg)
			require.NoError(t, err)
			der, err := pkcs8.MarshalPrivateKey(kp.PrivateKey())
			require.NoError(t, err)
			std, err := x509.ParsePKCS8PrivateKey(der)
			require.NoError(t, err)
			require.True(t, stdecdsa.VerifyASN1(&std.(*stdecdsa.PrivateKey).PublicKey, crypto.Digest(alg.Verification().hash, msg), sig))

			imported, err := ECDSAKeyPairFromPKCS8(alg, der)
			require.NoError(t, err)
			require.True(t, imported.PublicKey().Equal(kp.PublicKey()))
		})
	}
}

func TestECDSAInvalidPublicKey(t *testing.T) {
	kp, err := GenerateECDSAKeyPair(ECDSA_P256_SHA256_ASN1_SIGNING, rand.Reader)
	require.NoError(t, err)
	msg := []byte("message")
	sig, err := kp.Sign(ECDSA_P256_SHA256_ASN1_SIGNING, rand.Reader, msg)
	require.NoError(t, err)
	pub := kp.PublicKeyBytes()

	// x = p, which is not reduced
	unreduced := bytes.Clone(pub)
	copy(unreduced[1:33], mustHex("ffffffff00000001000000000000000000000000ffffffffffffffffffffffff"))

	compressed := make([]byte, 33)
	compressed[0] = 2 | pub[64]&1
	copy(compressed[1:], pub[1:33])

	cases := map[string][]byte{
		"infinity":   {0},
		"zero point": append([]byte{4}, make([]byte, 64)...),
		"off curve":  flipBit(pub, len(pub)*8-8),
		"unreduced":  unreduced,
		"compressed": compressed,
		"truncated":  pub[:64],
		"wrong tag":  append([]byte{5}, pub[1:]...),
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, Verify(ECDSA_P256_SHA256_ASN1, key, msg, sig), crypto.ErrInvalidSignature)
		})
	}
}

// encodeSig builds SEQUENCE{r, s} with the given raw INTEGER contents.
func encodeSig(r, s []byte) []byte {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(asn1.INTEGER, func(b *cryptobyte.Builder) { b.AddBytes(r) })
		b.AddASN1(asn1.INTEGER, func(b *cryptobyte.Builder) { b.AddBytes(s) })
	})
	return b.BytesOrPanic()
}

func minimal(v []byte) []byte {
	for len(v) > 1 && v[0] == 0 && v[1]&0x80 == 0 {
		v = v[1:]
	}
	if v[0]&0x80 != 0 {
		v = append([]byte{0}, v...)
	}
	return v
}

func TestECDSANonMinimalInteger(t *testing.T) {
	kp, err := GenerateECDSAKeyPair(ECDSA_P256_SHA256_FIXED_SIGNING, rand.Reader)
	require.NoError(t, err)
	msg := []byte("message")
	pub := kp.PublicKeyBytes()

	var fixed []byte
	for range 64 {
		fixed, err = kp.Sign(ECDSA_P256_SHA256_FIXED_SIGNING, rand.Reader, msg)
		require.NoError(t, err)
		if fixed[0]&0x80 == 0 && fixed[0] != 0 {
			break
		}
	}
	require.Zero(t, fixed[0]&0x80)
	require.NoError(t, Verify(ECDSA_P256_SHA256_FIXED, pub, msg, fixed))

	r, s := fixed[:32], fixed[32:]
	require.NoError(t, Verify(ECDSA_P256_SHA256_ASN1, pub, msg, encodeSig(minimal(r), minimal(s))))

	padded := append([]byte{0}, r...)
	require.ErrorIs(t, Verify(ECDSA_P256_SHA256_ASN1, pub, msg, encodeSig(padded, minimal(s))), crypto.ErrInvalidSignature)

	negative := bytes.Clone(r)
	negative[0] |= 0x80
	require.ErrorIs(t, Verify(ECDSA_P256_SHA256_ASN1, pub, msg, encodeSig(negative, minimal(s))), crypto.ErrInvalidSignature)

	trailing := append(encodeSig(minimal(r), minimal(s)), 0)
	require.ErrorIs(t, Verify(ECDSA_P256_SHA256_ASN1, pub, msg, trailing), crypto.ErrInvalidSignature)

	zero := encodeSig([]byte{0}, minimal(s))
	require.ErrorIs(t, Verify(ECDSA_P256_SHA256_ASN1, pub, msg, zero), crypto.ErrInvalidSignature)
}

func TestLookup(t *testing.T) {
	for _, alg := range VerificationAlgorithms() {
		got, err := LookupVerification(alg.String())
		require.NoError(t, err)
		require.Same(t, alg, got)
	}
	for _, alg := range SigningAlgorithms() {
		got, err := LookupSigning(alg.String())
		require.NoError(t, err)
		require.Same(t, alg, got)
	}
	got, err := LookupVerification("ecdsa-p256-sha256-asn1")
	require.NoError(t, err)
	require.Same(t, ECDSA_P256_SHA256_ASN1, got)

	_, err = LookupVerification("ECDSA_P521_SHA512_ASN1")
	require.ErrorIs(t, err, crypto.ErrUnsupportedAlgorithm)
	_, err = LookupSigning("RSA_PKCS1_SHA1")
	require.ErrorIs(t, err, crypto.ErrUnsupportedAlgorithm)

	for _, a := range crypto.Algorithms() {
		def, err := DefaultSigningAlgorithm(a)
		require.NoError(t, err)
		require.Equal(t, a, def.KeyType())
	}
}

func TestVerifyBatch(t *testing.T) {
	kp := ed25519KeyPair(t).(*Ed25519KeyPair)
	pub := UnparsedPublicKey{Algorithm: ED25519, Bytes: kp.PublicKeyBytes()}

	var items []BatchItem
	for i := range 16 {
		msg := sha256.Sum256([]byte{byte(i)})
		sig := kp.Sign(msg[:])
		if i%3 == 0 {
			sig[0] ^= 1
		}
		items = append(items, BatchItem{PublicKey: pub, Message: msg[:], Signature: sig})
	}

	results, err := VerifyBatch(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, results, len(items))
	for i, res := range results {
		if i%3 == 0 {
			require.ErrorIs(t, res, crypto.ErrInvalidSignature)
		} else {
			require.NoError(t, res)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err = VerifyBatch(ctx, items)
	require.ErrorIs(t, err, context.Canceled)
	for _, res := range results {
		require.True(t, res == nil || errors.Is(res, context.Canceled) || errors.Is(res, crypto.ErrInvalidSignature))
	}
}

func TestConcurrentSign(t *testing.T) {
	for _, c := range []signCase{
		{alg: ED25519_SIGNING, keyPair: ed25519KeyPair},
		{alg: RSA_PSS_SHA256, keyPair: rsaKeyPair},
	} {
		t.Run(c.alg.String(), func(t *testing.T) {
			kp := c.keyPair(t)
			pub := publicKeyBytes(kp)
			var wg sync.WaitGroup
			errs := make([]error, 8)
			for i := range errs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					msg := []byte{byte(i)}
					sig, err := kp.SignMessage(c.alg, rand.Reader, msg)
					if err != nil {
						errs[i] = err
						return
					}
					errs[i] = Verify(c.alg.Verification(), pub, msg, sig)
				}()
			}
			wg.Wait()
			for _, err := range errs {
				require.NoError(t, err)
			}
		})
	}
}
