package awskms

import (
	"context"
	"crypto/rand"
	stdrsa "crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/pkix"
	"github.com/signatory-io/sigengine/crypto/rsa"
	"github.com/signatory-io/sigengine/signature"
	"github.com/signatory-io/sigengine/vault"
	"github.com/stretchr/testify/require"
)

type fakeKey struct {
	spec  types.KeySpec
	usage types.KeyUsageType
	priv  crypto.PrivateKey
}

// fakeKMS signs digests with local keys and pages through them one at a time.
type fakeKMS struct {
	keys    []*fakeKey
	corrupt bool
}

func (f *fakeKMS) key(id *string) (*fakeKey, error) {
	var i int
	if _, err := fmt.Sscanf(aws.ToString(id), "key-%d", &i); err != nil || i >= len(f.keys) {
		return nil, errors.New("NotFoundException")
	}
	return f.keys[i], nil
}

func (f *fakeKMS) GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	k, err := f.key(params.KeyId)
	if err != nil {
		return nil, err
	}
	der, err := pkix.MarshalPublicKey(k.priv.Public())
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{
		KeyId:     params.KeyId,
		KeySpec:   k.spec,
		KeyUsage:  k.usage,
		PublicKey: der,
	}, nil
}

func (f *fakeKMS) ListKeys(ctx context.Context, params *kms.ListKeysInput, optFns ...func(*kms.Options)) (*kms.ListKeysOutput, error) {
	i := 0
	if params.Marker != nil {
		fmt.Sscanf(*params.Marker, "%d", &i)
	}
	out := kms.ListKeysOutput{}
	if i < len(f.keys) {
		out.Keys = []types.KeyListEntry{{KeyId: aws.String(fmt.Sprintf("key-%d", i))}}
	}
	if i+1 < len(f.keys) {
		out.Truncated = true
		out.NextMarker = aws.String(fmt.Sprintf("%d", i+1))
	}
	return &out, nil
}

func (f *fakeKMS) Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error) {
	k, err := f.key(params.KeyId)
	if err != nil {
		return nil, err
	}
	if params.MessageType != types.MessageTypeDigest {
		return nil, errors.New("ValidationException")
	}
	var sig []byte
	switch priv := k.priv.(type) {
	case *ecdsa.PrivateKey:
		s, err := priv.SignDigest(rand.Reader, params.Message)
		if err != nil {
			return nil, err
		}
		sig = s.DERBytes()
	case *rsa.PrivateKey:
		switch params.SigningAlgorithm {
		case types.SigningAlgorithmSpecRsassaPkcs1V15Sha256:
			sig, err = rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, params.Message)
		case types.SigningAlgorithmSpecRsassaPssSha384:
			sig, err = rsa.SignPSS(rand.Reader, priv, crypto.SHA384, params.Message)
		default:
			return nil, errors.New("UnsupportedOperationException")
		}
		if err != nil {
			return nil, err
		}
	}
	if f.corrupt {
		sig[len(sig)-1] ^= 1
	}
	return &kms.SignOutput{KeyId: params.KeyId, Signature: sig, SigningAlgorithm: params.SigningAlgorithm}, nil
}

func newFake(t *testing.T) *fakeKMS {
	p256, err := ecdsa.GeneratePrivateKey(rand.Reader, ecdsa.NIST_P256)
	require.NoError(t, err)
	p384, err := ecdsa.GeneratePrivateKey(rand.Reader, ecdsa.NIST_P384)
	require.NoError(t, err)
	k, err := stdrsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaPriv, err := rsa.ParsePKCS1PrivateKey(x509.MarshalPKCS1PrivateKey(k))
	require.NoError(t, err)

	return &fakeKMS{keys: []*fakeKey{
		{spec: types.KeySpecEccNistP256, usage: types.KeyUsageTypeSignVerify, priv: p256},
		{spec: types.KeySpecEccNistP256, usage: types.KeyUsageTypeEncryptDecrypt, priv: p256},
		{spec: types.KeySpecEccNistP384, usage: types.KeyUsageTypeSignVerify, priv: p384},
		{spec: types.KeySpecRsa2048, usage: types.KeyUsageTypeSignVerify, priv: rsaPriv},
	}}
}

func listKeys(t *testing.T, v vault.Vault, filter ...crypto.Algorithm) []vault.KeyReference {
	it := v.List(context.Background(), filter)
	var out []vault.KeyReference
	for k := range it.Keys() {
		out = append(out, k)
	}
	require.NoError(t, it.Err())
	return out
}

func TestList(t *testing.T) {
	v := NewWithClient(newFake(t), nil)
	keys := listKeys(t, v)
	require.Len(t, keys, 3)
	require.Equal(t, "key-0", keys[0].(vault.KeyReferenceWithID).ID())
	require.Equal(t, crypto.ECDSA_P384, keys[1].KeyType())
	require.Equal(t, crypto.RSA, keys[2].KeyType())

	keys = listKeys(t, v, crypto.RSA)
	require.Len(t, keys, 1)
	require.Equal(t, "key-3", keys[0].(vault.KeyReferenceWithID).ID())
}

func TestSign(t *testing.T) {
	v := NewWithClient(newFake(t), nil)
	keys := listKeys(t, v)
	msg := []byte("message")

	cases := []struct {
		key int
		alg *signature.SigningAlgorithm
	}{
		{0, signature.ECDSA_P256_SHA256_ASN1_SIGNING},
		{0, signature.ECDSA_P256_SHA256_FIXED_SIGNING},
		{1, signature.ECDSA_P384_SHA384_ASN1_SIGNING},
		{1, signature.ECDSA_P384_SHA384_FIXED_SIGNING},
		{2, signature.RSA_PKCS1_SHA256},
		{2, signature.RSA_PSS_SHA384},
	}
	for _, c := range cases {
		t.Run(c.alg.String(), func(t *testing.T) {
			key := keys[c.key]
			sig, err := key.SignMessage(context.Background(), c.alg, msg, nil)
			require.NoError(t, err)
			require.NoError(t, signature.Verify(c.alg.Verification(), key.PublicKey().Bytes(), msg, sig))
		})
	}

	t.Run("wrong family", func(t *testing.T) {
		_, err := keys[0].SignMessage(context.Background(), signature.ECDSA_P384_SHA384_ASN1_SIGNING, msg, nil)
		require.ErrorIs(t, err, vault.ErrAlgorithm)
		_, err = keys[2].SignMessage(context.Background(), signature.ED25519_SIGNING, msg, nil)
		require.ErrorIs(t, err, vault.ErrAlgorithm)
	})
}

func TestBadSignature(t *testing.T) {
	f := newFake(t)
	v := NewWithClient(f, nil)
	keys := listKeys(t, v, crypto.RSA)
	f.corrupt = true
	_, err := keys[0].SignMessage(context.Background(), signature.RSA_PKCS1_SHA256, []byte("message"), nil)
	require.ErrorIs(t, err, crypto.ErrInvalidSignature)
}

func TestConfig(t *testing.T) {
	_, err := (&Config{AccessKeyID: "AKIA"}).loadOptions()
	require.ErrorIs(t, err, vault.ErrConfig)

	opts, err := (&Config{Region: "us-east-1", AccessKeyID: "AKIA", SecretAccessKey: "secret"}).loadOptions()
	require.NoError(t, err)
	require.Len(t, opts, 2)
}
