// Package awskms exposes asymmetric AWS KMS keys as signing keys. KMS signs
// precomputed digests; every signature is checked locally before it's
// returned.
package awskms

import (
	"context"
	"fmt"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/pkix"
	"github.com/signatory-io/sigengine/logger"
	"github.com/signatory-io/sigengine/signature"
	"github.com/signatory-io/sigengine/utils"
	"github.com/signatory-io/sigengine/vault"
)

// KMSClient is the subset of the KMS API used by the vault.
type KMSClient interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	ListKeys(ctx context.Context, params *kms.ListKeysInput, optFns ...func(*kms.Options)) (*kms.ListKeysOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

type KMSVault struct {
	client KMSClient
	log    logger.Logger
}

// NewWithClient wraps an existing client.
func NewWithClient(client KMSClient, log logger.Logger) *KMSVault {
	if log == nil {
		log = logger.Nop
	}
	return &KMSVault{client: client, log: log}
}

type kmsKey struct {
	id  *string
	pub crypto.PublicKey
	v   *KMSVault
}

func algorithmFromKeySpec(ks types.KeySpec) crypto.Algorithm {
	switch ks {
	case types.KeySpecEccNistP256:
		return crypto.ECDSA_P256
	case types.KeySpecEccNistP384:
		return crypto.ECDSA_P384
	case types.KeySpecRsa2048, types.KeySpecRsa3072, types.KeySpecRsa4096:
		return crypto.RSA
	default:
		return 0
	}
}

type signingSpec struct {
	spec  types.SigningAlgorithmSpec
	hash  crypto.Hash
	fixed bool
}

var signingSpecs = map[*signature.SigningAlgorithm]signingSpec{
	signature.ECDSA_P256_SHA256_ASN1_SIGNING:  {types.SigningAlgorithmSpecEcdsaSha256, crypto.SHA256, false},
	signature.ECDSA_P256_SHA256_FIXED_SIGNING: {types.SigningAlgorithmSpecEcdsaSha256, crypto.SHA256, true},
	signature.ECDSA_P384_SHA384_ASN1_SIGNING:  {types.SigningAlgorithmSpecEcdsaSha384, crypto.SHA384, false},
	signature.ECDSA_P384_SHA384_FIXED_SIGNING: {types.SigningAlgorithmSpecEcdsaSha384, crypto.SHA384, true},
	signature.RSA_PKCS1_SHA256:                {types.SigningAlgorithmSpecRsassaPkcs1V15Sha256, crypto.SHA256, false},
	signature.RSA_PKCS1_SHA384:                {types.SigningAlgorithmSpecRsassaPkcs1V15Sha384, crypto.SHA384, false},
	signature.RSA_PKCS1_SHA512:                {types.SigningAlgorithmSpecRsassaPkcs1V15Sha512, crypto.SHA512, false},
	signature.RSA_PSS_SHA256:                  {types.SigningAlgorithmSpecRsassaPssSha256, crypto.SHA256, false},
	signature.RSA_PSS_SHA384:                  {types.SigningAlgorithmSpecRsassaPssSha384, crypto.SHA384, false},
	signature.RSA_PSS_SHA512:                  {types.SigningAlgorithmSpecRsassaPssSha512, crypto.SHA512, false},
}

func (k *kmsKey) KeyType() crypto.Algorithm   { return k.pub.PublicKeyType() }
func (k *kmsKey) PublicKey() crypto.PublicKey { return k.pub }
func (k *kmsKey) Vault() vault.Vault          { return k.v }
func (k *kmsKey) ID() string                  { return *k.id }

func (k *kmsKey) SignMessage(ctx context.Context, alg *signature.SigningAlgorithm, message []byte, sm vault.SecretManager) ([]byte, error) {
	spec, ok := signingSpecs[alg]
	if !ok || alg.KeyType() != k.KeyType() {
		return nil, vault.WrapError(k.v, fmt.Errorf("%w: %v can't be used with %v key", vault.ErrAlgorithm, alg, k.KeyType()))
	}
	out, err := k.v.client.Sign(ctx, &kms.SignInput{
		KeyId:            k.id,
		Message:          crypto.Digest(spec.hash, message),
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: spec.spec,
	})
	if err != nil {
		return nil, vault.WrapError(k.v, err)
	}
	sig := out.Signature
	if spec.fixed {
		s, err := ecdsa.NewSignatureFromDERBytes(sig, k.pub.(*ecdsa.PublicKey).Curve)
		if err != nil {
			return nil, vault.WrapError(k.v, fmt.Errorf("%s: %w", *k.id, err))
		}
		sig = s.Bytes()
	}
	if err := signature.Verify(alg.Verification(), k.pub.Bytes(), message, sig); err != nil {
		return nil, vault.WrapError(k.v, fmt.Errorf("%s: KMS returned a bad signature: %w", *k.id, err))
	}
	k.v.log.WithFields(map[string]any{"key_id": *k.id, "alg": alg}).Debug("Message signed")
	return sig, nil
}

type kmsIterator struct {
	ctx    context.Context
	filter []crypto.Algorithm
	v      *KMSVault
	err    error
}

func (it *kmsIterator) Err() error { return it.err }

func (it *kmsIterator) Keys() iter.Seq[vault.KeyReference] {
	return func(yield func(vault.KeyReference) bool) {
		inp := &kms.ListKeysInput{}
		for {
			out, err := it.v.client.ListKeys(it.ctx, inp)
			if err != nil {
				it.err = vault.WrapError(it.v, err)
				return
			}
			for _, entry := range out.Keys {
				key, err := it.v.getPublicKey(it.ctx, entry.KeyId)
				if err != nil {
					it.err = vault.WrapError(it.v, err)
					return
				}
				if key == nil || !vault.FilterKeys(it.filter, key.KeyType()) {
					continue
				}
				if !yield(key) {
					return
				}
			}
			if !out.Truncated || out.NextMarker == nil {
				return
			}
			inp = &kms.ListKeysInput{Marker: out.NextMarker}
		}
	}
}

type errAlgo struct {
	value any
}

func (e errAlgo) Error() string        { return fmt.Sprintf("unsupported key type: %T", e.value) }
func (d errAlgo) Is(target error) bool { return target == vault.ErrAlgorithm }

// getPublicKey returns nil for keys that can't sign with a supported
// algorithm.
func (v *KMSVault) getPublicKey(ctx context.Context, keyID *string) (*kmsKey, error) {
	resp, err := v.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: keyID,
	})
	if err != nil {
		return nil, err
	}
	alg := algorithmFromKeySpec(resp.KeySpec)
	if resp.KeyUsage != types.KeyUsageTypeSignVerify || alg == 0 {
		v.log.WithFields(map[string]any{"key_id": *keyID, "spec": resp.KeySpec}).Trace("Key skipped")
		return nil, nil
	}

	pub, err := pkix.ParsePublicKey(resp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse public key: %w", *keyID, err)
	}
	if pub.PublicKeyType() != alg {
		return nil, errAlgo{value: pub}
	}
	return &kmsKey{
		pub: pub,
		id:  resp.KeyId,
		v:   v,
	}, nil
}

// List returns a list of keys stored under the backend
func (v *KMSVault) List(ctx context.Context, filter []crypto.Algorithm) vault.KeyIterator {
	return &kmsIterator{
		ctx:    ctx,
		v:      v,
		filter: filter,
	}
}

func (v *KMSVault) InstanceInfo() string { return "AWS KMS" }

func (v *KMSVault) Name() string { return "awskms" }

func (v *KMSVault) Close(context.Context) error { return nil }

func (v *KMSVault) Ready(ctx context.Context) (bool, error) {
	if _, err := v.client.ListKeys(ctx, &kms.ListKeysInput{Limit: aws.Int32(1)}); err != nil {
		return false, vault.WrapError(v, err)
	}
	return true, nil
}

type fact struct{}

func (fact) New(ctx context.Context, opt utils.GlobalOptions, config any, log logger.Logger) (vault.Vault, error) {
	c, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected config type %T", vault.ErrConfig, config)
	}
	client, err := NewClient(ctx, c)
	if err != nil {
		return nil, err
	}
	return NewWithClient(client, log), nil
}

func (fact) DefaultConfig() any {
	return new(Config)
}

func init() {
	vault.Register("awskms", fact{})
}

var _ vault.KeyReferenceWithID = (*kmsKey)(nil)
