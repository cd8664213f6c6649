package signature

import (
	"context"
	"runtime"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/ecdsa"
	"github.com/signatory-io/sigengine/crypto/ed25519"
	"github.com/signatory-io/sigengine/crypto/rsa"
	"golang.org/x/sync/errgroup"
)

// Verify checks sig over message with an encoded public key. The key is
// parsed for this call only. Any malformed input or failed check yields
// crypto.ErrInvalidSignature; crypto.ErrUnsupportedAlgorithm is returned
// only for descriptors that aren't published by this package.
func Verify(alg *VerificationAlgorithm, publicKey, message, sig []byte) error {
	if !isPublished(alg) {
		return crypto.ErrUnsupportedAlgorithm
	}
	var ok bool
	switch alg.family {
	case familyEd25519:
		ok = ed25519.Verify(publicKey, message, sig)
	case familyECDSA:
		ok = verifyECDSA(alg, publicKey, message, sig)
	case familyRSAPKCS1, familyRSAPSS:
		ok = verifyRSA(alg, publicKey, message, sig)
	}
	if !ok {
		return crypto.ErrInvalidSignature
	}
	return nil
}

func verifyECDSA(alg *VerificationAlgorithm, publicKey, message, sig []byte) bool {
	pub, err := ecdsa.NewPublicKeyFromUncompressed(publicKey, alg.curve)
	if err != nil {
		return false
	}
	var s *ecdsa.Signature
	if alg.encoding == encodingFixed {
		s, err = ecdsa.NewSignatureFromBytes(sig, alg.curve)
	} else {
		s, err = ecdsa.NewSignatureFromDERBytes(sig, alg.curve)
	}
	if err != nil {
		return false
	}
	return pub.VerifySignature(s, crypto.Digest(alg.hash, message))
}

func verifyRSA(alg *VerificationAlgorithm, publicKey, message, sig []byte) bool {
	pub, err := rsa.ParsePublicKey(publicKey, alg.keySize)
	if err != nil {
		return false
	}
	digest := crypto.Digest(alg.hash, message)
	if alg.family == familyRSAPSS {
		return rsa.VerifyPSS(pub, alg.hash, digest, sig) == nil
	}
	return rsa.VerifyPKCS1v15(pub, alg.hash, digest, sig) == nil
}

// UnparsedPublicKey pairs an encoded public key with the algorithm used to
// check signatures made by it.
type UnparsedPublicKey struct {
	Algorithm *VerificationAlgorithm
	Bytes     []byte
}

func (u *UnparsedPublicKey) Verify(message, sig []byte) error {
	return Verify(u.Algorithm, u.Bytes, message, sig)
}

// BatchItem is a single signature check submitted to VerifyBatch.
type BatchItem struct {
	PublicKey UnparsedPublicKey
	Message   []byte
	Signature []byte
}

// VerifyBatch checks items concurrently, at most GOMAXPROCS at a time. The
// returned slice holds the Verify result for each item. A non-nil error means
// ctx was cancelled before every item was checked; unchecked items then hold
// the context error.
func VerifyBatch(ctx context.Context, items []BatchItem) ([]error, error) {
	results := make([]error, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return err
			}
			it := &items[i]
			results[i] = it.PublicKey.Verify(it.Message, it.Signature)
			return nil
		})
	}
	return results, g.Wait()
}
