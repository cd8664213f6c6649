package crypto

import "errors"

var (
	// ErrInvalidSignature is the only failure returned by verification.
	// Malformed keys or signatures are indistinguishable from a mismatch.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrUnsupportedAlgorithm is returned for descriptors outside the
	// published set and for key and algorithm family mismatches.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrRandomSource is returned when the random source fails during signing.
	ErrRandomSource = errors.New("random source failure")
	// ErrKeyRejected is returned when a private key can't be imported.
	ErrKeyRejected = errors.New("key rejected")
)

type keyRejectedError struct {
	error
}

func (keyRejectedError) Is(target error) bool { return target == ErrKeyRejected }
func (e keyRejectedError) Unwrap() error      { return e.error }

// KeyRejected marks err as a key import failure.
func KeyRejected(err error) error {
	if err == nil {
		return nil
	}
	return keyRejectedError{error: err}
}

type randomSourceError struct {
	error
}

func (randomSourceError) Is(target error) bool { return target == ErrRandomSource }
func (e randomSourceError) Unwrap() error      { return e.error }

// RandomSourceFailure marks err as a random source failure.
func RandomSourceFailure(err error) error {
	if err == nil {
		return nil
	}
	return randomSourceError{error: err}
}
