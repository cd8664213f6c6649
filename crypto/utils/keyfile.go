package utils

import (
	"crypto/cipher"
	"crypto/pbkdf2"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/cose"
	cosekey "github.com/signatory-io/sigengine/crypto/cose/key"
	"github.com/signatory-io/sigengine/utils"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	encIterations = 32768
	encKeyLen     = 32
	saltLen       = 16
)

var (
	ErrInvalidKeyFile = errors.New("invalid key file")
	ErrDecrypt        = errors.New("can't decrypt private key")
)

type encryptedPrivateKey struct {
	_         struct{} `cbor:",toarray"`
	PublicKey cose.Key
	Data      []byte
	Salt      []byte
	Nonce     []byte
}

// KeyFile holds a COSE private key, either in plain form or sealed with
// XChaCha20-Poly1305 under a PBKDF2-SHA512 derived key. The public key of an
// encrypted entry stays readable.
type KeyFile struct {
	PrivateKey          cose.Key             `cbor:"0,keyasint,omitempty"`
	EncryptedPrivateKey *encryptedPrivateKey `cbor:"1,keyasint,omitempty"`
}

// IsEncrypted reports whether the private key is sealed. A file must hold
// exactly one of the two forms.
func (k *KeyFile) IsEncrypted() (bool, error) {
	switch {
	case k.PrivateKey != nil && k.EncryptedPrivateKey == nil:
		return false, nil
	case k.PrivateKey == nil && k.EncryptedPrivateKey != nil:
		return true, nil
	default:
		return false, ErrInvalidKeyFile
	}
}

func (k *KeyFile) Public() (crypto.PublicKey, error) {
	switch {
	case k.PrivateKey != nil:
		return cosekey.NewPublicKey(k.PrivateKey)
	case k.EncryptedPrivateKey != nil:
		return cosekey.NewPublicKey(k.EncryptedPrivateKey.PublicKey)
	default:
		return nil, ErrInvalidKeyFile
	}
}

func (k *KeyFile) Private() (crypto.PrivateKey, error) {
	if k.PrivateKey == nil {
		return nil, ErrInvalidKeyFile
	}
	return cosekey.NewPrivateKey(k.PrivateKey)
}

func deriveCipher(secret, salt []byte) (cipher.AEAD, error) {
	key, err := pbkdf2.Key(sha512.New, string(secret), salt, encIterations, encKeyLen)
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

// DecryptPrivate returns the private key, opening it with secret if the file
// is encrypted. A wrong secret yields ErrDecrypt.
func (k *KeyFile) DecryptPrivate(secret []byte) (crypto.PrivateKey, error) {
	if k.PrivateKey != nil {
		return k.Private()
	}
	enc := k.EncryptedPrivateKey
	if enc == nil || len(enc.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrInvalidKeyFile
	}
	aead, err := deriveCipher(secret, enc.Salt)
	if err != nil {
		return nil, err
	}
	buf, err := aead.Open(nil, enc.Nonce, enc.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	priv, err := cosekey.ParsePrivateKey(buf)
	if err != nil {
		return nil, err
	}
	pub, err := k.Public()
	if err != nil {
		return nil, err
	}
	if !pub.Equal(priv.Public()) {
		return nil, fmt.Errorf("%w: public key mismatch", ErrInvalidKeyFile)
	}
	return priv, nil
}

// NewKeyFile stores priv in the clear if secret is empty and encrypted
// otherwise. Salt and nonce are drawn from rng.
func NewKeyFile(priv crypto.PrivateKey, secret []byte, rng io.Reader) (*KeyFile, error) {
	cosePriv := priv.COSE()
	if len(secret) == 0 {
		return &KeyFile{PrivateKey: cosePriv}, nil
	}

	buf := make([]byte, saltLen+chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return nil, crypto.RandomSourceFailure(err)
	}
	salt, nonce := buf[:saltLen], buf[saltLen:]
	aead, err := deriveCipher(secret, salt)
	if err != nil {
		return nil, err
	}
	return &KeyFile{
		EncryptedPrivateKey: &encryptedPrivateKey{
			PublicKey: priv.Public().COSE(),
			Data:      aead.Seal(nil, nonce, cosePriv.Encode(), nil),
			Salt:      salt,
			Nonce:     nonce,
		},
	}, nil
}

func ReadKeyFile(name string) (*KeyFile, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var out KeyFile
	if err := cbor.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if _, err := out.IsEncrypted(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &out, nil
}

func WriteKeyFile(name string, data *KeyFile) error {
	buf, err := cbor.Marshal(data)
	if err != nil {
		return err
	}
	return utils.AtomicWrite(name, buf, 0600)
}
