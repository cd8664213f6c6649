// Package local keeps keys as CBOR key files in a directory. Each file is
// named after the hash of its public key and may be encrypted with a
// passphrase.
package local

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/keygen"
	cryptoutils "github.com/signatory-io/sigengine/crypto/utils"
	"github.com/signatory-io/sigengine/logger"
	"github.com/signatory-io/sigengine/signature"
	"github.com/signatory-io/sigengine/utils"
	"github.com/signatory-io/sigengine/vault"
)

const keyFileExt = ".key"

type decryptError struct {
	error
}

func (d decryptError) Is(target error) bool { return target == vault.ErrDecrypt }
func (d decryptError) Unwrap() error        { return d.error }

type LocalVault struct {
	storeDir string
	rng      io.Reader
	log      logger.Logger
	unlocked map[crypto.PublicKeyHash]signature.KeyPair
	mtx      sync.RWMutex
}

// New opens the key directory, creating it if needed. A nil logger discards
// output.
func New(dir string, log logger.Logger) (*LocalVault, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop
	}
	return &LocalVault{
		storeDir: dir,
		rng:      rand.Reader,
		log:      log,
		unlocked: make(map[crypto.PublicKeyHash]signature.KeyPair),
	}, nil
}

type localKey struct {
	pub       crypto.PublicKey
	pkh       *crypto.PublicKeyHash
	file      *cryptoutils.KeyFile
	encrypted bool
	v         *LocalVault
}

func (l *localKey) KeyType() crypto.Algorithm   { return l.pub.PublicKeyType() }
func (l *localKey) PublicKey() crypto.PublicKey { return l.pub }
func (l *localKey) Vault() vault.Vault          { return l.v }
func (l *localKey) ID() string                  { return l.pkh.String() + keyFileExt }

func (l *localKey) IsLocked() bool {
	return l.encrypted && l.v.lookup(l.pkh) == nil
}

func (l *localKey) decrypt(ctx context.Context, sm vault.SecretManager, hint vault.GetSecretHint) (signature.KeyPair, error) {
	if !l.encrypted {
		priv, err := l.file.Private()
		if err != nil {
			return nil, err
		}
		return signature.NewKeyPair(priv)
	}
	if sm == nil {
		return nil, vault.ErrLocked
	}
	secret, err := sm.GetSecret(ctx, l.pkh, l.KeyType(), hint)
	if err != nil {
		return nil, err
	}
	priv, err := l.file.DecryptPrivate(secret)
	if err != nil {
		if errors.Is(err, cryptoutils.ErrDecrypt) {
			return nil, decryptError{error: err}
		}
		return nil, err
	}
	return signature.NewKeyPair(priv)
}

func (l *localKey) Unlock(ctx context.Context, sm vault.SecretManager) error {
	if !l.IsLocked() {
		return nil
	}
	kp, err := l.decrypt(ctx, sm, vault.GetSecretHintUnlock)
	if err != nil {
		return vault.WrapError(l.v, err)
	}
	l.v.mtx.Lock()
	l.v.unlocked[*l.pkh] = kp
	l.v.mtx.Unlock()
	l.v.log.With("pkh", l.pkh).Debug("Key unlocked")
	return nil
}

func (l *localKey) SignMessage(ctx context.Context, alg *signature.SigningAlgorithm, message []byte, sm vault.SecretManager) ([]byte, error) {
	kp := l.v.lookup(l.pkh)
	if kp == nil {
		var err error
		if kp, err = l.decrypt(ctx, sm, vault.GetSecretHintSign); err != nil {
			return nil, vault.WrapError(l.v, err)
		}
	}
	sig, err := kp.SignMessage(alg, l.v.rng, message)
	if err != nil {
		if errors.Is(err, crypto.ErrUnsupportedAlgorithm) {
			return nil, fmt.Errorf("%w: %v can't be used with %v key", vault.ErrAlgorithm, alg, l.KeyType())
		}
		return nil, err
	}
	return sig, nil
}

func (v *LocalVault) lookup(pkh *crypto.PublicKeyHash) signature.KeyPair {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	return v.unlocked[*pkh]
}

func (v *LocalVault) readKey(name string) (*localKey, error) {
	file, err := cryptoutils.ReadKeyFile(name)
	if err != nil {
		return nil, err
	}
	encrypted, err := file.IsEncrypted()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	pub, err := file.Public()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &localKey{
		pub:       pub,
		pkh:       crypto.NewPublicKeyHash(pub),
		file:      file,
		encrypted: encrypted,
		v:         v,
	}, nil
}

type errIter struct {
	err error
}

func (e errIter) Keys() iter.Seq[vault.KeyReference] {
	return func(func(vault.KeyReference) bool) {}
}
func (e errIter) Err() error { return e.err }

type keyIter struct {
	v       *LocalVault
	entries []os.DirEntry
	filter  []crypto.Algorithm
	err     error
}

func (it *keyIter) Err() error { return it.err }

func (it *keyIter) Keys() iter.Seq[vault.KeyReference] {
	return func(yield func(vault.KeyReference) bool) {
		for _, entry := range it.entries {
			if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), keyFileExt) {
				continue
			}
			key, err := it.v.readKey(filepath.Join(it.v.storeDir, entry.Name()))
			if err != nil {
				it.err = vault.WrapError(it.v, err)
				return
			}
			if !vault.FilterKeys(it.filter, key.KeyType()) {
				continue
			}
			if !yield(key) {
				return
			}
		}
	}
}

func (v *LocalVault) List(ctx context.Context, filter []crypto.Algorithm) vault.KeyIterator {
	entries, err := os.ReadDir(v.storeDir)
	if err != nil {
		return errIter{err: vault.WrapError(v, err)}
	}
	return &keyIter{
		v:       v,
		entries: entries,
		filter:  filter,
	}
}

func (v *LocalVault) store(ctx context.Context, priv crypto.PrivateKey, sm vault.SecretManager, options vault.GenerateOptions) (*localKey, error) {
	pub := priv.Public()
	pkh := crypto.NewPublicKeyHash(pub)
	name := filepath.Join(v.storeDir, pkh.String()+keyFileExt)
	if _, err := os.Stat(name); err == nil {
		return nil, fmt.Errorf("%w: key %v already exists", vault.ErrUserInput, pkh)
	}

	var secret []byte
	if options != nil && options.Encrypt() {
		if sm == nil {
			return nil, fmt.Errorf("%w: a secret is required to encrypt the key", vault.ErrUserInput)
		}
		var err error
		if secret, err = sm.GetSecret(ctx, pkh, pub.PublicKeyType(), vault.GetSecretHintGenerate); err != nil {
			return nil, err
		}
		if len(secret) == 0 {
			return nil, fmt.Errorf("%w: empty secret", vault.ErrUserInput)
		}
	}
	file, err := cryptoutils.NewKeyFile(priv, secret, v.rng)
	if err != nil {
		return nil, err
	}
	if err := cryptoutils.WriteKeyFile(name, file); err != nil {
		return nil, err
	}
	encrypted := len(secret) != 0
	v.log.WithFields(map[string]any{"pkh": pkh, "alg": pub.PublicKeyType(), "encrypted": encrypted}).Info("Key stored")
	return &localKey{
		pub:       pub,
		pkh:       pkh,
		file:      file,
		encrypted: encrypted,
		v:         v,
	}, nil
}

func (v *LocalVault) Generate(ctx context.Context, alg crypto.Algorithm, sm vault.SecretManager, options vault.GenerateOptions) (vault.KeyReference, error) {
	priv, err := keygen.GeneratePrivateKey(alg, v.rng)
	if err != nil {
		if errors.Is(err, crypto.ErrUnsupportedAlgorithm) {
			return nil, vault.WrapError(v, fmt.Errorf("%w: %v", vault.ErrAlgorithm, err))
		}
		return nil, vault.WrapError(v, err)
	}
	key, err := v.store(ctx, priv, sm, options)
	if err != nil {
		return nil, vault.WrapError(v, err)
	}
	return key, nil
}

func (v *LocalVault) Import(ctx context.Context, priv crypto.PrivateKey, sm vault.SecretManager, options vault.GenerateOptions) (vault.KeyReference, error) {
	if _, err := signature.NewKeyPair(priv); err != nil {
		return nil, vault.WrapError(v, fmt.Errorf("%w: %v", vault.ErrAlgorithm, err))
	}
	key, err := v.store(ctx, priv, sm, options)
	if err != nil {
		return nil, vault.WrapError(v, err)
	}
	return key, nil
}

// Close forgets every unlocked key.
func (v *LocalVault) Close(ctx context.Context) error {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	clear(v.unlocked)
	return nil
}

func (v *LocalVault) Ready(ctx context.Context) (bool, error) {
	st, err := os.Stat(v.storeDir)
	if err != nil {
		return false, err
	}
	return st.IsDir(), nil
}

func (v *LocalVault) Name() string         { return "local" }
func (v *LocalVault) InstanceInfo() string { return v.storeDir }

type Config struct {
	Path string `yaml:"path"`
}

type factory struct{}

func (factory) DefaultConfig() any { return &Config{Path: "keys"} }

func (factory) New(ctx context.Context, opt utils.GlobalOptions, config any, log logger.Logger) (vault.Vault, error) {
	conf, ok := config.(*Config)
	if !ok || conf.Path == "" {
		return nil, fmt.Errorf("%w: key directory is not specified", vault.ErrConfig)
	}
	return New(utils.GetPath(conf.Path, opt), log)
}

func init() {
	vault.Register("local", factory{})
}

var (
	_ vault.Generator          = (*LocalVault)(nil)
	_ vault.Importer           = (*LocalVault)(nil)
	_ vault.Unlocker           = (*localKey)(nil)
	_ vault.KeyReferenceWithID = (*localKey)(nil)
)
