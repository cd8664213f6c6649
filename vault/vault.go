package vault

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/logger"
	"github.com/signatory-io/sigengine/signature"
	"github.com/signatory-io/sigengine/utils"
)

var (
	ErrLocked    = errors.New("locked")
	ErrAlgorithm = errors.New("unsupported algorithm")
	ErrUserInput = errors.New("invalid user input")
	ErrConfig    = errors.New("invalid vault config")
	ErrDecrypt   = errors.New("can't decrypt private key")
)

// KeyReference is a signing key held by a vault. The private part may never
// leave the backend.
type KeyReference interface {
	KeyType() crypto.Algorithm
	PublicKey() crypto.PublicKey
	// SignMessage signs message with alg. The returned bytes are in the
	// encoding of alg and verify with signature.Verify.
	SignMessage(ctx context.Context, alg *signature.SigningAlgorithm, message []byte, sm SecretManager) ([]byte, error)
	Vault() Vault
}

type KeyReferenceWithID interface {
	KeyReference
	ID() string // Additional backend specific ID that can be displayed alongside the public key
}

type Unlocker interface {
	IsLocked() bool
	Unlock(ctx context.Context, sm SecretManager) error
}

// GetSecretHint tells a SecretManager why a secret is requested, so that an
// interactive implementation can ask for confirmation when a new key is
// encrypted.
type GetSecretHint uint

const (
	GetSecretHintGenerate GetSecretHint = 1 + iota
	GetSecretHintUnlock
	GetSecretHintSign
)

type SecretManager interface {
	GetSecret(ctx context.Context, pkh *crypto.PublicKeyHash, alg crypto.Algorithm, hint GetSecretHint) ([]byte, error)
}

type Vault interface {
	List(ctx context.Context, filter []crypto.Algorithm) KeyIterator
	Close(ctx context.Context) error
	Ready(ctx context.Context) (bool, error)
	// Name returns the backend name
	Name() string
	InstanceInfo() string
}

type GenerateOptions interface {
	Encrypt() bool
}

type EncryptKey bool

func (e EncryptKey) Encrypt() bool { return bool(e) }

// Generator represents a backend which is able to generate keys on its side
type Generator interface {
	Generate(ctx context.Context, alg crypto.Algorithm, sm SecretManager, options GenerateOptions) (KeyReference, error)
}

type Importer interface {
	Import(ctx context.Context, key crypto.PrivateKey, sm SecretManager, options GenerateOptions) (KeyReference, error)
}

type KeyIterator interface {
	Keys() iter.Seq[KeyReference]
	Err() error
}

type VaultFactory interface {
	New(ctx context.Context, opt utils.GlobalOptions, config any, log logger.Logger) (Vault, error)
	DefaultConfig() any
}

type Manager interface {
	GetFactory(name string) VaultFactory
}

type registry map[string]VaultFactory

func (m registry) GetFactory(name string) VaultFactory {
	return m[name]
}

var defaultRegistry = make(registry)

func DefaultManager() Manager {
	return defaultRegistry
}

func Register(name string, fact VaultFactory) {
	if _, ok := defaultRegistry[name]; ok {
		panic(fmt.Sprintf("name is already in use: %s", name))
	}
	defaultRegistry[name] = fact
}

type vaultError struct {
	err error
	v   Vault
}

func WrapError(v Vault, err error) error { return vaultError{err: err, v: v} }
func (e vaultError) Error() string       { return fmt.Sprintf("(%s): %v", e.v.InstanceInfo(), e.err) }
func (e vaultError) Unwrap() error       { return e.err }

type Config struct {
	Driver string   `yaml:"driver"`
	Config ast.Node `yaml:"config,omitempty"`
}

// New instantiates a vault with the driver named by conf. A nil manager uses
// the drivers registered with Register.
func New(ctx context.Context, conf *Config, opt utils.GlobalOptions, man Manager, log logger.Logger) (Vault, error) {
	if man == nil {
		man = defaultRegistry
	}
	f := man.GetFactory(conf.Driver)
	if f == nil {
		return nil, fmt.Errorf("%w: unknown vault driver %s", ErrConfig, conf.Driver)
	}
	c := f.DefaultConfig()
	if conf.Config != nil {
		if err := yaml.NodeToValue(conf.Config, c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	if log == nil {
		log = logger.Nop
	}
	return f.New(ctx, opt, c, log.With("driver", conf.Driver))
}

// FilterKeys reports whether a key of type alg passes a List filter. An
// empty filter admits every key.
func FilterKeys(filter []crypto.Algorithm, alg crypto.Algorithm) bool {
	return len(filter) == 0 || slices.Contains(filter, alg)
}
