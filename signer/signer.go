// Package signer routes signing requests to the vault holding the key. Keys
// are addressed by the hash of their public key.
package signer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/logger"
	"github.com/signatory-io/sigengine/signature"
	"github.com/signatory-io/sigengine/vault"
)

var (
	ErrVaultNotFound = errors.New("vault instance is not found")
	ErrKeyNotFound   = errors.New("key is not found")
	ErrNotSupported  = errors.New("operation is not supported by the vault")
)

var errMissingHash = fmt.Errorf("%w: public key hash is required", vault.ErrUserInput)

type vaultInst struct {
	id    string
	vault vault.Vault
}

func (i *vaultInst) ID() string         { return i.id }
func (i *vaultInst) Vault() vault.Vault { return i.vault }

type VaultInfo interface {
	ID() string
	Vault() vault.Vault
}

type Signer struct {
	vaults     []*vaultInst
	vaultIndex map[string]*vaultInst
	cache      map[crypto.PublicKeyHash]keyRef
	cacheMtx   sync.RWMutex
	log        logger.Logger
}

type KeyIterator interface {
	Keys() iter.Seq[KeyReference]
	Err() error
}

type KeyReference interface {
	vault.KeyReference
	VaultID() string
	// ID returns the backend specific key ID, if any
	ID() string
	IsLocked() bool
	Unlock(ctx context.Context, sm vault.SecretManager) error
}

type errIter struct {
	err error
}

func (errIter) Keys() iter.Seq[KeyReference] { return func(yield func(KeyReference) bool) {} }
func (e errIter) Err() error                 { return e.err }

type keyIter struct {
	s      *Signer
	vaults iter.Seq[*vaultInst]
	ctx    context.Context
	filter []crypto.Algorithm
	err    error
}

func (i *keyIter) Err() error { return i.err }

func (i *keyIter) Keys() iter.Seq[KeyReference] {
	return func(yield func(KeyReference) bool) {
		for v := range i.vaults {
			it := v.vault.List(i.ctx, i.filter)
			for key := range it.Keys() {
				ref := keyRef{
					KeyReference: key,
					instanceID:   v.id,
				}
				i.s.updateCache(ref)
				if !yield(ref) {
					return
				}
			}
			if i.err = it.Err(); i.err != nil {
				return
			}
		}
	}
}

type keyRef struct {
	vault.KeyReference
	instanceID string
}

func (k keyRef) VaultID() string { return k.instanceID }

func (k keyRef) ID() string {
	if v, ok := k.KeyReference.(vault.KeyReferenceWithID); ok {
		return v.ID()
	}
	return ""
}

func (k keyRef) IsLocked() bool {
	u, ok := k.KeyReference.(vault.Unlocker)
	return ok && u.IsLocked()
}

func (k keyRef) Unlock(ctx context.Context, sm vault.SecretManager) error {
	if u, ok := k.KeyReference.(vault.Unlocker); ok {
		return u.Unlock(ctx, sm)
	}
	return nil
}

// New takes ownership of vaults. Vaults are visited in the order of their
// IDs. A nil logger discards output.
func New(vaults iter.Seq2[string, vault.Vault], log logger.Logger) *Signer {
	if log == nil {
		log = logger.Nop
	}
	s := &Signer{
		vaultIndex: make(map[string]*vaultInst),
		cache:      make(map[crypto.PublicKeyHash]keyRef),
		log:        log,
	}
	for id, v := range vaults {
		inst := &vaultInst{
			id:    id,
			vault: v,
		}
		s.vaults = append(s.vaults, inst)
		s.vaultIndex[id] = inst
	}
	sort.Slice(s.vaults, func(i, j int) bool { return s.vaults[i].id < s.vaults[j].id })
	return s
}

// ListKeys lists the keys of a single vault, or of every vault if vaultID is
// empty.
func (s *Signer) ListKeys(ctx context.Context, vaultID string, filter []crypto.Algorithm) KeyIterator {
	var vaults iter.Seq[*vaultInst]
	if vaultID != "" {
		v, ok := s.vaultIndex[vaultID]
		if !ok {
			return errIter{fmt.Errorf("%w: %s", ErrVaultNotFound, vaultID)}
		}
		vaults = func(yield func(*vaultInst) bool) { yield(v) }
	} else {
		vaults = slices.Values(s.vaults)
	}
	return &keyIter{
		s:      s,
		vaults: vaults,
		ctx:    ctx,
		filter: filter,
	}
}

func (s *Signer) updateCache(key keyRef) {
	pkh := crypto.NewPublicKeyHash(key.PublicKey())
	s.cacheMtx.Lock()
	defer s.cacheMtx.Unlock()
	s.cache[*pkh] = key
}

func (s *Signer) ListVaults() iter.Seq[VaultInfo] {
	return func(yield func(VaultInfo) bool) {
		for _, v := range s.vaults {
			if !yield(v) {
				return
			}
		}
	}
}

func (s *Signer) GetVault(id string) (VaultInfo, error) {
	v, ok := s.vaultIndex[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, id)
	}
	return v, nil
}

// GetKey looks the key up in the cache first, then walks every vault.
func (s *Signer) GetKey(ctx context.Context, pkh *crypto.PublicKeyHash) (KeyReference, error) {
	if pkh == nil {
		return nil, errMissingHash
	}
	s.cacheMtx.RLock()
	ref, ok := s.cache[*pkh]
	s.cacheMtx.RUnlock()
	if ok {
		return ref, nil
	}

	it := s.ListKeys(ctx, "", nil)
	for key := range it.Keys() {
		if *crypto.NewPublicKeyHash(key.PublicKey()) == *pkh {
			return key, nil
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, pkh)
}

func (s *Signer) GenerateKey(ctx context.Context, vaultID string, alg crypto.Algorithm, sm vault.SecretManager, options vault.GenerateOptions) (KeyReference, error) {
	vi, err := s.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	gen, ok := vi.Vault().(vault.Generator)
	if !ok {
		return nil, fmt.Errorf("%w: %s can't generate keys", ErrNotSupported, vi.Vault().Name())
	}
	key, err := gen.Generate(ctx, alg, sm, options)
	if err != nil {
		return nil, err
	}
	ref := keyRef{KeyReference: key, instanceID: vaultID}
	s.updateCache(ref)
	s.log.WithFields(map[string]any{"vault": vaultID, "pkh": crypto.NewPublicKeyHash(key.PublicKey()), "alg": alg}).Info("Key generated")
	return ref, nil
}

func (s *Signer) ImportKey(ctx context.Context, vaultID string, priv crypto.PrivateKey, sm vault.SecretManager, options vault.GenerateOptions) (KeyReference, error) {
	vi, err := s.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	imp, ok := vi.Vault().(vault.Importer)
	if !ok {
		return nil, fmt.Errorf("%w: %s can't import keys", ErrNotSupported, vi.Vault().Name())
	}
	key, err := imp.Import(ctx, priv, sm, options)
	if err != nil {
		return nil, err
	}
	ref := keyRef{KeyReference: key, instanceID: vaultID}
	s.updateCache(ref)
	s.log.WithFields(map[string]any{"vault": vaultID, "pkh": crypto.NewPublicKeyHash(key.PublicKey()), "alg": key.KeyType()}).Info("Key imported")
	return ref, nil
}

func (s *Signer) Unlock(ctx context.Context, pkh *crypto.PublicKeyHash, sm vault.SecretManager) error {
	key, err := s.GetKey(ctx, pkh)
	if err != nil {
		return err
	}
	return key.Unlock(ctx, sm)
}

// SignRequest describes a single signing operation. A nil Algorithm selects
// the default algorithm of the key family.
type SignRequest struct {
	PublicKeyHash *crypto.PublicKeyHash
	Algorithm     *signature.SigningAlgorithm
	Message       []byte
}

// Sign signs the message with the referenced key and checks the result
// against the key's public part before returning it.
func (s *Signer) Sign(ctx context.Context, req *SignRequest, sm vault.SecretManager) ([]byte, error) {
	if req == nil || req.PublicKeyHash == nil {
		return nil, errMissingHash
	}
	key, err := s.GetKey(ctx, req.PublicKeyHash)
	if err != nil {
		return nil, err
	}
	alg := req.Algorithm
	if alg == nil {
		if alg, err = signature.DefaultSigningAlgorithm(key.KeyType()); err != nil {
			return nil, err
		}
	}
	l := s.log.WithFields(map[string]any{"pkh": req.PublicKeyHash, "alg": alg, "vault": key.VaultID()})
	if alg.KeyType() != key.KeyType() {
		return nil, fmt.Errorf("%w: %v can't be used with %v key", vault.ErrAlgorithm, alg, key.KeyType())
	}

	sig, err := key.SignMessage(ctx, alg, req.Message, sm)
	if err != nil {
		l.Debugf("Signing failed: %v", err)
		return nil, err
	}
	if err := signature.Verify(alg.Verification(), key.PublicKey().Bytes(), req.Message, sig); err != nil {
		l.Error("Produced signature doesn't verify")
		return nil, err
	}
	l.Debug("Message signed")
	return sig, nil
}

// Close closes every vault and returns the joined errors.
func (s *Signer) Close(ctx context.Context) error {
	var errs []error
	for _, v := range s.vaults {
		if err := v.vault.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.id, err))
		}
	}
	return errors.Join(errs...)
}
