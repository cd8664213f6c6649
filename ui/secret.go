package ui

import (
	"context"
	"errors"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/vault"
)

var ErrPassphraseMismatch = errors.New("passphrases don't match")

// InteractiveSecretManager asks for a passphrase through UI. A new
// passphrase must be entered twice.
type InteractiveSecretManager struct {
	UI UI
}

func (m InteractiveSecretManager) GetSecret(ctx context.Context, pkh *crypto.PublicKeyHash, alg crypto.Algorithm, hint vault.GetSecretHint) ([]byte, error) {
	var password, confirm string
	items := []Item{
		&KeyInfo{PublicKeyHash: pkh, Algorithm: alg},
		&Passphrase{
			Prompt: "Enter passphrase",
			Value:  &password,
		},
	}

	var title string
	switch hint {
	case vault.GetSecretHintSign:
		title = "Passphrase required to sign"
	case vault.GetSecretHintUnlock:
		title = "Passphrase required to unlock"
	default:
		title = "Passphrase required"
	}
	if hint == vault.GetSecretHintGenerate {
		title = "New key passphrase"
		items = append(items, &Passphrase{
			Prompt: "Repeat passphrase",
			Value:  &confirm,
		})
	}
	dialog := Dialog{
		Title: title,
		Items: items,
	}
	if err := m.UI.Dialog(ctx, &dialog); err != nil {
		return nil, err
	}
	if hint == vault.GetSecretHintGenerate && password != confirm {
		return nil, ErrPassphraseMismatch
	}
	return []byte(password), nil
}

// StaticSecret returns the same secret for every key, e.g. one taken from an
// environment variable.
type StaticSecret []byte

func (s StaticSecret) GetSecret(context.Context, *crypto.PublicKeyHash, crypto.Algorithm, vault.GetSecretHint) ([]byte, error) {
	return s, nil
}

var (
	_ vault.SecretManager = InteractiveSecretManager{}
	_ vault.SecretManager = StaticSecret(nil)
)
