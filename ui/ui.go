// Package ui asks an operator for key passphrases. Prompts are described as
// dialogs made of items, and Terminal renders them on the controlling
// terminal.
package ui

import (
	"context"
	"errors"

	"github.com/signatory-io/sigengine/crypto"
)

type Item interface {
	dialogItem()
}

// KeyInfo identifies the key a dialog is about. It is shown as the public key
// hash, the key family and a random art picture of the hash.
type KeyInfo struct {
	PublicKeyHash *crypto.PublicKeyHash
	Algorithm     crypto.Algorithm
}

// Passphrase is a prompt that isn't echoed.
type Passphrase struct {
	Prompt string
	Value  *string
}

func (*KeyInfo) dialogItem()    {}
func (*Passphrase) dialogItem() {}

type Dialog struct {
	Title string
	Items []Item
}

var ErrCancelled = errors.New("cancelled")

type UI interface {
	Dialog(ctx context.Context, dialog *Dialog) error
	ErrorMessage(ctx context.Context, msg string) error
}
