package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/signatory-io/sigengine/crypto/utils"
	"golang.org/x/term"
)

// Terminal runs dialogs on the controlling terminal. Only one dialog is
// shown at a time.
type Terminal struct {
	mtx sync.Mutex
}

var aLongTimeAgo = time.Unix(1, 0)

// readCtx interrupts a blocked read by moving the pipe deadline into the past
// once ctx is done.
func readCtx(ctx context.Context, r *os.File, readFunc func() (string, error)) (string, error) {
	stop := context.AfterFunc(ctx, func() { r.SetReadDeadline(aLongTimeAgo) })
	line, err := readFunc()
	if !stop() {
		err = ctx.Err()
	}
	r.SetReadDeadline(time.Time{})

	if errors.Is(err, io.EOF) {
		err = ErrCancelled
	}
	return line, err
}

type dialogTerm struct {
	*term.Terminal
	in *os.File
}

func (d *dialogTerm) readPassword(ctx context.Context, prompt string) (string, error) {
	return readCtx(ctx, d.in, func() (string, error) { return d.ReadPassword(prompt) })
}

func (d *dialogTerm) show(ctx context.Context, item Item) error {
	switch item := item.(type) {
	case *KeyInfo:
		if item.PublicKeyHash == nil {
			break
		}
		fmt.Fprintf(d, "Public key hash: %v\n", item.PublicKeyHash)
		title := "KEY"
		if item.Algorithm != 0 {
			fmt.Fprintf(d, "Algorithm: %v\n", item.Algorithm)
			title = item.Algorithm.String()
		}
		io.WriteString(d, utils.NewRandomArt(item.PublicKeyHash[:]).Render(title))

	case *Passphrase:
		v, err := d.readPassword(ctx, item.Prompt+": ")
		if err != nil {
			return err
		}
		*item.Value = v

	default:
		panic(fmt.Sprintf("unexpected ui.Item: %T", item))
	}
	return nil
}

func (t *Terminal) Dialog(ctx context.Context, dialog *Dialog) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("standard input is not a terminal")
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()

	state, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, state)

	stdin := stdinPipe()
	d := dialogTerm{
		Terminal: term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{stdin, os.Stdout}, ""),
		in: stdin,
	}

	fmt.Fprintln(d, "")
	if dialog.Title != "" {
		fmt.Fprintf(d, "# %s\n", dialog.Title)
	}
	for _, item := range dialog.Items {
		if err := d.show(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (t *Terminal) ErrorMessage(ctx context.Context, msg string) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	_, err := fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	return err
}

// stdin is copied through a pipe so that reads can be interrupted with a
// deadline.
var stdinPipe = sync.OnceValue(func() *os.File {
	r, w, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	go io.Copy(w, os.Stdin)
	return r
})

var _ UI = (*Terminal)(nil)
