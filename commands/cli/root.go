// Package cli implements the sigengine command line tool.
package cli

import (
	"context"
	"os"

	"github.com/signatory-io/sigengine/core"
	"github.com/signatory-io/sigengine/ui"
	"github.com/signatory-io/sigengine/vault"
	"github.com/spf13/cobra"
)

const passphraseEnv = "SIGENGINE_PASSPHRASE"

type rootContext struct {
	conf *core.Config
}

// service loads the configuration and opens the vaults.
func (r *rootContext) service(cmd *cobra.Command) (*core.Service, error) {
	if err := r.conf.LoadCoreConfigFromCmdline(true, cmd.Flags()); err != nil {
		return nil, err
	}
	log, err := core.NewLogger(os.Stderr, r.conf.LogLevel, r.conf.LogFormat)
	if err != nil {
		return nil, err
	}
	return core.New(cmd.Context(), r.conf, log)
}

func withService(r *rootContext, fn func(ctx context.Context, svc *core.Service) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		svc, err := r.service(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if e := svc.Shutdown(cmd.Context()); err == nil {
				err = e
			}
		}()
		return fn(cmd.Context(), svc)
	}
}

// secretManager reads the passphrase from the environment if it's set and
// asks on the terminal otherwise.
func secretManager() vault.SecretManager {
	if p, ok := os.LookupEnv(passphraseEnv); ok {
		return ui.StaticSecret(p)
	}
	return ui.InteractiveSecretManager{UI: new(ui.Terminal)}
}

func NewRootCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:           "sigengine [options]",
		Short:         "Public key signature engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	r := rootContext{conf: core.Default()}
	r.conf.RegisterFlags(cmd.PersistentFlags(), &cmd)

	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newVaultCommand(&r))
	cmd.AddCommand(newKeyCommand(&r))
	cmd.AddCommand(newSignCommand(&r))
	cmd.AddCommand(newVerifyCommand())
	cmd.AddCommand(newAlgorithmsCommand())
	cmd.AddCommand(newTokenCommand(&r))

	return &cmd
}
