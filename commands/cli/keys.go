package cli

import (
	"context"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/signatory-io/sigengine/core"
	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/crypto/pkix"
	"github.com/signatory-io/sigengine/crypto/utils"
	"github.com/signatory-io/sigengine/signer"
	"github.com/signatory-io/sigengine/vault"
	"github.com/spf13/cobra"
)

func newVaultCommand(r *rootContext) *cobra.Command {
	cmd := cobra.Command{
		Use:   "vault",
		Short: "Vault operations",
	}
	listCmd := cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "List vaults",
		RunE: withService(r, func(ctx context.Context, svc *core.Service) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
			fmt.Fprintln(w, "ID\tType\tInstance Info\tReady")
			for v := range svc.Signer().ListVaults() {
				ready, err := v.Vault().Ready(ctx)
				status := "yes"
				if err != nil {
					status = err.Error()
				} else if !ready {
					status = "no"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID(), v.Vault().Name(), v.Vault().InstanceInfo(), status)
			}
			return w.Flush()
		}),
	}
	cmd.AddCommand(&listCmd)
	return &cmd
}

func newKeyCommand(r *rootContext) *cobra.Command {
	cmd := cobra.Command{
		Use:     "key",
		Aliases: []string{"keys"},
		Short:   "Keys operations",
	}
	cmd.AddCommand(newListKeysCommand(r))
	cmd.AddCommand(newGenerateKeyCommand(r))
	cmd.AddCommand(newImportKeyCommand(r))
	cmd.AddCommand(newUnlockCommand(r))
	cmd.AddCommand(newShowKeyCommand(r))
	return &cmd
}

func parsePKH(s string) (*crypto.PublicKeyHash, error) {
	var pkh crypto.PublicKeyHash
	if err := pkh.UnmarshalText([]byte(s)); err != nil {
		return nil, err
	}
	return &pkh, nil
}

func parseAlgorithms(names []string) ([]crypto.Algorithm, error) {
	var algs []crypto.Algorithm
	for _, n := range names {
		a, err := crypto.ParseAlgorithm(n)
		if err != nil {
			return nil, err
		}
		algs = append(algs, a)
	}
	return algs, nil
}

func newListKeysCommand(r *rootContext) *cobra.Command {
	var (
		vaultID  string
		algNames []string
	)

	cmd := cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "List keys",
		RunE: withService(r, func(ctx context.Context, svc *core.Service) error {
			algs, err := parseAlgorithms(algNames)
			if err != nil {
				return err
			}
			it := svc.Signer().ListKeys(ctx, vaultID, algs)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
			fmt.Fprintln(w, "Public Key Hash\tAlgorithm\tVault ID\tKey ID\tIs Locked")
			for k := range it.Keys() {
				var locked string
				if k.IsLocked() {
					locked = "*"
				}
				fmt.Fprintf(w, "%v\t%v\t%s\t%s\t%s\n", crypto.NewPublicKeyHash(k.PublicKey()), k.KeyType(), k.VaultID(), k.ID(), locked)
			}
			if err := it.Err(); err != nil {
				return err
			}
			return w.Flush()
		}),
	}

	f := cmd.Flags()
	f.StringVarP(&vaultID, "vault", "v", "", "Filter by vault ID")
	f.StringSliceVarP(&algNames, "alg", "a", nil, "Filter by key type(s)")

	return &cmd
}

func printKey(out io.Writer, key signer.KeyReference) error {
	pkh := crypto.NewPublicKeyHash(key.PublicKey())
	locked := "No"
	if key.IsLocked() {
		locked = "Yes"
	}
	w := tabwriter.NewWriter(out, 0, 0, 4, ' ', 0)
	art := utils.KeyRandomArt(key.KeyType().String(), key.PublicKey())
	for i, l := range strings.Split(strings.TrimSuffix(art, "\n"), "\n") {
		if i == 0 {
			fmt.Fprint(w, "Key's Visualizer:")
		}
		fmt.Fprintf(w, "\t%s\n", l)
	}
	fmt.Fprintf(w, "Public Key Hash:\t%v\n", pkh)
	fmt.Fprintf(w, "Public Key:\t%s\n", hex.EncodeToString(key.PublicKey().Bytes()))
	fmt.Fprintf(w, "Algorithm:\t%v\n", key.KeyType())
	fmt.Fprintf(w, "Vault ID:\t%s\n", key.VaultID())
	fmt.Fprintf(w, "Vault Instance:\t%s\n", key.Vault().InstanceInfo())
	fmt.Fprintf(w, "Locked:\t%s\n", locked)
	return w.Flush()
}

func newGenerateKeyCommand(r *rootContext) *cobra.Command {
	var (
		vaultID string
		algName string
		encrypt bool
	)

	cmd := cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Generate new key",
		RunE: withService(r, func(ctx context.Context, svc *core.Service) error {
			alg, err := crypto.ParseAlgorithm(algName)
			if err != nil {
				return err
			}
			key, err := svc.Signer().GenerateKey(ctx, vaultID, alg, secretManager(), vault.EncryptKey(encrypt))
			if err != nil {
				return err
			}
			return printKey(os.Stdout, key)
		}),
	}

	f := cmd.Flags()
	f.StringVarP(&vaultID, "vault", "v", "local", "Vault ID")
	f.StringVarP(&algName, "alg", "a", "", "Key type: [ed25519, p256, p384]")
	f.BoolVarP(&encrypt, "encrypt", "E", false, "Encrypt key with a passphrase")
	cmd.MarkFlagRequired("alg")

	return &cmd
}

func newImportKeyCommand(r *rootContext) *cobra.Command {
	var (
		vaultID string
		encrypt bool
	)

	cmd := cobra.Command{
		Use:   "import FILE",
		Short: "Import a PKCS #8 or PKCS #1 private key, or a hex encoded Ed25519 seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			priv, err := utils.ParsePrivateKey(data)
			if err != nil {
				return err
			}
			return withService(r, func(ctx context.Context, svc *core.Service) error {
				key, err := svc.Signer().ImportKey(ctx, vaultID, priv, secretManager(), vault.EncryptKey(encrypt))
				if err != nil {
					return err
				}
				return printKey(os.Stdout, key)
			})(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&vaultID, "vault", "v", "local", "Vault ID")
	f.BoolVarP(&encrypt, "encrypt", "E", false, "Encrypt key with a passphrase")

	return &cmd
}

func newUnlockCommand(r *rootContext) *cobra.Command {
	cmd := cobra.Command{
		Use:   "unlock PUBLIC_KEY_HASH",
		Short: "Check that a key can be decrypted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkh, err := parsePKH(args[0])
			if err != nil {
				return err
			}
			return withService(r, func(ctx context.Context, svc *core.Service) error {
				if err := svc.Signer().Unlock(ctx, pkh, secretManager()); err != nil {
					return err
				}
				fmt.Printf("Key %v is unlocked\n", pkh)
				return nil
			})(cmd, args)
		},
	}
	return &cmd
}

func newShowKeyCommand(r *rootContext) *cobra.Command {
	var asPEM bool

	cmd := cobra.Command{
		Use:   "show PUBLIC_KEY_HASH",
		Short: "Print key details or its SubjectPublicKeyInfo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkh, err := parsePKH(args[0])
			if err != nil {
				return err
			}
			return withService(r, func(ctx context.Context, svc *core.Service) error {
				key, err := svc.Signer().GetKey(ctx, pkh)
				if err != nil {
					return err
				}
				if !asPEM {
					return printKey(os.Stdout, key)
				}
				der, err := pkix.MarshalPublicKey(key.PublicKey())
				if err != nil {
					return err
				}
				return pem.Encode(os.Stdout, &pem.Block{Type: "PUBLIC KEY", Bytes: der})
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&asPEM, "pem", false, "Print PEM encoded public key")
	return &cmd
}
