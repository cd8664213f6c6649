package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/signatory-io/sigengine/core"
	"github.com/signatory-io/sigengine/crypto/pkix"
	"github.com/signatory-io/sigengine/signature"
	"github.com/signatory-io/sigengine/signer"
	"github.com/spf13/cobra"
)

// readInput reads a file, or standard input if name is "-".
func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func encodeOutput(data []byte, enc string) ([]byte, error) {
	switch enc {
	case "hex":
		return []byte(hex.EncodeToString(data) + "\n"), nil
	case "base64":
		return []byte(base64.StdEncoding.EncodeToString(data) + "\n"), nil
	case "raw":
		return data, nil
	default:
		return nil, fmt.Errorf("unknown encoding %s", enc)
	}
}

func decodeInput(data []byte, enc string) ([]byte, error) {
	switch enc {
	case "hex":
		return hex.DecodeString(string(bytes.TrimSpace(data)))
	case "base64":
		return base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data)))
	case "raw":
		return data, nil
	default:
		return nil, fmt.Errorf("unknown encoding %s", enc)
	}
}

// readPublicKey accepts a PEM SubjectPublicKeyInfo or the raw key encoding in
// hex.
func readPublicKey(name string) ([]byte, error) {
	data, err := readInput(name)
	if err != nil {
		return nil, err
	}
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "PUBLIC KEY" {
			return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
		}
		pub, err := pkix.ParsePublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return pub.Bytes(), nil
	}
	return hex.DecodeString(string(bytes.TrimSpace(data)))
}

func newSignCommand(r *rootContext) *cobra.Command {
	var (
		algName  string
		input    string
		encoding string
	)

	cmd := cobra.Command{
		Use:   "sign PUBLIC_KEY_HASH",
		Short: "Sign a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkh, err := parsePKH(args[0])
			if err != nil {
				return err
			}
			var alg *signature.SigningAlgorithm
			if algName != "" {
				if alg, err = signature.LookupSigning(algName); err != nil {
					return err
				}
			}
			msg, err := readInput(input)
			if err != nil {
				return err
			}
			return withService(r, func(ctx context.Context, svc *core.Service) error {
				sig, err := svc.Signer().Sign(ctx, &signer.SignRequest{PublicKeyHash: pkh, Algorithm: alg, Message: msg}, secretManager())
				if err != nil {
					return err
				}
				out, err := encodeOutput(sig, encoding)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(out)
				return err
			})(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&algName, "alg", "a", "", "Signing algorithm, the key type default if empty")
	f.StringVarP(&input, "input", "i", "-", "Message file")
	f.StringVarP(&encoding, "encoding", "e", "hex", "Signature encoding: [hex, base64, raw]")
	return &cmd
}

func newVerifyCommand() *cobra.Command {
	var (
		algName  string
		input    string
		pubFile  string
		sigFile  string
		encoding string
	)

	cmd := cobra.Command{
		Use:   "verify",
		Short: "Verify a signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := signature.LookupVerification(algName)
			if err != nil {
				return err
			}
			pub, err := readPublicKey(pubFile)
			if err != nil {
				return err
			}
			sigData, err := os.ReadFile(sigFile)
			if err != nil {
				return err
			}
			sig, err := decodeInput(sigData, encoding)
			if err != nil {
				return err
			}
			msg, err := readInput(input)
			if err != nil {
				return err
			}
			if err := signature.Verify(alg, pub, msg, sig); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&algName, "alg", "a", "", "Verification algorithm")
	f.StringVarP(&input, "input", "i", "-", "Message file")
	f.StringVarP(&pubFile, "public-key", "p", "", "Public key file, PEM or hex")
	f.StringVarP(&sigFile, "signature", "s", "", "Signature file")
	f.StringVarP(&encoding, "encoding", "e", "hex", "Signature encoding: [hex, base64, raw]")
	cmd.MarkFlagRequired("alg")
	cmd.MarkFlagRequired("public-key")
	cmd.MarkFlagRequired("signature")
	return &cmd
}

func newAlgorithmsCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:     "algorithms",
		Aliases: []string{"algs"},
		Short:   "List supported algorithms",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 4, ' ', 0)
			fmt.Fprintln(w, "Name\tKey Type\tSigning")
			signing := make(map[*signature.VerificationAlgorithm]string)
			for _, a := range signature.SigningAlgorithms() {
				signing[a.Verification()] = a.String()
			}
			for _, a := range signature.VerificationAlgorithms() {
				fmt.Fprintf(w, "%s\t%v\t%s\n", a, a.KeyType(), signing[a])
			}
			return w.Flush()
		},
	}
	return &cmd
}

func newTokenCommand(r *rootContext) *cobra.Command {
	cmd := cobra.Command{
		Use:   "token",
		Short: "Issue a signed token with the configured key",
		RunE: withService(r, func(ctx context.Context, svc *core.Service) error {
			ts, err := svc.TokenSigner(secretManager())
			if err != nil {
				return err
			}
			tok, err := ts.Token(ctx)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		}),
	}
	return &cmd
}
