package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/signatory-io/sigengine/core"
	"github.com/signatory-io/sigengine/utils"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:     "config",
		Aliases: []string{"conf"},
		Short:   "Configuration commands",
	}
	cmd.AddCommand(newConfigInitCommand())
	return &cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := cobra.Command{
		Use:   "init",
		Short: "Create new configuration file with provided parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			conf := core.Default()
			if err := conf.LoadCoreConfigFromCmdline(false, f); err != nil {
				return err
			}
			buf, err := yaml.Marshal(conf)
			if err != nil {
				return err
			}

			confPath := core.ConfigPath(f)
			if _, err := os.Stat(confPath); err == nil && !force {
				return fmt.Errorf("%s already exists", confPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(confPath), 0700); err != nil {
				return err
			}
			if err := utils.AtomicWrite(confPath, buf, 0600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file %s is successfully created\n", confPath)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
	return &cmd
}
