package core

import (
	"iter"
	"maps"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/signatory-io/sigengine/logger"
	"github.com/signatory-io/sigengine/signer"
	"github.com/signatory-io/sigengine/vault"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// TokenConfig configures the cached token issuer.
type TokenConfig struct {
	// Key is the hex encoded hash of the signing key
	Key       string `yaml:"key"`
	KeyID     string `yaml:"key_id"`
	Issuer    string `yaml:"issuer"`
	TTL       string `yaml:"ttl,omitempty"`
	Algorithm string `yaml:"algorithm,omitempty"` // JWS name, ES256 by default
}

type Config struct {
	BasePath  string                   `yaml:"base_path"`
	LogLevel  logger.Level             `yaml:"log_level"`
	LogFormat string                   `yaml:"log_format,omitempty"`
	Vaults    map[string]*vault.Config `yaml:"vaults,omitempty"`
	Token     *TokenConfig             `yaml:"token,omitempty"`
}

const (
	DefaultConfigFile = "config.yaml"
	DefaultBaseDir    = ".sigengine"
	DefaultKeysDir    = "keys"
)

// Default returns a configuration with a single local vault under the base
// directory.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		BasePath:  filepath.Join(home, DefaultBaseDir),
		LogLevel:  logger.LevelInfo,
		LogFormat: LogFormatText,
		Vaults: map[string]*vault.Config{
			"local": {Driver: "local"},
		},
	}
}

func (c *Config) GetBasePath() string                         { return c.BasePath }
func (c *Config) GetVaults() iter.Seq2[string, *vault.Config] { return maps.All(c.Vaults) }

func LoadConfig[T any](conf T, path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(buf, conf)
}

func (c *Config) RegisterFlags(f *pflag.FlagSet, cmd *cobra.Command) {
	f.StringP("base-dir", "b", c.BasePath, "Base directory")
	f.StringP("config-file", "c", DefaultConfigFile, "Configuration file path (absolute or relative to the base directory)")
	f.TextVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Log level: [error, warn, info, debug, trace]")
	f.String("log-format", c.LogFormat, "Log format: [text, json]")

	cmd.MarkFlagFilename("config-file")
	cmd.MarkFlagDirname("base-dir")
}

// ConfigPath returns the configuration file named on the command line.
func ConfigPath(f *pflag.FlagSet) string {
	baseDir, err := f.GetString("base-dir")
	if err != nil {
		panic(err)
	}
	confPath, err := f.GetString("config-file")
	if err != nil {
		panic(err)
	}
	if !filepath.IsAbs(confPath) {
		confPath = filepath.Join(baseDir, confPath)
	}
	return confPath
}

// LoadCoreConfigFromCmdline reads the configuration file if loadFromFile is
// set and applies explicitly given flags on top of it.
func (c *Config) LoadCoreConfigFromCmdline(loadFromFile bool, f *pflag.FlagSet) error {
	if loadFromFile {
		if err := LoadConfig(c, ConfigPath(f)); err != nil {
			return err
		}
	}
	if f.Changed("base-dir") {
		baseDir, err := f.GetString("base-dir")
		if err != nil {
			panic(err)
		}
		c.BasePath = baseDir
	}
	if f.Changed("log-level") {
		var level logger.Level
		if err := f.GetText("log-level", &level); err != nil {
			return err
		}
		c.LogLevel = level
	}
	if f.Changed("log-format") {
		format, err := f.GetString("log-format")
		if err != nil {
			panic(err)
		}
		c.LogFormat = format
	}
	return nil
}

var _ signer.Config = (*Config)(nil)
