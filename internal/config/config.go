// Package config loads pclgen settings from defaults, an optional
// pclgen.toml, PCLGEN_* environment variables and command-line flags.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/dellis1972/pcl-gen/internal/errors"
)

// FileName is the config file looked up in the working directory.
const FileName = "pclgen.toml"

// EnvPrefix prefixes every environment override, e.g. PCLGEN_OUTPUT_LANG.
const EnvPrefix = "PCLGEN"

// Config is the full pclgen configuration.
type Config struct {
	Filters  FiltersConfig  `mapstructure:"filters"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Output   OutputConfig   `mapstructure:"output"`
	NuGet    NuGetConfig    `mapstructure:"nuget"`
	Log      LogConfig      `mapstructure:"log"`
}

// FiltersConfig selects the extracted types. Ignore names a gitignore-style
// file matched against Namespace/Path/Type.
type FiltersConfig struct {
	Include        string `mapstructure:"include"`
	ExcludeClasses string `mapstructure:"exclude_classes"`
	Ignore         string `mapstructure:"ignore"`
}

type MetadataConfig struct {
	ReferenceDirs []string `mapstructure:"reference_dirs"`
}

// OutputConfig controls rendering. Path "-" is stdout.
type OutputConfig struct {
	Path      string   `mapstructure:"path"`
	Lang      string   `mapstructure:"lang"`
	GoPackage string   `mapstructure:"go_package"`
	Preamble  []string `mapstructure:"preamble"`
}

type NuGetConfig struct {
	ServiceIndex string `mapstructure:"service_index"`
	CacheDir     string `mapstructure:"cache_dir"`
}

type LogConfig struct {
	JSON    bool `mapstructure:"json"`
	Verbose bool `mapstructure:"verbose"`
}

// New returns a viper instance with defaults and environment binding but no
// config file.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// ReadFile merges the config file at path into v. An empty path looks for
// FileName in the working directory and is not an error when it is absent.
func ReadFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = FileName
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		err = errors.Wrapf(err, "reading config file %s", path)
		if explicit {
			return errors.WithHint(err, "check the --config path")
		}
		return err
	}
	return nil
}

// Load returns the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFile is New, ReadFile and Load in one call.
func LoadFile(path string) (*Config, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Load(v)
}

// Validate rejects settings no command can act on.
func (c *Config) Validate() error {
	if c.Output.Path == "" {
		return errors.WithHint(errors.New("output.path is empty"), `use "-" for standard output`)
	}
	switch strings.ToLower(c.Output.Lang) {
	case "csharp", "cs", "c#", "go", "golang":
	default:
		return errors.WithHint(
			errors.Newf("output.lang %q is not supported", c.Output.Lang),
			"supported languages are csharp and go")
	}
	return nil
}
