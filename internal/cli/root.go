// Package cli implements the pclgen command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dellis1972/pcl-gen/internal/catalog"
	"github.com/dellis1972/pcl-gen/internal/config"
	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/logger"
	"github.com/dellis1972/pcl-gen/internal/metadata"
	"github.com/dellis1972/pcl-gen/internal/surface"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"include":         "filters.include",
	"exclude-classes": "filters.exclude_classes",
	"ignore-file":     "filters.ignore",
	"ref-dir":         "metadata.reference_dirs",
	"output":          "output.path",
	"lang":            "output.lang",
	"go-package":      "output.go_package",
	"preamble":        "output.preamble",
	"service-index":   "nuget.service_index",
	"cache-dir":       "nuget.cache_dir",
	"log-json":        "log.json",
	"verbose":         "log.verbose",
}

// app carries the state shared by the commands of one invocation.
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	configPath string
	stdout     io.Writer
}

// NewRootCmd builds the pclgen command tree with a fresh configuration.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "pclgen [library]",
		Short: "Generate stub sources mirroring the public surface of a .NET library",
		Long: `pclgen reads the metadata of a compiled .NET class library (or a YAML/TOML
surface manifest) and writes stub declarations for its public enums,
interfaces, structs and classes. Every generated body throws
NotImplementedException.

Examples:
  pclgen MonoGame.Framework.dll -o Stubs.cs
  pclgen generate surface.yaml --include Sample --lang go
  pclgen inspect MonoGame.Framework.dll
  pclgen fetch MonoGame.Framework.Portable --version "~> 3.6"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.runGenerate(cmd, args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./"+config.FileName+" when present)")
	flags.BoolP("verbose", "v", false, "log debug output and print error details")
	flags.Bool("log-json", false, "log as JSON lines")
	flags.String("include", catalog.DefaultInclude, "namespace prefix for enums, interfaces and structs")
	flags.String("exclude-classes", catalog.DefaultExcludeClasses, "namespace whose classes are skipped")
	flags.String("ignore-file", "", "gitignore-style file matched against Namespace/Path/Type")
	flags.StringSlice("ref-dir", nil, "directory searched for referenced assemblies (repeatable)")

	addGenerateFlags(root)
	root.AddCommand(newGenerateCmd(a), newInspectCmd(a), newFetchCmd(a))
	return root, a
}

// setup binds the flags of the running command, reads configuration and
// initializes logging.
func (a *app) setup(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := a.v.BindPFlag(key, flag); err != nil {
				return errors.Wrapf(err, "binding --%s", name)
			}
		}
	}
	if err := config.ReadFile(a.v, a.configPath); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.stdout = cmd.OutOrStdout()
	return logger.Initialize(cfg.Log.JSON, cfg.Log.Verbose)
}

// openProvider picks the manifest or assembly provider by file extension.
func (a *app) openProvider(path string) (metadata.Provider, error) {
	if metadata.IsManifest(path) {
		return metadata.LoadManifest(path)
	}
	return metadata.NewReader(path,
		metadata.WithReferenceDirs(a.cfg.Metadata.ReferenceDirs...),
		metadata.WithLogger(logger.Named("metadata")))
}

// extract loads input and builds its surface.
func (a *app) extract(input string) (*surface.Surface, *catalog.Catalog, error) {
	filter := catalog.Filter{
		Include:        a.cfg.Filters.Include,
		ExcludeClasses: a.cfg.Filters.ExcludeClasses,
	}
	if a.cfg.Filters.Ignore != "" {
		var err error
		if filter, err = filter.WithIgnoreFile(a.cfg.Filters.Ignore); err != nil {
			return nil, nil, err
		}
	}

	provider, err := a.openProvider(input)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loading %s", input)
	}
	defer provider.Close()

	cat := catalog.New(provider, filter, logger.Named("catalog"))
	s, err := cat.Build()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "extracting %s", input)
	}
	return s, cat, nil
}

// Execute runs pclgen with the process arguments and returns its exit code.
func Execute(ctx context.Context) int {
	cmd, a := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	defer logger.Sync()
	if err != nil {
		verbose := a.cfg != nil && a.cfg.Log.Verbose
		reportError(os.Stderr, err, verbose)
		return 1
	}
	return 0
}
