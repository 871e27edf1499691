package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dellis1972/pcl-gen/internal/logger"
	"github.com/dellis1972/pcl-gen/internal/metadata"
)

func newFetchCmd(a *app) *cobra.Command {
	var constraint, framework string

	cmd := &cobra.Command{
		Use:   "fetch <package>",
		Short: "Download a NuGet package and print the path of its library",
		Long: `fetch downloads a package from a NuGet v3 feed into the cache directory,
picking the newest version that satisfies --version, and prints the path of
the library image inside it. The path can be passed to generate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fetcher := metadata.NewFetcher(a.cfg.NuGet.ServiceIndex, a.cfg.NuGet.CacheDir)
			fetcher.Log = logger.Named("fetch")

			path, err := fetcher.Fetch(cmd.Context(), args[0], constraint, framework)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&constraint, "version", "", `version constraint, e.g. "3.6.0" or ">= 3.0, < 4.0" (default newest)`)
	flags.StringVar(&framework, "framework", "", "target framework folder under lib/ (default last one)")
	flags.String("service-index", metadata.DefaultServiceIndex, "NuGet v3 service index URL")
	flags.String("cache-dir", "", "directory packages are unpacked into")
	return cmd
}
