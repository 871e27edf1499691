package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/dellis1972/pcl-gen/internal/catalog"
	"github.com/dellis1972/pcl-gen/internal/generation"
	"github.com/dellis1972/pcl-gen/internal/metadata"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Extraction
	v.SetDefault("filters.include", catalog.DefaultInclude)
	v.SetDefault("filters.exclude_classes", catalog.DefaultExcludeClasses)
	v.SetDefault("filters.ignore", "")
	v.SetDefault("metadata.reference_dirs", []string{})

	// Rendering
	v.SetDefault("output.path", "-")
	v.SetDefault("output.lang", "csharp")
	v.SetDefault("output.go_package", generation.DefaultPackageName)
	v.SetDefault("output.preamble", generation.DefaultPreamble)

	// Package downloads
	v.SetDefault("nuget.service_index", metadata.DefaultServiceIndex)
	v.SetDefault("nuget.cache_dir", defaultCacheDir())

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbose", false)
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "pclgen", "packages")
}
