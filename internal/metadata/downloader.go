package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-getter"
	"github.com/hashicorp/go-version"
	"go.uber.org/zap"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/logger"
)

// DefaultServiceIndex is the NuGet V3 service index of nuget.org.
const DefaultServiceIndex string = "https://api.nuget.org/v3/index.json"

// ErrNoLibrary marks a package without a library image for the requested
// framework.
var ErrNoLibrary = errors.New("package contains no library image")

// Fetcher downloads NuGet packages and locates the library images inside.
type Fetcher struct {
	ServiceIndex string
	CacheDir     string
	Client       *http.Client
	Log          *zap.SugaredLogger
}

// NewFetcher returns a Fetcher for serviceIndex that unpacks into cacheDir.
func NewFetcher(serviceIndex, cacheDir string) *Fetcher {
	if serviceIndex == "" {
		serviceIndex = DefaultServiceIndex
	}
	return &Fetcher{
		ServiceIndex: serviceIndex,
		CacheDir:     cacheDir,
		Client:       http.DefaultClient,
		Log:          logger.Named("fetch"),
	}
}

// Fetch downloads package id at the newest version allowed by constraint
// (any version when empty) and returns the path of its library image for
// framework (the last target framework when empty).
func (f *Fetcher) Fetch(ctx context.Context, id, constraint, framework string) (string, error) {
	baseAddress, err := f.baseAddress(ctx)
	if err != nil {
		return "", err
	}

	lowerID := strings.ToLower(id)
	var versions struct {
		Versions []string `json:"versions"`
	}
	if err := f.getJSON(ctx, fmt.Sprintf("%s%s/index.json", baseAddress, lowerID), &versions); err != nil {
		return "", errors.WithHint(
			errors.Wrapf(err, "listing versions of %s", id),
			"check the package id and the nuget.service_index setting")
	}

	selected, err := SelectVersion(versions.Versions, constraint)
	if err != nil {
		return "", errors.Wrapf(err, "selecting version of %s", id)
	}
	ver := strings.ToLower(selected.Original())

	dst := filepath.Join(f.CacheDir, lowerID, ver)
	if _, err := os.Stat(dst); err == nil {
		f.Log.Debugw("Using cached package", logger.FieldPath, dst)
		return SelectLibrary(dst, id, framework)
	}

	src := fmt.Sprintf("%s%s/%s/%s.%s.nupkg?archive=zip", baseAddress, lowerID, ver, lowerID, ver)
	f.Log.Infow("Fetching package", "package", id, "version", ver, logger.FieldPath, dst)

	// Unpack next to dst and rename, so an interrupted download never
	// looks like a cached package.
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating package cache")
	}
	tmp, err := os.MkdirTemp(filepath.Dir(dst), ver+".partial-")
	if err != nil {
		return "", errors.Wrap(err, "creating package cache")
	}
	defer os.RemoveAll(tmp)

	client := &getter.Client{
		Ctx:     ctx,
		Src:     src,
		Dst:     tmp,
		Mode:    getter.ClientModeDir,
		Getters: getter.Getters,
	}
	if err := client.Get(); err != nil {
		return "", errors.Wrapf(err, "downloading %s %s", id, ver)
	}
	if err := os.Rename(tmp, dst); err != nil {
		if _, statErr := os.Stat(dst); statErr != nil {
			return "", errors.Wrapf(err, "storing %s %s", id, ver)
		}
		f.Log.Debugw("Package cached concurrently", logger.FieldPath, dst)
	}

	return SelectLibrary(dst, id, framework)
}

func (f *Fetcher) baseAddress(ctx context.Context) (string, error) {
	var index nugetIndex
	if err := f.getJSON(ctx, f.ServiceIndex, &index); err != nil {
		return "", errors.Wrap(err, "reading NuGet service index")
	}

	for _, resource := range index.Resources {
		if strings.HasPrefix(resource.Type, "PackageBaseAddress") {
			address := resource.Id
			if !strings.HasSuffix(address, "/") {
				address += "/"
			}
			return address, nil
		}
	}

	return "", errors.Newf("service index %s has no PackageBaseAddress resource", f.ServiceIndex)
}

func (f *Fetcher) getJSON(ctx context.Context, url string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	response, err := f.Client.Do(request)
	if err != nil {
		return err
	}

	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return errors.Newf("GET %s: %s", url, response.Status)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, target)
}

// SelectVersion picks the newest version matching constraint. Prereleases
// are chosen only when no stable version matches.
func SelectVersion(available []string, constraint string) (*version.Version, error) {
	var constraints version.Constraints
	if constraint != "" {
		var err error
		if constraints, err = version.NewConstraint(constraint); err != nil {
			return nil, errors.Wrapf(err, "parsing version constraint %q", constraint)
		}
	}

	var stable, prerelease version.Collection
	for _, s := range available {
		v, err := version.NewVersion(s)
		if err != nil {
			continue
		}
		if constraints != nil && !constraints.Check(v) {
			continue
		}
		if v.Prerelease() != "" {
			prerelease = append(prerelease, v)
		} else {
			stable = append(stable, v)
		}
	}

	candidates := stable
	if len(candidates) == 0 {
		candidates = prerelease
	}
	if len(candidates) == 0 {
		return nil, errors.Newf("no version matches %q", constraint)
	}

	sort.Sort(candidates)
	return candidates[len(candidates)-1], nil
}

// SelectLibrary finds the library image of package id under the lib folder
// of an unpacked package. It prefers <id>.dll and falls back to the first
// image in name order.
func SelectLibrary(packageDir, id, framework string) (string, error) {
	libDir := filepath.Join(packageDir, "lib")
	entries, err := os.ReadDir(libDir)
	if err != nil {
		return "", errors.Wrapf(ErrNoLibrary, "%s: %v", packageDir, err)
	}

	var frameworks []string
	for _, entry := range entries {
		if entry.IsDir() {
			frameworks = append(frameworks, entry.Name())
		}
	}
	sort.Strings(frameworks)

	var chosen string
	switch {
	case framework != "":
		for _, name := range frameworks {
			if strings.EqualFold(name, framework) {
				chosen = name
			}
		}
		if chosen == "" {
			return "", errors.WithHintf(
				errors.Wrapf(ErrNoLibrary, "no lib/%s folder", framework),
				"available frameworks: %s", strings.Join(frameworks, ", "))
		}
	case len(frameworks) > 0:
		chosen = frameworks[len(frameworks)-1]
	default:
		chosen = "."
	}

	dir := filepath.Join(libDir, chosen)
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(ErrNoLibrary, "%s: %v", dir, err)
	}

	var fallback string
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.EqualFold(filepath.Ext(name), ".dll") {
			continue
		}
		if strings.EqualFold(name, id+".dll") {
			return filepath.Join(dir, name), nil
		}
		if fallback == "" {
			fallback = filepath.Join(dir, name)
		}
	}
	if fallback == "" {
		return "", errors.Wrapf(ErrNoLibrary, "%s", dir)
	}
	return fallback, nil
}

type nugetIndex struct {
	Resources []nugetResource `json:"resources"`
}

type nugetResource struct {
	Id   string `json:"@id"`
	Type string `json:"@type"`
}
