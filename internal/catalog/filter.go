package catalog

import (
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/metadata"
)

// Default namespace filters.
const (
	DefaultInclude        = "Microsoft.Xna.Framework"
	DefaultExcludeClasses = "Microsoft.Xna.Framework.Storage"
)

// Filter decides which exported types are extracted. Enums, interfaces and
// structs need the Include prefix; classes only need to lie outside
// ExcludeClasses. Ignore, when set, drops matching types of any kind.
type Filter struct {
	Include        string
	ExcludeClasses string
	Ignore         *ignore.GitIgnore
}

// DefaultFilter returns the filter used when nothing is configured.
func DefaultFilter() Filter {
	return Filter{Include: DefaultInclude, ExcludeClasses: DefaultExcludeClasses}
}

// WithIgnoreLines compiles gitignore-style patterns into the filter.
func (f Filter) WithIgnoreLines(lines ...string) Filter {
	if len(lines) > 0 {
		f.Ignore = ignore.CompileIgnoreLines(lines...)
	}
	return f
}

// WithIgnoreFile compiles a gitignore-style file into the filter.
func (f Filter) WithIgnoreFile(path string) (Filter, error) {
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return f, errors.Wrapf(err, "reading ignore file %s", path)
	}
	f.Ignore = gi
	return f, nil
}

// IgnorePath is the path a type is matched under: namespace segments as
// directories, then the type name.
func IgnorePath(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return strings.ReplaceAll(namespace, ".", "/") + "/" + name
}

// Eligible reports whether a type of kind in namespace passes the filter.
func (f Filter) Eligible(kind metadata.Kind, namespace, name string) bool {
	if f.Ignore != nil && f.Ignore.MatchesPath(IgnorePath(namespace, name)) {
		return false
	}
	if kind == metadata.KindClass {
		if f.ExcludeClasses == "" {
			return true
		}
		return namespace != f.ExcludeClasses && !strings.HasPrefix(namespace, f.ExcludeClasses+".")
	}
	return strings.HasPrefix(namespace, f.Include)
}

var accessorPrefixes = []string{"get_", "set_", "add_", "remove_"}

// IsAccessor reports whether name is a compiler-generated property or event
// accessor.
func IsAccessor(name string) bool {
	for _, prefix := range accessorPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
