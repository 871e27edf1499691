// Package generation renders a surface.Surface as stub source code.
package generation

import (
	"io"
	"strings"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/surface"
)

// ErrUnknownLanguage is returned for an output language without a renderer.
var ErrUnknownLanguage = errors.New("unknown output language")

// DefaultPreamble lists the namespaces imported at the top of C# output.
var DefaultPreamble = []string{
	"System",
	"System.IO",
	"System.Text",
	"System.Globalization",
	"System.Collections",
	"System.Collections.Generic",
	"System.Collections.ObjectModel",
	"Microsoft.Xna.Framework",
	"Microsoft.Xna.Framework.Input",
	"Microsoft.Xna.Framework.Content",
	"Microsoft.Xna.Framework.Graphics",
}

// DefaultPackageName is the package clause of Go output.
const DefaultPackageName = "stubs"

// Options configure a Generator.
type Options struct {
	// Preamble is the list of C# using directives.
	Preamble []string
	// PackageName is the Go package clause.
	PackageName string
}

// Generator renders a whole surface into w in one pass.
type Generator interface {
	Generate(w io.Writer, s *surface.Surface) error
}

// NewGenerator returns the generator for lang ("csharp" or "go").
func NewGenerator(lang string, options Options) (Generator, error) {
	switch strings.ToLower(lang) {
	case "", "csharp", "cs", "c#":
		preamble := options.Preamble
		if preamble == nil {
			preamble = DefaultPreamble
		}
		return &CSharpGenerator{Preamble: preamble}, nil
	case "go", "golang":
		name := options.PackageName
		if name == "" {
			name = DefaultPackageName
		}
		return &GoGenerator{PackageName: name}, nil
	}
	return nil, errors.WithHint(
		errors.Wrapf(ErrUnknownLanguage, "%q", lang),
		"supported languages are csharp and go")
}

// Languages lists the accepted language names.
func Languages() []string {
	return []string{"csharp", "go"}
}
