// Package surface is the neutral snapshot of a library's public types that
// drives rendering. It is built once by the catalog and read-only after.
package surface

import (
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

// TypeDefinition identifies a declared type.
type TypeDefinition struct {
	Namespace string
	Name      string
}

// EnumDefinition is an enum and its enumerant names in first-seen order.
type EnumDefinition struct {
	TypeDefinition
	Enumerants []string
}

// Merge appends the names not seen yet, keeping the existing order.
func (e *EnumDefinition) Merge(names []string) {
	seen := make(map[string]struct{}, len(e.Enumerants)+len(names))
	for _, name := range e.Enumerants {
		seen[name] = struct{}{}
	}
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		e.Enumerants = append(e.Enumerants, name)
	}
}

// AggregateKind is the declaration keyword of an aggregate.
type AggregateKind int

const (
	Interface AggregateKind = iota
	Struct
	Class
)

func (k AggregateKind) String() string {
	switch k {
	case Interface:
		return "interface"
	case Struct:
		return "struct"
	default:
		return "class"
	}
}

// AggregateDefinition is an interface, struct or class with the members
// declared directly on it.
type AggregateDefinition struct {
	TypeDefinition
	Kind AggregateKind
	// Self is the type itself, including its generic parameters.
	Self typeref.TypeRef
	// Base is nil when the type has no base type.
	Base         *typeref.TypeRef
	Interfaces   []typeref.TypeRef
	Properties   []Property
	Methods      []Method
	Constructors [][]Parameter
}

// Property is an auto-accessor declaration.
type Property struct {
	Type     typeref.TypeRef
	Name     string
	Readable bool
	Writable bool
	Static   bool
	// Params is non-empty for indexers.
	Params []Parameter
}

// Method is a method or operator declaration.
type Method struct {
	Name        string
	Return      typeref.TypeRef
	Static      bool
	Generic     bool
	GenericArgs []typeref.TypeRef
	Operator    Operator
	Params      []Parameter
}

// PassKind is how a parameter is passed.
type PassKind int

const (
	ByValue PassKind = iota
	Ref
	Out
)

// Parameter is one formal parameter.
type Parameter struct {
	Type    typeref.TypeRef
	Name    string
	Pass    PassKind
	Default *Default
}

// Default is a declared default value. A nil Value is the null sentinel.
type Default struct {
	Value any
}

// Char is a character constant. Integer constants of the same width use
// plain integer types.
type Char rune

// Surface is the whole snapshot, grouped by kind, in discovery order.
type Surface struct {
	Enums      []*EnumDefinition
	Interfaces []*AggregateDefinition
	Structs    []*AggregateDefinition
	Classes    []*AggregateDefinition

	enumIndex map[string]*EnumDefinition
}

// New returns an empty surface.
func New() *Surface {
	return &Surface{enumIndex: make(map[string]*EnumDefinition)}
}

// Enum returns the enum registered under name, creating it in namespace on
// first use. Later encounters keep the latest namespace.
func (s *Surface) Enum(namespace, name string) *EnumDefinition {
	if s.enumIndex == nil {
		s.enumIndex = make(map[string]*EnumDefinition)
	}
	def, found := s.enumIndex[name]
	if !found {
		def = &EnumDefinition{}
		s.enumIndex[name] = def
		s.Enums = append(s.Enums, def)
	}
	def.Namespace = namespace
	def.Name = name
	return def
}

// Add registers an aggregate under its kind.
func (s *Surface) Add(def *AggregateDefinition) {
	switch def.Kind {
	case Interface:
		s.Interfaces = append(s.Interfaces, def)
	case Struct:
		s.Structs = append(s.Structs, def)
	default:
		s.Classes = append(s.Classes, def)
	}
}

// Len returns the number of top-level entities.
func (s *Surface) Len() int {
	return len(s.Enums) + len(s.Interfaces) + len(s.Structs) + len(s.Classes)
}
