package metadata

import (
	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

var (
	// ErrUnresolved marks a reference whose definition cannot be found.
	ErrUnresolved = errors.New("unresolved type reference")
	// ErrUnsupportedSignature marks a signature blob pclgen cannot decode.
	ErrUnsupportedSignature = errors.New("unsupported signature")
)

// Kind classifies an exported type.
type Kind int

const (
	KindClass Kind = iota
	KindInterface
	KindStruct
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	default:
		return "class"
	}
}

// Provider exposes the exported types of one library.
type Provider interface {
	// ExportedTypes returns the public types in metadata order.
	ExportedTypes() ([]Type, error)
	// Resolve finds the definition of ref. It returns an error wrapping
	// ErrUnresolved when the definition is not available.
	Resolve(ref typeref.TypeRef) (Type, error)
	Close() error
}

// Type is one type definition seen through a Provider.
type Type interface {
	// Ref is the type itself, with its generic parameters as arguments.
	Ref() typeref.TypeRef
	Kind() Kind
	Public() bool
	// BaseType returns nil when the type has no base type.
	BaseType() (*typeref.TypeRef, error)
	// Interfaces returns every implemented interface, including the ones
	// inherited through base types and other interfaces.
	Interfaces() ([]typeref.TypeRef, error)
	Properties() ([]Property, error)
	Methods() ([]Method, error)
	Constructors() ([]Method, error)
	EnumNames() ([]string, error)
}

// Method is a public method or constructor.
type Method struct {
	Name          string
	DeclaringType typeref.TypeRef
	Return        typeref.TypeRef
	Static        bool
	SpecialName   bool
	GenericArgs   []typeref.TypeRef
	Params        []Parameter
}

// Property is a public property. CanRead and CanWrite reflect public
// accessors.
type Property struct {
	Name          string
	DeclaringType typeref.TypeRef
	Type          typeref.TypeRef
	CanRead       bool
	CanWrite      bool
	Static        bool
	Params        []Parameter
}

// Parameter is one formal parameter. Default is meaningful only when
// HasDefault is set; a nil Default is the null constant.
type Parameter struct {
	Name       string
	Type       typeref.TypeRef
	Out        bool
	HasDefault bool
	Default    any
}

// IsByRef reports whether the parameter is passed by reference.
func (p Parameter) IsByRef() bool {
	return p.Type.Shape == typeref.ByRef
}
