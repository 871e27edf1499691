// Package typeref holds the neutral type reference shared by the metadata
// providers, the surface model and the renderers.
package typeref

import (
	"strconv"
	"strings"
)

// Shape says how a TypeRef is built.
type Shape int

const (
	Named Shape = iota
	GenericParam
	Array
	Pointer
	ByRef
)

// Owner says which declaration a generic parameter belongs to.
type Owner int

const (
	OwnerType Owner = iota
	OwnerMethod
)

// TypeRef is a reference to a type as it appears in a signature.
type TypeRef struct {
	Shape     Shape
	Namespace string
	// Name is the metadata name. Generic definitions keep their arity
	// suffix ("List`1"); generic parameters use their declared name.
	Name string
	Args []TypeRef
	Elem *TypeRef
	Rank int
	// Position and Owner identify a generic parameter.
	Position int
	Owner    Owner
	// Public reports the visibility of the referenced definition.
	Public bool
}

// Of returns a public, non-generic named reference.
func Of(namespace, name string, args ...TypeRef) TypeRef {
	return TypeRef{Shape: Named, Namespace: namespace, Name: name, Args: args, Public: true}
}

// Param returns a reference to generic parameter position of a type or method.
func Param(owner Owner, position int, name string) TypeRef {
	return TypeRef{Shape: GenericParam, Owner: owner, Position: position, Name: name, Public: true}
}

// ArrayOf wraps elem into an array of the given rank.
func ArrayOf(elem TypeRef, rank int) TypeRef {
	if rank < 1 {
		rank = 1
	}
	return TypeRef{Shape: Array, Elem: &elem, Rank: rank, Public: true}
}

// PointerTo wraps elem into an unmanaged pointer.
func PointerTo(elem TypeRef) TypeRef {
	return TypeRef{Shape: Pointer, Elem: &elem, Public: true}
}

// ByRefTo wraps elem into a managed reference.
func ByRefTo(elem TypeRef) TypeRef {
	return TypeRef{Shape: ByRef, Elem: &elem, Public: true}
}

var (
	Object    = Of("System", "Object")
	ValueType = Of("System", "ValueType")
	Void      = Of("System", "Void")
)

// FullName is Namespace.Name, or Name when there is no namespace.
func (t TypeRef) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// BaseName is Name without its arity suffix.
func (t TypeRef) BaseName() string {
	if i := strings.LastIndexByte(t.Name, '`'); i >= 0 {
		return t.Name[:i]
	}
	return t.Name
}

// IsObject reports whether t is System.Object.
func (t TypeRef) IsObject() bool {
	return t.Shape == Named && t.Namespace == "System" && t.Name == "Object"
}

// IsValueTypeRoot reports whether t is System.ValueType.
func (t TypeRef) IsValueTypeRoot() bool {
	return t.Shape == Named && t.Namespace == "System" && t.Name == "ValueType"
}

// IsNullable reports whether t is System.Nullable`1 with its argument.
func (t TypeRef) IsNullable() bool {
	return t.Shape == Named && t.Namespace == "System" && t.Name == "Nullable`1" && len(t.Args) == 1
}

// IsGeneric reports whether t carries generic arguments.
func (t TypeRef) IsGeneric() bool {
	return t.Shape == Named && len(t.Args) > 0
}

// Key is a stable identity string. Two references with the same Key denote
// the same type; visibility does not take part.
func (t TypeRef) Key() string {
	var sb strings.Builder
	t.writeKey(&sb)
	return sb.String()
}

func (t TypeRef) writeKey(sb *strings.Builder) {
	switch t.Shape {
	case GenericParam:
		if t.Owner == OwnerMethod {
			sb.WriteString("!!")
		} else {
			sb.WriteString("!")
		}
		sb.WriteString(strconv.Itoa(t.Position))
	case Array:
		t.Elem.writeKey(sb)
		sb.WriteByte('[')
		sb.WriteString(strings.Repeat(",", t.Rank-1))
		sb.WriteByte(']')
	case Pointer:
		t.Elem.writeKey(sb)
		sb.WriteByte('*')
	case ByRef:
		t.Elem.writeKey(sb)
		sb.WriteByte('&')
	default:
		sb.WriteString(t.FullName())
		if len(t.Args) > 0 {
			sb.WriteByte('[')
			for i, arg := range t.Args {
				if i > 0 {
					sb.WriteByte(',')
				}
				arg.writeKey(sb)
			}
			sb.WriteByte(']')
		}
	}
}

// String renders t in the CLR type-name syntax accepted by Parse.
func (t TypeRef) String() string {
	switch t.Shape {
	case GenericParam:
		return "!" + t.Name
	case Array:
		return t.Elem.String() + "[" + strings.Repeat(",", t.Rank-1) + "]"
	case Pointer:
		return t.Elem.String() + "*"
	case ByRef:
		return t.Elem.String() + "&"
	}
	if len(t.Args) == 0 {
		return t.FullName()
	}
	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.String()
	}
	return t.FullName() + "[" + strings.Join(args, ",") + "]"
}

// Substitute replaces generic parameters with the given arguments. A
// parameter without a matching argument is left as is.
func (t TypeRef) Substitute(typeArgs, methodArgs []TypeRef) TypeRef {
	switch t.Shape {
	case GenericParam:
		args := typeArgs
		if t.Owner == OwnerMethod {
			args = methodArgs
		}
		if t.Position >= 0 && t.Position < len(args) {
			return args[t.Position]
		}
		return t
	case Array, Pointer, ByRef:
		elem := t.Elem.Substitute(typeArgs, methodArgs)
		t.Elem = &elem
		return t
	}
	if len(t.Args) == 0 {
		return t
	}
	args := make([]TypeRef, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.Substitute(typeArgs, methodArgs)
	}
	t.Args = args
	return t
}

// Set is an ordered set of references keyed by Key.
type Set struct {
	items []TypeRef
	seen  map[string]struct{}
}

// Add appends ref unless an equal reference is already present.
func (s *Set) Add(ref TypeRef) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	key := ref.Key()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, ref)
	return true
}

// Has reports whether an equal reference is present.
func (s *Set) Has(ref TypeRef) bool {
	_, ok := s.seen[ref.Key()]
	return ok
}

// Items returns the references in insertion order.
func (s *Set) Items() []TypeRef {
	return s.items
}

// Len returns the number of references.
func (s *Set) Len() int {
	return len(s.items)
}

// Except returns the references of from that are not in minus, keeping the
// order of from.
func Except(from, minus []TypeRef) []TypeRef {
	var exclude Set
	for _, ref := range minus {
		exclude.Add(ref)
	}
	var result []TypeRef
	for _, ref := range from {
		if !exclude.Has(ref) {
			result = append(result, ref)
		}
	}
	return result
}
