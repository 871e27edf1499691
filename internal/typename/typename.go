// Package typename renders type references in C# declaration syntax.
package typename

import (
	"strings"

	"github.com/dellis1972/pcl-gen/internal/typeref"
)

// The map of metadata primitive names to their C# keywords
var primitiveAliases = map[string]string{
	"Void":    "void",
	"Boolean": "bool",
	"Int32":   "int",
	"Single":  "float",
	"Double":  "double",
}

// Alias translates a metadata primitive name. Other names are returned
// trimmed and otherwise unchanged.
func Alias(name string) string {
	name = strings.TrimSpace(name)
	if alias, found := primitiveAliases[name]; found {
		return alias
	}
	return name
}

// Format renders ref. System.Object renders as "" unless allowObject is set,
// so callers can drop a redundant root base type while keeping object in
// parameter and return positions. System.ValueType always renders as "".
func Format(ref typeref.TypeRef, allowObject bool) string {
	var sb strings.Builder
	write(&sb, ref, allowObject)
	return sb.String()
}

func write(sb *strings.Builder, ref typeref.TypeRef, allowObject bool) {
	switch ref.Shape {
	case typeref.ByRef:
		// The ref/out qualifier belongs to the parameter, not the type.
		write(sb, *ref.Elem, allowObject)
		return
	case typeref.Array:
		write(sb, *ref.Elem, true)
		sb.WriteByte('[')
		sb.WriteString(strings.Repeat(",", ref.Rank-1))
		sb.WriteByte(']')
		return
	case typeref.Pointer:
		write(sb, *ref.Elem, true)
		sb.WriteByte('*')
		return
	case typeref.GenericParam:
		sb.WriteString(ref.Name)
		return
	}

	if ref.IsObject() && !allowObject {
		return
	}
	if ref.IsValueTypeRoot() {
		return
	}
	if ref.IsNullable() {
		sb.WriteString("Nullable<")
		write(sb, ref.Args[0], true)
		sb.WriteByte('>')
		return
	}
	if len(ref.Args) == 0 {
		sb.WriteString(Alias(strings.TrimSuffix(ref.Name, "&")))
		return
	}

	sb.WriteString(strings.TrimSpace(ref.BaseName()))
	sb.WriteByte('<')
	for i, arg := range ref.Args {
		if i > 0 {
			sb.WriteByte(',')
		}
		// Generic arguments are structural; object is never dropped here.
		write(sb, arg, true)
	}
	sb.WriteByte('>')
}

// Declaration renders the name of a declared type with its generic
// parameters, as used in type headers.
func Declaration(self typeref.TypeRef) string {
	return Format(self, true)
}

// Simple renders the declared name without generic parameters, as used
// for constructor names.
func Simple(self typeref.TypeRef) string {
	return self.BaseName()
}
