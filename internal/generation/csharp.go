package generation

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dellis1972/pcl-gen/internal/surface"
	"github.com/dellis1972/pcl-gen/internal/typename"
)

// notImplemented is the body of every generated method and constructor.
const notImplemented = "throw new NotImplementedException();"

// CSharpGenerator renders C# stub declarations.
type CSharpGenerator struct {
	Preamble []string
}

var _ Generator = (*CSharpGenerator)(nil)

// lineWriter keeps the first write error so rendering code can stay linear.
type lineWriter struct {
	w   io.Writer
	err error
}

func (lw *lineWriter) line(indent int, format string, args ...any) {
	if lw.err != nil {
		return
	}
	text := format
	if len(args) > 0 {
		text = fmt.Sprintf(format, args...)
	}
	if text == "" {
		_, lw.err = io.WriteString(lw.w, "\n")
		return
	}
	_, lw.err = io.WriteString(lw.w, strings.Repeat("\t", indent)+text+"\n")
}

// Generate writes the preamble, then enums, interfaces, structs and classes
// in that order.
func (g *CSharpGenerator) Generate(w io.Writer, s *surface.Surface) error {
	lw := &lineWriter{w: w}

	for _, namespace := range g.Preamble {
		lw.line(0, "using %s;", namespace)
	}
	lw.line(0, "")

	for _, e := range s.Enums {
		g.enum(lw, e)
	}
	for _, group := range [][]*surface.AggregateDefinition{s.Interfaces, s.Structs, s.Classes} {
		for _, def := range group {
			g.aggregate(lw, def)
		}
	}
	return lw.err
}

func openNamespace(lw *lineWriter, namespace string) {
	if namespace != "" {
		lw.line(0, "namespace %s {", namespace)
	}
}

func closeNamespace(lw *lineWriter, namespace string) {
	if namespace != "" {
		lw.line(0, "}")
	}
	lw.line(0, "")
}

func (g *CSharpGenerator) enum(lw *lineWriter, e *surface.EnumDefinition) {
	openNamespace(lw, e.Namespace)
	lw.line(1, "public enum %s {", e.Name)
	for i, name := range e.Enumerants {
		if i < len(e.Enumerants)-1 {
			lw.line(2, "%s,", name)
		} else {
			lw.line(2, "%s", name)
		}
	}
	lw.line(1, "}")
	closeNamespace(lw, e.Namespace)
}

func (g *CSharpGenerator) aggregate(lw *lineWriter, def *surface.AggregateDefinition) {
	openNamespace(lw, def.Namespace)
	lw.line(1, "public %s %s {", def.Kind, header(def))

	inInterface := def.Kind == surface.Interface
	for _, p := range def.Properties {
		lw.line(0, "")
		lw.line(2, "%s", property(p, inInterface))
	}
	if def.Kind == surface.Class {
		name := typename.Simple(def.Self)
		for _, params := range def.Constructors {
			lw.line(0, "")
			lw.line(2, "public %s(%s) {", name, parameterList(params))
			lw.line(3, notImplemented)
			lw.line(2, "}")
		}
	}
	for _, m := range def.Methods {
		lw.line(0, "")
		lw.line(2, "%s {", methodSignature(m))
		lw.line(3, notImplemented)
		lw.line(2, "}")
	}

	lw.line(1, "}")
	closeNamespace(lw, def.Namespace)
}

// header is the declared name with its inheritance clause. The clause is
// present only when the base renders or there are interfaces.
func header(def *surface.AggregateDefinition) string {
	var inherits []string
	if def.Base != nil {
		if base := typename.Format(*def.Base, false); base != "" {
			inherits = append(inherits, base)
		}
	}
	for _, iface := range def.Interfaces {
		inherits = append(inherits, typename.Format(iface, true))
	}

	name := typename.Declaration(def.Self)
	if len(inherits) == 0 {
		return name
	}
	return name + " : " + strings.Join(inherits, ", ")
}

func property(p surface.Property, inInterface bool) string {
	var sb strings.Builder
	if !inInterface {
		sb.WriteString("public ")
	}
	if p.Static {
		sb.WriteString("static ")
	}
	sb.WriteString(typename.Format(p.Type, true))
	sb.WriteByte(' ')
	if len(p.Params) > 0 {
		sb.WriteString("this[" + parameterList(p.Params) + "]")
	} else {
		sb.WriteString(identifier(p.Name))
	}
	sb.WriteString(" {")
	if p.Readable {
		sb.WriteString(" get;")
	}
	if p.Writable {
		sb.WriteString(" set;")
	}
	sb.WriteString(" }")
	return sb.String()
}

func methodSignature(m surface.Method) string {
	var sb strings.Builder
	sb.WriteString("public ")
	if m.Static {
		sb.WriteString("static ")
	}
	sb.WriteString(typename.Format(m.Return, true))
	sb.WriteByte(' ')

	if m.Operator.IsOperator() {
		sb.WriteString("operator ")
		sb.WriteString(m.Operator.Token())
	} else {
		sb.WriteString(m.Name)
	}

	if m.Generic {
		args := make([]string, len(m.GenericArgs))
		for i, arg := range m.GenericArgs {
			args[i] = typename.Format(arg, true)
		}
		sb.WriteString("<" + strings.Join(args, ",") + ">")
	}

	sb.WriteString("(" + parameterList(m.Params) + ")")
	return sb.String()
}

func parameterList(params []surface.Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = parameter(p)
	}
	return strings.Join(parts, ", ")
}

func parameter(p surface.Parameter) string {
	var sb strings.Builder
	switch p.Pass {
	case surface.Ref:
		sb.WriteString("ref ")
	case surface.Out:
		sb.WriteString("out ")
	}
	sb.WriteString(typename.Format(p.Type, true))
	sb.WriteByte(' ')
	sb.WriteString(identifier(p.Name))
	if p.Default != nil && p.Pass == surface.ByValue {
		sb.WriteString(" = ")
		sb.WriteString(literal(p.Default.Value))
	}
	return sb.String()
}

var csharpKeywords = map[string]bool{
	"abstract": true, "as": true, "base": true, "bool": true, "break": true,
	"byte": true, "case": true, "catch": true, "char": true, "checked": true,
	"class": true, "const": true, "continue": true, "decimal": true, "default": true,
	"delegate": true, "do": true, "double": true, "else": true, "enum": true,
	"event": true, "explicit": true, "extern": true, "false": true, "finally": true,
	"fixed": true, "float": true, "for": true, "foreach": true, "goto": true,
	"if": true, "implicit": true, "in": true, "int": true, "interface": true,
	"internal": true, "is": true, "lock": true, "long": true, "namespace": true,
	"new": true, "null": true, "object": true, "operator": true, "out": true,
	"override": true, "params": true, "private": true, "protected": true, "public": true,
	"readonly": true, "ref": true, "return": true, "sbyte": true, "sealed": true,
	"short": true, "sizeof": true, "stackalloc": true, "static": true, "string": true,
	"struct": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "uint": true, "ulong": true, "unchecked": true,
	"unsafe": true, "ushort": true, "using": true, "virtual": true, "void": true,
	"volatile": true, "while": true,
}

// identifier escapes C# keywords used as names.
func identifier(name string) string {
	if csharpKeywords[name] {
		return "@" + name
	}
	return name
}

// literal renders a default value. nil is the null constant.
func literal(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case string:
		return quote(v, '"')
	case surface.Char:
		return quote(string(rune(v)), '\'')
	case float32:
		return floatLiteral(float64(v), 32, "float", "f")
	case float64:
		return floatLiteral(v, 64, "double", "")
	}
	return fmt.Sprint(value)
}

func floatLiteral(v float64, bits int, keyword, suffix string) string {
	switch {
	case math.IsNaN(v):
		return keyword + ".NaN"
	case math.IsInf(v, 1):
		return keyword + ".PositiveInfinity"
	case math.IsInf(v, -1):
		return keyword + ".NegativeInfinity"
	}
	return strconv.FormatFloat(v, 'g', -1, bits) + suffix
}

func quote(s string, delimiter rune) string {
	var sb strings.Builder
	sb.WriteRune(delimiter)
	for _, r := range s {
		switch {
		case r == delimiter || r == '\\':
			sb.WriteRune('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == 0:
			sb.WriteString(`\0`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\u%04x`, r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteRune(delimiter)
	return sb.String()
}
