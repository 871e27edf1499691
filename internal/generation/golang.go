package generation

import (
	"go/token"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/surface"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

// GoGenerator renders the surface as a Go package of stubs: enums become
// typed constants, interfaces Go interfaces, structs and classes Go structs
// whose methods panic.
type GoGenerator struct {
	PackageName string
}

var _ Generator = (*GoGenerator)(nil)

// The map of System types to their Go counterparts
var builtInGoTypes = map[string]string{
	"Boolean": "bool",
	"Char":    "rune",
	"SByte":   "int8",
	"Byte":    "byte",
	"Int16":   "int16",
	"UInt16":  "uint16",
	"Int32":   "int32",
	"UInt32":  "uint32",
	"Int64":   "int64",
	"UInt64":  "uint64",
	"Single":  "float32",
	"Double":  "float64",
	"String":  "string",
	"Object":  "any",
	"IntPtr":  "uintptr",
	"UIntPtr": "uintptr",
	"Decimal": "float64",
}

// goNames assigns unique Go identifiers to surface types.
type goNames struct {
	types map[string]string
	used  map[string]bool
	// pointers marks struct types, which are passed by pointer.
	pointers map[string]bool
}

func newGoNames(s *surface.Surface) *goNames {
	names := &goNames{types: map[string]string{}, used: map[string]bool{}, pointers: map[string]bool{}}
	for _, e := range s.Enums {
		names.declare(typeref.Of(e.Namespace, e.Name).FullName(), e.Name)
	}
	for _, group := range [][]*surface.AggregateDefinition{s.Interfaces, s.Structs, s.Classes} {
		for _, def := range group {
			key := def.Self.FullName()
			names.declare(key, def.Name)
			if def.Kind != surface.Interface {
				names.pointers[key] = true
			}
		}
	}
	return names
}

func (n *goNames) declare(key, name string) {
	if _, dup := n.types[key]; dup {
		return
	}
	n.types[key] = n.unique(name)
}

// unique reserves a package-level identifier derived from name.
func (n *goNames) unique(name string) string {
	base := exported(name)
	id := base
	for i := 2; n.used[id]; i++ {
		id = base + strconv.Itoa(i)
	}
	n.used[id] = true
	return id
}

func (n *goNames) lookup(ref typeref.TypeRef) (string, bool) {
	name, found := n.types[ref.FullName()]
	return name, found
}

// goType maps a type reference to Go. Types outside the surface and
// generic parameters become any.
func (n *goNames) goType(ref typeref.TypeRef) jen.Code {
	switch ref.Shape {
	case typeref.GenericParam:
		return jen.Id("any")
	case typeref.ByRef, typeref.Pointer:
		return jen.Op("*").Add(n.goType(*ref.Elem))
	case typeref.Array:
		return jen.Index().Add(n.goType(*ref.Elem))
	}

	if ref.IsNullable() {
		return jen.Op("*").Add(n.goType(ref.Args[0]))
	}
	if ref.Namespace == "System" {
		if builtIn, found := builtInGoTypes[ref.Name]; found {
			return jen.Id(builtIn)
		}
	}
	if name, found := n.lookup(ref); found {
		if n.pointers[ref.FullName()] {
			return jen.Op("*").Id(name)
		}
		return jen.Id(name)
	}
	return jen.Id("any")
}

func (n *goNames) results(ret typeref.TypeRef) jen.Code {
	if ret.Shape == typeref.Named && ret.FullName() == "System.Void" {
		return jen.Null()
	}
	return n.goType(ret)
}

func (n *goNames) params(g *jen.Group, params []surface.Parameter) {
	seen := map[string]bool{}
	for i, p := range params {
		name := goIdentifier(p.Name)
		if name == "_" || seen[name] {
			name = "arg" + strconv.Itoa(i)
		}
		seen[name] = true
		paramType := n.goType(p.Type)
		if p.Pass != surface.ByValue && p.Type.Shape != typeref.ByRef {
			paramType = jen.Op("*").Add(paramType)
		}
		g.Id(name).Add(paramType)
	}
}

func panicBody() *jen.Statement {
	return jen.Block(jen.Panic(jen.Lit("not implemented")))
}

// Generate renders the whole surface as one Go file.
func (g *GoGenerator) Generate(w io.Writer, s *surface.Surface) error {
	names := newGoNames(s)
	file := jen.NewFile(g.PackageName)
	file.HeaderComment("Code generated by pclgen. DO NOT EDIT.")

	for _, e := range s.Enums {
		g.enum(file, names, e)
	}
	for _, def := range s.Interfaces {
		g.iface(file, names, def)
	}
	for _, group := range [][]*surface.AggregateDefinition{s.Structs, s.Classes} {
		for _, def := range group {
			g.structure(file, names, def)
		}
	}

	if err := file.Render(w); err != nil {
		return errors.Wrap(err, "rendering Go stubs")
	}
	return nil
}

func (g *GoGenerator) enum(file *jen.File, names *goNames, e *surface.EnumDefinition) {
	name, _ := names.lookup(typeref.Of(e.Namespace, e.Name))
	file.Commentf("%s mirrors %s.%s.", name, e.Namespace, e.Name)
	file.Type().Id(name).Int()
	if len(e.Enumerants) == 0 {
		return
	}
	file.Const().DefsFunc(func(group *jen.Group) {
		for i, enumerant := range e.Enumerants {
			constant := group.Id(names.unique(name + exported(enumerant)))
			if i == 0 {
				constant.Id(name).Op("=").Iota()
			}
		}
	})
}

func (g *GoGenerator) iface(file *jen.File, names *goNames, def *surface.AggregateDefinition) {
	name, _ := names.lookup(def.Self)
	methods := newMethodNames()

	file.Commentf("%s mirrors %s.", name, def.Self.FullName())
	file.Type().Id(name).InterfaceFunc(func(group *jen.Group) {
		for _, iface := range def.Interfaces {
			if embedded, found := names.lookup(iface); found && embedded != name {
				group.Id(embedded)
			}
		}
		for _, p := range def.Properties {
			if p.Readable {
				group.Id(methods.next("Get"+exported(p.Name))).ParamsFunc(func(g *jen.Group) {
					names.params(g, p.Params)
				}).Add(names.goType(p.Type))
			}
			if p.Writable {
				group.Id(methods.next("Set"+exported(p.Name))).ParamsFunc(func(g *jen.Group) {
					names.params(g, p.Params)
					g.Id("value").Add(names.goType(p.Type))
				})
			}
		}
		for _, m := range def.Methods {
			group.Id(methods.next(methodName(m))).ParamsFunc(func(g *jen.Group) {
				names.params(g, m.Params)
			}).Add(names.results(m.Return))
		}
	})
}

func (g *GoGenerator) structure(file *jen.File, names *goNames, def *surface.AggregateDefinition) {
	name, _ := names.lookup(def.Self)
	methods := newMethodNames()
	receiver := func() *jen.Statement {
		return jen.Params(jen.Id("r").Op("*").Id(name))
	}

	file.Commentf("%s mirrors %s.", name, def.Self.FullName())
	file.Type().Id(name).StructFunc(func(group *jen.Group) {
		if def.Base != nil {
			if base, found := names.lookup(*def.Base); found && base != name {
				group.Id(base)
			}
		}
	})

	for _, params := range def.Constructors {
		file.Func().Id(names.unique("New"+name)).ParamsFunc(func(g *jen.Group) {
			names.params(g, params)
		}).Op("*").Id(name).Add(panicBody())
	}

	for _, p := range def.Properties {
		if p.Readable {
			getter := file.Func()
			if !p.Static {
				getter.Add(receiver())
			}
			getterName := "Get" + exported(p.Name)
			if p.Static {
				getterName = names.unique(name + getterName)
			} else {
				getterName = methods.next(getterName)
			}
			getter.Id(getterName).ParamsFunc(func(g *jen.Group) {
				names.params(g, p.Params)
			}).Add(names.goType(p.Type)).Add(panicBody())
		}
		if p.Writable {
			setter := file.Func()
			if !p.Static {
				setter.Add(receiver())
			}
			setterName := "Set" + exported(p.Name)
			if p.Static {
				setterName = names.unique(name + setterName)
			} else {
				setterName = methods.next(setterName)
			}
			setter.Id(setterName).ParamsFunc(func(g *jen.Group) {
				names.params(g, p.Params)
				g.Id("value").Add(names.goType(p.Type))
			}).Add(panicBody())
		}
	}

	for _, m := range def.Methods {
		fn := file.Func()
		goName := methodName(m)
		if m.Static {
			goName = names.unique(name + goName)
		} else {
			fn.Add(receiver())
			goName = methods.next(goName)
		}
		fn.Id(goName).ParamsFunc(func(g *jen.Group) {
			names.params(g, m.Params)
		}).Add(names.results(m.Return)).Add(panicBody())
	}
}

var goOperatorNames = map[surface.OperatorKind]string{
	surface.Equality:    "Equal",
	surface.Inequality:  "NotEqual",
	surface.Multiply:    "Multiply",
	surface.Subtract:    "Subtract",
	surface.Add:         "Add",
	surface.Divide:      "Divide",
	surface.UnaryNegate: "Negate",
}

func methodName(m surface.Method) string {
	if name, found := goOperatorNames[m.Operator.Kind]; found {
		return "Op" + name
	}
	return exported(strings.TrimPrefix(m.Name, "op_"))
}

// methodNames hands out overload suffixes within one type.
type methodNames map[string]int

func newMethodNames() methodNames {
	return methodNames{}
}

func (m methodNames) next(name string) string {
	m[name]++
	if n := m[name]; n > 1 {
		return name + strconv.Itoa(n)
	}
	return name
}

// exported turns a metadata name into an exported Go identifier.
func exported(name string) string {
	name = goIdentifier(name)
	if name == "_" {
		return "X"
	}
	runes := []rune(name)
	if runes[0] == '_' {
		return "X" + name
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// goIdentifier drops characters Go identifiers cannot hold and escapes
// keywords.
func goIdentifier(name string) string {
	if i := strings.IndexByte(name, '`'); i >= 0 {
		name = name[:i]
	}
	var sb strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			sb.WriteRune(r)
		}
	}
	id := sb.String()
	switch {
	case id == "":
		return "_"
	case unicode.IsDigit([]rune(id)[0]):
		return "_" + id
	case token.IsKeyword(id):
		return id + "_"
	}
	return id
}
