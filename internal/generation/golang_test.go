package generation

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dellis1972/pcl-gen/internal/surface"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

func renderGo(t *testing.T, s *surface.Surface) (string, *ast.File) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, (&GoGenerator{PackageName: "stubs"}).Generate(&buf, s))

	file, err := parser.ParseFile(token.NewFileSet(), "stubs.go", buf.Bytes(), parser.ParseComments)
	require.NoError(t, err, buf.String())
	return buf.String(), file
}

func declaredNames(file *ast.File) []string {
	var names []string
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			names = append(names, d.Name.Name)
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					names = append(names, s.Name.Name)
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names = append(names, n.Name)
					}
				}
			}
		}
	}
	return names
}

func TestRenderedGoParses(t *testing.T) {
	out, file := renderGo(t, sampleSurface())

	assert.Equal(t, "stubs", file.Name.Name)
	assert.Contains(t, out, "Code generated by pclgen. DO NOT EDIT.")
	assert.Contains(t, out, `panic("not implemented")`)

	names := declaredNames(file)
	for _, want := range []string{
		"Color", "ColorRed", "ColorGreen",
		"IShape",
		"Vector2", "Vector2OpAdd", "Vector2OpNegate", "GetX", "SetX",
		"Container", "NewContainer", "NewContainer2", "Find", "Describe", "ContainerGetCount", "ContainerImplicit",
	} {
		assert.Contains(t, names, want)
	}
}

func TestGoInterfaceMethods(t *testing.T) {
	_, file := renderGo(t, sampleSurface())

	var shape *ast.InterfaceType
	ast.Inspect(file, func(n ast.Node) bool {
		if spec, ok := n.(*ast.TypeSpec); ok && spec.Name.Name == "IShape" {
			shape, _ = spec.Type.(*ast.InterfaceType)
		}
		return shape == nil
	})
	require.NotNil(t, shape)

	var methods []string
	for _, field := range shape.Methods.List {
		for _, name := range field.Names {
			methods = append(methods, name.Name)
		}
	}
	assert.Equal(t, []string{"GetArea", "Scale"}, methods)
}

func TestGoOverloadsAndKeywords(t *testing.T) {
	s := surface.New()
	i32 := typeref.Of("System", "Int32")
	s.Add(&surface.AggregateDefinition{
		TypeDefinition: surface.TypeDefinition{Namespace: "Foo", Name: "Widget"},
		Kind:           surface.Class,
		Self:           typeref.Of("Foo", "Widget"),
		Methods: []surface.Method{
			{Name: "Draw", Return: typeref.Void},
			{Name: "Draw", Return: typeref.Void, Params: []surface.Parameter{{Type: i32, Name: "type"}}},
			{Name: "Draw", Return: i32, Params: []surface.Parameter{{Type: typeref.ByRefTo(i32), Name: "range", Pass: surface.Out}}},
		},
	})

	out, file := renderGo(t, s)
	names := declaredNames(file)
	assert.Contains(t, names, "Draw")
	assert.Contains(t, names, "Draw2")
	assert.Contains(t, names, "Draw3")
	assert.Contains(t, out, "type_ int32")
	assert.Contains(t, out, "range_ *int32")
}

func TestGoIdentifiers(t *testing.T) {
	assert.Equal(t, "List", goIdentifier("List`1"))
	assert.Equal(t, "func_", goIdentifier("func"))
	assert.Equal(t, "_2D", goIdentifier("2D"))
	assert.Equal(t, "_", goIdentifier("<>"))
	assert.Equal(t, "Name", exported("name"))
	assert.Equal(t, "X_hidden", exported("_hidden"))
}

func TestGoEmbedsKnownBase(t *testing.T) {
	s := surface.New()
	base := typeref.Of("Foo", "Shape")
	external := typeref.Of("Elsewhere", "Thing")
	s.Add(&surface.AggregateDefinition{TypeDefinition: surface.TypeDefinition{Namespace: "Foo", Name: "Shape"}, Kind: surface.Class, Self: base})
	s.Add(&surface.AggregateDefinition{TypeDefinition: surface.TypeDefinition{Namespace: "Foo", Name: "Circle"}, Kind: surface.Class, Self: typeref.Of("Foo", "Circle"), Base: &base})
	s.Add(&surface.AggregateDefinition{TypeDefinition: surface.TypeDefinition{Namespace: "Foo", Name: "Other"}, Kind: surface.Class, Self: typeref.Of("Foo", "Other"), Base: &external})

	out, _ := renderGo(t, s)
	assert.Contains(t, out, "type Circle struct {\n\tShape\n}")
	assert.Contains(t, out, "type Other struct{}")
}

func TestGoGlobalNamespaceEnum(t *testing.T) {
	s := surface.New()
	s.Enum("", "Loose").Enumerants = []string{"First", "Second"}

	out, file := renderGo(t, s)
	assert.Contains(t, out, "type Loose int")
	assert.Contains(t, declaredNames(file), "LooseFirst")
}

func TestGoPackageLevelNamesStayUnique(t *testing.T) {
	s := surface.New()
	s.Enum("Foo", "A").Enumerants = []string{"BC"}
	s.Enum("Foo", "AB").Enumerants = []string{"C"}
	s.Add(&surface.AggregateDefinition{
		TypeDefinition: surface.TypeDefinition{Namespace: "Foo", Name: "Pool"},
		Kind:           surface.Class,
		Self:           typeref.Of("Foo", "Pool"),
		Constructors:   [][]surface.Parameter{nil},
		Methods: []surface.Method{
			{Name: "Size", Return: typeref.Void, Static: true},
		},
	})
	s.Add(&surface.AggregateDefinition{
		TypeDefinition: surface.TypeDefinition{Namespace: "Foo", Name: "PoolSize"},
		Kind:           surface.Class,
		Self:           typeref.Of("Foo", "PoolSize"),
	})
	s.Add(&surface.AggregateDefinition{
		TypeDefinition: surface.TypeDefinition{Namespace: "Foo", Name: "NewPool"},
		Kind:           surface.Class,
		Self:           typeref.Of("Foo", "NewPool"),
	})

	_, file := renderGo(t, s)
	names := declaredNames(file)
	for _, want := range []string{"ABC", "ABC2", "PoolSize", "PoolSize2", "NewPool", "NewPool2"} {
		assert.Contains(t, names, want)
	}
	seen := map[string]bool{}
	for _, name := range names {
		assert.False(t, seen[name], "%s declared twice", name)
		seen[name] = true
	}
}
