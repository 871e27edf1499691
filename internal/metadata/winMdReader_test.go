package metadata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dellis1972/pcl-gen/internal/surface"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

// Sample.Fixture.dll is built from testdata/fixture and references
// Sample.Fixture.Base.dll, which sits next to it.
var fixturePath = filepath.Join("testdata", "Sample.Fixture.dll")

func openFixture(t *testing.T) (*WinMdReader, map[string]Type) {
	t.Helper()
	reader, err := NewReader(fixturePath)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })

	types, err := reader.ExportedTypes()
	require.NoError(t, err)
	byName := make(map[string]Type, len(types))
	for _, typ := range types {
		byName[typ.Ref().Name] = typ
	}
	return reader, byName
}

func keys(refs []typeref.TypeRef) []string {
	var out []string
	for _, ref := range refs {
		out = append(out, ref.Key())
	}
	return out
}

func TestReaderExportedTypes(t *testing.T) {
	reader, err := NewReader(fixturePath)
	require.NoError(t, err)
	types, err := reader.ExportedTypes()
	require.NoError(t, err)

	var names []string
	for _, typ := range types {
		names = append(names, typ.Ref().FullName())
		assert.True(t, typ.Public(), typ.Ref().FullName())
	}
	assert.Equal(t, []string{
		"Sample.Fixture.Mode",
		"Sample.Fixture.IShape",
		"Sample.Fixture.ISolid",
		"Sample.Fixture.IStore`1",
		"Sample.Fixture.StoreBase`1",
		"Sample.Fixture.IntStore",
		"Sample.Fixture.Parameters",
		"Sample.Fixture.Outer",
		"Sample.Fixture.Vector2",
		"Sample.Fixture.Button",
		"Sample.Fixture.Inner",
	}, names, "internal, private nested and <Module> types are not exported")
}

func TestReaderKinds(t *testing.T) {
	_, types := openFixture(t)

	tests := []struct {
		name string
		kind Kind
	}{
		{"Mode", KindEnum},
		{"IShape", KindInterface},
		{"ISolid", KindInterface},
		{"IStore`1", KindInterface},
		{"StoreBase`1", KindClass},
		{"IntStore", KindClass},
		{"Parameters", KindClass},
		{"Vector2", KindStruct},
		{"Button", KindClass},
		{"Inner", KindClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Contains(t, types, tt.name)
			assert.Equal(t, tt.kind, types[tt.name].Kind())
		})
	}
}

func TestReaderEnumNames(t *testing.T) {
	_, types := openFixture(t)

	names, err := types["Mode"].EnumNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Off", "On", "Auto"}, names, "value__ is not an enumerant")
}

func TestReaderBaseTypes(t *testing.T) {
	_, types := openFixture(t)

	tests := []struct {
		name string
		base string
	}{
		{"Parameters", "System.Object"},
		{"IntStore", "Sample.Fixture.StoreBase`1[System.Int32]"},
		{"Vector2", "System.ValueType"},
		{"Button", "Sample.Fixture.Base.Widget"},
		{"ISolid", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, err := types[tt.name].BaseType()
			require.NoError(t, err)
			if tt.base == "" {
				assert.Nil(t, base)
				return
			}
			require.NotNil(t, base)
			assert.Equal(t, tt.base, base.Key())
		})
	}
}

func TestReaderNestedType(t *testing.T) {
	_, types := openFixture(t)

	inner := types["Inner"]
	require.NotNil(t, inner)
	assert.Equal(t, "Sample.Fixture", inner.Ref().Namespace)
	assert.True(t, inner.Public())

	methods, err := inner.Methods()
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "Run", methods[0].Name)
}

func TestReaderInterfaces(t *testing.T) {
	_, types := openFixture(t)

	tests := []struct {
		name string
		want []string
	}{
		{"ISolid", []string{"Sample.Fixture.IShape"}},
		{"StoreBase`1", []string{"Sample.Fixture.IStore`1[!0]"}},
		{"IntStore", []string{"Sample.Fixture.ISolid", "Sample.Fixture.IShape", "Sample.Fixture.IStore`1[System.Int32]"}},
		{"Vector2", []string{"System.IEquatable`1[Sample.Fixture.Vector2]"}},
		// Widget and its IWidget come from the sibling Sample.Fixture.Base.dll.
		{"Button", []string{"System.IDisposable", "Sample.Fixture.Base.IWidget"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ifaces, err := types[tt.name].Interfaces()
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, keys(ifaces))
		})
	}
}

func TestReaderResolvesSiblingAssembly(t *testing.T) {
	reader, _ := openFixture(t)

	widget, err := reader.Resolve(typeref.Of("Sample.Fixture.Base", "Widget"))
	require.NoError(t, err)
	assert.Equal(t, KindClass, widget.Kind())

	_, err = reader.Resolve(typeref.Of("System", "IDisposable"))
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestReaderConstructors(t *testing.T) {
	_, types := openFixture(t)

	ctors, err := types["Parameters"].Constructors()
	require.NoError(t, err)
	require.Len(t, ctors, 2)
	assert.Empty(t, ctors[0].Params)

	require.Len(t, ctors[1].Params, 1)
	capacity := ctors[1].Params[0]
	assert.Equal(t, "capacity", capacity.Name)
	assert.True(t, capacity.HasDefault)
	assert.Equal(t, int32(16), capacity.Default)
}

func TestReaderMethods(t *testing.T) {
	_, types := openFixture(t)

	methods, err := types["Parameters"].Methods()
	require.NoError(t, err)
	var names []string
	byName := map[string]Method{}
	for _, m := range methods {
		names = append(names, m.Name)
		if _, seen := byName[m.Name]; !seen {
			byName[m.Name] = m
		}
	}
	assert.Equal(t, []string{"TryFind", "First", "op_Addition", "get_Item", "set_Item", "get_Item", "get_Count", "set_Hidden"}, names,
		"private and internal methods are left out")

	tryFind := byName["TryFind"]
	assert.Equal(t, "System.Boolean", tryFind.Return.Key())
	tests := []struct {
		name       string
		typ        string
		out        bool
		hasDefault bool
		def        any
	}{
		{"key", "System.String", false, false, nil},
		{"value", "System.Int32&", true, false, nil},
		{"scale", "System.Double&", false, false, nil},
		{"format", "System.String", false, true, nil},
		{"separator", "System.Char", false, true, surface.Char(',')},
		{"factor", "System.Single", false, true, float32(0.5)},
	}
	require.Len(t, tryFind.Params, len(tests))
	for i, tt := range tests {
		p := tryFind.Params[i]
		assert.Equal(t, tt.name, p.Name)
		assert.Equal(t, tt.typ, p.Type.Key(), p.Name)
		assert.Equal(t, tt.out, p.Out, p.Name)
		assert.Equal(t, tt.out || tt.name == "scale", p.IsByRef(), p.Name)
		assert.Equal(t, tt.hasDefault, p.HasDefault, p.Name)
		assert.Equal(t, tt.def, p.Default, p.Name)
	}

	first := byName["First"]
	require.Len(t, first.GenericArgs, 1)
	assert.Equal(t, "T", first.GenericArgs[0].Name)
	assert.Equal(t, "!!0", first.Return.Key())
	require.Len(t, first.Params, 1)
	assert.Equal(t, "!!0[]", first.Params[0].Type.Key())

	add := byName["op_Addition"]
	assert.True(t, add.Static)
	assert.True(t, add.SpecialName)
}

func TestReaderProperties(t *testing.T) {
	_, types := openFixture(t)

	props, err := types["Parameters"].Properties()
	require.NoError(t, err)
	require.Len(t, props, 4)

	intIndexer := props[0]
	assert.Equal(t, "Item", intIndexer.Name)
	assert.Equal(t, "System.Int32", intIndexer.Type.Key())
	assert.True(t, intIndexer.CanRead)
	assert.True(t, intIndexer.CanWrite)
	require.Len(t, intIndexer.Params, 1)
	assert.Equal(t, "index", intIndexer.Params[0].Name)
	assert.Equal(t, "System.Int32", intIndexer.Params[0].Type.Key())

	stringIndexer := props[1]
	assert.Equal(t, "Item", stringIndexer.Name)
	assert.Equal(t, "System.String", stringIndexer.Type.Key())
	assert.True(t, stringIndexer.CanRead)
	assert.False(t, stringIndexer.CanWrite, "the setter belongs to the Int32 indexer")
	require.Len(t, stringIndexer.Params, 1)
	assert.Equal(t, "name", stringIndexer.Params[0].Name)
	assert.Equal(t, "System.String", stringIndexer.Params[0].Type.Key())

	count := props[2]
	assert.Equal(t, "Count", count.Name)
	assert.True(t, count.Static)
	assert.True(t, count.CanRead)
	assert.False(t, count.CanWrite)

	hidden := props[3]
	assert.Equal(t, "Hidden", hidden.Name)
	assert.False(t, hidden.CanRead, "the getter is private")
	assert.True(t, hidden.CanWrite)
	assert.Empty(t, hidden.Params)
}

func TestReaderInterfaceProperties(t *testing.T) {
	_, types := openFixture(t)

	props, err := types["IShape"].Properties()
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "Area", props[0].Name)
	assert.Equal(t, "System.Single", props[0].Type.Key())
	assert.True(t, props[0].CanRead)
	assert.False(t, props[0].CanWrite)
}

func TestMatchAccessors(t *testing.T) {
	i32 := typeref.Of("System", "Int32")
	str := typeref.Of("System", "String")
	getters := []Method{
		{Name: "get_Item", Return: i32, Params: []Parameter{{Name: "index", Type: i32}}},
		{Name: "get_Item", Return: str, Params: []Parameter{{Name: "key", Type: str}}},
	}
	setters := []Method{
		{Name: "set_Item", Return: typeref.Void, Params: []Parameter{{Name: "key", Type: str}, {Name: "value", Type: str}}},
	}

	getter, setter := matchAccessors(propertySig{HasThis: true, Type: str, Params: []typeref.TypeRef{str}}, getters, setters)
	require.NotNil(t, getter)
	require.NotNil(t, setter)
	assert.Equal(t, "key", getter.Params[0].Name)
	assert.Equal(t, "key", setter.Params[0].Name)

	getter, setter = matchAccessors(propertySig{HasThis: true, Type: i32, Params: []typeref.TypeRef{i32}}, getters, setters)
	require.NotNil(t, getter)
	assert.Equal(t, "index", getter.Params[0].Name)
	assert.Nil(t, setter)

	getter, setter = matchAccessors(propertySig{HasThis: false, Type: i32, Params: []typeref.TypeRef{i32}}, getters, setters)
	assert.Nil(t, getter, "static property does not take instance accessors")
	assert.Nil(t, setter)
}

func TestReaderMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.dll"))
	require.Error(t, err)
}
