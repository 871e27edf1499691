package typeref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, ref TypeRef)
	}{
		{
			name:  "simple named",
			input: "System.Int32",
			check: func(t *testing.T, ref TypeRef) {
				assert.Equal(t, Named, ref.Shape)
				assert.Equal(t, "System", ref.Namespace)
				assert.Equal(t, "Int32", ref.Name)
				assert.Empty(t, ref.Args)
			},
		},
		{
			name:  "no namespace",
			input: "Vector2",
			check: func(t *testing.T, ref TypeRef) {
				assert.Equal(t, "", ref.Namespace)
				assert.Equal(t, "Vector2", ref.Name)
			},
		},
		{
			name:  "generic with two arguments",
			input: "System.Collections.Generic.Dictionary`2[System.String, System.Int32]",
			check: func(t *testing.T, ref TypeRef) {
				assert.Equal(t, "System.Collections.Generic", ref.Namespace)
				assert.Equal(t, "Dictionary`2", ref.Name)
				require.Len(t, ref.Args, 2)
				assert.Equal(t, "String", ref.Args[0].Name)
				assert.Equal(t, "Int32", ref.Args[1].Name)
			},
		},
		{
			name:  "nested generic",
			input: "System.Collections.Generic.List`1[System.Nullable`1[System.Single]]",
			check: func(t *testing.T, ref TypeRef) {
				require.Len(t, ref.Args, 1)
				assert.True(t, ref.Args[0].IsNullable())
				assert.Equal(t, "Single", ref.Args[0].Args[0].Name)
			},
		},
		{
			name:  "array of generic argument",
			input: "System.Collections.Generic.List`1[System.Int32[]]",
			check: func(t *testing.T, ref TypeRef) {
				require.Len(t, ref.Args, 1)
				assert.Equal(t, Array, ref.Args[0].Shape)
				assert.Equal(t, 1, ref.Args[0].Rank)
			},
		},
		{
			name:  "multi-dimensional array",
			input: "System.Single[,]",
			check: func(t *testing.T, ref TypeRef) {
				assert.Equal(t, Array, ref.Shape)
				assert.Equal(t, 2, ref.Rank)
				assert.Equal(t, "Single", ref.Elem.Name)
			},
		},
		{
			name:  "by-ref",
			input: "Microsoft.Xna.Framework.Vector2&",
			check: func(t *testing.T, ref TypeRef) {
				assert.Equal(t, ByRef, ref.Shape)
				assert.Equal(t, "Vector2", ref.Elem.Name)
			},
		},
		{
			name:  "pointer",
			input: "System.Byte*",
			check: func(t *testing.T, ref TypeRef) {
				assert.Equal(t, Pointer, ref.Shape)
			},
		},
		{
			name:  "generic parameter",
			input: "!T",
			check: func(t *testing.T, ref TypeRef) {
				assert.Equal(t, GenericParam, ref.Shape)
				assert.Equal(t, "T", ref.Name)
			},
		},
		{
			name:  "nested type",
			input: "Microsoft.Xna.Framework.Graphics.GraphicsDevice+Metrics",
			check: func(t *testing.T, ref TypeRef) {
				assert.Equal(t, "Microsoft.Xna.Framework.Graphics", ref.Namespace)
				assert.Equal(t, "Metrics", ref.Name)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := Parse(tt.input)
			require.NoError(t, err)
			tt.check(t, ref)
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "System.", "List`1[System.Int32", "System.Int32]"} {
		_, err := Parse(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, input := range []string{
		"System.Int32",
		"System.Collections.Generic.Dictionary`2[System.String,System.Int32[]]",
		"System.Single[,]&",
		"!T",
	} {
		assert.Equal(t, input, MustParse(input).String())
	}
}

func TestKeyIgnoresVisibility(t *testing.T) {
	a := Of("Foo", "IBar")
	b := a
	b.Public = false
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Of("Foo", "IBaz").Key())
}

func TestKeyDistinguishesGenericArguments(t *testing.T) {
	a := MustParse("System.IEquatable`1[System.Int32]")
	b := MustParse("System.IEquatable`1[System.Single]")
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestSubstitute(t *testing.T) {
	open := MustParse("System.Collections.Generic.IEnumerable`1[!T]").BindParams([]string{"T"}, nil)
	closed := open.Substitute([]TypeRef{Of("System", "Int32")}, nil)
	assert.Equal(t, "System.Collections.Generic.IEnumerable`1[System.Int32]", closed.String())
	// The original is left untouched.
	assert.Equal(t, GenericParam, open.Args[0].Shape)
}

func TestBindParamsMethodShadowsType(t *testing.T) {
	ref := MustParse("!T").BindParams([]string{"T"}, []string{"U", "T"})
	assert.Equal(t, OwnerMethod, ref.Owner)
	assert.Equal(t, 1, ref.Position)
}

func TestExceptKeepsOrder(t *testing.T) {
	foo := Of("N", "IFoo")
	bar := Of("N", "IBar")
	baz := Of("N", "IBaz")
	got := Except([]TypeRef{baz, foo, bar}, []TypeRef{foo})
	assert.Equal(t, []TypeRef{baz, bar}, got)
}

func TestSetDeduplicates(t *testing.T) {
	var s Set
	assert.True(t, s.Add(Of("N", "A")))
	assert.False(t, s.Add(Of("N", "A")))
	assert.True(t, s.Add(Of("N", "B")))
	assert.Equal(t, 2, s.Len())
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "List", Of("System.Collections.Generic", "List`1").BaseName())
	assert.Equal(t, "Vector2", Of("", "Vector2").BaseName())
}
