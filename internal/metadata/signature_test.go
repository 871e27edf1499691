package metadata

import (
	"encoding/binary"
	"math"
	"testing"
	"unicode/utf16"

	"github.com/microsoft/go-winmd/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/surface"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

type fakeSigContext struct {
	tokens map[uint32]typeref.TypeRef
}

func (f fakeSigContext) typeDefOrRef(tag uint32, row uint32) (typeref.TypeRef, error) {
	if ref, found := f.tokens[tag<<24|row]; found {
		return ref, nil
	}
	return typeref.TypeRef{}, errors.Wrapf(ErrUnresolved, "tag %d row %d", tag, row)
}

func (fakeSigContext) typeParamName(position int) string   { return []string{"T", "U"}[position] }
func (fakeSigContext) methodParamName(position int) string { return "M" }

// Rows below are 0-based; a signature token for row r is ((r+1)<<2)|tag.
var testContext = fakeSigContext{tokens: map[uint32]typeref.TypeRef{
	tagTypeRef<<24 | 0: typeref.Of("System.Collections.Generic", "List`1"),
	tagTypeRef<<24 | 1: typeref.Of("Foo", "Widget"),
	tagTypeDef<<24 | 3: typeref.Of("Foo", "Gadget"),
}}

const (
	tokenList   = 1<<2 | tagTypeRef
	tokenWidget = 2<<2 | tagTypeRef
	tokenGadget = 4<<2 | tagTypeDef
)

func TestCompressedIntegers(t *testing.T) {
	tests := []struct {
		blob []byte
		want uint32
	}{
		{[]byte{0x03}, 0x03},
		{[]byte{0x7F}, 0x7F},
		{[]byte{0x80, 0x80}, 0x80},
		{[]byte{0xAE, 0x57}, 0x2E57},
		{[]byte{0xBF, 0xFF}, 0x3FFF},
		{[]byte{0xC0, 0x00, 0x40, 0x00}, 0x4000},
		{[]byte{0xDF, 0xFF, 0xFF, 0xFF}, 0x1FFFFFFF},
	}
	for _, tt := range tests {
		got, err := newSigReader(tt.blob, testContext).compressed()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := newSigReader([]byte{0x80}, testContext).compressed()
	assert.ErrorIs(t, err, ErrUnsupportedSignature)
}

func TestDecodeMethodSig(t *testing.T) {
	// instance void (int32, string&, Foo.Widget[])
	blob := []byte{
		sigHasThis, 3,
		byte(flags.ElementType_VOID),
		byte(flags.ElementType_I4),
		byte(flags.ElementType_BYREF), byte(flags.ElementType_STRING),
		byte(flags.ElementType_SZARRAY), byte(flags.ElementType_CLASS), tokenWidget,
	}
	sig, err := decodeMethodSig(blob, testContext)
	require.NoError(t, err)

	assert.True(t, sig.HasThis)
	assert.Equal(t, 0, sig.GenericParams)
	assert.Equal(t, "System.Void", sig.Return.String())
	require.Len(t, sig.Params, 3)
	assert.Equal(t, "System.Int32", sig.Params[0].String())
	assert.Equal(t, "System.String&", sig.Params[1].String())
	assert.Equal(t, "Foo.Widget[]", sig.Params[2].String())
}

func TestDecodeGenericMethodSig(t *testing.T) {
	// static !!0 <1> (List`1<!0>, !!0)
	blob := []byte{
		sigGeneric, 1, 2,
		byte(flags.ElementType_MVAR), 0,
		byte(flags.ElementType_GENERICINST), byte(flags.ElementType_CLASS), tokenList, 1,
		byte(flags.ElementType_VAR), 0,
		byte(flags.ElementType_MVAR), 0,
	}
	sig, err := decodeMethodSig(blob, testContext)
	require.NoError(t, err)

	assert.False(t, sig.HasThis)
	assert.Equal(t, 1, sig.GenericParams)
	assert.Equal(t, typeref.Param(typeref.OwnerMethod, 0, "M"), sig.Return)
	require.Len(t, sig.Params, 2)
	assert.Equal(t, "System.Collections.Generic.List`1[!0]", sig.Params[0].Key())
	assert.Equal(t, "T", sig.Params[0].Args[0].Name)
	assert.Equal(t, "!!0", sig.Params[1].Key())
}

func TestDecodeSkipsModifiers(t *testing.T) {
	// modreq(Widget) int32*
	blob := []byte{
		byte(flags.ElementType_CMOD_REQD), tokenWidget,
		byte(flags.ElementType_PTR),
		byte(flags.ElementType_CMOD_OPT), tokenWidget,
		byte(flags.ElementType_I4),
	}
	ref, err := decodeTypeSpec(blob, testContext)
	require.NoError(t, err)
	assert.Equal(t, "System.Int32*", ref.String())
}

func TestDecodeMultiDimensionalArray(t *testing.T) {
	// Gadget[,] with two sizes and one lower bound
	blob := []byte{
		byte(flags.ElementType_ARRAY), byte(flags.ElementType_VALUETYPE), tokenGadget,
		2,
		2, 4, 4,
		1, 0,
	}
	ref, err := decodeTypeSpec(blob, testContext)
	require.NoError(t, err)
	assert.Equal(t, typeref.Array, ref.Shape)
	assert.Equal(t, 2, ref.Rank)
	assert.Equal(t, "Foo.Gadget[,]", ref.String())
}

func TestDecodePropertySig(t *testing.T) {
	// instance string Item(int32)
	blob := []byte{
		sigProperty | sigHasThis, 1,
		byte(flags.ElementType_STRING),
		byte(flags.ElementType_I4),
	}
	sig, err := decodePropertySig(blob, testContext)
	require.NoError(t, err)
	assert.True(t, sig.HasThis)
	assert.Equal(t, "System.String", sig.Type.String())
	require.Len(t, sig.Params, 1)

	_, err = decodePropertySig([]byte{sigField, 0}, testContext)
	assert.ErrorIs(t, err, ErrUnsupportedSignature)
}

func TestDecodeFieldSig(t *testing.T) {
	ref, err := decodeFieldSig([]byte{sigField, byte(flags.ElementType_U8)}, testContext)
	require.NoError(t, err)
	assert.Equal(t, "System.UInt64", ref.String())
}

func TestDecodeErrors(t *testing.T) {
	t.Run("truncated", func(t *testing.T) {
		_, err := decodeMethodSig([]byte{sigHasThis, 2, byte(flags.ElementType_VOID), byte(flags.ElementType_I4)}, testContext)
		assert.ErrorIs(t, err, ErrUnsupportedSignature)
	})
	t.Run("null token", func(t *testing.T) {
		_, err := decodeTypeSpec([]byte{byte(flags.ElementType_CLASS), 0}, testContext)
		assert.ErrorIs(t, err, ErrUnsupportedSignature)
	})
	t.Run("unknown token", func(t *testing.T) {
		_, err := decodeTypeSpec([]byte{byte(flags.ElementType_CLASS), 9<<2 | tagTypeRef}, testContext)
		assert.ErrorIs(t, err, ErrUnresolved)
	})
	t.Run("sentinel", func(t *testing.T) {
		_, err := decodeTypeSpec([]byte{0x41}, testContext)
		assert.ErrorIs(t, err, ErrUnsupportedSignature)
	})
}

func TestDecodeConstant(t *testing.T) {
	le32 := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
	le64 := func(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }
	utf16le := func(s string) []byte {
		var out []byte
		for _, u := range utf16.Encode([]rune(s)) {
			out = binary.LittleEndian.AppendUint16(out, u)
		}
		return out
	}

	tests := []struct {
		name string
		kind flags.ElementType
		blob []byte
		want any
	}{
		{"bool", flags.ElementType_BOOLEAN, []byte{1}, true},
		{"char", flags.ElementType_CHAR, []byte{'x', 0}, surface.Char('x')},
		{"int32", flags.ElementType_I4, le32(0xFFFFFFFE), int32(-2)},
		{"uint8", flags.ElementType_U1, []byte{200}, uint8(200)},
		{"int64", flags.ElementType_I8, le64(42), int64(42)},
		{"float32", flags.ElementType_R4, le32(math.Float32bits(1.5)), float32(1.5)},
		{"float64", flags.ElementType_R8, le64(math.Float64bits(0.25)), 0.25},
		{"string", flags.ElementType_STRING, utf16le("héllo"), "héllo"},
		{"empty string", flags.ElementType_STRING, nil, ""},
		{"null", flags.ElementType_CLASS, []byte{0, 0, 0, 0}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeConstant(tt.kind, tt.blob)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := decodeConstant(flags.ElementType_I4, []byte{1, 2})
	assert.ErrorIs(t, err, ErrUnsupportedSignature)
}
