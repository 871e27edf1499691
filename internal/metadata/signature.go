package metadata

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/microsoft/go-winmd/flags"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/surface"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

// The map of signature element types to the System types they stand for
var builtInElementTypes = map[flags.ElementType]string{
	flags.ElementType_VOID:       "Void",
	flags.ElementType_BOOLEAN:    "Boolean",
	flags.ElementType_CHAR:       "Char",
	flags.ElementType_I1:         "SByte",
	flags.ElementType_U1:         "Byte",
	flags.ElementType_I2:         "Int16",
	flags.ElementType_U2:         "UInt16",
	flags.ElementType_I4:         "Int32",
	flags.ElementType_U4:         "UInt32",
	flags.ElementType_I8:         "Int64",
	flags.ElementType_U8:         "UInt64",
	flags.ElementType_R4:         "Single",
	flags.ElementType_R8:         "Double",
	flags.ElementType_STRING:     "String",
	flags.ElementType_OBJECT:     "Object",
	flags.ElementType_I:          "IntPtr",
	flags.ElementType_U:          "UIntPtr",
	flags.ElementType_TYPEDBYREF: "TypedReference",
}

// Calling convention bits of the first signature byte
const (
	sigGeneric  = 0x10
	sigHasThis  = 0x20
	sigProperty = 0x08
	sigField    = 0x06
)

// TypeDefOrRef coded index tags
const (
	tagTypeDef  = 0
	tagTypeRef  = 1
	tagTypeSpec = 2
)

// sigContext resolves what a signature blob only references by token.
type sigContext interface {
	// typeDefOrRef resolves a TypeDef, TypeRef or TypeSpec. row is 0-based.
	typeDefOrRef(tag uint32, row uint32) (typeref.TypeRef, error)
	typeParamName(position int) string
	methodParamName(position int) string
}

// methodSig is a decoded MethodDefSig.
type methodSig struct {
	HasThis       bool
	GenericParams int
	Return        typeref.TypeRef
	Params        []typeref.TypeRef
}

// propertySig is a decoded PropertySig.
type propertySig struct {
	HasThis bool
	Type    typeref.TypeRef
	Params  []typeref.TypeRef
}

type sigReader struct {
	blob []byte
	pos  int
	ctx  sigContext
}

func newSigReader(blob []byte, ctx sigContext) *sigReader {
	return &sigReader{blob: blob, ctx: ctx}
}

func decodeMethodSig(blob []byte, ctx sigContext) (methodSig, error) {
	r := newSigReader(blob, ctx)
	callConv, err := r.byte()
	if err != nil {
		return methodSig{}, err
	}

	sig := methodSig{HasThis: callConv&sigHasThis != 0}
	if callConv&sigGeneric != 0 {
		count, err := r.compressed()
		if err != nil {
			return methodSig{}, err
		}
		sig.GenericParams = int(count)
	}

	paramCount, err := r.compressed()
	if err != nil {
		return methodSig{}, err
	}

	sig.Return, err = r.typ()
	if err != nil {
		return methodSig{}, errors.Wrap(err, "return type")
	}

	for i := uint32(0); i < paramCount; i++ {
		param, err := r.typ()
		if err != nil {
			return methodSig{}, errors.Wrapf(err, "parameter %d", i)
		}
		sig.Params = append(sig.Params, param)
	}

	return sig, nil
}

func decodePropertySig(blob []byte, ctx sigContext) (propertySig, error) {
	r := newSigReader(blob, ctx)
	head, err := r.byte()
	if err != nil {
		return propertySig{}, err
	}
	if head&0x0F != sigProperty {
		return propertySig{}, errors.Wrapf(ErrUnsupportedSignature, "property signature starts with 0x%02x", head)
	}

	paramCount, err := r.compressed()
	if err != nil {
		return propertySig{}, err
	}

	sig := propertySig{HasThis: head&sigHasThis != 0}
	sig.Type, err = r.typ()
	if err != nil {
		return propertySig{}, errors.Wrap(err, "property type")
	}

	for i := uint32(0); i < paramCount; i++ {
		param, err := r.typ()
		if err != nil {
			return propertySig{}, errors.Wrapf(err, "indexer parameter %d", i)
		}
		sig.Params = append(sig.Params, param)
	}
	return sig, nil
}

func decodeFieldSig(blob []byte, ctx sigContext) (typeref.TypeRef, error) {
	r := newSigReader(blob, ctx)
	head, err := r.byte()
	if err != nil {
		return typeref.TypeRef{}, err
	}
	if head&0x0F != sigField {
		return typeref.TypeRef{}, errors.Wrapf(ErrUnsupportedSignature, "field signature starts with 0x%02x", head)
	}
	return r.typ()
}

func decodeTypeSpec(blob []byte, ctx sigContext) (typeref.TypeRef, error) {
	return newSigReader(blob, ctx).typ()
}

func (r *sigReader) byte() (byte, error) {
	if r.pos >= len(r.blob) {
		return 0, errors.Wrap(ErrUnsupportedSignature, "unexpected end of signature")
	}
	b := r.blob[r.pos]
	r.pos++
	return b, nil
}

// compressed reads an ECMA-335 II.23.2 compressed unsigned integer.
func (r *sigReader) compressed() (uint32, error) {
	b0, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.byte()
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), nil
	case b0&0xE0 == 0xC0:
		var rest [3]byte
		for i := range rest {
			if rest[i], err = r.byte(); err != nil {
				return 0, err
			}
		}
		return uint32(b0&0x1F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	}
	return 0, errors.Wrapf(ErrUnsupportedSignature, "bad compressed integer lead byte 0x%02x", b0)
}

// token reads a TypeDefOrRefOrSpecEncoded value and resolves it.
func (r *sigReader) token() (typeref.TypeRef, error) {
	encoded, err := r.compressed()
	if err != nil {
		return typeref.TypeRef{}, err
	}
	row := encoded >> 2
	if row == 0 {
		return typeref.TypeRef{}, errors.Wrap(ErrUnsupportedSignature, "null type token")
	}
	return r.ctx.typeDefOrRef(encoded&0x3, row-1)
}

func (r *sigReader) typ() (typeref.TypeRef, error) {
	for {
		b, err := r.byte()
		if err != nil {
			return typeref.TypeRef{}, err
		}
		kind := flags.ElementType(b)

		if name, found := builtInElementTypes[kind]; found {
			return typeref.Of("System", name), nil
		}

		switch kind {
		case flags.ElementType_CMOD_REQD, flags.ElementType_CMOD_OPT, flags.ElementType_PINNED:
			// Modifiers do not change the declared type.
			if kind != flags.ElementType_PINNED {
				if _, err := r.compressed(); err != nil {
					return typeref.TypeRef{}, err
				}
			}
			continue

		case flags.ElementType_PTR:
			elem, err := r.typ()
			if err != nil {
				return typeref.TypeRef{}, err
			}
			return typeref.PointerTo(elem), nil

		case flags.ElementType_BYREF:
			elem, err := r.typ()
			if err != nil {
				return typeref.TypeRef{}, err
			}
			return typeref.ByRefTo(elem), nil

		case flags.ElementType_SZARRAY:
			elem, err := r.typ()
			if err != nil {
				return typeref.TypeRef{}, err
			}
			return typeref.ArrayOf(elem, 1), nil

		case flags.ElementType_ARRAY:
			return r.array()

		case flags.ElementType_CLASS, flags.ElementType_VALUETYPE:
			return r.token()

		case flags.ElementType_VAR:
			n, err := r.compressed()
			if err != nil {
				return typeref.TypeRef{}, err
			}
			return typeref.Param(typeref.OwnerType, int(n), r.ctx.typeParamName(int(n))), nil

		case flags.ElementType_MVAR:
			n, err := r.compressed()
			if err != nil {
				return typeref.TypeRef{}, err
			}
			return typeref.Param(typeref.OwnerMethod, int(n), r.ctx.methodParamName(int(n))), nil

		case flags.ElementType_GENERICINST:
			return r.genericInst()
		}

		return typeref.TypeRef{}, errors.Wrapf(ErrUnsupportedSignature, "element type 0x%02x", b)
	}
}

func (r *sigReader) array() (typeref.TypeRef, error) {
	elem, err := r.typ()
	if err != nil {
		return typeref.TypeRef{}, err
	}
	rank, err := r.compressed()
	if err != nil {
		return typeref.TypeRef{}, err
	}
	// Sizes and lower bounds are not part of a declaration.
	for _, what := range []string{"sizes", "lower bounds"} {
		count, err := r.compressed()
		if err != nil {
			return typeref.TypeRef{}, errors.Wrapf(err, "array %s", what)
		}
		for i := uint32(0); i < count; i++ {
			if _, err := r.compressed(); err != nil {
				return typeref.TypeRef{}, errors.Wrapf(err, "array %s", what)
			}
		}
	}
	return typeref.ArrayOf(elem, int(rank)), nil
}

func (r *sigReader) genericInst() (typeref.TypeRef, error) {
	b, err := r.byte()
	if err != nil {
		return typeref.TypeRef{}, err
	}
	if kind := flags.ElementType(b); kind != flags.ElementType_CLASS && kind != flags.ElementType_VALUETYPE {
		return typeref.TypeRef{}, errors.Wrapf(ErrUnsupportedSignature, "generic instantiation of element type 0x%02x", b)
	}

	generic, err := r.token()
	if err != nil {
		return typeref.TypeRef{}, err
	}
	count, err := r.compressed()
	if err != nil {
		return typeref.TypeRef{}, err
	}

	generic.Args = make([]typeref.TypeRef, 0, count)
	for i := uint32(0); i < count; i++ {
		arg, err := r.typ()
		if err != nil {
			return typeref.TypeRef{}, errors.Wrapf(err, "generic argument %d", i)
		}
		generic.Args = append(generic.Args, arg)
	}
	return generic, nil
}

// decodeConstant reads a Constant table value blob.
func decodeConstant(kind flags.ElementType, blob []byte) (any, error) {
	need := func(n int) error {
		if len(blob) < n {
			return errors.Wrapf(ErrUnsupportedSignature, "constant of element type 0x%02x needs %d bytes, has %d", uint8(kind), n, len(blob))
		}
		return nil
	}

	switch kind {
	case flags.ElementType_BOOLEAN:
		if err := need(1); err != nil {
			return nil, err
		}
		return blob[0] != 0, nil
	case flags.ElementType_CHAR:
		if err := need(2); err != nil {
			return nil, err
		}
		return surface.Char(binary.LittleEndian.Uint16(blob)), nil
	case flags.ElementType_I1:
		if err := need(1); err != nil {
			return nil, err
		}
		return int8(blob[0]), nil
	case flags.ElementType_U1:
		if err := need(1); err != nil {
			return nil, err
		}
		return blob[0], nil
	case flags.ElementType_I2:
		if err := need(2); err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(blob)), nil
	case flags.ElementType_U2:
		if err := need(2); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(blob), nil
	case flags.ElementType_I4:
		if err := need(4); err != nil {
			return nil, err
		}
		return int32(binary.LittleEndian.Uint32(blob)), nil
	case flags.ElementType_U4:
		if err := need(4); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint32(blob), nil
	case flags.ElementType_I8:
		if err := need(8); err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(blob)), nil
	case flags.ElementType_U8:
		if err := need(8); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(blob), nil
	case flags.ElementType_R4:
		if err := need(4); err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(blob)), nil
	case flags.ElementType_R8:
		if err := need(8); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(blob)), nil
	case flags.ElementType_STRING:
		units := make([]uint16, len(blob)/2)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(blob[2*i:])
		}
		return string(utf16.Decode(units)), nil
	case flags.ElementType_CLASS:
		// A class constant is always the null reference.
		return nil, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedSignature, "constant of element type 0x%02x", uint8(kind))
}
