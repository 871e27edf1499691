// The package used for reading library metadata and describing it in neutral
// terms.
package metadata

import (
	"debug/pe"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/microsoft/go-winmd"
	"go.uber.org/zap"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/logger"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

// Attribute bits from ECMA-335 II.23.1
const (
	typeVisibilityMask = 0x07
	typePublic         = 0x01
	typeNestedPublic   = 0x02
	typeInterface      = 0x20

	methodAccessMask    = 0x07
	methodPublic        = 0x06
	methodStatic        = 0x10
	methodSpecialName   = 0x0800
	methodRTSpecialName = 0x1000

	fieldStatic  = 0x10
	fieldLiteral = 0x40

	paramOut        = 0x02
	paramHasDefault = 0x1000
)

// Coded index tags
const (
	hasConstantParam      = 1
	typeOrMethodDefType   = 0
	typeOrMethodDefMethod = 1
	resolutionScopeRef    = 3
)

// WinMdReader reads an ECMA-335 library image (.dll, .exe or .winmd) and
// resolves external references against assemblies found in its reference
// directories.
type WinMdReader struct {
	main *assembly
	refs *universe
}

var _ Provider = (*WinMdReader)(nil)

// ReaderOption configures a WinMdReader.
type ReaderOption func(*universe)

// WithReferenceDirs adds directories searched for referenced assemblies.
func WithReferenceDirs(dirs ...string) ReaderOption {
	return func(u *universe) {
		u.dirs = append(u.dirs, dirs...)
	}
}

// WithLogger sets the logger used for skipped references.
func WithLogger(log *zap.SugaredLogger) ReaderOption {
	return func(u *universe) {
		u.log = log
	}
}

// NewReader opens the library image at path. References are looked up in the
// reference directories, then next to the library itself.
func NewReader(path string, opts ...ReaderOption) (*WinMdReader, error) {
	u := &universe{
		loaded: make(map[string]*assembly),
		log:    logger.Named("metadata"),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.dirs = append(u.dirs, filepath.Dir(path))

	main, err := u.open(path)
	if err != nil {
		return nil, err
	}
	return &WinMdReader{main: main, refs: u}, nil
}

// ExportedTypes returns the public types of the library in TypeDef order.
func (reader *WinMdReader) ExportedTypes() ([]Type, error) {
	var types []Type
	table := reader.main.metadata.Tables.TypeDef
	for idx := uint32(0); idx < table.Len; idx++ {
		row := winmd.Index(idx)
		if !reader.main.isExported(row) {
			continue
		}
		typ, err := reader.main.typeAt(row)
		if err != nil {
			return nil, errors.Wrapf(err, "reading type definition %d", idx)
		}
		types = append(types, typ)
	}
	return types, nil
}

// Resolve finds the definition of ref in the library or its references.
func (reader *WinMdReader) Resolve(ref typeref.TypeRef) (Type, error) {
	return reader.refs.resolve(ref)
}

// Close releases the reader. Metadata is fully read on open, so there is
// nothing left to release.
func (reader *WinMdReader) Close() error {
	return nil
}

// universe holds every assembly opened while resolving references.
type universe struct {
	dirs    []string
	loaded  map[string]*assembly
	order   []*assembly
	scanned bool
	log     *zap.SugaredLogger
}

func (u *universe) open(path string) (*assembly, error) {
	peFile, err := pe.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening library image %s", path)
	}
	defer peFile.Close()

	md, err := winmd.New(peFile)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "reading metadata of %s", path),
			"the file must be a managed (.NET) library image")
	}

	asm, err := newAssembly(u, path, md)
	if err != nil {
		return nil, err
	}
	u.loaded[asm.name] = asm
	u.order = append(u.order, asm)
	u.log.Debugw("Loaded library metadata", logger.FieldAssembly, asm.name, logger.FieldPath, path)
	return asm, nil
}

func (u *universe) resolve(ref typeref.TypeRef) (Type, error) {
	if ref.Shape != typeref.Named {
		return nil, errors.Wrapf(ErrUnresolved, "%s is not a named type", ref)
	}
	key := ref.FullName()
	for _, asm := range u.order {
		if row, found := asm.typeIndex[key]; found {
			typ, err := asm.typeAt(row)
			if err != nil {
				return nil, err
			}
			return typ, nil
		}
	}
	if !u.scanned {
		u.scanned = true
		u.loadReferences()
		return u.resolve(ref)
	}
	return nil, errors.Wrapf(ErrUnresolved, "%s", key)
}

// loadReferences opens, transitively, every referenced assembly found in
// the reference directories.
func (u *universe) loadReferences() {
	for i := 0; i < len(u.order); i++ {
		for _, name := range u.order[i].assemblyRefs() {
			if _, done := u.loaded[name]; done {
				continue
			}
			path, found := u.find(name)
			if !found {
				u.loaded[name] = nil
				continue
			}
			if _, err := u.open(path); err != nil {
				u.loaded[name] = nil
				u.log.Warnw("Skipping unreadable reference", logger.FieldAssembly, name, logger.FieldError, err)
			}
		}
	}
	// Failed lookups were recorded as nil to avoid retrying them.
	for name, asm := range u.loaded {
		if asm == nil {
			delete(u.loaded, name)
		}
	}
}

func (u *universe) find(name string) (string, bool) {
	for _, dir := range u.dirs {
		for _, ext := range []string{".dll", ".winmd", ".exe"} {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

type ownerKey struct {
	tag uint32
	row winmd.Index
}

// assembly is one opened library image with its lookup tables.
type assembly struct {
	u        *universe
	name     string
	path     string
	metadata *winmd.Metadata

	typeIndex     map[string]winmd.Index
	enclosing     map[winmd.Index]winmd.Index
	interfaces    map[winmd.Index][]winmd.CodedIndex
	properties    map[winmd.Index]winmd.Slice
	genericParams map[ownerKey][]string
	constants     map[winmd.Index]*winmd.Constant
	types         map[winmd.Index]*assemblyType
}

func newAssembly(u *universe, path string, md *winmd.Metadata) (*assembly, error) {
	asm := &assembly{
		u:             u,
		path:          path,
		metadata:      md,
		typeIndex:     make(map[string]winmd.Index),
		enclosing:     make(map[winmd.Index]winmd.Index),
		interfaces:    make(map[winmd.Index][]winmd.CodedIndex),
		properties:    make(map[winmd.Index]winmd.Slice),
		genericParams: make(map[ownerKey][]string),
		constants:     make(map[winmd.Index]*winmd.Constant),
		types:         make(map[winmd.Index]*assemblyType),
	}

	asm.name = filepath.Base(path)
	asm.name = asm.name[:len(asm.name)-len(filepath.Ext(asm.name))]
	if md.Tables.Assembly.Len > 0 {
		if def, err := md.Tables.Assembly.Record(0); err == nil {
			asm.name = def.Name.String()
		}
	}

	tables := md.Tables

	for idx := uint32(0); idx < tables.NestedClass.Len; idx++ {
		nested, err := tables.NestedClass.Record(winmd.Index(idx))
		if err != nil {
			return nil, errors.Wrap(err, "reading NestedClass table")
		}
		asm.enclosing[nested.NestedClass] = nested.EnclosingClass
	}

	for idx := uint32(0); idx < tables.TypeDef.Len; idx++ {
		row := winmd.Index(idx)
		if _, err := tables.TypeDef.Record(row); err != nil {
			return nil, errors.Wrap(err, "reading TypeDef table")
		}
		namespace, name := asm.qualifiedName(row)
		key := name
		if namespace != "" {
			key = namespace + "." + name
		}
		if _, dup := asm.typeIndex[key]; !dup {
			asm.typeIndex[key] = row
		}
	}

	for idx := uint32(0); idx < tables.InterfaceImpl.Len; idx++ {
		impl, err := tables.InterfaceImpl.Record(winmd.Index(idx))
		if err != nil {
			return nil, errors.Wrap(err, "reading InterfaceImpl table")
		}
		asm.interfaces[impl.Class] = append(asm.interfaces[impl.Class], impl.Interface)
	}

	for idx := uint32(0); idx < tables.PropertyMap.Len; idx++ {
		pm, err := tables.PropertyMap.Record(winmd.Index(idx))
		if err != nil {
			return nil, errors.Wrap(err, "reading PropertyMap table")
		}
		asm.properties[pm.Parent] = pm.PropertyList
	}

	type numbered struct {
		number uint32
		name   string
	}
	params := make(map[ownerKey][]numbered)
	var owners []ownerKey
	for idx := uint32(0); idx < tables.GenericParam.Len; idx++ {
		gp, err := tables.GenericParam.Record(winmd.Index(idx))
		if err != nil {
			return nil, errors.Wrap(err, "reading GenericParam table")
		}
		key := ownerKey{tag: uint32(gp.Owner.Tag), row: gp.Owner.Index}
		if _, seen := params[key]; !seen {
			owners = append(owners, key)
		}
		params[key] = append(params[key], numbered{number: uint32(gp.Number), name: gp.Name.String()})
	}
	for _, key := range owners {
		list := params[key]
		sort.SliceStable(list, func(i, j int) bool { return list[i].number < list[j].number })
		names := make([]string, len(list))
		for i, p := range list {
			names[i] = p.name
		}
		asm.genericParams[key] = names
	}

	for idx := uint32(0); idx < tables.Constant.Len; idx++ {
		c, err := tables.Constant.Record(winmd.Index(idx))
		if err != nil {
			return nil, errors.Wrap(err, "reading Constant table")
		}
		if uint32(c.Parent.Tag) == hasConstantParam {
			asm.constants[c.Parent.Index] = c
		}
	}

	return asm, nil
}

func (asm *assembly) typeDef(row winmd.Index) (*winmd.TypeDef, error) {
	def, err := asm.metadata.Tables.TypeDef.Record(row)
	if err != nil {
		return nil, errors.Wrapf(ErrUnresolved, "type definition %d of %s: %v", row, asm.name, err)
	}
	return def, nil
}

// qualifiedName returns the namespace and name of a type definition. Nested
// types report the namespace of their outermost enclosing type.
func (asm *assembly) qualifiedName(row winmd.Index) (string, string) {
	def, err := asm.typeDef(row)
	if err != nil {
		return "", ""
	}
	name := def.Name.String()
	outer := row
	for depth := 0; depth < 64; depth++ {
		parent, nested := asm.enclosing[outer]
		if !nested {
			break
		}
		outer = parent
	}
	if outer == row {
		return def.Namespace.String(), name
	}
	outerDef, err := asm.typeDef(outer)
	if err != nil {
		return "", name
	}
	return outerDef.Namespace.String(), name
}

func (asm *assembly) isExported(row winmd.Index) bool {
	for depth := 0; depth < 64; depth++ {
		def, err := asm.typeDef(row)
		if err != nil {
			return false
		}
		switch uint32(def.Flags) & typeVisibilityMask {
		case typePublic:
			return def.Name.String() != "<Module>"
		case typeNestedPublic:
			parent, nested := asm.enclosing[row]
			if !nested {
				return false
			}
			row = parent
		default:
			return false
		}
	}
	return false
}

// hasTypeDefOrRef reports whether ci names an existing row.
func (asm *assembly) hasTypeDefOrRef(ci winmd.CodedIndex) bool {
	tables := asm.metadata.Tables
	var rows uint32
	switch uint32(ci.Tag) {
	case tagTypeDef:
		rows = tables.TypeDef.Len
	case tagTypeRef:
		rows = tables.TypeRef.Len
	case tagTypeSpec:
		rows = tables.TypeSpec.Len
	}
	return uint32(ci.Index) < rows
}

func (asm *assembly) assemblyRefs() []string {
	var names []string
	table := asm.metadata.Tables.AssemblyRef
	for idx := uint32(0); idx < table.Len; idx++ {
		ref, err := table.Record(winmd.Index(idx))
		if err != nil {
			continue
		}
		names = append(names, ref.Name.String())
	}
	return names
}

func (asm *assembly) typeAt(row winmd.Index) (*assemblyType, error) {
	if typ, found := asm.types[row]; found {
		return typ, nil
	}
	def, err := asm.typeDef(row)
	if err != nil {
		return nil, err
	}
	typ := &assemblyType{asm: asm, row: row, def: def}
	typ.typeParams = asm.genericParams[ownerKey{tag: typeOrMethodDefType, row: row}]

	namespace, name := asm.qualifiedName(row)
	typ.self = typeref.Of(namespace, name)
	typ.self.Public = asm.isExported(row)
	for i, param := range typ.typeParams {
		typ.self.Args = append(typ.self.Args, typeref.Param(typeref.OwnerType, i, param))
	}

	typ.kind, err = typ.classify()
	if err != nil {
		return nil, err
	}
	asm.types[row] = typ
	return typ, nil
}

// defRef is the reference to a type definition of this assembly, as found
// behind a TypeDef token.
func (asm *assembly) defRef(row winmd.Index) (typeref.TypeRef, error) {
	if _, err := asm.typeDef(row); err != nil {
		return typeref.TypeRef{}, err
	}
	namespace, name := asm.qualifiedName(row)
	ref := typeref.Of(namespace, name)
	ref.Public = asm.isExported(row)
	return ref, nil
}

// typeRefRef reads a TypeRef row. Nested references take the namespace of
// their resolution scope.
func (asm *assembly) typeRefRef(row winmd.Index) (typeref.TypeRef, error) {
	name := ""
	for depth := 0; depth < 64; depth++ {
		tr, err := asm.metadata.Tables.TypeRef.Record(row)
		if err != nil {
			return typeref.TypeRef{}, errors.Wrapf(ErrUnresolved, "type reference %d of %s: %v", row, asm.name, err)
		}
		if name == "" {
			name = tr.Name.String()
		}
		if uint32(tr.ResolutionScope.Tag) != resolutionScopeRef || tr.Namespace.String() != "" {
			return typeref.Of(tr.Namespace.String(), name), nil
		}
		row = tr.ResolutionScope.Index
	}
	return typeref.TypeRef{}, errors.Wrapf(ErrUnresolved, "type reference %d of %s nests too deep", row, asm.name)
}

// sigCtx resolves signature tokens for one type, and optionally one method.
type sigCtx struct {
	asm          *assembly
	typeParams   []string
	methodParams []string
}

func (ctx sigCtx) typeDefOrRef(tag uint32, row uint32) (typeref.TypeRef, error) {
	index := winmd.Index(row)
	switch tag {
	case tagTypeDef:
		return ctx.asm.defRef(index)
	case tagTypeRef:
		return ctx.asm.typeRefRef(index)
	case tagTypeSpec:
		spec, err := ctx.asm.metadata.Tables.TypeSpec.Record(index)
		if err != nil {
			return typeref.TypeRef{}, errors.Wrapf(ErrUnresolved, "type specification %d: %v", row, err)
		}
		return decodeTypeSpec([]byte(spec.Signature), ctx)
	}
	return typeref.TypeRef{}, errors.Wrapf(ErrUnsupportedSignature, "TypeDefOrRef tag %d", tag)
}

func (ctx sigCtx) typeParamName(position int) string {
	if position < len(ctx.typeParams) {
		return ctx.typeParams[position]
	}
	return "T" + strconv.Itoa(position)
}

func (ctx sigCtx) methodParamName(position int) string {
	if position < len(ctx.methodParams) {
		return ctx.methodParams[position]
	}
	return "M" + strconv.Itoa(position)
}

func (ctx sigCtx) codedTypeDefOrRef(ci winmd.CodedIndex) (typeref.TypeRef, error) {
	return ctx.typeDefOrRef(uint32(ci.Tag), uint32(ci.Index))
}
