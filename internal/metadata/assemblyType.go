package metadata

import (
	"strconv"
	"strings"

	"github.com/microsoft/go-winmd"
	"github.com/microsoft/go-winmd/flags"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/logger"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

// assemblyType is a type definition read from an assembly.
type assemblyType struct {
	asm        *assembly
	row        winmd.Index
	def        *winmd.TypeDef
	self       typeref.TypeRef
	kind       Kind
	typeParams []string

	methods []Method
	ctors   []Method
	loaded  bool
}

var _ Type = (*assemblyType)(nil)

func (typ *assemblyType) Ref() typeref.TypeRef { return typ.self }
func (typ *assemblyType) Kind() Kind           { return typ.kind }
func (typ *assemblyType) Public() bool         { return typ.self.Public }

func (typ *assemblyType) ctx() sigCtx {
	return sigCtx{asm: typ.asm, typeParams: typ.typeParams}
}

func (typ *assemblyType) classify() (Kind, error) {
	if uint32(typ.def.Flags)&typeInterface != 0 {
		return KindInterface, nil
	}
	// A base that cannot be decoded leaves the type a class; the catalog
	// reports the failure when it captures the base.
	base, err := typ.BaseType()
	if err != nil || base == nil {
		return KindClass, nil
	}
	if base.Namespace == "System" && typ.self.FullName() != "System.Enum" {
		switch base.Name {
		case "Enum":
			return KindEnum, nil
		case "ValueType":
			return KindStruct, nil
		}
	}
	return KindClass, nil
}

func (typ *assemblyType) BaseType() (*typeref.TypeRef, error) {
	if uint32(typ.def.Flags)&typeInterface != 0 {
		return nil, nil
	}
	// A null Extends column reads as a row outside the table.
	if !typ.asm.hasTypeDefOrRef(typ.def.Extends) {
		return nil, nil
	}
	base, err := typ.ctx().codedTypeDefOrRef(typ.def.Extends)
	if err != nil {
		return nil, errors.Wrapf(err, "base type of %s", typ.self.FullName())
	}
	if base.Name == "<Module>" || base.Key() == typ.self.Key() {
		return nil, nil
	}
	return &base, nil
}

// directInterfaces returns the InterfaceImpl rows of the type, with the
// type's own generic parameters in place.
func (typ *assemblyType) directInterfaces() ([]typeref.TypeRef, error) {
	var refs []typeref.TypeRef
	for _, ci := range typ.asm.interfaces[typ.row] {
		ref, err := typ.ctx().codedTypeDefOrRef(ci)
		if err != nil {
			return nil, errors.Wrapf(err, "interfaces of %s", typ.self.FullName())
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (typ *assemblyType) Interfaces() ([]typeref.TypeRef, error) {
	var set typeref.Set
	if err := typ.collectInterfaces(typ.self.Args, &set, 0); err != nil {
		return nil, err
	}
	return set.Items(), nil
}

// collectInterfaces adds every interface of typ, instantiated with args, to
// set. Interfaces inherited from other interfaces are expanded when their
// definitions are available; base classes must resolve.
func (typ *assemblyType) collectInterfaces(args []typeref.TypeRef, set *typeref.Set, depth int) error {
	if depth > 64 {
		return errors.Newf("type hierarchy of %s nests too deep", typ.self.FullName())
	}

	direct, err := typ.directInterfaces()
	if err != nil {
		return err
	}
	for _, iface := range direct {
		iface = iface.Substitute(args, nil)
		if set.Has(iface) {
			continue
		}
		set.Add(iface)
		def, err := typ.asm.u.resolve(iface)
		if err != nil {
			typ.asm.u.log.Debugw("Interface not expanded", logger.FieldType, iface.String(), logger.FieldError, err)
			continue
		}
		if inner, ok := def.(*assemblyType); ok {
			if err := inner.collectInterfaces(iface.Args, set, depth+1); err != nil {
				return err
			}
		}
	}

	base, err := typ.BaseType()
	if err != nil || base == nil || base.IsObject() || base.IsValueTypeRoot() {
		return err
	}
	instance := base.Substitute(args, nil)
	def, err := typ.asm.u.resolve(instance)
	if err != nil {
		return errors.Wrapf(err, "base type of %s", typ.self.FullName())
	}
	if inner, ok := def.(*assemblyType); ok {
		return inner.collectInterfaces(instance.Args, set, depth+1)
	}
	items, err := def.Interfaces()
	if err != nil {
		return err
	}
	for _, iface := range items {
		set.Add(iface.Substitute(instance.Args, nil))
	}
	return nil
}

func (typ *assemblyType) load() error {
	if typ.loaded {
		return nil
	}
	tables := typ.asm.metadata.Tables
	for idx := typ.def.MethodList.Start; idx < typ.def.MethodList.End; idx++ {
		def, err := tables.MethodDef.Record(idx)
		if err != nil {
			return errors.Wrapf(err, "reading methods of %s", typ.self.FullName())
		}
		if uint32(def.Flags)&methodAccessMask != methodPublic {
			continue
		}
		method, err := typ.method(idx, def)
		if err != nil {
			return errors.Wrapf(err, "method %s.%s", typ.self.FullName(), def.Name.String())
		}
		switch {
		case method.Name == ".ctor" && !method.Static:
			typ.ctors = append(typ.ctors, method)
		case uint32(def.Flags)&methodRTSpecialName != 0:
			// Type initializers.
		default:
			typ.methods = append(typ.methods, method)
		}
	}
	typ.loaded = true
	return nil
}

func (typ *assemblyType) method(row winmd.Index, def *winmd.MethodDef) (Method, error) {
	ctx := typ.ctx()
	ctx.methodParams = typ.asm.genericParams[ownerKey{tag: typeOrMethodDefMethod, row: row}]

	sig, err := decodeMethodSig([]byte(def.Signature), ctx)
	if err != nil {
		return Method{}, err
	}

	method := Method{
		Name:          def.Name.String(),
		DeclaringType: typ.self,
		Return:        sig.Return,
		Static:        uint32(def.Flags)&methodStatic != 0,
		SpecialName:   uint32(def.Flags)&methodSpecialName != 0,
	}
	for i := 0; i < sig.GenericParams; i++ {
		method.GenericArgs = append(method.GenericArgs, typeref.Param(typeref.OwnerMethod, i, ctx.methodParamName(i)))
	}

	method.Params = make([]Parameter, len(sig.Params))
	for i, paramType := range sig.Params {
		method.Params[i] = Parameter{Name: "arg" + strconv.Itoa(i), Type: paramType}
	}

	tables := typ.asm.metadata.Tables
	for idx := def.ParamList.Start; idx < def.ParamList.End; idx++ {
		param, err := tables.Param.Record(idx)
		if err != nil {
			return Method{}, errors.Wrap(err, "reading parameters")
		}
		// Sequence 0 describes the return value.
		seq := int(param.Sequence)
		if seq == 0 || seq > len(method.Params) {
			continue
		}
		p := &method.Params[seq-1]
		p.Name = param.Name.String()
		p.Out = uint32(param.Flags)&paramOut != 0
		if uint32(param.Flags)&paramHasDefault != 0 {
			if c, found := typ.asm.constants[idx]; found {
				value, err := decodeConstant(flags.ElementType(c.Type), []byte(c.Value))
				if err != nil {
					return Method{}, errors.Wrapf(err, "default of parameter %s", p.Name)
				}
				p.HasDefault = true
				p.Default = value
			}
		}
	}
	return method, nil
}

func (typ *assemblyType) Methods() ([]Method, error) {
	if err := typ.load(); err != nil {
		return nil, err
	}
	return typ.methods, nil
}

func (typ *assemblyType) Constructors() ([]Method, error) {
	if err := typ.load(); err != nil {
		return nil, err
	}
	return typ.ctors, nil
}

func (typ *assemblyType) Properties() ([]Property, error) {
	if err := typ.load(); err != nil {
		return nil, err
	}
	list, found := typ.asm.properties[typ.row]
	if !found {
		return nil, nil
	}

	getters := make(map[string][]Method)
	setters := make(map[string][]Method)
	for _, m := range typ.methods {
		switch {
		case strings.HasPrefix(m.Name, "get_"):
			getters[m.Name[4:]] = append(getters[m.Name[4:]], m)
		case strings.HasPrefix(m.Name, "set_"):
			setters[m.Name[4:]] = append(setters[m.Name[4:]], m)
		}
	}

	var properties []Property
	tables := typ.asm.metadata.Tables
	for idx := list.Start; idx < list.End; idx++ {
		def, err := tables.Property.Record(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "reading properties of %s", typ.self.FullName())
		}
		name := def.Name.String()
		sig, err := decodePropertySig([]byte(def.Type), typ.ctx())
		if err != nil {
			return nil, errors.Wrapf(err, "property %s.%s", typ.self.FullName(), name)
		}

		getter, setter := matchAccessors(sig, getters[name], setters[name])
		if getter == nil && setter == nil {
			continue
		}

		property := Property{
			Name:          name,
			DeclaringType: typ.self,
			Type:          sig.Type,
			CanRead:       getter != nil,
			CanWrite:      setter != nil,
			Static:        !sig.HasThis,
		}
		if getter != nil {
			property.Params = getter.Params
		} else {
			property.Params = setter.Params[:len(setter.Params)-1]
		}
		properties = append(properties, property)
	}
	return properties, nil
}

// matchAccessors finds the public accessors of one property row. Indexer
// overloads share their accessor names, so accessors are matched on the
// parameter and value types of the property signature.
func matchAccessors(sig propertySig, getters, setters []Method) (getter, setter *Method) {
	for i := range getters {
		m := &getters[i]
		if m.Static == !sig.HasThis && m.Return.Key() == sig.Type.Key() && sameTypes(m.Params, sig.Params) {
			getter = m
			break
		}
	}
	for i := range setters {
		m := &setters[i]
		n := len(m.Params)
		if n == 0 || m.Static != !sig.HasThis {
			continue
		}
		if m.Params[n-1].Type.Key() == sig.Type.Key() && sameTypes(m.Params[:n-1], sig.Params) {
			setter = m
			break
		}
	}
	return getter, setter
}

func sameTypes(params []Parameter, types []typeref.TypeRef) bool {
	if len(params) != len(types) {
		return false
	}
	for i, p := range params {
		if p.Type.Key() != types[i].Key() {
			return false
		}
	}
	return true
}

func (typ *assemblyType) EnumNames() ([]string, error) {
	if typ.kind != KindEnum {
		return nil, nil
	}
	var names []string
	tables := typ.asm.metadata.Tables
	for idx := typ.def.FieldList.Start; idx < typ.def.FieldList.End; idx++ {
		field, err := tables.Field.Record(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "reading enumerants of %s", typ.self.FullName())
		}
		fieldFlags := uint32(field.Flags)
		if fieldFlags&fieldStatic == 0 || fieldFlags&fieldLiteral == 0 {
			continue
		}
		names = append(names, field.Name.String())
	}
	return names, nil
}
