package metadata

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

// Manifest is a hand-written description of a library surface. Type names
// use the CLR syntax read by typeref.Parse; generic parameters are written
// as "!T".
type Manifest struct {
	Assembly string         `yaml:"assembly" toml:"assembly"`
	Types    []ManifestType `yaml:"types" toml:"types"`
}

// ManifestType describes one type definition.
type ManifestType struct {
	Namespace     string   `yaml:"namespace" toml:"namespace"`
	Name          string   `yaml:"name" toml:"name"`
	Kind          string   `yaml:"kind" toml:"kind"`
	Internal      bool     `yaml:"internal" toml:"internal"`
	GenericParams []string `yaml:"generic_params" toml:"generic_params"`
	Base          string   `yaml:"base" toml:"base"`
	// Interfaces is the complete interface set, inherited ones included.
	Interfaces   []string              `yaml:"interfaces" toml:"interfaces"`
	Enumerants   []string              `yaml:"enumerants" toml:"enumerants"`
	Properties   []ManifestProperty    `yaml:"properties" toml:"properties"`
	Methods      []ManifestMethod      `yaml:"methods" toml:"methods"`
	Constructors []ManifestConstructor `yaml:"constructors" toml:"constructors"`
}

type ManifestProperty struct {
	Name       string              `yaml:"name" toml:"name"`
	Type       string              `yaml:"type" toml:"type"`
	Get        bool                `yaml:"get" toml:"get"`
	Set        bool                `yaml:"set" toml:"set"`
	Static     bool                `yaml:"static" toml:"static"`
	DeclaredBy string              `yaml:"declared_by" toml:"declared_by"`
	Params     []ManifestParameter `yaml:"params" toml:"params"`
}

type ManifestMethod struct {
	Name          string              `yaml:"name" toml:"name"`
	Return        string              `yaml:"return" toml:"return"`
	Static        bool                `yaml:"static" toml:"static"`
	SpecialName   bool                `yaml:"special_name" toml:"special_name"`
	GenericParams []string            `yaml:"generic_params" toml:"generic_params"`
	DeclaredBy    string              `yaml:"declared_by" toml:"declared_by"`
	Params        []ManifestParameter `yaml:"params" toml:"params"`
}

type ManifestConstructor struct {
	Params []ManifestParameter `yaml:"params" toml:"params"`
}

// ManifestParameter describes one parameter. A by-ref parameter has a type
// ending in "&"; Default is read only when HasDefault is set, and a missing
// Default is the null constant.
type ManifestParameter struct {
	Name       string `yaml:"name" toml:"name"`
	Type       string `yaml:"type" toml:"type"`
	Out        bool   `yaml:"out" toml:"out"`
	HasDefault bool   `yaml:"has_default" toml:"has_default"`
	Default    any    `yaml:"default" toml:"default"`
}

// ManifestProvider serves a Manifest through the Provider interface.
type ManifestProvider struct {
	types []*manifestType
	index map[string]*manifestType
}

var _ Provider = (*ManifestProvider)(nil)

// IsManifest reports whether path names a manifest rather than a library
// image.
func IsManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

// LoadManifest reads a manifest file. TOML is chosen by extension; YAML and
// JSON share the YAML decoder.
func LoadManifest(path string) (*ManifestProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}

	var manifest Manifest
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &manifest)
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		err = decoder.Decode(&manifest)
	}
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "decoding manifest %s", path),
			"type names use the CLR syntax, for example System.Collections.Generic.List`1[!T]")
	}
	return NewManifestProvider(manifest)
}

// NewManifestProvider validates manifest and binds its type names.
func NewManifestProvider(manifest Manifest) (*ManifestProvider, error) {
	provider := &ManifestProvider{index: make(map[string]*manifestType)}
	for i := range manifest.Types {
		typ, err := newManifestType(&manifest.Types[i])
		if err != nil {
			return nil, err
		}
		key := typ.self.FullName()
		if _, dup := provider.index[key]; dup {
			return nil, errors.Newf("manifest defines %s twice", key)
		}
		provider.index[key] = typ
		provider.types = append(provider.types, typ)
	}

	// Visibility of references to manifest types follows their definition.
	for _, typ := range provider.types {
		for i, iface := range typ.interfaces {
			if def, found := provider.index[iface.FullName()]; found {
				typ.interfaces[i].Public = def.self.Public
			}
		}
	}
	return provider, nil
}

func (provider *ManifestProvider) ExportedTypes() ([]Type, error) {
	var types []Type
	for _, typ := range provider.types {
		if typ.self.Public {
			types = append(types, typ)
		}
	}
	return types, nil
}

func (provider *ManifestProvider) Resolve(ref typeref.TypeRef) (Type, error) {
	if typ, found := provider.index[ref.FullName()]; found {
		return typ, nil
	}
	return nil, errors.Wrapf(ErrUnresolved, "%s", ref.FullName())
}

func (provider *ManifestProvider) Close() error { return nil }

type manifestType struct {
	def        *ManifestType
	self       typeref.TypeRef
	kind       Kind
	base       *typeref.TypeRef
	interfaces []typeref.TypeRef
	properties []Property
	methods    []Method
	ctors      []Method
}

var manifestKinds = map[string]Kind{
	"":          KindClass,
	"class":     KindClass,
	"interface": KindInterface,
	"struct":    KindStruct,
	"enum":      KindEnum,
}

func newManifestType(def *ManifestType) (*manifestType, error) {
	if def.Name == "" {
		return nil, errors.Newf("manifest type in namespace %q has no name", def.Namespace)
	}
	kind, found := manifestKinds[strings.ToLower(def.Kind)]
	if !found {
		return nil, errors.Newf("type %s.%s has unknown kind %q", def.Namespace, def.Name, def.Kind)
	}

	typ := &manifestType{def: def, kind: kind}
	typ.self = typeref.Of(def.Namespace, def.Name)
	typ.self.Public = !def.Internal
	for i, name := range def.GenericParams {
		typ.self.Args = append(typ.self.Args, typeref.Param(typeref.OwnerType, i, name))
	}

	wrap := func(err error, what string) error {
		return errors.Wrapf(err, "%s of %s", what, typ.self.FullName())
	}

	if def.Base != "" {
		base, err := typ.parse(def.Base, nil)
		if err != nil {
			return nil, wrap(err, "base type")
		}
		typ.base = &base
	}

	for _, name := range def.Interfaces {
		iface, err := typ.parse(name, nil)
		if err != nil {
			return nil, wrap(err, "interfaces")
		}
		typ.interfaces = append(typ.interfaces, iface)
	}

	for _, p := range def.Properties {
		propertyType, err := typ.parse(p.Type, nil)
		if err != nil {
			return nil, wrap(err, "property "+p.Name)
		}
		params, err := typ.params(p.Params, nil)
		if err != nil {
			return nil, wrap(err, "property "+p.Name)
		}
		declaring, err := typ.declaringType(p.DeclaredBy)
		if err != nil {
			return nil, wrap(err, "property "+p.Name)
		}
		typ.properties = append(typ.properties, Property{
			Name:          p.Name,
			DeclaringType: declaring,
			Type:          propertyType,
			CanRead:       p.Get,
			CanWrite:      p.Set,
			Static:        p.Static,
			Params:        params,
		})
	}

	for _, m := range def.Methods {
		method := Method{Name: m.Name, Static: m.Static, SpecialName: m.SpecialName}
		for i, name := range m.GenericParams {
			method.GenericArgs = append(method.GenericArgs, typeref.Param(typeref.OwnerMethod, i, name))
		}
		ret := m.Return
		if ret == "" {
			ret = "System.Void"
		}
		var err error
		if method.Return, err = typ.parse(ret, m.GenericParams); err != nil {
			return nil, wrap(err, "method "+m.Name)
		}
		if method.Params, err = typ.params(m.Params, m.GenericParams); err != nil {
			return nil, wrap(err, "method "+m.Name)
		}
		if method.DeclaringType, err = typ.declaringType(m.DeclaredBy); err != nil {
			return nil, wrap(err, "method "+m.Name)
		}
		typ.methods = append(typ.methods, method)
	}

	for i, c := range def.Constructors {
		params, err := typ.params(c.Params, nil)
		if err != nil {
			return nil, wrap(err, "constructor "+strconv.Itoa(i))
		}
		typ.ctors = append(typ.ctors, Method{Name: ".ctor", DeclaringType: typ.self, Return: typeref.Void, Params: params})
	}
	return typ, nil
}

func (typ *manifestType) parse(name string, methodParams []string) (typeref.TypeRef, error) {
	ref, err := typeref.Parse(name)
	if err != nil {
		return typeref.TypeRef{}, err
	}
	return ref.BindParams(typ.def.GenericParams, methodParams), nil
}

func (typ *manifestType) params(defs []ManifestParameter, methodParams []string) ([]Parameter, error) {
	var params []Parameter
	for _, p := range defs {
		paramType, err := typ.parse(p.Type, methodParams)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %s", p.Name)
		}
		if p.Out && paramType.Shape != typeref.ByRef {
			paramType = typeref.ByRefTo(paramType)
		}
		params = append(params, Parameter{
			Name:       p.Name,
			Type:       paramType,
			Out:        p.Out,
			HasDefault: p.HasDefault,
			Default:    p.Default,
		})
	}
	return params, nil
}

func (typ *manifestType) declaringType(name string) (typeref.TypeRef, error) {
	if name == "" {
		return typ.self, nil
	}
	return typ.parse(name, nil)
}

func (typ *manifestType) Ref() typeref.TypeRef                   { return typ.self }
func (typ *manifestType) Kind() Kind                             { return typ.kind }
func (typ *manifestType) Public() bool                           { return typ.self.Public }
func (typ *manifestType) BaseType() (*typeref.TypeRef, error)    { return typ.base, nil }
func (typ *manifestType) Interfaces() ([]typeref.TypeRef, error) { return typ.interfaces, nil }
func (typ *manifestType) Properties() ([]Property, error)        { return typ.properties, nil }
func (typ *manifestType) Methods() ([]Method, error)             { return typ.methods, nil }
func (typ *manifestType) Constructors() ([]Method, error)        { return typ.ctors, nil }

func (typ *manifestType) EnumNames() ([]string, error) {
	if typ.kind != KindEnum {
		return nil, nil
	}
	return typ.def.Enumerants, nil
}
