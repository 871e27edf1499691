// Package catalog extracts the surface of a library from a metadata
// provider.
package catalog

import (
	"go.uber.org/zap"

	"github.com/dellis1972/pcl-gen/internal/errors"
	"github.com/dellis1972/pcl-gen/internal/logger"
	"github.com/dellis1972/pcl-gen/internal/metadata"
	"github.com/dellis1972/pcl-gen/internal/surface"
	"github.com/dellis1972/pcl-gen/internal/typeref"
)

// Catalog builds a surface.Surface from one provider.
type Catalog struct {
	provider metadata.Provider
	filter   Filter
	log      *zap.SugaredLogger

	// Skipped counts captures dropped because of resolution failures.
	Skipped int
}

// New returns a catalog over provider. A nil log uses the global logger.
func New(provider metadata.Provider, filter Filter, log *zap.SugaredLogger) *Catalog {
	if log == nil {
		log = logger.Named("catalog")
	}
	return &Catalog{provider: provider, filter: filter, log: log}
}

// Build extracts every eligible exported type. Only a failure to enumerate
// the exported types is returned; per-type failures are logged and skip the
// affected capture.
func (c *Catalog) Build() (*surface.Surface, error) {
	types, err := c.provider.ExportedTypes()
	if err != nil {
		return nil, errors.Wrap(err, "enumerating exported types")
	}

	s := surface.New()
	for _, typ := range types {
		ref := typ.Ref()
		if !c.filter.Eligible(typ.Kind(), ref.Namespace, ref.Name) {
			continue
		}

		switch typ.Kind() {
		case metadata.KindEnum:
			c.addEnum(s, typ)
		case metadata.KindInterface:
			s.Add(c.aggregate(typ, surface.Interface))
		case metadata.KindStruct:
			s.Add(c.aggregate(typ, surface.Struct))
		default:
			s.Add(c.aggregate(typ, surface.Class))
		}
	}

	c.log.Debugw("Surface extracted",
		logger.FieldCount, s.Len(),
		"enums", len(s.Enums),
		"interfaces", len(s.Interfaces),
		"structs", len(s.Structs),
		"classes", len(s.Classes),
		"skipped", c.Skipped,
	)
	return s, nil
}

func (c *Catalog) skip(typ metadata.Type, what string, err error) {
	c.Skipped++
	c.log.Warnw("Skipping "+what,
		logger.FieldType, typ.Ref().FullName(),
		logger.FieldError, err,
	)
}

func (c *Catalog) addEnum(s *surface.Surface, typ metadata.Type) {
	names, err := typ.EnumNames()
	if err != nil {
		c.skip(typ, "enumerants", err)
		return
	}
	ref := typ.Ref()
	s.Enum(ref.Namespace, ref.Name).Merge(names)
}

func (c *Catalog) aggregate(typ metadata.Type, kind surface.AggregateKind) *surface.AggregateDefinition {
	ref := typ.Ref()
	def := &surface.AggregateDefinition{
		TypeDefinition: surface.TypeDefinition{Namespace: ref.Namespace, Name: ref.BaseName()},
		Kind:           kind,
		Self:           ref,
	}

	base, err := typ.BaseType()
	if err != nil {
		c.skip(typ, "base type", err)
	} else if kind != surface.Interface {
		def.Base = base
	}

	if kind == surface.Class {
		def.Interfaces = c.classInterfaces(typ, def.Base)
	} else if ifaces, err := typ.Interfaces(); err != nil {
		c.skip(typ, "interfaces", err)
	} else {
		def.Interfaces = ifaces
	}

	def.Properties = c.properties(typ)
	def.Methods = c.methods(typ)
	if kind == surface.Class {
		def.Constructors = c.constructors(typ)
	}
	return def
}

// classInterfaces is the interface set of a class minus the set of its
// base class, restricted to public interfaces.
func (c *Catalog) classInterfaces(typ metadata.Type, base *typeref.TypeRef) []typeref.TypeRef {
	derived, err := typ.Interfaces()
	if err != nil {
		c.skip(typ, "interfaces", err)
		return nil
	}

	inherited, err := c.interfacesOf(base)
	if err != nil {
		c.skip(typ, "interfaces", err)
		return nil
	}

	var kept []typeref.TypeRef
	for _, iface := range typeref.Except(derived, inherited) {
		if iface.Public {
			kept = append(kept, iface)
		}
	}
	return kept
}

// interfacesOf returns the interface set of base instantiated with base's
// generic arguments. The roots have no interfaces.
func (c *Catalog) interfacesOf(base *typeref.TypeRef) ([]typeref.TypeRef, error) {
	if base == nil || base.IsObject() || base.IsValueTypeRoot() {
		return nil, nil
	}
	def, err := c.provider.Resolve(*base)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving base type %s", base)
	}
	ifaces, err := def.Interfaces()
	if err != nil {
		return nil, errors.Wrapf(err, "interfaces of base type %s", base)
	}
	instantiated := make([]typeref.TypeRef, len(ifaces))
	for i, iface := range ifaces {
		instantiated[i] = iface.Substitute(base.Args, nil)
	}
	return instantiated, nil
}

// declaredHere is the single member predicate: not an accessor and declared
// by typ itself.
func declaredHere(typ metadata.Type, name string, declaring typeref.TypeRef) bool {
	return !IsAccessor(name) && declaring.Key() == typ.Ref().Key()
}

func (c *Catalog) properties(typ metadata.Type) []surface.Property {
	props, err := typ.Properties()
	if err != nil {
		c.skip(typ, "properties", err)
		return nil
	}

	var result []surface.Property
	for _, p := range props {
		if !declaredHere(typ, p.Name, p.DeclaringType) {
			continue
		}
		result = append(result, surface.Property{
			Type:     p.Type,
			Name:     p.Name,
			Readable: p.CanRead,
			Writable: p.CanWrite,
			Static:   p.Static,
			Params:   parameters(p.Params),
		})
	}
	return result
}

func (c *Catalog) methods(typ metadata.Type) []surface.Method {
	methods, err := typ.Methods()
	if err != nil {
		c.skip(typ, "methods", err)
		return nil
	}

	var result []surface.Method
	for _, m := range methods {
		if !declaredHere(typ, m.Name, m.DeclaringType) {
			continue
		}
		result = append(result, surface.Method{
			Name:        m.Name,
			Return:      m.Return,
			Static:      m.Static,
			Generic:     len(m.GenericArgs) > 0,
			GenericArgs: m.GenericArgs,
			Operator:    surface.ResolveOperator(m.Name, m.SpecialName),
			Params:      parameters(m.Params),
		})
	}
	return result
}

func (c *Catalog) constructors(typ metadata.Type) [][]surface.Parameter {
	ctors, err := typ.Constructors()
	if err != nil {
		c.skip(typ, "constructors", err)
		return nil
	}

	var result [][]surface.Parameter
	for _, ctor := range ctors {
		if ctor.DeclaringType.Key() != typ.Ref().Key() {
			continue
		}
		result = append(result, parameters(ctor.Params))
	}
	return result
}

func parameters(params []metadata.Parameter) []surface.Parameter {
	if len(params) == 0 {
		return nil
	}
	result := make([]surface.Parameter, len(params))
	for i, p := range params {
		result[i] = surface.Parameter{Type: p.Type, Name: p.Name}
		if p.IsByRef() {
			result[i].Pass = surface.Ref
			if p.Out {
				result[i].Pass = surface.Out
			}
		}
		if p.HasDefault {
			result[i].Default = &surface.Default{Value: p.Default}
		}
	}
	return result
}
