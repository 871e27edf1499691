package typeref

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/dellis1972/pcl-gen/internal/errors"
)

// typeExpr is the grammar of CLR type names:
//
//	System.Collections.Generic.Dictionary`2[System.String,System.Int32[]]
//	Outer+Inner
//	!T&
type typeExpr struct {
	Param    *string       `parser:"(  '!' @Ident"`
	Segments []string      `parser:" | @Ident ( @( '.' | '+' ) @Ident )* )"`
	Args     []*typeExpr   `parser:"( '[' @@ ( ',' @@ )* ']' )?"`
	Suffixes []*suffixExpr `parser:"@@*"`
}

type suffixExpr struct {
	Array   *arrayExpr `parser:"  @@"`
	Pointer bool       `parser:"| @'*'"`
	ByRef   bool       `parser:"| @'&'"`
}

type arrayExpr struct {
	Commas []string `parser:"'[' @','* ']'"`
}

var typeNameLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: "[A-Za-z_<][A-Za-z0-9_<>`$]*"},
	{Name: "Punct", Pattern: `[.+\[\],*&!]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var typeNameParser = participle.MustBuild[typeExpr](
	participle.Lexer(typeNameLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(4),
)

// Parse reads a CLR type name. Generic parameters ("!T") get position 0;
// callers that know the declaring generic parameter list fix positions with
// BindParams.
func Parse(s string) (TypeRef, error) {
	expr, err := typeNameParser.ParseString("", s)
	if err != nil {
		return TypeRef{}, errors.Wrapf(err, "parsing type name %q", s)
	}
	return expr.toRef(), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) TypeRef {
	ref, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ref
}

func (e *typeExpr) toRef() TypeRef {
	var ref TypeRef
	if e.Param != nil {
		ref = Param(OwnerType, 0, *e.Param)
	} else {
		ref = namedFromSegments(e.Segments)
		for _, arg := range e.Args {
			ref.Args = append(ref.Args, arg.toRef())
		}
	}
	for _, s := range e.Suffixes {
		switch {
		case s.Array != nil:
			ref = ArrayOf(ref, len(s.Array.Commas)+1)
		case s.Pointer:
			ref = PointerTo(ref)
		case s.ByRef:
			ref = ByRefTo(ref)
		}
	}
	return ref
}

// namedFromSegments splits "A . B . Outer + Inner" into namespace "A.B" and
// name "Inner". A nested type takes the namespace of its outermost
// enclosing type.
func namedFromSegments(segments []string) TypeRef {
	var head []string
	var name string
	nested := false
	for _, seg := range segments {
		switch seg {
		case ".":
		case "+":
			nested = true
		default:
			if !nested {
				head = append(head, seg)
			}
			name = seg
		}
	}
	return Of(strings.Join(head[:len(head)-1], "."), name)
}

// BindParams fixes the positions of generic parameters by name. typeParams
// and methodParams list declared parameter names in order; a method
// parameter shadows a type parameter of the same name.
func (t TypeRef) BindParams(typeParams, methodParams []string) TypeRef {
	switch t.Shape {
	case GenericParam:
		for i, name := range methodParams {
			if name == t.Name {
				t.Owner, t.Position = OwnerMethod, i
				return t
			}
		}
		for i, name := range typeParams {
			if name == t.Name {
				t.Owner, t.Position = OwnerType, i
				return t
			}
		}
		return t
	case Array, Pointer, ByRef:
		elem := t.Elem.BindParams(typeParams, methodParams)
		t.Elem = &elem
		return t
	}
	if len(t.Args) == 0 {
		return t
	}
	args := make([]TypeRef, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.BindParams(typeParams, methodParams)
	}
	t.Args = args
	return t
}
