package surface

// OperatorKind tags a method that overloads an operator.
type OperatorKind int

const (
	NotOperator OperatorKind = iota
	Equality
	Inequality
	Multiply
	Subtract
	Add
	Divide
	UnaryNegate
	// UnknownOperator is a special-name method outside the table; it is
	// rendered under its own name.
	UnknownOperator
)

// Operator is the resolved operator tag of a method.
type Operator struct {
	Kind OperatorKind
	// Name is the metadata name, kept for UnknownOperator.
	Name string
}

var operatorNames = map[string]OperatorKind{
	"op_Equality":      Equality,
	"op_Inequality":    Inequality,
	"op_Multiply":      Multiply,
	"op_Subtraction":   Subtract,
	"op_Addition":      Add,
	"op_Division":      Divide,
	"op_UnaryNegation": UnaryNegate,
}

var operatorTokens = map[OperatorKind]string{
	Equality:    "==",
	Inequality:  "!=",
	Multiply:    "*",
	Subtract:    "-",
	Add:         "+",
	Divide:      "/",
	UnaryNegate: "-",
}

// ResolveOperator tags a method name. Only special-name methods can be
// operators.
func ResolveOperator(name string, specialName bool) Operator {
	if !specialName {
		return Operator{Kind: NotOperator}
	}
	if kind, found := operatorNames[name]; found {
		return Operator{Kind: kind, Name: name}
	}
	return Operator{Kind: UnknownOperator, Name: name}
}

// Token returns the operator spelling, or "" for NotOperator and
// UnknownOperator.
func (o Operator) Token() string {
	return operatorTokens[o.Kind]
}

// IsOperator reports whether o renders with the operator keyword.
func (o Operator) IsOperator() bool {
	return o.Token() != ""
}
