package expr

import (
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
)

// Operator is a binary operator.
type Operator int

const (
	OpAnd Operator = iota
	OpOr
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
)

var operatorSymbols = [...]string{
	OpAnd:                "&&",
	OpOr:                 "||",
	OpEqual:              "=",
	OpNotEqual:           "!=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpAdd:                "+",
	OpSubtract:           "-",
	OpMultiply:           "*",
	OpDivide:             "/",
}

func (op Operator) String() string {
	if op >= 0 && int(op) < len(operatorSymbols) {
		return operatorSymbols[op]
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// Binary applies a logical, comparison or arithmetic operator.
type Binary struct {
	Op    Operator
	Left  Expression
	Right Expression
}

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

func (b *Binary) Evaluate(s binding.Solution) (rdf.Term, error) {
	switch b.Op {
	case OpAnd:
		return b.evaluateAnd(s)
	case OpOr:
		return b.evaluateOr(s)
	}

	left, err := b.Left.Evaluate(s)
	if err != nil {
		return nil, err
	}
	right, err := b.Right.Evaluate(s)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case OpEqual:
		return evaluateEqual(left, right)
	case OpNotEqual:
		eq, err := evaluateEqual(left, right)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(eq.(*rdf.Literal).Value == "false"), nil
	case OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual:
		return evaluateOrdering(b.Op, left, right)
	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		return evaluateArithmetic(b.Op, left, right)
	default:
		return nil, fmt.Errorf("unsupported binary operator: %v", b.Op)
	}
}

// Logical operators follow the SPARQL truth tables: an error on one side
// is masked when the other side decides the result.

func (b *Binary) evaluateAnd(s binding.Solution) (rdf.Term, error) {
	left, lerr := Test(b.Left, s)
	if lerr == nil && !left {
		return rdf.NewBooleanLiteral(false), nil
	}
	right, rerr := Test(b.Right, s)
	if rerr == nil && !right {
		return rdf.NewBooleanLiteral(false), nil
	}
	if lerr != nil {
		return nil, lerr
	}
	if rerr != nil {
		return nil, rerr
	}
	return rdf.NewBooleanLiteral(true), nil
}

func (b *Binary) evaluateOr(s binding.Solution) (rdf.Term, error) {
	left, lerr := Test(b.Left, s)
	if lerr == nil && left {
		return rdf.NewBooleanLiteral(true), nil
	}
	right, rerr := Test(b.Right, s)
	if rerr == nil && right {
		return rdf.NewBooleanLiteral(true), nil
	}
	if lerr != nil {
		return nil, lerr
	}
	if rerr != nil {
		return nil, rerr
	}
	return rdf.NewBooleanLiteral(false), nil
}

func evaluateEqual(left, right rdf.Term) (rdf.Term, error) {
	c, err := rdf.Compare(left, right)
	if err == nil {
		return rdf.NewBooleanLiteral(c == 0), nil
	}
	// Terms of unrelated kinds are simply different; two literals of
	// unknown datatypes cannot be decided.
	ll, lok := left.(*rdf.Literal)
	rl, rok := right.(*rdf.Literal)
	if lok && rok && !left.Equals(right) && ll.Language == "" && rl.Language == "" &&
		!isKnownDatatype(ll) && !isKnownDatatype(rl) {
		return nil, fmt.Errorf("%w: cannot compare %v and %v", ErrTypeError, left, right)
	}
	return rdf.NewBooleanLiteral(false), nil
}

func isKnownDatatype(l *rdf.Literal) bool {
	if l.Datatype == nil {
		return true
	}
	switch l.Datatype.IRI {
	case rdf.XSDString.IRI, rdf.XSDBoolean.IRI, rdf.XSDDateTime.IRI, rdf.XSDDate.IRI:
		return true
	}
	return rdf.IsNumericDatatype(l.Datatype.IRI)
}

func evaluateOrdering(op Operator, left, right rdf.Term) (rdf.Term, error) {
	c, err := rdf.Compare(left, right)
	if err != nil {
		return nil, fmt.Errorf("%w: %v %s %v", ErrTypeError, left, op, right)
	}
	var result bool
	switch op {
	case OpLessThan:
		result = c < 0
	case OpLessThanOrEqual:
		result = c <= 0
	case OpGreaterThan:
		result = c > 0
	case OpGreaterThanOrEqual:
		result = c >= 0
	}
	return rdf.NewBooleanLiteral(result), nil
}

// Arithmetic operators

func evaluateArithmetic(op Operator, left, right rdf.Term) (rdf.Term, error) {
	lv, lk := rdf.NumericValue(left)
	rv, rk := rdf.NumericValue(right)
	if lk == rdf.NotNumeric || rk == rdf.NotNumeric {
		return nil, fmt.Errorf("%w: %v %s %v", ErrTypeError, left, op, right)
	}
	kind := max(lk, rk)

	var result float64
	switch op {
	case OpAdd:
		result = lv + rv
	case OpSubtract:
		result = lv - rv
	case OpMultiply:
		result = lv * rv
	case OpDivide:
		if kind <= rdf.NumericDecimal {
			if rv == 0 {
				return nil, fmt.Errorf("%w: division by zero", ErrTypeError)
			}
			// Integer division yields a decimal
			kind = rdf.NumericDecimal
		}
		result = lv / rv
	}
	return rdf.NewNumericLiteral(result, kind), nil
}

// Add returns the numeric sum of two terms. It is used by SUM and AVG.
func Add(left, right rdf.Term) (rdf.Term, error) {
	return evaluateArithmetic(OpAdd, left, right)
}

// Divide returns left / right with SPARQL numeric promotion.
func Divide(left, right rdf.Term) (rdf.Term, error) {
	return evaluateArithmetic(OpDivide, left, right)
}
