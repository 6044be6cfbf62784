// Package expr evaluates value expressions against solutions: the join
// conditions, filters, order keys and aggregate arguments of a plan.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
)

var (
	// ErrTypeError is returned when operands have unsuitable types.
	ErrTypeError = errors.New("type error")

	// ErrUnbound is returned when an expression reads an unbound variable.
	ErrUnbound = errors.New("unbound variable")
)

// Expression computes a term from a solution.
type Expression interface {
	Evaluate(s binding.Solution) (rdf.Term, error)
	String() string
}

// Var reads a variable.
type Var struct {
	Name string
}

func (v *Var) Evaluate(s binding.Solution) (rdf.Term, error) {
	t := s.Get(v.Name)
	if t == nil {
		return nil, fmt.Errorf("%w: ?%s", ErrUnbound, v.Name)
	}
	return t, nil
}

func (v *Var) String() string { return "?" + v.Name }

// Const is a fixed term.
type Const struct {
	Term rdf.Term
}

func (c *Const) Evaluate(binding.Solution) (rdf.Term, error) {
	if c.Term == nil {
		return nil, fmt.Errorf("%w: nil constant", ErrTypeError)
	}
	return c.Term, nil
}

func (c *Const) String() string { return c.Term.String() }

// Bound tests whether a variable is bound.
type Bound struct {
	Name string
}

func (b *Bound) Evaluate(s binding.Solution) (rdf.Term, error) {
	return rdf.NewBooleanLiteral(s.Has(b.Name)), nil
}

func (b *Bound) String() string { return "BOUND(?" + b.Name + ")" }

// Not negates the effective boolean value of its operand.
type Not struct {
	Operand Expression
}

func (n *Not) Evaluate(s binding.Solution) (rdf.Term, error) {
	ebv, err := Test(n.Operand, s)
	if err != nil {
		return nil, err
	}
	return rdf.NewBooleanLiteral(!ebv), nil
}

func (n *Not) String() string { return "!" + n.Operand.String() }

// Shorthand constructors used when assembling plans by hand.

func V(name string) *Var { return &Var{Name: name} }

func C(term rdf.Term) *Const { return &Const{Term: term} }

func And(l, r Expression) *Binary { return &Binary{Op: OpAnd, Left: l, Right: r} }

func Or(l, r Expression) *Binary { return &Binary{Op: OpOr, Left: l, Right: r} }

func Eq(l, r Expression) *Binary { return &Binary{Op: OpEqual, Left: l, Right: r} }

func Lt(l, r Expression) *Binary { return &Binary{Op: OpLessThan, Left: l, Right: r} }

func Gt(l, r Expression) *Binary { return &Binary{Op: OpGreaterThan, Left: l, Right: r} }

// Test evaluates e and returns its effective boolean value.
func Test(e Expression, s binding.Solution) (bool, error) {
	t, err := e.Evaluate(s)
	if err != nil {
		return false, err
	}
	return EffectiveBooleanValue(t)
}

// EffectiveBooleanValue computes the EBV of a term
func EffectiveBooleanValue(term rdf.Term) (bool, error) {
	lit, ok := term.(*rdf.Literal)
	if !ok {
		return false, fmt.Errorf("%w: no boolean value for %v", ErrTypeError, term)
	}

	if lit.Datatype != nil {
		switch lit.Datatype.IRI {
		case rdf.XSDBoolean.IRI:
			switch strings.TrimSpace(lit.Value) {
			case "true", "1":
				return true, nil
			case "false", "0":
				return false, nil
			}
			return false, nil
		case rdf.XSDString.IRI:
			return lit.Value != "", nil
		}
		if v, kind := rdf.NumericValue(lit); kind != rdf.NotNumeric {
			return v != 0 && !math.IsNaN(v), nil
		}
		if rdf.IsNumericDatatype(lit.Datatype.IRI) {
			// Malformed numeric literal
			return false, nil
		}
		return false, fmt.Errorf("%w: no boolean value for %v", ErrTypeError, term)
	}
	return lit.Value != "", nil
}
