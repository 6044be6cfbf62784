// Package aggregate implements the SPARQL aggregate functions as
// collectors that fold one group's values into a result.
package aggregate

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/expr"
)

// Kind is an aggregate function.
type Kind int

const (
	Count Kind = iota
	Min
	Max
	Sum
	Avg
	Sample
	GroupConcat
)

func (k Kind) String() string {
	switch k {
	case Count:
		return "COUNT"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	case Sum:
		return "SUM"
	case Avg:
		return "AVG"
	case Sample:
		return "SAMPLE"
	case GroupConcat:
		return "GROUP_CONCAT"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DefaultSeparator joins GROUP_CONCAT values when no separator is given.
const DefaultSeparator = " "

// Spec describes one aggregate of a GROUP BY.
type Spec struct {
	Kind Kind

	// Var receives the result.
	Var string

	// Arg is the argument expression. A nil Arg is COUNT(*).
	Arg expr.Expression

	Distinct bool

	// Separator for GROUP_CONCAT. Nil means DefaultSeparator.
	Separator *string
}

func (s *Spec) String() string {
	arg := "*"
	if s.Arg != nil {
		arg = s.Arg.String()
	}
	if s.Distinct {
		arg = "DISTINCT " + arg
	}
	return fmt.Sprintf("(%s(%s) AS ?%s)", s.Kind, arg, s.Var)
}

func (s *Spec) separator() string {
	if s.Separator == nil {
		return DefaultSeparator
	}
	return *s.Separator
}

// ErrEmptyGroup is reported by MIN, MAX and SAMPLE over no values.
var ErrEmptyGroup = errors.New("aggregate over empty group")

// Collector folds the values of one aggregate within one group.
type Collector struct {
	kind      Kind
	separator string

	count  int64
	value  rdf.Term
	concat strings.Builder
	err    error
}

// NewCollector creates the collector for spec.
func NewCollector(spec *Spec) *Collector {
	c := &Collector{kind: spec.Kind}
	if spec.Kind == GroupConcat {
		c.separator = spec.separator()
	}
	return c
}

// coin decides whether SAMPLE replaces its current value.
var coin = func() bool { return rand.IntN(2) == 0 }

// Add folds in one value. For COUNT(*) v is ignored.
func (c *Collector) Add(v rdf.Term) {
	switch c.kind {
	case Count:
		c.count++

	case Min:
		if c.value == nil || rdf.OrderCompare(v, c.value) < 0 {
			c.value = v
		}

	case Max:
		if c.value == nil || rdf.OrderCompare(v, c.value) > 0 {
			c.value = v
		}

	case Sum, Avg:
		if c.err != nil {
			return
		}
		c.count++
		if c.value == nil {
			if !rdf.IsNumeric(v) {
				c.err = fmt.Errorf("%w: %s of non-numeric %v", expr.ErrTypeError, c.kind, v)
				return
			}
			c.value = v
			return
		}
		sum, err := expr.Add(c.value, v)
		if err != nil {
			c.err = err
			return
		}
		c.value = sum

	case Sample:
		if c.value == nil || coin() {
			c.value = v
		}

	case GroupConcat:
		if c.err != nil {
			return
		}
		var s string
		switch t := v.(type) {
		case *rdf.Literal:
			s = t.Value
		case *rdf.NamedNode:
			s = t.IRI
		default:
			c.err = fmt.Errorf("%w: GROUP_CONCAT of %v", expr.ErrTypeError, v)
			return
		}
		if c.count > 0 {
			c.concat.WriteString(c.separator)
		}
		c.concat.WriteString(s)
		c.count++
	}
}

// Value returns the aggregate result. Errors, including a type error seen
// by an earlier Add, leave the result unbound.
func (c *Collector) Value() (rdf.Term, error) {
	switch c.kind {
	case Count:
		return rdf.NewIntegerLiteral(c.count), nil

	case Sum:
		if c.err != nil {
			return nil, c.err
		}
		if c.value == nil {
			return rdf.NewIntegerLiteral(0), nil
		}
		return c.value, nil

	case Avg:
		if c.err != nil {
			return nil, c.err
		}
		if c.count == 0 {
			return rdf.NewIntegerLiteral(0), nil
		}
		return expr.Divide(c.value, rdf.NewIntegerLiteral(c.count))

	case Min, Max, Sample:
		if c.value == nil {
			return nil, ErrEmptyGroup
		}
		return c.value, nil

	case GroupConcat:
		if c.err != nil {
			return nil, c.err
		}
		return rdf.NewLiteral(c.concat.String()), nil

	default:
		return nil, fmt.Errorf("unknown aggregate %v", c.kind)
	}
}
