package executor

import (
	"context"
	"io"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/collection"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/expr"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/sirupsen/logrus"
)

// NoLimit disables the limit of an OrderSpec.
const NoLimit int64 = -1

// OrderCondition is one ORDER BY key.
type OrderCondition struct {
	Expr       expr.Expression
	Descending bool
}

// OrderSpec describes an ORDER BY, optionally combined with the DISTINCT
// and LIMIT applied on top of it.
type OrderSpec struct {
	Input      Step
	Conditions []OrderCondition

	// Limit caps the number of rows. Use NoLimit for all rows.
	Limit    int64
	Distinct bool
}

type orderIteration struct {
	ctx  context.Context
	ec   *Context
	spec OrderSpec
	in   binding.Solution

	input iter.Iteration[binding.Solution]
	bag   *collection.SortedBag
	out   iter.Iteration[binding.Solution]
}

// NewOrderIteration sorts the rows of spec.Input. Rows that compare equal
// on every condition are ordered by their bindings, so distinct rows never
// collapse. With a limit only the first Limit rows are kept while the
// input is read.
func NewOrderIteration(ctx context.Context, ec *Context, spec OrderSpec, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	o := &orderIteration{ctx: ctx, ec: ec, spec: spec, in: in}
	return iter.NewLookahead(o.fetch, o.close), nil
}

// comparator orders rows by the conditions. A condition that fails to
// evaluate sorts as unbound.
func (o *orderIteration) comparator() collection.Comparator {
	return func(a, b binding.Solution) int {
		for _, cond := range o.spec.Conditions {
			c := o.ec.compare(evaluateKey(cond.Expr, a), evaluateKey(cond.Expr, b))
			if cond.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return binding.Compare(a, b)
	}
}

func evaluateKey(e expr.Expression, s binding.Solution) rdf.Term {
	t, err := e.Evaluate(s)
	if err != nil {
		return nil
	}
	return t
}

func (o *orderIteration) fill() error {
	span, ctx := o.ec.startSpan(o.ctx, "order fill")
	defer span.Finish()

	input, err := o.spec.Input.Evaluate(ctx, o.in)
	if err != nil {
		return err
	}
	o.input = input
	o.bag = o.ec.Collections.NewSortedBag(o.comparator(), o.spec.Limit, o.spec.Distinct)

	rows := 0
	for {
		row, ok, err := pull(input)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rows++
		if err := o.bag.Add(row); err != nil {
			return evaluationError("order", err)
		}
	}
	err = input.Close()
	o.input = nil
	if err != nil {
		return err
	}

	if o.out, err = o.bag.Iterator(); err != nil {
		return evaluationError("order", err)
	}
	span.SetTag("rows", rows)
	o.ec.log("order").WithFields(logrus.Fields{
		"rows":     rows,
		"limit":    o.spec.Limit,
		"distinct": o.spec.Distinct,
	}).Debug("sorted input")
	return nil
}

func (o *orderIteration) fetch() (binding.Solution, bool, error) {
	if o.bag == nil {
		if err := o.fill(); err != nil {
			return nil, false, err
		}
	}
	row, ok, err := pull(o.out)
	if err != nil {
		return nil, false, evaluationError("order", err)
	}
	return row, ok, nil
}

func (o *orderIteration) close() error {
	var closers []io.Closer
	if o.input != nil {
		closers = append(closers, o.input)
	}
	if o.bag != nil {
		closers = append(closers, o.bag)
	}
	if o.out != nil {
		closers = append(closers, o.out)
	}
	return iter.CloseAll(closers...)
}
