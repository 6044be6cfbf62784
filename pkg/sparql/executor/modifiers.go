package executor

import (
	"context"

	"github.com/aleksaelezovic/sparqlexec/internal/encoding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/expr"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
)

// FilterStep keeps the rows for which Condition is true. Rows whose
// condition fails to evaluate are dropped.
type FilterStep struct {
	Input     Step
	Condition expr.Expression
}

func (s *FilterStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	it, err := s.Input.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	return iter.Filter(it, func(row binding.Solution) (bool, error) {
		return expr.Test(s.Condition, row)
	}), nil
}

// ProjectionStep keeps only Vars.
type ProjectionStep struct {
	Input Step
	Vars  []string
}

func (s *ProjectionStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	it, err := s.Input.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	return iter.Convert(it, func(row binding.Solution) (binding.Solution, error) {
		return row.Project(s.Vars), nil
	}), nil
}

// SliceStep skips Offset rows and yields at most Limit rows. A negative
// Limit is unlimited.
type SliceStep struct {
	Input  Step
	Offset int64
	Limit  int64
}

func (s *SliceStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	it, err := s.Input.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	if s.Offset > 0 {
		it = iter.Offset(it, s.Offset)
	}
	if s.Limit >= 0 {
		it = iter.Limit(it, s.Limit)
	}
	return it, nil
}

// DistinctStep drops repeated rows. Seen rows are kept in a collection set
// and spill with it.
type DistinctStep struct {
	Context *Context
	Input   Step
}

func (s *DistinctStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	it, err := s.Input.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	enc := encoding.NewTermEncoder()
	return iter.Distinct(it, enc.EncodeSolution, s.Context.Collections.NewSet()), nil
}

// UnionStep yields the rows of Left followed by the rows of Right. Right
// is evaluated once Left is exhausted.
type UnionStep struct {
	Left  Step
	Right Step
}

func (s *UnionStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	left, err := s.Left.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	var right iter.Iteration[binding.Solution]
	current := left
	return iter.NewLookahead(func() (binding.Solution, bool, error) {
		for {
			ok, err := current.HasNext()
			if err != nil {
				return nil, false, err
			}
			if ok {
				row, err := current.Next()
				return row, err == nil, err
			}
			if right != nil {
				return nil, false, nil
			}
			if right, err = s.Right.Evaluate(ctx, in); err != nil {
				return nil, false, err
			}
			current = right
		}
	}, func() error {
		return iter.CloseAll(left, right)
	}), nil
}
