package executor

import (
	"context"
	"errors"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/expr"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
)

// nestedLoopJoin evaluates the right step once per left row.
type nestedLoopJoin struct {
	ctx   context.Context
	right Step
	left  iter.Iteration[binding.Solution]

	// Optional mode
	optional  bool
	condition expr.Expression
	scopeVars []string

	leftRow binding.Solution
	current iter.Iteration[binding.Solution]
	matched bool
}

// NewNestedLoopJoin joins left and right by evaluating right against every
// row of left. Rows are produced lazily, in left order.
func NewNestedLoopJoin(ctx context.Context, ec *Context, left, right Step, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	l, err := left.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	return NewNestedJoin(ctx, ec, l, right)
}

// NewNestedJoin joins an already open outer iteration with inner, which is
// re-evaluated for every outer row. Outer order is preserved, which keeps
// index-ordered inputs sorted. The join owns outer.
func NewNestedJoin(ctx context.Context, _ *Context, outer iter.Iteration[binding.Solution], inner Step) (iter.Iteration[binding.Solution], error) {
	j := &nestedLoopJoin{ctx: ctx, right: inner, left: outer}
	return iter.NewLookahead(j.fetch, j.close), nil
}

// LeftJoinSpec describes an OPTIONAL.
type LeftJoinSpec struct {
	Left  Step
	Right Step

	// Condition filters the extended rows. Nil accepts every row.
	Condition expr.Expression

	// ScopeVars are the variables visible to Condition. Nil exposes the
	// whole merged row.
	ScopeVars []string
}

// NewLeftJoin is a nested loop join that yields a left row unextended when
// no right row satisfies the condition.
func NewLeftJoin(ctx context.Context, _ *Context, spec LeftJoinSpec, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	l, err := spec.Left.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	j := &nestedLoopJoin{
		ctx:       ctx,
		right:     spec.Right,
		left:      l,
		optional:  true,
		condition: spec.Condition,
		scopeVars: spec.ScopeVars,
	}
	return iter.NewLookahead(j.fetch, j.close), nil
}

func (j *nestedLoopJoin) fetch() (binding.Solution, bool, error) {
	for {
		if j.current != nil {
			row, ok, err := j.nextRight()
			if err != nil {
				return nil, false, err
			}
			if ok {
				j.matched = true
				return row, true, nil
			}
			err = j.current.Close()
			j.current = nil
			if err != nil {
				return nil, false, err
			}
			if j.optional && !j.matched {
				return j.leftRow, true, nil
			}
		}

		ok, err := j.left.HasNext()
		if err != nil || !ok {
			return nil, false, err
		}
		if j.leftRow, err = j.left.Next(); err != nil {
			return nil, false, err
		}
		j.matched = false
		if j.current, err = j.right.Evaluate(j.ctx, j.leftRow); err != nil {
			return nil, false, err
		}
	}
}

// nextRight returns the next right row joining the current left row.
func (j *nestedLoopJoin) nextRight() (binding.Solution, bool, error) {
	for {
		ok, err := j.current.HasNext()
		if errors.Is(err, iter.ErrNoMoreElements) {
			return nil, false, nil
		}
		if err != nil || !ok {
			return nil, false, err
		}
		r, err := j.current.Next()
		if errors.Is(err, iter.ErrNoMoreElements) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		merged, ok := binding.Merge(j.leftRow, r)
		if !ok {
			continue
		}
		if j.condition != nil && !j.accepts(merged) {
			continue
		}
		return merged, true, nil
	}
}

func (j *nestedLoopJoin) accepts(row binding.Solution) bool {
	if j.scopeVars != nil {
		row = row.Project(j.scopeVars)
	}
	ok, err := expr.Test(j.condition, row)
	return err == nil && ok
}

func (j *nestedLoopJoin) close() error {
	err := iter.CloseAll(j.left, j.current)
	j.current = nil
	return err
}

// MergeJoinSpec joins two inputs sorted ascending on Var.
type MergeJoinSpec struct {
	Left  Step
	Right Step
	Var   string
}

type mergeJoin struct {
	ec    *Context
	v     string
	left  iter.Iteration[binding.Solution]
	right *iter.PeekMark[binding.Solution]

	leftRow binding.Solution
	markKey rdf.Term
	inRun   bool
}

// NewMergeJoin joins two inputs that are both sorted by the context's
// comparator on spec.Var. Runs of equal right keys are replayed for every
// left row with that key. Rows leaving Var unbound never join.
func NewMergeJoin(ctx context.Context, ec *Context, spec MergeJoinSpec, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	left, err := spec.Left.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	right, err := spec.Right.Evaluate(ctx, in)
	if err != nil {
		return nil, errors.Join(err, left.Close())
	}
	j := &mergeJoin{ec: ec, v: spec.Var, left: left, right: iter.NewPeekMark(right)}
	return iter.NewLookahead(j.fetch, func() error {
		return iter.CloseAll(j.left, j.right)
	}), nil
}

func (j *mergeJoin) fetch() (binding.Solution, bool, error) {
	for {
		if j.inRun {
			row, ok, err := j.nextInRun()
			if err != nil || ok {
				return row, ok, err
			}
			j.inRun = false
		}

		ok, err := j.left.HasNext()
		if err != nil || !ok {
			return nil, false, err
		}
		if j.leftRow, err = j.left.Next(); err != nil {
			return nil, false, err
		}
		key := j.leftRow[j.v]
		if key == nil {
			continue
		}

		if j.right.IsMarked() {
			if j.ec.compare(j.markKey, key) == 0 {
				if err := j.right.Reset(); err != nil {
					return nil, false, err
				}
				j.inRun = true
				continue
			}
			j.right.Unmark()
		}

		found, err := j.seek()
		if err != nil {
			return nil, false, err
		}
		if !found {
			if ok, err := j.right.HasNext(); err != nil || !ok {
				// Nothing left on the right can join.
				return nil, false, err
			}
			continue
		}
		j.right.Mark()
		j.markKey = key
		j.inRun = true
	}
}

// seek skips right rows ordered before the current left key and reports
// whether the next right row has that key.
func (j *mergeJoin) seek() (bool, error) {
	key := j.leftRow[j.v]
	for {
		ok, err := j.right.HasNext()
		if err != nil || !ok {
			return false, err
		}
		r, err := j.right.Peek()
		if err != nil {
			return false, err
		}
		if rk := r[j.v]; rk != nil {
			c := j.ec.compare(rk, key)
			if c > 0 {
				return false, nil
			}
			if c == 0 {
				return true, nil
			}
		}
		if _, err := j.right.Next(); err != nil {
			return false, err
		}
	}
}

func (j *mergeJoin) nextInRun() (binding.Solution, bool, error) {
	for {
		ok, err := j.right.HasNext()
		if err != nil || !ok {
			return nil, false, err
		}
		r, err := j.right.Peek()
		if err != nil {
			return nil, false, err
		}
		rk := r[j.v]
		if rk == nil || j.ec.compare(rk, j.leftRow[j.v]) != 0 {
			return nil, false, nil
		}
		if _, err := j.right.Next(); err != nil {
			return nil, false, err
		}
		if merged, ok := binding.Merge(j.leftRow, r); ok {
			return merged, true, nil
		}
	}
}
