package executor

import (
	"context"
	"errors"

	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/sirupsen/logrus"
)

// HashJoinSpec describes a hash join. LeftVars and RightVars are the
// binding names each side may produce; the join attributes are their
// intersection.
type HashJoinSpec struct {
	Left      Step
	Right     Step
	LeftVars  []string
	RightVars []string

	// LeftJoin keeps left rows without a match.
	LeftJoin bool
}

type hashJoin struct {
	ctx   context.Context
	ec    *Context
	spec  HashJoinSpec
	attrs []string

	left  iter.Iteration[binding.Solution]
	right iter.Iteration[binding.Solution]

	built bool
	table *hashTable

	// Probe side
	cached []binding.Solution
	probe  iter.Iteration[binding.Solution]

	probeRow   binding.Solution
	candidates []int
	pos        int
	matched    bool
}

// NewHashJoin joins two inputs by hashing one side on the shared
// variables. Inner joins build on whichever side runs out first when both
// are read in alternation; left joins always build on the right and probe
// every left row. Output rows take the probe row's bindings first.
func NewHashJoin(ctx context.Context, ec *Context, spec HashJoinSpec, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	left, err := spec.Left.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	right, err := spec.Right.Evaluate(ctx, in)
	if err != nil {
		return nil, errors.Join(err, left.Close())
	}
	j := &hashJoin{
		ctx:   ctx,
		ec:    ec,
		spec:  spec,
		attrs: binding.JoinAttributes(spec.LeftVars, spec.RightVars),
		left:  left,
		right: right,
	}
	return iter.NewLookahead(j.fetch, j.close), nil
}

func (j *hashJoin) build() error {
	span, _ := j.ec.startSpan(j.ctx, "hashJoin build")
	defer span.Finish()

	j.table = newHashTable(j.attrs, j.ec.config().HashJoin.InitialCapacity)
	side := "right"
	var err error
	if j.spec.LeftJoin {
		err = j.buildFrom(j.right)
		j.probe = j.left
	} else {
		side, err = j.alternate()
	}
	if err != nil {
		return evaluationError("hash join", err)
	}

	span.SetTag("build.side", side)
	span.SetTag("build.rows", j.table.len())
	metrics.hashJoinBuildRows.Add(float64(j.table.len()))
	j.ec.log("hashJoin").WithFields(logrus.Fields{
		"side":  side,
		"rows":  j.table.len(),
		"attrs": j.attrs,
	}).Debug("built hash table")
	return nil
}

func (j *hashJoin) buildFrom(it iter.Iteration[binding.Solution]) error {
	for {
		ok, err := it.HasNext()
		if err != nil || !ok {
			return err
		}
		row, err := it.Next()
		if err != nil {
			return err
		}
		j.table.add(row)
	}
}

// alternate pulls one row from each side in turn until one side is
// exhausted. That side becomes the build side; the rows read from the
// other side are probed before its live iteration.
func (j *hashJoin) alternate() (string, error) {
	var leftRows, rightRows []binding.Solution
	for {
		row, ok, err := pull(j.left)
		if err != nil {
			return "", err
		}
		if !ok {
			for _, r := range leftRows {
				j.table.add(r)
			}
			j.cached, j.probe = rightRows, j.right
			return "left", nil
		}
		leftRows = append(leftRows, row)

		row, ok, err = pull(j.right)
		if err != nil {
			return "", err
		}
		if !ok {
			for _, r := range rightRows {
				j.table.add(r)
			}
			j.cached, j.probe = leftRows, j.left
			return "right", nil
		}
		rightRows = append(rightRows, row)
	}
}

// pull returns the next element of it, or false once it is exhausted.
func pull[T any](it iter.Iteration[T]) (T, bool, error) {
	var zero T
	ok, err := it.HasNext()
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := it.Next()
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (j *hashJoin) nextProbe() (binding.Solution, bool, error) {
	if len(j.cached) > 0 {
		row := j.cached[0]
		j.cached = j.cached[1:]
		return row, true, nil
	}
	j.cached = nil
	return pull(j.probe)
}

func (j *hashJoin) fetch() (binding.Solution, bool, error) {
	if !j.built {
		j.built = true
		if err := j.build(); err != nil {
			return nil, false, err
		}
	}
	for {
		for j.pos < len(j.candidates) {
			b := j.table.rows[j.candidates[j.pos]]
			j.pos++
			if merged, ok := binding.Merge(j.probeRow, b); ok {
				j.matched = true
				return merged, true, nil
			}
		}
		if j.probeRow != nil && j.spec.LeftJoin && !j.matched {
			row := j.probeRow
			j.probeRow = nil
			return row, true, nil
		}

		row, ok, err := j.nextProbe()
		if err != nil || !ok {
			return nil, false, err
		}
		j.probeRow = row
		j.candidates = j.table.candidates(row)
		j.pos = 0
		j.matched = false
	}
}

func (j *hashJoin) close() error {
	j.table = nil
	j.cached = nil
	return iter.CloseAll(j.left, j.right)
}

// NewBulkHashJoin materializes the whole left side into a hash table before
// streaming the right side through it. In left join mode the unmatched left
// rows are produced after the right side is exhausted.
//
// Deprecated: use NewHashJoin, which builds on the smaller side.
func NewBulkHashJoin(ctx context.Context, ec *Context, spec HashJoinSpec, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	left, err := spec.Left.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	j := &bulkHashJoin{
		ctx:   ctx,
		ec:    ec,
		spec:  spec,
		in:    in,
		attrs: binding.JoinAttributes(spec.LeftVars, spec.RightVars),
		left:  left,
	}
	return iter.NewLookahead(j.fetch, j.close), nil
}

type bulkHashJoin struct {
	ctx   context.Context
	ec    *Context
	spec  HashJoinSpec
	in    binding.Solution
	attrs []string

	left  iter.Iteration[binding.Solution]
	right iter.Iteration[binding.Solution]
	table *hashTable

	matched    []bool
	rightRow   binding.Solution
	candidates []int
	pos        int

	// Index of the next unmatched left row to emit once the right side is
	// done. Negative while probing.
	unmatched int
}

func (j *bulkHashJoin) build() error {
	span, _ := j.ec.startSpan(j.ctx, "bulkHashJoin build")
	defer span.Finish()

	j.table = newHashTable(j.attrs, j.ec.config().HashJoin.InitialCapacity)
	for {
		row, ok, err := pull(j.left)
		if err != nil {
			return evaluationError("bulk hash join", err)
		}
		if !ok {
			break
		}
		j.table.add(row)
	}
	if j.spec.LeftJoin {
		j.matched = make([]bool, j.table.len())
	}
	metrics.hashJoinBuildRows.Add(float64(j.table.len()))
	j.ec.log("bulkHashJoin").WithField("rows", j.table.len()).Debug("built hash table")

	right, err := j.spec.Right.Evaluate(j.ctx, j.in)
	if err != nil {
		return err
	}
	j.right = right
	j.unmatched = -1
	return nil
}

func (j *bulkHashJoin) fetch() (binding.Solution, bool, error) {
	if j.table == nil {
		if err := j.build(); err != nil {
			return nil, false, err
		}
	}
	for {
		if j.unmatched >= 0 {
			for j.unmatched < len(j.matched) {
				i := j.unmatched
				j.unmatched++
				if !j.matched[i] {
					return j.table.rows[i], true, nil
				}
			}
			return nil, false, nil
		}

		for j.pos < len(j.candidates) {
			i := j.candidates[j.pos]
			j.pos++
			if merged, ok := binding.Merge(j.rightRow, j.table.rows[i]); ok {
				if j.matched != nil {
					j.matched[i] = true
				}
				return merged, true, nil
			}
		}

		row, ok, err := pull(j.right)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			if !j.spec.LeftJoin {
				return nil, false, nil
			}
			j.unmatched = 0
			continue
		}
		j.rightRow = row
		j.candidates = j.table.candidates(row)
		j.pos = 0
	}
}

func (j *bulkHashJoin) close() error {
	j.table = nil
	j.matched = nil
	return iter.CloseAll(j.left, j.right)
}
