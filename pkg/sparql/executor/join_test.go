package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/expr"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashJoin_Example(t *testing.T) {
	ec := NewContext()
	left := values(
		sol("x", iri("A"), "y", iri("B")),
		sol("x", iri("A"), "y", iri("C")),
	)
	right := values(sol("x", iri("A"), "z", iri("D")))

	it, err := NewHashJoin(context.Background(), ec, HashJoinSpec{
		Left: left, Right: right,
		LeftVars: []string{"x", "y"}, RightVars: []string{"x", "z"},
	}, binding.Empty)
	assert.ElementsMatch(t, []binding.Solution{
		sol("x", iri("A"), "y", iri("B"), "z", iri("D")),
		sol("x", iri("A"), "y", iri("C"), "z", iri("D")),
	}, collect(t, it, err))
}

// joinInputs returns a left side with n rows over ?x and ?y and a right
// side with m rows over ?x and ?z. Some ?x values only occur on one side.
func joinInputs(n, m int) (left, right []binding.Solution) {
	for i := 0; i < n; i++ {
		left = append(left, sol("x", num(int64(i%5)), "y", num(int64(i))))
	}
	for i := 0; i < m; i++ {
		right = append(right, sol("x", num(int64(i%7)), "z", num(int64(i))))
	}
	return left, right
}

func TestJoinEquivalence(t *testing.T) {
	ctx := context.Background()
	ec := NewContext()
	vars := func(spec *HashJoinSpec) {
		spec.LeftVars = []string{"x", "y"}
		spec.RightVars = []string{"x", "z"}
	}

	for _, sizes := range [][2]int{{3, 20}, {20, 3}, {10, 10}, {0, 5}, {5, 0}} {
		t.Run(fmt.Sprintf("%dx%d", sizes[0], sizes[1]), func(t *testing.T) {
			run := func(it iter.Iteration[binding.Solution], err error) []string {
				return canonical(collect(t, it, err))
			}
			l, r := joinInputs(sizes[0], sizes[1])
			want := run(NewNestedLoopJoin(ctx, ec, values(l...), values(r...), binding.Empty))

			spec := HashJoinSpec{Left: values(l...), Right: values(r...)}
			vars(&spec)
			assert.Equal(t, want, run(NewHashJoin(ctx, ec, spec, binding.Empty)), "hash join")
			assert.Equal(t, want, run(NewBulkHashJoin(ctx, ec, spec, binding.Empty)), "bulk hash join")

			sorted := func(rows []binding.Solution) Step {
				return &OrderStep{Context: ec, OrderSpec: OrderSpec{
					Input:      values(rows...),
					Conditions: []OrderCondition{{Expr: expr.V("x")}},
					Limit:      NoLimit,
				}}
			}
			merged := run(NewMergeJoin(ctx, ec, MergeJoinSpec{Left: sorted(l), Right: sorted(r), Var: "x"}, binding.Empty))
			assert.Equal(t, want, merged, "merge join")
		})
	}
}

// partialInputs share ?x and ?y, but ?y is only bound in some rows.
func partialInputs() (left, right []binding.Solution) {
	left = []binding.Solution{
		sol("x", iri("A")),
		sol("x", iri("A"), "y", iri("B")),
		sol("x", iri("C")),
		sol("x", iri("A"), "y", iri("D")),
	}
	right = []binding.Solution{
		sol("x", iri("A"), "y", iri("B"), "z", iri("Z")),
		sol("x", iri("A"), "z", iri("W")),
	}
	return left, right
}

func TestJoinEquivalence_PartiallyBoundKey(t *testing.T) {
	ctx := context.Background()
	ec := NewContext()
	run := func(it iter.Iteration[binding.Solution], err error) []string {
		return canonical(collect(t, it, err))
	}
	l, r := partialInputs()
	want := run(NewNestedLoopJoin(ctx, ec, values(l...), values(r...), binding.Empty))
	require.Len(t, want, 5)

	lv, rv := []string{"x", "y"}, []string{"x", "y", "z"}
	for _, spec := range []HashJoinSpec{
		{Left: values(l...), Right: values(r...), LeftVars: lv, RightVars: rv},
		{Left: values(r...), Right: values(l...), LeftVars: rv, RightVars: lv},
	} {
		assert.Equal(t, want, run(NewHashJoin(ctx, ec, spec, binding.Empty)), "hash join")
		assert.Equal(t, want, run(NewBulkHashJoin(ctx, ec, spec, binding.Empty)), "bulk hash join")
	}
}

func TestLeftOuterCompleteness(t *testing.T) {
	ctx := context.Background()
	ec := NewContext()
	run := func(it iter.Iteration[binding.Solution], err error) []binding.Solution {
		return collect(t, it, err)
	}
	l, r := joinInputs(12, 4)

	optional := run(NewLeftJoin(ctx, ec, LeftJoinSpec{Left: values(l...), Right: values(r...)}, binding.Empty))
	spec := HashJoinSpec{
		Left: values(l...), Right: values(r...),
		LeftVars: []string{"x", "y"}, RightVars: []string{"x", "z"},
		LeftJoin: true,
	}
	hashed := run(NewHashJoin(ctx, ec, spec, binding.Empty))
	bulk := run(NewBulkHashJoin(ctx, ec, spec, binding.Empty))

	assert.Equal(t, canonical(optional), canonical(hashed))
	assert.Equal(t, canonical(optional), canonical(bulk))

	pl, pr := partialInputs()
	partial := run(NewLeftJoin(ctx, ec, LeftJoinSpec{Left: values(pl...), Right: values(pr...)}, binding.Empty))
	require.Len(t, partial, 6)
	assert.Contains(t, partial, sol("x", iri("C")))
	partialSpec := HashJoinSpec{
		Left: values(pl...), Right: values(pr...),
		LeftVars: []string{"x", "y"}, RightVars: []string{"x", "y", "z"},
		LeftJoin: true,
	}
	assert.Equal(t, canonical(partial), canonical(run(NewHashJoin(ctx, ec, partialSpec, binding.Empty))))
	assert.Equal(t, canonical(partial), canonical(run(NewBulkHashJoin(ctx, ec, partialSpec, binding.Empty))))

	for _, left := range l {
		var matches, bare int
		for _, row := range optional {
			if !row.Get("y").Equals(left.Get("y")) {
				continue
			}
			if row.Has("z") {
				matches++
			} else {
				bare++
			}
		}
		if matches == 0 {
			assert.Equal(t, 1, bare, "left row %v", left)
		} else {
			assert.Equal(t, 0, bare, "left row %v", left)
		}
	}
}

func TestLeftJoin_Condition(t *testing.T) {
	ctx := context.Background()
	ec := NewContext()
	left := values(sol("x", num(1)), sol("x", num(5)))
	right := values(sol("v", num(3)))

	t.Run("filters extensions", func(t *testing.T) {
		it, err := NewLeftJoin(ctx, ec, LeftJoinSpec{
			Left:      left,
			Right:     right,
			Condition: expr.Lt(expr.V("x"), expr.V("v")),
		}, binding.Empty)
		assert.ElementsMatch(t, []binding.Solution{
			sol("x", num(1), "v", num(3)),
			sol("x", num(5)),
		}, collect(t, it, err))
	})

	t.Run("only sees scope variables", func(t *testing.T) {
		it, err := NewLeftJoin(ctx, ec, LeftJoinSpec{
			Left:      left,
			Right:     right,
			Condition: expr.Lt(expr.V("x"), expr.V("v")),
			ScopeVars: []string{"x"},
		}, binding.Empty)
		// ?v is out of scope, so the condition errors and counts as false.
		assert.ElementsMatch(t, []binding.Solution{
			sol("x", num(1)),
			sol("x", num(5)),
		}, collect(t, it, err))
	})
}

// closedRight returns iterations that were closed from elsewhere.
type closedRight struct{}

func (closedRight) Evaluate(context.Context, binding.Solution) (iter.Iteration[binding.Solution], error) {
	return iter.NewLookahead(func() (binding.Solution, bool, error) {
		return nil, false, iter.ErrNoMoreElements
	}, nil), nil
}

func TestLeftJoin_RightClosedConcurrently(t *testing.T) {
	it, err := NewLeftJoin(context.Background(), NewContext(), LeftJoinSpec{
		Left:  values(sol("x", num(1))),
		Right: closedRight{},
	}, binding.Empty)
	assert.Equal(t, []binding.Solution{sol("x", num(1))}, collect(t, it, err))
}

func TestHashJoin_EmptyKeys(t *testing.T) {
	ctx := context.Background()
	ec := NewContext()
	right := []binding.Solution{sol("x", num(1), "z", num(1)), sol("x", num(2), "z", num(2))}

	t.Run("empty probe row matches every bucket", func(t *testing.T) {
		it, err := NewHashJoin(ctx, ec, HashJoinSpec{
			Left: values(binding.Empty), Right: values(right...),
			LeftVars: []string{"x"}, RightVars: []string{"x", "z"},
			LeftJoin: true,
		}, binding.Empty)
		assert.ElementsMatch(t, right, collect(t, it, err))
	})

	t.Run("no shared variables is a cross product", func(t *testing.T) {
		it, err := NewHashJoin(ctx, ec, HashJoinSpec{
			Left: values(sol("a", num(1)), sol("a", num(2))), Right: values(right...),
			LeftVars: []string{"a"}, RightVars: []string{"x", "z"},
		}, binding.Empty)
		assert.Len(t, collect(t, it, err), 4)
	})

	t.Run("unbound build key matches every probe", func(t *testing.T) {
		it, err := NewHashJoin(ctx, ec, HashJoinSpec{
			Left: values(right...), Right: values(sol("w", num(9))),
			LeftVars: []string{"x", "z"}, RightVars: []string{"x", "w"},
		}, binding.Empty)
		assert.Len(t, collect(t, it, err), 2)
	})
}

func TestHashJoin_SameValueDifferentTerm(t *testing.T) {
	// The keys hash alike by value but the terms are not identical.
	left := values(sol("x", rdf.NewLiteralWithDatatype("01", rdf.XSDInteger)))
	right := values(sol("x", num(1)), sol("x", num(1)))

	it, err := NewHashJoin(context.Background(), NewContext(), HashJoinSpec{
		Left: left, Right: right,
		LeftVars: []string{"x"}, RightVars: []string{"x"},
		LeftJoin: true,
	}, binding.Empty)
	rows := collect(t, it, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "01", rows[0].Get("x").(*rdf.Literal).Value)
}

func TestNestedJoin_PreservesOuterOrder(t *testing.T) {
	ec := NewContext()
	outer := iter.FromSlice([]binding.Solution{sol("x", num(3)), sol("x", num(1)), sol("x", num(2))})
	inner := StepFunc(func(_ context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
		return iter.FromSlice([]binding.Solution{
			sol("x", in.Get("x"), "k", num(0)),
			sol("x", in.Get("x"), "k", num(1)),
		}), nil
	})

	it, err := NewNestedJoin(context.Background(), ec, outer, inner)
	rows := collect(t, it, err)
	var xs []string
	for _, r := range rows {
		xs = append(xs, r.Get("x").(*rdf.Literal).Value)
	}
	assert.Equal(t, []string{"3", "3", "1", "1", "2", "2"}, xs)
}

func TestMergeJoin_Runs(t *testing.T) {
	left := values(
		sol("x", num(1), "l", num(0)),
		sol("x", num(2), "l", num(1)),
		sol("x", num(2), "l", num(2)),
		sol("x", num(4), "l", num(3)),
	)
	right := values(
		sol("x", num(0), "r", num(0)),
		sol("x", num(2), "r", num(1)),
		sol("x", num(2), "r", num(2)),
		sol("x", num(3), "r", num(3)),
		sol("x", num(4), "r", num(4)),
	)
	it, err := NewMergeJoin(context.Background(), NewContext(), MergeJoinSpec{Left: left, Right: right, Var: "x"}, binding.Empty)
	rows := collect(t, it, err)
	assert.ElementsMatch(t, []binding.Solution{
		sol("x", num(2), "l", num(1), "r", num(1)),
		sol("x", num(2), "l", num(1), "r", num(2)),
		sol("x", num(2), "l", num(2), "r", num(1)),
		sol("x", num(2), "l", num(2), "r", num(2)),
		sol("x", num(4), "l", num(3), "r", num(4)),
	}, rows)
}

func TestJoins_CloseOnce(t *testing.T) {
	ctx := context.Background()
	ec := NewContext()
	l, r := joinInputs(10, 10)

	builders := map[string]func(left, right Step) (iter.Iteration[binding.Solution], error){
		"nested loop": func(left, right Step) (iter.Iteration[binding.Solution], error) {
			return NewNestedLoopJoin(ctx, ec, left, right, binding.Empty)
		},
		"left join": func(left, right Step) (iter.Iteration[binding.Solution], error) {
			return NewLeftJoin(ctx, ec, LeftJoinSpec{Left: left, Right: right}, binding.Empty)
		},
		"hash join": func(left, right Step) (iter.Iteration[binding.Solution], error) {
			return NewHashJoin(ctx, ec, HashJoinSpec{Left: left, Right: right, LeftVars: []string{"x"}, RightVars: []string{"x"}}, binding.Empty)
		},
		"bulk hash join": func(left, right Step) (iter.Iteration[binding.Solution], error) {
			return NewBulkHashJoin(ctx, ec, HashJoinSpec{Left: left, Right: right, LeftVars: []string{"x"}, RightVars: []string{"x"}}, binding.Empty)
		},
		"merge join": func(left, right Step) (iter.Iteration[binding.Solution], error) {
			return NewMergeJoin(ctx, ec, MergeJoinSpec{Left: left, Right: right, Var: "x"}, binding.Empty)
		},
	}
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			left, right := track(values(l...)), track(values(r...))
			it, err := build(left, right)
			require.NoError(t, err)

			_, err = it.Next()
			require.NoError(t, err)
			require.NoError(t, it.Close())
			require.NoError(t, it.Close())

			left.closedOnce(t)
			right.closedOnce(t)

			_, err = it.Next()
			assert.ErrorIs(t, err, iter.ErrNoMoreElements)
		})
	}
}

func TestHashJoin_InputErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("probe side", func(t *testing.T) {
		right := track(values(sol("x", num(1))))
		it, err := NewHashJoin(ctx, NewContext(), HashJoinSpec{
			Left: failing(sol("x", num(1)), sol("x", num(2))), Right: right,
			LeftVars: []string{"x"}, RightVars: []string{"x"},
			LeftJoin: true,
		}, binding.Empty)
		require.NoError(t, err)

		_, err = iter.Collect(it)
		assert.ErrorIs(t, err, errBroken)
		right.closedOnce(t)
	})

	t.Run("build side", func(t *testing.T) {
		left := track(values(sol("x", num(1))))
		it, err := NewHashJoin(ctx, NewContext(), HashJoinSpec{
			Left: left, Right: failing(),
			LeftVars: []string{"x"}, RightVars: []string{"x"},
			LeftJoin: true,
		}, binding.Empty)
		require.NoError(t, err)

		_, err = it.HasNext()
		var qe *QueryEvaluationError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "hash join", qe.Op)
		assert.ErrorIs(t, err, errBroken)

		require.NoError(t, it.Close())
		left.closedOnce(t)
	})
}
