package executor

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/aleksaelezovic/sparqlexec/internal/storage"
	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/collection"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/stretchr/testify/require"
)

func iri(s string) *rdf.NamedNode { return rdf.NewNamedNode("http://example.org/" + s) }

func num(v int64) *rdf.Literal { return rdf.NewIntegerLiteral(v) }

// sol builds a solution from name, term pairs.
func sol(kv ...any) binding.Solution {
	b := binding.NewBuilder()
	for i := 0; i < len(kv); i += 2 {
		b.Set(kv[i].(string), kv[i+1].(rdf.Term))
	}
	return b.Build()
}

func values(rows ...binding.Solution) *ValuesStep {
	return &ValuesStep{Rows: rows}
}

// contexts returns an in-memory context and one whose collections spill
// after a single entry.
func contexts(t *testing.T) map[string]*Context {
	t.Helper()
	s, err := storage.NewBadgerStorage("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() }) // #nosec G104 - test cleanup

	spill := NewContext()
	spill.Collections = collection.NewFactory(s, 1, true, nil)
	return map[string]*Context{
		"memory": NewContext(),
		"spill":  spill,
	}
}

// trackingStep records every iteration it opens.
type trackingStep struct {
	step   Step
	opened []*trackedIteration
}

func track(step Step) *trackingStep {
	return &trackingStep{step: step}
}

func (s *trackingStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	it, err := s.step.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	ti := &trackedIteration{Iteration: it}
	s.opened = append(s.opened, ti)
	return ti, nil
}

// closedOnce reports whether every opened iteration was closed exactly
// once.
func (s *trackingStep) closedOnce(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, s.opened)
	for i, it := range s.opened {
		require.Equal(t, 1, it.closes, "iteration %d", i)
	}
}

type trackedIteration struct {
	iter.Iteration[binding.Solution]
	closes int
}

func (t *trackedIteration) Close() error {
	t.closes++
	return t.Iteration.Close()
}

var errBroken = errors.New("broken input")

// failing yields rows and then fails.
func failing(rows ...binding.Solution) Step {
	return StepFunc(func(context.Context, binding.Solution) (iter.Iteration[binding.Solution], error) {
		pos := 0
		return iter.NewLookahead(func() (binding.Solution, bool, error) {
			if pos < len(rows) {
				pos++
				return rows[pos-1], true, nil
			}
			return nil, false, errBroken
		}, nil), nil
	})
}

func collect(t *testing.T, it iter.Iteration[binding.Solution], err error) []binding.Solution {
	t.Helper()
	require.NoError(t, err)
	rows, err := iter.Collect(it)
	require.NoError(t, err)
	return rows
}

// canonical renders rows as sorted strings for multiset comparison.
func canonical(rows []binding.Solution) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.String()
	}
	sort.Strings(out)
	return out
}
