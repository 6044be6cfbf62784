package executor

import (
	"context"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/aleksaelezovic/sparqlexec/pkg/store"
)

// Step is a compiled plan node. Evaluate returns the solutions of the node
// that are compatible with in, each extending in.
type Step interface {
	Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error)
}

// StepFunc adapts a function to Step.
type StepFunc func(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error)

func (f StepFunc) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return f(ctx, in)
}

// ScanStep matches a quad pattern against a triple source. Variables
// already bound by the input are used as constraints.
type ScanStep struct {
	Source  store.TripleSource
	Pattern store.Pattern
}

func (s *ScanStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	var constraints [4]rdf.Term
	var names [4]string
	for i, pos := range s.Pattern.Positions() {
		switch p := pos.(type) {
		case nil:
		case *store.Variable:
			if t := in.Get(p.Name); t != nil {
				constraints[i] = t
			} else {
				names[i] = p.Name
			}
		case rdf.Term:
			constraints[i] = p
		default:
			return nil, fmt.Errorf("invalid pattern position %T in %v", pos, &s.Pattern)
		}
	}

	quads, err := s.Source.Statements(ctx, constraints[0], constraints[1], constraints[2], constraints[3])
	if err != nil {
		return nil, evaluationError("scan", err)
	}
	return iter.NewLookahead(func() (binding.Solution, bool, error) {
		for {
			ok, err := quads.HasNext()
			if err != nil || !ok {
				return nil, false, err
			}
			q, err := quads.Next()
			if err != nil {
				return nil, false, err
			}
			if row, ok := bindQuad(in, names, q); ok {
				return row, true, nil
			}
		}
	}, quads.Close), nil
}

// bindQuad extends in with the pattern variables of q. A variable repeated
// within the pattern must match the same term at every position, and a
// graph variable never matches the default graph.
func bindQuad(in binding.Solution, names [4]string, q *rdf.Quad) (binding.Solution, bool) {
	terms := [4]rdf.Term{q.Subject, q.Predicate, q.Object, q.Graph}
	b := binding.NewBuilderFrom(in)
	for i, name := range names {
		if name == "" {
			continue
		}
		if terms[i] == nil {
			return nil, false
		}
		for j := 0; j < i; j++ {
			if names[j] == name && !terms[j].Equals(terms[i]) {
				return nil, false
			}
		}
		b.Set(name, terms[i])
	}
	return b.Build(), true
}

// ValuesStep yields fixed rows, each merged with the input it is
// compatible with.
type ValuesStep struct {
	Rows []binding.Solution
}

func (s *ValuesStep) Evaluate(_ context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return iter.CrossProduct(iter.Single(in), s.Rows), nil
}
