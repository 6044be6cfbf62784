// Package store defines the sources operators read from: the triple
// source that scans match, and the key-value storage they spill into.
package store

import (
	"context"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
)

// Pattern represents a triple or quad pattern with optional variables
type Pattern struct {
	Subject   any // rdf.Term or Variable
	Predicate any // rdf.Term or Variable
	Object    any // rdf.Term or Variable
	Graph     any // rdf.Term or Variable (nil means any graph)
}

// Positions returns the four pattern positions in S, P, O, G order.
func (p *Pattern) Positions() [4]any {
	return [4]any{p.Subject, p.Predicate, p.Object, p.Graph}
}

// Variables returns the distinct variable names of the pattern.
func (p *Pattern) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, pos := range p.Positions() {
		if v, ok := pos.(*Variable); ok && !seen[v.Name] {
			seen[v.Name] = true
			names = append(names, v.Name)
		}
	}
	return names
}

func (p *Pattern) String() string {
	str := func(v any) string {
		if v == nil {
			return "*"
		}
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("(%s %s %s %s)", str(p.Subject), str(p.Predicate), str(p.Object), str(p.Graph))
}

// Variable represents a SPARQL variable
type Variable struct {
	Name string
}

// NewVariable creates a new variable
func NewVariable(name string) *Variable {
	return &Variable{Name: name}
}

func (v *Variable) String() string {
	return "?" + v.Name
}

// IsVariable checks if a value is a variable
func IsVariable(v any) bool {
	_, ok := v.(*Variable)
	return ok
}

// StatementIteration iterates over matching statements.
type StatementIteration = iter.Iteration[*rdf.Quad]

// TripleSource answers statement lookups. A nil argument is unconstrained.
type TripleSource interface {
	Statements(ctx context.Context, subj, pred, obj, graph rdf.Term) (StatementIteration, error)
}
