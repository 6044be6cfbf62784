package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/aggregate"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/executor"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/expr"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	"github.com/spf13/cobra"
)

const foaf = "http://xmlns.com/foaf/0.1/"

var (
	alice = rdf.NewNamedNode("http://example.org/alice")
	bob   = rdf.NewNamedNode("http://example.org/bob")
	carol = rdf.NewNamedNode("http://example.org/carol")

	knows = rdf.NewNamedNode(foaf + "knows")
	name  = rdf.NewNamedNode(foaf + "name")
	age   = rdf.NewNamedNode(foaf + "age")
	mbox  = rdf.NewNamedNode(foaf + "mbox")
)

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "demo",
		Short:        "Run a few operator pipelines over sample data",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ec, err := openContext(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, ec.Close()) }()
			return runDemo(cmd.Context(), ec, cmd.OutOrStdout(), rootOpts.Format)
		},
	}
}

func sampleData() *store.MemoryStore {
	s := store.NewMemoryStore()
	for _, q := range []*rdf.Quad{
		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice"), nil),
		rdf.NewQuad(alice, age, rdf.NewIntegerLiteral(30), nil),
		rdf.NewQuad(alice, knows, bob, nil),
		rdf.NewQuad(alice, mbox, rdf.NewNamedNode("mailto:alice@example.org"), nil),

		rdf.NewQuad(bob, name, rdf.NewLiteral("Bob"), nil),
		rdf.NewQuad(bob, age, rdf.NewIntegerLiteral(25), nil),
		rdf.NewQuad(bob, knows, carol, nil),

		rdf.NewQuad(carol, name, rdf.NewLiteral("Carol"), nil),
		rdf.NewQuad(carol, age, rdf.NewIntegerLiteral(28), nil),
		rdf.NewQuad(carol, knows, alice, nil),
	} {
		s.InsertQuad(q)
	}
	return s
}

func pattern(data store.TripleSource, s, p, o any) *executor.ScanStep {
	return &executor.ScanStep{Source: data, Pattern: store.Pattern{Subject: s, Predicate: p, Object: o}}
}

// evaluate runs step against the empty solution and collects its rows.
func evaluate(ctx context.Context, step executor.Step) ([]binding.Solution, error) {
	it, err := step.Evaluate(ctx, binding.Empty)
	if err != nil {
		return nil, err
	}
	return iter.Collect(it)
}

func runDemo(ctx context.Context, ec *executor.Context, w io.Writer, format string) error {
	data := sampleData()
	person, pname, page := store.NewVariable("person"), store.NewVariable("name"), store.NewVariable("age")

	queries := []struct {
		title string
		vars  []string
		step  executor.Step
	}{
		{
			title: "People by age (hash join, order by)",
			vars:  []string{"person", "name", "age"},
			step: &executor.OrderStep{Context: ec, OrderSpec: executor.OrderSpec{
				Input: &executor.HashJoinStep{Context: ec, HashJoinSpec: executor.HashJoinSpec{
					Left:      pattern(data, person, name, pname),
					Right:     pattern(data, person, age, page),
					LeftVars:  []string{"person", "name"},
					RightVars: []string{"person", "age"},
				}},
				Conditions: []executor.OrderCondition{{Expr: expr.V("age")}},
				Limit:      executor.NoLimit,
			}},
		},
		{
			title: "Mailboxes (optional)",
			vars:  []string{"name", "mbox"},
			step: &executor.LeftJoinStep{Context: ec, LeftJoinSpec: executor.LeftJoinSpec{
				Left:  pattern(data, person, name, pname),
				Right: pattern(data, person, mbox, store.NewVariable("mbox")),
			}},
		},
		{
			title: "Known by Alice, transitively (property path)",
			vars:  []string{"friend"},
			step: &executor.PathStep{Context: ec, PathSpec: executor.PathSpec{
				Subject:   alice,
				Object:    store.NewVariable("friend"),
				Segment:   &executor.PredicateSegment{Source: data, Predicate: knows},
				MinLength: 1,
			}},
		},
		{
			title: "Age statistics (aggregates)",
			vars:  []string{"people", "avg", "oldest"},
			step: &executor.GroupStep{Context: ec, GroupSpec: executor.GroupSpec{
				Input: pattern(data, person, age, page),
				Aggregates: []*aggregate.Spec{
					{Kind: aggregate.Count, Var: "people"},
					{Kind: aggregate.Avg, Var: "avg", Arg: expr.V("age")},
					{Kind: aggregate.Max, Var: "oldest", Arg: expr.V("age")},
				},
			}},
		},
	}

	for _, q := range queries {
		rows, err := evaluate(ctx, q.step)
		if err != nil {
			return fmt.Errorf("%s: %w", q.title, err)
		}
		fmt.Fprintf(w, "=== %s ===\n\n", q.title)
		if err := writeRows(w, format, q.vars, rows); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}
