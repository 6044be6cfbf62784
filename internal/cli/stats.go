package cli

import (
	"errors"

	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/aggregate"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/executor"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/expr"
	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "stats <data.nq>",
		Short: "Count statements and distinct subjects per predicate",
		Long: `Groups all statements by predicate, counting statements and
distinct subjects, and prints the predicates ordered by use.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			data, err := loadFile(args[0])
			if err != nil {
				return err
			}
			ec, err := openContext(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, ec.Close()) }()

			rows, err := evaluate(cmd.Context(), statsPlan(ec, data, limit))
			if err != nil {
				return err
			}
			return writeRows(cmd.OutOrStdout(), rootOpts.Format, []string{"p", "n", "subjects"}, rows)
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", executor.NoLimit, "print at most this many predicates")
	return cmd
}

// statsPlan is
//
//	SELECT ?p (COUNT(*) AS ?n) (COUNT(DISTINCT ?s) AS ?subjects)
//	WHERE { ?s ?p ?o } GROUP BY ?p ORDER BY DESC(?n) ?p LIMIT limit
func statsPlan(ec *executor.Context, data store.TripleSource, limit int64) executor.Step {
	scan := &executor.ScanStep{
		Source: data,
		Pattern: store.Pattern{
			Subject:   store.NewVariable("s"),
			Predicate: store.NewVariable("p"),
			Object:    store.NewVariable("o"),
		},
	}
	group := &executor.GroupStep{Context: ec, GroupSpec: executor.GroupSpec{
		Input:     &executor.PrefetchStep{Context: ec, Input: scan},
		GroupVars: []string{"p"},
		Aggregates: []*aggregate.Spec{
			{Kind: aggregate.Count, Var: "n"},
			{Kind: aggregate.Count, Var: "subjects", Arg: expr.V("s"), Distinct: true},
		},
	}}
	return &executor.OrderStep{Context: ec, OrderSpec: executor.OrderSpec{
		Input: group,
		Conditions: []executor.OrderCondition{
			{Expr: expr.V("n"), Descending: true},
			{Expr: expr.V("p")},
		},
		Limit: limit,
	}}
}
