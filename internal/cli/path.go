package cli

import (
	"errors"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/executor"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	"github.com/spf13/cobra"
)

// PathOptions holds the flags of the path command.
type PathOptions struct {
	MinLength int
	Inverse   bool
}

// NewPathCommand creates the path command.
func NewPathCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PathOptions{}
	cmd := &cobra.Command{
		Use:   "path <data.nq> <start-iri> <predicate-iri>",
		Short: "List the terms reachable from a start IRI along a predicate",
		Long: `Evaluates the property path <start> <predicate>+ ?end, or
<predicate>* with --min 0, and prints every reachable term once.`,
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPath(rootOpts, opts, cmd, args)
		},
	}
	cmd.Flags().IntVar(&opts.MinLength, "min", 1, "minimum path length (0 or 1)")
	cmd.Flags().BoolVar(&opts.Inverse, "inverse", false, "follow the predicate backwards")
	return cmd
}

func runPath(rootOpts *RootOptions, opts *PathOptions, cmd *cobra.Command, args []string) (err error) {
	data, err := loadFile(args[0])
	if err != nil {
		return err
	}
	ec, err := openContext(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, ec.Close()) }()

	it, err := executor.NewPathIteration(cmd.Context(), ec, executor.PathSpec{
		Subject: rdf.NewNamedNode(args[1]),
		Object:  store.NewVariable("end"),
		Segment: &executor.PredicateSegment{
			Source:    data,
			Predicate: rdf.NewNamedNode(args[2]),
			Inverse:   opts.Inverse,
		},
		MinLength: opts.MinLength,
	}, binding.Empty)
	if err != nil {
		return err
	}
	rows, err := iter.Collect(it)
	if err != nil {
		return err
	}
	return writeRows(cmd.OutOrStdout(), rootOpts.Format, []string{"end"}, rows)
}
