// Package cli implements the sparqlexec command line: it loads N-Quads data
// into an in-memory triple source and runs operator pipelines over it.
package cli

import (
	"fmt"
	"os"

	"github.com/aleksaelezovic/sparqlexec/internal/nquads"
	"github.com/aleksaelezovic/sparqlexec/pkg/config"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/executor"
	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string
	Verbose bool
	Format  string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sparqlexec",
		Short: "Run streaming SPARQL operators over N-Quads data",
		// main reports the error.
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "YAML engine configuration")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log operator events")
	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", formatTable, "output format: table, json, csv or tsv")

	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewPathCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	return cmd
}

// openContext builds the evaluation context from the global flags. Logs go
// to stderr so they never mix with results.
func openContext(opts *RootOptions, cmd *cobra.Command) (*executor.Context, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, err
		}
	}
	if opts.Verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(cfg.Level())
	return executor.Open(cfg, log)
}

// loadFile reads an N-Quads file into a new memory store.
func loadFile(filename string) (*store.MemoryStore, error) {
	f, err := os.Open(filename) // #nosec G304 - path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open data: %w", err)
	}
	s := store.NewMemoryStore()
	if _, err := s.Load(nquads.NewReader(f)); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filename, err)
	}
	return s, nil
}
