package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/aleksaelezovic/sparqlexec/internal/results"
	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
)

const formatTable = "table"

// writeRows prints rows in the format chosen by --format.
func writeRows(w io.Writer, format string, vars []string, rows []binding.Solution) error {
	if format == formatTable {
		printTable(w, vars, rows)
		return nil
	}
	f, err := results.ParseFormat(format)
	if err != nil {
		return err
	}
	return results.Write(w, f, vars, rows)
}

// printTable writes rows as a fixed-width table of vars.
func printTable(w io.Writer, vars []string, rows []binding.Solution) {
	fmt.Fprint(w, "| ")
	for _, v := range vars {
		fmt.Fprintf(w, "%-20s | ", v)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "|"+strings.Repeat("----------------------|", len(vars)))

	for _, row := range rows {
		fmt.Fprint(w, "| ")
		for _, v := range vars {
			cell := ""
			if t := row.Get(v); t != nil {
				cell = formatTerm(t)
			}
			fmt.Fprintf(w, "%-20s | ", cell)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%d results\n", len(rows))
}

// formatTerm shortens IRIs to their local name and literals to their
// lexical form.
func formatTerm(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		if i := strings.LastIndexAny(t.IRI, "/#"); i >= 0 && i < len(t.IRI)-1 {
			return t.IRI[i+1:]
		}
		return t.IRI
	case *rdf.Literal:
		return t.Value
	default:
		return term.String()
	}
}
