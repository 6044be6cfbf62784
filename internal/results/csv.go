package results

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
)

// SPARQL CSV and TSV Results Formats
// https://www.w3.org/TR/sparql11-results-csv-tsv/

// WriteCSV writes rows as CSV. IRIs lose their angle brackets and literals
// keep only their lexical form, so the format is lossy.
func WriteCSV(w io.Writer, vars []string, rows []binding.Solution) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(vars); err != nil {
		return err
	}
	record := make([]string, len(vars))
	for _, row := range rows {
		for i, v := range vars {
			record[i] = ""
			if t := row.Get(v); t != nil {
				record[i] = termToCSV(t)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func termToCSV(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return t.IRI
	case *rdf.BlankNode:
		return "_:" + t.ID
	case *rdf.Literal:
		return t.Value
	default:
		return term.String()
	}
}

// WriteTSV writes rows as TSV with terms in their N-Triples form.
func WriteTSV(w io.Writer, vars []string, rows []binding.Solution) error {
	var b strings.Builder
	for i, v := range vars {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString("?" + v)
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	for _, row := range rows {
		b.Reset()
		for i, v := range vars {
			if i > 0 {
				b.WriteByte('\t')
			}
			if t := row.Get(v); t != nil {
				b.WriteString(termToTSV(t))
			}
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func termToTSV(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return "<" + t.IRI + ">"
	case *rdf.BlankNode:
		return "_:" + t.ID
	case *rdf.Literal:
		switch {
		case t.Language != "":
			return `"` + escapeTSV(t.Value) + `"@` + t.Language
		case t.Datatype == nil || t.Datatype.IRI == rdf.XSDString.IRI:
			return `"` + escapeTSV(t.Value) + `"`
		case t.Datatype.IRI == rdf.XSDInteger.IRI || t.Datatype.IRI == rdf.XSDDecimal.IRI || t.Datatype.IRI == rdf.XSDDouble.IRI:
			// Numeric literals abbreviate as in Turtle.
			return t.Value
		default:
			return `"` + escapeTSV(t.Value) + `"^^<` + t.Datatype.IRI + ">"
		}
	default:
		return term.String()
	}
}

var tsvEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`, `"`, `\"`)

func escapeTSV(s string) string {
	return tsvEscaper.Replace(s)
}
