// Package results writes solution sequences in the SPARQL 1.1 query
// results formats.
package results

import (
	"fmt"
	"io"

	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
)

// Format names a results serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
)

// Formats lists the supported formats in flag-help order.
var Formats = []Format{FormatJSON, FormatCSV, FormatTSV}

// ParseFormat resolves a format name.
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported results format %q", name)
}

// ContentType returns the media type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/sparql-results+json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatTSV:
		return "text/tab-separated-values; charset=utf-8"
	default:
		return "text/plain"
	}
}

// Write serializes rows over the projected vars. Variables a row leaves
// unbound produce empty cells or are omitted from the JSON binding.
func Write(w io.Writer, format Format, vars []string, rows []binding.Solution) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, vars, rows)
	case FormatCSV:
		return WriteCSV(w, vars, rows)
	case FormatTSV:
		return WriteTSV(w, vars, rows)
	default:
		return fmt.Errorf("unsupported results format %q", format)
	}
}
