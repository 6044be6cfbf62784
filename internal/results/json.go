package results

import (
	"encoding/json"
	"io"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
)

// SPARQL JSON Results Format
// https://www.w3.org/TR/sparql11-results-json/

type resultsJSON struct {
	Head    headJSON    `json:"head"`
	Results resultsBody `json:"results"`
}

type headJSON struct {
	Vars []string `json:"vars"`
}

type resultsBody struct {
	Bindings []map[string]valueJSON `json:"bindings"`
}

type valueJSON struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	XMLLang  string `json:"xml:lang,omitempty"`
}

// WriteJSON writes rows as an indented SPARQL JSON results document.
func WriteJSON(w io.Writer, vars []string, rows []binding.Solution) error {
	doc := resultsJSON{
		Head:    headJSON{Vars: append([]string{}, vars...)},
		Results: resultsBody{Bindings: make([]map[string]valueJSON, 0, len(rows))},
	}
	for _, row := range rows {
		b := make(map[string]valueJSON, len(vars))
		for _, v := range vars {
			if t := row.Get(v); t != nil {
				b[v] = termToJSON(t)
			}
		}
		doc.Results.Bindings = append(doc.Results.Bindings, b)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func termToJSON(term rdf.Term) valueJSON {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return valueJSON{Type: "uri", Value: t.IRI}
	case *rdf.BlankNode:
		return valueJSON{Type: "bnode", Value: t.ID}
	case *rdf.Literal:
		v := valueJSON{Type: "literal", Value: t.Value}
		if t.Language != "" {
			v.XMLLang = t.Language
		} else if t.Datatype != nil && t.Datatype.IRI != rdf.XSDString.IRI {
			v.Datatype = t.Datatype.IRI
		}
		return v
	default:
		return valueJSON{Type: "literal", Value: term.String()}
	}
}
