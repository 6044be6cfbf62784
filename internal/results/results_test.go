package results

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() ([]string, []binding.Solution) {
	vars := []string{"s", "o"}
	rows := []binding.Solution{
		binding.NewBuilder().
			Set("s", rdf.NewNamedNode("http://example.org/a")).
			Set("o", rdf.NewLiteralWithLanguage("hi\tthere", "en")).
			Build(),
		binding.NewBuilder().
			Set("s", rdf.NewBlankNode("b0")).
			Set("o", rdf.NewIntegerLiteral(42)).
			Build(),
		binding.NewBuilder().
			Set("s", rdf.NewNamedNode("http://example.org/c")).
			Build(),
	}
	return vars, rows
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
		assert.NotEqual(t, "text/plain", got.ContentType())
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	vars, rows := sampleRows()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, vars, rows))

	var doc struct {
		Head struct {
			Vars []string `json:"vars"`
		} `json:"head"`
		Results struct {
			Bindings []map[string]map[string]string `json:"bindings"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, vars, doc.Head.Vars)
	require.Len(t, doc.Results.Bindings, 3)
	assert.Equal(t, map[string]string{"type": "uri", "value": "http://example.org/a"}, doc.Results.Bindings[0]["s"])
	assert.Equal(t, "en", doc.Results.Bindings[0]["o"]["xml:lang"])
	assert.Equal(t, "bnode", doc.Results.Bindings[1]["s"]["type"])
	assert.Equal(t, rdf.XSDInteger.IRI, doc.Results.Bindings[1]["o"]["datatype"])
	assert.NotContains(t, doc.Results.Bindings[2], "o")
}

func TestWriteJSON_NoRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []string{"x"}, nil))
	assert.Contains(t, buf.String(), `"bindings": []`)
}

func TestWriteCSV(t *testing.T) {
	vars, rows := sampleRows()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, vars, rows))

	assert.Equal(t, "s,o\r\n"+
		"http://example.org/a,hi\tthere\r\n"+
		"_:b0,42\r\n"+
		"http://example.org/c,\r\n", buf.String())
}

func TestWriteTSV(t *testing.T) {
	vars, rows := sampleRows()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTSV, vars, rows))

	assert.Equal(t, "?s\t?o\n"+
		"<http://example.org/a>\t\"hi\\tthere\"@en\n"+
		"_:b0\t42\n"+
		"<http://example.org/c>\t\n", buf.String())
}

func TestTermToTSV(t *testing.T) {
	assert.Equal(t, `"x"`, termToTSV(rdf.NewLiteralWithDatatype("x", rdf.XSDString)))
	assert.Equal(t, `"true"^^<`+rdf.XSDBoolean.IRI+">", termToTSV(rdf.NewBooleanLiteral(true)))
	assert.Equal(t, `"say \"hi\""`, termToTSV(rdf.NewLiteral(`say "hi"`)))
}
