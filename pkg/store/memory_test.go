package store

import (
	"context"
	"testing"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Statements(t *testing.T) {
	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")
	knows := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/knows")
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	g1 := rdf.NewNamedNode("http://example.org/graph1")

	s := NewMemoryStore()
	s.InsertTriple(alice, knows, bob)
	s.InsertTriple(alice, name, rdf.NewLiteral("Alice"))
	s.InsertTriple(bob, name, rdf.NewLiteral("Bob"))
	s.InsertQuad(rdf.NewQuad(bob, knows, alice, g1))
	s.InsertTriple(alice, knows, bob)
	assert.Equal(t, 4, s.Count(), "duplicates are ignored")

	tests := []struct {
		name                string
		subj, pred, obj, gr rdf.Term
		want                int
	}{
		{"all", nil, nil, nil, nil, 4},
		{"by subject", alice, nil, nil, nil, 2},
		{"by object", nil, nil, bob, nil, 1},
		{"by predicate", nil, name, nil, nil, 2},
		{"by graph", nil, nil, nil, g1, 1},
		{"fully bound", alice, knows, bob, nil, 1},
		{"no match", bob, knows, bob, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := s.Statements(context.Background(), tt.subj, tt.pred, tt.obj, tt.gr)
			require.NoError(t, err)
			quads, err := iter.Collect(it)
			require.NoError(t, err)
			assert.Len(t, quads, tt.want)
		})
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	s.InsertTriple(rdf.NewBlankNode("a"), rdf.NewNamedNode("p"), rdf.NewBlankNode("b"))

	ctx, cancel := context.WithCancel(context.Background())
	it, err := s.Statements(ctx, nil, nil, nil, nil)
	require.NoError(t, err)
	cancel()

	_, err = it.HasNext()
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, it.Close())
}

func TestPattern(t *testing.T) {
	p := &Pattern{
		Subject:   NewVariable("s"),
		Predicate: rdf.NewNamedNode("http://example.org/p"),
		Object:    NewVariable("s"),
		Graph:     NewVariable("g"),
	}
	assert.Equal(t, []string{"s", "g"}, p.Variables())
	assert.True(t, IsVariable(p.Subject))
	assert.False(t, IsVariable(p.Predicate))
	assert.Equal(t, "(?s <http://example.org/p> ?s ?g)", p.String())
}

func TestPrefixKey(t *testing.T) {
	assert.Equal(t, []byte{byte(TableRun), 'a', 'b'}, PrefixKey(TableRun, []byte("ab")))
	assert.Equal(t, "set", TableSet.String())
	assert.Equal(t, "unknown", TableCount.String())
}

func TestMemoryStore_Load(t *testing.T) {
	a := rdf.NewNamedNode("http://example.org/a")
	p := rdf.NewNamedNode("http://example.org/p")
	quads := []*rdf.Quad{
		rdf.NewQuad(a, p, rdf.NewLiteral("x"), nil),
		rdf.NewQuad(a, p, rdf.NewLiteral("x"), nil),
		rdf.NewQuad(a, p, a, nil),
	}

	s := NewMemoryStore()
	n, err := s.Load(iter.FromSlice(quads))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, s.Count())
}
