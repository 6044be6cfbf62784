package binding

import (
	"testing"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iri(s string) rdf.Term { return rdf.NewNamedNode("http://example.org/" + s) }

func sol(kv ...any) Solution {
	b := NewBuilder()
	for i := 0; i < len(kv); i += 2 {
		b.Set(kv[i].(string), kv[i+1].(rdf.Term))
	}
	return b.Build()
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		name string
		a, b Solution
		want bool
	}{
		{"disjoint", sol("x", iri("a")), sol("y", iri("b")), true},
		{"shared equal", sol("x", iri("a"), "y", iri("b")), sol("x", iri("a")), true},
		{"shared differ", sol("x", iri("a")), sol("x", iri("b")), false},
		{"empty", Empty, sol("x", iri("a")), true},
		{"lexically different numbers", sol("n", rdf.NewIntegerLiteral(1)), sol("n", rdf.NewDecimalLiteral(1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compatible(tt.a, tt.b))
			assert.Equal(t, tt.want, Compatible(tt.b, tt.a))
		})
	}
}

func TestMerge(t *testing.T) {
	merged, ok := Merge(sol("x", iri("a")), sol("x", iri("a"), "y", iri("b")))
	require.True(t, ok)
	assert.True(t, merged.Equals(sol("x", iri("a"), "y", iri("b"))))

	_, ok = Merge(sol("x", iri("a")), sol("x", iri("b")))
	assert.False(t, ok)

	left := sol("x", iri("a"))
	merged, ok = Merge(left, Empty)
	require.True(t, ok)
	assert.True(t, merged.Equals(left))
}

func TestBuilder(t *testing.T) {
	base := sol("x", iri("a"))
	derived := NewBuilderFrom(base).Set("y", iri("b")).Set("x", nil).Build()

	assert.True(t, base.Has("x"), "source solution is not modified")
	assert.False(t, derived.Has("x"))
	assert.Equal(t, []string{"y"}, derived.Names())
}

func TestProject(t *testing.T) {
	s := sol("x", iri("a"), "y", iri("b"), "z", iri("c"))
	p := s.Project([]string{"x", "z", "missing"})
	assert.Equal(t, []string{"x", "z"}, p.Names())
}

func TestCompare(t *testing.T) {
	a := sol("x", rdf.NewIntegerLiteral(1))
	b := sol("x", rdf.NewIntegerLiteral(2))
	unbound := Empty

	assert.Negative(t, Compare(a, b))
	assert.Positive(t, Compare(b, a))
	assert.Negative(t, Compare(unbound, a))
	assert.Zero(t, Compare(a, sol("x", rdf.NewIntegerLiteral(1))))
	assert.NotZero(t, Compare(a, sol("x", rdf.NewDecimalLiteral(1))))
}

func TestSolution_String(t *testing.T) {
	assert.Equal(t, `{?a="1", ?b=<http://example.org/b>}`, sol("b", iri("b"), "a", rdf.NewLiteral("1")).String())
}

func TestJoinAttributes(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, JoinAttributes([]string{"c", "b", "a"}, []string{"a", "c", "c", "d"}))
	assert.Empty(t, JoinAttributes([]string{"a"}, []string{"b"}))
}

func TestJoinKey(t *testing.T) {
	attrs := []string{"x", "y"}
	k1 := NewJoinKey(sol("x", iri("a"), "y", iri("b"), "z", iri("c")), attrs)
	k2 := NewJoinKey(sol("x", iri("a"), "y", iri("b")), attrs)
	k3 := NewJoinKey(sol("x", iri("a")), attrs)
	k4 := NewJoinKey(sol("y", iri("a")), attrs)

	assert.True(t, k1.Equals(k2))
	assert.Equal(t, k1.Hash(), k2.Hash())
	assert.Equal(t, k1.Hash(), k1.Hash(), "memoized hash is stable")
	assert.False(t, k1.Equals(k3))
	assert.False(t, k3.Equals(k4), "nil slots only match at the same position")
	assert.False(t, k3.IsEmpty())
	assert.True(t, NewJoinKey(Empty, attrs).IsEmpty())
	assert.True(t, k3.IsPartial())
	assert.True(t, NewJoinKey(Empty, attrs).IsPartial())
	assert.False(t, k2.IsPartial())
	assert.True(t, NewJoinKey(Empty, nil).Equals(NewJoinKey(sol("x", iri("a")), nil)))
}
