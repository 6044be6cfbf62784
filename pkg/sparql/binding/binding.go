// Package binding holds solution mappings and the operations joins need on
// them: compatibility, merging and join keys.
package binding

import (
	"sort"
	"strings"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
)

// Solution maps variable names to terms. A name that is absent is unbound.
// Solutions are immutable once built; use a Builder to derive new ones.
type Solution map[string]rdf.Term

// Empty is the solution with no bindings.
var Empty = Solution{}

// Get returns the term bound to name, or nil.
func (s Solution) Get(name string) rdf.Term {
	return s[name]
}

// Has reports whether name is bound.
func (s Solution) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of bound variables.
func (s Solution) Len() int {
	return len(s)
}

// Names returns the bound variable names in sorted order.
func (s Solution) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equals reports whether both solutions bind the same names to equal terms.
func (s Solution) Equals(other Solution) bool {
	if len(s) != len(other) {
		return false
	}
	for name, term := range s {
		o, ok := other[name]
		if !ok || !term.Equals(o) {
			return false
		}
	}
	return true
}

// Project returns a solution restricted to vars.
func (s Solution) Project(vars []string) Solution {
	b := NewBuilder()
	for _, v := range vars {
		if t, ok := s[v]; ok {
			b.Set(v, t)
		}
	}
	return b.Build()
}

func (s Solution) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, name := range s.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?" + name + "=" + s[name].String())
	}
	sb.WriteString("}")
	return sb.String()
}

// Builder accumulates bindings for a new Solution.
type Builder struct {
	vars Solution
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{vars: make(Solution)}
}

// NewBuilderFrom returns a builder seeded with the bindings of s.
func NewBuilderFrom(s Solution) *Builder {
	b := &Builder{vars: make(Solution, len(s))}
	for k, v := range s {
		b.vars[k] = v
	}
	return b
}

// Set binds name to term, replacing any existing binding. A nil term
// removes the binding.
func (b *Builder) Set(name string, term rdf.Term) *Builder {
	if term == nil {
		delete(b.vars, name)
		return b
	}
	b.vars[name] = term
	return b
}

// Has reports whether name is bound in the builder.
func (b *Builder) Has(name string) bool {
	_, ok := b.vars[name]
	return ok
}

// Build returns the solution. The builder must not be used afterwards.
func (b *Builder) Build() Solution {
	s := b.vars
	b.vars = nil
	return s
}

// Compatible reports whether every variable bound in both a and b is bound
// to the same term.
func Compatible(a, b Solution) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for name, term := range a {
		if o, ok := b[name]; ok && !term.Equals(o) {
			return false
		}
	}
	return true
}

// Merge returns the union of a and b. Bindings of a are never overwritten.
// The second result is false when the solutions are incompatible.
func Merge(a, b Solution) (Solution, bool) {
	if !Compatible(a, b) {
		return nil, false
	}
	if len(b) == 0 {
		return a, true
	}
	if len(a) == 0 {
		return b, true
	}
	merged := make(Solution, len(a)+len(b))
	for k, v := range b {
		merged[k] = v
	}
	for k, v := range a {
		merged[k] = v
	}
	return merged, true
}

// Compare orders two solutions by their bindings, variable by variable in
// name order, using rdf.OrderCompare. It returns 0 only for equal solutions.
func Compare(a, b Solution) int {
	names := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		names[k] = struct{}{}
	}
	for k := range b {
		names[k] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		if c := rdf.OrderCompare(a[name], b[name]); c != 0 {
			return c
		}
	}
	return 0
}
