package binding

import (
	"encoding/binary"
	"sort"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/zeebo/xxh3"
)

// JoinKey is the projection of a solution onto the join attributes, one
// slot per attribute in a fixed order. A nil slot is unbound.
type JoinKey struct {
	terms  []rdf.Term
	hash   uint64
	hashed bool
}

// JoinAttributes returns the sorted intersection of two binding name sets.
// Both sides of a join must build keys with the same attribute order.
func JoinAttributes(left, right []string) []string {
	in := make(map[string]struct{}, len(left))
	for _, name := range left {
		in[name] = struct{}{}
	}
	var shared []string
	seen := make(map[string]struct{})
	for _, name := range right {
		if _, ok := in[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		shared = append(shared, name)
	}
	sort.Strings(shared)
	return shared
}

// NewJoinKey extracts the values of attrs from s.
func NewJoinKey(s Solution, attrs []string) *JoinKey {
	terms := make([]rdf.Term, len(attrs))
	for i, name := range attrs {
		terms[i] = s[name]
	}
	return &JoinKey{terms: terms}
}

// Terms returns the slots of the key.
func (k *JoinKey) Terms() []rdf.Term {
	return k.terms
}

// IsEmpty reports whether every slot is unbound.
func (k *JoinKey) IsEmpty() bool {
	for _, t := range k.terms {
		if t != nil {
			return false
		}
	}
	return true
}

// IsPartial reports whether at least one slot is unbound.
func (k *JoinKey) IsPartial() bool {
	for _, t := range k.terms {
		if t == nil {
			return true
		}
	}
	return false
}

// Hash returns the key hash, computing it on first use.
func (k *JoinKey) Hash() uint64 {
	if k.hashed {
		return k.hash
	}
	h := xxh3.New()
	var buf [8]byte
	for _, t := range k.terms {
		binary.BigEndian.PutUint64(buf[:], rdf.ValueHash(t))
		_, _ = h.Write(buf[:]) // #nosec G104 - hash writes never fail
	}
	k.hash = h.Sum64()
	k.hashed = true
	return k.hash
}

// Equals compares keys slot by slot. Unbound slots only equal unbound
// slots.
func (k *JoinKey) Equals(other *JoinKey) bool {
	if len(k.terms) != len(other.terms) {
		return false
	}
	for i, t := range k.terms {
		o := other.terms[i]
		if t == nil || o == nil {
			if t != o {
				return false
			}
			continue
		}
		if !t.Equals(o) {
			return false
		}
	}
	return true
}
