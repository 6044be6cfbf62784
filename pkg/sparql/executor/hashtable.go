package executor

import (
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
)

// hashTable holds the build side of a hash join. Rows are kept in arrival
// order and buckets refer to them by index.
type hashTable struct {
	attrs   []string
	rows    []binding.Solution
	buckets map[uint64][]*hashBucket

	// wildcard rows leave at least one join attribute unbound and are
	// candidates for every probe.
	wildcard []int
}

type hashBucket struct {
	key  *binding.JoinKey
	rows []int
}

func newHashTable(attrs []string, capacity int) *hashTable {
	return &hashTable{attrs: attrs, buckets: make(map[uint64][]*hashBucket, capacity)}
}

func (t *hashTable) add(row binding.Solution) {
	idx := len(t.rows)
	t.rows = append(t.rows, row)

	key := binding.NewJoinKey(row, t.attrs)
	if key.IsPartial() {
		t.wildcard = append(t.wildcard, idx)
		return
	}
	h := key.Hash()
	for _, b := range t.buckets[h] {
		if b.key.Equals(key) {
			b.rows = append(b.rows, idx)
			return
		}
	}
	t.buckets[h] = append(t.buckets[h], &hashBucket{key: key, rows: []int{idx}})
}

func (t *hashTable) len() int {
	return len(t.rows)
}

// candidates returns the indexes of the build rows that may join probe. A
// probe row with any join attribute unbound matches every row. Callers
// still check compatibility.
func (t *hashTable) candidates(probe binding.Solution) []int {
	key := binding.NewJoinKey(probe, t.attrs)
	if key.IsPartial() {
		all := make([]int, len(t.rows))
		for i := range all {
			all[i] = i
		}
		return all
	}
	var out []int
	for _, b := range t.buckets[key.Hash()] {
		if b.key.Equals(key) {
			out = append(out, b.rows...)
			break
		}
	}
	if len(t.wildcard) == 0 {
		return out
	}
	return append(out, t.wildcard...)
}
