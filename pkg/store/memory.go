package store

import (
	"context"
	"errors"
	"sync"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
)

// MemoryStore is an in-memory TripleSource. Statements are indexed by
// subject and by object in insertion order.
type MemoryStore struct {
	mu        sync.RWMutex
	quads     []*rdf.Quad
	bySubject map[string][]int
	byObject  map[string][]int
	index     map[string]struct{}
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySubject: make(map[string][]int),
		byObject:  make(map[string][]int),
		index:     make(map[string]struct{}),
	}
}

func quadKey(q *rdf.Quad) string {
	g := ""
	if q.Graph != nil {
		g = q.Graph.String()
	}
	return q.Subject.String() + " " + q.Predicate.String() + " " + q.Object.String() + " " + g
}

// InsertQuad adds a quad. Duplicates are ignored.
func (s *MemoryStore) InsertQuad(q *rdf.Quad) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := quadKey(q)
	if _, ok := s.index[key]; ok {
		return
	}
	s.index[key] = struct{}{}

	pos := len(s.quads)
	s.quads = append(s.quads, q)
	s.bySubject[q.Subject.String()] = append(s.bySubject[q.Subject.String()], pos)
	s.byObject[q.Object.String()] = append(s.byObject[q.Object.String()], pos)
}

// InsertTriple adds a triple to the default graph
func (s *MemoryStore) InsertTriple(subject, predicate, object rdf.Term) {
	s.InsertQuad(rdf.NewQuad(subject, predicate, object, nil))
}

// Load inserts every quad of quads and closes it. It returns the number
// of quads read, duplicates included.
func (s *MemoryStore) Load(quads StatementIteration) (int, error) {
	n := 0
	for {
		ok, err := quads.HasNext()
		if err != nil || !ok {
			return n, errors.Join(err, quads.Close())
		}
		q, err := quads.Next()
		if err != nil {
			return n, errors.Join(err, quads.Close())
		}
		s.InsertQuad(q)
		n++
	}
}

// Count returns the number of stored quads
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quads)
}

// Statements returns the quads matching the given terms.
func (s *MemoryStore) Statements(ctx context.Context, subj, pred, obj, graph rdf.Term) (StatementIteration, error) {
	s.mu.RLock()
	var candidates []int
	switch {
	case subj != nil:
		candidates = s.bySubject[subj.String()]
	case obj != nil:
		candidates = s.byObject[obj.String()]
	default:
		candidates = make([]int, len(s.quads))
		for i := range candidates {
			candidates[i] = i
		}
	}
	matches := make([]*rdf.Quad, 0, len(candidates))
	for _, i := range candidates {
		q := s.quads[i]
		if matchTerm(subj, q.Subject) && matchTerm(pred, q.Predicate) &&
			matchTerm(obj, q.Object) && matchTerm(graph, q.Graph) {
			matches = append(matches, q)
		}
	}
	s.mu.RUnlock()

	pos := 0
	return iter.NewLookahead(func() (*rdf.Quad, bool, error) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if pos >= len(matches) {
			return nil, false, nil
		}
		q := matches[pos]
		pos++
		return q, true, nil
	}, nil), nil
}

func matchTerm(want, got rdf.Term) bool {
	if want == nil {
		return true
	}
	return got != nil && want.Equals(got)
}
