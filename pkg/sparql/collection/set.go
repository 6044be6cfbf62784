package collection

import (
	"errors"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	"github.com/sirupsen/logrus"
)

// Set is a set of byte keys.
type Set struct {
	f      *Factory
	mem    map[string]struct{}
	spill  *space
	size   int
	closed bool
}

// NewSet creates an empty set.
func (f *Factory) NewSet() *Set {
	return &Set{f: f, mem: make(map[string]struct{})}
}

// Add inserts key and reports whether it was absent.
func (s *Set) Add(key []byte) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	if s.spill == nil {
		if _, ok := s.mem[string(key)]; ok {
			return false, nil
		}
		s.mem[string(key)] = struct{}{}
		s.size++
		if s.f.threshold > 0 && len(s.mem) > s.f.threshold {
			if err := s.spillAll(); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	found, err := s.Contains(key)
	if err != nil || found {
		return false, err
	}
	if err := s.spill.set(store.TableSet, key, nil); err != nil {
		return false, fmt.Errorf("failed to spill set key: %w", err)
	}
	s.size++
	return true, nil
}

// Contains reports whether key is in the set.
func (s *Set) Contains(key []byte) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	if s.spill == nil {
		_, ok := s.mem[string(key)]
		return ok, nil
	}
	_, err := s.spill.get(store.TableSet, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Set) spillAll() error {
	s.spill = s.f.newSpace()
	for k := range s.mem {
		if err := s.spill.set(store.TableSet, []byte(k), nil); err != nil {
			return fmt.Errorf("failed to spill set: %w", err)
		}
	}
	metrics.rowsSpilled.Add(float64(len(s.mem)))
	s.f.log.WithFields(logrus.Fields{"collection": "set", "entries": len(s.mem)}).Debug("spilled set")
	s.mem = nil
	return nil
}

// Len returns the number of keys.
func (s *Set) Len() int {
	return s.size
}

// Close drops the set's contents.
func (s *Set) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.mem = nil
	if s.spill != nil {
		return s.spill.drop()
	}
	return nil
}
