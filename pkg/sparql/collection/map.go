package collection

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	"github.com/sirupsen/logrus"
)

// Codec serializes map values for the spill store.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// Key prefixes inside a map's space.
var (
	mapOrderPrefix = []byte{'o'}
	mapDataPrefix  = []byte{'d'}
)

// Map is a byte-keyed map that remembers insertion order. Values are
// copied into the spill store once it spills, so a caller that mutates a
// value must Put it again.
type Map[V any] struct {
	f      *Factory
	codec  Codec[V]
	mem    map[string]V
	order  []string
	spill  *space
	size   int
	closed bool
}

// NewMap creates an empty map whose values spill through codec.
func NewMap[V any](f *Factory, codec Codec[V]) *Map[V] {
	return &Map[V]{f: f, codec: codec, mem: make(map[string]V)}
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key []byte) (V, bool, error) {
	var zero V
	if m.closed {
		return zero, false, ErrClosed
	}
	if m.spill == nil {
		v, ok := m.mem[string(key)]
		return v, ok, nil
	}
	data, err := m.spill.get(store.TableMap, dataKey(key))
	if errors.Is(err, store.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	v, err := m.codec.Decode(data)
	if err != nil {
		return zero, false, fmt.Errorf("failed to decode map value: %w", err)
	}
	return v, true, nil
}

// Put stores v under key.
func (m *Map[V]) Put(key []byte, v V) error {
	if m.closed {
		return ErrClosed
	}
	if m.spill == nil {
		if _, ok := m.mem[string(key)]; !ok {
			m.order = append(m.order, string(key))
			m.size++
		}
		m.mem[string(key)] = v
		if m.f.threshold > 0 && len(m.mem) > m.f.threshold {
			return m.spillAll()
		}
		return nil
	}

	_, err := m.spill.get(store.TableMap, dataKey(key))
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := m.spill.set(store.TableMap, orderKey(m.size), key); err != nil {
			return err
		}
		m.size++
	case err != nil:
		return err
	}
	return m.putSpilled(key, v)
}

func (m *Map[V]) putSpilled(key []byte, v V) error {
	data, err := m.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode map value: %w", err)
	}
	return m.spill.set(store.TableMap, dataKey(key), data)
}

func (m *Map[V]) spillAll() error {
	m.spill = m.f.newSpace()
	for i, k := range m.order {
		if err := m.spill.set(store.TableMap, orderKey(i), []byte(k)); err != nil {
			return fmt.Errorf("failed to spill map: %w", err)
		}
		if err := m.putSpilled([]byte(k), m.mem[k]); err != nil {
			return fmt.Errorf("failed to spill map: %w", err)
		}
	}
	metrics.rowsSpilled.Add(float64(len(m.order)))
	m.f.log.WithFields(logrus.Fields{"collection": "map", "entries": len(m.order)}).Debug("spilled map")
	m.mem = nil
	m.order = nil
	return nil
}

// Len returns the number of keys.
func (m *Map[V]) Len() int {
	return m.size
}

// Range calls fn for every entry in insertion order, stopping at the
// first error. fn must not modify the map.
func (m *Map[V]) Range(fn func(key []byte, v V) error) error {
	if m.closed {
		return ErrClosed
	}
	if m.spill == nil {
		for _, k := range m.order {
			if err := fn([]byte(k), m.mem[k]); err != nil {
				return err
			}
		}
		return nil
	}

	txn, err := m.spill.reader()
	if err != nil {
		return err
	}
	defer txn.Rollback() // #nosec G104 - read-only transaction

	it, err := txn.Scan(store.TableMap, m.spill.key(mapOrderPrefix), nil)
	if err != nil {
		return err
	}
	defer it.Close() // #nosec G104 - iterator close error less important than scan result

	for it.Next() {
		key, err := it.Value()
		if err != nil {
			return err
		}
		data, err := txn.Get(store.TableMap, m.spill.key(dataKey(key)))
		if err != nil {
			return fmt.Errorf("missing map value: %w", err)
		}
		v, err := m.codec.Decode(data)
		if err != nil {
			return fmt.Errorf("failed to decode map value: %w", err)
		}
		if err := fn(key, v); err != nil {
			return err
		}
	}
	return nil
}

// Values returns an iteration over the values in insertion order. The map
// must not be modified while the iteration is open.
func (m *Map[V]) Values() (iter.Iteration[V], error) {
	if m.closed {
		return nil, ErrClosed
	}
	if m.spill == nil {
		values := make([]V, len(m.order))
		for i, k := range m.order {
			values[i] = m.mem[k]
		}
		return iter.FromSlice(values), nil
	}

	txn, err := m.spill.reader()
	if err != nil {
		return nil, err
	}
	it, err := txn.Scan(store.TableMap, m.spill.key(mapOrderPrefix), nil)
	if err != nil {
		return nil, errors.Join(err, txn.Rollback())
	}
	return iter.NewLookahead(func() (V, bool, error) {
		var zero V
		if !it.Next() {
			return zero, false, nil
		}
		key, err := it.Value()
		if err != nil {
			return zero, false, err
		}
		data, err := txn.Get(store.TableMap, m.spill.key(dataKey(key)))
		if err != nil {
			return zero, false, fmt.Errorf("missing map value: %w", err)
		}
		v, err := m.codec.Decode(data)
		if err != nil {
			return zero, false, fmt.Errorf("failed to decode map value: %w", err)
		}
		return v, true, nil
	}, func() error {
		return errors.Join(it.Close(), txn.Rollback())
	}), nil
}

// Close drops the map's contents.
func (m *Map[V]) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.mem = nil
	m.order = nil
	if m.spill != nil {
		return m.spill.drop()
	}
	return nil
}

func orderKey(seq int) []byte {
	k := make([]byte, len(mapOrderPrefix)+8)
	copy(k, mapOrderPrefix)
	binary.BigEndian.PutUint64(k[len(mapOrderPrefix):], uint64(seq)) // #nosec G115 - seq is never negative
	return k
}

func dataKey(key []byte) []byte {
	k := make([]byte, 0, len(mapDataPrefix)+len(key))
	k = append(k, mapDataPrefix...)
	return append(k, key...)
}
