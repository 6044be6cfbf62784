package store

import (
	"errors"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrTransactionRO = errors.New("transaction is read-only")
)

// Storage is the key-value store operators spill intermediate state into.
// Keys live in tables; each spilled collection owns a key prefix inside
// its table and drops it when released.
type Storage interface {
	Begin(writable bool) (Transaction, error)
	Close() error
	Sync() error
	DropPrefix(table Table, prefix []byte) error
}

// Transaction reads and writes one snapshot. Set and Delete on a read-only
// transaction return ErrTransactionRO.
type Transaction interface {
	// Get returns ErrNotFound for a missing key.
	Get(table Table, key []byte) ([]byte, error)
	Set(table Table, key, value []byte) error
	Delete(table Table, key []byte) error

	// Scan visits keys in [start, end) in byte order. With a nil end, start
	// acts as a key prefix; a nil start scans the whole table.
	Scan(table Table, start, end []byte) (Iterator, error)

	Commit() error
	Rollback() error
}

// Iterator is a cursor over a Scan. Key and Value are valid after Next
// returns true.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Close() error
}

// Table namespaces keys by kind of spilled collection.
type Table byte

const (
	// TableSet holds distinct set members with empty values.
	TableSet Table = iota + 1
	// TableMap holds group map entries.
	TableMap
	// TableRun holds sorted runs keyed by run id and sequence.
	TableRun

	TableCount
)

func (t Table) String() string {
	switch t {
	case TableSet:
		return "set"
	case TableMap:
		return "map"
	case TableRun:
		return "run"
	default:
		return "unknown"
	}
}

// TablePrefix returns the one-byte key prefix of table.
func TablePrefix(table Table) []byte {
	return []byte{byte(table)}
}

// PrefixKey returns key in table's namespace.
func PrefixKey(table Table, key []byte) []byte {
	return append(TablePrefix(table), key...)
}
