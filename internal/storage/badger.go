// Package storage backs spilled collections with BadgerDB.
package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStorage is a store.Storage over a Badger database. Spilled
// collections share one database and are kept apart by key prefix.
type BadgerStorage struct {
	db       *badger.DB
	inMemory bool
}

// NewBadgerStorage opens a database in dir, or a purely in-memory one when
// dir is empty.
func NewBadgerStorage(dir string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dir).WithInMemory(dir == "")
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open spill store: %w", err)
	}
	return &BadgerStorage{db: db, inMemory: dir == ""}, nil
}

func (s *BadgerStorage) Begin(writable bool) (store.Transaction, error) {
	return &BadgerTransaction{db: s.db, txn: s.db.NewTransaction(writable), writable: writable}, nil
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// Sync is a no-op for in-memory databases.
func (s *BadgerStorage) Sync() error {
	if s.inMemory {
		return nil
	}
	return s.db.Sync()
}

// DropPrefix deletes a spilled collection's keys from table.
func (s *BadgerStorage) DropPrefix(table store.Table, prefix []byte) error {
	return s.db.DropPrefix(store.PrefixKey(table, prefix))
}

// BadgerTransaction is a store.Transaction. Writable transactions that
// outgrow Badger's size limit commit what they hold and continue in a new
// one, so a spill never fails on volume alone.
type BadgerTransaction struct {
	db       *badger.DB
	txn      *badger.Txn
	writable bool
}

func (t *BadgerTransaction) Get(table store.Table, key []byte) ([]byte, error) {
	item, err := t.txn.Get(store.PrefixKey(table, key))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *BadgerTransaction) Set(table store.Table, key, value []byte) error {
	return t.write(store.PrefixKey(table, key), func(k []byte) error { return t.txn.Set(k, value) })
}

func (t *BadgerTransaction) Delete(table store.Table, key []byte) error {
	return t.write(store.PrefixKey(table, key), t.txn.Delete)
}

// write applies op to key, retrying once in a fresh transaction when the
// current one is full. op is re-evaluated against t.txn on retry.
func (t *BadgerTransaction) write(key []byte, op func([]byte) error) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	err := op(key)
	if !errors.Is(err, badger.ErrTxnTooBig) {
		return err
	}
	if err := t.txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit full spill transaction: %w", err)
	}
	t.txn = t.db.NewTransaction(true)
	return op(key)
}

// Scan returns the keys of table in [start, end). A nil start begins at the
// first key of the table; a nil end makes start a prefix instead of a lower
// bound.
func (t *BadgerTransaction) Scan(table store.Table, start, end []byte) (store.Iterator, error) {
	table0 := store.TablePrefix(table)
	it := &BadgerIterator{prefix: table0, seek: table0}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = table0
	if start != nil {
		it.seek = store.PrefixKey(table, start)
		if end == nil {
			opts.Prefix = it.seek
		}
	}
	if end != nil {
		it.end = store.PrefixKey(table, end)
	}
	it.it = t.txn.NewIterator(opts)
	return it, nil
}

func (t *BadgerTransaction) Commit() error {
	return t.txn.Commit()
}

func (t *BadgerTransaction) Rollback() error {
	t.txn.Discard()
	return nil
}

// BadgerIterator walks one Scan range. Keys are returned without the table
// prefix.
type BadgerIterator struct {
	it      *badger.Iterator
	prefix  []byte
	seek    []byte
	end     []byte
	started bool
	valid   bool
	closed  bool
}

func (i *BadgerIterator) Next() bool {
	if i.closed {
		return false
	}
	if i.started {
		i.it.Next()
	} else {
		i.it.Seek(i.seek)
		i.started = true
	}
	i.valid = i.it.Valid() && (i.end == nil || bytes.Compare(i.it.Item().Key(), i.end) < 0)
	return i.valid
}

func (i *BadgerIterator) Key() []byte {
	if !i.valid {
		return nil
	}
	key := i.it.Item().KeyCopy(nil)
	if len(key) <= len(i.prefix) {
		return nil
	}
	return key[len(i.prefix):]
}

func (i *BadgerIterator) Value() ([]byte, error) {
	if !i.valid {
		return nil, store.ErrNotFound
	}
	return i.it.Item().ValueCopy(nil)
}

// Close is idempotent.
func (i *BadgerIterator) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.valid = false
	i.it.Close()
	return nil
}
