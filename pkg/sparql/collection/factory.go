// Package collection provides the sets, maps and sorted bags that
// materializing operators keep their state in. Collections start on the Go
// heap and move into a spill store once they grow past a threshold.
package collection

import (
	"errors"

	"github.com/aleksaelezovic/sparqlexec/internal/encoding"
	"github.com/aleksaelezovic/sparqlexec/internal/storage"
	"github.com/aleksaelezovic/sparqlexec/pkg/config"
	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Factory creates collections that share one spill store.
type Factory struct {
	storage   store.Storage
	owned     bool
	threshold int
	compress  bool
	log       logrus.FieldLogger
}

// NewMemoryFactory returns a factory whose collections never spill.
func NewMemoryFactory() *Factory {
	return &Factory{log: logrus.StandardLogger()}
}

// NewFactory returns a factory spilling into s once a collection holds
// more than threshold entries. The caller keeps ownership of s.
func NewFactory(s store.Storage, threshold int, compress bool, log logrus.FieldLogger) *Factory {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if s == nil {
		threshold = 0
	}
	return &Factory{storage: s, threshold: threshold, compress: compress, log: log}
}

// Open creates a factory from configuration, opening a Badger spill store
// in cfg.Dir, or in memory when Dir is empty. A zero threshold opens no
// store at all.
func Open(cfg config.Spill, log logrus.FieldLogger) (*Factory, error) {
	if cfg.Threshold == 0 {
		f := NewMemoryFactory()
		if log != nil {
			f.log = log
		}
		return f, nil
	}
	s, err := storage.NewBadgerStorage(cfg.Dir)
	if err != nil {
		return nil, err
	}
	f := NewFactory(s, cfg.Threshold, cfg.Compress, log)
	f.owned = true
	return f, nil
}

// Close releases the spill store if the factory opened it.
func (f *Factory) Close() error {
	if f.owned && f.storage != nil {
		return f.storage.Close()
	}
	return nil
}

// Spills reports whether collections of this factory can spill.
func (f *Factory) Spills() bool {
	return f.threshold > 0
}

func (f *Factory) encoder() *encoding.TermEncoder {
	if f.compress {
		return encoding.NewCompressingEncoder()
	}
	return encoding.NewTermEncoder()
}

func (f *Factory) decoder() *encoding.TermDecoder {
	if f.compress {
		return encoding.NewDecompressingDecoder()
	}
	return encoding.NewTermDecoder()
}

// space is the private key range of one collection inside the spill store.
type space struct {
	storage store.Storage
	prefix  []byte
	txn     store.Transaction
	tables  map[store.Table]bool
}

func (f *Factory) newSpace() *space {
	id := uuid.New()
	return &space{storage: f.storage, prefix: id[:], tables: make(map[store.Table]bool)}
}

func (s *space) key(parts ...[]byte) []byte {
	n := len(s.prefix)
	for _, p := range parts {
		n += len(p)
	}
	k := make([]byte, 0, n)
	k = append(k, s.prefix...)
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

func (s *space) writer() (store.Transaction, error) {
	if s.txn == nil {
		txn, err := s.storage.Begin(true)
		if err != nil {
			return nil, err
		}
		s.txn = txn
	}
	return s.txn, nil
}

func (s *space) set(table store.Table, key, value []byte) error {
	txn, err := s.writer()
	if err != nil {
		return err
	}
	s.tables[table] = true
	return txn.Set(table, s.key(key), value)
}

// get reads through the pending writes.
func (s *space) get(table store.Table, key []byte) ([]byte, error) {
	txn, err := s.writer()
	if err != nil {
		return nil, err
	}
	return txn.Get(table, s.key(key))
}

// reader commits pending writes and opens a read-only view. Read-only
// transactions allow several concurrent scans.
func (s *space) reader() (store.Transaction, error) {
	if s.txn != nil {
		err := s.txn.Commit()
		s.txn = nil
		if err != nil {
			return nil, err
		}
	}
	return s.storage.Begin(false)
}

func (s *space) drop() error {
	var errs []error
	if s.txn != nil {
		errs = append(errs, s.txn.Rollback())
		s.txn = nil
	}
	for table := range s.tables {
		errs = append(errs, s.storage.DropPrefix(table, s.prefix))
	}
	s.tables = nil
	return errors.Join(errs...)
}
