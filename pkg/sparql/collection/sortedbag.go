package collection

import (
	"container/heap"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/internal/encoding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	"github.com/google/btree"
	"github.com/sirupsen/logrus"
)

// Comparator orders solutions. It must return 0 only for rows that are
// interchangeable in the output.
type Comparator func(a, b binding.Solution) int

// bagItem is one distinct row of a sorted bag and its multiplicity.
type bagItem struct {
	row   binding.Solution
	count int64
	cmp   Comparator
}

func (i *bagItem) Less(than btree.Item) bool {
	return i.cmp(i.row, than.(*bagItem).row) < 0
}

// SortedBag keeps rows ordered by a comparator, optionally capped to the
// first limit rows and optionally collapsing equal rows. When it grows past
// the spill threshold it writes its contents out as a sorted run and
// starts over; iteration merges all runs.
type SortedBag struct {
	f        *Factory
	cmp      Comparator
	limit    int64
	distinct bool

	tree  *btree.BTree
	total int64

	spill *space
	runs  int
	enc   *encoding.TermEncoder

	closed bool
}

// NewSortedBag creates a bag. A negative limit is unlimited.
func (f *Factory) NewSortedBag(cmp Comparator, limit int64, distinct bool) *SortedBag {
	return &SortedBag{
		f:        f,
		cmp:      cmp,
		limit:    limit,
		distinct: distinct,
		tree:     btree.New(16),
	}
}

// Add inserts a row.
func (b *SortedBag) Add(row binding.Solution) error {
	if b.closed {
		return ErrClosed
	}
	if b.limit == 0 {
		return nil
	}

	probe := &bagItem{row: row, count: 1, cmp: b.cmp}
	if b.limit > 0 && b.total >= b.limit {
		// Full: a row sorting after the current maximum can never be
		// part of the output.
		if top := b.tree.Max().(*bagItem); !probe.Less(top) {
			return nil
		}
	}

	if existing := b.tree.Get(probe); existing != nil {
		if b.distinct {
			return nil
		}
		existing.(*bagItem).count++
	} else {
		b.tree.ReplaceOrInsert(probe)
	}
	b.total++

	if b.limit > 0 && b.total > b.limit {
		top := b.tree.Max().(*bagItem)
		if top.count > 1 {
			top.count--
		} else {
			b.tree.DeleteMax()
		}
		b.total--
	}

	if b.f.threshold > 0 && b.tree.Len() > b.f.threshold {
		return b.flushRun()
	}
	return nil
}

// Len returns the number of rows currently held in memory, counting
// duplicates.
func (b *SortedBag) Len() int64 {
	return b.total
}

func runKey(run int, seq int64) []byte {
	k := make([]byte, 12)
	binary.BigEndian.PutUint32(k[0:4], uint32(run))   // #nosec G115 - run ids are small and non-negative
	binary.BigEndian.PutUint64(k[4:12], uint64(seq)) // #nosec G115 - seq is never negative
	return k
}

func (b *SortedBag) flushRun() error {
	if b.tree.Len() == 0 {
		return nil
	}
	if b.spill == nil {
		b.spill = b.f.newSpace()
		b.enc = b.f.encoder()
	}

	var seq int64
	var err error
	b.tree.Ascend(func(i btree.Item) bool {
		item := i.(*bagItem)
		var data []byte
		data, err = b.enc.EncodeSolution(item.row)
		if err != nil {
			return false
		}
		value := binary.AppendUvarint(nil, uint64(item.count)) // #nosec G115 - counts are positive
		value = append(value, data...)
		if err = b.spill.set(store.TableRun, runKey(b.runs, seq), value); err != nil {
			return false
		}
		seq++
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to write sort run: %w", err)
	}

	metrics.spillRuns.Inc()
	metrics.rowsSpilled.Add(float64(seq))
	b.f.log.WithFields(logrus.Fields{
		"collection": "sortedbag",
		"run":        b.runs,
		"entries":    seq,
	}).Debug("wrote sorted run")

	b.runs++
	b.tree.Clear(true)
	b.total = 0
	return nil
}

// Iterator replays the rows in order, each repeated by its count. The bag
// must not be modified afterwards.
func (b *SortedBag) Iterator() (iter.Iteration[binding.Solution], error) {
	if b.closed {
		return nil, ErrClosed
	}
	if b.spill == nil {
		return b.memoryIterator(), nil
	}
	if err := b.flushRun(); err != nil {
		return nil, err
	}
	return b.mergeIterator()
}

func (b *SortedBag) memoryIterator() iter.Iteration[binding.Solution] {
	items := make([]*bagItem, 0, b.tree.Len())
	b.tree.Ascend(func(i btree.Item) bool {
		items = append(items, i.(*bagItem))
		return true
	})

	pos := 0
	var repeat int64
	return iter.NewLookahead(func() (binding.Solution, bool, error) {
		for pos < len(items) {
			item := items[pos]
			if repeat < item.count {
				repeat++
				return item.row, true, nil
			}
			pos++
			repeat = 0
		}
		return nil, false, nil
	}, nil)
}

// runCursor reads one sorted run.
type runCursor struct {
	it    store.Iterator
	row   binding.Solution
	count int64
}

type cursorHeap struct {
	cursors []*runCursor
	cmp     Comparator
}

func (h *cursorHeap) Len() int { return len(h.cursors) }
func (h *cursorHeap) Less(i, j int) bool {
	return h.cmp(h.cursors[i].row, h.cursors[j].row) < 0
}
func (h *cursorHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }
func (h *cursorHeap) Push(x any)    { h.cursors = append(h.cursors, x.(*runCursor)) }
func (h *cursorHeap) Pop() any {
	old := h.cursors
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	h.cursors = old[:n-1]
	return c
}

// advance loads the next row of the cursor's run.
func (c *runCursor) advance(dec *encoding.TermDecoder) (bool, error) {
	if !c.it.Next() {
		return false, nil
	}
	value, err := c.it.Value()
	if err != nil {
		return false, err
	}
	count, n := binary.Uvarint(value)
	if n <= 0 {
		return false, encoding.ErrTruncated
	}
	row, err := dec.DecodeSolution(value[n:])
	if err != nil {
		return false, err
	}
	c.row = row
	c.count = int64(count) // #nosec G115 - written from a positive int64
	return true, nil
}

func (b *SortedBag) mergeIterator() (iter.Iteration[binding.Solution], error) {
	txn, err := b.spill.reader()
	if err != nil {
		return nil, err
	}
	dec := b.f.decoder()
	h := &cursorHeap{cmp: b.cmp}

	release := func() error {
		var errs []error
		for _, c := range h.cursors {
			errs = append(errs, c.it.Close())
		}
		h.cursors = nil
		errs = append(errs, txn.Rollback())
		return errors.Join(errs...)
	}

	for run := 0; run < b.runs; run++ {
		it, err := txn.Scan(store.TableRun, b.spill.key(runKey(run, 0)), b.spill.key(runKey(run+1, 0)))
		if err != nil {
			return nil, errors.Join(err, release())
		}
		c := &runCursor{it: it}
		ok, err := c.advance(dec)
		if err != nil {
			h.cursors = append(h.cursors, c)
			return nil, errors.Join(err, release())
		}
		if !ok {
			_ = it.Close() // #nosec G104 - empty run
			continue
		}
		h.cursors = append(h.cursors, c)
	}
	heap.Init(h)

	var (
		emitted  int64
		last     binding.Solution
		current  binding.Solution
		pending  int64
		haveLast bool
	)
	return iter.NewLookahead(func() (binding.Solution, bool, error) {
		for {
			if b.limit >= 0 && emitted >= b.limit {
				return nil, false, nil
			}
			if pending > 0 {
				pending--
				emitted++
				return current, true, nil
			}
			if h.Len() == 0 {
				return nil, false, nil
			}

			c := h.cursors[0]
			row, count := c.row, c.count
			ok, err := c.advance(dec)
			if err != nil {
				return nil, false, fmt.Errorf("failed to read sort run: %w", err)
			}
			if ok {
				heap.Fix(h, 0)
			} else {
				_ = c.it.Close() // #nosec G104 - exhausted run
				heap.Pop(h)
			}

			if b.distinct {
				if haveLast && b.cmp(last, row) == 0 {
					continue
				}
				count = 1
			}
			last, haveLast = row, true
			current, pending = row, count
		}
	}, release), nil
}

// Close drops the bag's contents.
func (b *SortedBag) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.tree.Clear(false)
	if b.spill != nil {
		return b.spill.drop()
	}
	return nil
}
