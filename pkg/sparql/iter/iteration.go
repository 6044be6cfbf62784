// Package iter defines the pull-based iteration protocol shared by all
// query operators, together with the small iterators they are built from.
package iter

import (
	"errors"
	"io"
)

// ErrNoMoreElements is returned by Next once an iteration is exhausted or
// closed.
var ErrNoMoreElements = errors.New("no more elements")

// Iteration is a closeable, pull-based sequence.
//
// HasNext may be called any number of times before Next without side
// effects. Close releases everything the iteration owns, including child
// iterations, and is safe to call more than once.
type Iteration[T any] interface {
	HasNext() (bool, error)
	Next() (T, error)
	Close() error
}

// Lookahead is the one-slot buffer most iterations are built on. The fetch
// function produces the next element, or false once the source is
// exhausted. Release runs exactly once, on exhaustion or Close, whichever
// comes first.
type Lookahead[T any] struct {
	fetch   func() (T, bool, error)
	release func() error

	next    T
	hasNext bool
	closed  bool
	err     error
}

// NewLookahead creates a lookahead iteration. release may be nil.
func NewLookahead[T any](fetch func() (T, bool, error), release func() error) *Lookahead[T] {
	return &Lookahead[T]{fetch: fetch, release: release}
}

func (l *Lookahead[T]) HasNext() (bool, error) {
	if l.hasNext {
		return true, nil
	}
	if l.closed {
		return false, nil
	}
	if l.err != nil {
		return false, l.err
	}

	v, ok, err := l.fetch()
	if err != nil {
		l.err = err
		return false, err
	}
	if !ok {
		return false, l.Close()
	}
	l.next = v
	l.hasNext = true
	return true, nil
}

func (l *Lookahead[T]) Next() (T, error) {
	var zero T
	ok, err := l.HasNext()
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrNoMoreElements
	}
	v := l.next
	l.next = zero
	l.hasNext = false
	return v, nil
}

func (l *Lookahead[T]) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.hasNext = false
	var zero T
	l.next = zero
	if l.release == nil {
		return nil
	}
	return l.release()
}

// CloseAll closes the given closers in reverse order, continuing past
// failures, and returns all errors joined. Nil entries are skipped.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if closers[i] == nil {
			continue
		}
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Collect drains it into a slice and closes it.
func Collect[T any](it Iteration[T]) ([]T, error) {
	var out []T
	for {
		ok, err := it.HasNext()
		if err != nil {
			return out, errors.Join(err, it.Close())
		}
		if !ok {
			break
		}
		v, err := it.Next()
		if err != nil {
			return out, errors.Join(err, it.Close())
		}
		out = append(out, v)
	}
	return out, it.Close()
}
