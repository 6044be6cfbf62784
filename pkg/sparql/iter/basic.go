package iter

import (
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
)

// Empty returns an iteration with no elements.
func Empty[T any]() Iteration[T] {
	return NewLookahead(func() (T, bool, error) {
		var zero T
		return zero, false, nil
	}, nil)
}

// Single returns an iteration yielding v once.
func Single[T any](v T) Iteration[T] {
	return FromSlice([]T{v})
}

// FromSlice iterates over items. The slice must not change while the
// iteration is in use.
func FromSlice[T any](items []T) Iteration[T] {
	pos := 0
	return NewLookahead(func() (T, bool, error) {
		var zero T
		if pos >= len(items) {
			return zero, false, nil
		}
		v := items[pos]
		pos++
		return v, true, nil
	}, nil)
}

// Filter keeps the elements of it accepted by pred. A predicate error
// rejects the element.
func Filter[T any](it Iteration[T], pred func(T) (bool, error)) Iteration[T] {
	return NewLookahead(func() (T, bool, error) {
		var zero T
		for {
			ok, err := it.HasNext()
			if err != nil || !ok {
				return zero, false, err
			}
			v, err := it.Next()
			if err != nil {
				return zero, false, err
			}
			if keep, err := pred(v); err == nil && keep {
				return v, true, nil
			}
		}
	}, it.Close)
}

// Convert maps every element of it through fn.
func Convert[T, U any](it Iteration[T], fn func(T) (U, error)) Iteration[U] {
	return NewLookahead(func() (U, bool, error) {
		var zero U
		ok, err := it.HasNext()
		if err != nil || !ok {
			return zero, false, err
		}
		v, err := it.Next()
		if err != nil {
			return zero, false, err
		}
		u, err := fn(v)
		if err != nil {
			return zero, false, err
		}
		return u, true, nil
	}, it.Close)
}

// CrossProduct merges each left solution with every right solution it is
// compatible with.
func CrossProduct(left Iteration[binding.Solution], right []binding.Solution) Iteration[binding.Solution] {
	var current binding.Solution
	pos := len(right)
	return NewLookahead(func() (binding.Solution, bool, error) {
		for {
			for pos < len(right) {
				r := right[pos]
				pos++
				if merged, ok := binding.Merge(current, r); ok {
					return merged, true, nil
				}
			}
			ok, err := left.HasNext()
			if err != nil || !ok {
				return nil, false, err
			}
			if current, err = left.Next(); err != nil {
				return nil, false, err
			}
			pos = 0
		}
	}, left.Close)
}

// Limit yields at most n elements of it. The source is closed as soon as
// the limit is reached.
func Limit[T any](it Iteration[T], n int64) Iteration[T] {
	var count int64
	return NewLookahead(func() (T, bool, error) {
		var zero T
		if count >= n {
			return zero, false, nil
		}
		ok, err := it.HasNext()
		if err != nil || !ok {
			return zero, false, err
		}
		v, err := it.Next()
		if err != nil {
			return zero, false, err
		}
		count++
		return v, true, nil
	}, it.Close)
}

// Offset skips the first n elements of it.
func Offset[T any](it Iteration[T], n int64) Iteration[T] {
	skipped := false
	return NewLookahead(func() (T, bool, error) {
		var zero T
		if !skipped {
			skipped = true
			for i := int64(0); i < n; i++ {
				ok, err := it.HasNext()
				if err != nil || !ok {
					return zero, false, err
				}
				if _, err := it.Next(); err != nil {
					return zero, false, err
				}
			}
		}
		ok, err := it.HasNext()
		if err != nil || !ok {
			return zero, false, err
		}
		v, err := it.Next()
		if err != nil {
			return zero, false, err
		}
		return v, true, nil
	}, it.Close)
}

// KeySet records keys that have been seen.
type KeySet interface {
	// Add inserts key and reports whether it was not present before.
	Add(key []byte) (bool, error)
	Close() error
}

// Distinct drops elements whose key was already produced. The set is
// closed together with the iteration.
func Distinct[T any](it Iteration[T], key func(T) ([]byte, error), seen KeySet) Iteration[T] {
	return NewLookahead(func() (T, bool, error) {
		var zero T
		for {
			ok, err := it.HasNext()
			if err != nil || !ok {
				return zero, false, err
			}
			v, err := it.Next()
			if err != nil {
				return zero, false, err
			}
			k, err := key(v)
			if err != nil {
				return zero, false, err
			}
			added, err := seen.Add(k)
			if err != nil {
				return zero, false, err
			}
			if added {
				return v, true, nil
			}
		}
	}, func() error {
		return CloseAll(it, seen)
	})
}
