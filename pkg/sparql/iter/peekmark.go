package iter

import "errors"

// ErrNotMarked is returned by Reset when no mark is active.
var ErrNotMarked = errors.New("iteration is not marked")

// PeekMark wraps an iteration with one-element peeking and a single
// mark/reset point. Elements read after Mark are retained so that Reset can
// replay them.
type PeekMark[T any] struct {
	src Iteration[T]

	// buffer[pos:] are pulled but not yet returned; buffer[:pos] are the
	// elements returned since the mark.
	buffer     []T
	pos        int
	marked     bool
	resettable bool
	closed     bool
}

// NewPeekMark wraps it.
func NewPeekMark[T any](it Iteration[T]) *PeekMark[T] {
	return &PeekMark[T]{src: it}
}

func (p *PeekMark[T]) HasNext() (bool, error) {
	if p.closed {
		return false, nil
	}
	if p.pos < len(p.buffer) {
		return true, nil
	}
	ok, err := p.src.HasNext()
	if err != nil || !ok {
		return false, err
	}
	v, err := p.src.Next()
	if err != nil {
		return false, err
	}
	p.buffer = append(p.buffer, v)
	return true, nil
}

// Peek returns the next element without consuming it.
func (p *PeekMark[T]) Peek() (T, error) {
	var zero T
	ok, err := p.HasNext()
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrNoMoreElements
	}
	return p.buffer[p.pos], nil
}

func (p *PeekMark[T]) Next() (T, error) {
	v, err := p.Peek()
	if err != nil {
		return v, err
	}
	p.pos++
	if !p.marked {
		p.discardConsumed()
	}
	return v, nil
}

func (p *PeekMark[T]) discardConsumed() {
	if p.pos == len(p.buffer) {
		clear(p.buffer)
		p.buffer = p.buffer[:0]
	} else {
		p.buffer = append(p.buffer[:0], p.buffer[p.pos:]...)
	}
	p.pos = 0
}

// Mark sets the replay point at the current position, replacing any
// previous mark.
func (p *PeekMark[T]) Mark() {
	p.discardConsumed()
	p.marked = true
	p.resettable = true
}

// Reset rewinds to the mark.
func (p *PeekMark[T]) Reset() error {
	if !p.resettable {
		return ErrNotMarked
	}
	p.pos = 0
	return nil
}

// Unmark drops the mark and the replay state. Reset fails until the next
// Mark.
func (p *PeekMark[T]) Unmark() {
	p.marked = false
	p.resettable = false
	p.discardConsumed()
}

func (p *PeekMark[T]) IsMarked() bool {
	return p.marked
}

func (p *PeekMark[T]) IsResettable() bool {
	return p.resettable
}

func (p *PeekMark[T]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.buffer = nil
	p.pos = 0
	return p.src.Close()
}
