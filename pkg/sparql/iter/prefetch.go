package iter

import (
	"context"
	"sync"
)

// prefetcher holds the lifecycle shared by the prefetch policies: a
// cancelable context for the background goroutine, a channel closed when
// the goroutine exits and the upstream, which only the goroutine reads.
type prefetcher[T any] struct {
	src    Iteration[T]
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (p *prefetcher[T]) init(ctx context.Context, src Iteration[T]) {
	p.src = src
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
}

// pull reads one element from upstream.
func (p *prefetcher[T]) pull() (T, bool, error) {
	var zero T
	ok, err := p.src.HasNext()
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := p.src.Next()
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// shutdown cancels the goroutine, waits for it and closes upstream, once.
func (p *prefetcher[T]) shutdown(wake func()) error {
	p.closeOnce.Do(func() {
		p.cancel()
		if wake != nil {
			wake()
		}
		<-p.done
		p.closeErr = p.src.Close()
	})
	return p.closeErr
}

// Buffered drains its upstream on a background goroutine into an unbounded
// queue.
type Buffered[T any] struct {
	prefetcher[T]

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []T
	err      error
	finished bool
	closed   bool
	stop     func() bool
}

// NewBuffered starts draining src in the background.
func NewBuffered[T any](ctx context.Context, src Iteration[T]) *Buffered[T] {
	b := &Buffered[T]{}
	b.init(ctx, src)
	b.cond = sync.NewCond(&b.mu)
	b.stop = context.AfterFunc(b.ctx, b.broadcast)
	go b.run()
	return b
}

func (b *Buffered[T]) broadcast() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *Buffered[T]) run() {
	defer close(b.done)
	for b.ctx.Err() == nil {
		v, ok, err := b.pull()
		b.mu.Lock()
		switch {
		case err != nil:
			b.err = err
			b.finished = true
		case !ok:
			b.finished = true
		default:
			b.queue = append(b.queue, v)
		}
		b.cond.Broadcast()
		finished := b.finished
		b.mu.Unlock()
		if finished {
			return
		}
	}
}

func (b *Buffered[T]) HasNext() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) == 0 && !b.finished && !b.closed && b.ctx.Err() == nil {
		b.cond.Wait()
	}
	if len(b.queue) > 0 {
		return true, nil
	}
	if b.closed {
		return false, nil
	}
	if b.err != nil {
		return false, b.err
	}
	if !b.finished {
		return false, b.ctx.Err()
	}
	return false, nil
}

func (b *Buffered[T]) Next() (T, error) {
	var zero T
	ok, err := b.HasNext()
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrNoMoreElements
	}
	b.mu.Lock()
	v := b.queue[0]
	b.queue[0] = zero
	b.queue = b.queue[1:]
	b.mu.Unlock()
	return v, nil
}

func (b *Buffered[T]) Close() error {
	b.mu.Lock()
	b.closed = true
	b.queue = nil
	b.mu.Unlock()
	b.stop()
	return b.shutdown(b.broadcast)
}

type item[T any] struct {
	v   T
	err error
}

// Direct hands elements one at a time from a background goroutine through
// an unbuffered channel.
type Direct[T any] struct {
	prefetcher[T]

	ch      chan item[T]
	current item[T]
	has     bool
	closed  bool
}

// NewDirect starts reading src in the background.
func NewDirect[T any](ctx context.Context, src Iteration[T]) *Direct[T] {
	d := &Direct[T]{ch: make(chan item[T])}
	d.init(ctx, src)
	go d.run()
	return d
}

func (d *Direct[T]) run() {
	defer close(d.done)
	defer close(d.ch)
	for {
		v, ok, err := d.pull()
		if !ok && err == nil {
			return
		}
		select {
		case d.ch <- item[T]{v: v, err: err}:
		case <-d.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (d *Direct[T]) HasNext() (bool, error) {
	if d.has {
		return true, nil
	}
	if d.closed {
		return false, nil
	}
	select {
	case it, ok := <-d.ch:
		if !ok {
			return false, d.ctx.Err()
		}
		if it.err != nil {
			return false, it.err
		}
		d.current = it
		d.has = true
		return true, nil
	case <-d.ctx.Done():
		return false, d.ctx.Err()
	}
}

func (d *Direct[T]) Next() (T, error) {
	var zero T
	ok, err := d.HasNext()
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrNoMoreElements
	}
	d.has = false
	v := d.current.v
	d.current = item[T]{}
	return v, nil
}

func (d *Direct[T]) Close() error {
	d.closed = true
	d.has = false
	return d.shutdown(nil)
}

type batch[T any] struct {
	items []T
	err   error
}

// ReadAhead fills batches on a background goroutine. The batch size starts
// at the initial size and doubles after every full batch up to the
// maximum. A partial batch is handed over whenever the consumer has
// nothing queued.
type ReadAhead[T any] struct {
	prefetcher[T]

	ch      chan batch[T]
	current []T
	pos     int
	err     error
	closed  bool

	initialBatch int
	maxBatch     int
}

// NewReadAhead starts filling batches from src in the background.
func NewReadAhead[T any](ctx context.Context, src Iteration[T], initialBatch, maxBatch int) *ReadAhead[T] {
	if initialBatch < 1 {
		initialBatch = 1
	}
	if maxBatch < initialBatch {
		maxBatch = initialBatch
	}
	r := &ReadAhead[T]{
		ch:           make(chan batch[T], 1),
		initialBatch: initialBatch,
		maxBatch:     maxBatch,
	}
	r.init(ctx, src)
	go r.run()
	return r
}

func (r *ReadAhead[T]) run() {
	defer close(r.done)
	defer close(r.ch)
	size := r.initialBatch
	items := make([]T, 0, size)
	for r.ctx.Err() == nil {
		v, ok, err := r.pull()
		if err != nil || !ok {
			if len(items) > 0 || err != nil {
				select {
				case r.ch <- batch[T]{items: items, err: err}:
				case <-r.ctx.Done():
				}
			}
			return
		}
		items = append(items, v)

		if len(items) >= size {
			select {
			case r.ch <- batch[T]{items: items}:
			case <-r.ctx.Done():
				return
			}
			size = min(size*2, r.maxBatch)
			items = make([]T, 0, size)
			continue
		}
		// An empty slot means the consumer has caught up: hand over what
		// we have rather than wait on a slow upstream to fill the batch.
		select {
		case r.ch <- batch[T]{items: items}:
			items = make([]T, 0, size)
		default:
		}
	}
}

func (r *ReadAhead[T]) HasNext() (bool, error) {
	for {
		if r.pos < len(r.current) {
			return true, nil
		}
		if r.closed {
			return false, nil
		}
		if r.err != nil {
			return false, r.err
		}
		select {
		case b, ok := <-r.ch:
			if !ok {
				return false, r.ctx.Err()
			}
			r.current, r.pos = b.items, 0
			r.err = b.err
		case <-r.ctx.Done():
			return false, r.ctx.Err()
		}
	}
}

func (r *ReadAhead[T]) Next() (T, error) {
	var zero T
	ok, err := r.HasNext()
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrNoMoreElements
	}
	v := r.current[r.pos]
	r.current[r.pos] = zero
	r.pos++
	return v, nil
}

func (r *ReadAhead[T]) Close() error {
	r.closed = true
	r.current = nil
	r.pos = 0
	return r.shutdown(nil)
}
