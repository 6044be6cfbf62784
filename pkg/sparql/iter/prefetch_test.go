package iter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type policy struct {
	name string
	make func(ctx context.Context, src Iteration[int]) Iteration[int]
}

var policies = []policy{
	{"buffered", func(ctx context.Context, src Iteration[int]) Iteration[int] { return NewBuffered(ctx, src) }},
	{"direct", func(ctx context.Context, src Iteration[int]) Iteration[int] { return NewDirect(ctx, src) }},
	{"readahead", func(ctx context.Context, src Iteration[int]) Iteration[int] { return NewReadAhead(ctx, src, 2, 16) }},
	{"readahead wide", func(ctx context.Context, src Iteration[int]) Iteration[int] { return NewReadAhead(ctx, src, 16, 64) }},
}

func failingAfter(n int, err error) Iteration[int] {
	i := 0
	return NewLookahead(func() (int, bool, error) {
		if i >= n {
			return 0, false, err
		}
		i++
		return i - 1, true, nil
	}, nil)
}

func TestPrefetch_YieldsAllInOrder(t *testing.T) {
	for _, p := range policies {
		t.Run(p.name, func(t *testing.T) {
			src := track(FromSlice(ints(100)))
			got, err := Collect(p.make(context.Background(), src))
			require.NoError(t, err)
			assert.Equal(t, ints(100), got)
			assert.Equal(t, 1, src.closes)
		})
	}
}

func TestPrefetch_EmptyUpstream(t *testing.T) {
	for _, p := range policies {
		t.Run(p.name, func(t *testing.T) {
			it := p.make(context.Background(), Empty[int]())
			ok, err := it.HasNext()
			require.NoError(t, err)
			assert.False(t, ok)
			_, err = it.Next()
			assert.ErrorIs(t, err, ErrNoMoreElements)
			require.NoError(t, it.Close())
		})
	}
}

func TestPrefetch_CloseEarly(t *testing.T) {
	for _, p := range policies {
		t.Run(p.name, func(t *testing.T) {
			src := track(FromSlice(ints(10000)))
			it := p.make(context.Background(), src)

			v, err := it.Next()
			require.NoError(t, err)
			assert.Equal(t, 0, v)

			require.NoError(t, it.Close())
			require.NoError(t, it.Close())
			assert.Equal(t, 1, src.closes)

			ok, err := it.HasNext()
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestPrefetch_UpstreamError(t *testing.T) {
	boom := errors.New("boom")
	for _, p := range policies {
		t.Run(p.name, func(t *testing.T) {
			it := p.make(context.Background(), failingAfter(3, boom))

			var got []int
			var err error
			for {
				var ok bool
				ok, err = it.HasNext()
				if err != nil || !ok {
					break
				}
				v, nerr := it.Next()
				require.NoError(t, nerr)
				got = append(got, v)
			}
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, []int{0, 1, 2}, got)
			require.NoError(t, it.Close())
		})
	}
}

func TestPrefetch_CloseError(t *testing.T) {
	boom := errors.New("close failed")
	for _, p := range policies {
		t.Run(p.name, func(t *testing.T) {
			src := track(FromSlice(ints(3)))
			src.closeErr = boom
			it := p.make(context.Background(), src)

			assert.ErrorIs(t, it.Close(), boom)
			assert.ErrorIs(t, it.Close(), boom)
			assert.Equal(t, 1, src.closes)
		})
	}
}

func TestPrefetch_ParentCancel(t *testing.T) {
	for _, p := range policies {
		t.Run(p.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			block := make(chan struct{})
			src := track(NewLookahead(func() (int, bool, error) {
				<-block
				return 0, false, nil
			}, nil))
			it := p.make(ctx, src)

			cancel()
			_, err := it.HasNext()
			assert.ErrorIs(t, err, context.Canceled)

			close(block)
			require.NoError(t, it.Close())
			assert.Equal(t, 1, src.closes)
		})
	}
}

func TestReadAhead_BatchGrowth(t *testing.T) {
	r := NewReadAhead[int](context.Background(), FromSlice(ints(200)), 1, 8)
	defer r.Close()

	var sizes []int
	var got []int
	for {
		ok, err := r.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		sizes = append(sizes, len(r.current))
		for r.pos < len(r.current) {
			v, err := r.Next()
			require.NoError(t, err)
			got = append(got, v)
		}
		// A slow consumer lets the producer fill whole batches.
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, ints(200), got)
	assert.Equal(t, 1, sizes[0])
	for _, n := range sizes {
		assert.LessOrEqual(t, n, 8)
	}
	assert.Contains(t, sizes, 8)
}

func TestPrefetch_SlowUpstream(t *testing.T) {
	for _, p := range policies {
		t.Run(p.name, func(t *testing.T) {
			block := make(chan struct{})
			pulls := 0
			src := track(NewLookahead(func() (int, bool, error) {
				if pulls > 0 {
					<-block
					return 0, false, nil
				}
				pulls++
				return 7, true, nil
			}, nil))
			it := p.make(context.Background(), src)

			got := make(chan int, 1)
			go func() {
				v, err := it.Next()
				if err == nil {
					got <- v
				}
			}()
			select {
			case v := <-got:
				assert.Equal(t, 7, v)
			case <-time.After(2 * time.Second):
				t.Fatal("first row not delivered while upstream is blocked")
			}

			close(block)
			require.NoError(t, it.Close())
		})
	}
}
