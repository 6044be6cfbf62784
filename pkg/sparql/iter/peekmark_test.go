package iter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, it Iteration[int]) int {
	t.Helper()
	v, err := it.Next()
	require.NoError(t, err)
	return v
}

func TestPeekMark_Peek(t *testing.T) {
	p := NewPeekMark(FromSlice(ints(3)))

	v, err := p.Peek()
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	v, err = p.Peek()
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, next(t, p))
	assert.Equal(t, 1, next(t, p))
	assert.Equal(t, 2, next(t, p))

	_, err = p.Peek()
	assert.ErrorIs(t, err, ErrNoMoreElements)
}

func TestPeekMark_MarkReset(t *testing.T) {
	p := NewPeekMark(FromSlice(ints(6)))
	assert.Equal(t, 0, next(t, p))

	p.Mark()
	assert.True(t, p.IsMarked())
	assert.True(t, p.IsResettable())
	assert.Equal(t, 1, next(t, p))
	assert.Equal(t, 2, next(t, p))

	require.NoError(t, p.Reset())
	assert.Equal(t, 1, next(t, p))
	assert.Equal(t, 2, next(t, p))
	assert.Equal(t, 3, next(t, p))

	require.NoError(t, p.Reset())
	assert.Equal(t, 1, next(t, p))

	// Re-marking in the middle of a replay starts the new mark there.
	p.Mark()
	assert.Equal(t, 2, next(t, p))
	require.NoError(t, p.Reset())
	assert.Equal(t, 2, next(t, p))
	assert.Equal(t, 3, next(t, p))
	assert.Equal(t, 4, next(t, p))

	p.Unmark()
	assert.False(t, p.IsMarked())
	assert.False(t, p.IsResettable())
	assert.ErrorIs(t, p.Reset(), ErrNotMarked)
	assert.Equal(t, 5, next(t, p))
}

func TestPeekMark_UnmarkKeepsPendingReplay(t *testing.T) {
	p := NewPeekMark(FromSlice(ints(4)))
	p.Mark()
	assert.Equal(t, 0, next(t, p))
	assert.Equal(t, 1, next(t, p))
	assert.Equal(t, 2, next(t, p))
	require.NoError(t, p.Reset())
	assert.Equal(t, 0, next(t, p))

	p.Unmark()
	got, err := Collect[int](p)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestPeekMark_ResetWithoutMark(t *testing.T) {
	p := NewPeekMark(FromSlice(ints(1)))
	assert.ErrorIs(t, p.Reset(), ErrNotMarked)
}

func TestPeekMark_Close(t *testing.T) {
	src := track(FromSlice(ints(3)))
	p := NewPeekMark[int](src)
	p.Mark()
	next(t, p)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, src.closes)

	ok, err := p.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
}
