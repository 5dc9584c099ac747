package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	b, err := New(100, 64)
	require.NoError(t, err)

	assert.Equal(t, 64, b.Capacity())
	assert.Equal(t, 0, b.Offset())
	assert.Equal(t, 64, b.Remaining())
	assert.Equal(t, int64(100), b.StartUSO())
	assert.Equal(t, int64(100), b.USO())
	assert.False(t, b.Sealed())
	assert.Empty(t, b.Bytes())

	_, err = New(0, -1)
	assert.ErrorIs(t, err, ErrBadCapacity)

	empty, err := New(7, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Remaining())
}

func TestStreamBlock_AppendReturnsStreamOffset(t *testing.T) {
	b, err := New(1000, 16)
	require.NoError(t, err)

	uso, err := b.Append([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, int64(1004), uso)

	dst, err := b.Reserve(3)
	require.NoError(t, err)
	copy(dst, "xyz")
	uso, err = b.Consumed(3)
	require.NoError(t, err)
	assert.Equal(t, int64(1007), uso)

	assert.Equal(t, []byte("abcdxyz"), b.Bytes())
	assert.Equal(t, 9, b.Remaining())
}

func TestStreamBlock_Capacity(t *testing.T) {
	b, err := New(0, 4)
	require.NoError(t, err)

	_, err = b.Append([]byte("12345"))
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, 0, b.Offset(), "failed append must not move the cursor")

	_, err = b.Reserve(-1)
	assert.ErrorIs(t, err, ErrCapacity)
}

func TestStreamBlock_TruncateTo(t *testing.T) {
	b, err := New(50, 32)
	require.NoError(t, err)

	_, err = b.Append([]byte("committed"))
	require.NoError(t, err)
	mark := b.USO()
	before := append([]byte(nil), b.Bytes()...)

	b.RecordLastBeginTxnOffset()
	_, err = b.Append([]byte("pending"))
	require.NoError(t, err)
	assert.Equal(t, 9, b.LastBeginTxnOffset())

	uso, err := b.TruncateTo(mark)
	require.NoError(t, err)
	assert.Equal(t, mark, uso)
	assert.Equal(t, before, b.Bytes())

	t.Run("future mark", func(t *testing.T) {
		_, err := b.TruncateTo(b.USO() + 1)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("mark before block", func(t *testing.T) {
		_, err := b.TruncateTo(49)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("clamps begin offset", func(t *testing.T) {
		b.RecordLastBeginTxnOffset()
		_, err := b.TruncateTo(52)
		require.NoError(t, err)
		assert.Equal(t, 2, b.LastBeginTxnOffset())
	})
}

func TestStreamBlock_Sealed(t *testing.T) {
	b, err := New(0, 8)
	require.NoError(t, err)
	_, err = b.Append([]byte("ab"))
	require.NoError(t, err)

	b.Seal()
	assert.True(t, b.Sealed())

	_, err = b.Append([]byte("c"))
	assert.ErrorIs(t, err, ErrSealed)
	_, err = b.Reserve(1)
	assert.ErrorIs(t, err, ErrSealed)
	_, err = b.Consumed(1)
	assert.ErrorIs(t, err, ErrSealed)
	_, err = b.TruncateTo(0)
	assert.ErrorIs(t, err, ErrSealed)

	assert.Equal(t, []byte("ab"), b.Bytes())
}
