package fwriter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	streamio "github.com/usherasnick/niostream/stream-io"
)

func TestSafeWriter(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "fixtures", "test.txt")

	w, err := NewSafeWriter(fn)
	require.NoError(t, err)
	_, err = NewSafeWriter(fn)
	assert.True(t, errors.Is(err, ErrLocked))

	n, err := w.Write([]byte("hello world"))
	assert.NoError(t, err)
	assert.Equal(t, 11, n)

	// nothing is visible before commit
	_, err = os.Stat(fn)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, w.Commit())
	data, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	_, err = os.Stat(fn + ".lock")
	assert.True(t, os.IsNotExist(err))
	_, err = w.Write([]byte("x"))
	assert.True(t, errors.Is(err, ErrFinished))
	assert.NoError(t, w.Close())
}

func TestSafeWriterAbort(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "keep.bin")
	require.NoError(t, os.WriteFile(fn, []byte("old"), 0644))

	w, err := NewSafeWriter(fn)
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	w.Abort()

	data, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// the lock is free again
	w, err = NewSafeWriter(fn)
	require.NoError(t, err)
	w.Abort()
}

func TestSafeWriterAsSink(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "records.bin")

	sw, err := NewSafeWriter(fn)
	require.NoError(t, err)
	w, err := streamio.NewWriteBufferSize(sw, 64)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, w.WriteInt(int32(i)))
		require.NoError(t, w.WriteString("record"))
	}
	require.NoError(t, w.Close())

	f, err := os.Open(fn)
	require.NoError(t, err)
	defer f.Close()

	r, err := streamio.NewReadBuffer(f, streamio.MinReadBufferSize)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		v, err := r.ReadInt()
		require.NoError(t, err)
		assert.Equal(t, int32(i), v)
		s, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, "record", s)
	}
	_, err = r.ReadByte()
	assert.ErrorIs(t, err, streamio.ErrEndOfStream)
}
