package streamio

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMixed(t *testing.T, w *WriteBuffer) {
	t.Helper()
	require.NoError(t, w.WriteInt(math.MinInt32))
	require.NoError(t, w.WriteBoolean(true))
	require.NoError(t, w.WriteShort(math.MaxInt16))
	require.NoError(t, w.WriteString("héllo, 世界"))
	require.NoError(t, w.WriteFloat(float32(math.Pi)))
	require.NoError(t, w.WriteLong(math.MinInt64))
	require.NoError(t, w.WriteChar('Z'))
	require.NoError(t, w.WriteDouble(math.Inf(-1)))
	require.NoError(t, w.WriteByte(0x80))
	require.NoError(t, w.Flush())
}

func readMixed(t *testing.T, r *ReadBuffer) {
	t.Helper()
	i, err := r.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), i)

	b, err := r.ReadBoolean()
	require.NoError(t, err)
	assert.True(t, b)

	s, err := r.ReadShort()
	require.NoError(t, err)
	assert.Equal(t, int16(math.MaxInt16), s)

	str, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "héllo, 世界", str)

	f, err := r.ReadFloat()
	require.NoError(t, err)
	assert.Equal(t, float32(math.Pi), f)

	l, err := r.ReadLong()
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), l)

	c, err := r.ReadChar()
	require.NoError(t, err)
	assert.Equal(t, 'Z', c)

	d, err := r.ReadDouble()
	require.NoError(t, err)
	assert.True(t, math.IsInf(d, -1))

	by, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), by)
}

func TestRoundTripMixed(t *testing.T) {
	var sink bytes.Buffer
	w, err := NewWriteBufferSize(&sink, 16)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		writeMixed(t, w)
	}
	raw := sink.Bytes()

	for _, capacity := range []int{256, 257, 300, 1024, 65536} {
		for _, chunk := range []int{1, 3, 64, 1 << 20} {
			r, err := NewReadBuffer(newChunkSource(raw, chunk), capacity)
			require.NoError(t, err)
			for i := 0; i < 50; i++ {
				readMixed(t, r)
			}
			_, err = r.ReadByte()
			assert.ErrorIs(t, err, ErrEndOfStream, "capacity %d chunk %d", capacity, chunk)
		}
	}
}

func TestRoundTripStringBoundaries(t *testing.T) {
	cases := []string{
		"",
		strings.Repeat("B", MinReadBufferSize+1),
		strings.Repeat("€", 21845), // 65535 bytes
		strings.Repeat("x", math.MaxUint16),
	}

	var sink bytes.Buffer
	w := NewWriteBuffer(&sink)
	for _, s := range cases {
		require.NoError(t, w.WriteString(s))
		require.NoError(t, w.WriteInt(int32(len(s))))
	}
	require.NoError(t, w.Close())

	r, err := NewReadBuffer(iotest.HalfReader(bytes.NewReader(sink.Bytes())), MinReadBufferSize)
	require.NoError(t, err)
	for _, s := range cases {
		got, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, len(s), len(got))
		assert.Equal(t, s, got)

		n, err := r.ReadInt()
		require.NoError(t, err)
		assert.Equal(t, int32(len(s)), n)
	}
}

func collectMixed(t *testing.T, r *ReadBuffer) []interface{} {
	t.Helper()
	var out []interface{}
	add := func(v interface{}, err error) {
		require.NoError(t, err)
		out = append(out, v)
	}
	add(r.ReadInt())
	add(r.ReadBoolean())
	add(r.ReadShort())
	add(r.ReadString())
	add(r.ReadFloat())
	add(r.ReadLong())
	add(r.ReadChar())
	add(r.ReadDouble())
	add(r.ReadByte())
	return out
}

func TestRefillTransparency(t *testing.T) {
	const groups = 20

	var sink bytes.Buffer
	w := NewWriteBuffer(&sink)
	for i := 0; i < groups; i++ {
		writeMixed(t, w)
	}
	raw := sink.Bytes()

	decode := func(src ByteSource) []interface{} {
		r, err := NewReadBuffer(src, MinReadBufferSize)
		require.NoError(t, err)
		var out []interface{}
		for i := 0; i < groups; i++ {
			out = append(out, collectMixed(t, r)...)
		}
		_, err = r.ReadByte()
		assert.ErrorIs(t, err, ErrEndOfStream)
		return out
	}

	bulk := decode(bytes.NewReader(raw))
	assert.Len(t, bulk, groups*9)
	assert.Equal(t, bulk, decode(iotest.OneByteReader(bytes.NewReader(raw))))
	assert.Equal(t, bulk, decode(iotest.HalfReader(bytes.NewReader(raw))))
	assert.Equal(t, bulk, decode(iotest.DataErrReader(bytes.NewReader(raw))))
	assert.Equal(t, bulk, decode(newChunkSource(raw, 7)))

	// every refill pattern also decodes to the written values
	for _, src := range []ByteSource{
		bytes.NewReader(raw),
		iotest.OneByteReader(bytes.NewReader(raw)),
	} {
		r, err := NewReadBuffer(src, MinReadBufferSize)
		require.NoError(t, err)
		for i := 0; i < groups; i++ {
			readMixed(t, r)
		}
	}
}

// Same record stream as the throughput demo: the reader uses a smaller
// window than the writer.
func TestEndToEndScenario(t *testing.T) {
	const blocks = 200
	text := strings.Repeat("A", 333)

	var sink bytes.Buffer
	w, err := NewWriteBufferSize(&sink, 8*1024)
	require.NoError(t, err)

	var check int64
	for i := 0; i < blocks; i++ {
		require.NoError(t, w.WriteInt(140267))
		for l := 0; l < 20; l++ {
			require.NoError(t, w.WriteLong(check))
			check++
		}
		require.NoError(t, w.WriteByte(1))
		require.NoError(t, w.WriteString(text))
		require.NoError(t, w.WriteDouble(1.5))
		require.NoError(t, w.WriteChar('c'))
	}
	require.NoError(t, w.Flush())

	r, err := NewReadBuffer(newChunkSource(sink.Bytes(), 1500), 3003)
	require.NoError(t, err)

	check = 0
	for i := 0; i < blocks; i++ {
		v, err := r.ReadInt()
		require.NoError(t, err)
		require.Equal(t, int32(140267), v)

		for l := 0; l < 20; l++ {
			got, err := r.ReadLong()
			require.NoError(t, err)
			require.Equal(t, check, got)
			check++
		}

		b, err := r.ReadByte()
		require.NoError(t, err)
		require.Equal(t, byte(1), b)

		s, err := r.ReadString()
		require.NoError(t, err)
		require.Len(t, s, 333)
		require.Equal(t, text, s)

		d, err := r.ReadDouble()
		require.NoError(t, err)
		require.Equal(t, 1.5, d)

		c, err := r.ReadChar()
		require.NoError(t, err)
		require.Equal(t, 'c', c)
	}

	_, err = r.ReadInt()
	assert.ErrorIs(t, err, ErrEndOfStream)
}
