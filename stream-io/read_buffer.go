package streamio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/rs/zerolog/log"

	fasttypeconversion "github.com/usherasnick/niostream/fast-type-conversion"
)

const (
	// MinReadBufferSize 读缓冲区的最小容量.
	MinReadBufferSize = 256

	// compact only when the trailing free space is this small,
	// otherwise keep appending behind the write cursor.
	extendThreshold = 8
)

// ReadBuffer 带缓冲的二进制读取器, 从ByteSource按需补充固定容量的窗口, 并按大端序解码基本类型.
// ReadBuffer 不是并发安全的.
type ReadBuffer struct {
	src ByteSource
	win *window
	err error // sticky, set once the source ended or failed
}

// NewReadBuffer 返回ReadBuffer实例, capacity小于MinReadBufferSize时返回ErrInvalidCapacity.
func NewReadBuffer(src ByteSource, capacity int) (*ReadBuffer, error) {
	if capacity < MinReadBufferSize {
		return nil, ErrInvalidCapacity
	}
	return &ReadBuffer{
		src: src,
		win: newWindow(capacity),
	}, nil
}

// Cap 返回窗口容量.
func (b *ReadBuffer) Cap() int {
	return b.win.capacity()
}

// Buffered 返回窗口中尚未解码的字节数.
func (b *ReadBuffer) Buffered() int {
	return b.win.buffered()
}

// ensureAvailable returns immediately if n bytes are buffered, otherwise it
// pulls from the source once. A single call only guarantees progress, not n bytes.
func (b *ReadBuffer) ensureAvailable(n int) error {
	if b.win.buffered() >= n {
		return nil
	}
	if b.win.trailing() <= extendThreshold {
		b.win.compact()
	}
	return b.pull()
}

// require loops until n bytes are buffered. n must not exceed the capacity.
func (b *ReadBuffer) require(n int) error {
	for b.win.buffered() < n {
		if err := b.ensureAvailable(n); err != nil {
			return err
		}
	}
	return nil
}

// pull reads from the source into the trailing space until at least one byte
// arrived. An error returned with data is remembered and reported by the next pull.
func (b *ReadBuffer) pull() error {
	if b.err != nil {
		return b.err
	}
	if b.win.trailing() == 0 {
		// full window, the caller consumes before asking again
		return nil
	}
	for i := 0; i < maxConsecutiveEmptyReads; i++ {
		n, err := b.win.extend(b.src)
		if err != nil {
			b.setErr(err)
			if n > 0 {
				return nil
			}
			return b.err
		}
		if n > 0 {
			return nil
		}
	}
	b.setErr(io.ErrNoProgress)
	return b.err
}

func (b *ReadBuffer) setErr(err error) {
	if errors.Is(err, io.EOF) {
		b.err = ErrEndOfStream
		return
	}
	log.Debug().Err(err).Msg("read buffer source failed")
	b.err = err
}

// ReadByte 读取1个字节.
func (b *ReadBuffer) ReadByte() (byte, error) {
	if err := b.require(1); err != nil {
		return 0, err
	}
	return b.win.next(1)[0], nil
}

// ReadBoolean 读取1个字节, 非0即为true.
func (b *ReadBuffer) ReadBoolean() (bool, error) {
	v, err := b.ReadByte()
	return v != 0, err
}

// ReadShort 读取2字节有符号整数.
func (b *ReadBuffer) ReadShort() (int16, error) {
	v, err := b.ReadUnsignedShort()
	return int16(v), err
}

// ReadUnsignedShort 读取2字节无符号整数.
func (b *ReadBuffer) ReadUnsignedShort() (uint16, error) {
	if err := b.require(2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b.win.next(2)), nil
}

// ReadChar 读取2字节的UTF-16码元.
func (b *ReadBuffer) ReadChar() (rune, error) {
	v, err := b.ReadUnsignedShort()
	return rune(v), err
}

// ReadInt 读取4字节有符号整数.
func (b *ReadBuffer) ReadInt() (int32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b.win.next(4))), nil
}

// ReadLong 读取8字节有符号整数.
func (b *ReadBuffer) ReadLong() (int64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b.win.next(8))), nil
}

// ReadFloat 读取4字节IEEE-754浮点数.
func (b *ReadBuffer) ReadFloat() (float32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b.win.next(4))), nil
}

// ReadDouble 读取8字节IEEE-754浮点数.
func (b *ReadBuffer) ReadDouble() (float64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b.win.next(8))), nil
}

// ReadString 读取2字节长度前缀加UTF-8内容的字符串, 内容可以超过窗口容量.
func (b *ReadBuffer) ReadString() (string, error) {
	l, err := b.ReadUnsignedShort()
	if err != nil {
		return "", err
	}
	data := make([]byte, l)
	if err := b.ReadFull(data); err != nil {
		return "", err
	}
	// data is not referenced anywhere else
	return fasttypeconversion.Bytes2String(data), nil
}

// ReadFull 读满p, 数据不足时返回ErrEndOfStream.
func (b *ReadBuffer) ReadFull(p []byte) error {
	for off := 0; off < len(p); {
		remaining := len(p) - off
		if err := b.ensureAvailable(remaining); err != nil {
			return err
		}
		n := b.win.buffered()
		if n > remaining {
			n = remaining
		}
		off += copy(p[off:], b.win.next(n))
	}
	return nil
}

// Read implements io.Reader. It serves buffered bytes first and pulls from
// the source at most once when the window is empty.
func (b *ReadBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.win.buffered() == 0 {
		if err := b.ensureAvailable(1); err != nil {
			if errors.Is(err, ErrEndOfStream) {
				return 0, io.EOF
			}
			return 0, err
		}
	}
	n := b.win.buffered()
	if n > len(p) {
		n = len(p)
	}
	return copy(p, b.win.next(n)), nil
}
