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
	// DefaultWriteBufferSize 写缓冲区的默认容量.
	DefaultWriteBufferSize = 32 * 1024
	// MinWriteBufferSize 写缓冲区的最小容量, 保证任意基本类型都不会被拆分到两次flush中.
	MinWriteBufferSize = 8
)

var errInvalidWrite = errors.New("streamio: sink returned invalid count from Write")

// WriteBuffer 带缓冲的二进制写入器, 按大端序把基本类型编码进固定容量的窗口,
// 只在调用Flush或窗口空间不足时才把数据写入ByteSink.
// WriteBuffer 不是并发安全的.
type WriteBuffer struct {
	sink   ByteSink
	buf    []byte
	n      int // write cursor, [0, n) is not flushed yet
	err    error
	closed bool
}

// NewWriteBuffer 返回容量为DefaultWriteBufferSize的WriteBuffer实例.
func NewWriteBuffer(sink ByteSink) *WriteBuffer {
	return &WriteBuffer{
		sink: sink,
		buf:  make([]byte, DefaultWriteBufferSize),
	}
}

// NewWriteBufferSize 返回指定容量的WriteBuffer实例, size小于MinWriteBufferSize时返回ErrInvalidCapacity.
func NewWriteBufferSize(sink ByteSink, size int) (*WriteBuffer, error) {
	if size < MinWriteBufferSize {
		return nil, ErrInvalidCapacity
	}
	return &WriteBuffer{
		sink: sink,
		buf:  make([]byte, size),
	}, nil
}

// Cap 返回窗口容量.
func (b *WriteBuffer) Cap() int {
	return len(b.buf)
}

// Buffered 返回尚未flush的字节数.
func (b *WriteBuffer) Buffered() int {
	return b.n
}

// Available 返回窗口剩余空间.
func (b *WriteBuffer) Available() int {
	return len(b.buf) - b.n
}

func (b *WriteBuffer) check() error {
	if b.closed {
		return ErrClosed
	}
	return b.err
}

// reserve hands out width bytes at the write cursor, flushing first if they do not fit.
func (b *WriteBuffer) reserve(width int) ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if b.Available() < width {
		if err := b.Flush(); err != nil {
			return nil, err
		}
	}
	p := b.buf[b.n : b.n+width]
	b.n += width
	return p, nil
}

// Flush 把窗口中的全部数据写入ByteSink, sink只接受部分数据时继续写剩余部分.
func (b *WriteBuffer) Flush() error {
	if b.err != nil {
		return b.err
	}
	off, empty := 0, 0
	for off < b.n {
		n, err := b.sink.Write(b.buf[off:b.n])
		if n < 0 || n > b.n-off {
			n, err = 0, errInvalidWrite
		}
		off += n
		if err == nil && n == 0 {
			if empty++; empty >= maxConsecutiveEmptyWrites {
				err = io.ErrShortWrite
			}
		} else {
			empty = 0
		}
		if err != nil {
			// keep what the sink did not take
			b.n = copy(b.buf, b.buf[off:b.n])
			b.err = err
			log.Debug().Err(err).Msgf("write buffer flush failed, %d bytes pending", b.n)
			return err
		}
	}
	b.n = 0
	return nil
}

// Close 先flush全部数据, 再关闭ByteSink (如果它实现了io.Closer). 重复调用Close返回nil.
func (b *WriteBuffer) Close() error {
	if b.closed {
		return nil
	}
	err := b.Flush()
	b.closed = true
	if c, ok := b.sink.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Write 实现io.Writer, p可以超过窗口容量, 窗口写满时flush后继续.
func (b *WriteBuffer) Write(p []byte) (int, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	written := 0
	for len(p) > 0 {
		if b.Available() == 0 {
			if err := b.Flush(); err != nil {
				return written, err
			}
		}
		n := copy(b.buf[b.n:], p)
		b.n += n
		written += n
		p = p[n:]
	}
	return written, nil
}

// WriteByte 写1个字节.
func (b *WriteBuffer) WriteByte(c byte) error {
	p, err := b.reserve(1)
	if err != nil {
		return err
	}
	p[0] = c
	return nil
}

// WriteBoolean 写1个字节, true为1, false为0.
func (b *WriteBuffer) WriteBoolean(v bool) error {
	if v {
		return b.WriteByte(1)
	}
	return b.WriteByte(0)
}

// WriteShort 写2字节整数.
func (b *WriteBuffer) WriteShort(v int16) error {
	return b.writeUint16(uint16(v))
}

// WriteChar 写2字节的UTF-16码元, 超出基本多文种平面的rune只保留低16位.
func (b *WriteBuffer) WriteChar(r rune) error {
	return b.writeUint16(uint16(r))
}

func (b *WriteBuffer) writeUint16(v uint16) error {
	p, err := b.reserve(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(p, v)
	return nil
}

// WriteInt 写4字节整数.
func (b *WriteBuffer) WriteInt(v int32) error {
	p, err := b.reserve(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(p, uint32(v))
	return nil
}

// WriteLong 写8字节整数.
func (b *WriteBuffer) WriteLong(v int64) error {
	p, err := b.reserve(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(p, uint64(v))
	return nil
}

// WriteFloat 写4字节IEEE-754浮点数.
func (b *WriteBuffer) WriteFloat(v float32) error {
	p, err := b.reserve(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(p, math.Float32bits(v))
	return nil
}

// WriteDouble 写8字节IEEE-754浮点数.
func (b *WriteBuffer) WriteDouble(v float64) error {
	p, err := b.reserve(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(p, math.Float64bits(v))
	return nil
}

// WriteString 写2字节长度前缀加UTF-8内容, 内容超过65535字节时返回ErrStringTooLong且不写入任何数据.
func (b *WriteBuffer) WriteString(s string) error {
	if len(s) > math.MaxUint16 {
		return ErrStringTooLong
	}
	if err := b.writeUint16(uint16(len(s))); err != nil {
		return err
	}
	_, err := b.Write(fasttypeconversion.String2Bytes(s))
	return err
}

// WriteBytes 直接写字符串的字节, 不带长度前缀.
func (b *WriteBuffer) WriteBytes(s string) error {
	_, err := b.Write(fasttypeconversion.String2Bytes(s))
	return err
}

// WriteChars 不支持按UTF-16写字符数组, 总是返回ErrUnsupported.
func (b *WriteBuffer) WriteChars(s string) error {
	return ErrUnsupported
}
