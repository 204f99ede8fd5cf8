package bench

import (
	"errors"
	"fmt"
	"io"
	"strings"

	streamio "github.com/usherasnick/niostream/stream-io"
)

const (
	RecordMagic    int32   = 140267
	LongsPerRecord         = 20
	RecordFlag     byte    = 1
	RecordDouble   float64 = 1.5
	RecordChar     rune    = 'c'
	recordTextLen          = 333

	// RecordSize 单条记录编码后的字节数.
	RecordSize = 4 + LongsPerRecord*8 + 1 + 2 + recordTextLen + 8 + 2
)

// RecordText 记录中的字符串字段.
var RecordText = strings.Repeat("A", recordTextLen)

// ErrTruncatedRecord 流在记录中间结束.
var ErrTruncatedRecord = errors.New("bench: stream ended inside a record")

// MismatchError 记录中的字段与期望值不一致.
type MismatchError struct {
	Field string
	Want  interface{}
	Got   interface{}
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("bench: check=%v != %v (%s)", e.Want, e.Got, e.Field)
}

// WriteRecord 写入一条记录, seq为跨记录递增的long计数器.
func WriteRecord(w *streamio.WriteBuffer, seq *int64) error {
	if err := w.WriteInt(RecordMagic); err != nil {
		return err
	}
	for i := 0; i < LongsPerRecord; i++ {
		if err := w.WriteLong(*seq); err != nil {
			return err
		}
		*seq++
	}
	if err := w.WriteByte(RecordFlag); err != nil {
		return err
	}
	if err := w.WriteString(RecordText); err != nil {
		return err
	}
	if err := w.WriteDouble(RecordDouble); err != nil {
		return err
	}
	return w.WriteChar(RecordChar)
}

// VerifyRecord 读取并校验一条记录.
// 流恰好在记录边界结束时返回io.EOF, 在记录中间结束时返回ErrTruncatedRecord.
func VerifyRecord(r *streamio.ReadBuffer, seq *int64) error {
	magic, err := r.ReadInt()
	if err != nil {
		if errors.Is(err, io.EOF) && r.Buffered() == 0 {
			return io.EOF
		}
		return truncated("magic", err)
	}
	if magic != RecordMagic {
		return &MismatchError{Field: "magic", Want: RecordMagic, Got: magic}
	}

	for i := 0; i < LongsPerRecord; i++ {
		l, err := r.ReadLong()
		if err != nil {
			return truncated("long", err)
		}
		if l != *seq {
			return &MismatchError{Field: "long", Want: *seq, Got: l}
		}
		*seq++
	}

	b, err := r.ReadByte()
	if err != nil {
		return truncated("flag", err)
	}
	if b != RecordFlag {
		return &MismatchError{Field: "flag", Want: RecordFlag, Got: b}
	}

	s, err := r.ReadString()
	if err != nil {
		return truncated("text", err)
	}
	if s != RecordText {
		return &MismatchError{Field: "text", Want: RecordText, Got: s}
	}

	d, err := r.ReadDouble()
	if err != nil {
		return truncated("double", err)
	}
	if d != RecordDouble {
		return &MismatchError{Field: "double", Want: RecordDouble, Got: d}
	}

	c, err := r.ReadChar()
	if err != nil {
		return truncated("char", err)
	}
	if c != RecordChar {
		return &MismatchError{Field: "char", Want: string(RecordChar), Got: string(c)}
	}
	return nil
}

func truncated(field string, err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s", ErrTruncatedRecord, field)
	}
	return fmt.Errorf("bench: read %s: %w", field, err)
}
