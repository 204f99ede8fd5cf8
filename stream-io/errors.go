package streamio

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrEndOfStream is returned when the source closes while a byte demand is outstanding.
	// It wraps io.EOF.
	ErrEndOfStream = fmt.Errorf("streamio: end of stream: %w", io.EOF)
	// ErrInvalidCapacity is returned when a buffer is constructed below its minimum capacity.
	ErrInvalidCapacity = errors.New("streamio: invalid buffer capacity")
	// ErrUnsupported is returned by WriteChars.
	ErrUnsupported = errors.New("streamio: unsupported operation")
	// ErrStringTooLong is returned when a string does not fit the 2-byte length prefix.
	ErrStringTooLong = errors.New("streamio: string longer than 65535 bytes")
	// ErrClosed is returned when a closed WriteBuffer is used.
	ErrClosed = errors.New("streamio: buffer closed")
)
