package streamio

import "errors"

var errInvalidRead = errors.New("streamio: source returned invalid count from Read")

/*
	 0            r                 w               cap
	 | consumed   | unread          | trailing free  |

	r <= w <= cap, bytes in [r, w) are buffered and not yet decoded.
*/
type window struct {
	buf []byte
	r   int // read cursor
	w   int // write cursor
}

func newWindow(capacity int) *window {
	return &window{buf: make([]byte, capacity)}
}

func (b *window) capacity() int {
	return len(b.buf)
}

// buffered returns the number of unread bytes.
func (b *window) buffered() int {
	return b.w - b.r
}

// trailing returns the free space behind the write cursor.
func (b *window) trailing() int {
	return len(b.buf) - b.w
}

// next consumes n buffered bytes. The returned slice aliases the window
// and is only valid until the next refill.
func (b *window) next(n int) []byte {
	p := b.buf[b.r : b.r+n]
	b.r += n
	return p
}

// compact moves the unread region to offset 0 so that all free space is trailing.
func (b *window) compact() {
	if b.r == 0 {
		return
	}
	b.w = copy(b.buf, b.buf[b.r:b.w])
	b.r = 0
}

// extend reads once from src into the trailing space without moving buffered bytes.
// Bytes returned together with an error are kept.
func (b *window) extend(src ByteSource) (int, error) {
	if b.trailing() == 0 {
		return 0, nil
	}
	n, err := src.Read(b.buf[b.w:])
	if n < 0 || n > b.trailing() {
		return 0, errInvalidRead
	}
	b.w += n
	return n, err
}
