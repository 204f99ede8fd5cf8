package streamio

/* Reading Rules

type ByteSource interface {
    Read(p []byte) (n int, err error)
}

1. A Read() call will read up to len(p) into p, when possible.
2. After a Read() call, n may be less then len(p).
3. Upon error, a Read() call may still return n bytes in transfer buffer p.
   Those bytes are kept in the window before the error is reported.
4. When a Read() call exhausts available data, a source may return a non-zero n and err=io.EOF.
   The bytes are buffered, and the end of stream is remembered for the next pull.
5. A Read() call that returns n=0 and err=nil does not mean EOF, the next call may return more data.
   After maxConsecutiveEmptyReads such calls ReadBuffer gives up with io.ErrNoProgress.

*/

// ByteSource 数据源, 每次调用将尽可能多的字节拉取到p中, 以io.EOF表示流结束.
// net.Conn, *os.File 以及任意io.Reader都满足该接口.
type ByteSource interface {
	Read(p []byte) (n int, err error)
}

// ByteSink 数据汇, 与io.Writer不同, 允许在err为nil时只接受p的一部分 (n < len(p)).
// WriteBuffer.Flush 会重试剩余部分直到全部被接受.
type ByteSink interface {
	Write(p []byte) (n int, err error)
}

const (
	maxConsecutiveEmptyReads  = 100
	maxConsecutiveEmptyWrites = 100
)
