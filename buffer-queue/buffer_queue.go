package bufferqueue

import (
	"io"
	"sync"

	"github.com/gammazero/deque"
)

const (
	__DefaultCap      = 128
	__DefaultMaxChunk = 4096
)

// ChunkPipe 有界的内存字节管道, 一端是ByteSink, 另一端是ByteSource.
// 写端每次最多接受maxChunk个字节 (部分写), 队列中的块数达到cap时阻塞写端;
// 读端按块读取, 读不完的部分留在队头.
type ChunkPipe struct {
	mu   sync.Mutex
	cond *sync.Cond

	q          deque.Deque // of []byte
	cap        int
	maxChunk   int
	closeWrite bool
	closeErr   error
}

// NewChunkPipe 返回ChunkPipe实例, cap或maxChunk为0时使用默认值.
func NewChunkPipe(cap, maxChunk int) *ChunkPipe {
	if cap <= 0 {
		cap = __DefaultCap
	}
	if maxChunk <= 0 {
		maxChunk = __DefaultMaxChunk
	}
	p := ChunkPipe{
		cap:      cap,
		maxChunk: maxChunk,
	}
	p.cond = sync.NewCond(&p.mu)
	return &p
}

// Write 拷贝p的前maxChunk个字节入队, 返回实际接受的字节数.
func (p *ChunkPipe) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.q.Len() >= p.cap && p.closeErr == nil && !p.closeWrite {
		p.cond.Wait()
	}
	if p.closeErr != nil {
		return 0, p.closeErr
	}
	if p.closeWrite {
		return 0, io.ErrClosedPipe
	}

	n := len(b)
	if n > p.maxChunk {
		n = p.maxChunk
	}
	chunk := make([]byte, n)
	copy(chunk, b)
	p.q.PushBack(chunk)
	p.cond.Broadcast()
	return n, nil
}

// Read 从队头的块中读取数据, 队列为空时阻塞, 写端关闭且队列读空后返回io.EOF.
func (p *ChunkPipe) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.q.Len() == 0 && p.closeErr == nil && !p.closeWrite {
		p.cond.Wait()
	}
	if p.closeErr != nil {
		return 0, p.closeErr
	}
	if p.q.Len() == 0 {
		return 0, io.EOF
	}

	chunk := p.q.PopFront().([]byte)
	n := copy(b, chunk)
	if n < len(chunk) {
		p.q.PushFront(chunk[n:])
	}
	p.cond.Broadcast()
	return n, nil
}

// CloseWrite 关闭写端, 读端读完剩余数据后得到io.EOF.
func (p *ChunkPipe) CloseWrite() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeWrite = true
	p.cond.Broadcast()
	return nil
}

// Close 等同于CloseWrite, 使ChunkPipe可以作为io.Closer交给WriteBuffer.
func (p *ChunkPipe) Close() error {
	return p.CloseWrite()
}

// CloseWithError 立即关闭两端, 之后的读写都返回err.
func (p *ChunkPipe) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeErr = err
	for p.q.Len() > 0 {
		p.q.PopFront()
	}
	p.cond.Broadcast()
	return nil
}

// Len 返回队列中的块数.
func (p *ChunkPipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.q.Len()
}
