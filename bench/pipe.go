package bench

import (
	"context"
	"errors"
	"sync"

	bufferqueue "github.com/usherasnick/niostream/buffer-queue"
)

// ErrHubClosed PipeHub已关闭.
var ErrHubClosed = errors.New("bench: pipe hub has been closed")

// PipeHub 进程内的连接器, 客户端Dial得到ChunkPipe的写端, 服务端Accept得到同一个ChunkPipe的读端.
type PipeHub struct {
	chunks   int
	maxChunk int

	conns chan *bufferqueue.ChunkPipe
	done  chan struct{}
	once  sync.Once
}

// NewPipeHub 返回PipeHub实例, 参数含义同bufferqueue.NewChunkPipe.
func NewPipeHub(chunks, maxChunk int) *PipeHub {
	return &PipeHub{
		chunks:   chunks,
		maxChunk: maxChunk,
		conns:    make(chan *bufferqueue.ChunkPipe),
		done:     make(chan struct{}),
	}
}

// Dial 创建一条ChunkPipe并等待服务端Accept.
func (h *PipeHub) Dial(ctx context.Context) (*bufferqueue.ChunkPipe, error) {
	p := bufferqueue.NewChunkPipe(h.chunks, h.maxChunk)
	select {
	case h.conns <- p:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrHubClosed
	}
}

// Accept 等待下一条ChunkPipe.
func (h *PipeHub) Accept(ctx context.Context) (*bufferqueue.ChunkPipe, error) {
	select {
	case p := <-h.conns:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrHubClosed
	}
}

// Close 关闭PipeHub, 阻塞中的Dial/Accept返回ErrHubClosed.
func (h *PipeHub) Close() {
	h.once.Do(func() {
		close(h.done)
	})
}
