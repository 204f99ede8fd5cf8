package tokenpool

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed 令牌池已关闭.
var ErrPoolClosed = errors.New("tokenpool: pool has been closed")

// TokenPool 限制同时进行的会话数, 每个会话持有一个令牌.
type TokenPool struct {
	concurrency int
	q           chan int
	done        chan struct{}
	once        sync.Once
	wg          sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewTokenPool 返回TokenPool实例, concurrency <= 0 时只有1个令牌.
func NewTokenPool(concurrency int) *TokenPool {
	if concurrency <= 0 {
		concurrency = 1
	}
	p := TokenPool{
		concurrency: concurrency,
		q:           make(chan int, concurrency),
		done:        make(chan struct{}),
	}
	for i := 0; i < concurrency; i++ {
		p.q <- i
	}
	return &p
}

// Acquire 获取令牌, 没有空闲令牌时阻塞, 直到ctx结束或池被关闭.
func (p *TokenPool) Acquire(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return -1, ErrPoolClosed
	default:
	}

	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-p.done:
		return -1, ErrPoolClosed
	case token := <-p.q:
		// Close may have won the race, never Add once Join can be waiting
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			p.q <- token
			return -1, ErrPoolClosed
		}
		p.wg.Add(1)
		return token, nil
	}
}

// Release 归还令牌.
func (p *TokenPool) Release(token int) {
	p.q <- token
	p.wg.Done()
}

// Idle 返回空闲令牌数.
func (p *TokenPool) Idle() int {
	return len(p.q)
}

// Close 关闭令牌池, 之后的Acquire都返回ErrPoolClosed, 已发出的令牌仍可归还.
func (p *TokenPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
}

// Join 等待所有已发出的令牌被归还, 需要在Close之后调用.
func (p *TokenPool) Join() {
	p.wg.Wait()
}
