package tpsctrl

import (
	"io"
	"time"

	"github.com/juju/ratelimit"
	"github.com/rs/zerolog/log"

	streamio "github.com/usherasnick/niostream/stream-io"
)

// TPSController 用于调控TPS, 在字节流上使用时1个令牌对应1个字节.
type TPSController struct {
	quota  int
	bucket *ratelimit.Bucket
}

// NewTPSController 返回TPSController实例.
// Max(TPS) == quota, quota <= 0 表示不限速.
func NewTPSController(quota int) *TPSController {
	ctrl := TPSController{}
	ctrl.quota = quota
	if quota <= 0 {
		return &ctrl
	}

	interval := time.Second / time.Duration(ctrl.quota)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	ctrl.bucket = ratelimit.NewBucket(interval, int64(ctrl.quota))

	return &ctrl
}

// Quota 返回每秒的令牌数.
func (ctrl *TPSController) Quota() int {
	return ctrl.quota
}

// Take 从事务桶中取1个令牌, 如果当前无可用令牌, 等待直到出现可用令牌.
func (ctrl *TPSController) Take() {
	ctrl.TakeX(1)
}

// TakeX 从事务桶中取x个令牌, 如果当前无可用令牌, 等待直到出现可用令牌.
func (ctrl *TPSController) TakeX(x int64) {
	if ctrl.bucket == nil || x <= 0 {
		return
	}
	waitUntilAvailable := ctrl.bucket.Take(x)
	if waitUntilAvailable != 0 {
		log.Debug().Msgf("tps quota limit exceeds, wait %s until %d tokens turn to be available", waitUntilAvailable.String(), x)
		time.Sleep(waitUntilAvailable)
	}
}

// limit caps a single transfer so that one call never waits for more than a second of quota.
func (ctrl *TPSController) limit(n int) int {
	if ctrl.bucket == nil || n <= ctrl.quota {
		return n
	}
	return ctrl.quota
}

type throttledSink struct {
	ctrl *TPSController
	sink streamio.ByteSink
}

// ThrottleSink 返回限速的ByteSink, 每次最多写出1秒配额的字节, 剩余部分由WriteBuffer.Flush重试.
func ThrottleSink(sink streamio.ByteSink, ctrl *TPSController) streamio.ByteSink {
	return &throttledSink{ctrl: ctrl, sink: sink}
}

func (s *throttledSink) Write(p []byte) (int, error) {
	p = p[:s.ctrl.limit(len(p))]
	s.ctrl.TakeX(int64(len(p)))
	return s.sink.Write(p)
}

func (s *throttledSink) Close() error {
	if c, ok := s.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type throttledSource struct {
	ctrl *TPSController
	src  streamio.ByteSource
}

// ThrottleSource 返回限速的ByteSource, 按实际读到的字节数扣除令牌.
func ThrottleSource(src streamio.ByteSource, ctrl *TPSController) streamio.ByteSource {
	return &throttledSource{ctrl: ctrl, src: src}
}

func (s *throttledSource) Read(p []byte) (int, error) {
	n, err := s.src.Read(p[:s.ctrl.limit(len(p))])
	s.ctrl.TakeX(int64(n))
	return n, err
}
