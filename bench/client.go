package bench

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	bufferqueue "github.com/usherasnick/niostream/buffer-queue"
	"github.com/usherasnick/niostream/fwriter"
	"github.com/usherasnick/niostream/kafka"
	streamio "github.com/usherasnick/niostream/stream-io"
	"github.com/usherasnick/niostream/tpsctrl"
)

// Client 吞吐量测试客户端, 每个连接用WriteBuffer写入Runs*Blocks条记录, 每轮结束时flush.
type Client struct {
	cfg     *Config
	ctrl    *tpsctrl.TPSController
	metrics *Metrics
	hub     *PipeHub
}

// NewClient 返回Client实例.
func NewClient(cfg *Config, opts ...Option) *Client {
	o := newOptions(opts)
	return &Client{
		cfg:     cfg,
		ctrl:    tpsctrl.NewTPSController(cfg.RateLimit),
		metrics: o.metrics,
		hub:     o.hub,
	}
}

// Metrics 返回客户端使用的指标.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Bytes 返回已写出的字节数.
func (c *Client) Bytes() int64 {
	return counterValue(c.metrics.BytesWritten)
}

// Records 返回已写出的记录数.
func (c *Client) Records() int64 {
	return counterValue(c.metrics.RecordsWritten)
}

// Run 并发运行cfg.Connections个连接, 任意一个连接失败时取消其余连接.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Connections; i++ {
		id := i
		g.Go(func() error {
			return c.stream(ctx, id)
		})
	}
	return g.Wait()
}

func (c *Client) dial(ctx context.Context, id int) (streamio.ByteSink, error) {
	switch c.cfg.Transport {
	case TransportKafka:
		admin, err := kafka.NewAdmin(&c.cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("bench: kafka admin: %w", err)
		}
		defer admin.Close()
		if err := admin.EnsureTopic(c.cfg.Kafka.Topic, c.cfg.Kafka.Partition); err != nil {
			return nil, fmt.Errorf("bench: ensure topic %s: %w", c.cfg.Kafka.Topic, err)
		}
		return kafka.DialSink(&c.cfg.Kafka)
	case TransportFile:
		return fwriter.NewSafeWriter(c.cfg.FilePath(id))
	case TransportPipe:
		if c.hub == nil {
			return nil, fmt.Errorf("bench: pipe transport requires a PipeHub")
		}
		return c.hub.Dial(ctx)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", c.cfg.Addr)
}

func (c *Client) stream(ctx context.Context, id int) error {
	sink, err := c.dial(ctx, id)
	if err != nil {
		return err
	}
	w, err := streamio.NewWriteBufferSize(tpsctrl.ThrottleSink(sink, c.ctrl), c.cfg.WriteBufferSize)
	if err != nil {
		return err
	}
	// unblock a write stuck on a slow peer
	stop := func() bool { return true }
	switch conn := sink.(type) {
	case net.Conn:
		stop = context.AfterFunc(ctx, func() { conn.Close() }) // nolint
	case *bufferqueue.ChunkPipe:
		stop = context.AfterFunc(ctx, func() { conn.CloseWithError(context.Canceled) }) // nolint
	}
	defer stop()

	var seq int64
	for run := 0; run < c.cfg.Runs; run++ {
		if err := ctx.Err(); err != nil {
			return c.abort(w, sink, id, err)
		}
		ts := time.Now()
		var transferred int64
		for i := 0; i < c.cfg.Blocks; i++ {
			if err := WriteRecord(w, &seq); err != nil {
				return c.abort(w, sink, id, err)
			}
			transferred += RecordSize
		}
		if err := w.Flush(); err != nil {
			return c.abort(w, sink, id, err)
		}
		elapsed := time.Since(ts)
		c.metrics.RunDuration.Observe(elapsed.Seconds())
		c.metrics.BytesWritten.Add(float64(transferred))
		c.metrics.RecordsWritten.Add(float64(c.cfg.Blocks))

		tput := float64(transferred/1024) / elapsed.Seconds()
		log.Info().Msgf("[conn-%d] run %d: %dms, tput=%.1fKB/s, transferred=%dKB",
			id, run, elapsed.Milliseconds(), tput, transferred/1024)
	}

	if !stop() {
		return c.abort(w, sink, id, ctx.Err())
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("bench: conn-%d close: %w", id, err)
	}
	return nil
}

func (c *Client) abort(w *streamio.WriteBuffer, sink streamio.ByteSink, id int, err error) error {
	log.Error().Err(err).Msgf("[conn-%d] stream failed", id)
	// a half written file never replaces the target
	if sw, ok := sink.(*fwriter.SafeWriter); ok {
		sw.Abort()
	}
	w.Close() // nolint
	return fmt.Errorf("bench: conn-%d: %w", id, err)
}
