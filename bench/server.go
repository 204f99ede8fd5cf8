package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/usherasnick/niostream/kafka"
	streamio "github.com/usherasnick/niostream/stream-io"
	tokenpool "github.com/usherasnick/niostream/token-pool"
	"github.com/usherasnick/niostream/tpsctrl"
)

// SessionStats 单个会话校验过的数据量.
type SessionStats struct {
	Records int64
	Longs   int64
}

// Server 吞吐量测试服务端, 对每个会话用ReadBuffer逐条校验记录.
type Server struct {
	cfg     *Config
	pool    *tokenpool.TokenPool
	ctrl    *tpsctrl.TPSController
	metrics *Metrics
	hub     *PipeHub

	mu sync.Mutex
	ln net.Listener
}

// NewServer 返回Server实例.
func NewServer(cfg *Config, opts ...Option) *Server {
	o := newOptions(opts)
	return &Server{
		cfg:     cfg,
		pool:    tokenpool.NewTokenPool(cfg.MaxSessions),
		ctrl:    tpsctrl.NewTPSController(cfg.RateLimit),
		metrics: o.metrics,
		hub:     o.hub,
	}
}

// Listen 绑定cfg.Addr, 只对tcp传输有效.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	log.Info().Msgf("server listening on %s", ln.Addr())
	return nil
}

// Addr 返回监听地址, 未监听时返回nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Metrics 返回服务端使用的指标.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Records 返回已校验通过的记录总数.
func (s *Server) Records() int64 {
	return counterValue(s.metrics.RecordsVerified)
}

// Failures 返回校验失败的会话数.
func (s *Server) Failures() int64 {
	return counterValue(s.metrics.FailedSessions)
}

// Serve 运行服务端直到ctx结束.
// tcp和pipe传输下为每个连接启动一个会话, kafka传输下只消费一个分区的流,
// file传输下依次校验客户端提交的文件后返回.
func (s *Server) Serve(ctx context.Context) error {
	switch s.cfg.Transport {
	case TransportKafka:
		return s.serveKafka(ctx)
	case TransportFile:
		return s.serveFile(ctx)
	case TransportPipe:
		return s.servePipe(ctx)
	}
	return s.serveTCP(ctx)
}

// stream is one accepted byte stream. abort unblocks a session reading from it.
type stream struct {
	src   streamio.ByteSource
	name  string
	abort func()
}

func (s *Server) serveTCP(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	ln := s.ln
	defer ln.Close() // nolint

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close() // nolint
		case <-stop:
		}
	}()

	return s.serveLoop(ctx, func() (stream, error) {
		conn, err := ln.Accept()
		if err != nil {
			return stream{}, err
		}
		return stream{
			src:   conn,
			name:  conn.RemoteAddr().String(),
			abort: func() { conn.Close() }, // nolint
		}, nil
	})
}

func (s *Server) servePipe(ctx context.Context) error {
	if s.hub == nil {
		return fmt.Errorf("bench: pipe transport requires a PipeHub")
	}
	var seq int
	return s.serveLoop(ctx, func() (stream, error) {
		p, err := s.hub.Accept(ctx)
		if err != nil {
			return stream{}, err
		}
		seq++
		return stream{
			src:   p,
			name:  fmt.Sprintf("pipe-%d", seq),
			abort: func() { p.CloseWithError(io.ErrClosedPipe) }, // nolint
		}, nil
	})
}

func (s *Server) serveLoop(ctx context.Context, accept func() (stream, error)) error {
	defer func() {
		s.pool.Close()
		s.pool.Join()
		s.Stat()
	}()
	for {
		st, err := accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		token, err := s.pool.Acquire(ctx)
		if err != nil {
			st.abort()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer s.pool.Release(token)
			defer st.abort()
			// unblock the session reader on shutdown
			stopAbort := context.AfterFunc(ctx, st.abort)
			defer stopAbort()
			s.session(st.name, st.src) // nolint
		}()
	}
}

func (s *Server) serveKafka(ctx context.Context) error {
	src, err := kafka.DialSource(&s.cfg.Kafka)
	if err != nil {
		return fmt.Errorf("bench: dial kafka source: %w", err)
	}
	defer src.Close() // nolint
	stop := context.AfterFunc(ctx, func() {
		src.Close() // nolint
	})
	_, err = s.session(s.cfg.Kafka.Topic, src)
	if !stop() && ctx.Err() != nil {
		err = nil
	}
	s.Stat()
	return err
}

func (s *Server) serveFile(ctx context.Context) error {
	defer s.Stat()
	connections := s.cfg.Connections
	if connections < 1 {
		connections = 1
	}
	for id := 0; id < connections; id++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := s.cfg.FilePath(id)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("bench: open %s: %w", path, err)
		}
		_, err = s.session(path, f)
		f.Close() // nolint
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) session(name string, src streamio.ByteSource) (SessionStats, error) {
	s.metrics.Sessions.Inc()
	var stats SessionStats

	r, err := streamio.NewReadBuffer(tpsctrl.ThrottleSource(src, s.ctrl), s.cfg.ReadBufferSize)
	if err != nil {
		s.metrics.FailedSessions.Inc()
		return stats, err
	}
	log.Info().Msgf("[%s] session started, read buffer %d bytes", name, r.Cap())

	var seq int64
	for {
		err := VerifyRecord(r, &seq)
		if err == io.EOF {
			log.Info().Msgf("[%s] session finished, verified %d records", name, stats.Records)
			return stats, nil
		}
		if err != nil {
			s.metrics.FailedSessions.Inc()
			var mismatch *MismatchError
			if errors.As(err, &mismatch) {
				log.Error().Err(err).Msgf("[%s] corrupted record %d", name, stats.Records)
			} else {
				log.Error().Err(err).Msgf("[%s] session failed after %d records", name, stats.Records)
			}
			return stats, err
		}
		stats.Records++
		stats.Longs = seq
		s.metrics.RecordsVerified.Inc()
	}
}

// Stat 打印服务端的统计信息.
func (s *Server) Stat() {
	log.Info().Msgf("served %d sessions, verified %d records, %d sessions failed",
		counterValue(s.metrics.Sessions), s.Records(), s.Failures())
}
