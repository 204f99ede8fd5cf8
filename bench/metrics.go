package bench

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

const __MetricsNamespace = "niostream"

// Metrics 吞吐量测试的prometheus指标, 服务端和客户端在同一进程中时可以共用一份.
type Metrics struct {
	Sessions        prometheus.Counter
	FailedSessions  prometheus.Counter
	RecordsVerified prometheus.Counter
	RecordsWritten  prometheus.Counter
	BytesWritten    prometheus.Counter
	RunDuration     prometheus.Histogram
}

// NewMetrics 创建指标, registerer为nil时不注册.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		Sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: __MetricsNamespace,
			Subsystem: "server",
			Name:      "sessions_total",
			Help:      "Number of sessions served",
		}),
		FailedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: __MetricsNamespace,
			Subsystem: "server",
			Name:      "failed_sessions_total",
			Help:      "Number of sessions that ended with a corrupted, truncated or broken stream",
		}),
		RecordsVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: __MetricsNamespace,
			Subsystem: "server",
			Name:      "records_verified_total",
			Help:      "Number of records decoded and verified",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: __MetricsNamespace,
			Subsystem: "client",
			Name:      "records_written_total",
			Help:      "Number of records encoded and flushed",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: __MetricsNamespace,
			Subsystem: "client",
			Name:      "bytes_written_total",
			Help:      "Number of record bytes flushed to the transport",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: __MetricsNamespace,
			Subsystem: "client",
			Name:      "run_duration_seconds",
			Help:      "Duration of one run of blocks including the final flush",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.Sessions,
			m.FailedSessions,
			m.RecordsVerified,
			m.RecordsWritten,
			m.BytesWritten,
			m.RunDuration,
		)
	}

	return &m
}

func counterValue(c prometheus.Counter) int64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return int64(pb.GetCounter().GetValue())
}

// WaitVerified 等待服务端校验完want条记录, 有会话失败或ctx结束时提前返回false.
func (m *Metrics) WaitVerified(ctx context.Context, want int64) bool {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if counterValue(m.RecordsVerified) >= want {
			return true
		}
		if counterValue(m.FailedSessions) > 0 {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// ServeMetrics 在addr上提供/metrics, 直到ctx结束.
func ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		srv.Close() // nolint
	})
	defer stop()

	log.Info().Msgf("metrics available at http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
