package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/usherasnick/niostream/bench"
)

var errPipeServer = errors.New("pipe transport runs in one process, use nio-client --transport pipe")

var (
	configFile     string
	transport      string
	addr           string
	file           string
	readBufferSize int
	maxSessions    int
	rateLimit      int
	metricsAddr    string
	logLevel       string
)

// rootCmd 吞吐量测试服务端
var rootCmd = &cobra.Command{
	Use:   "nio-server",
	Short: "接收并校验nio-client写出的记录流",
	Long:  "监听tcp端口、消费kafka分区或校验file传输提交的文件, 每个会话用ReadBuffer逐条解码并校验记录, 结束时打印统计信息",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bench.LoadConfig(configFile)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("transport") {
			cfg.Transport = transport
		}
		if flags.Changed("addr") {
			cfg.Addr = addr
		}
		if flags.Changed("file") {
			cfg.File = file
		}
		if flags.Changed("read-buffer") {
			cfg.ReadBufferSize = readBufferSize
		}
		if flags.Changed("max-sessions") {
			cfg.MaxSessions = maxSessions
		}
		if flags.Changed("rate-limit") {
			cfg.RateLimit = rateLimit
		}
		if flags.Changed("metrics-addr") {
			cfg.MetricsAddr = metricsAddr
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Transport == bench.TransportPipe {
			return errPipeServer
		}
		cfg.ApplyLogLevel()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := bench.NewServer(cfg, bench.WithMetrics(bench.NewMetrics(prometheus.DefaultRegisterer)))
		if cfg.Transport == bench.TransportTCP {
			if err := srv.Listen(); err != nil {
				return err
			}
		}
		if cfg.MetricsAddr == "" {
			return srv.Serve(ctx)
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return bench.ServeMetrics(ctx, cfg.MetricsAddr, prometheus.DefaultGatherer)
		})
		g.Go(func() error {
			defer stop()
			return srv.Serve(ctx)
		})
		return g.Wait()
	},
}

func init() {
	defaults := bench.DefaultConfig()
	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "TOML配置文件路径")
	flags.StringVar(&transport, "transport", defaults.Transport, "传输方式: tcp, kafka 或 file")
	flags.StringVar(&addr, "addr", defaults.Addr, "监听地址")
	flags.StringVar(&file, "file", defaults.File, "file传输下校验的文件")
	flags.IntVar(&readBufferSize, "read-buffer", defaults.ReadBufferSize, "读缓冲区容量 (字节)")
	flags.IntVar(&maxSessions, "max-sessions", defaults.MaxSessions, "最大并发会话数")
	flags.IntVar(&rateLimit, "rate-limit", defaults.RateLimit, "每秒读取的字节数上限, 0表示不限速")
	flags.StringVar(&metricsAddr, "metrics-addr", defaults.MetricsAddr, "prometheus指标的监听地址, 为空时不提供")
	flags.StringVar(&logLevel, "log-level", defaults.LogLevel, "日志级别")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
