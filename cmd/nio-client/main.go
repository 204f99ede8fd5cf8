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

var errVerifyFailed = errors.New("in-process server failed to verify the records")

var (
	configFile      string
	transport       string
	addr            string
	file            string
	writeBufferSize int
	readBufferSize  int
	runs            int
	blocks          int
	connections     int
	rateLimit       int
	metricsAddr     string
	logLevel        string
)

// rootCmd 吞吐量测试客户端
var rootCmd = &cobra.Command{
	Use:   "nio-client",
	Short: "用WriteBuffer向nio-server写出记录流并统计吞吐量",
	Long: "每个连接写出runs*blocks条记录, 每轮结束时flush并打印本轮耗时和吞吐量.\n" +
		"pipe传输下在同一进程内启动服务端, 通过ChunkPipe传输并校验记录.",
	Args: cobra.NoArgs,
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
		if flags.Changed("write-buffer") {
			cfg.WriteBufferSize = writeBufferSize
		}
		if flags.Changed("read-buffer") {
			cfg.ReadBufferSize = readBufferSize
		}
		if flags.Changed("runs") {
			cfg.Runs = runs
		}
		if flags.Changed("blocks") {
			cfg.Blocks = blocks
		}
		if flags.Changed("connections") {
			cfg.Connections = connections
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
		cfg.ApplyLogLevel()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		metrics := bench.NewMetrics(prometheus.DefaultRegisterer)
		g, ctx := errgroup.WithContext(ctx)
		if cfg.MetricsAddr != "" {
			g.Go(func() error {
				return bench.ServeMetrics(ctx, cfg.MetricsAddr, prometheus.DefaultGatherer)
			})
		}

		opts := []bench.Option{bench.WithMetrics(metrics)}
		if cfg.Transport == bench.TransportPipe {
			hub := bench.NewPipeHub(cfg.PipeChunks, cfg.PipeMaxChunk)
			defer hub.Close()
			opts = append(opts, bench.WithPipeHub(hub))
			srv := bench.NewServer(cfg, opts...)
			g.Go(func() error {
				return srv.Serve(ctx)
			})
		}

		cli := bench.NewClient(cfg, opts...)
		g.Go(func() error {
			// the metrics endpoint and the in-process server live as long as the client
			defer stop()
			ts := time.Now()
			err := cli.Run(ctx)
			log.Info().Msgf("wrote %d records (%dKB) in %dms",
				cli.Records(), cli.Bytes()/1024, time.Since(ts).Milliseconds())
			if err == nil && cfg.Transport == bench.TransportPipe {
				if !metrics.WaitVerified(ctx, cli.Records()) {
					return errVerifyFailed
				}
			}
			return err
		})
		return g.Wait()
	},
}

func init() {
	defaults := bench.DefaultConfig()
	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "TOML配置文件路径")
	flags.StringVar(&transport, "transport", defaults.Transport, "传输方式: tcp, kafka, file 或 pipe")
	flags.StringVar(&addr, "addr", defaults.Addr, "服务端地址")
	flags.StringVar(&file, "file", defaults.File, "file传输下提交的文件")
	flags.IntVar(&writeBufferSize, "write-buffer", defaults.WriteBufferSize, "写缓冲区容量 (字节)")
	flags.IntVar(&readBufferSize, "read-buffer", defaults.ReadBufferSize, "pipe传输下进程内服务端的读缓冲区容量 (字节)")
	flags.IntVar(&runs, "runs", defaults.Runs, "每个连接的轮数")
	flags.IntVar(&blocks, "blocks", defaults.Blocks, "每轮写出的记录数")
	flags.IntVar(&connections, "connections", defaults.Connections, "并发连接数")
	flags.IntVar(&rateLimit, "rate-limit", defaults.RateLimit, "每秒写出的字节数上限, 0表示不限速")
	flags.StringVar(&metricsAddr, "metrics-addr", defaults.MetricsAddr, "prometheus指标的监听地址, 为空时不提供")
	flags.StringVar(&logLevel, "log-level", defaults.LogLevel, "日志级别")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
