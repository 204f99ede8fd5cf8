package bench

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/usherasnick/niostream/kafka"
	streamio "github.com/usherasnick/niostream/stream-io"
)

const (
	TransportTCP   = "tcp"
	TransportKafka = "kafka"
	TransportPipe  = "pipe" // in-process ChunkPipe, client and server share a PipeHub
	TransportFile  = "file" // client commits a file, server verifies it afterwards

	__DefaultAddr            = "127.0.0.1:4567"
	__DefaultReadBufferSize  = 6234
	__DefaultWriteBufferSize = 5 * 1024
	__DefaultRuns            = 10
	__DefaultBlocks          = 50000
	__DefaultConnections     = 1
	__DefaultMaxSessions     = 16
	__DefaultLogLevel        = "info"
	__DefaultKafkaTopic      = "niostream"
	__DefaultFile            = "niostream.dat"
)

// Config 吞吐量测试的客户端/服务端配置.
type Config struct {
	Transport       string       `json:"transport" toml:"transport"`
	Addr            string       `json:"addr" toml:"addr"`
	ReadBufferSize  int          `json:"read_buffer_size" toml:"read_buffer_size"`
	WriteBufferSize int          `json:"write_buffer_size" toml:"write_buffer_size"`
	Runs            int          `json:"runs" toml:"runs"`
	Blocks          int          `json:"blocks" toml:"blocks"`
	Connections     int          `json:"connections" toml:"connections"`
	MaxSessions     int          `json:"max_sessions" toml:"max_sessions"`
	RateLimit       int          `json:"rate_limit" toml:"rate_limit"` // bytes per second, 0 means unlimited
	LogLevel        string       `json:"log_level" toml:"log_level"`
	MetricsAddr     string       `json:"metrics_addr" toml:"metrics_addr"` // serve /metrics here when set
	File            string       `json:"file" toml:"file"`
	PipeChunks      int          `json:"pipe_chunks" toml:"pipe_chunks"`
	PipeMaxChunk    int          `json:"pipe_max_chunk" toml:"pipe_max_chunk"`
	Kafka           kafka.Config `json:"kafka" toml:"kafka"`
}

// LoadConfig 从TOML文件加载配置, path为空时只使用默认值.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("bench: load config %s: %w", path, err)
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig 返回填充了全部默认值的配置.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults 为零值字段填充默认值.
func (cfg *Config) SetDefaults() {
	if cfg.Transport == "" {
		cfg.Transport = TransportTCP
	}
	if cfg.Addr == "" {
		cfg.Addr = __DefaultAddr
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = __DefaultReadBufferSize
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = __DefaultWriteBufferSize
	}
	if cfg.Runs == 0 {
		cfg.Runs = __DefaultRuns
	}
	if cfg.Blocks == 0 {
		cfg.Blocks = __DefaultBlocks
	}
	if cfg.Connections == 0 {
		cfg.Connections = __DefaultConnections
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = __DefaultMaxSessions
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = __DefaultLogLevel
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = __DefaultKafkaTopic
	}
	if cfg.File == "" {
		cfg.File = __DefaultFile
	}
}

// FilePath 返回file传输下第id个连接使用的文件.
func (cfg *Config) FilePath(id int) string {
	if cfg.Connections <= 1 {
		return cfg.File
	}
	return fmt.Sprintf("%s.%d", cfg.File, id)
}

// Validate 规范化传输方式并检查配置.
func (cfg *Config) Validate() error {
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	switch cfg.Transport {
	case TransportTCP, TransportPipe:
	case TransportFile:
		if cfg.File == "" {
			return fmt.Errorf("bench: file transport requires a file path")
		}
	case TransportKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("bench: kafka transport requires at least one broker")
		}
		if cfg.Connections > 1 {
			return fmt.Errorf("bench: kafka transport carries a single stream, got %d connections", cfg.Connections)
		}
	default:
		return fmt.Errorf("bench: unknown transport %q", cfg.Transport)
	}
	if cfg.ReadBufferSize < streamio.MinReadBufferSize {
		return fmt.Errorf("bench: read_buffer_size %d: %w", cfg.ReadBufferSize, streamio.ErrInvalidCapacity)
	}
	if cfg.WriteBufferSize < streamio.MinWriteBufferSize {
		return fmt.Errorf("bench: write_buffer_size %d: %w", cfg.WriteBufferSize, streamio.ErrInvalidCapacity)
	}
	if cfg.Runs < 0 || cfg.Blocks < 0 || cfg.Connections < 0 || cfg.RateLimit < 0 || cfg.PipeChunks < 0 || cfg.PipeMaxChunk < 0 {
		return fmt.Errorf("bench: runs, blocks, connections, rate_limit and pipe sizes must not be negative")
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("bench: log_level: %w", err)
	}
	return nil
}

// ApplyLogLevel 设置全局日志级别.
func (cfg *Config) ApplyLogLevel() {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
