package bench

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	streamio "github.com/usherasnick/niostream/stream-io"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "niostream.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Nil(t, err)
	assert.Equal(t, TransportTCP, cfg.Transport)
	assert.Equal(t, "127.0.0.1:4567", cfg.Addr)
	assert.Equal(t, 6234, cfg.ReadBufferSize)
	assert.Equal(t, 5*1024, cfg.WriteBufferSize)
	assert.Equal(t, 10, cfg.Runs)
	assert.Equal(t, 50000, cfg.Blocks)
	assert.Equal(t, 1, cfg.Connections)
	assert.Equal(t, 16, cfg.MaxSessions)
	assert.Equal(t, 0, cfg.RateLimit)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "niostream", cfg.Kafka.Topic)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
transport = "KAFKA"
read_buffer_size = 3003
write_buffer_size = 8192
runs = 2
blocks = 100
rate_limit = 1048576
log_level = "debug"

[kafka]
brokers = ["10.0.0.1:9092", "10.0.0.2:9092"]
topic = "bench"
partition = 3
from_oldest = true
`)
	cfg, err := LoadConfig(path)
	assert.Nil(t, err)
	assert.Equal(t, TransportKafka, cfg.Transport)
	assert.Equal(t, 3003, cfg.ReadBufferSize)
	assert.Equal(t, 8192, cfg.WriteBufferSize)
	assert.Equal(t, 2, cfg.Runs)
	assert.Equal(t, 100, cfg.Blocks)
	assert.Equal(t, 1048576, cfg.RateLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"10.0.0.1:9092", "10.0.0.2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "bench", cfg.Kafka.Topic)
	assert.Equal(t, int32(3), cfg.Kafka.Partition)
	assert.True(t, cfg.Kafka.FromOldest)
	// untouched fields fall back to defaults
	assert.Equal(t, "127.0.0.1:4567", cfg.Addr)
	assert.Equal(t, 16, cfg.MaxSessions)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.NotNil(t, err)
}

func TestLoadConfigMalformed(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `runs = "ten"`))
	assert.NotNil(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name     string
		modify   func(cfg *Config)
		sentinel error
	}{
		{"unknown transport", func(cfg *Config) { cfg.Transport = "udp" }, nil},
		{"kafka without brokers", func(cfg *Config) { cfg.Transport = TransportKafka }, nil},
		{"kafka with many connections", func(cfg *Config) {
			cfg.Transport = TransportKafka
			cfg.Kafka.Brokers = []string{"localhost:9092"}
			cfg.Connections = 2
		}, nil},
		{"small read buffer", func(cfg *Config) { cfg.ReadBufferSize = 255 }, streamio.ErrInvalidCapacity},
		{"small write buffer", func(cfg *Config) { cfg.WriteBufferSize = 7 }, streamio.ErrInvalidCapacity},
		{"negative runs", func(cfg *Config) { cfg.Runs = -1 }, nil},
		{"negative rate limit", func(cfg *Config) { cfg.RateLimit = -5 }, nil},
		{"bad log level", func(cfg *Config) { cfg.LogLevel = "loud" }, nil},
	}
	for _, c := range cases {
		cfg := &Config{}
		cfg.SetDefaults()
		c.modify(cfg)
		err := cfg.Validate()
		assert.NotNil(t, err, c.name)
		if c.sentinel != nil {
			assert.True(t, errors.Is(err, c.sentinel), c.name)
		}
	}

	cfg := &Config{}
	cfg.SetDefaults()
	assert.Nil(t, cfg.Validate())
}

func TestApplyLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	cfg := &Config{LogLevel: "warn"}
	cfg.ApplyLogLevel()
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	cfg.LogLevel = "nonsense"
	cfg.ApplyLogLevel()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestValidateNormalizesTransport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport = " Pipe "
	assert.Nil(t, cfg.Validate())
	assert.Equal(t, TransportPipe, cfg.Transport)

	// a flag override applied after LoadConfig
	cfg.Transport = "KAFKA"
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	assert.Nil(t, cfg.Validate())
	assert.Equal(t, TransportKafka, cfg.Transport)

	cfg.Transport = "FILE"
	cfg.File = ""
	assert.NotNil(t, cfg.Validate())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	loaded, err := LoadConfig("")
	assert.Nil(t, err)
	assert.Equal(t, loaded, cfg)
	assert.Equal(t, "niostream.dat", cfg.File)
}

func TestFilePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File = "/tmp/records.dat"
	assert.Equal(t, "/tmp/records.dat", cfg.FilePath(0))

	cfg.Connections = 3
	assert.Equal(t, "/tmp/records.dat.0", cfg.FilePath(0))
	assert.Equal(t, "/tmp/records.dat.2", cfg.FilePath(2))
}
