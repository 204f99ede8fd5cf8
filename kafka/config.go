package kafka

import (
	"os"

	"github.com/Shopify/sarama"
	"github.com/rs/zerolog/log"
)

// Config 基于kafka分区的字节流传输配置.
// 每次flush的窗口作为一条消息写入同一个分区, 消费端按offset顺序还原字节流.
type Config struct {
	Brokers    []string `json:"brokers" toml:"brokers"`
	Topic      string   `json:"topic" toml:"topic"`
	Partition  int32    `json:"partition" toml:"partition"`
	FromOldest bool     `json:"from_oldest" toml:"from_oldest"`
	ClientID   string   `json:"client_id" toml:"client_id"`
}

// NewConfig 返回sarama配置, 生产者写入指定分区并等待所有副本确认.
func NewConfig(cfg *Config) *sarama.Config {
	conf := sarama.NewConfig()
	if cfg.FromOldest {
		conf.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	if cfg.ClientID != "" {
		conf.ClientID = cfg.ClientID
	}
	conf.Consumer.Return.Errors = true
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Partitioner = sarama.NewManualPartitioner
	GetKafkaAccessEnv(conf)
	return conf
}

// GetKafkaAccessEnv 从环境变量KAFKA_USERNAME/KAFKA_PASSWORD读取SASL认证信息.
func GetKafkaAccessEnv(cfg *sarama.Config) {
	usr := os.Getenv("KAFKA_USERNAME")
	pwd := os.Getenv("KAFKA_PASSWORD")
	if usr == "" || pwd == "" {
		log.Warn().Msg("access kafka without SASL setting")
		return
	}
	cfg.Net.SASL.Enable = true
	cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	cfg.Net.SASL.User = usr
	cfg.Net.SASL.Password = pwd
	cfg.Net.SASL.Version = sarama.SASLHandshakeV1
}
