package kafka

import (
	"errors"

	"github.com/Shopify/sarama"
	"github.com/rs/zerolog/log"
)

// Admin 用于在传输字节流之前准备topic.
type Admin struct {
	admin sarama.ClusterAdmin
}

// NewAdmin 连接kafka集群并返回Admin实例.
func NewAdmin(cfg *Config) (*Admin, error) {
	conf := NewConfig(cfg)
	// complete admin functions are supported from version 0.10.2.0
	conf.Version = sarama.V0_10_2_0
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, conf)
	if err != nil {
		return nil, err
	}
	return NewAdminFrom(admin), nil
}

// NewAdminFrom 使用已有的ClusterAdmin.
func NewAdminFrom(admin sarama.ClusterAdmin) *Admin {
	return &Admin{admin: admin}
}

// EnsureTopic 创建topic, 分区数至少为partition+1, topic已存在时返回nil.
func (a *Admin) EnsureTopic(topic string, partition int32) error {
	return a.CreateTopicWithPartition(topic, partition+1, 1)
}

// CreateTopicWithPartition 创建topic, topic已存在时返回nil.
func (a *Admin) CreateTopicWithPartition(topic string, p int32, rf int16) error {
	if err := a.admin.CreateTopic(topic, &sarama.TopicDetail{
		NumPartitions:     p,
		ReplicationFactor: rf,
	}, false); err != nil {
		var terr *sarama.TopicError
		if errors.As(err, &terr) && terr.Err == sarama.ErrTopicAlreadyExists {
			return nil
		}
		return err
	}
	log.Info().Msgf("created topic %s with %d partitions", topic, p)
	return nil
}

// Close 关闭ClusterAdmin.
func (a *Admin) Close() {
	if a.admin != nil {
		if err := a.admin.Close(); err != nil {
			log.Error().Err(err).Msgf("failed to close kafka cluster admin")
		}
		a.admin = nil
	}
}
