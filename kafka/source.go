package kafka

import (
	"io"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/rs/zerolog/log"
)

// Source 按offset顺序读取一个分区的消息并拼接为字节流, 可以作为ReadBuffer的ByteSource.
// 读到零长度消息或消息通道关闭时返回io.EOF.
type Source struct {
	consumer sarama.Consumer // owned only when dialed
	pc       sarama.PartitionConsumer
	errs     <-chan *sarama.ConsumerError
	pending  []byte
	eof      bool

	closeOnce sync.Once
	closeErr  error
}

// NewSource 从consumer创建指定分区的Source, consumer仍由调用方关闭.
func NewSource(consumer sarama.Consumer, topic string, partition int32, offset int64) (*Source, error) {
	pc, err := consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	log.Info().Msgf("consume stream from kafka, topic: %s, partition: %v, offset: %v", topic, partition, offset)
	return &Source{
		pc:   pc,
		errs: pc.Errors(),
	}, nil
}

// DialSource 连接kafka集群并返回读取cfg.Topic/cfg.Partition的Source.
func DialSource(cfg *Config) (*Source, error) {
	conf := NewConfig(cfg)
	consumer, err := sarama.NewConsumer(cfg.Brokers, conf)
	if err != nil {
		return nil, err
	}
	s, err := NewSource(consumer, cfg.Topic, cfg.Partition, conf.Consumer.Offsets.Initial)
	if err != nil {
		consumer.Close() // nolint
		return nil, err
	}
	s.consumer = consumer
	return s, nil
}

// Read 读取当前消息剩余的字节, 没有剩余时阻塞等待下一条消息.
func (s *Source) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.pending) == 0 {
		if s.eof {
			return 0, io.EOF
		}
		select {
		case msg, ok := <-s.pc.Messages():
			if !ok || len(msg.Value) == 0 {
				s.eof = true
				continue
			}
			s.pending = msg.Value
		case err, ok := <-s.errs:
			if !ok {
				s.errs = nil
				continue
			}
			return 0, err
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close 关闭分区消费者, 可以与Read并发调用以解除阻塞, 重复调用返回第一次的结果.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pc.Close()
		if s.consumer != nil {
			if err := s.consumer.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close consumer")
			}
		}
	})
	return s.closeErr
}
