package kafka

import (
	"errors"

	"github.com/Shopify/sarama"
	"github.com/rs/zerolog/log"
)

// ErrSinkClosed Sink已经关闭.
var ErrSinkClosed = errors.New("kafka: sink has been closed")

// Sink 把每次Write作为一条kafka消息同步写入指定分区, 可以作为WriteBuffer的ByteSink.
// 零长度的消息保留为流结束标记, 由Close发送.
type Sink struct {
	producer  sarama.SyncProducer
	topic     string
	partition int32
}

// NewSink 返回Sink实例, Sink接管producer的生命周期.
func NewSink(producer sarama.SyncProducer, topic string, partition int32) *Sink {
	return &Sink{
		producer:  producer,
		topic:     topic,
		partition: partition,
	}
}

// DialSink 连接kafka集群并返回写入cfg.Topic/cfg.Partition的Sink.
func DialSink(cfg *Config) (*Sink, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewConfig(cfg))
	if err != nil {
		return nil, err
	}
	return NewSink(producer, cfg.Topic, cfg.Partition), nil
}

// Write 发送p作为一条消息, 成功时总是接受全部字节.
func (s *Sink) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	// the caller reuses p once Write returns
	value := make([]byte, len(p))
	copy(value, p)
	if err := s.send(value); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *Sink) send(value []byte) error {
	if s.producer == nil {
		return ErrSinkClosed
	}
	_, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     s.topic,
		Partition: s.partition,
		Value:     sarama.ByteEncoder(value),
	})
	return err
}

// Close 发送流结束标记并关闭producer.
func (s *Sink) Close() error {
	if s.producer == nil {
		return nil
	}
	err := s.send([]byte{})
	if cerr := s.producer.Close(); cerr != nil {
		log.Error().Err(cerr).Msg("failed to close kafka producer")
		if err == nil {
			err = cerr
		}
	}
	s.producer = nil
	return err
}
