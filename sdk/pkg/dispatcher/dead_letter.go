package dispatcher

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"go.uber.org/zap"
)

// DeadLetterHandler 死信处理器接口
// 处理超过最大投递次数的事件，等待人工介入。
// 任何非重复的失败路径最终要么重试、要么进入死信，绝不静默丢失。
type DeadLetterHandler interface {
	// Handle 处理死信事件
	// envelope: 投递失败的事件
	// cause: 最后一次失败原因
	Handle(ctx context.Context, envelope *Envelope, cause error) error
}

// DeadLetterHandlerFunc 函数式 DeadLetterHandler
type DeadLetterHandlerFunc func(ctx context.Context, envelope *Envelope, cause error) error

// Handle 实现 DeadLetterHandler 接口
func (f DeadLetterHandlerFunc) Handle(ctx context.Context, envelope *Envelope, cause error) error {
	return f(ctx, envelope, cause)
}

// NoOpDeadLetterHandler 空操作 DeadLetterHandler（默认实现，只记日志）
type NoOpDeadLetterHandler struct{}

// Handle 实现 DeadLetterHandler 接口
func (n *NoOpDeadLetterHandler) Handle(ctx context.Context, envelope *Envelope, cause error) error {
	logger.Logger.Error("Event moved to dead letter (no handler configured)",
		zap.String("eventId", envelope.EventID),
		zap.String("eventType", envelope.EventType),
		zap.Error(cause))
	return nil
}

// KafkaDeadLetterPublisher 将死信事件发布到专用 Kafka topic
type KafkaDeadLetterPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaDeadLetterPublisher 创建 Kafka 死信发布器
func NewKafkaDeadLetterPublisher(brokers []string, topic string) (*KafkaDeadLetterPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dead letter producer: %w", err)
	}

	return &KafkaDeadLetterPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger.Logger,
	}, nil
}

// Handle 实现 DeadLetterHandler 接口
// 失败原因随消息头一起发布，便于人工排查
func (p *KafkaDeadLetterPublisher) Handle(ctx context.Context, envelope *Envelope, cause error) error {
	data, err := envelope.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize dead letter envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(envelope.PartitionKey),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("X-Dead-Letter-Cause"), Value: []byte(cause.Error())},
			{Key: []byte("X-Event-Type"), Value: []byte(envelope.EventType)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish dead letter: %w", err)
	}

	p.logger.Warn("Event published to dead letter topic",
		zap.String("eventId", envelope.EventID),
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.Error(cause))
	return nil
}

// Close 关闭发布器
func (p *KafkaDeadLetterPublisher) Close() error {
	return p.producer.Close()
}

var _ DeadLetterHandler = (*KafkaDeadLetterPublisher)(nil)
