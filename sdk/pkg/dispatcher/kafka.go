package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"golang.org/x/sync/errgroup"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"go.uber.org/zap"
)

// KafkaSourceConfig Kafka 消息源配置
type KafkaSourceConfig struct {
	Brokers         []string
	GroupID         string
	Topics          []string
	AutoOffsetReset string // earliest / latest
	// RedeliveryBackoff 同一条消息重投递前的等待时间（默认 1s）
	RedeliveryBackoff time.Duration
}

const defaultRedeliveryBackoff = time.Second

// KafkaSource Kafka 消费者组消息源
// Kafka 自身按分区保序；分发器内部的 Keyed-Worker 池再按分区键收敛顺序，
// 因此生产方不需要保证分区键与 Kafka 分区的一一对应。
type KafkaSource struct {
	cfg        KafkaSourceConfig
	dispatcher *Dispatcher
	group      sarama.ConsumerGroup
	logger     *zap.Logger
}

// NewKafkaSource 创建 Kafka 消息源
func NewKafkaSource(cfg KafkaSourceConfig, d *Dispatcher) (*KafkaSource, error) {
	if cfg.RedeliveryBackoff <= 0 {
		cfg.RedeliveryBackoff = defaultRedeliveryBackoff
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Version = sarama.V2_6_0_0

	// 设置偏移量重置策略
	switch cfg.AutoOffsetReset {
	case "earliest":
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	case "latest":
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	return &KafkaSource{
		cfg:        cfg,
		dispatcher: d,
		group:      group,
		logger:     logger.Logger,
	}, nil
}

// Start 启动消费循环，阻塞直到 ctx 取消
func (s *KafkaSource) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			handler := &kafkaSourceHandler{source: s}
			if err := s.group.Consume(ctx, s.cfg.Topics, handler); err != nil {
				return fmt.Errorf("kafka consume error: %w", err)
			}
			// rebalance 后重新进入 Consume
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case err, ok := <-s.group.Errors():
				if !ok {
					return nil
				}
				s.logger.Error("Kafka consumer group error", zap.Error(err))
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return g.Wait()
}

// Close 关闭消息源
func (s *KafkaSource) Close() error {
	return s.group.Close()
}

// kafkaSourceHandler sarama 消费者组回调
type kafkaSourceHandler struct {
	source *KafkaSource
}

// Setup 消费者组设置
func (h *kafkaSourceHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup 消费者组清理
func (h *kafkaSourceHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 消费消息
// Dispatch 返回 nil 才提交位点。失败的消息在原地重试：跨过它提交后续位点
// 会让失败的消息永远丢失。重试循环必然终止，投递次数耗尽后 Dispatch 走
// 死信路径并返回 nil。
func (h *kafkaSourceHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			if !h.handleMessage(session, message) {
				return nil
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessage 处理单条消息直到可以提交位点
// 返回 false 表示会话已结束，消费循环应当退出
func (h *kafkaSourceHandler) handleMessage(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) bool {
	for {
		err := h.source.dispatcher.Dispatch(session.Context(), message.Value)
		if err == nil {
			session.MarkMessage(message, "")
			return true
		}

		h.source.logger.Warn("Failed to process message, redelivering in place",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Error(err))

		select {
		case <-session.Context().Done():
			// 位点未提交，rebalance 后由新的消费者重投递
			return false
		case <-time.After(h.source.cfg.RedeliveryBackoff):
		}
	}
}
