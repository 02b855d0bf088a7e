package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"go.uber.org/zap"
)

// NATSSourceConfig NATS JetStream 消息源配置
type NATSSourceConfig struct {
	URL         string
	Stream      string
	Subject     string
	DurableName string
	FetchBatch  int
	FetchWait   time.Duration
}

// NATSSource NATS JetStream pull 消费者消息源
// 与 Kafka 源等价的投递语义：Dispatch 返回 nil 则 Ack，否则 Nak 重投递
type NATSSource struct {
	cfg        NATSSourceConfig
	dispatcher *Dispatcher
	conn       *nats.Conn
	sub        *nats.Subscription
	logger     *zap.Logger
}

// NewNATSSource 创建 NATS JetStream 消息源
func NewNATSSource(cfg NATSSourceConfig, d *Dispatcher) (*NATSSource, error) {
	if cfg.FetchBatch <= 0 {
		cfg.FetchBatch = 64
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get jetstream context: %w", err)
	}

	sub, err := js.PullSubscribe(cfg.Subject, cfg.DurableName,
		nats.BindStream(cfg.Stream),
		nats.ManualAck(),
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create pull subscription: %w", err)
	}

	return &NATSSource{
		cfg:        cfg,
		dispatcher: d,
		conn:       conn,
		sub:        sub,
		logger:     logger.Logger,
	}, nil
}

// Start 启动拉取循环，阻塞直到 ctx 取消
func (s *NATSSource) Start(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgs, err := s.sub.Fetch(s.cfg.FetchBatch, nats.MaxWait(s.cfg.FetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue // 没有新消息
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("JetStream fetch failed", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			if err := s.dispatcher.Dispatch(ctx, msg.Data); err != nil {
				s.logger.Error("Failed to process message, requesting redelivery",
					zap.String("subject", msg.Subject),
					zap.Error(err))
				if nakErr := msg.Nak(); nakErr != nil {
					s.logger.Error("Failed to nak message", zap.Error(nakErr))
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				s.logger.Error("Failed to ack message", zap.Error(ackErr))
			}
		}
	}
}

// Close 关闭消息源
func (s *NATSSource) Close() error {
	if err := s.sub.Unsubscribe(); err != nil {
		s.logger.Warn("Failed to unsubscribe", zap.Error(err))
	}
	s.conn.Close()
	return nil
}
