package dispatcher

import (
	"context"
)

// Source 消息源抽象
// Kafka、NATS JetStream 与内存实现都满足此接口。
// Start 阻塞运行投递循环直到 ctx 取消：Dispatch 返回 nil 时确认消息，
// 返回错误时要求消息源重投递。
type Source interface {
	Start(ctx context.Context) error
	Close() error
}

var (
	_ Source = (*KafkaSource)(nil)
	_ Source = (*NATSSource)(nil)
	_ Source = (*MemorySource)(nil)
)

// MemorySource 内存消息源（测试与单进程场景）
// 未确认的消息按原顺序重新入队，模拟 at-least-once 重投递。
type MemorySource struct {
	dispatcher *Dispatcher
	queue      chan []byte
}

// NewMemorySource 创建内存消息源
func NewMemorySource(d *Dispatcher, bufferSize int) *MemorySource {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &MemorySource{
		dispatcher: d,
		queue:      make(chan []byte, bufferSize),
	}
}

// Publish 投递一条原始消息
func (s *MemorySource) Publish(msgBytes []byte) error {
	select {
	case s.queue <- msgBytes:
		return nil
	default:
		return ErrWorkerQueueFull
	}
}

// Start 启动投递循环，阻塞直到 ctx 取消
func (s *MemorySource) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msgBytes := <-s.queue:
			if err := s.dispatcher.Dispatch(ctx, msgBytes); err != nil {
				// 处理失败重新入队（队列满时丢回等待下一轮）
				select {
				case s.queue <- msgBytes:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// Close 关闭消息源
func (s *MemorySource) Close() error {
	return nil
}
