package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/faults"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
)

// fakeConsumerGroupSession 测试用消费者组会话，只记录位点提交
type fakeConsumerGroupSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

var _ sarama.ConsumerGroupSession = (*fakeConsumerGroupSession)(nil)

func (s *fakeConsumerGroupSession) Claims() map[string][]int32 { return nil }
func (s *fakeConsumerGroupSession) MemberID() string           { return "test-member" }
func (s *fakeConsumerGroupSession) GenerationID() int32        { return 1 }
func (s *fakeConsumerGroupSession) Commit()                    {}

func (s *fakeConsumerGroupSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
}

func (s *fakeConsumerGroupSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {
}

func (s *fakeConsumerGroupSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeConsumerGroupSession) Context() context.Context { return s.ctx }

func (s *fakeConsumerGroupSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

func newKafkaTestHandler(d *Dispatcher) *kafkaSourceHandler {
	return &kafkaSourceHandler{source: &KafkaSource{
		cfg:        KafkaSourceConfig{RedeliveryBackoff: time.Millisecond},
		dispatcher: d,
		logger:     logger.Logger,
	}}
}

func kafkaMessage(env *Envelope, offset int64) *sarama.ConsumerMessage {
	data, err := env.ToBytes()
	if err != nil {
		panic(err)
	}
	return &sarama.ConsumerMessage{
		Topic:     "orders",
		Partition: 0,
		Offset:    offset,
		Key:       []byte(env.PartitionKey),
		Value:     data,
	}
}

// TestKafkaHandler_RetriesFailedMessageInPlace 测试失败消息原地重试直到成功才提交位点
// 瞬时失败的消息不能被后续位点提交跨过
func TestKafkaHandler_RetriesFailedMessageInPlace(t *testing.T) {
	var calls atomic.Int32
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		if calls.Add(1) < 3 {
			return faults.Transientf("inventory service unavailable")
		}
		return nil
	})
	d := newTestDispatcher(t, registry)
	h := newKafkaTestHandler(d)
	session := &fakeConsumerGroupSession{ctx: context.Background()}

	env := NewEnvelope("evt-kafka-1", "OrderCreated", "producer", "order:1001", []byte(`{}`))
	ok := h.handleMessage(session, kafkaMessage(env, 42))

	require.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int64{42}, session.markedOffsets())
}

// TestKafkaHandler_CommitsOnlyAfterDeadLetter 测试投递耗尽的消息先落死信再提交位点
func TestKafkaHandler_CommitsOnlyAfterDeadLetter(t *testing.T) {
	var calls atomic.Int32
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		calls.Add(1)
		return faults.Transientf("payment gateway timeout")
	})
	dlq := &recordingDeadLetter{}
	d := newTestDispatcher(t, registry, WithDeadLetterHandler(dlq))
	h := newKafkaTestHandler(d)
	session := &fakeConsumerGroupSession{ctx: context.Background()}

	env := NewEnvelope("evt-kafka-2", "OrderCreated", "producer", "order:1001", []byte(`{}`))
	ok := h.handleMessage(session, kafkaMessage(env, 7))

	require.True(t, ok)
	assert.Equal(t, int32(3), calls.Load(), "handler invoked up to the delivery attempt cap")
	assert.Equal(t, 1, dlq.count())
	assert.Equal(t, []int64{7}, session.markedOffsets())
}

// TestKafkaHandler_SessionEndLeavesOffsetUncommitted 测试会话结束时不提交失败消息的位点
func TestKafkaHandler_SessionEndLeavesOffsetUncommitted(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		return faults.Transientf("downstream unavailable")
	})
	d := newTestDispatcher(t, registry)
	h := newKafkaTestHandler(d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := &fakeConsumerGroupSession{ctx: ctx}

	env := NewEnvelope("evt-kafka-3", "OrderCreated", "producer", "order:1001", []byte(`{}`))
	ok := h.handleMessage(session, kafkaMessage(env, 99))

	assert.False(t, ok)
	assert.Empty(t, session.markedOffsets(), "rebalance must redeliver the uncommitted message")
}
