package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChenBigdata421/jxt-consistency/sdk/config"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/faults"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/idempotency"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/identity"
)

func newTestDispatcher(t *testing.T, registry *Registry, opts ...Option) *Dispatcher {
	t.Helper()
	guard := idempotency.NewGuard(idempotency.NewMemoryStore(), idempotency.NewMemoryCache(), nil)
	cfg := &config.DispatcherConfig{
		WorkerCount:         4,
		QueueSize:           16,
		MaxDeliveryAttempts: 3,
	}
	d := NewDispatcher("order-service", cfg, guard, registry, opts...)
	t.Cleanup(d.Stop)
	return d
}

// recordingDeadLetter 测试用死信收集器
type recordingDeadLetter struct {
	mu      sync.Mutex
	entries []*Envelope
}

func (r *recordingDeadLetter) Handle(ctx context.Context, envelope *Envelope, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, envelope)
	return nil
}

func (r *recordingDeadLetter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// TestDispatcher_ExactlyOnceEffect 测试重复投递只产生一次处理器效果
func TestDispatcher_ExactlyOnceEffect(t *testing.T) {
	var effects int64
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		atomic.AddInt64(&effects, 1)
		return nil
	})
	d := newTestDispatcher(t, registry)

	env := NewEnvelope("evt-1", "OrderCreated", "producer", "order:1001", []byte(`{"amount":100}`))
	ctx := context.Background()

	// 同一事件投递 5 次，只有首次触达处理器
	for i := 0; i < 5; i++ {
		require.NoError(t, d.DispatchEnvelope(ctx, env))
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&effects))
}

// TestDispatcher_ConcurrentRedeliverySingleEffect 测试并发重投递收敛为单次效果
func TestDispatcher_ConcurrentRedeliverySingleEffect(t *testing.T) {
	var effects int64
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&effects, 1)
		return nil
	})
	d := newTestDispatcher(t, registry)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env := NewEnvelope("evt-race", "OrderCreated", "producer", "order:1001", []byte(`{}`))
			_ = d.DispatchEnvelope(ctx, env)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&effects))
}

// TestDispatcher_PartitionOrdering 测试同一分区键的事件严格按序处理
func TestDispatcher_PartitionOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []string

	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		time.Sleep(time.Millisecond)
		mu.Lock()
		order = append(order, env.EventID)
		mu.Unlock()
		return nil
	})
	d := newTestDispatcher(t, registry)

	ctx := context.Background()
	const n = 20
	for i := 0; i < n; i++ {
		env := NewEnvelope(fmt.Sprintf("evt-%03d", i), "OrderCreated", "producer", "order:1001", []byte(`{}`))
		require.NoError(t, d.DispatchEnvelope(ctx, env))
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("evt-%03d", i), order[i])
	}
}

// TestDispatcher_BusinessErrorGoesToDeadLetter 测试业务拒绝直接进入死信
func TestDispatcher_BusinessErrorGoesToDeadLetter(t *testing.T) {
	var calls int64
	dlq := &recordingDeadLetter{}
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		atomic.AddInt64(&calls, 1)
		return faults.Businessf("invalid order state")
	})
	d := newTestDispatcher(t, registry, WithDeadLetterHandler(dlq))

	env := NewEnvelope("evt-1", "OrderCreated", "producer", "order:1001", []byte(`{}`))
	// 业务拒绝不重试：消息落死信后被确认
	require.NoError(t, d.DispatchEnvelope(context.Background(), env))

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.Equal(t, 1, dlq.count())
}

// TestDispatcher_TransientRetriesThenDeadLetter 测试瞬时故障重投递耗尽后进入死信
func TestDispatcher_TransientRetriesThenDeadLetter(t *testing.T) {
	var calls int64
	dlq := &recordingDeadLetter{}
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		atomic.AddInt64(&calls, 1)
		return faults.Transientf("downstream unavailable")
	})
	d := newTestDispatcher(t, registry, WithDeadLetterHandler(dlq))

	ctx := context.Background()
	env := NewEnvelope("evt-1", "OrderCreated", "producer", "order:1001", []byte(`{}`))

	// 前两次投递返回错误要求重投递
	require.Error(t, d.DispatchEnvelope(ctx, env))
	require.Error(t, d.DispatchEnvelope(ctx, env))
	// 第三次达到上限，落死信后确认
	require.NoError(t, d.DispatchEnvelope(ctx, env))

	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
	assert.Equal(t, 1, dlq.count())
}

// TestDispatcher_SuccessAfterRetryClearsAttempts 测试恢复后投递计数清零
func TestDispatcher_SuccessAfterRetryClearsAttempts(t *testing.T) {
	var calls int64
	dlq := &recordingDeadLetter{}
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		if atomic.AddInt64(&calls, 1) == 1 {
			return faults.Transientf("flaky")
		}
		return nil
	})
	d := newTestDispatcher(t, registry, WithDeadLetterHandler(dlq))

	ctx := context.Background()
	env := NewEnvelope("evt-1", "OrderCreated", "producer", "order:1001", []byte(`{}`))

	require.Error(t, d.DispatchEnvelope(ctx, env))
	require.NoError(t, d.DispatchEnvelope(ctx, env))

	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
	assert.Equal(t, 0, dlq.count())
}

// TestDispatcher_NoHandlerAcks 测试无处理器的事件类型记录后确认
func TestDispatcher_NoHandlerAcks(t *testing.T) {
	d := newTestDispatcher(t, NewRegistry())

	env := NewEnvelope("evt-1", "UnknownType", "producer", "order:1001", []byte(`{}`))
	assert.NoError(t, d.DispatchEnvelope(context.Background(), env))
}

// TestDispatcher_MalformedMessageAcked 测试无法解析的消息确认而非重投递
func TestDispatcher_MalformedMessageAcked(t *testing.T) {
	d := newTestDispatcher(t, NewRegistry())
	assert.NoError(t, d.Dispatch(context.Background(), []byte(`garbage`)))
}

// TestDispatcher_ActorIdentityReachesHandler 测试调用者身份透传到处理器
func TestDispatcher_ActorIdentityReachesHandler(t *testing.T) {
	var seen identity.Actor
	var seenOK bool
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		seen, seenOK = identity.FromContext(ctx)
		return nil
	})
	d := newTestDispatcher(t, registry)

	ctx := identity.WithActor(context.Background(), identity.Actor{UserID: "user-7", Roles: []string{"operator"}})
	env := NewEnvelope("evt-1", "OrderCreated", "producer", "order:1001", []byte(`{}`))
	require.NoError(t, d.DispatchEnvelope(ctx, env))

	require.True(t, seenOK)
	assert.Equal(t, "user-7", seen.UserID)
}

// TestDispatcher_StopClearsDeliveryCounters 测试停止后投递计数清空
// 失败后未被重投递的事件不能在计数表里永久驻留
func TestDispatcher_StopClearsDeliveryCounters(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		return faults.Transientf("warehouse offline")
	})
	guard := idempotency.NewGuard(idempotency.NewMemoryStore(), idempotency.NewMemoryCache(), nil)
	cfg := &config.DispatcherConfig{WorkerCount: 2, QueueSize: 8, MaxDeliveryAttempts: 3}
	d := NewDispatcher("order-service", cfg, guard, registry)

	env := NewEnvelope("evt-1", "OrderCreated", "producer", "order:1001", []byte(`{}`))
	require.Error(t, d.DispatchEnvelope(context.Background(), env))

	d.attemptsMu.Lock()
	pending := len(d.attempts)
	d.attemptsMu.Unlock()
	require.Equal(t, 1, pending)

	d.Stop()

	d.attemptsMu.Lock()
	defer d.attemptsMu.Unlock()
	assert.Empty(t, d.attempts)
}

// TestDispatcher_DispatchRawBytes 测试原始字节流入口
func TestDispatcher_DispatchRawBytes(t *testing.T) {
	var effects int64
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		atomic.AddInt64(&effects, 1)
		return nil
	})
	d := newTestDispatcher(t, registry)

	env := NewEnvelope("evt-1", "OrderCreated", "producer", "order:1001", []byte(`{"amount":1}`))
	data, err := env.ToBytes()
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), data))
	assert.Equal(t, int64(1), atomic.LoadInt64(&effects))
}
