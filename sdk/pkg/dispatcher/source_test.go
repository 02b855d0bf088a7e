package dispatcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/faults"
)

// TestMemorySource_DeliversToDispatcher 测试内存消息源的投递与确认
func TestMemorySource_DeliversToDispatcher(t *testing.T) {
	var effects int64
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		atomic.AddInt64(&effects, 1)
		return nil
	})
	d := newTestDispatcher(t, registry)
	source := NewMemorySource(d, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = source.Start(ctx) }()

	env := NewEnvelope("evt-1", "OrderCreated", "producer", "order:1001", []byte(`{}`))
	data, err := env.ToBytes()
	require.NoError(t, err)
	require.NoError(t, source.Publish(data))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&effects) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestMemorySource_RedeliversOnFailure 测试处理失败后重投递直到成功
func TestMemorySource_RedeliversOnFailure(t *testing.T) {
	var calls int64
	registry := NewRegistry()
	registry.MustRegister("OrderCreated", func(ctx context.Context, env *Envelope) error {
		if atomic.AddInt64(&calls, 1) == 1 {
			return faults.Transientf("flaky")
		}
		return nil
	})
	d := newTestDispatcher(t, registry)
	source := NewMemorySource(d, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = source.Start(ctx) }()

	env := NewEnvelope("evt-1", "OrderCreated", "producer", "order:1001", []byte(`{}`))
	data, err := env.ToBytes()
	require.NoError(t, err)
	require.NoError(t, source.Publish(data))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&calls) >= 2
	}, time.Second, 5*time.Millisecond)
}
