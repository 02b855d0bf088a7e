package dispatcher

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKeyedWorkerPool_SameKeyOrdered 测试同一分区键严格按提交顺序处理
func TestKeyedWorkerPool_SameKeyOrdered(t *testing.T) {
	var mu sync.Mutex
	var processed []string

	pool := NewKeyedWorkerPool(KeyedWorkerPoolConfig{
		WorkerCount: 8,
		QueueSize:   64,
	}, func(ctx context.Context, env *Envelope) error {
		// 随机延迟放大乱序风险
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
		mu.Lock()
		processed = append(processed, env.EventID)
		mu.Unlock()
		return nil
	})
	defer pool.Stop()

	ctx := context.Background()
	const n = 50
	done := make([]chan error, n)
	for i := 0; i < n; i++ {
		env := NewEnvelope(fmt.Sprintf("evt-%03d", i), "OrderCreated", "svc", "order:1001", []byte(`{}`))
		done[i] = make(chan error, 1)
		msg := &PartitionMessage{Envelope: env, Context: ctx, Done: done[i]}
		require.NoError(t, pool.ProcessMessage(ctx, msg))
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done[i])
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, processed, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("evt-%03d", i), processed[i])
	}
}

// TestKeyedWorkerPool_DifferentKeysInterleave 测试不同分区键并发处理互不阻塞
func TestKeyedWorkerPool_DifferentKeysInterleave(t *testing.T) {
	var mu sync.Mutex
	perKey := make(map[string][]string)

	pool := NewKeyedWorkerPool(KeyedWorkerPoolConfig{
		WorkerCount: 4,
		QueueSize:   64,
	}, func(ctx context.Context, env *Envelope) error {
		time.Sleep(time.Duration(rand.Intn(2)) * time.Millisecond)
		mu.Lock()
		perKey[env.PartitionKey] = append(perKey[env.PartitionKey], env.EventID)
		mu.Unlock()
		return nil
	})
	defer pool.Stop()

	ctx := context.Background()
	keys := []string{"order:1", "order:2", "order:3", "order:4", "order:5"}
	const perKeyCount = 20

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := 0; i < perKeyCount; i++ {
				env := NewEnvelope(fmt.Sprintf("%s-evt-%03d", key, i), "OrderCreated", "svc", key, []byte(`{}`))
				done := make(chan error, 1)
				msg := &PartitionMessage{Envelope: env, Context: ctx, Done: done}
				if err := pool.ProcessMessage(ctx, msg); err != nil {
					t.Error(err)
					return
				}
				<-done
			}
		}(key)
	}
	wg.Wait()

	// 每个分区键内部保持提交顺序
	mu.Lock()
	defer mu.Unlock()
	for _, key := range keys {
		require.Len(t, perKey[key], perKeyCount)
		for i, id := range perKey[key] {
			assert.Equal(t, fmt.Sprintf("%s-evt-%03d", key, i), id)
		}
	}
}

// TestKeyedWorkerPool_StableRouting 测试同一分区键总是路由到同一 worker
func TestKeyedWorkerPool_StableRouting(t *testing.T) {
	pool := NewKeyedWorkerPool(KeyedWorkerPoolConfig{WorkerCount: 16}, nil)
	defer pool.Stop()

	for _, key := range []string{"order:1001", "archive:abc", "a/b/c"} {
		first := pool.hashToIndex(key)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, pool.hashToIndex(key))
		}
	}
}

// TestKeyedWorkerPool_MissingPartitionKey 测试缺少分区键的消息被拒绝
func TestKeyedWorkerPool_MissingPartitionKey(t *testing.T) {
	pool := NewKeyedWorkerPool(KeyedWorkerPoolConfig{}, func(ctx context.Context, env *Envelope) error {
		return nil
	})
	defer pool.Stop()

	env := NewEnvelope("evt-1", "OrderCreated", "svc", "", []byte(`{}`))
	msg := &PartitionMessage{Envelope: env, Context: context.Background(), Done: make(chan error, 1)}
	assert.Error(t, pool.ProcessMessage(context.Background(), msg))
}

// TestKeyedWorkerPool_QueueFullBackpressure 测试队列满时的有界等待与背压
func TestKeyedWorkerPool_QueueFullBackpressure(t *testing.T) {
	block := make(chan struct{})
	pool := NewKeyedWorkerPool(KeyedWorkerPoolConfig{
		WorkerCount: 1,
		QueueSize:   1,
		WaitTimeout: 20 * time.Millisecond,
	}, func(ctx context.Context, env *Envelope) error {
		<-block
		return nil
	})
	defer func() {
		close(block)
		pool.Stop()
	}()

	ctx := context.Background()
	newMsg := func(id string) *PartitionMessage {
		return &PartitionMessage{
			Envelope: NewEnvelope(id, "OrderCreated", "svc", "order:1", []byte(`{}`)),
			Context:  ctx,
			Done:     make(chan error, 1),
		}
	}

	// 第一条被 worker 取走并阻塞，第二条占满队列
	require.NoError(t, pool.ProcessMessage(ctx, newMsg("evt-1")))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, pool.ProcessMessage(ctx, newMsg("evt-2")))

	err := pool.ProcessMessage(ctx, newMsg("evt-3"))
	assert.ErrorIs(t, err, ErrWorkerQueueFull)
}
