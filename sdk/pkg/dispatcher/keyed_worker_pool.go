package dispatcher

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"
)

// PartitionMessage 分区消息（用于 Keyed-Worker 池）
type PartitionMessage struct {
	Envelope *Envelope
	Context  context.Context
	Done     chan error
}

// KeyedWorkerPool is a fixed-size keyed worker pool.
// - Same partition key is routed to the same worker via consistent hashing
// - Each worker processes messages sequentially to guarantee per-key ordering
// - Each worker has a bounded queue; enqueue will block up to WaitTimeout
// - If enqueue times out, ProcessMessage returns ErrWorkerQueueFull (caller can apply backpressure)

var ErrWorkerQueueFull = errors.New("keyed worker queue full")

const (
	DefaultKeyedWorkerCount = 64
	DefaultKeyedQueueSize   = 128
	DefaultKeyedWaitTimeout = 200 * time.Millisecond
)

// KeyedWorkerPoolConfig configuration for the pool.
type KeyedWorkerPoolConfig struct {
	WorkerCount int           // number of workers
	QueueSize   int           // per-worker queue capacity (bounded)
	WaitTimeout time.Duration // max time to wait when queue is full on enqueue
}

// processFunc runs the per-message state machine for one envelope.
type processFunc func(ctx context.Context, envelope *Envelope) error

// KeyedWorkerPool routes PartitionMessage by Envelope.PartitionKey to workers.
type KeyedWorkerPool struct {
	cfg     KeyedWorkerPoolConfig
	process processFunc

	workers []chan *PartitionMessage
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

func NewKeyedWorkerPool(cfg KeyedWorkerPoolConfig, process processFunc) *KeyedWorkerPool {
	// 使用默认值（如果未配置）
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultKeyedWorkerCount
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultKeyedQueueSize
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultKeyedWaitTimeout
	}

	kp := &KeyedWorkerPool{
		cfg:     cfg,
		process: process,
		workers: make([]chan *PartitionMessage, cfg.WorkerCount),
		stopCh:  make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		ch := make(chan *PartitionMessage, cfg.QueueSize)
		kp.workers[i] = ch
		kp.wg.Add(1)
		go kp.runWorker(ch)
	}

	return kp
}

func (kp *KeyedWorkerPool) runWorker(ch chan *PartitionMessage) {
	defer kp.wg.Done()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Process sequentially; guarantee per-key ordering because routing is stable.
			err := kp.process(msg.Context, msg.Envelope)
			// return result to caller (non-blocking)
			select {
			case msg.Done <- err:
			default:
			}
		case <-kp.stopCh:
			return
		}
	}
}

// ProcessMessage routes the message to its worker and enqueues it.
func (kp *KeyedWorkerPool) ProcessMessage(ctx context.Context, msg *PartitionMessage) error {
	// Require a partition key to route; Envelope.Validate enforces it upstream
	if msg.Envelope == nil || msg.Envelope.PartitionKey == "" {
		return errors.New("partitionKey required for keyed worker pool")
	}

	idx := kp.hashToIndex(msg.Envelope.PartitionKey)
	ch := kp.workers[idx]

	// Try fast-path enqueue.
	select {
	case ch <- msg:
		return nil
	default:
	}

	// Bounded wait to avoid busy-loop; caller can apply backpressure if needed.
	timer := time.NewTimer(kp.cfg.WaitTimeout)
	defer timer.Stop()

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWorkerQueueFull
	}
}

// Stop stops all workers and drains queues.
func (kp *KeyedWorkerPool) Stop() {
	close(kp.stopCh)
	// close all worker channels to stop goroutines
	for _, ch := range kp.workers {
		close(ch)
	}
	kp.wg.Wait()
}

func (kp *KeyedWorkerPool) hashToIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(kp.workers)))
}
