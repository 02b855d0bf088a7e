package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ChenBigdata421/jxt-consistency/sdk/config"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/faults"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/idempotency"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/resilience"
	"go.uber.org/zap"
)

const DefaultMaxDeliveryAttempts = 5

// Dispatcher 分区有序事件分发器
//
// 每条消息经过固定状态机：Received -> Reserved -> Handling -> {Committed | Released}
// - 幂等守卫判定重复投递，重复直接确认，不调用处理器
// - 预留抢占关闭并发重投递的竞争窗口，败者静默放弃
// - 处理器成功后先持久化处理记录再确认消息
// - 处理器失败时释放预留并要求重投递；超过投递上限进入死信
//
// 顺序保证：同一分区键的消息由同一 worker 严格串行处理，
// 不同分区键在 worker 池内并发。
type Dispatcher struct {
	service  string
	registry *Registry
	guard    *idempotency.Guard
	pool     *KeyedWorkerPool
	limiter  *resilience.RateLimiter

	deadLetter  DeadLetterHandler
	metrics     MetricsCollector
	maxAttempts int

	attemptsMu sync.Mutex
	attempts   map[string]int // 幂等键 -> 已投递次数

	logger *zap.Logger
}

// Option 分发器可选配置
type Option func(*Dispatcher)

// WithDeadLetterHandler 设置死信处理器
func WithDeadLetterHandler(h DeadLetterHandler) Option {
	return func(d *Dispatcher) {
		d.deadLetter = h
	}
}

// WithMetricsCollector 设置指标收集器
func WithMetricsCollector(m MetricsCollector) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher 创建事件分发器
// service 为消费方服务名，参与幂等键的构成
func NewDispatcher(service string, cfg *config.DispatcherConfig, guard *idempotency.Guard, registry *Registry, opts ...Option) *Dispatcher {
	if cfg == nil {
		cfg = &config.DispatcherConfig{}
	}
	maxAttempts := cfg.MaxDeliveryAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxDeliveryAttempts
	}

	d := &Dispatcher{
		service:     service,
		registry:    registry,
		guard:       guard,
		limiter:     resilience.NewRateLimiter(cfg.RateLimit),
		deadLetter:  &NoOpDeadLetterHandler{},
		metrics:     &NoOpMetricsCollector{},
		maxAttempts: maxAttempts,
		attempts:    make(map[string]int),
		logger:      logger.Logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.pool = NewKeyedWorkerPool(KeyedWorkerPoolConfig{
		WorkerCount: cfg.WorkerCount,
		QueueSize:   cfg.QueueSize,
		WaitTimeout: cfg.WaitTimeout,
	}, d.process)

	return d
}

// Dispatch 接收一条原始消息并路由处理
// 返回 nil 表示消息可以确认（含重复短路与死信落盘）；
// 返回错误表示消息应当重投递。
func (d *Dispatcher) Dispatch(ctx context.Context, msgBytes []byte) error {
	envelope, err := FromBytes(msgBytes)
	if err != nil {
		// 无法解析的消息重投递也不会变好，记录后确认
		d.logger.Error("Discarding malformed message", zap.Error(err))
		return nil
	}
	return d.DispatchEnvelope(ctx, envelope)
}

// DispatchEnvelope 接收一个已解析的事件包络并路由处理
func (d *Dispatcher) DispatchEnvelope(ctx context.Context, envelope *Envelope) error {
	// 入站背压
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	msg := &PartitionMessage{
		Envelope: envelope,
		Context:  ctx,
		Done:     make(chan error, 1),
	}
	if err := d.pool.ProcessMessage(ctx, msg); err != nil {
		return err
	}

	select {
	case err := <-msg.Done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process 单条消息的状态机（在 keyed worker 上串行执行）
func (d *Dispatcher) process(ctx context.Context, envelope *Envelope) error {
	if envelope.CorrelationID != "" {
		ctx = logger.WithCorrelation(ctx, envelope.CorrelationID)
	}

	// Received -> 重复判定
	processed, err := d.guard.IsProcessed(ctx, envelope.EventID, d.service)
	if err != nil {
		// 持久层不可用对该事件是致命的，交给重投递
		return err
	}
	if processed {
		d.metrics.RecordDuplicate(envelope.EventType)
		d.logger.Debug("Duplicate delivery short-circuited",
			zap.String("eventId", envelope.EventID),
			zap.String("eventType", envelope.EventType))
		return nil
	}

	// Received -> Reserved
	reserved, err := d.guard.Reserve(ctx, envelope.EventID, d.service)
	if err != nil {
		return err
	}
	if !reserved {
		// 并发重投递竞争，败者静默放弃（不是错误）
		d.logger.Debug("Reservation lost to concurrent delivery",
			zap.String("eventId", envelope.EventID))
		return nil
	}

	handler, ok := d.registry.Lookup(envelope.EventType)
	if !ok {
		d.guard.Release(ctx, envelope.EventID, d.service)
		d.logger.Warn("No handler registered for event type, acknowledging",
			zap.String("eventType", envelope.EventType),
			zap.String("eventId", envelope.EventID))
		return nil
	}

	// Reserved -> Handling
	start := time.Now()
	handlerErr := handler(ctx, envelope)

	if handlerErr == nil {
		// Handling -> Committed
		// 持久化失败意味着处理器效果未确认，保留预留换重投递
		if err := d.guard.MarkProcessed(ctx, envelope.EventID, envelope.EventType, d.service, envelope.Payload); err != nil {
			d.guard.Release(ctx, envelope.EventID, d.service)
			return err
		}
		d.clearAttempts(envelope.EventID)
		d.metrics.RecordProcessed(envelope.EventType, time.Since(start))
		return nil
	}

	// Handling -> Released
	d.guard.Release(ctx, envelope.EventID, d.service)
	d.metrics.RecordFailure(envelope.EventType)

	if faults.IsBusiness(handlerErr) {
		// 业务拒绝不重试，直接进入死信等待人工处理
		d.logger.Warn("Handler rejected event with business rule violation",
			zap.String("eventId", envelope.EventID),
			zap.String("eventType", envelope.EventType),
			zap.Error(handlerErr))
		return d.toDeadLetter(ctx, envelope, handlerErr)
	}

	attempts := d.incrementAttempts(envelope.EventID)
	if attempts >= d.maxAttempts {
		d.logger.Error("Delivery attempts exhausted",
			zap.String("eventId", envelope.EventID),
			zap.String("eventType", envelope.EventType),
			zap.Int("attempts", attempts),
			zap.Error(handlerErr))
		return d.toDeadLetter(ctx, envelope, handlerErr)
	}

	d.logger.Warn("Handler failed, requeueing for redelivery",
		zap.String("eventId", envelope.EventID),
		zap.Int("attempt", attempts),
		zap.Int("maxAttempts", d.maxAttempts),
		zap.Error(handlerErr))
	return handlerErr
}

// toDeadLetter 将事件落入死信目的地
// 死信写入成功后消息被确认；写入失败保持重投递，绝不静默丢失
func (d *Dispatcher) toDeadLetter(ctx context.Context, envelope *Envelope, cause error) error {
	if err := d.deadLetter.Handle(ctx, envelope, cause); err != nil {
		return fmt.Errorf("dead letter handling failed: %w (original: %v)", err, cause)
	}
	d.clearAttempts(envelope.EventID)
	d.metrics.RecordDeadLetter(envelope.EventType)
	return nil
}

func (d *Dispatcher) incrementAttempts(eventID string) int {
	d.attemptsMu.Lock()
	defer d.attemptsMu.Unlock()

	d.attempts[eventID]++
	return d.attempts[eventID]
}

func (d *Dispatcher) clearAttempts(eventID string) {
	d.attemptsMu.Lock()
	defer d.attemptsMu.Unlock()

	delete(d.attempts, eventID)
}

// Stop 停止分发器，等待 worker 池排空
// 投递计数随消息源的位点状态一起作废，重启后从零开始累计
func (d *Dispatcher) Stop() {
	d.pool.Stop()

	d.attemptsMu.Lock()
	d.attempts = make(map[string]int)
	d.attemptsMu.Unlock()
}
