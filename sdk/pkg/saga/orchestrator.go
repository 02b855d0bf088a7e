package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	toolsConfig "github.com/ChenBigdata421/jxt-consistency/sdk/config"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/faults"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/resilience"
)

const (
	// DefaultStepTimeout 步骤默认超时
	DefaultStepTimeout = 30 * time.Second
	// DefaultStepMaxRetries 步骤瞬时失败的默认重试次数
	DefaultStepMaxRetries = 3
	// DefaultRecoveryInterval 崩溃恢复扫描间隔
	DefaultRecoveryInterval = 30 * time.Second
	// DefaultRecoveryBatchSize 单次恢复扫描的最大实例数
	DefaultRecoveryBatchSize = 100
)

// Orchestrator saga 编排器
// 按注册的步骤序列推进实例，所有状态变更通过仓储的乐观并发控制持久化，
// 正向步骤失败后按下标严格降序补偿
type Orchestrator struct {
	registry    *DefinitionRegistry
	repository  Repository
	protector   *resilience.Protector
	remediation RemediationHandler
	metrics     MetricsCollector

	stepTimeout       time.Duration
	stepMaxRetries    int
	recoveryInterval  time.Duration
	recoveryBatchSize int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// OrchestratorOption 编排器可选配置
type OrchestratorOption func(*Orchestrator)

// WithRemediationHandler 设置人工修复队列
func WithRemediationHandler(handler RemediationHandler) OrchestratorOption {
	return func(o *Orchestrator) {
		if handler != nil {
			o.remediation = handler
		}
	}
}

// WithMetricsCollector 设置指标收集器
func WithMetricsCollector(collector MetricsCollector) OrchestratorOption {
	return func(o *Orchestrator) {
		if collector != nil {
			o.metrics = collector
		}
	}
}

// WithProtector 设置步骤调用的弹性防护（熔断、限流、超时、重试）
func WithProtector(protector *resilience.Protector) OrchestratorOption {
	return func(o *Orchestrator) {
		o.protector = protector
	}
}

// NewOrchestrator 创建编排器
func NewOrchestrator(registry *DefinitionRegistry, repository Repository, cfg *toolsConfig.SagaConfig, opts ...OrchestratorOption) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("saga: definition registry is required")
	}
	if repository == nil {
		return nil, fmt.Errorf("saga: repository is required")
	}

	o := &Orchestrator{
		registry:          registry,
		repository:        repository,
		remediation:       &NoOpRemediationHandler{},
		metrics:           &NoOpMetricsCollector{},
		stepTimeout:       DefaultStepTimeout,
		stepMaxRetries:    DefaultStepMaxRetries,
		recoveryInterval:  DefaultRecoveryInterval,
		recoveryBatchSize: DefaultRecoveryBatchSize,
		stopCh:            make(chan struct{}),
	}

	if cfg != nil {
		if cfg.StepTimeout > 0 {
			o.stepTimeout = cfg.StepTimeout
		}
		if cfg.StepMaxRetries > 0 {
			o.stepMaxRetries = cfg.StepMaxRetries
		}
		if cfg.RecoveryInterval > 0 {
			o.recoveryInterval = cfg.RecoveryInterval
		}
		if cfg.RecoveryBatchSize > 0 {
			o.recoveryBatchSize = cfg.RecoveryBatchSize
		}
	}

	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start 创建并执行一个新的 saga 实例，返回终态实例
// 执行是同步的：调用方在 saga 到达终态（Completed 或 Failed）后返回
func (o *Orchestrator) Start(ctx context.Context, sagaType string, payload []byte) (*Instance, error) {
	def, ok := o.registry.Lookup(sagaType)
	if !ok {
		return nil, fmt.Errorf("saga type %s not registered", sagaType)
	}

	instance := NewInstance(sagaType, payload)
	if err := o.repository.Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to create saga %s: %w", instance.SagaID, err)
	}
	o.metrics.RecordStarted(sagaType)

	logger.Infof("saga %s (%s) started with %d steps", instance.SagaID, sagaType, len(def.Steps))
	return o.run(ctx, instance, def)
}

// Resume 继续执行一个非终态实例（崩溃恢复或冲突后续跑）
// 对已处于终态的实例直接返回当前状态
func (o *Orchestrator) Resume(ctx context.Context, sagaID string) (*Instance, error) {
	instance, err := o.repository.FindByID(ctx, sagaID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saga %s: %w", sagaID, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("saga %s not found", sagaID)
	}
	if instance.IsTerminal() {
		return instance, nil
	}

	def, ok := o.registry.Lookup(instance.SagaType)
	if !ok {
		return nil, fmt.Errorf("saga type %s not registered", instance.SagaType)
	}

	logger.Infof("saga %s (%s) resuming from step %d in status %s",
		instance.SagaID, instance.SagaType, instance.CurrentStepIndex, instance.Status)
	return o.run(ctx, instance, def)
}

// run 推进实例直到终态
// 崩溃恢复的关键：StepInProgress 的步骤会被重新执行（步骤动作必须幂等），
// 已记入补偿日志的步骤（index < CurrentStepIndex）不会被重新执行
func (o *Orchestrator) run(ctx context.Context, instance *Instance, def *Definition) (*Instance, error) {
	for !instance.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return instance, err
		}

		var err error
		switch instance.Status {
		case StatusStarted, StatusStepCompleted:
			err = o.advance(ctx, instance, def)
		case StatusStepInProgress:
			// 崩溃恢复：重新执行当前步骤，不回退已完成的步骤
			err = o.executeStep(ctx, instance, def)
		case StatusCompensating:
			err = o.compensate(ctx, instance, def)
		default:
			return instance, fmt.Errorf("saga %s in unexpected status %s", instance.SagaID, instance.Status)
		}

		if errors.Is(err, ErrVersionConflict) {
			// 另一个执行者（并发恢复扫描等）已推进该实例，重新读取后继续
			reloaded, loadErr := o.repository.FindByID(ctx, instance.SagaID)
			if loadErr != nil {
				return instance, fmt.Errorf("failed to reload saga %s after version conflict: %w", instance.SagaID, loadErr)
			}
			if reloaded == nil {
				return instance, fmt.Errorf("saga %s disappeared after version conflict", instance.SagaID)
			}
			instance = reloaded
			continue
		}
		if err != nil {
			return instance, err
		}
	}
	return instance, nil
}

// advance 进入下一个待执行步骤，或在全部步骤完成后收尾
func (o *Orchestrator) advance(ctx context.Context, instance *Instance, def *Definition) error {
	if instance.CurrentStepIndex >= len(def.Steps) {
		instance.Status = StatusCompleted
		if err := o.repository.UpdateCAS(ctx, instance, instance.Version); err != nil {
			return err
		}
		o.metrics.RecordCompleted(instance.SagaType)
		logger.Infof("saga %s (%s) completed", instance.SagaID, instance.SagaType)
		return nil
	}

	instance.Status = StatusStepInProgress
	if err := o.repository.UpdateCAS(ctx, instance, instance.Version); err != nil {
		return err
	}
	return o.executeStep(ctx, instance, def)
}

// executeStep 执行当前正向步骤
func (o *Orchestrator) executeStep(ctx context.Context, instance *Instance, def *Definition) error {
	step := def.Steps[instance.CurrentStepIndex]

	err := o.invoke(ctx, instance, step.Forward, step.Timeout, step.MaxRetries)
	if err == nil {
		// 步骤成功：记入补偿日志并推进下标，两者在同一次持久化中完成
		instance.CompensationLog = append(instance.CompensationLog, CompensationEntry{
			StepIndex: step.Index,
			StepName:  step.Name,
			Outcome:   StepOutcomeCompleted,
		})
		instance.CurrentStepIndex++
		instance.Status = StatusStepCompleted
		return o.repository.UpdateCAS(ctx, instance, instance.Version)
	}

	// 正向失败：转入补偿。业务失败与重试耗尽的瞬时失败走同一条路径
	logger.Warnf("saga %s (%s) step %d (%s) failed, compensating: %v",
		instance.SagaID, instance.SagaType, step.Index, step.Name, err)
	o.metrics.RecordStepFailed(instance.SagaType, step.Name)

	instance.Status = StatusCompensating
	if casErr := o.repository.UpdateCAS(ctx, instance, instance.Version); casErr != nil {
		return casErr
	}
	return o.compensate(ctx, instance, def)
}

// compensate 对已完成的步骤按下标严格降序执行补偿
// 某一步补偿耗尽重试时：该步与其余未补偿步骤标记为 unresolved，
// 实例进入 Failed 终态并交付人工修复队列
func (o *Orchestrator) compensate(ctx context.Context, instance *Instance, def *Definition) error {
	for idx := len(def.Steps) - 1; idx >= 0; idx-- {
		entry := instance.completedEntry(idx)
		if entry == nil || entry.Outcome != StepOutcomeCompleted {
			continue
		}
		step := def.Steps[idx]

		if step.Compensate == nil {
			now := time.Now()
			entry.Outcome = StepOutcomeCompensated
			entry.CompensatedAt = &now
			if err := o.repository.UpdateCAS(ctx, instance, instance.Version); err != nil {
				return err
			}
			continue
		}

		err := o.invoke(ctx, instance, step.Compensate, step.Timeout, step.MaxRetries)
		if err != nil {
			return o.exhaust(ctx, instance, step, err)
		}

		now := time.Now()
		entry.Outcome = StepOutcomeCompensated
		entry.CompensatedAt = &now
		o.metrics.RecordCompensated(instance.SagaType, step.Name)
		logger.Infof("saga %s (%s) compensated step %d (%s)",
			instance.SagaID, instance.SagaType, idx, step.Name)
		if err := o.repository.UpdateCAS(ctx, instance, instance.Version); err != nil {
			return err
		}
	}

	// 全部补偿完成，saga 以失败终态结束
	instance.Status = StatusFailed
	if err := o.repository.UpdateCAS(ctx, instance, instance.Version); err != nil {
		return err
	}
	o.metrics.RecordFailed(instance.SagaType)
	logger.Infof("saga %s (%s) failed, all compensations applied", instance.SagaID, instance.SagaType)
	return nil
}

// exhaust 补偿耗尽：标记当前步骤与其余未补偿步骤为 unresolved，
// 实例进入 Failed 终态并交付人工修复队列
func (o *Orchestrator) exhaust(ctx context.Context, instance *Instance, step StepDefinition, cause error) error {
	exhausted := &CompensationExhaustedError{
		SagaID:    instance.SagaID,
		SagaType:  instance.SagaType,
		StepIndex: step.Index,
		StepName:  step.Name,
		Cause:     cause,
	}

	for idx := range instance.CompensationLog {
		if instance.CompensationLog[idx].Outcome != StepOutcomeCompleted {
			continue
		}
		instance.CompensationLog[idx].Outcome = StepOutcomeUnresolved
		if instance.CompensationLog[idx].StepIndex == step.Index {
			instance.CompensationLog[idx].Error = cause.Error()
		}
	}
	instance.Status = StatusFailed
	if err := o.repository.UpdateCAS(ctx, instance, instance.Version); err != nil {
		return err
	}

	o.metrics.RecordFailed(instance.SagaType)
	o.metrics.RecordRemediation(instance.SagaType)
	logger.Errorf("saga %s (%s) compensation exhausted at step %d (%s): %v",
		instance.SagaID, instance.SagaType, step.Index, step.Name, cause)

	if err := o.remediation.Handle(ctx, instance, exhausted); err != nil {
		logger.Errorf("saga %s: remediation handler failed: %v", instance.SagaID, err)
	}
	return exhausted
}

// invoke 执行一次步骤动作，应用超时、重试与熔断防护
func (o *Orchestrator) invoke(ctx context.Context, instance *Instance, action Action, timeout time.Duration, maxRetries int) error {
	if timeout <= 0 {
		timeout = o.stepTimeout
	}
	if maxRetries <= 0 {
		maxRetries = o.stepMaxRetries
	}

	call := func(callCtx context.Context) error {
		return action(callCtx, instance)
	}

	if o.protector != nil {
		return o.protector.ExecuteWith(ctx, call, timeout, maxRetries)
	}

	// 无防护器时退化为带超时的简单重试
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = faults.Transientf("step timed out after %s", timeout)
		}
		if !faults.IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// StartRecovery 启动后台崩溃恢复：周期性扫描非终态实例并续跑
// 扫描批次内的实例并发恢复，版本冲突由 run 循环自行消化
func (o *Orchestrator) StartRecovery(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.recoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-o.stopCh:
				return
			case <-ticker.C:
				if err := o.RecoverAll(ctx); err != nil {
					logger.Errorf("saga recovery scan failed: %v", err)
				}
			}
		}
	}()
}

// RecoverAll 扫描并续跑所有非终态实例
func (o *Orchestrator) RecoverAll(ctx context.Context) error {
	active, err := o.repository.FindActive(ctx, o.recoveryBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list active sagas: %w", err)
	}
	if len(active) == 0 {
		return nil
	}

	logger.Infof("saga recovery: found %d active instances", len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, instance := range active {
		sagaID := instance.SagaID
		g.Go(func() error {
			if _, err := o.Resume(gctx, sagaID); err != nil {
				logger.Warnf("saga recovery: resume %s failed: %v", sagaID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop 停止后台恢复并等待在途恢复完成
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopCh)
	})
	o.wg.Wait()
}
