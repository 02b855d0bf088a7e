package saga

import (
	"context"
	"fmt"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
)

// CompensationExhaustedError 补偿重试耗尽
// 携带失败的补偿步骤与所有等待人工处理的步骤
type CompensationExhaustedError struct {
	SagaID    string
	SagaType  string
	StepIndex int
	StepName  string
	Cause     error
}

func (e *CompensationExhaustedError) Error() string {
	return fmt.Sprintf("saga %s (%s): compensation for step %d (%s) exhausted retries: %v",
		e.SagaID, e.SagaType, e.StepIndex, e.StepName, e.Cause)
}

func (e *CompensationExhaustedError) Unwrap() error {
	return e.Cause
}

// RemediationHandler 人工修复队列
// 补偿耗尽时编排器在实例进入 Failed 终态后调用，交付失败的实例供运维处理
type RemediationHandler interface {
	Handle(ctx context.Context, instance *Instance, cause *CompensationExhaustedError) error
}

// RemediationHandlerFunc 函数适配器
type RemediationHandlerFunc func(ctx context.Context, instance *Instance, cause *CompensationExhaustedError) error

func (f RemediationHandlerFunc) Handle(ctx context.Context, instance *Instance, cause *CompensationExhaustedError) error {
	return f(ctx, instance, cause)
}

// NoOpRemediationHandler 默认实现，仅记录日志
type NoOpRemediationHandler struct{}

func (h *NoOpRemediationHandler) Handle(ctx context.Context, instance *Instance, cause *CompensationExhaustedError) error {
	logger.Errorf("saga %s (%s) requires manual remediation: %d unresolved steps, cause: %v",
		instance.SagaID, instance.SagaType, len(instance.UnresolvedSteps()), cause)
	return nil
}

var _ RemediationHandler = (*NoOpRemediationHandler)(nil)
var _ RemediationHandler = (RemediationHandlerFunc)(nil)
