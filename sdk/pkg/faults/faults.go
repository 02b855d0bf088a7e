package faults

import (
	"context"
	"errors"
	"fmt"
)

// 跨组件共享的错误分类。
// 分发器、saga 编排器和出站保护层都依赖同一套判定：
// - 瞬时基础设施故障：按策略重试，计入熔断统计
// - 业务规则拒绝：不重试，不计入熔断统计，saga 内触发补偿
// - 重复投递 / 预留冲突：短路为无操作，不算错误

var (
	// ErrDuplicateEvent 幂等键已处理，本次投递为重复，直接确认
	ErrDuplicateEvent = errors.New("duplicate event: idempotency key already processed")

	// ErrReservationConflict 两次并发投递竞争同一幂等键，败者静默放弃
	ErrReservationConflict = errors.New("reservation conflict: key reserved by concurrent delivery")
)

// TransientError 瞬时基础设施故障（超时、连接失败、5xx等价故障）
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient infrastructure failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// BusinessError 业务规则拒绝（语义非法，不代表目的地不可用）
type BusinessError struct {
	Err error
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("business rule violation: %v", e.Err)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// Transient 包装为瞬时故障
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Transientf 格式化构造瞬时故障
func Transientf(format string, args ...interface{}) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// Business 包装为业务规则拒绝
func Business(err error) error {
	if err == nil {
		return nil
	}
	return &BusinessError{Err: err}
}

// Businessf 格式化构造业务规则拒绝
func Businessf(format string, args ...interface{}) error {
	return &BusinessError{Err: fmt.Errorf(format, args...)}
}

// IsTransient 判断是否瞬时基础设施故障
// 上下文超时视为瞬时故障（出站调用超时的标准形态）
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsBusiness 判断是否业务规则拒绝
func IsBusiness(err error) bool {
	if err == nil {
		return false
	}
	var be *BusinessError
	return errors.As(err, &be)
}
