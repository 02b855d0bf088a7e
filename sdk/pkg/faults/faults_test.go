package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTransient 测试瞬时故障分类
func TestTransient(t *testing.T) {
	err := Transientf("connection refused to %s", "payment-service")

	assert.True(t, IsTransient(err))
	assert.False(t, IsBusiness(err))
	assert.Contains(t, err.Error(), "payment-service")
}

// TestBusiness 测试业务拒绝分类
func TestBusiness(t *testing.T) {
	err := Businessf("insufficient funds on account %s", "acc-1")

	assert.True(t, IsBusiness(err))
	assert.False(t, IsTransient(err))
}

// TestClassification_SurvivesWrapping 测试分类穿透 %w 包装
func TestClassification_SurvivesWrapping(t *testing.T) {
	inner := Transientf("dial timeout")
	wrapped := fmt.Errorf("step charge-payment: %w", inner)

	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsBusiness(wrapped))

	bizWrapped := fmt.Errorf("handler: %w", Businessf("rejected"))
	assert.True(t, IsBusiness(bizWrapped))
}

// TestDeadlineExceededIsTransient 测试超时归类为瞬时故障
func TestDeadlineExceededIsTransient(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("call: %w", context.DeadlineExceeded)))
}

// TestUnclassifiedError 测试未分类错误两边都不是
func TestUnclassifiedError(t *testing.T) {
	err := errors.New("something odd")

	assert.False(t, IsTransient(err))
	assert.False(t, IsBusiness(err))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsBusiness(nil))
}

// TestTransientUnwrap 测试包装错误可解包出原因
func TestTransientUnwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := Transient(cause)

	assert.ErrorIs(t, err, cause)
}
