package saga

import (
	"context"
	"errors"
)

// ErrVersionConflict 乐观并发冲突：持久化时版本号已被其他执行者推进
var ErrVersionConflict = errors.New("saga: version conflict")

// Repository saga 实例仓储接口
// 不同存储后端（GORM、内存）实现此接口
type Repository interface {
	// Create 持久化新实例，SagaID 冲突时返回错误
	Create(ctx context.Context, instance *Instance) error

	// FindByID 按 SagaID 查找实例，不存在时返回 (nil, nil)
	FindByID(ctx context.Context, sagaID string) (*Instance, error)

	// UpdateCAS 带版本检查的更新：仅当存储中的版本等于 expectedVersion 时写入，
	// 写入后实例版本加一；版本不匹配时返回 ErrVersionConflict
	UpdateCAS(ctx context.Context, instance *Instance, expectedVersion int64) error

	// FindActive 返回处于非终态的实例，用于崩溃恢复
	FindActive(ctx context.Context, limit int) ([]*Instance, error)
}
