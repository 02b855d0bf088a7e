package idempotency

import (
	"context"
	"time"
)

// Store 持久层仓储接口（权威层）
// 定义数据访问契约，不依赖具体数据库实现
type Store interface {
	// Insert 写入处理记录（幂等写，键冲突视为成功）
	// ctx: 上下文（可能包含事务信息）
	// record: 要写入的记录
	Insert(ctx context.Context, record *ProcessedRecord) error

	// Exists 检查幂等键是否已存在
	// 返回：true 表示已处理过
	Exists(ctx context.Context, key string) (bool, error)

	// Find 根据幂等键查找记录
	// 返回：记录对象（不存在返回 nil，不是错误）
	Find(ctx context.Context, key string) (*ProcessedRecord, error)

	// DeleteProcessedBefore 删除指定时间之前的处理记录（保留窗口清理）
	// 返回：删除的行数
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)

	// Count 统计记录数量
	Count(ctx context.Context) (int64, error)
}
