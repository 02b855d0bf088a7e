package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/idempotency"
)

// GormStore GORM 持久层实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GORM 持久层
func NewGormStore(db *gorm.DB) idempotency.Store {
	return &GormStore{db: db}
}

// Insert 写入处理记录
// 使用 ON CONFLICT DO NOTHING：主键冲突说明记录已存在，幂等写视为成功
func (s *GormStore) Insert(ctx context.Context, record *idempotency.ProcessedRecord) error {
	model := FromEntity(record)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
}

// Exists 检查幂等键是否已存在
func (s *GormStore) Exists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ProcessedEventModel{}).
		Where("idempotency_key = ?", key).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Find 根据幂等键查找记录
func (s *GormStore) Find(ctx context.Context, key string) (*idempotency.ProcessedRecord, error) {
	var model ProcessedEventModel
	err := s.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 不存在返回 nil，不是错误
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// DeleteProcessedBefore 删除指定时间之前的处理记录
func (s *GormStore) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("processed_at < ?", before).
		Delete(&ProcessedEventModel{})
	return result.RowsAffected, result.Error
}

// Count 统计记录数量
func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ProcessedEventModel{}).
		Count(&count).Error
	return count, err
}

// Ensure GormStore implements the interface
var _ idempotency.Store = (*GormStore)(nil)
