package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/saga"
)

// GormRepository GORM 持久层实现
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository 创建 GORM 持久层
func NewGormRepository(db *gorm.DB) saga.Repository {
	return &GormRepository{db: db}
}

// Create 持久化新实例
func (r *GormRepository) Create(ctx context.Context, instance *saga.Instance) error {
	model, err := FromEntity(instance)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID 按 SagaID 查找实例
func (r *GormRepository) FindByID(ctx context.Context, sagaID string) (*saga.Instance, error) {
	var model SagaInstanceModel
	err := r.db.WithContext(ctx).
		Where("saga_id = ?", sagaID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 不存在返回 nil，不是错误
		}
		return nil, err
	}
	return model.ToEntity()
}

// UpdateCAS 带版本检查的更新
// WHERE 条件同时匹配主键与期望版本，RowsAffected 为 0 说明版本已被推进
func (r *GormRepository) UpdateCAS(ctx context.Context, instance *saga.Instance, expectedVersion int64) error {
	instance.Version = expectedVersion + 1
	instance.UpdatedAt = time.Now()

	model, err := FromEntity(instance)
	if err != nil {
		instance.Version = expectedVersion
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&SagaInstanceModel{}).
		Where("saga_id = ? AND version = ?", instance.SagaID, expectedVersion).
		Updates(map[string]interface{}{
			"status":             model.Status,
			"current_step_index": model.CurrentStepIndex,
			"version":            model.Version,
			"compensation_log":   model.CompensationLog,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		instance.Version = expectedVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		instance.Version = expectedVersion
		return saga.ErrVersionConflict
	}
	return nil
}

// FindActive 返回处于非终态的实例，按更新时间升序（最久未动的优先恢复）
func (r *GormRepository) FindActive(ctx context.Context, limit int) ([]*saga.Instance, error) {
	var models []SagaInstanceModel
	query := r.db.WithContext(ctx).
		Where("status NOT IN ?", []string{string(saga.StatusCompleted), string(saga.StatusFailed)}).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	instances := make([]*saga.Instance, 0, len(models))
	for i := range models {
		instance, err := models[i].ToEntity()
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Ensure GormRepository implements the interface
var _ saga.Repository = (*GormRepository)(nil)
