package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ChenBigdata421/jxt-consistency/sdk/config"
	"github.com/ChenBigdata421/jxt-consistency/sdk/pkg/logger"
	"go.uber.org/zap"
)

// Janitor 保留窗口清理器
// 按 cron 计划删除超过保留窗口的持久层处理记录。
// 清理是唯一允许删除处理记录的路径。
type Janitor struct {
	store     Store
	retention time.Duration
	schedule  string

	cron    *cron.Cron
	entryID cron.EntryID
	logger  *zap.Logger
}

// NewJanitor 创建保留窗口清理器
func NewJanitor(store Store, cfg *config.IdempotencyConfig) (*Janitor, error) {
	if !cfg.IsEnabledJanitor() {
		return nil, fmt.Errorf("janitor requires a schedule and a positive retention window")
	}
	return &Janitor{
		store:     store,
		retention: cfg.Retention,
		schedule:  cfg.JanitorSchedule,
		cron:      cron.New(),
		logger:    logger.Logger,
	}, nil
}

// Start 启动清理计划
func (j *Janitor) Start() error {
	id, err := j.cron.AddFunc(j.schedule, j.prune)
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}
	j.entryID = id
	j.cron.Start()
	j.logger.Info("Idempotency janitor started",
		zap.String("schedule", j.schedule),
		zap.Duration("retention", j.retention))
	return nil
}

// Stop 停止清理计划，等待进行中的清理完成
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("Idempotency janitor stopped")
}

// prune 删除保留窗口之外的记录
func (j *Janitor) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	before := time.Now().Add(-j.retention)
	deleted, err := j.store.DeleteProcessedBefore(ctx, before)
	if err != nil {
		j.logger.Error("Idempotency retention pruning failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.logger.Info("Idempotency records pruned",
			zap.Int64("deleted", deleted),
			zap.Time("before", before))
	}
}
