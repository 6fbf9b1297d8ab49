package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"gear_sync_v1_202509/internal/model"
)

// ==================== 接口定义 ====================

// SyncEventRepository 同步事件仓储接口
// 事件是追加写入的：除 status/notes 外任何字段都不提供更新入口
type SyncEventRepository interface {
	// 事件
	CreateBatch(ctx context.Context, events []model.SyncEvent) error
	ListByRun(ctx context.Context, runID string) ([]model.SyncEvent, error)
	MarkProcessed(ctx context.Context, id int64, notes string) error
	MarkError(ctx context.Context, id int64, notes string) error
	CountPendingByRun(ctx context.Context, runID string) (int64, error)
	ListRecentByProduct(ctx context.Context, productID int64, since time.Time) ([]model.SyncEvent, error)

	// 运行记录
	CreateRun(ctx context.Context, run *model.SyncRun) error
	UpdateRun(ctx context.Context, run *model.SyncRun) error
	GetRun(ctx context.Context, runID string) (*model.SyncRun, error)

	// 事务
	WithTx(tx *gorm.DB) SyncEventRepository
	Transaction(ctx context.Context, fn func(txRepo SyncEventRepository) error) error
}

// ==================== 仓储实现 ====================

type syncEventRepo struct {
	db *gorm.DB
}

// NewSyncEventRepository 创建同步事件仓储
func NewSyncEventRepository(db *gorm.DB) SyncEventRepository {
	return &syncEventRepo{db: db}
}

func (r *syncEventRepo) CreateBatch(ctx context.Context, events []model.SyncEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&events).Error
}

func (r *syncEventRepo) ListByRun(ctx context.Context, runID string) ([]model.SyncEvent, error) {
	var events []model.SyncEvent
	// 对账按 detected_at 全序处理；同刻事件用 id 落定次序
	err := r.db.WithContext(ctx).
		Where("sync_run_id = ?", runID).
		Order("detected_at ASC, id ASC").
		Find(&events).Error
	return events, err
}

func (r *syncEventRepo) MarkProcessed(ctx context.Context, id int64, notes string) error {
	return r.db.WithContext(ctx).
		Model(&model.SyncEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": model.EventStatusProcessed,
			"notes":  notes,
		}).Error
}

func (r *syncEventRepo) MarkError(ctx context.Context, id int64, notes string) error {
	return r.db.WithContext(ctx).
		Model(&model.SyncEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": model.EventStatusError,
			"notes":  notes,
		}).Error
}

func (r *syncEventRepo) CountPendingByRun(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.SyncEvent{}).
		Where("sync_run_id = ? AND status = ?", runID, model.EventStatusPending).
		Count(&count).Error
	return count, err
}

func (r *syncEventRepo) ListRecentByProduct(ctx context.Context, productID int64, since time.Time) ([]model.SyncEvent, error) {
	var events []model.SyncEvent
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND detected_at >= ?", productID, since).
		Order("detected_at DESC").
		Find(&events).Error
	return events, err
}

func (r *syncEventRepo) CreateRun(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *syncEventRepo) UpdateRun(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *syncEventRepo) GetRun(ctx context.Context, runID string) (*model.SyncRun, error) {
	var run model.SyncRun
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *syncEventRepo) WithTx(tx *gorm.DB) SyncEventRepository {
	return &syncEventRepo{db: tx}
}

func (r *syncEventRepo) Transaction(ctx context.Context, fn func(txRepo SyncEventRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
