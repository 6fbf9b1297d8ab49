package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gear_sync_v1_202509/internal/model"
)

// ==================== 状态映射 ====================

// StatusMappingRepository 状态映射仓储接口
type StatusMappingRepository interface {
	ListAll(ctx context.Context) ([]model.StatusMapping, error)
	// Upsert 管理侧配置入口；运行时组件只读
	Upsert(ctx context.Context, mappings []model.StatusMapping) error
}

type statusMappingRepo struct {
	db *gorm.DB
}

// NewStatusMappingRepository 创建状态映射仓储
func NewStatusMappingRepository(db *gorm.DB) StatusMappingRepository {
	return &statusMappingRepo{db: db}
}

func (r *statusMappingRepo) ListAll(ctx context.Context) ([]model.StatusMapping, error) {
	var mappings []model.StatusMapping
	err := r.db.WithContext(ctx).Find(&mappings).Error
	return mappings, err
}

func (r *statusMappingRepo) Upsert(ctx context.Context, mappings []model.StatusMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform_name"}, {Name: "raw_status"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"central_status", "updated_at",
		}),
	}).Create(&mappings).Error
}

// ==================== 分类映射 ====================

// CategoryMappingRepository 分类映射仓储接口
type CategoryMappingRepository interface {
	Lookup(ctx context.Context, sourcePlatform, sourceCategory, targetPlatform string) (string, bool, error)
	Upsert(ctx context.Context, mappings []model.CategoryMapping) error
}

type categoryMappingRepo struct {
	db *gorm.DB
}

// NewCategoryMappingRepository 创建分类映射仓储
func NewCategoryMappingRepository(db *gorm.DB) CategoryMappingRepository {
	return &categoryMappingRepo{db: db}
}

func (r *categoryMappingRepo) Lookup(ctx context.Context, sourcePlatform, sourceCategory, targetPlatform string) (string, bool, error) {
	var mapping model.CategoryMapping
	err := r.db.WithContext(ctx).
		Where("source_platform = ? AND source_category = ? AND target_platform = ?",
			sourcePlatform, sourceCategory, targetPlatform).
		First(&mapping).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return mapping.TargetCategory, true, nil
}

func (r *categoryMappingRepo) Upsert(ctx context.Context, mappings []model.CategoryMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source_platform"}, {Name: "source_category"}, {Name: "target_platform"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"target_category", "updated_at",
		}),
	}).Create(&mappings).Error
}
